package watcher

import (
	"git.home.luguber.info/inful/withgradle/internal/foundation/errors"
)

var (
	// ErrWatchTimeout indicates no terminal marker appeared within Options.MaxWait.
	ErrWatchTimeout = errors.TimeoutError("no terminal marker observed before max wait").Build()

	// ErrWatchCanceled indicates the caller stopped the session while it was waiting.
	ErrWatchCanceled = errors.CanceledError("watch canceled before a verdict was reached").Build()

	// ErrTailRead indicates the log tail could not be read.
	ErrTailRead = errors.FileSystemError("failed to read log tail").Build()

	// ErrSessionReused indicates Run was called on a session that already ran.
	ErrSessionReused = errors.InternalError("watch session already ran").Build()

	// ErrBuildFailed is returned by VerdictError for failure verdicts.
	ErrBuildFailed = errors.BuildError("monitored build failed").Build()
)

// VerdictError converts a failure verdict to a classified build error carrying
// the reason as its message. It returns nil for success.
func VerdictError(v Verdict) error {
	if v.IsSuccess() {
		return nil
	}
	return errors.BuildError(v.Reason).
		WithCause(ErrBuildFailed).
		WithContext("line", v.Line).
		Build()
}
