package step

import (
	"time"

	"git.home.luguber.info/inful/withgradle/internal/envoverlay"
	"git.home.luguber.info/inful/withgradle/internal/watcher"
)

// Status is the overall step outcome.
type Status string

const (
	StatusSuccess  Status = "success"
	StatusFailure  Status = "failure"
	StatusTimeout  Status = "timeout"
	StatusCanceled Status = "canceled"
	StatusError    Status = "error"
)

// Started describes a session at the moment the body is launched.
type Started struct {
	SessionID string
	Gradle    string
	JDK       string
	Overlay   envoverlay.EnvMap
	StartTime time.Time
}

// Result contains the outcome of one step execution.
type Result struct {
	SessionID string
	Status    Status

	// Verdict is set when the watcher reached one.
	Verdict *watcher.Verdict

	// Reason is the failure text passed to Reporter.OnFailure; empty on success.
	Reason string

	// BodyErr is the error the body returned, if any.
	BodyErr error

	// Overlay is the set of variables the step injected.
	Overlay envoverlay.EnvMap

	Polls     int
	Duration  time.Duration
	StartTime time.Time
	EndTime   time.Time
}

// IsSuccess reports whether the step passed.
func (r *Result) IsSuccess() bool { return r != nil && r.Status == StatusSuccess }
