// Package watcher decides the outcome of an externally running build by
// polling the tail of its console log.
//
// The body that launches the build returns before the build itself finishes,
// and nothing reports the build's exit status directly. A Session therefore
// waits until some line in the last WindowSize lines contains a terminal marker
// ("BUILD" or "ERROR"), then re-reads the window and classifies it:
//
//	"BUILD FAILED" anywhere  -> Failure("build marked as failed")
//	else "ERROR" anywhere    -> Failure("error detected in output")
//	else                     -> Success
//
// Matching is plain substring containment. A line that merely echoes "ERROR"
// from unrelated tool output, or a "BUILD" banner printed before the build is
// done, ends the wait early. This imprecision is a known limitation.
//
// A session waits forever unless Options.MaxWait is set, in which case it fails
// with ErrWatchTimeout. Cancelling the context stops it promptly with
// ErrWatchCanceled.
package watcher
