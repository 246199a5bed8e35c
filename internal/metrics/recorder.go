package metrics

import "time"

// OutcomeLabel enumerates how a watch session ended.
type OutcomeLabel string

const (
	OutcomeSuccess  OutcomeLabel = "success"
	OutcomeFailure  OutcomeLabel = "failure"
	OutcomeTimeout  OutcomeLabel = "timeout"
	OutcomeCanceled OutcomeLabel = "canceled"
	OutcomeError    OutcomeLabel = "error"
)

// Recorder defines observability hooks for watch sessions and step executions.
// Implementations may forward to Prometheus, OpenTelemetry, etc.
type Recorder interface {
	ObserveWatchDuration(d time.Duration, outcome OutcomeLabel)
	IncWatchOutcome(outcome OutcomeLabel, reason string)
	AddPolls(n int)
	IncToolResolution(kind string, found bool)
	SetActiveSessions(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveWatchDuration(time.Duration, OutcomeLabel) {}
func (NoopRecorder) IncWatchOutcome(OutcomeLabel, string)            {}
func (NoopRecorder) AddPolls(int)                                    {}
func (NoopRecorder) IncToolResolution(string, bool)                  {}
func (NoopRecorder) SetActiveSessions(int)                           {}
