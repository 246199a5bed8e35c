package step

import (
	"context"

	"git.home.luguber.info/inful/withgradle/internal/console"
	"git.home.luguber.info/inful/withgradle/internal/envoverlay"
)

// Invocation is what a body receives: the environment expander to apply to
// any process it starts and the console filter to wrap its output with.
type Invocation struct {
	SessionID string
	Env       envoverlay.Expander
	Filter    console.Filter
	// Overlay holds only the step's own overrides.
	Overlay envoverlay.Overlay
}

// Environ expands base with the invocation's expander.
func (inv Invocation) Environ(base envoverlay.EnvMap) envoverlay.EnvMap {
	if inv.Env == nil {
		return envoverlay.Merge(base, nil)
	}
	return inv.Env.Expand(base)
}

// Body is the block the step wraps. Run may return before the build it
// launches has finished; completion is decided from the log tail.
type Body interface {
	Run(ctx context.Context, inv Invocation) error
}

// BodyFunc adapts a function to Body.
type BodyFunc func(ctx context.Context, inv Invocation) error

// Run implements Body.
func (f BodyFunc) Run(ctx context.Context, inv Invocation) error { return f(ctx, inv) }

// Reporter receives the step outcome. Exactly one method is called per Start
// that reaches the watch phase.
type Reporter interface {
	OnSuccess()
	OnFailure(reason string)
}

// ReporterFuncs adapts two functions to Reporter. Nil fields are ignored.
type ReporterFuncs struct {
	Success func()
	Failure func(reason string)
}

// OnSuccess implements Reporter.
func (r ReporterFuncs) OnSuccess() {
	if r.Success != nil {
		r.Success()
	}
}

// OnFailure implements Reporter.
func (r ReporterFuncs) OnFailure(reason string) {
	if r.Failure != nil {
		r.Failure(reason)
	}
}

// Observer is notified around each session, for history and notifications.
type Observer interface {
	SessionStarted(ctx context.Context, s Started)
	SessionFinished(ctx context.Context, r *Result)
}

// NopObserver ignores all notifications.
type NopObserver struct{}

func (NopObserver) SessionStarted(context.Context, Started)  {}
func (NopObserver) SessionFinished(context.Context, *Result) {}
