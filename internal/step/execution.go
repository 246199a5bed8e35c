package step

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"git.home.luguber.info/inful/withgradle/internal/console"
	"git.home.luguber.info/inful/withgradle/internal/envoverlay"
	"git.home.luguber.info/inful/withgradle/internal/foundation/errors"
	"git.home.luguber.info/inful/withgradle/internal/logfields"
	"git.home.luguber.info/inful/withgradle/internal/logtail"
	"git.home.luguber.info/inful/withgradle/internal/metrics"
	"git.home.luguber.info/inful/withgradle/internal/observability"
	"git.home.luguber.info/inful/withgradle/internal/tools"
	"git.home.luguber.info/inful/withgradle/internal/watcher"
)

// Name is the step name used in logs and console messages.
const Name = "WithGradle"

const consolePrefix = "[" + Name + "] "

// Execution is a single run of the step. It is not reusable.
type Execution struct {
	cfg      Config
	resolver tools.Resolver
	tail     logtail.Tail

	body      Body
	console   io.Writer
	reporter  Reporter
	observer  Observer
	recorder  metrics.Recorder
	watchOpts watcher.Options
	annotator console.Filter

	inheritedFilter console.Filter
	inheritedEnv    envoverlay.Expander

	mu        sync.Mutex
	started   bool
	cancel    context.CancelCauseFunc
	stopCause error
}

// NewExecution creates an execution for cfg that resolves tools through
// resolver and decides the outcome from tail.
func NewExecution(cfg Config, resolver tools.Resolver, tail logtail.Tail) *Execution {
	return &Execution{
		cfg:       cfg,
		resolver:  resolver,
		tail:      tail,
		console:   io.Discard,
		reporter:  ReporterFuncs{},
		observer:  NopObserver{},
		recorder:  metrics.NoopRecorder{},
		annotator: console.NewAnnotator(),
	}
}

// WithBody sets the wrapped block. Without one Start fails with ErrNoBody.
func (e *Execution) WithBody(b Body) *Execution {
	e.body = b
	return e
}

// WithConsole sets where step messages are written.
func (e *Execution) WithConsole(w io.Writer) *Execution {
	if w != nil {
		e.console = w
	}
	return e
}

// WithReporter sets the outcome receiver.
func (e *Execution) WithReporter(r Reporter) *Execution {
	if r != nil {
		e.reporter = r
	}
	return e
}

// WithObserver sets the session observer.
func (e *Execution) WithObserver(o Observer) *Execution {
	if o != nil {
		e.observer = o
	}
	return e
}

// WithRecorder sets the metrics recorder for the step and its watcher.
func (e *Execution) WithRecorder(r metrics.Recorder) *Execution {
	if r != nil {
		e.recorder = r
	}
	return e
}

// WithWatchOptions configures the completion watcher.
func (e *Execution) WithWatchOptions(opts watcher.Options) *Execution {
	e.watchOpts = opts
	return e
}

// WithAnnotator replaces the console annotator installed for the body.
func (e *Execution) WithAnnotator(f console.Filter) *Execution {
	e.annotator = f
	return e
}

// WithInherited sets the console filter and environment expander already in
// effect where the step runs. The step's own contributions are layered on top.
func (e *Execution) WithInherited(filter console.Filter, env envoverlay.Expander) *Execution {
	e.inheritedFilter = filter
	e.inheritedEnv = env
	return e
}

// Stop cancels a running execution with cause. Stopping before Start makes
// Start return ErrStopped without running the body.
func (e *Execution) Stop(cause error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if cause == nil {
		cause = context.Canceled
	}
	if e.stopCause == nil {
		e.stopCause = cause
	}
	if e.cancel != nil {
		e.cancel(cause)
	}
}

// Start runs the step to completion and returns its result. The returned
// error is nil only for a passing build.
func (e *Execution) Start(ctx context.Context) (*Result, error) {
	ctx, cancel, err := e.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel(nil)

	ctx = observability.WithStep(ctx, Name)
	e.printf("Execution begin\n")

	if e.body == nil {
		e.printf("[ERROR] %s\n", ErrNoBody.Message())
		return nil, ErrNoBody
	}

	overlay := envoverlay.New(e.resolveTools(ctx)...)
	session := watcher.NewSession(e.tail, e.sessionOptions())
	ctx = observability.WithSessionID(ctx, session.ID())

	inv := Invocation{
		SessionID: session.ID(),
		Env:       envoverlay.Compose(e.inheritedEnv, overlay),
		Filter:    console.Merge(e.inheritedFilter, e.annotator),
		Overlay:   overlay,
	}

	started := time.Now()
	e.observer.SessionStarted(ctx, Started{
		SessionID: session.ID(),
		Gradle:    deref(e.cfg.Gradle),
		JDK:       deref(e.cfg.JDK),
		Overlay:   overlay.Map(),
		StartTime: started,
	})

	bodyErr := e.body.Run(ctx, inv)
	if bodyErr != nil {
		observability.WarnContext(ctx, "Step body returned an error", logfields.Error(bodyErr))
	}

	// The build the body launched may still be running; the log decides.
	outcome := <-session.Start(ctx)
	verdict, watchErr := outcome.Verdict, outcome.Err

	res := &Result{
		SessionID: session.ID(),
		BodyErr:   bodyErr,
		Overlay:   overlay.Map(),
		Polls:     outcome.Polls,
		StartTime: started,
		EndTime:   time.Now(),
	}
	res.Duration = res.EndTime.Sub(started)

	err = e.conclude(ctx, res, verdict, watchErr)
	e.observer.SessionFinished(ctx, res)
	return res, err
}

func (e *Execution) begin(parent context.Context) (context.Context, context.CancelCauseFunc, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return nil, nil, ErrAlreadyStarted
	}
	e.started = true
	if e.stopCause != nil {
		return nil, nil, errors.WrapError(e.stopCause, errors.CategoryCanceled, ErrStopped.Message()).Warning().Build()
	}
	ctx, cancel := context.WithCancelCause(parent)
	e.cancel = cancel
	return ctx, cancel, nil
}

// conclude fills the outcome fields of res and calls the reporter once.
func (e *Execution) conclude(ctx context.Context, res *Result, verdict watcher.Verdict, watchErr error) error {
	var err error
	switch {
	case watchErr != nil && errors.HasCategory(watchErr, errors.CategoryTimeout):
		res.Status = StatusTimeout
		res.Reason = errors.GetMessage(watchErr)
		err = watchErr
	case watchErr != nil && errors.HasCategory(watchErr, errors.CategoryCanceled):
		res.Status = StatusCanceled
		cause := context.Cause(ctx)
		res.Reason = ErrStopped.Message()
		err = errors.WrapError(cause, errors.CategoryCanceled, ErrStopped.Message()).
			Warning().
			WithContext(logfields.KeySessionID, res.SessionID).
			Build()
	case watchErr != nil:
		res.Status = StatusError
		res.Reason = errors.GetMessage(watchErr)
		err = watchErr
	case !verdict.IsSuccess():
		res.Status = StatusFailure
		res.Verdict = &verdict
		res.Reason = verdict.Reason
		err = watcher.VerdictError(verdict)
	case res.BodyErr != nil:
		res.Status = StatusFailure
		res.Verdict = &verdict
		res.Reason = res.BodyErr.Error()
		err = errors.WrapError(res.BodyErr, errors.CategoryBuild, ErrBodyFailed.Message()).
			WithContext(logfields.KeySessionID, res.SessionID).
			Build()
	default:
		res.Status = StatusSuccess
		res.Verdict = &verdict
	}

	if res.Status == StatusSuccess {
		observability.InfoContext(ctx, "Step succeeded", logfields.Duration(res.Duration))
		e.reporter.OnSuccess()
		return nil
	}
	observability.WarnContext(ctx, "Step failed",
		logfields.Verdict(string(res.Status)), logfields.Reason(res.Reason), logfields.Duration(res.Duration))
	e.reporter.OnFailure(res.Reason)
	return err
}

// Overlay resolves the configured tools and returns the variables the body
// would receive, without running it. Lookup messages go to the console.
func (e *Execution) Overlay(ctx context.Context) envoverlay.Overlay {
	return envoverlay.New(e.resolveTools(observability.WithStep(ctx, Name))...)
}

func (e *Execution) resolveTools(ctx context.Context) []envoverlay.Var {
	var vars []envoverlay.Var
	if v, ok := e.resolve(ctx, tools.KindGradle, "Gradle", e.cfg.Gradle, envoverlay.GradleHome); ok {
		vars = append(vars, v)
	}
	if v, ok := e.resolve(ctx, tools.KindJDK, "Java", e.cfg.JDK, envoverlay.JavaHome); ok {
		vars = append(vars, v)
	}
	return vars
}

func (e *Execution) resolve(ctx context.Context, kind tools.Kind, label string, name *string, envName string) (envoverlay.Var, bool) {
	if name == nil {
		return envoverlay.Var{}, false
	}
	var (
		in    tools.Installation
		found bool
	)
	if e.resolver != nil {
		in, found = e.resolver.FindInstallation(kind, *name)
	}
	e.recorder.IncToolResolution(string(kind), found)
	if !found {
		e.printf("%s Installation '%s' not found. Defaulting to system installation.\n", label, *name)
		observability.WarnContext(ctx, "Tool installation not found, using system installation",
			logfields.ToolKind(string(kind)), logfields.ToolName(*name))
		return envoverlay.Var{}, false
	}
	e.printf("%s Installation found. Using '%s'\n", label, in.Name)
	observability.DebugContext(ctx, "Tool installation resolved",
		logfields.ToolKind(string(kind)), logfields.ToolName(in.Name), logfields.ToolHome(in.Home))
	return envoverlay.Var{Name: envName, Value: in.Home}, true
}

func (e *Execution) sessionOptions() watcher.Options {
	opts := e.watchOpts
	if opts.Recorder == nil {
		opts.Recorder = e.recorder
	}
	return opts
}

func (e *Execution) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(e.console, consolePrefix+format, args...)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
