package watcher

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/withgradle/internal/foundation/errors"
	"git.home.luguber.info/inful/withgradle/internal/logfields"
	"git.home.luguber.info/inful/withgradle/internal/logtail"
	"git.home.luguber.info/inful/withgradle/internal/metrics"
	"git.home.luguber.info/inful/withgradle/internal/observability"
)

const (
	DefaultPollInterval = 100 * time.Millisecond
	DefaultWindowSize   = 100
)

// Options configure a Session. The zero value polls every 100ms over the last
// 100 lines with no upper bound on the wait.
type Options struct {
	PollInterval time.Duration
	WindowSize   int
	// MaxWait bounds the waiting phase; 0 waits forever.
	MaxWait time.Duration
	Markers Markers

	// Terminal overrides the marker-based terminal predicate.
	Terminal func(line string) bool
	// Classifier overrides Classify.
	Classifier func(window []string) Verdict

	// Wake shortens the current poll sleep whenever it receives. When nil and
	// the tail implements logtail.Watchable, the tail's own channel is used.
	Wake <-chan struct{}

	Recorder metrics.Recorder
}

func (o Options) withDefaults() Options {
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.WindowSize <= 0 {
		o.WindowSize = DefaultWindowSize
	}
	if o.MaxWait < 0 {
		o.MaxWait = 0
	}
	o.Markers = o.Markers.withDefaults()
	if o.Terminal == nil {
		o.Terminal = o.Markers.IsTerminal
	}
	if o.Classifier == nil {
		markers := o.Markers
		o.Classifier = func(window []string) Verdict { return Classify(window, markers) }
	}
	if o.Recorder == nil {
		o.Recorder = metrics.NoopRecorder{}
	}
	return o
}

// State is a session's position in Waiting -> Classifying -> Done.
type State int32

const (
	StateNew State = iota
	StateWaiting
	StateClassifying
	StateDone
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateWaiting:
		return "waiting"
	case StateClassifying:
		return "classifying"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Outcome is what Start delivers.
type Outcome struct {
	SessionID string
	Verdict   Verdict
	Err       error
	Polls     int
	Duration  time.Duration
}

var activeSessions atomic.Int64

// Session is one watch over one log tail. It runs at most once.
type Session struct {
	id    string
	tail  logtail.Tail
	opts  Options
	state atomic.Int32
	polls atomic.Int64
	ran   atomic.Bool
}

// NewSession prepares a session; nothing is read until Run or Start.
func NewSession(tail logtail.Tail, opts Options) *Session {
	return &Session{id: uuid.NewString(), tail: tail, opts: opts.withDefaults()}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// State returns the current state.
func (s *Session) State() State { return State(s.state.Load()) }

// Polls returns how many wait-phase reads were made.
func (s *Session) Polls() int { return int(s.polls.Load()) }

// Watch blocks until a verdict is reached, the optional max wait elapses, or
// ctx is done.
func Watch(ctx context.Context, tail logtail.Tail, opts Options) (Verdict, error) {
	return NewSession(tail, opts).Run(ctx)
}

// Start runs the session on its own goroutine. The channel yields exactly one
// Outcome and is then closed.
func (s *Session) Start(ctx context.Context) <-chan Outcome {
	out := make(chan Outcome, 1)
	go func() {
		defer close(out)
		started := time.Now()
		v, err := s.Run(ctx)
		out <- Outcome{SessionID: s.id, Verdict: v, Err: err, Polls: s.Polls(), Duration: time.Since(started)}
	}()
	return out
}

// Run blocks until the session is done. A second call returns ErrSessionReused.
func (s *Session) Run(ctx context.Context) (Verdict, error) {
	if !s.ran.CompareAndSwap(false, true) {
		return Verdict{}, ErrSessionReused
	}
	ctx = observability.WithSessionID(ctx, s.id)
	started := time.Now()
	s.opts.Recorder.SetActiveSessions(int(activeSessions.Add(1)))
	observability.DebugContext(ctx, "Watching log tail",
		logfields.Window(s.opts.WindowSize),
		slog.String("poll_interval", s.opts.PollInterval.String()),
		slog.String("max_wait", s.opts.MaxWait.String()))

	verdict, err := s.run(ctx)

	s.transition(StateDone)
	s.opts.Recorder.SetActiveSessions(int(activeSessions.Add(-1)))
	elapsed := time.Since(started)
	outcome := outcomeLabel(verdict, err)
	s.opts.Recorder.ObserveWatchDuration(elapsed, outcome)
	s.opts.Recorder.IncWatchOutcome(outcome, verdict.Reason)
	s.opts.Recorder.AddPolls(s.Polls())

	if err != nil {
		observability.WarnContext(ctx, "Watch ended without verdict",
			logfields.Polls(s.Polls()), logfields.Duration(elapsed), logfields.Error(err))
		return Verdict{}, err
	}
	observability.InfoContext(ctx, "Watch verdict",
		logfields.Verdict(string(verdict.Kind)), logfields.Reason(verdict.Reason),
		logfields.Polls(s.Polls()), logfields.Duration(elapsed))
	return verdict, nil
}

func (s *Session) run(ctx context.Context) (Verdict, error) {
	s.transition(StateWaiting)

	wake := s.opts.Wake
	if wake == nil {
		if w, ok := s.tail.(logtail.Watchable); ok {
			watchCtx, cancel := context.WithCancel(ctx)
			defer cancel()
			ch, err := w.Watch(watchCtx)
			if err != nil {
				observability.DebugContext(ctx, "Log change notifications unavailable, polling only", logfields.Error(err))
			} else {
				wake = ch
			}
		}
	}

	var deadline <-chan time.Time
	if s.opts.MaxWait > 0 {
		timer := time.NewTimer(s.opts.MaxWait)
		defer timer.Stop()
		deadline = timer.C
	}
	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	for {
		if err := ctx.Err(); err != nil {
			return Verdict{}, s.canceled(err)
		}
		window, err := s.read()
		if err != nil {
			return Verdict{}, err
		}
		s.polls.Add(1)
		if containsTerminal(window, s.opts.Terminal) {
			break
		}

		select {
		case <-ctx.Done():
			return Verdict{}, s.canceled(ctx.Err())
		case <-deadline:
			return Verdict{}, ErrWatchTimeout.
				WithContext("max_wait", s.opts.MaxWait.String()).
				WithContext(logfields.KeySessionID, s.id).
				WithContext(logfields.KeyPolls, s.Polls())
		case <-ticker.C:
		case _, open := <-wake:
			if !open {
				wake = nil
			}
		}
	}

	// The window that ended the wait may already be stale; classify a fresh one.
	s.transition(StateClassifying)
	window, err := s.read()
	if err != nil {
		return Verdict{}, err
	}
	return s.opts.Classifier(window), nil
}

func (s *Session) read() ([]string, error) {
	window, err := s.tail.LastLines(s.opts.WindowSize)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, ErrTailRead.Message()).
			WithContext(logfields.KeySessionID, s.id).
			Build()
	}
	return window, nil
}

func (s *Session) canceled(cause error) error {
	return errors.WrapError(cause, errors.CategoryCanceled, ErrWatchCanceled.Message()).
		Warning().
		WithContext(logfields.KeySessionID, s.id).
		WithContext(logfields.KeyPolls, s.Polls()).
		Build()
}

func (s *Session) transition(to State) {
	s.state.Store(int32(to))
}

func containsTerminal(window []string, terminal func(string) bool) bool {
	for _, line := range window {
		if terminal(line) {
			return true
		}
	}
	return false
}

func outcomeLabel(v Verdict, err error) metrics.OutcomeLabel {
	switch {
	case err == nil && v.IsSuccess():
		return metrics.OutcomeSuccess
	case err == nil:
		return metrics.OutcomeFailure
	case errors.HasCategory(err, errors.CategoryTimeout):
		return metrics.OutcomeTimeout
	case errors.HasCategory(err, errors.CategoryCanceled):
		return metrics.OutcomeCanceled
	default:
		return metrics.OutcomeError
	}
}
