package watcher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/withgradle/internal/foundation/errors"
	"git.home.luguber.info/inful/withgradle/internal/logtail"
	"git.home.luguber.info/inful/withgradle/internal/metrics"
)

const fastPoll = 5 * time.Millisecond

// scriptedTail returns one window per read; the last window repeats.
type scriptedTail struct {
	mu      sync.Mutex
	windows [][]string
	reads   int
	err     error
}

func (s *scriptedTail) LastLines(int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	i := min(s.reads, len(s.windows)-1)
	s.reads++
	return s.windows[i], nil
}

func (s *scriptedTail) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

type countingRecorder struct {
	metrics.NoopRecorder
	mu       sync.Mutex
	outcomes []metrics.OutcomeLabel
	polls    int
}

func (c *countingRecorder) IncWatchOutcome(outcome metrics.OutcomeLabel, _ string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outcomes = append(c.outcomes, outcome)
}

func (c *countingRecorder) AddPolls(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.polls += n
}

func TestWatchScenarios(t *testing.T) {
	tests := []struct {
		name     string
		lines    []string
		expected Verdict
	}{
		{
			name:     "build failed",
			lines:    []string{"Starting build", "BUILD FAILED", "done"},
			expected: Verdict{Kind: KindFailure, Reason: ReasonBuildFailed, Line: "BUILD FAILED"},
		},
		{
			name:     "build successful",
			lines:    []string{"Starting build", "Task :compile", "BUILD SUCCESSFUL"},
			expected: Success(),
		},
		{
			name:     "error only",
			lines:    []string{"Starting build", "ERROR: could not resolve dependency"},
			expected: Verdict{Kind: KindFailure, Reason: ReasonErrorDetected, Line: "ERROR: could not resolve dependency"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Watch(t.Context(), logtail.Lines(tt.lines), Options{PollInterval: fastPoll})
			require.NoError(t, err)
			assert.Equal(t, tt.expected, v)
		})
	}
}

func TestWatchWaitsForTerminalMarker(t *testing.T) {
	tail := logtail.NewMemoryTail(0)
	tail.Append("Starting build")

	s := NewSession(tail, Options{PollInterval: fastPoll})
	done := s.Start(t.Context())

	require.Eventually(t, func() bool { return s.Polls() >= 3 }, time.Second, fastPoll)
	assert.Equal(t, StateWaiting, s.State())

	tail.Append("Task :compile", "BUILD SUCCESSFUL")

	select {
	case out := <-done:
		require.NoError(t, out.Err)
		assert.True(t, out.Verdict.IsSuccess())
		assert.Equal(t, s.ID(), out.SessionID)
		assert.GreaterOrEqual(t, out.Polls, 3)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not finish")
	}

	_, open := <-done
	assert.False(t, open, "outcome channel closes after one outcome")
	assert.Equal(t, StateDone, s.State())
}

func TestWatchClassifiesFreshWindow(t *testing.T) {
	// The wait ends on a "BUILD" banner; the failure arrives before the re-read.
	tail := &scriptedTail{windows: [][]string{
		{"Starting build"},
		{"BUILD started"},
		{"BUILD started", "BUILD FAILED"},
	}}

	v, err := Watch(t.Context(), tail, Options{PollInterval: fastPoll})
	require.NoError(t, err)
	assert.Equal(t, ReasonBuildFailed, v.Reason)
	assert.Equal(t, 3, tail.Reads())
}

func TestWatchTimeout(t *testing.T) {
	rec := &countingRecorder{}
	_, err := Watch(t.Context(), logtail.Lines{"Starting build"}, Options{
		PollInterval: fastPoll,
		MaxWait:      30 * time.Millisecond,
		Recorder:     rec,
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrWatchTimeout)
	assert.True(t, errors.HasCategory(err, errors.CategoryTimeout))
	assert.Equal(t, []metrics.OutcomeLabel{metrics.OutcomeTimeout}, rec.outcomes)
	assert.Positive(t, rec.polls)
}

func TestWatchCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	s := NewSession(logtail.Lines{"Starting build"}, Options{PollInterval: time.Hour})
	done := s.Start(ctx)

	require.Eventually(t, func() bool { return s.Polls() == 1 }, time.Second, time.Millisecond)
	cancel()

	select {
	case out := <-done:
		assert.ErrorIs(t, out.Err, ErrWatchCanceled)
		assert.ErrorIs(t, out.Err, context.Canceled)
		assert.Equal(t, Verdict{}, out.Verdict)
	case <-time.After(time.Second):
		t.Fatal("cancel was not prompt")
	}
}

func TestWatchAlreadyCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	tail := &scriptedTail{windows: [][]string{{"BUILD SUCCESSFUL"}}}
	_, err := Watch(ctx, tail, Options{})
	require.ErrorIs(t, err, ErrWatchCanceled)
	assert.Zero(t, tail.Reads())
}

func TestWatchWakeShortensSleep(t *testing.T) {
	tail := logtail.NewMemoryTail(0)
	tail.Append("Starting build")

	// MemoryTail is Watchable, so appends wake the loop long before the hour poll.
	done := NewSession(tail, Options{PollInterval: time.Hour}).Start(t.Context())
	time.Sleep(10 * time.Millisecond)
	tail.Append("BUILD SUCCESSFUL")

	select {
	case out := <-done:
		require.NoError(t, out.Err)
		assert.True(t, out.Verdict.IsSuccess())
	case <-time.After(2 * time.Second):
		t.Fatal("append did not wake the watcher")
	}
}

func TestWatchExplicitWake(t *testing.T) {
	tail := &scriptedTail{windows: [][]string{{"Starting build"}, {"ERROR"}}}
	wake := make(chan struct{}, 1)

	done := NewSession(tail, Options{PollInterval: time.Hour, Wake: wake}).Start(t.Context())
	require.Eventually(t, func() bool { return tail.Reads() == 1 }, time.Second, time.Millisecond)
	wake <- struct{}{}

	select {
	case out := <-done:
		require.NoError(t, out.Err)
		assert.Equal(t, ReasonErrorDetected, out.Verdict.Reason)
	case <-time.After(2 * time.Second):
		t.Fatal("wake was ignored")
	}
}

func TestWatchTailReadError(t *testing.T) {
	tail := &scriptedTail{err: assert.AnError}

	_, err := Watch(t.Context(), tail, Options{PollInterval: fastPoll})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTailRead)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestSessionRunsOnce(t *testing.T) {
	rec := &countingRecorder{}
	s := NewSession(logtail.Lines{"BUILD SUCCESSFUL"}, Options{Recorder: rec})
	assert.Equal(t, StateNew, s.State())

	v, err := s.Run(t.Context())
	require.NoError(t, err)
	assert.True(t, v.IsSuccess())

	_, err = s.Run(t.Context())
	require.ErrorIs(t, err, ErrSessionReused)
	assert.Equal(t, StateDone, s.State())
	assert.Equal(t, []metrics.OutcomeLabel{metrics.OutcomeSuccess}, rec.outcomes)
}

func TestCustomPredicateAndClassifier(t *testing.T) {
	v, err := Watch(t.Context(), logtail.Lines{"exit status 3"}, Options{
		Terminal:   func(line string) bool { return line != "" },
		Classifier: func([]string) Verdict { return Failure("exit status 3") },
	})
	require.NoError(t, err)
	assert.Equal(t, Failure("exit status 3"), v)
}

func TestOptionsDefaults(t *testing.T) {
	o := Options{MaxWait: -time.Second}.withDefaults()

	assert.Equal(t, DefaultPollInterval, o.PollInterval)
	assert.Equal(t, DefaultWindowSize, o.WindowSize)
	assert.Zero(t, o.MaxWait)
	assert.Equal(t, DefaultMarkers(), o.Markers)
	assert.NotNil(t, o.Terminal)
	assert.NotNil(t, o.Classifier)
	assert.NotNil(t, o.Recorder)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "waiting", StateWaiting.String())
	assert.Equal(t, "classifying", StateClassifying.String())
	assert.Equal(t, "done", StateDone.String())
	assert.Equal(t, "unknown", State(42).String())
}
