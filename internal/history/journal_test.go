package history

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/withgradle/internal/eventstore"
	"git.home.luguber.info/inful/withgradle/internal/logtail"
	"git.home.luguber.info/inful/withgradle/internal/notify"
	"git.home.luguber.info/inful/withgradle/internal/step"
	"git.home.luguber.info/inful/withgradle/internal/tools"
	"git.home.luguber.info/inful/withgradle/internal/watcher"
)

type capturePublisher struct {
	events []*notify.VerdictEvent
	err    error
}

func (c *capturePublisher) Publish(_ context.Context, e *notify.VerdictEvent) error {
	c.events = append(c.events, e)
	return c.err
}

func (c *capturePublisher) Close() error { return nil }

func newStore(t *testing.T) *eventstore.SQLiteStore {
	t.Helper()
	store, err := eventstore.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func run(t *testing.T, j *Journal, tail logtail.Tail, opts watcher.Options) *step.Result {
	t.Helper()
	reg := tools.NewRegistry(tools.Installation{Kind: tools.KindGradle, Name: "Gradle-8", Home: "/opt/gradle"})
	res, _ := step.NewExecution(step.Config{Gradle: step.Named("Gradle-8")}, reg, tail).
		WithObserver(j).
		WithWatchOptions(opts).
		WithBody(step.BodyFunc(func(context.Context, step.Invocation) error { return nil })).
		Start(t.Context())
	require.NotNil(t, res)
	return res
}

func TestJournalRecordsVerdict(t *testing.T) {
	store := newStore(t)
	projection := eventstore.NewSessionHistoryProjection(store, 10)
	pub := &capturePublisher{}
	j := NewJournal(store, projection, pub).WithLogPath("/var/log/build.log")

	res := run(t, j, logtail.Lines{"Starting build", "BUILD FAILED", "done"}, watcher.Options{})

	events, err := store.GetBySessionID(t.Context(), res.SessionID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, eventstore.TypeSessionStarted, events[0].Type())
	assert.Equal(t, eventstore.TypeVerdict, events[1].Type())

	summary, err := eventstore.Summarize(events)
	require.NoError(t, err)
	assert.Equal(t, "failure", summary.Status)
	assert.Equal(t, watcher.ReasonBuildFailed, summary.Reason)
	assert.Equal(t, "BUILD FAILED", summary.Line)
	assert.Equal(t, "Gradle-8", summary.Gradle)
	assert.Equal(t, "/var/log/build.log", summary.LogPath)

	live, ok := projection.GetSession(res.SessionID)
	require.True(t, ok)
	assert.Equal(t, "failure", live.Status)

	require.Len(t, pub.events, 1)
	assert.Equal(t, res.SessionID, pub.events[0].SessionID)
	assert.Equal(t, "failure", pub.events[0].Status)
	assert.Equal(t, "Gradle-8", pub.events[0].Gradle)
	assert.Equal(t, map[string]string{"GRADLE_HOME": "/opt/gradle"}, pub.events[0].Overlay)
}

func TestJournalRecordsTimeout(t *testing.T) {
	store := newStore(t)
	j := NewJournal(store, nil, nil)

	res := run(t, j, logtail.Lines{"Starting build"}, watcher.Options{PollInterval: 5 * time.Millisecond, MaxWait: 20 * time.Millisecond})
	assert.Equal(t, step.StatusTimeout, res.Status)

	events, err := store.GetBySessionID(t.Context(), res.SessionID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, eventstore.TypeTimeout, events[1].Type())
}

func TestJournalPublishFailureIsNotFatal(t *testing.T) {
	pub := &capturePublisher{err: stderrors.New("broker down")}
	res := run(t, NewJournal(nil, nil, pub), logtail.Lines{"BUILD SUCCESSFUL"}, watcher.Options{})

	assert.True(t, res.IsSuccess())
	assert.Len(t, pub.events, 1)
}

func TestVerdictEventFor(t *testing.T) {
	v := watcher.Verdict{Kind: watcher.KindFailure, Reason: watcher.ReasonErrorDetected, Line: "ERROR x"}
	end := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := &step.Result{
		SessionID: "s1",
		Status:    step.StatusFailure,
		Verdict:   &v,
		Reason:    v.Reason,
		Polls:     2,
		Duration:  1500 * time.Millisecond,
		EndTime:   end,
	}

	e := VerdictEventFor(r, eventstore.SessionStartedMeta{JDK: "jdk-21"})
	assert.Equal(t, "ERROR x", e.Line)
	assert.Equal(t, "jdk-21", e.JDK)
	assert.Equal(t, int64(1500), e.DurationMS)
	assert.Equal(t, end, e.Timestamp)
}
