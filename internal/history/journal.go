// Package history records step sessions in the event store and announces
// their outcomes.
package history

import (
	"context"
	"log/slog"
	"sync"

	"git.home.luguber.info/inful/withgradle/internal/eventstore"
	"git.home.luguber.info/inful/withgradle/internal/logfields"
	"git.home.luguber.info/inful/withgradle/internal/notify"
	"git.home.luguber.info/inful/withgradle/internal/observability"
	"git.home.luguber.info/inful/withgradle/internal/step"
)

// Journal implements step.Observer. Store, projection and publisher are all
// optional. Recording failures are logged and never change the step outcome.
type Journal struct {
	store      eventstore.Store
	projection *eventstore.SessionHistoryProjection
	publisher  notify.Publisher
	logPath    string

	mu      sync.Mutex
	started map[string]eventstore.SessionStartedMeta
}

// NewJournal creates a journal.
func NewJournal(store eventstore.Store, projection *eventstore.SessionHistoryProjection, publisher notify.Publisher) *Journal {
	if publisher == nil {
		publisher = notify.NoopPublisher{}
	}
	return &Journal{
		store:      store,
		projection: projection,
		publisher:  publisher,
		started:    make(map[string]eventstore.SessionStartedMeta),
	}
}

// WithLogPath records the watched log file with each session.
func (j *Journal) WithLogPath(path string) *Journal {
	j.logPath = path
	return j
}

var _ step.Observer = (*Journal)(nil)

// SessionStarted implements step.Observer.
func (j *Journal) SessionStarted(ctx context.Context, s step.Started) {
	meta := eventstore.SessionStartedMeta{
		Gradle:  s.Gradle,
		JDK:     s.JDK,
		Overlay: s.Overlay,
		LogPath: j.logPath,
	}
	j.mu.Lock()
	j.started[s.SessionID] = meta
	j.mu.Unlock()

	e, err := eventstore.NewSessionStarted(s.SessionID, meta)
	j.record(ctx, e, err)
}

// SessionFinished implements step.Observer.
func (j *Journal) SessionFinished(ctx context.Context, r *step.Result) {
	e, err := outcomeEvent(r)
	j.record(ctx, e, err)

	j.mu.Lock()
	meta := j.started[r.SessionID]
	delete(j.started, r.SessionID)
	j.mu.Unlock()

	event := VerdictEventFor(r, meta)
	if err := j.publisher.Publish(ctx, event); err != nil {
		observability.WarnContext(ctx, "Failed to publish verdict event", logfields.Error(err))
	}
}

func (j *Journal) record(ctx context.Context, e eventstore.Event, err error) {
	if err != nil {
		observability.WarnContext(ctx, "Failed to build session event", logfields.Error(err))
		return
	}
	if j.store != nil {
		if err := eventstore.AppendEvent(ctx, j.store, e); err != nil {
			observability.WarnContext(ctx, "Failed to record session event",
				slog.String("event_type", e.Type()), logfields.Error(err))
		}
	}
	if j.projection != nil {
		j.projection.Apply(e)
	}
}

func outcomeEvent(r *step.Result) (eventstore.Event, error) {
	end := eventstore.EndPayload{
		Error:      r.Reason,
		Polls:      r.Polls,
		DurationMS: r.Duration.Milliseconds(),
	}
	switch r.Status {
	case step.StatusTimeout:
		return eventstore.NewWatchTimedOut(r.SessionID, end)
	case step.StatusCanceled:
		return eventstore.NewWatchCanceled(r.SessionID, end)
	case step.StatusError:
		return eventstore.NewWatchFailed(r.SessionID, end)
	}

	p := eventstore.VerdictPayload{
		Verdict:    string(r.Status),
		Reason:     r.Reason,
		Polls:      r.Polls,
		DurationMS: r.Duration.Milliseconds(),
	}
	if r.Verdict != nil {
		p.Line = r.Verdict.Line
	}
	if r.BodyErr != nil {
		p.BodyError = r.BodyErr.Error()
	}
	return eventstore.NewVerdictReached(r.SessionID, p)
}

// VerdictEventFor converts a step result into the published event.
func VerdictEventFor(r *step.Result, meta eventstore.SessionStartedMeta) *notify.VerdictEvent {
	e := &notify.VerdictEvent{
		SessionID:  r.SessionID,
		Status:     string(r.Status),
		Reason:     r.Reason,
		Gradle:     meta.Gradle,
		JDK:        meta.JDK,
		Overlay:    r.Overlay,
		Polls:      r.Polls,
		DurationMS: r.Duration.Milliseconds(),
		Timestamp:  r.EndTime,
	}
	if r.Verdict != nil {
		e.Line = r.Verdict.Line
	}
	return e
}
