package eventstore

import (
	"bytes"
	stderrors "errors"
	"testing"
	"time"

	"git.home.luguber.info/inful/withgradle/internal/foundation/errors"
)

const testSessionID = "session-123"

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestEventStoreAppendAndRetrieve(t *testing.T) {
	store := newTestStore(t)
	ctx := t.Context()

	payload := []byte(`{"test": "data"}`)
	metadata := map[string]string{"key": "value"}

	if err := store.Append(ctx, testSessionID, "TestEvent", payload, metadata); err != nil {
		t.Fatalf("failed to append event: %v", err)
	}

	events, err := store.GetBySessionID(ctx, testSessionID)
	if err != nil {
		t.Fatalf("failed to get events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}

	event := events[0]
	if event.ID() == 0 {
		t.Error("expected a store-assigned id")
	}
	if event.SessionID() != testSessionID {
		t.Errorf("expected session_id %s, got %s", testSessionID, event.SessionID())
	}
	if event.Type() != "TestEvent" {
		t.Errorf("expected event_type TestEvent, got %s", event.Type())
	}
	if !bytes.Equal(event.Payload(), payload) {
		t.Errorf("expected payload %s, got %s", payload, event.Payload())
	}
	if event.Metadata()["key"] != "value" {
		t.Errorf("expected metadata key=value, got %v", event.Metadata())
	}
}

func TestEventStoreNilPayload(t *testing.T) {
	store := newTestStore(t)

	if err := store.Append(t.Context(), testSessionID, "Empty", nil, nil); err != nil {
		t.Fatalf("failed to append event: %v", err)
	}
	events, err := store.GetBySessionID(t.Context(), testSessionID)
	if err != nil {
		t.Fatalf("failed to get events: %v", err)
	}
	if string(events[0].Payload()) != "{}" {
		t.Errorf("expected empty JSON object payload, got %q", events[0].Payload())
	}
	if events[0].Metadata() != nil {
		t.Errorf("expected nil metadata, got %v", events[0].Metadata())
	}
}

func TestEventStoreGetBySessionIDFilters(t *testing.T) {
	store := newTestStore(t)
	ctx := t.Context()

	for _, id := range []string{"a", "b", "a"} {
		if err := store.Append(ctx, id, TypeSessionStarted, nil, nil); err != nil {
			t.Fatalf("append %s: %v", id, err)
		}
	}

	events, err := store.GetBySessionID(ctx, "a")
	if err != nil {
		t.Fatalf("failed to get events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events for session a, got %d", len(events))
	}
	if events[0].ID() >= events[1].ID() {
		t.Error("expected events ordered by id")
	}

	none, err := store.GetBySessionID(ctx, "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("expected no events, got %d", len(none))
	}
}

func TestEventStoreGetRange(t *testing.T) {
	store := newTestStore(t)
	ctx := t.Context()

	before := time.Now().Add(-time.Second)
	if err := store.Append(ctx, testSessionID, TypeSessionStarted, nil, nil); err != nil {
		t.Fatalf("append: %v", err)
	}
	after := time.Now().Add(time.Second)

	events, err := store.GetRange(ctx, before, after)
	if err != nil {
		t.Fatalf("failed to get range: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event in range, got %d", len(events))
	}

	events, err = store.GetRange(ctx, after, after.Add(time.Hour))
	if err != nil {
		t.Fatalf("failed to get range: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("expected no events in future range, got %d", len(events))
	}
}

func TestEventStoreClosed(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	_ = store.Close()

	err = store.Append(t.Context(), testSessionID, "x", nil, nil)
	if err == nil {
		t.Fatal("expected append on closed store to fail")
	}
	if !errors.HasCategory(err, errors.CategoryEventStore) {
		t.Errorf("expected eventstore category, got %s", errors.GetCategory(err))
	}
}

func TestAppendEvent(t *testing.T) {
	store := newTestStore(t)
	ctx := t.Context()

	started, err := NewSessionStarted(testSessionID, SessionStartedMeta{Gradle: "Gradle-8"})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	if err := AppendEvent(ctx, store, started); err != nil {
		t.Fatalf("append event: %v", err)
	}

	events, err := store.GetBySessionID(ctx, testSessionID)
	if err != nil {
		t.Fatalf("get events: %v", err)
	}
	if len(events) != 1 || events[0].Type() != TypeSessionStarted {
		t.Fatalf("expected one session_started event, got %v", events)
	}
}

func TestEventStoreRecentOutcomes(t *testing.T) {
	store := newTestStore(t)
	ctx := t.Context()
	must := eventMaker(t)

	for _, e := range []Event{
		must(NewSessionStarted("a", SessionStartedMeta{})),
		must(NewVerdictReached("a", VerdictPayload{Verdict: "success"})),
		must(NewSessionStarted("b", SessionStartedMeta{})),
		must(NewWatchTimedOut("b", EndPayload{Error: "no terminal marker observed before max wait"})),
		must(NewSessionStarted("c", SessionStartedMeta{})),
	} {
		if err := AppendEvent(ctx, store, e); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	all, err := store.RecentOutcomes(ctx, 0)
	if err != nil {
		t.Fatalf("recent outcomes: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 outcome events, got %d", len(all))
	}
	if all[0].SessionID() != "b" || all[0].Type() != TypeTimeout {
		t.Errorf("expected newest outcome first, got %s/%s", all[0].SessionID(), all[0].Type())
	}

	latest, err := store.RecentOutcomes(ctx, 1)
	if err != nil {
		t.Fatalf("recent outcomes: %v", err)
	}
	if len(latest) != 1 || latest[0].SessionID() != "b" {
		t.Errorf("expected only session b, got %v", latest)
	}
}

func TestLoadSession(t *testing.T) {
	store := newTestStore(t)
	ctx := t.Context()
	must := eventMaker(t)

	for _, e := range []Event{
		must(NewSessionStarted(testSessionID, SessionStartedMeta{Gradle: "Gradle-8"})),
		must(NewVerdictReached(testSessionID, VerdictPayload{Verdict: "failure", Reason: "build marked as failed"})),
	} {
		if err := AppendEvent(ctx, store, e); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	summary, err := LoadSession(ctx, store, testSessionID)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	if summary.Gradle != "Gradle-8" || summary.Reason != "build marked as failed" {
		t.Errorf("unexpected summary %+v", summary)
	}

	_, err = LoadSession(ctx, store, "missing")
	if !stderrors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if !errors.HasCategory(err, errors.CategoryNotFound) {
		t.Errorf("expected not_found category, got %s", errors.GetCategory(err))
	}
}
