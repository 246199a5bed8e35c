package eventstore

import (
	"context"
	"time"
)

// Store defines the interface for persisting and retrieving events.
type Store interface {
	// Append adds a new event to the store.
	Append(ctx context.Context, sessionID, eventType string, payload []byte, metadata map[string]string) error

	// GetBySessionID retrieves all events of one watch session, oldest first.
	GetBySessionID(ctx context.Context, sessionID string) ([]Event, error)

	// GetRange retrieves events recorded within [start, end].
	GetRange(ctx context.Context, start, end time.Time) ([]Event, error)

	// Close closes the store and releases resources.
	Close() error
}

// AppendEvent stores a typed event.
func AppendEvent(ctx context.Context, s Store, e Event) error {
	return s.Append(ctx, e.SessionID(), e.Type(), e.Payload(), e.Metadata())
}

// LoadSession replays one session's events from s into a summary. It returns
// ErrSessionNotFound, carrying the id, when nothing was recorded.
func LoadSession(ctx context.Context, s Store, sessionID string) (*SessionSummary, error) {
	events, err := s.GetBySessionID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, ErrSessionNotFound.WithContext("session_id", sessionID)
	}
	return Summarize(events)
}
