package eventstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// schemaVersion is stored in PRAGMA user_version.
const schemaVersion = 1

// Statements run once when a store is opened. The session index covers the
// per-session replay; the outcome index covers every event that ends a session.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		payload BLOB NOT NULL,
		metadata TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id, id)`,
	`CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp)`,
	fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_events_outcome ON events(timestamp) WHERE event_type IN (%s)`,
		quoteList(OutcomeTypes())),
	fmt.Sprintf(`PRAGMA user_version = %d`, schemaVersion),
}

const selectColumns = "SELECT id, session_id, event_type, timestamp, payload, metadata FROM events"

// SQLiteStore is the session journal. Reads may run concurrently; appends are
// serialized.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore opens or creates the journal at dbPath (":memory:" for a
// throwaway journal).
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, wrap(err, ErrDatabaseOpenFailed)
	}
	// Each ":memory:" connection would otherwise see its own database.
	db.SetMaxOpenConns(1)

	for _, stmt := range schemaStatements {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, wrap(err, ErrInitializeSchemaFailed)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// Append records one session event. Timestamps have millisecond resolution and
// a nil payload is stored as "{}".
func (s *SQLiteStore) Append(ctx context.Context, sessionID, eventType string, payload []byte, metadata map[string]string) error {
	var meta []byte
	if metadata != nil {
		encoded, err := json.Marshal(metadata)
		if err != nil {
			return wrap(err, ErrMarshalPayloadFailed)
		}
		meta = encoded
	}
	if payload == nil {
		payload = []byte("{}")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx,
		"INSERT INTO events (session_id, event_type, timestamp, payload, metadata) VALUES (?, ?, ?, ?, ?)",
		sessionID, eventType, time.Now().UnixMilli(), payload, meta,
	); err != nil {
		return wrap(err, ErrEventAppendFailed)
	}
	return nil
}

// GetBySessionID returns one session's events in append order.
func (s *SQLiteStore) GetBySessionID(ctx context.Context, sessionID string) ([]Event, error) {
	return s.selectEvents(ctx, "WHERE session_id = ? ORDER BY id", sessionID)
}

// GetRange returns events recorded within [start, end].
func (s *SQLiteStore) GetRange(ctx context.Context, start, end time.Time) ([]Event, error) {
	return s.selectEvents(ctx, "WHERE timestamp BETWEEN ? AND ? ORDER BY id", start.UnixMilli(), end.UnixMilli())
}

// RecentOutcomes returns up to limit session-ending events, newest first.
// limit <= 0 returns all of them.
func (s *SQLiteStore) RecentOutcomes(ctx context.Context, limit int) ([]Event, error) {
	clause := fmt.Sprintf("WHERE event_type IN (%s) ORDER BY timestamp DESC, id DESC", quoteList(OutcomeTypes()))
	if limit > 0 {
		return s.selectEvents(ctx, clause+" LIMIT ?", limit)
	}
	return s.selectEvents(ctx, clause)
}

func (s *SQLiteStore) selectEvents(ctx context.Context, clause string, args ...any) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, selectColumns+" "+clause, args...)
	if err != nil {
		return nil, wrap(err, ErrEventQueryFailed)
	}
	defer func() { _ = rows.Close() }()

	var events []Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(err, ErrEventScanFailed)
	}
	return events, nil
}

func scanEvent(rows *sql.Rows) (*BaseEvent, error) {
	var (
		e      BaseEvent
		millis int64
		meta   []byte
	)
	if err := rows.Scan(&e.EventID, &e.EventSessionID, &e.EventType, &millis, &e.EventPayload, &meta); err != nil {
		return nil, wrap(err, ErrEventScanFailed)
	}
	e.EventTimestamp = time.UnixMilli(millis)
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &e.EventMetadata); err != nil {
			return nil, wrap(err, ErrUnmarshalPayloadFailed)
		}
	}
	return &e, nil
}

// Close releases the database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

func quoteList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = "'" + strings.ReplaceAll(v, "'", "''") + "'"
	}
	return strings.Join(quoted, ", ")
}
