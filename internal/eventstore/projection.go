// Package eventstore records watch sessions as an append-only event log
// and projects them into a session history.
package eventstore

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Session statuses, matching step outcomes plus "running".
const (
	StatusRunning  = "running"
	StatusTimeout  = "timeout"
	StatusCanceled = "canceled"
	StatusError    = "error"
)

// SessionSummary is a read model of one watch session.
type SessionSummary struct {
	SessionID   string            `json:"session_id"`
	Status      string            `json:"status"` // running, success, failure, timeout, canceled, error
	Gradle      string            `json:"gradle,omitempty"`
	JDK         string            `json:"jdk,omitempty"`
	Overlay     map[string]string `json:"overlay,omitempty"`
	LogPath     string            `json:"log_path,omitempty"`
	StartedAt   time.Time         `json:"started_at"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
	Duration    time.Duration     `json:"duration,omitempty"`
	Reason      string            `json:"reason,omitempty"`
	Line        string            `json:"line,omitempty"`
	Polls       int               `json:"polls"`
}

// Done reports whether the session has ended.
func (s *SessionSummary) Done() bool { return s.Status != StatusRunning }

// SessionHistoryProjection maintains an in-memory view of session history,
// reconstructed from events stored in the event store.
type SessionHistoryProjection struct {
	mu       sync.RWMutex
	store    Store
	sessions map[string]*SessionSummary
	history  []*SessionSummary // completed, newest first
	maxSize  int
	lastSync time.Time
}

// NewSessionHistoryProjection creates a new projection backed by the given store.
func NewSessionHistoryProjection(store Store, maxHistorySize int) *SessionHistoryProjection {
	if maxHistorySize <= 0 {
		maxHistorySize = 100
	}
	return &SessionHistoryProjection{
		store:    store,
		sessions: make(map[string]*SessionSummary),
		history:  make([]*SessionSummary, 0, maxHistorySize),
		maxSize:  maxHistorySize,
	}
}

// Rebuild reconstructs the projection from all events in the store.
func (p *SessionHistoryProjection) Rebuild(ctx context.Context) error {
	events, err := p.store.GetRange(ctx, time.Time{}, time.Now().Add(time.Hour))
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.sessions = make(map[string]*SessionSummary)
	p.history = make([]*SessionSummary, 0, p.maxSize)
	for _, event := range events {
		p.applyEventLocked(event)
	}

	sort.SliceStable(p.history, func(i, j int) bool {
		return p.history[i].StartedAt.After(p.history[j].StartedAt)
	})
	if len(p.history) > p.maxSize {
		p.history = p.history[:p.maxSize]
	}
	p.pruneLocked()

	p.lastSync = time.Now()
	return nil
}

// Apply processes a single event and updates the projection.
func (p *SessionHistoryProjection) Apply(event Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applyEventLocked(event)
}

func (p *SessionHistoryProjection) applyEventLocked(event Event) {
	id := event.SessionID()
	if id == "" {
		return
	}

	summary, exists := p.sessions[id]
	if !exists {
		summary = &SessionSummary{SessionID: id, Status: StatusRunning, StartedAt: event.Timestamp()}
		p.sessions[id] = summary
	}
	if summary.Done() {
		// A session has exactly one outcome; later events are ignored.
		return
	}

	switch event.Type() {
	case TypeSessionStarted:
		var meta SessionStartedMeta
		if err := DecodePayload(event, &meta); err == nil {
			summary.Gradle = meta.Gradle
			summary.JDK = meta.JDK
			summary.Overlay = meta.Overlay
			summary.LogPath = meta.LogPath
		}
		summary.StartedAt = event.Timestamp()

	case TypeVerdict:
		var v VerdictPayload
		if err := DecodePayload(event, &v); err == nil {
			summary.Status = v.Verdict
			summary.Reason = v.Reason
			summary.Line = v.Line
			summary.Polls = v.Polls
			if summary.Reason == "" && v.BodyError != "" {
				summary.Reason = v.BodyError
			}
		}
		p.completeLocked(summary, event.Timestamp())

	case TypeTimeout, TypeCanceled, TypeWatchFailed:
		var end EndPayload
		if err := DecodePayload(event, &end); err == nil {
			summary.Reason = end.Error
			summary.Polls = end.Polls
		}
		summary.Status = statusForEnd(event.Type())
		p.completeLocked(summary, event.Timestamp())
	}
}

func statusForEnd(eventType string) string {
	switch eventType {
	case TypeTimeout:
		return StatusTimeout
	case TypeCanceled:
		return StatusCanceled
	default:
		return StatusError
	}
}

func (p *SessionHistoryProjection) completeLocked(summary *SessionSummary, at time.Time) {
	if summary.Status == "" || summary.Status == StatusRunning {
		summary.Status = StatusError
	}
	summary.CompletedAt = &at
	summary.Duration = at.Sub(summary.StartedAt)

	p.history = append([]*SessionSummary{summary}, p.history...)
	if len(p.history) > p.maxSize {
		p.history = p.history[:p.maxSize]
	}
	p.pruneLocked()
}

// pruneLocked drops completed sessions that fell out of the bounded history.
func (p *SessionHistoryProjection) pruneLocked() {
	keep := make(map[string]struct{}, len(p.history))
	for _, h := range p.history {
		keep[h.SessionID] = struct{}{}
	}
	for id, summary := range p.sessions {
		if !summary.Done() {
			continue
		}
		if _, ok := keep[id]; !ok {
			delete(p.sessions, id)
		}
	}
}

// GetHistory returns completed sessions, newest first.
func (p *SessionHistoryProjection) GetHistory() []*SessionSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()

	result := make([]*SessionSummary, len(p.history))
	for i, s := range p.history {
		cp := *s
		result[i] = &cp
	}
	return result
}

// GetSession returns the summary for a specific session.
func (p *SessionHistoryProjection) GetSession(sessionID string) (*SessionSummary, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	summary, exists := p.sessions[sessionID]
	if !exists {
		return nil, false
	}
	cp := *summary
	return &cp, true
}

// GetActive returns sessions that are still waiting for a verdict.
func (p *SessionHistoryProjection) GetActive() []*SessionSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var active []*SessionSummary
	for _, summary := range p.sessions {
		if !summary.Done() {
			cp := *summary
			active = append(active, &cp)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].StartedAt.Before(active[j].StartedAt) })
	return active
}

// LastSyncTime returns when the projection was last rebuilt.
func (p *SessionHistoryProjection) LastSyncTime() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastSync
}

// Summarize folds the events of one session into a summary without a
// projection. It returns ErrSessionNotFound when events is empty.
func Summarize(events []Event) (*SessionSummary, error) {
	if len(events) == 0 {
		return nil, ErrSessionNotFound
	}
	p := NewSessionHistoryProjection(nil, 1)
	for _, e := range events {
		p.applyEventLocked(e)
	}
	summary, _ := p.GetSession(events[0].SessionID())
	if summary == nil {
		return nil, ErrSessionNotFound
	}
	return summary, nil
}
