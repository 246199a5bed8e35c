package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"git.home.luguber.info/inful/withgradle/internal/logfields"
	"git.home.luguber.info/inful/withgradle/internal/notify"
)

// SessionEvent is one message on a session event stream.
type SessionEvent struct {
	Type      string    `json:"type"` // connected, idle, or a session status
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message,omitempty"`
	Data      any       `json:"data,omitempty"`
}

func (e SessionEvent) terminal() bool {
	switch e.Type {
	case "success", "failure", "timeout", "canceled", "error":
		return true
	default:
		return false
	}
}

// EventSubscriber manages per-session event subscriptions.
type EventSubscriber struct {
	subscribers map[string][]chan SessionEvent
	mu          sync.RWMutex
}

// NewEventSubscriber creates a new event subscriber.
func NewEventSubscriber() *EventSubscriber {
	return &EventSubscriber{
		subscribers: make(map[string][]chan SessionEvent),
	}
}

var _ notify.Publisher = (*EventSubscriber)(nil)

// Subscribe creates a subscription channel for a session's events.
// Returns a channel that will receive events and a function to unsubscribe.
func (es *EventSubscriber) Subscribe(sessionID string) (chan SessionEvent, func()) {
	es.mu.Lock()
	defer es.mu.Unlock()

	ch := make(chan SessionEvent, 10)
	es.subscribers[sessionID] = append(es.subscribers[sessionID], ch)

	unsubscribe := func() {
		es.mu.Lock()
		defer es.mu.Unlock()

		subs := es.subscribers[sessionID]
		for i, sub := range subs {
			if sub == ch {
				es.subscribers[sessionID] = append(subs[:i], subs[i+1:]...)
				close(ch)
				break
			}
		}
		if len(es.subscribers[sessionID]) == 0 {
			delete(es.subscribers, sessionID)
		}
	}

	return ch, unsubscribe
}

// Broadcast sends an event to all subscribers of its session.
func (es *EventSubscriber) Broadcast(event SessionEvent) {
	es.mu.RLock()
	defer es.mu.RUnlock()

	for _, ch := range es.subscribers[event.SessionID] {
		select {
		case ch <- event:
		default:
			slog.Warn("Event channel full, dropping event", logfields.SessionID(event.SessionID))
		}
	}
}

// Publish implements notify.Publisher so verdicts reach live streams.
func (es *EventSubscriber) Publish(_ context.Context, e *notify.VerdictEvent) error {
	es.Broadcast(SessionEvent{
		Type:      e.Status,
		SessionID: e.SessionID,
		Timestamp: e.Timestamp,
		Message:   e.Reason,
		Data:      e,
	})
	return nil
}

// Close implements notify.Publisher.
func (es *EventSubscriber) Close() error { return nil }

// GetSubscriberCount returns the number of active subscriptions for a session.
func (es *EventSubscriber) GetSubscriberCount(sessionID string) int {
	es.mu.RLock()
	defer es.mu.RUnlock()
	return len(es.subscribers[sessionID])
}

// streamIdleTimeout closes a stream that received nothing for this long.
var streamIdleTimeout = 60 * time.Second

// HandleSessionEvents streams a session's events as server-sent events. A
// session that already ended gets its summary as the only event.
func (s *Server) HandleSessionEvents() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := chi.URLParam(r, "id")

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")

		eventCh, unsubscribe := s.events.Subscribe(sessionID)
		defer unsubscribe()

		s.sendSSEEvent(w, SessionEvent{
			Type:      "connected",
			SessionID: sessionID,
			Timestamp: time.Now(),
			Message:   "Connected to session event stream",
		})

		if p := s.opts.Projection; p != nil {
			if summary, ok := p.GetSession(sessionID); ok && summary.Done() {
				s.sendSSEEvent(w, SessionEvent{
					Type:      summary.Status,
					SessionID: sessionID,
					Timestamp: time.Now(),
					Message:   summary.Reason,
					Data:      summary,
				})
				return
			}
		}

		done := r.Context().Done()
		timeout := time.After(streamIdleTimeout)
		for {
			select {
			case <-done:
				slog.Debug("Session event stream closed (client disconnect)", logfields.SessionID(sessionID))
				return

			case <-timeout:
				s.sendSSEEvent(w, SessionEvent{
					Type:      "idle",
					SessionID: sessionID,
					Timestamp: time.Now(),
					Message:   "No events received within timeout period",
				})
				return

			case event, ok := <-eventCh:
				if !ok {
					return
				}
				s.sendSSEEvent(w, event)
				timeout = time.After(streamIdleTimeout)
				if event.terminal() {
					return
				}
			}
		}
	}
}

// sendSSEEvent sends an event in SSE format.
func (s *Server) sendSSEEvent(w http.ResponseWriter, event SessionEvent) {
	eventJSON, err := json.Marshal(event)
	if err != nil {
		slog.Error("Failed to marshal SSE event", logfields.Error(err))
		return
	}

	_, _ = fmt.Fprintf(w, "data: %s\n\n", eventJSON)

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}
