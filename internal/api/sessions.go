package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"git.home.luguber.info/inful/withgradle/internal/eventstore"
	ferrors "git.home.luguber.info/inful/withgradle/internal/foundation/errors"
)

// SessionList is the body of GET /sessions.
type SessionList struct {
	Active  []*eventstore.SessionSummary `json:"active"`
	History []*eventstore.SessionSummary `json:"history"`
}

func (s *Server) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	list := SessionList{
		Active:  []*eventstore.SessionSummary{},
		History: []*eventstore.SessionSummary{},
	}
	if p := s.opts.Projection; p != nil {
		if active := p.GetActive(); active != nil {
			list.Active = active
		}
		list.History = p.GetHistory()
	}
	s.Success(w, http.StatusOK, list)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	summary, err := s.lookupSession(r, id)
	if err != nil {
		s.errs.WriteErrorResponse(w, r, err)
		return
	}
	s.Success(w, http.StatusOK, summary)
}

// lookupSession prefers the live projection and falls back to the store.
func (s *Server) lookupSession(r *http.Request, id string) (*eventstore.SessionSummary, error) {
	if p := s.opts.Projection; p != nil {
		if summary, ok := p.GetSession(id); ok {
			return summary, nil
		}
	}
	if s.opts.Store != nil {
		return eventstore.LoadSession(r.Context(), s.opts.Store, id)
	}
	return nil, eventstore.ErrSessionNotFound.WithContext("session_id", id)
}

const defaultOutcomeLimit = 20

// outcomeReader is implemented by stores that index session-ending events.
type outcomeReader interface {
	RecentOutcomes(ctx context.Context, limit int) ([]eventstore.Event, error)
}

// Outcome is one entry of GET /outcomes.
type Outcome struct {
	SessionID string          `json:"session_id"`
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

func (s *Server) handleListOutcomes(w http.ResponseWriter, r *http.Request) {
	reader, ok := s.opts.Store.(outcomeReader)
	if !ok {
		s.Success(w, http.StatusOK, []Outcome{})
		return
	}
	limit := defaultOutcomeLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.errs.WriteErrorResponse(w, r, ferrors.ValidationError("limit must be a non-negative integer").
				WithContext("limit", raw).
				Build())
			return
		}
		limit = n
	}

	events, err := reader.RecentOutcomes(r.Context(), limit)
	if err != nil {
		s.errs.WriteErrorResponse(w, r, err)
		return
	}
	out := make([]Outcome, 0, len(events))
	for _, e := range events {
		out = append(out, Outcome{
			SessionID: e.SessionID(),
			Type:      e.Type(),
			Timestamp: e.Timestamp(),
			Payload:   json.RawMessage(e.Payload()),
		})
	}
	s.Success(w, http.StatusOK, out)
}
