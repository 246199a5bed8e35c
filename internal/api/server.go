// Package api serves session history, live verdict streams and metrics over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"git.home.luguber.info/inful/withgradle/internal/eventstore"
	ferrors "git.home.luguber.info/inful/withgradle/internal/foundation/errors"
)

// Options wire the server to its data sources. All fields are optional.
type Options struct {
	Projection *eventstore.SessionHistoryProjection
	Store      eventstore.Store
	// Metrics serves /metrics; 404 when nil.
	Metrics http.Handler
}

// Server represents the API server.
type Server struct {
	Addr   string
	router *chi.Mux
	server *http.Server
	events *EventSubscriber
	opts   Options
	errs   *ferrors.HTTPErrorAdapter
}

// NewServer creates a new API server.
func NewServer(addr string, opts Options) *Server {
	s := &Server{
		Addr:   addr,
		router: chi.NewRouter(),
		events: NewEventSubscriber(),
		opts:   opts,
		errs:   ferrors.NewHTTPErrorAdapter(nil),
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return s
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/health", s.handleHealth)

	s.router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))
		r.Get("/metrics", s.handleMetrics)
		r.Get("/sessions", s.handleListSessions)
		r.Get("/sessions/{id}", s.handleGetSession)
		r.Get("/outcomes", s.handleListOutcomes)
	})

	// Streams stay open until the verdict arrives, so no request timeout.
	s.router.Get("/sessions/{id}/events", s.HandleSessionEvents())
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler { return s.router }

// Events returns the live event hub. It implements notify.Publisher.
func (s *Server) Events() *EventSubscriber { return s.events }

// Start starts the API server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Response represents a standard API response.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Success writes a success response.
func (s *Server) Success(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	resp := Response{
		Success: true,
		Data:    data,
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.opts.Metrics == nil {
		http.NotFound(w, r)
		return
	}
	s.opts.Metrics.ServeHTTP(w, r)
}
