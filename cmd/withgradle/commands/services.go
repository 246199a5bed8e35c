package commands

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/withgradle/internal/api"
	"git.home.luguber.info/inful/withgradle/internal/config"
	"git.home.luguber.info/inful/withgradle/internal/eventstore"
	"git.home.luguber.info/inful/withgradle/internal/history"
	"git.home.luguber.info/inful/withgradle/internal/logfields"
	"git.home.luguber.info/inful/withgradle/internal/metrics"
	"git.home.luguber.info/inful/withgradle/internal/notify"
)

const shutdownTimeout = 10 * time.Second

// services holds the optional collaborators a session reports to. Every
// field may be nil when its config section is disabled.
type services struct {
	store      eventstore.Store
	projection *eventstore.SessionHistoryProjection
	registry   *prometheus.Registry
	recorder   metrics.Recorder
	nats       *notify.NATSPublisher
	server     *api.Server
	serveErr   chan error
}

type serviceOptions struct {
	// serve forces the HTTP listener regardless of metrics.enabled.
	serve bool
	// events forces the event store regardless of events.enabled.
	events bool
}

func openServices(ctx context.Context, cfg *config.Config, opts serviceOptions) (*services, error) {
	s := &services{
		registry: metrics.NewRegistry(),
		recorder: metrics.NoopRecorder{},
	}

	if cfg.Events.Enabled || opts.events {
		store, err := eventstore.NewSQLiteStore(cfg.Events.Path)
		if err != nil {
			return nil, err
		}
		s.store = store
		s.projection = eventstore.NewSessionHistoryProjection(store, cfg.Events.HistorySize)
		if err := s.projection.Rebuild(ctx); err != nil {
			_ = store.Close()
			return nil, err
		}
		slog.Debug("Event store opened", logfields.Path(cfg.Events.Path))
	}

	if cfg.NATS.Enabled {
		pub, err := notify.NewNATSPublisher(notify.Config{
			URL:       cfg.NATS.URL,
			Subject:   cfg.NATS.Subject,
			JetStream: cfg.NATS.JetStream,
			KVBucket:  cfg.NATS.KVBucket,
			Timeout:   cfg.NATSTimeout(),
		})
		if err != nil {
			// Publishing is best effort; the verdict still decides the exit code.
			slog.Warn("NATS unavailable, verdicts will not be published", logfields.Error(err))
		} else {
			s.nats = pub
		}
	}

	if cfg.Metrics.Enabled || opts.serve {
		s.recorder = metrics.NewPrometheusRecorder(s.registry)
		s.server = api.NewServer(cfg.Metrics.Listen, api.Options{
			Projection: s.projection,
			Store:      s.store,
			Metrics:    metrics.HTTPHandler(s.registry),
		})
		s.serveErr = make(chan error, 1)
		go func() {
			slog.Info("HTTP server listening", logfields.Addr(cfg.Metrics.Listen))
			err := s.server.Start()
			if stderrors.Is(err, http.ErrServerClosed) {
				err = nil
			}
			s.serveErr <- err
		}()
	}
	return s, nil
}

// publisher fans verdicts out to NATS and live HTTP subscribers.
func (s *services) publisher() notify.Publisher {
	var m notify.Multi
	if s.nats != nil {
		m = append(m, s.nats)
	}
	if s.server != nil {
		m = append(m, s.server.Events())
	}
	return m
}

// journal returns the step observer recording into the available services.
func (s *services) journal(logPath string) *history.Journal {
	return history.NewJournal(s.store, s.projection, s.publisher()).WithLogPath(logPath)
}

func (s *services) Close() {
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := s.server.Shutdown(ctx); err != nil {
			slog.Warn("HTTP server shutdown failed", logfields.Error(err))
		}
		cancel()
		if err := <-s.serveErr; err != nil {
			slog.Warn("HTTP server stopped with error", logfields.Error(err))
		}
	}
	if s.nats != nil {
		if err := s.nats.Close(); err != nil {
			slog.Warn("NATS close failed", logfields.Error(err))
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			slog.Warn("Event store close failed", logfields.Error(err))
		}
	}
}
