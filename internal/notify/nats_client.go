package notify

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"git.home.luguber.info/inful/withgradle/internal/foundation/errors"
	"git.home.luguber.info/inful/withgradle/internal/logfields"
)

// Config configures NATSPublisher.
type Config struct {
	URL     string
	Subject string
	// JetStream publishes with acknowledgement and keeps the latest verdict
	// per session in the KVBucket key-value store.
	JetStream bool
	KVBucket  string
	Timeout   time.Duration
}

// NATSPublisher publishes verdict events to NATS.
type NATSPublisher struct {
	conn    *nats.Conn
	js      jetstream.JetStream
	kv      jetstream.KeyValue
	subject string
	timeout time.Duration
}

// NewNATSPublisher connects to cfg.URL.
func NewNATSPublisher(cfg Config) (*NATSPublisher, error) {
	if cfg.URL == "" {
		return nil, errors.ConfigError("nats url is required").Build()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	conn, err := nats.Connect(cfg.URL, nats.Name("withgradle"), nats.Timeout(cfg.Timeout))
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryMessaging, "failed to connect to NATS").
			WithContext("url", cfg.URL).
			Build()
	}

	p := &NATSPublisher{conn: conn, subject: cfg.Subject, timeout: cfg.Timeout}
	if cfg.JetStream {
		if err := p.initJetStream(cfg.KVBucket); err != nil {
			conn.Close()
			return nil, err
		}
	}

	slog.Info("NATS publisher initialized",
		slog.String("url", cfg.URL),
		logfields.Subject(cfg.Subject),
		slog.Bool("jetstream", cfg.JetStream))
	return p, nil
}

func (p *NATSPublisher) initJetStream(bucket string) error {
	js, err := jetstream.New(p.conn)
	if err != nil {
		return errors.WrapError(err, errors.CategoryMessaging, "failed to create JetStream context").Build()
	}
	p.js = js
	if bucket == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*p.timeout)
	defer cancel()

	kv, err := js.KeyValue(ctx, bucket)
	if err == nil {
		p.kv = kv
		return nil
	}
	kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "Latest withgradle verdict per watch session",
		History:     1,
	})
	if err != nil {
		return errors.WrapError(err, errors.CategoryMessaging, "failed to create KV bucket").
			WithContext("bucket", bucket).
			Build()
	}
	p.kv = kv
	slog.Info("Created KV bucket for verdicts", slog.String("bucket", bucket))
	return nil
}

// Publish implements Publisher.
func (p *NATSPublisher) Publish(ctx context.Context, e *VerdictEvent) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return errors.WrapError(err, errors.CategoryMessaging, "failed to marshal verdict event").Build()
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	subject := SubjectFor(p.subject, e)
	if p.js != nil {
		if _, err := p.js.Publish(ctx, subject, data); err != nil {
			return p.publishError(err, subject)
		}
		if p.kv != nil {
			if _, err := p.kv.Put(ctx, e.SessionID, data); err != nil {
				return p.publishError(err, subject)
			}
		}
	} else {
		if err := p.conn.Publish(subject, data); err != nil {
			return p.publishError(err, subject)
		}
		if err := p.conn.FlushWithContext(ctx); err != nil {
			return p.publishError(err, subject)
		}
	}

	slog.Debug("Published verdict event",
		logfields.SessionID(e.SessionID),
		logfields.Subject(subject),
		logfields.Verdict(e.Status))
	return nil
}

// LastVerdict reads the latest stored verdict for a session. It returns nil
// without error when none is stored or no KV bucket is configured.
func (p *NATSPublisher) LastVerdict(ctx context.Context, sessionID string) (*VerdictEvent, error) {
	if p.kv == nil {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	entry, err := p.kv.Get(ctx, sessionID)
	if err != nil {
		if stderrors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, errors.WrapError(err, errors.CategoryMessaging, "failed to read verdict").Build()
	}
	var e VerdictEvent
	if err := json.Unmarshal(entry.Value(), &e); err != nil {
		return nil, errors.WrapError(err, errors.CategoryMessaging, "failed to unmarshal verdict").Build()
	}
	return &e, nil
}

func (p *NATSPublisher) publishError(err error, subject string) error {
	return errors.WrapError(err, errors.CategoryMessaging, "failed to publish verdict event").
		WithContext("subject", subject).
		Build()
}

// Close drains and closes the connection.
func (p *NATSPublisher) Close() error {
	if p.conn == nil {
		return nil
	}
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
		return errors.WrapError(err, errors.CategoryMessaging, "failed to drain NATS connection").Build()
	}
	return nil
}
