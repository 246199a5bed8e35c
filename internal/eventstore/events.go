package eventstore

import (
	"encoding/json"
	"time"

	"git.home.luguber.info/inful/withgradle/internal/foundation/errors"
)

// Event type names.
const (
	TypeSessionStarted = "session_started"
	TypeVerdict        = "verdict"
	TypeTimeout        = "timeout"
	TypeCanceled       = "canceled"
	TypeWatchFailed    = "watch_failed"
)

// OutcomeTypes lists the event types that end a session.
func OutcomeTypes() []string {
	return []string{TypeVerdict, TypeTimeout, TypeCanceled, TypeWatchFailed}
}

// SessionStartedMeta describes how a session was set up.
type SessionStartedMeta struct {
	Gradle  string            `json:"gradle,omitempty"`
	JDK     string            `json:"jdk,omitempty"`
	Overlay map[string]string `json:"overlay,omitempty"`
	LogPath string            `json:"log_path,omitempty"`
}

// SessionStarted is emitted when the body is launched.
type SessionStarted struct {
	BaseEvent
	Meta SessionStartedMeta `json:"meta"`
}

// NewSessionStarted creates a SessionStarted event.
func NewSessionStarted(sessionID string, meta SessionStartedMeta) (*SessionStarted, error) {
	payload, err := marshalPayload(TypeSessionStarted, sessionID, meta)
	if err != nil {
		return nil, err
	}
	return &SessionStarted{
		BaseEvent: newBase(sessionID, TypeSessionStarted, payload),
		Meta:      meta,
	}, nil
}

// VerdictPayload is the data of a verdict event.
type VerdictPayload struct {
	Verdict    string `json:"verdict"`
	Reason     string `json:"reason,omitempty"`
	Line       string `json:"line,omitempty"`
	BodyError  string `json:"body_error,omitempty"`
	Polls      int    `json:"polls"`
	DurationMS int64  `json:"duration_ms"`
}

// VerdictReached is emitted when the watcher classified the log.
type VerdictReached struct {
	BaseEvent
	VerdictPayload
}

// NewVerdictReached creates a VerdictReached event.
func NewVerdictReached(sessionID string, p VerdictPayload) (*VerdictReached, error) {
	payload, err := marshalPayload(TypeVerdict, sessionID, p)
	if err != nil {
		return nil, err
	}
	return &VerdictReached{BaseEvent: newBase(sessionID, TypeVerdict, payload), VerdictPayload: p}, nil
}

// EndPayload is the data of sessions that ended without a verdict.
type EndPayload struct {
	Error      string `json:"error,omitempty"`
	MaxWait    string `json:"max_wait,omitempty"`
	Polls      int    `json:"polls"`
	DurationMS int64  `json:"duration_ms"`
}

// WatchEnded is emitted for timeout, canceled and watch_failed outcomes.
type WatchEnded struct {
	BaseEvent
	EndPayload
}

// NewWatchTimedOut creates a timeout event.
func NewWatchTimedOut(sessionID string, p EndPayload) (*WatchEnded, error) {
	return newWatchEnded(sessionID, TypeTimeout, p)
}

// NewWatchCanceled creates a canceled event.
func NewWatchCanceled(sessionID string, p EndPayload) (*WatchEnded, error) {
	return newWatchEnded(sessionID, TypeCanceled, p)
}

// NewWatchFailed creates a watch_failed event.
func NewWatchFailed(sessionID string, p EndPayload) (*WatchEnded, error) {
	return newWatchEnded(sessionID, TypeWatchFailed, p)
}

func newWatchEnded(sessionID, eventType string, p EndPayload) (*WatchEnded, error) {
	payload, err := marshalPayload(eventType, sessionID, p)
	if err != nil {
		return nil, err
	}
	return &WatchEnded{BaseEvent: newBase(sessionID, eventType, payload), EndPayload: p}, nil
}

// DecodePayload unmarshals an event payload into v.
func DecodePayload(e Event, v any) error {
	if err := json.Unmarshal(e.Payload(), v); err != nil {
		return errors.WrapError(err, errors.CategoryEventStore, ErrUnmarshalPayloadFailed.Message()).
			WithContext("session_id", e.SessionID()).
			WithContext("event_type", e.Type()).
			Build()
	}
	return nil
}

func newBase(sessionID, eventType string, payload []byte) BaseEvent {
	return BaseEvent{
		EventSessionID: sessionID,
		EventType:      eventType,
		EventTimestamp: time.Now(),
		EventPayload:   payload,
	}
}

func marshalPayload(eventType, sessionID string, v any) ([]byte, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryEventStore, ErrMarshalPayloadFailed.Message()).
			WithContext("session_id", sessionID).
			WithContext("event_type", eventType).
			Build()
	}
	return payload, nil
}
