// Package notify publishes watch session outcomes to NATS.
package notify

import (
	"strings"
	"time"
)

// VerdictEvent is published once per finished watch session.
type VerdictEvent struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"` // success, failure, timeout, canceled, error
	Reason    string `json:"reason,omitempty"`
	Line      string `json:"line,omitempty"` // log line that produced a failure verdict

	// Tool context
	Gradle  string            `json:"gradle,omitempty"`
	JDK     string            `json:"jdk,omitempty"`
	Overlay map[string]string `json:"overlay,omitempty"`

	Polls      int       `json:"polls"`
	DurationMS int64     `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

// SubjectFor returns the subject an event is published on: base followed by
// the status, e.g. "withgradle.verdicts.failure".
func SubjectFor(base string, e *VerdictEvent) string {
	base = strings.TrimSuffix(base, ".")
	status := e.Status
	if status == "" {
		status = "unknown"
	}
	if base == "" {
		return status
	}
	return base + "." + status
}
