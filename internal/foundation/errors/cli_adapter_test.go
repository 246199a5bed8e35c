package errors

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestCLIErrorAdapter_ExitCodeFor(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, slog.Default())

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{name: "nil error", err: nil, expected: 0},
		{name: "validation error", err: ValidationError("no body").Build(), expected: 2},
		{name: "config error", err: ConfigError("bad config").Build(), expected: 7},
		{name: "build failure", err: BuildError("build marked as failed").Build(), expected: 11},
		{name: "timeout", err: TimeoutError("max wait exceeded").Build(), expected: 124},
		{name: "canceled", err: CanceledError("stopped").Build(), expected: 130},
		{name: "unclassified error", err: errors.New("unknown error"), expected: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := adapter.ExitCodeFor(tt.err); got != tt.expected {
				t.Errorf("expected exit code %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestCLIErrorAdapter_HandleError(t *testing.T) {
	var logs, out bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	adapter := NewCLIErrorAdapter(false, logger)
	adapter.out = &out
	code := -1
	adapter.exit = func(c int) { code = c }

	adapter.HandleError(ValidationError("no body to invoke").Fatal().Build())

	if code != 2 {
		t.Fatalf("expected exit code 2, got %d", code)
	}
	if !strings.Contains(out.String(), "no body to invoke") {
		t.Errorf("expected message on output, got %q", out.String())
	}
	if !strings.Contains(logs.String(), "category=validation") {
		t.Errorf("expected fatal error to be logged, got %q", logs.String())
	}
}

func TestCLIErrorAdapter_FormatVerbose(t *testing.T) {
	err := WrapError(errors.New("disk full"), CategoryEventStore, "append failed").Build()

	quiet := NewCLIErrorAdapter(false, nil).FormatError(err)
	loud := NewCLIErrorAdapter(true, nil).FormatError(err)

	if strings.Contains(quiet, "disk full") {
		t.Errorf("non-verbose output should hide the cause, got %q", quiet)
	}
	if !strings.Contains(loud, "disk full") {
		t.Errorf("verbose output should include the cause, got %q", loud)
	}
}
