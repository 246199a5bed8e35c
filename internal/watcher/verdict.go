package watcher

import "strings"

// Kind tags a Verdict.
type Kind string

const (
	KindSuccess Kind = "success"
	KindFailure Kind = "failure"
)

// Verdict is the single outcome of a watch session.
type Verdict struct {
	Kind   Kind
	Reason string
	// Line is the first window line that produced a failure; empty on success.
	Line string
}

// Success returns a success verdict.
func Success() Verdict { return Verdict{Kind: KindSuccess} }

// Failure returns a failure verdict with reason.
func Failure(reason string) Verdict { return Verdict{Kind: KindFailure, Reason: reason} }

// IsSuccess reports whether v is a success.
func (v Verdict) IsSuccess() bool { return v.Kind == KindSuccess }

func (v Verdict) String() string {
	if v.IsSuccess() {
		return "Success"
	}
	return "Failure(" + v.Reason + ")"
}

// Classify applies the fixed precedence: a BuildFailed line outranks an Error
// line, which outranks success. Within a category the first line in window
// order is reported. Empty markers fall back to DefaultMarkers.
func Classify(window []string, m Markers) Verdict {
	m = m.withDefaults()
	for _, line := range window {
		if strings.Contains(line, m.BuildFailed) {
			v := Failure(ReasonBuildFailed)
			v.Line = line
			return v
		}
	}
	for _, line := range window {
		if strings.Contains(line, m.Error) {
			v := Failure(ReasonErrorDetected)
			v.Line = line
			return v
		}
	}
	return Success()
}
