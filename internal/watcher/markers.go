package watcher

import "strings"

// Failure reasons reported by Classify.
const (
	ReasonBuildFailed   = "build marked as failed"
	ReasonErrorDetected = "error detected in output"
)

// Markers are the substrings the watcher looks for.
type Markers struct {
	// BuildStatus ends the wait phase ("BUILD").
	BuildStatus string `yaml:"build_status" json:"build_status,omitempty"`
	// BuildFailed classifies the window as a failed build ("BUILD FAILED").
	BuildFailed string `yaml:"build_failed" json:"build_failed,omitempty"`
	// Error both ends the wait phase and classifies as an error ("ERROR").
	Error string `yaml:"error" json:"error,omitempty"`
}

// DefaultMarkers returns the markers Gradle prints.
func DefaultMarkers() Markers {
	return Markers{BuildStatus: "BUILD", BuildFailed: "BUILD FAILED", Error: "ERROR"}
}

// withDefaults fills empty fields from DefaultMarkers.
func (m Markers) withDefaults() Markers {
	d := DefaultMarkers()
	if m.BuildStatus == "" {
		m.BuildStatus = d.BuildStatus
	}
	if m.BuildFailed == "" {
		m.BuildFailed = d.BuildFailed
	}
	if m.Error == "" {
		m.Error = d.Error
	}
	return m
}

// IsTerminal reports whether line signals that the build reached a final state.
func (m Markers) IsTerminal(line string) bool {
	return strings.Contains(line, m.BuildStatus) || strings.Contains(line, m.Error)
}
