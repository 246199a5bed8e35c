// Package config loads the withgradle YAML configuration.
package config

import (
	"time"

	"git.home.luguber.info/inful/withgradle/internal/tools"
	"git.home.luguber.info/inful/withgradle/internal/watcher"
)

// Version is the only configuration format this build understands.
const Version = "1"

// Config is the root of the withgradle configuration file.
type Config struct {
	Version string        `yaml:"version" jsonschema:"enum=1"`
	Step    StepConfig    `yaml:"step,omitempty"`
	Tools   []ToolConfig  `yaml:"tools,omitempty"`
	Watch   WatchConfig   `yaml:"watch,omitempty"`
	Env     EnvConfig     `yaml:"env,omitempty"`
	Logging LoggingConfig `yaml:"logging,omitempty"`
	Events  EventsConfig  `yaml:"events,omitempty"`
	NATS    NATSConfig    `yaml:"nats,omitempty"`
	Metrics MetricsConfig `yaml:"metrics,omitempty"`
}

// StepConfig names the tool installations the step should use. Empty means absent.
type StepConfig struct {
	Gradle string `yaml:"gradle,omitempty" jsonschema:"description=Name of a configured gradle installation"`
	JDK    string `yaml:"jdk,omitempty" jsonschema:"description=Name of a configured jdk installation"`
}

// ToolConfig declares one installation the resolver can hand out.
type ToolConfig struct {
	Kind tools.Kind `yaml:"kind" jsonschema:"required,enum=gradle,enum=jdk,enum=java"`
	Name string     `yaml:"name" jsonschema:"required"`
	Home string     `yaml:"home" jsonschema:"required"`
}

// WatchConfig tunes the log completion watcher.
type WatchConfig struct {
	PollInterval string          `yaml:"poll_interval,omitempty" jsonschema:"default=100ms"`
	WindowSize   int             `yaml:"window_size,omitempty" jsonschema:"minimum=0,default=100"`
	MaxWait      string          `yaml:"max_wait,omitempty" jsonschema:"description=Zero or empty waits forever"`
	Markers      watcher.Markers `yaml:"markers,omitempty"`
	// LogFile, when set, receives a raw copy of the build output and is tailed from disk.
	LogFile string `yaml:"log_file,omitempty"`
}

// EnvConfig shapes the base environment the overlay is merged into.
type EnvConfig struct {
	File string            `yaml:"file,omitempty" jsonschema:"description=dotenv file merged under the process environment"`
	Vars map[string]string `yaml:"vars,omitempty"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level,omitempty" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
	Format LogFormat `yaml:"format,omitempty" jsonschema:"enum=text,enum=json"`
}

// EventsConfig controls the SQLite session journal.
type EventsConfig struct {
	Enabled     bool   `yaml:"enabled,omitempty"`
	Path        string `yaml:"path,omitempty" jsonschema:"default=withgradle-events.db"`
	HistorySize int    `yaml:"history_size,omitempty" jsonschema:"minimum=0,default=50"`
}

// NATSConfig controls verdict publication.
type NATSConfig struct {
	Enabled   bool   `yaml:"enabled,omitempty"`
	URL       string `yaml:"url,omitempty" jsonschema:"default=nats://127.0.0.1:4222"`
	Subject   string `yaml:"subject,omitempty" jsonschema:"default=withgradle.verdicts"`
	JetStream bool   `yaml:"jetstream,omitempty"`
	KVBucket  string `yaml:"kv_bucket,omitempty"`
	Timeout   string `yaml:"timeout,omitempty" jsonschema:"default=5s"`
}

// MetricsConfig controls the admin HTTP listener serving /metrics and /sessions.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled,omitempty"`
	Listen  string `yaml:"listen,omitempty" jsonschema:"default=127.0.0.1:9464"`
}

// Installations converts the tools section into resolver entries.
func (c *Config) Installations() []tools.Installation {
	out := make([]tools.Installation, 0, len(c.Tools))
	for _, t := range c.Tools {
		out = append(out, tools.Installation{Kind: t.Kind, Name: t.Name, Home: t.Home})
	}
	return out
}

// Registry builds a resolver from the tools section.
func (c *Config) Registry() *tools.Registry {
	return tools.NewRegistry(c.Installations()...)
}

// WatchOptions converts the watch section. Durations must already be valid.
func (c *Config) WatchOptions() watcher.Options {
	return watcher.Options{
		PollInterval: mustDuration(c.Watch.PollInterval),
		WindowSize:   c.Watch.WindowSize,
		MaxWait:      mustDuration(c.Watch.MaxWait),
		Markers:      c.Watch.Markers,
	}
}

// NATSTimeout returns the parsed NATS timeout.
func (c *Config) NATSTimeout() time.Duration {
	return mustDuration(c.NATS.Timeout)
}

// mustDuration parses a duration validated earlier; invalid or empty input yields zero.
func mustDuration(raw string) time.Duration {
	if raw == "" {
		return 0
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0
	}
	return d
}
