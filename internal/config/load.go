package config

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/withgradle/internal/foundation/errors"
	"git.home.luguber.info/inful/withgradle/internal/logfields"
	"git.home.luguber.info/inful/withgradle/internal/tools"
	"git.home.luguber.info/inful/withgradle/internal/watcher"
)

// Defaults applied after parsing.
const (
	DefaultEventsPath    = "withgradle-events.db"
	DefaultHistorySize   = 50
	DefaultNATSURL       = "nats://127.0.0.1:4222"
	DefaultNATSSubject   = "withgradle.verdicts"
	DefaultNATSTimeout   = "5s"
	DefaultMetricsListen = "127.0.0.1:9464"
)

// EnvFiles are loaded, in order, before the config file is expanded.
var EnvFiles = []string{".env", ".env.local"}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{Version: Version}
	applyDefaults(cfg)
	return cfg
}

// Load reads configPath, expands ${VAR} references and validates the result.
// An empty configPath yields Default().
func Load(configPath string) (*Config, error) {
	loadEnvFiles()

	if configPath == "" {
		return Default(), nil
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, errors.NotFoundError("configuration file not found").
			WithContext("path", configPath).
			UserAction().
			Build()
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to read config file").
			WithContext("path", configPath).
			Build()
	}
	return Parse(data)
}

// Parse decodes, normalizes, defaults and validates raw YAML.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !stderrors.Is(err, io.EOF) {
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to parse config").
			UserAction().
			Build()
	}

	if cfg.Version == "" {
		cfg.Version = Version
	}
	if cfg.Version != Version {
		return nil, errors.ConfigError("unsupported configuration version").
			WithContext("version", cfg.Version).
			WithContext("expected", Version).
			UserAction().
			Build()
	}

	if err := normalize(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadEnvFiles loads dotenv files that exist. Variables already set in the
// process are never overwritten.
func loadEnvFiles() {
	for _, path := range EnvFiles {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			slog.Warn("Failed to load env file", logfields.Path(path), logfields.Error(err))
			continue
		}
		slog.Debug("Loaded env file", logfields.Path(path))
	}
}

func normalize(cfg *Config) error {
	level, err := logLevelNormalizer.NormalizeWithError(string(cfg.Logging.Level))
	if err != nil {
		return fieldError("logging.level", err)
	}
	cfg.Logging.Level = level

	format, err := logFormatNormalizer.NormalizeWithError(string(cfg.Logging.Format))
	if err != nil {
		return fieldError("logging.format", err)
	}
	cfg.Logging.Format = format

	for i := range cfg.Tools {
		kind, err := toolKindNormalizer.NormalizeWithError(string(cfg.Tools[i].Kind))
		if err != nil {
			return fieldError(fmt.Sprintf("tools[%d].kind", i), err)
		}
		cfg.Tools[i].Kind = kind
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Watch.PollInterval == "" {
		cfg.Watch.PollInterval = watcher.DefaultPollInterval.String()
	}
	if cfg.Watch.WindowSize == 0 {
		cfg.Watch.WindowSize = watcher.DefaultWindowSize
	}
	def := watcher.DefaultMarkers()
	if cfg.Watch.Markers.BuildStatus == "" {
		cfg.Watch.Markers.BuildStatus = def.BuildStatus
	}
	if cfg.Watch.Markers.BuildFailed == "" {
		cfg.Watch.Markers.BuildFailed = def.BuildFailed
	}
	if cfg.Watch.Markers.Error == "" {
		cfg.Watch.Markers.Error = def.Error
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = LogLevelInfo
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = LogFormatText
	}
	if cfg.Events.Path == "" {
		cfg.Events.Path = DefaultEventsPath
	}
	if cfg.Events.HistorySize == 0 {
		cfg.Events.HistorySize = DefaultHistorySize
	}
	if cfg.NATS.URL == "" {
		cfg.NATS.URL = DefaultNATSURL
	}
	if cfg.NATS.Subject == "" {
		cfg.NATS.Subject = DefaultNATSSubject
	}
	if cfg.NATS.Timeout == "" {
		cfg.NATS.Timeout = DefaultNATSTimeout
	}
	if cfg.Metrics.Listen == "" {
		cfg.Metrics.Listen = DefaultMetricsListen
	}
}

// Validate checks a normalized, defaulted configuration.
func Validate(cfg *Config) error {
	poll, err := parseDuration("watch.poll_interval", cfg.Watch.PollInterval)
	if err != nil {
		return err
	}
	if poll <= 0 {
		return errors.ValidationError("poll interval must be positive").
			WithContext("field", "watch.poll_interval").
			WithContext("value", cfg.Watch.PollInterval).
			Build()
	}
	if cfg.Watch.WindowSize < 0 {
		return errors.ValidationError("window size must not be negative").
			WithContext("field", "watch.window_size").
			WithContext("value", cfg.Watch.WindowSize).
			Build()
	}
	maxWait, err := parseDuration("watch.max_wait", cfg.Watch.MaxWait)
	if err != nil {
		return err
	}
	if maxWait < 0 {
		return errors.ValidationError("max wait must not be negative").
			WithContext("field", "watch.max_wait").
			Build()
	}
	if _, err := parseDuration("nats.timeout", cfg.NATS.Timeout); err != nil {
		return err
	}
	if err := validateTools(cfg); err != nil {
		return err
	}
	if cfg.Events.HistorySize < 0 {
		return errors.ValidationError("history size must not be negative").
			WithContext("field", "events.history_size").
			Build()
	}
	if cfg.NATS.KVBucket != "" && !cfg.NATS.JetStream {
		return errors.ValidationError("kv_bucket requires jetstream").
			WithContext("field", "nats.kv_bucket").
			UserAction().
			Build()
	}
	return nil
}

func validateTools(cfg *Config) error {
	seen := make(map[string]bool, len(cfg.Tools))
	for i, t := range cfg.Tools {
		field := fmt.Sprintf("tools[%d]", i)
		if t.Name == "" {
			return errors.ValidationError("tool name is required").WithContext("field", field+".name").Build()
		}
		switch t.Kind {
		case "":
			return errors.ValidationError("tool kind is required").WithContext("field", field+".kind").Build()
		case tools.KindGradle, tools.KindJDK:
		default:
			return errors.ValidationError("unknown tool kind").
				WithContext("field", field+".kind").
				WithContext("kind", string(t.Kind)).
				WithContext("valid", toolKindNormalizer.ValidKeys()).
				UserAction().
				Build()
		}
		if t.Home == "" {
			return errors.ValidationError("tool home is required").
				WithContext("field", field+".home").
				WithContext("name", t.Name).
				Build()
		}
		key := string(t.Kind) + "/" + t.Name
		if seen[key] {
			return errors.ValidationError("duplicate tool installation").
				WithContext("field", field).
				WithContext("kind", string(t.Kind)).
				WithContext("name", t.Name).
				Build()
		}
		seen[key] = true
	}
	return nil
}

func parseDuration(field, raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, errors.WrapError(err, errors.CategoryValidation, "invalid duration").
			WithContext("field", field).
			WithContext("value", raw).
			Build()
	}
	return d, nil
}

func fieldError(field string, err error) error {
	return errors.WrapError(err, errors.CategoryValidation, "invalid value").
		WithContext("field", field).
		UserAction().
		Build()
}

// Init writes an example configuration file.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return errors.ConfigError("configuration file already exists (use --force to overwrite)").
			WithContext("path", configPath).
			UserAction().
			Build()
	}

	example := Config{
		Version: Version,
		Step:    StepConfig{Gradle: "gradle-8", JDK: "temurin-21"},
		Tools: []ToolConfig{
			{Kind: "gradle", Name: "gradle-8", Home: "/opt/gradle/gradle-8.10"},
			{Kind: "jdk", Name: "temurin-21", Home: "/usr/lib/jvm/temurin-21"},
		},
		Watch: WatchConfig{
			PollInterval: "100ms",
			WindowSize:   100,
		},
		Env:     EnvConfig{File: ".env"},
		Logging: LoggingConfig{Level: LogLevelInfo, Format: LogFormatText},
		Events:  EventsConfig{Enabled: true, Path: DefaultEventsPath, HistorySize: DefaultHistorySize},
		NATS:    NATSConfig{URL: "${NATS_URL}", Subject: DefaultNATSSubject, Timeout: DefaultNATSTimeout},
		Metrics: MetricsConfig{Listen: DefaultMetricsListen},
	}

	data, err := yaml.Marshal(&example)
	if err != nil {
		return errors.WrapError(err, errors.CategoryInternal, "failed to marshal example config").Build()
	}
	data = withMaxWaitHint(data)
	// #nosec G306 -- config file is meant to be shared with the team
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return errors.WrapError(err, errors.CategoryConfig, "failed to write config file").
			WithContext("path", configPath).
			Build()
	}
	slog.Info("Configuration file created", logfields.Path(configPath))
	return nil
}

// maxWaitHint follows window_size in the example file. The watch stays
// unbounded unless the operator opts in.
const maxWaitHint = "# max_wait: 30m  # fail with a timeout after this long; unset or 0 waits forever"

func withMaxWaitHint(data []byte) []byte {
	lines := bytes.SplitAfter(data, []byte("\n"))
	var out bytes.Buffer
	for _, line := range lines {
		out.Write(line)
		trimmed := bytes.TrimLeft(line, " ")
		if bytes.HasPrefix(trimmed, []byte("window_size:")) {
			out.Write(line[:len(line)-len(trimmed)])
			out.WriteString(maxWaitHint + "\n")
		}
	}
	return out.Bytes()
}
