package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"git.home.luguber.info/inful/withgradle/internal/foundation/errors"
	"git.home.luguber.info/inful/withgradle/internal/tools"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "withgradle.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("WG_GRADLE_HOME", "/opt/gradle-8.10")
	path := writeConfig(t, "version: \"1\"\n"+
		"step:\n"+
		"  gradle: gradle-8\n"+
		"tools:\n"+
		"  - kind: Gradle\n"+
		"    name: gradle-8\n"+
		"    home: ${WG_GRADLE_HOME}\n"+
		"  - kind: java\n"+
		"    name: temurin-21\n"+
		"    home: /usr/lib/jvm/temurin-21\n"+
		"watch:\n"+
		"  poll_interval: 250ms\n"+
		"  max_wait: 10m\n"+
		"  markers:\n"+
		"    error: FATAL\n"+
		"logging:\n"+
		"  level: WARNING\n"+
		"  format: json\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Step.Gradle != "gradle-8" || cfg.Step.JDK != "" {
		t.Errorf("unexpected step section: %+v", cfg.Step)
	}
	if cfg.Tools[0].Kind != tools.KindGradle || cfg.Tools[1].Kind != tools.KindJDK {
		t.Errorf("tool kinds not normalized: %+v", cfg.Tools)
	}
	if cfg.Tools[0].Home != "/opt/gradle-8.10" {
		t.Errorf("expected env expansion, got %q", cfg.Tools[0].Home)
	}
	if cfg.Logging.Level != LogLevelWarn || cfg.Logging.Format != LogFormatJSON {
		t.Errorf("unexpected logging: %+v", cfg.Logging)
	}

	opts := cfg.WatchOptions()
	if opts.PollInterval != 250*time.Millisecond {
		t.Errorf("poll interval = %v", opts.PollInterval)
	}
	if opts.MaxWait != 10*time.Minute {
		t.Errorf("max wait = %v", opts.MaxWait)
	}
	if opts.WindowSize != 100 {
		t.Errorf("window size default = %d", opts.WindowSize)
	}
	if opts.Markers.Error != "FATAL" || opts.Markers.BuildFailed != "BUILD FAILED" {
		t.Errorf("markers = %+v", opts.Markers)
	}

	in, ok := cfg.Registry().FindInstallation(tools.KindGradle, "gradle-8")
	if !ok || in.Home != "/opt/gradle-8.10" {
		t.Errorf("registry lookup = %+v, %v", in, ok)
	}
	if _, ok := cfg.Registry().FindInstallation(tools.KindGradle, "Gradle-8"); ok {
		t.Error("lookup must be case sensitive")
	}
}

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Watch.PollInterval != "100ms" {
		t.Errorf("poll interval default = %q", cfg.Watch.PollInterval)
	}
	if cfg.WatchOptions().MaxWait != 0 {
		t.Error("max wait must default to unbounded")
	}
	if cfg.Events.Path != DefaultEventsPath || cfg.NATS.Subject != DefaultNATSSubject {
		t.Errorf("unexpected defaults: %+v %+v", cfg.Events, cfg.NATS)
	}
	if cfg.NATSTimeout() != 5*time.Second {
		t.Errorf("nats timeout = %v", cfg.NATSTimeout())
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("defaults must validate: %v", err)
	}
}

func TestLoadEmptyPathAndEmptyFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil || cfg.Version != Version {
		t.Fatalf("Load(\"\") = %+v, %v", cfg, err)
	}

	cfg, err = Load(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("empty file: %v", err)
	}
	if cfg.Watch.WindowSize != 100 {
		t.Errorf("defaults not applied to empty file")
	}
}

func TestLoadErrors(t *testing.T) {
	cases := []struct {
		name     string
		content  string
		category errors.ErrorCategory
		contains string
	}{
		{"unknown field", "watch:\n  interval: 1s\n", errors.CategoryConfig, "parse"},
		{"bad version", "version: \"2\"\n", errors.CategoryConfig, "version"},
		{"bad level", "logging:\n  level: loud\n", errors.CategoryValidation, "invalid value"},
		{"bad kind", "tools:\n  - kind: maven\n    name: m\n    home: /opt\n", errors.CategoryValidation, "invalid value"},
		{"bad duration", "watch:\n  poll_interval: soon\n", errors.CategoryValidation, "duration"},
		{"zero poll", "watch:\n  poll_interval: 0s\n", errors.CategoryValidation, "positive"},
		{"negative window", "watch:\n  window_size: -1\n", errors.CategoryValidation, "window"},
		{"negative max wait", "watch:\n  max_wait: -1s\n", errors.CategoryValidation, "max wait"},
		{"missing home", "tools:\n  - kind: jdk\n    name: j\n", errors.CategoryValidation, "home"},
		{"missing kind", "tools:\n  - name: j\n    home: /opt/j\n", errors.CategoryValidation, "kind"},
		{"duplicate tool", "tools:\n  - {kind: jdk, name: j, home: /a}\n  - {kind: java, name: j, home: /b}\n", errors.CategoryValidation, "duplicate"},
		{"kv without jetstream", "nats:\n  kv_bucket: verdicts\n", errors.CategoryValidation, "jetstream"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.content))
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.HasCategory(err, tc.category) {
				t.Errorf("category: got %v, want %s", err, tc.category)
			}
			if !strings.Contains(err.Error(), tc.contains) {
				t.Errorf("error %q should mention %q", err.Error(), tc.contains)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if !errors.HasCategory(err, errors.CategoryNotFound) {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestLoadEnvFilesDoNotOverride(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("WG_FROM_DOTENV=file\nWG_PRESET=file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir)
	t.Setenv("WG_PRESET", "process")
	t.Cleanup(func() { _ = os.Unsetenv("WG_FROM_DOTENV") })

	path := writeConfig(t, "env:\n  vars:\n    A: ${WG_FROM_DOTENV}\n    B: ${WG_PRESET}\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Env.Vars["A"] != "file" {
		t.Errorf("dotenv value not expanded: %q", cfg.Env.Vars["A"])
	}
	if cfg.Env.Vars["B"] != "process" {
		t.Errorf("process variable overwritten: %q", cfg.Env.Vars["B"])
	}
}

func TestInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "withgradle.yaml")
	if err := Init(path, false); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := Init(path, false); err == nil {
		t.Fatal("second Init without force must fail")
	}
	if err := Init(path, true); err != nil {
		t.Fatalf("Init with force: %v", err)
	}

	t.Setenv("NATS_URL", "nats://example:4222")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("example config must load: %v", err)
	}
	if cfg.NATS.URL != "nats://example:4222" {
		t.Errorf("nats url = %q", cfg.NATS.URL)
	}
	if len(cfg.Tools) != 2 || cfg.Step.Gradle != cfg.Tools[0].Name {
		t.Errorf("unexpected example tools: %+v", cfg.Tools)
	}
	if cfg.Watch.MaxWait != "" || cfg.WatchOptions().MaxWait != 0 {
		t.Errorf("example config must keep the unbounded wait, got max_wait %q", cfg.Watch.MaxWait)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read example: %v", err)
	}
	if !strings.Contains(string(data), "    "+maxWaitHint+"\n") {
		t.Errorf("example config should carry the commented max_wait hint:\n%s", data)
	}

	violations, err := ValidateFile(path)
	if err != nil || len(violations) != 0 {
		t.Errorf("example config must match schema: %v %v", violations, err)
	}
}

func TestNormalizers(t *testing.T) {
	if NormalizeLogLevel(" DEBUG ") != LogLevelDebug {
		t.Error("expected debug")
	}
	if NormalizeLogLevel("chatty") != LogLevelInfo {
		t.Error("unknown level should fall back to info")
	}
	if NormalizeLogFormat("JSON") != LogFormatJSON {
		t.Error("expected json")
	}
	if NormalizeLogFormat("") != LogFormatText {
		t.Error("empty format should fall back to text")
	}
}

func TestNewLogger(t *testing.T) {
	var sb strings.Builder
	logger := LoggingConfig{Level: LogLevelWarn, Format: LogFormatJSON}.NewLogger(&sb, false)
	logger.Info("hidden")
	logger.Warn("shown")
	out := sb.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, `"msg":"shown"`) {
		t.Errorf("unexpected output: %s", out)
	}

	sb.Reset()
	LoggingConfig{Level: LogLevelError}.NewLogger(&sb, true).Debug("verbose")
	if !strings.Contains(sb.String(), "msg=verbose") {
		t.Errorf("verbose should force debug: %s", sb.String())
	}
}

func TestUnknownToolKindRejected(t *testing.T) {
	fieldOf := func(err error) string {
		t.Helper()
		classified, ok := errors.AsClassified(err)
		if !ok {
			t.Fatalf("expected classified error, got %v", err)
		}
		field, _ := classified.Context().GetString("field")
		return field
	}

	_, err := Load(writeConfig(t, "tools:\n  - {kind: gradle, name: g, home: /opt/g}\n  - {kind: gradel, name: g, home: /opt/g}\n"))
	if !errors.HasCategory(err, errors.CategoryValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if got := fieldOf(err); got != "tools[1].kind" {
		t.Errorf("field = %q, want tools[1].kind", got)
	}

	// Validate alone, without the normalizing load path.
	cfg := Default()
	cfg.Tools = []ToolConfig{{Kind: "gradel", Name: "g", Home: "/opt/g"}}
	err = Validate(cfg)
	if !errors.HasCategory(err, errors.CategoryValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !strings.Contains(err.Error(), "unknown tool kind") {
		t.Errorf("error %q should name the unknown kind", err.Error())
	}
	if got := fieldOf(err); got != "tools[0].kind" {
		t.Errorf("field = %q, want tools[0].kind", got)
	}

	cfg.Tools[0].Kind = tools.KindJDK
	if err := Validate(cfg); err != nil {
		t.Errorf("jdk kind must validate: %v", err)
	}
}
