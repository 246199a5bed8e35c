// Package commands implements the withgradle command line.
package commands

import (
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/withgradle/internal/config"
)

// DefaultConfigFile is where init writes when no --config is given.
const DefaultConfigFile = "withgradle.yaml"

// Global carries the process streams so commands can be driven from tests.
type Global struct {
	Stdout io.Writer
	Stderr io.Writer
}

func (g *Global) stdout() io.Writer {
	if g == nil || g.Stdout == nil {
		return os.Stdout
	}
	return g.Stdout
}

func (g *Global) stderr() io.Writer {
	if g == nil || g.Stderr == nil {
		return os.Stderr
	}
	return g.Stderr
}

// CLI definition & global flags.
type CLI struct {
	ConfigPath string           `name:"config" short:"c" help:"Configuration file path (built-in defaults when empty)" env:"WITHGRADLE_CONFIG" placeholder:"FILE"`
	Verbose    bool             `short:"v" help:"Enable verbose logging"`
	Version    kong.VersionFlag `name:"version" help:"Show version and exit"`

	Run      RunCmd      `cmd:"" help:"Run a build command inside the step and decide its outcome from the log"`
	Watch    WatchCmd    `cmd:"" help:"Watch an existing build log until it reports a verdict"`
	Env      EnvCmd      `cmd:"" help:"Print the environment the step would give its body"`
	History  HistoryCmd  `cmd:"" help:"Show recorded sessions"`
	Serve    ServeCmd    `cmd:"" help:"Serve session history and metrics over HTTP"`
	Init     InitCmd     `cmd:"" help:"Initialize a new configuration file"`
	Schema   SchemaCmd   `cmd:"" help:"Print the JSON Schema of the configuration file"`
	Validate ValidateCmd `cmd:"" help:"Validate a configuration file"`
}

// AfterApply runs after flag parsing; setup logging once. g is bound by main.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply(g *Global) error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(g.stderr(), &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return nil
}

// LoadConfig loads the configured file and switches the default logger to
// the configured level and format.
func (c *CLI) LoadConfig(g *Global) (*config.Config, error) {
	cfg, err := config.Load(c.ConfigPath)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(cfg.Logging.NewLogger(g.stderr(), c.Verbose))
	return cfg, nil
}
