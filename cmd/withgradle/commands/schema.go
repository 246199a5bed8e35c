package commands

import (
	"fmt"

	"git.home.luguber.info/inful/withgradle/internal/config"
	"git.home.luguber.info/inful/withgradle/internal/foundation/errors"
)

// SchemaCmd implements the 'schema' command.
type SchemaCmd struct{}

func (s *SchemaCmd) Run(g *Global, _ *CLI) error {
	data, err := config.Schema()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(g.stdout(), string(data))
	return err
}

// ValidateCmd implements the 'validate' command: schema first, then the
// semantic checks Load performs.
type ValidateCmd struct {
	File string `arg:"" optional:"" type:"existingfile" help:"Configuration file to check (defaults to --config)"`
}

func (v *ValidateCmd) Run(g *Global, root *CLI) error {
	path := v.File
	if path == "" {
		path = root.ConfigPath
	}
	if path == "" {
		return errors.ValidationError("no configuration file given").UserAction().Build()
	}

	violations, err := config.ValidateFile(path)
	if err != nil {
		return err
	}
	if len(violations) > 0 {
		for _, violation := range violations {
			_, _ = fmt.Fprintf(g.stderr(), "%s: %s\n", path, violation)
		}
		return errors.ValidationError("configuration does not match schema").
			WithContext("path", path).
			WithContext("violations", len(violations)).
			Build()
	}

	if _, err := config.Load(path); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(g.stdout(), "%s: ok\n", path)
	return nil
}
