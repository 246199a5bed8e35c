package commands

import (
	"context"
	"fmt"
	"sort"

	"git.home.luguber.info/inful/withgradle/internal/envoverlay"
	"git.home.luguber.info/inful/withgradle/internal/logtail"
	"git.home.luguber.info/inful/withgradle/internal/step"
)

// EnvCmd implements the 'env' command.
type EnvCmd struct {
	Gradle        string `help:"Gradle installation name (overrides step.gradle)"`
	JDK           string `name:"jdk" help:"JDK installation name (overrides step.jdk)"`
	OverridesOnly bool   `name:"overrides-only" help:"Print only the variables the step injects"`
}

func (e *EnvCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.LoadConfig(g)
	if err != nil {
		return err
	}
	if e.Gradle != "" {
		cfg.Step.Gradle = e.Gradle
	}
	if e.JDK != "" {
		cfg.Step.JDK = e.JDK
	}

	// Lookup messages go to stderr so stdout stays a clean KEY=VALUE listing.
	overlay := step.NewExecution(step.Config{
		Gradle: step.Named(cfg.Step.Gradle),
		JDK:    step.Named(cfg.Step.JDK),
	}, cfg.Registry(), logtail.Lines(nil)).
		WithConsole(g.stderr()).
		Overlay(context.Background())

	env := overlay.Map()
	if !e.OverridesOnly {
		base, err := baseEnvironment(cfg)
		if err != nil {
			return err
		}
		env = envoverlay.Merge(base, env)
	}

	lines := envoverlay.Environ(env)
	sort.Strings(lines)
	for _, line := range lines {
		_, _ = fmt.Fprintln(g.stdout(), line)
	}
	return nil
}
