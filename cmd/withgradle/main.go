package main

import (
	"log/slog"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/withgradle/cmd/withgradle/commands"
	"git.home.luguber.info/inful/withgradle/internal/foundation/errors"
	"git.home.luguber.info/inful/withgradle/internal/version"
)

func main() {
	var cli commands.CLI
	global := &commands.Global{}
	parser := kong.Parse(&cli,
		kong.Name("withgradle"),
		kong.Description("Run a Gradle build with tool homes injected and decide its outcome from the build log."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
		kong.Bind(global),
	)

	err := parser.Run(&cli)
	errors.NewCLIErrorAdapter(cli.Verbose, slog.Default()).HandleError(err)
}
