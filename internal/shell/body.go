// Package shell provides a step body that runs an external command, the way a
// pipeline's sh step launches a Gradle build.
package shell

import (
	"context"
	stderrors "errors"
	"io"
	"os/exec"
	"strings"
	"time"

	"git.home.luguber.info/inful/withgradle/internal/console"
	"git.home.luguber.info/inful/withgradle/internal/envoverlay"
	"git.home.luguber.info/inful/withgradle/internal/foundation/errors"
	"git.home.luguber.info/inful/withgradle/internal/logfields"
	"git.home.luguber.info/inful/withgradle/internal/observability"
	"git.home.luguber.info/inful/withgradle/internal/step"
)

// DefaultWaitDelay bounds how long Run waits for output pipes after the
// process was killed by a canceled context.
const DefaultWaitDelay = 5 * time.Second

// Body runs Command with the invocation's environment. A single element is
// interpreted by "sh -c"; several elements are executed directly.
type Body struct {
	Command []string
	Dir     string
	// Base is the environment the overlay is merged into.
	Base envoverlay.EnvMap
	// Console receives output decorated by the invocation's filter.
	Console io.Writer
	// Log receives the raw output; it is usually the tail the step watches.
	Log io.Writer
}

var _ step.Body = (*Body)(nil)

// Run implements step.Body.
func (b *Body) Run(ctx context.Context, inv step.Invocation) error {
	if len(b.Command) == 0 {
		return errors.ValidationError("no command to run").Build()
	}

	cmd := command(ctx, b.Command)
	cmd.Dir = b.Dir
	cmd.Env = envoverlay.Environ(inv.Environ(b.Base))
	cmd.WaitDelay = DefaultWaitDelay

	filter := inv.Filter
	if filter == nil {
		filter = console.PassThrough
	}
	sink := b.Console
	if sink == nil {
		sink = io.Discard
	}
	decorated := filter.Decorate(sink)

	writers := []io.Writer{decorated}
	if b.Log != nil {
		writers = append([]io.Writer{b.Log}, writers...)
	}
	out := io.MultiWriter(writers...)
	cmd.Stdout = out
	cmd.Stderr = out

	observability.DebugContext(ctx, "Running command", logfields.Command(strings.Join(b.Command, " ")))
	runErr := cmd.Run()
	if err := console.Flush(decorated); err != nil {
		observability.WarnContext(ctx, "Failed to flush console", logfields.Error(err))
	}
	if runErr == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if stderrors.As(runErr, &exitErr) {
		return errors.WrapError(runErr, errors.CategoryBuild, "command exited with non-zero status").
			WithContext("exit_code", exitErr.ExitCode()).
			Build()
	}
	return errors.WrapError(runErr, errors.CategoryRuntime, "failed to run command").
		WithContext("command", b.Command[0]).
		Build()
}

func command(ctx context.Context, argv []string) *exec.Cmd {
	if len(argv) == 1 {
		return exec.CommandContext(ctx, "sh", "-c", argv[0])
	}
	return exec.CommandContext(ctx, argv[0], argv[1:]...)
}
