package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"git.home.luguber.info/inful/withgradle/internal/config"
	"git.home.luguber.info/inful/withgradle/internal/console"
	"git.home.luguber.info/inful/withgradle/internal/envoverlay"
	"git.home.luguber.info/inful/withgradle/internal/foundation/errors"
	"git.home.luguber.info/inful/withgradle/internal/logfields"
	"git.home.luguber.info/inful/withgradle/internal/logtail"
	"git.home.luguber.info/inful/withgradle/internal/shell"
	"git.home.luguber.info/inful/withgradle/internal/step"
)

// memoryTailLimit bounds the lines kept in memory when no log file is used.
const memoryTailLimit = 10_000

// RunCmd implements the 'run' command.
type RunCmd struct {
	Gradle  string        `help:"Gradle installation name (overrides step.gradle)"`
	JDK     string        `name:"jdk" help:"JDK installation name (overrides step.jdk)"`
	LogFile string        `name:"log-file" type:"path" help:"Write raw build output to this file and tail it (overrides watch.log_file)"`
	MaxWait time.Duration `name:"max-wait" help:"Fail with a timeout when no verdict arrives in time (overrides watch.max_wait)"`
	Dir     string        `short:"C" type:"existingdir" help:"Working directory for the command"`
	Plain   bool          `help:"Disable console highlighting"`
	Serve   bool          `help:"Serve /metrics and /sessions while the build runs"`
	Command []string      `arg:"" optional:"" passthrough:"" help:"Command to run; a single argument is passed to sh -c"`
}

func (r *RunCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.LoadConfig(g)
	if err != nil {
		return err
	}
	r.applyOverrides(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return RunStep(ctx, g, cfg, r)
}

func (r *RunCmd) applyOverrides(cfg *config.Config) {
	if r.Gradle != "" {
		cfg.Step.Gradle = r.Gradle
	}
	if r.JDK != "" {
		cfg.Step.JDK = r.JDK
	}
	if r.LogFile != "" {
		cfg.Watch.LogFile = r.LogFile
	}
	if r.MaxWait > 0 {
		cfg.Watch.MaxWait = r.MaxWait.String()
	}
}

// RunStep executes cmd as the step body. A canceled ctx stops the step.
func RunStep(ctx context.Context, g *Global, cfg *config.Config, cmd *RunCmd) error {
	base, err := baseEnvironment(cfg)
	if err != nil {
		return err
	}

	tail, sink, closeLog, err := openLog(cfg.Watch.LogFile)
	if err != nil {
		return err
	}
	defer closeLog()

	svc, err := openServices(ctx, cfg, serviceOptions{serve: cmd.Serve})
	if err != nil {
		return err
	}
	defer svc.Close()

	out := g.stdout()
	annotator := console.NewAnnotator()
	if cmd.Plain {
		annotator = console.NewAnnotator(console.WithPlain())
	}

	execution := step.NewExecution(step.Config{
		Gradle: step.Named(cfg.Step.Gradle),
		JDK:    step.Named(cfg.Step.JDK),
	}, cfg.Registry(), tail).
		WithConsole(out).
		WithAnnotator(annotator).
		WithWatchOptions(cfg.WatchOptions()).
		WithRecorder(svc.recorder).
		WithObserver(svc.journal(cfg.Watch.LogFile)).
		WithReporter(step.ReporterFuncs{
			Success: func() { _, _ = fmt.Fprintln(out, "[WithGradle] Build succeeded") },
			Failure: func(reason string) { _, _ = fmt.Fprintf(out, "[WithGradle] Build failed: %s\n", reason) },
		})
	if len(cmd.Command) > 0 {
		execution.WithBody(&shell.Body{
			Command: cmd.Command,
			Dir:     cmd.Dir,
			Base:    base,
			Console: out,
			Log:     sink,
		})
	}

	stopOnCancel := context.AfterFunc(ctx, func() { execution.Stop(context.Cause(ctx)) })
	defer stopOnCancel()

	res, err := execution.Start(ctx)
	if res != nil {
		slog.Info("Step finished",
			logfields.SessionID(res.SessionID),
			logfields.Verdict(string(res.Status)),
			logfields.Reason(res.Reason),
			logfields.Polls(res.Polls),
			logfields.Duration(res.Duration))
	}
	return err
}

// baseEnvironment is the process environment plus env.file and env.vars.
func baseEnvironment(cfg *config.Config) (envoverlay.EnvMap, error) {
	base, err := envoverlay.Base(cfg.Env.File)
	if err != nil {
		return nil, err
	}
	return envoverlay.Merge(base, cfg.Env.Vars), nil
}

// openLog returns the tail the watcher reads and the writer the body's raw
// output goes to. Without a path both are an in-memory log.
func openLog(path string) (logtail.Tail, io.Writer, func(), error) {
	if path == "" {
		mem := logtail.NewMemoryTail(memoryTailLimit)
		return mem, mem, func() {}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, nil, nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to create log directory").
			WithContext("path", path).
			Build()
	}
	// #nosec G304 -- path comes from the operator's config or flags
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, nil, nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to open log file").
			WithContext("path", path).
			Build()
	}
	closeFn := func() {
		if err := f.Close(); err != nil {
			slog.Warn("Failed to close log file", logfields.Path(path), logfields.Error(err))
		}
	}
	return logtail.NewFileTail(path), f, closeFn, nil
}
