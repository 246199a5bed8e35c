package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"git.home.luguber.info/inful/withgradle/internal/logfields"
	"git.home.luguber.info/inful/withgradle/internal/logtail"
	"git.home.luguber.info/inful/withgradle/internal/observability"
	"git.home.luguber.info/inful/withgradle/internal/watcher"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	LogFile      string        `arg:"" type:"path" help:"Build log that another process appends to"`
	PollInterval time.Duration `name:"poll-interval" help:"Poll spacing (overrides watch.poll_interval)"`
	Window       int           `help:"Number of trailing lines inspected (overrides watch.window_size)"`
	MaxWait      time.Duration `name:"max-wait" help:"Give up with a timeout after this long (overrides watch.max_wait)"`
	JSON         bool          `help:"Print the verdict as JSON"`
}

// watchReport is the JSON shape printed by 'watch --json'.
type watchReport struct {
	SessionID  string `json:"session_id"`
	Verdict    string `json:"verdict"`
	Reason     string `json:"reason,omitempty"`
	Line       string `json:"line,omitempty"`
	Polls      int    `json:"polls"`
	DurationMS int64  `json:"duration_ms"`
}

func (w *WatchCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.LoadConfig(g)
	if err != nil {
		return err
	}
	opts := cfg.WatchOptions()
	if w.PollInterval > 0 {
		opts.PollInterval = w.PollInterval
	}
	if w.Window > 0 {
		opts.WindowSize = w.Window
	}
	if w.MaxWait > 0 {
		opts.MaxWait = w.MaxWait
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return w.watch(ctx, g, logtail.NewFileTail(w.LogFile), opts)
}

func (w *WatchCmd) watch(ctx context.Context, g *Global, tail logtail.Tail, opts watcher.Options) error {
	session := watcher.NewSession(tail, opts)
	ctx = observability.WithSessionID(observability.WithLogPath(ctx, w.LogFile), session.ID())
	observability.InfoContext(ctx, "Watching build log", logfields.Path(w.LogFile))

	outcome := <-session.Start(ctx)
	if outcome.Err != nil {
		return outcome.Err
	}

	v := outcome.Verdict
	if w.JSON {
		report := watchReport{
			SessionID:  outcome.SessionID,
			Verdict:    string(v.Kind),
			Reason:     v.Reason,
			Line:       v.Line,
			Polls:      outcome.Polls,
			DurationMS: outcome.Duration.Milliseconds(),
		}
		enc := json.NewEncoder(g.stdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		_, _ = fmt.Fprintln(g.stdout(), v.String())
		if v.Line != "" {
			_, _ = fmt.Fprintf(g.stdout(), "  at: %s\n", v.Line)
		}
	}
	return watcher.VerdictError(v)
}
