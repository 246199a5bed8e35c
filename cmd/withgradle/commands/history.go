package commands

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"git.home.luguber.info/inful/withgradle/internal/eventstore"
	"git.home.luguber.info/inful/withgradle/internal/foundation/errors"
	"git.home.luguber.info/inful/withgradle/internal/notify"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Session string `arg:"" optional:"" help:"Session id to show; lists recent sessions when omitted"`
	Limit   int    `short:"n" default:"20" help:"Maximum sessions to list"`
	JSON    bool   `help:"Print JSON instead of a table"`
}

func (h *HistoryCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.LoadConfig(g)
	if err != nil {
		return err
	}
	ctx := context.Background()
	svc, err := openServices(ctx, cfg, serviceOptions{events: true})
	if err != nil {
		return err
	}
	defer svc.Close()

	if h.Session == "" {
		return h.list(g.stdout(), svc.projection)
	}
	return h.show(ctx, g.stdout(), svc)
}

func (h *HistoryCmd) list(w io.Writer, p *eventstore.SessionHistoryProjection) error {
	sessions := append(p.GetActive(), p.GetHistory()...)
	if h.Limit > 0 && len(sessions) > h.Limit {
		sessions = sessions[:h.Limit]
	}
	if h.JSON {
		return writeJSON(w, sessions)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "SESSION\tSTATUS\tSTARTED\tDURATION\tREASON")
	for _, s := range sessions {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			s.SessionID, s.Status, s.StartedAt.Format(time.RFC3339), s.Duration.Round(time.Millisecond), s.Reason)
	}
	return tw.Flush()
}

func (h *HistoryCmd) show(ctx context.Context, w io.Writer, svc *services) error {
	summary, err := eventstore.LoadSession(ctx, svc.store, h.Session)
	switch {
	case err == nil:
		return h.printSummary(w, summary)
	case !stderrors.Is(err, eventstore.ErrSessionNotFound):
		return err
	}

	// Sessions recorded on another host may only be known to the NATS KV bucket.
	if svc.nats != nil {
		v, err := svc.nats.LastVerdict(ctx, h.Session)
		if err != nil {
			return err
		}
		if v != nil {
			return h.printVerdict(w, v)
		}
	}
	return errors.NotFoundError(eventstore.ErrSessionNotFound.Message()).
		WithContext("session_id", h.Session).
		Build()
}

func (h *HistoryCmd) printSummary(w io.Writer, s *eventstore.SessionSummary) error {
	if h.JSON {
		return writeJSON(w, s)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "Session:\t%s\n", s.SessionID)
	_, _ = fmt.Fprintf(tw, "Status:\t%s\n", s.Status)
	if s.Reason != "" {
		_, _ = fmt.Fprintf(tw, "Reason:\t%s\n", s.Reason)
	}
	if s.Line != "" {
		_, _ = fmt.Fprintf(tw, "Line:\t%s\n", s.Line)
	}
	if s.Gradle != "" {
		_, _ = fmt.Fprintf(tw, "Gradle:\t%s\n", s.Gradle)
	}
	if s.JDK != "" {
		_, _ = fmt.Fprintf(tw, "JDK:\t%s\n", s.JDK)
	}
	if s.LogPath != "" {
		_, _ = fmt.Fprintf(tw, "Log:\t%s\n", s.LogPath)
	}
	_, _ = fmt.Fprintf(tw, "Started:\t%s\n", s.StartedAt.Format(time.RFC3339))
	_, _ = fmt.Fprintf(tw, "Duration:\t%s\n", s.Duration.Round(time.Millisecond))
	_, _ = fmt.Fprintf(tw, "Polls:\t%d\n", s.Polls)
	return tw.Flush()
}

func (h *HistoryCmd) printVerdict(w io.Writer, v *notify.VerdictEvent) error {
	if h.JSON {
		return writeJSON(w, v)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "Session:\t%s\n", v.SessionID)
	_, _ = fmt.Fprintf(tw, "Status:\t%s\n", v.Status)
	if v.Reason != "" {
		_, _ = fmt.Fprintf(tw, "Reason:\t%s\n", v.Reason)
	}
	_, _ = fmt.Fprintf(tw, "Finished:\t%s\n", v.Timestamp.Format(time.RFC3339))
	_, _ = fmt.Fprintf(tw, "Source:\tnats\n")
	return tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
