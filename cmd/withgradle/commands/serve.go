package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
)

// ServeCmd implements the 'serve' command.
type ServeCmd struct {
	Listen string `help:"Listen address (overrides metrics.listen)"`
}

func (s *ServeCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.LoadConfig(g)
	if err != nil {
		return err
	}
	if s.Listen != "" {
		cfg.Metrics.Listen = s.Listen
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := openServices(ctx, cfg, serviceOptions{serve: true, events: true})
	if err != nil {
		return err
	}
	defer svc.Close()

	select {
	case err := <-svc.serveErr:
		// The listener stopped on its own; Close must not wait for it again.
		svc.serveErr <- nil
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		slog.Info("Shutdown signal received, stopping server...")
	}
	return nil
}
