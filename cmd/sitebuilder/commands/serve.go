package commands

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/pkg/site"
)

// ServeCmd implements the 'serve' command.
type ServeCmd struct {
	Overrides `embed:""`
	Host         string `help:"Preview server host (overrides configuration)"`
	Port         int    `help:"Preview server port (overrides configuration)"`
	Clean        bool   `help:"Clean the destination on every rebuild, not only the first"`
	NoLiveReload bool   `name:"no-live-reload" help:"Disable live reload script injection and events"`
}

func (s *ServeCmd) Run(_ *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	s.apply(cfg)
	if s.Host != "" {
		cfg.Server.Host = s.Host
	}
	if s.Port != 0 {
		cfg.Server.Port = s.Port
	}
	if s.Clean {
		cfg.Clean = true
	}
	if s.NoLiveReload {
		cfg.LiveReload.Disabled = true
	}
	cfg.Serve = true

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	err = site.Run(ctx, cfg, func(err error) {
		if err == nil {
			slog.Debug("Rebuild delivered")
			return
		}
		slog.Warn("Rebuild failed", logfields.Error(err))
	})
	if ctx.Err() != nil && err == nil {
		slog.Info("Shutdown signal received, stopped watching")
	}
	return err
}
