package commands

import (
	"context"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/sitebuilder/pkg/site"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Overrides `embed:""`
	PostProcess string `name:"post-process" help:"Shell command run after the pipeline has been executed"`
}

func (b *BuildCmd) Run(_ *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	b.apply(cfg)
	if b.PostProcess != "" {
		cfg.PostProcessCommand = b.PostProcess
	}
	cfg.Serve = false

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return site.Run(ctx, cfg, nil)
}
