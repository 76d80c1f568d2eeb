// Package commands implements the sitebuilder CLI subcommands.
package commands

import (
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
)

// DefaultConfigFile is used when --config is not given. It may be absent.
const DefaultConfigFile = "sitebuilder.yaml"

// Global is passed to every subcommand.
type Global struct {
	Out io.Writer
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"sitebuilder.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build   BuildCmd   `cmd:"" help:"Build the site once into the destination directory"`
	Serve   ServeCmd   `cmd:"" help:"Build, serve and rebuild on changes with live reload"`
	History HistoryCmd `cmd:"" help:"List recent builds from the build history"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return nil
}

// loadConfig reads the configuration file. Only the default file may be missing.
func (c *CLI) loadConfig() (*config.Config, error) {
	return config.LoadOrDefault(c.Config, c.Config == DefaultConfigFile)
}

// Overrides are flags shared by the build commands.
type Overrides struct {
	Source      string `help:"Source directory (overrides configuration)"`
	Destination string `help:"Destination directory (overrides configuration)"`
}

func (o Overrides) apply(cfg *config.Config) {
	if o.Source != "" {
		cfg.Source = o.Source
	}
	if o.Destination != "" {
		cfg.Destination = o.Destination
	}
}

func (g *Global) out() io.Writer {
	if g == nil || g.Out == nil {
		return os.Stdout
	}
	return g.Out
}
