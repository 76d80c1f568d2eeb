package commands

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"git.home.luguber.info/inful/sitebuilder/internal/eventstore"
	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Since time.Duration `help:"Only show builds started within this window" default:"168h"`
	Limit int           `help:"Maximum number of builds to show" default:"20"`
}

func (h *HistoryCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	norm, err := cfg.Normalized()
	if err != nil {
		return err
	}
	if norm.History.Path == "" {
		return ferrors.ConfigError("build history is not enabled").
			WithContext("hint", "set history.path in the configuration").Build()
	}

	store, err := eventstore.NewSQLiteStore(norm.Path(norm.History.Path))
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	builds, err := eventstore.History(context.Background(), store, time.Now().Add(-h.Since), h.Limit)
	if err != nil {
		return err
	}

	if len(builds) == 0 {
		_, err := fmt.Fprintln(g.out(), "No builds recorded in the selected window.")
		return err
	}

	rows := make([][]string, 0, len(builds))
	for _, b := range builds {
		rows = append(rows, []string{
			b.StartedAt.Local().Format(time.DateTime),
			shortID(b.BuildID),
			strconv.FormatUint(b.Generation, 10),
			b.Status,
			b.Duration.Round(time.Millisecond).String(),
			strconv.FormatBool(b.Serve),
			b.ErrorStep,
			b.ErrorMessage,
		})
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("STARTED", "ID", "BUILD", "STATUS", "DURATION", "SERVE", "STEP", "ERROR").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			s := lipgloss.NewStyle().Padding(0, 1)
			if row == table.HeaderRow {
				return s.Bold(true)
			}
			if col == 3 {
				return s.Foreground(statusColor(builds[row].Status))
			}
			return s
		})
	_, err = fmt.Fprintln(g.out(), t.Render())
	return err
}

func statusColor(status string) lipgloss.Color {
	switch status {
	case eventstore.StatusSucceeded:
		return lipgloss.Color("#3FB950")
	case eventstore.StatusFailed:
		return lipgloss.Color("#F85149")
	case eventstore.StatusSuperseded:
		return lipgloss.Color("#AAAAAA")
	default:
		return lipgloss.Color("#5B8DEF")
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
