package main

import (
	"context"
	"fmt"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/tunebridge/internal/shared"
	"github.com/desertthunder/tunebridge/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive terminal UI for browsing playlists.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	return r.runTUI(ctx, cmd, true)
}

func (r *Runner) runTUI(ctx context.Context, cmd *cli.Command, browse bool) error {
	// Logs go to a file so they do not interfere with rendering
	fileLogger, logFile, err := shared.NewFileLogger(filepath.Join("tmp", "tunebridge-tui.log"))
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	defer logFile.Close()
	if r.controller == nil {
		r.SetLogger(fileLogger)
	}

	c, err := r.ctrl(ctx, cmd)
	if err != nil {
		return err
	}

	sub, err := c.Follow(ctx)
	if err != nil {
		return err
	}
	defer sub.Close()

	deps := ui.Deps{Feed: sub, Navigator: r.navigator}
	if browse {
		deps.Catalog = c.Catalog()
		deps.Resolver = c
	}

	p := tea.NewProgram(ui.NewModel(ctx, deps), tea.WithContext(ctx), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}
