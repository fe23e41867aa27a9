package main

import (
	"context"

	"github.com/desertthunder/tunebridge/internal/formatter"
	"github.com/urfave/cli/v3"
)

// History prints the most recent stream resolutions.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	f, err := r.format(cmd)
	if err != nil {
		return err
	}
	c, err := r.ctrl(ctx, cmd)
	if err != nil {
		return err
	}

	entries, err := c.History(ctx, cmd.Int("limit"))
	if err != nil {
		return err
	}
	return r.render(formatter.Resolutions(entries, f))
}
