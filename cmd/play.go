package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/tunebridge/internal/controller"
	"github.com/desertthunder/tunebridge/internal/formatter"
	"github.com/desertthunder/tunebridge/internal/models"
	"github.com/desertthunder/tunebridge/internal/shared"
	"github.com/urfave/cli/v3"
)

// Play resolves a track id or --query to a stream and prints it. With --open the URL is handed to the browser.
//
// For an id the track detail is fetched first so the fallback search has a name and artists to work with.
func (r *Runner) Play(ctx context.Context, cmd *cli.Command) error {
	f, err := r.format(cmd)
	if err != nil {
		return err
	}
	c, err := r.ctrl(ctx, cmd)
	if err != nil {
		return err
	}

	ref := models.TrackRef{ID: cmd.StringArg("id"), Query: cmd.String("query")}
	if ref.ID != "" && ref.Query == "" {
		if track, err := c.Catalog().Track(ctx, ref.ID); err != nil {
			r.logger.Debug("track detail unavailable, resolving without hint", "id", ref.ID, "error", err)
		} else {
			ref.Hint = track
		}
	}

	open := cmd.Bool("open")
	sink := controller.SinkFunc(func(ctx context.Context, result *models.StreamResult) error {
		if err := r.render(formatter.StreamResult(result, f)); err != nil {
			return err
		}
		if open {
			if err := r.navigator.Navigate(result.URL); err != nil {
				return fmt.Errorf("%w: could not open stream: %v", shared.ErrServiceUnavailable, err)
			}
		}
		return nil
	})

	_, err = c.Play(ctx, ref, sink)
	return err
}
