package main

import (
	"context"

	"github.com/desertthunder/tunebridge/internal/formatter"
	"github.com/desertthunder/tunebridge/internal/models"
	"github.com/urfave/cli/v3"
)

// NowPlaying prints the current track once, follows it with --watch, or shows it live with --tui.
func (r *Runner) NowPlaying(ctx context.Context, cmd *cli.Command) error {
	if cmd.Bool("tui") {
		return r.runTUI(ctx, cmd, false)
	}

	f, err := r.format(cmd)
	if err != nil {
		return err
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

	watch := cmd.Bool("watch")
	var last *models.PollSnapshot
	for {
		select {
		case <-ctx.Done():
			return nil
		case snap, ok := <-sub.Updates():
			if !ok {
				return nil
			}
			if !watch {
				return r.render(formatter.Snapshot(snap, f))
			}
			if last != nil && sameTrack(*last, snap) {
				continue
			}
			last = &snap
			if err := r.render(formatter.Snapshot(snap, f)); err != nil {
				return err
			}
		}
	}
}

// sameTrack reports whether two snapshots show the same track in the same play state.
func sameTrack(a, b models.PollSnapshot) bool {
	if (a.Err == nil) != (b.Err == nil) {
		return false
	}
	if !a.HasTrack() || !b.HasTrack() {
		return a.HasTrack() == b.HasTrack()
	}
	return a.Track.ID == b.Track.ID && a.Track.Playing() == b.Track.Playing()
}
