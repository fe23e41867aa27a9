package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/tunebridge/internal/formatter"
	"github.com/desertthunder/tunebridge/internal/shared"
	"github.com/desertthunder/tunebridge/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Search prints catalog matches for the query argument.
func (r *Runner) Search(ctx context.Context, cmd *cli.Command) error {
	query := cmd.StringArg("query")
	if query == "" {
		return fmt.Errorf("%w: search query", shared.ErrMissingArgument)
	}
	f, err := r.format(cmd)
	if err != nil {
		return err
	}
	c, err := r.ctrl(ctx, cmd)
	if err != nil {
		return err
	}

	r.logger.Debug("searching catalog", "query", query)
	tracks, err := c.Catalog().Search(ctx, query)
	if err != nil {
		return err
	}

	if limit := cmd.Int("limit"); limit > 0 && limit < len(tracks) {
		tracks = tracks[:limit]
	}
	return r.render(formatter.Tracks(tracks, f))
}

// Track prints one track's detail.
func (r *Runner) Track(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: track id", shared.ErrMissingArgument)
	}
	f, err := r.format(cmd)
	if err != nil {
		return err
	}
	c, err := r.ctrl(ctx, cmd)
	if err != nil {
		return err
	}

	track, err := c.Catalog().Track(ctx, id)
	if err != nil {
		return err
	}
	return r.render(formatter.Track(*track, f))
}

// Playlists prints the user's playlists.
func (r *Runner) Playlists(ctx context.Context, cmd *cli.Command) error {
	f, err := r.format(cmd)
	if err != nil {
		return err
	}
	c, err := r.ctrl(ctx, cmd)
	if err != nil {
		return err
	}
	if err := c.RequireSession(ctx); err != nil {
		return err
	}

	playlists, err := c.Catalog().Playlists(ctx)
	if err != nil {
		return err
	}

	if limit := cmd.Int("limit"); limit > 0 && limit < len(playlists) {
		playlists = playlists[:limit]
	}
	if dir := cmd.String("export"); dir != "" {
		ids := make([]string, len(playlists))
		for i, p := range playlists {
			ids[i] = p.ID
		}
		return r.bulkExport(ctx, c.Catalog(), ids, tasks.BulkExportOpts{
			Format:     f,
			OutputDir:  dir,
			NumWorkers: cmd.Int("workers"),
			Warn:       os.Stderr,
		})
	}
	return r.render(formatter.Playlists(playlists, f))
}

func (r *Runner) bulkExport(ctx context.Context, fetcher tasks.PlaylistFetcher, ids []string, opts tasks.BulkExportOpts) error {
	prog := make(chan tasks.ProgressUpdate, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for u := range prog {
			r.writePlain("%s\n", u.Message)
		}
	}()

	result, err := tasks.NewExporter(fetcher, r.logger).BulkExport(ctx, prog, ids, opts)
	close(prog)
	<-done
	if result == nil {
		return err
	}

	r.writePlain("\n✓ Exported %d/%d playlists to %s\n", result.SuccessfulExports, result.TotalPlaylists, result.OutputDirectory)
	if result.ManifestPath != "" {
		r.writePlain("Manifest: %s\n", result.ManifestPath)
	}
	if err == nil && result.FailedExports > 0 {
		err = fmt.Errorf("%w: %d playlists failed to export", shared.ErrAPIRequest, result.FailedExports)
	}
	return err
}

// Playlist prints a playlist, or writes it to --export.
func (r *Runner) Playlist(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}
	f, err := r.format(cmd)
	if err != nil {
		return err
	}
	c, err := r.ctrl(ctx, cmd)
	if err != nil {
		return err
	}
	if err := c.RequireSession(ctx); err != nil {
		return err
	}

	playlist, err := c.Catalog().Playlist(ctx, id)
	if err != nil {
		return err
	}

	if dir := cmd.String("export"); dir != "" {
		result, err := formatter.WritePlaylistExport(*playlist, f, dir, os.Stderr)
		if err != nil {
			return err
		}
		r.writePlain("✓ Exported %s (%d tracks)\n", playlist.Name, len(playlist.Tracks))
		for _, file := range result.Files {
			r.writePlain("  %s\n", file)
		}
		return nil
	}
	return r.render(formatter.Playlist(*playlist, f, ""))
}
