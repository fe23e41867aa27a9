package services

import (
	"context"

	"github.com/desertthunder/tunebridge/internal/models"
)

// Catalog is the read-only surface views depend on for browsing tracks and playlists.
//
// [Gateway] implements it; tests substitute a fake.
type Catalog interface {
	// Search returns tracks matching a free-text query.
	Search(ctx context.Context, query string) ([]models.Track, error)

	// Track retrieves a single track by catalog ID.
	Track(ctx context.Context, trackID string) (*models.Track, error)

	// Playlists lists the authenticated user's playlists.
	Playlists(ctx context.Context) ([]models.Playlist, error)

	// Playlist retrieves a playlist and its tracks.
	Playlist(ctx context.Context, playlistID string) (*models.Playlist, error)
}

var _ Catalog = (*Gateway)(nil)
