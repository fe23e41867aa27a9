package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/desertthunder/tunebridge/internal/models"
	"github.com/desertthunder/tunebridge/internal/shared"
)

// Gateway is the request layer over the backend REST contract.
//
// Every method is a single request/response with no retry and no fallback.
type Gateway struct {
	api *APIService
}

// NewGateway creates a [Gateway] over the given transport.
func NewGateway(api *APIService) *Gateway {
	return &Gateway{api: api}
}

// API returns the underlying transport.
func (g *Gateway) API() *APIService {
	return g.api
}

// Health is the body of GET /health.
type Health struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Health calls GET /health.
func (g *Gateway) Health(ctx context.Context) (*Health, error) {
	var h Health
	if err := g.api.GetJSON(ctx, "/health", &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// AuthStatus calls GET /auth/status.
func (g *Gateway) AuthStatus(ctx context.Context) (bool, error) {
	var resp struct {
		Authenticated bool `json:"authenticated"`
	}
	if err := g.api.GetJSON(ctx, "/auth/status", &resp); err != nil {
		return false, err
	}
	return resp.Authenticated, nil
}

// LoginURL calls GET /auth/login and returns the authorization endpoint.
func (g *Gateway) LoginURL(ctx context.Context) (string, error) {
	var resp struct {
		AuthURL string `json:"auth_url"`
	}
	if err := g.api.GetJSON(ctx, "/auth/login", &resp); err != nil {
		return "", err
	}
	if resp.AuthURL == "" {
		return "", fmt.Errorf("%w: backend returned no auth_url", shared.ErrAPIRequest)
	}
	return resp.AuthURL, nil
}

// ExchangeCode calls POST /auth/callback. The returned record is nil when the backend sent no token_info.
func (g *Gateway) ExchangeCode(ctx context.Context, code string) (*models.TokenRecord, error) {
	req := struct {
		Code string `json:"code"`
	}{Code: code}

	var resp struct {
		TokenInfo *models.TokenRecord `json:"token_info"`
	}
	if err := g.api.PostJSON(ctx, "/auth/callback", req, &resp); err != nil {
		return nil, err
	}
	return resp.TokenInfo, nil
}

// Logout calls POST /auth/logout. The client's session cookies are dropped whether or not the request succeeds.
func (g *Gateway) Logout(ctx context.Context) error {
	err := g.api.PostJSON(ctx, "/auth/logout", nil, nil)
	g.api.ResetCookies()
	return err
}

// Search calls GET /search?q=.
func (g *Gateway) Search(ctx context.Context, query string) ([]models.Track, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: search query", shared.ErrMissingArgument)
	}

	var resp struct {
		Tracks []models.Track `json:"tracks"`
	}
	if err := g.api.GetJSON(ctx, "/search?q="+url.QueryEscape(query), &resp); err != nil {
		return nil, err
	}
	return resp.Tracks, nil
}

// Track calls GET /track/:id.
func (g *Gateway) Track(ctx context.Context, trackID string) (*models.Track, error) {
	if trackID == "" {
		return nil, fmt.Errorf("%w: track id", shared.ErrMissingArgument)
	}

	var track models.Track
	if err := g.api.GetJSON(ctx, "/track/"+url.PathEscape(trackID), &track); err != nil {
		return nil, err
	}
	return &track, nil
}

// StreamByID calls POST /stream with {track_id}. This is the primary provider.
func (g *Gateway) StreamByID(ctx context.Context, trackID string) (*models.Stream, error) {
	return g.stream(ctx, map[string]string{"track_id": trackID})
}

// StreamByQuery calls POST /stream with {query}. This is the fallback provider.
func (g *Gateway) StreamByQuery(ctx context.Context, query string) (*models.Stream, error) {
	return g.stream(ctx, map[string]string{"query": query})
}

func (g *Gateway) stream(ctx context.Context, req map[string]string) (*models.Stream, error) {
	var s models.Stream
	if err := g.api.PostJSON(ctx, "/stream", req, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// CurrentTrack calls GET /user/current-track. A 404 means nothing is playing and yields (nil, nil).
func (g *Gateway) CurrentTrack(ctx context.Context) (*models.Track, error) {
	var track models.Track
	err := g.api.GetJSON(ctx, "/user/current-track", &track)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &track, nil
}

// Playlists calls GET /user/playlists.
func (g *Gateway) Playlists(ctx context.Context) ([]models.Playlist, error) {
	var resp struct {
		Playlists []models.Playlist `json:"playlists"`
	}
	if err := g.api.GetJSON(ctx, "/user/playlists", &resp); err != nil {
		return nil, err
	}
	return resp.Playlists, nil
}

// Playlist calls GET /playlist/:id. The backend omits the id in this response, so it is filled in from the request.
func (g *Gateway) Playlist(ctx context.Context, playlistID string) (*models.Playlist, error) {
	if playlistID == "" {
		return nil, fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}

	var playlist models.Playlist
	if err := g.api.GetJSON(ctx, "/playlist/"+url.PathEscape(playlistID), &playlist); err != nil {
		return nil, err
	}
	if playlist.ID == "" {
		playlist.ID = playlistID
	}
	if playlist.TrackCount == 0 {
		playlist.TrackCount = len(playlist.Tracks)
	}
	return &playlist, nil
}
