// package models defines the data model for the playback controller
package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// Track is a read-only snapshot from the catalog or now-playing endpoints.
type Track struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Artists    []string `json:"artists"`
	Album      string   `json:"album"`
	ImageURL   string   `json:"image,omitempty"`
	IsPlaying  *bool    `json:"is_playing,omitempty"`
	DurationMS int      `json:"duration_ms,omitempty"`
	ProgressMS int      `json:"progress_ms,omitempty"`
	PreviewURL string   `json:"preview_url,omitempty"`
	SpotifyURL string   `json:"spotify_url,omitempty"`
}

// ArtistLine joins the artists with ", " for display.
func (t Track) ArtistLine() string {
	return strings.Join(t.Artists, ", ")
}

// SearchText builds the free-text description used for fallback searches: the name followed by every artist.
func (t Track) SearchText() string {
	parts := make([]string, 0, len(t.Artists)+1)
	if name := strings.TrimSpace(t.Name); name != "" {
		parts = append(parts, name)
	}
	for _, a := range t.Artists {
		if a = strings.TrimSpace(a); a != "" {
			parts = append(parts, a)
		}
	}
	return strings.Join(parts, " ")
}

// Playing reports the optional is_playing flag, false when absent.
func (t Track) Playing() bool {
	return t.IsPlaying != nil && *t.IsPlaying
}

// Playlist represents a user playlist. Tracks is only populated by the playlist detail endpoint.
type Playlist struct {
	ID          string  `json:"id,omitempty"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	TrackCount  int     `json:"tracks_total,omitempty"`
	ImageURL    string  `json:"image,omitempty"`
	Public      bool    `json:"public,omitempty"`
	Tracks      []Track `json:"tracks,omitempty"`
}

// SessionStatus enumerates the authentication states.
type SessionStatus int

const (
	Unauthenticated SessionStatus = iota
	PendingCallback
	Authenticated
	Expired
)

func (s SessionStatus) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case PendingCallback:
		return "pending_callback"
	case Authenticated:
		return "authenticated"
	case Expired:
		return "expired"
	default:
		return fmt.Sprintf("SessionStatus(%d)", int(s))
	}
}

// Session is the authentication state owned by the session manager.
type Session struct {
	Status SessionStatus
	Token  *TokenRecord
}

// TokenRecord is the token_info object handed back by the login callback.
//
// The raw JSON is kept untouched so persistence round-trips every field the backend sent.
type TokenRecord struct {
	raw json.RawMessage

	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	Scope        string `json:"scope,omitempty"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	ExpiresAt    int64  `json:"expires_at,omitempty"` // unix seconds
}

// ParseTokenRecord decodes a token_info object. A JSON null or empty input yields nil.
func ParseTokenRecord(data []byte) (*TokenRecord, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}

	type fields TokenRecord
	var f fields
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to decode token_info: %w", err)
	}

	rec := TokenRecord(f)
	rec.raw = append(json.RawMessage(nil), data...)
	return &rec, nil
}

// MarshalJSON returns the original token_info bytes when available.
func (r TokenRecord) MarshalJSON() ([]byte, error) {
	if len(r.raw) > 0 {
		return r.raw, nil
	}
	type fields TokenRecord
	return json.Marshal(fields(r))
}

// UnmarshalJSON implements [json.Unmarshaler] via [ParseTokenRecord].
func (r *TokenRecord) UnmarshalJSON(data []byte) error {
	rec, err := ParseTokenRecord(data)
	if err != nil {
		return err
	}
	if rec == nil {
		*r = TokenRecord{}
		return nil
	}
	*r = *rec
	return nil
}

// Expiry returns the expiry time, or the zero time when the record carries none.
func (r *TokenRecord) Expiry() time.Time {
	if r == nil || r.ExpiresAt == 0 {
		return time.Time{}
	}
	return time.Unix(r.ExpiresAt, 0)
}

// OAuth2 converts the record to an [oauth2.Token].
func (r *TokenRecord) OAuth2() *oauth2.Token {
	if r == nil {
		return nil
	}
	return &oauth2.Token{
		AccessToken:  r.AccessToken,
		TokenType:    r.TokenType,
		RefreshToken: r.RefreshToken,
		Expiry:       r.Expiry(),
	}
}

// ExpiredAt reports whether the record's [oauth2.Token] has a known expiry at or before now.
//
// Records without an expiry never expire locally; the backend's status check is authoritative for them.
func (r *TokenRecord) ExpiredAt(now time.Time) bool {
	tok := r.OAuth2()
	if tok == nil || tok.Expiry.IsZero() {
		return false
	}
	return !now.Before(tok.Expiry)
}

// TrackRef is the input to stream resolution. Exactly one of ID or Query is set.
//
// Hint optionally carries metadata for the identified track so a fallback query can be derived.
type TrackRef struct {
	ID    string
	Query string
	Hint  *Track
}

// RefForTrack builds a [TrackRef] for a catalog track, keeping the track as the fallback hint.
func RefForTrack(t Track) TrackRef {
	return TrackRef{ID: t.ID, Hint: &t}
}

// Validate checks that exactly one of ID or Query is populated.
func (r TrackRef) Validate() error {
	hasID := strings.TrimSpace(r.ID) != ""
	hasQuery := strings.TrimSpace(r.Query) != ""
	switch {
	case hasID && hasQuery:
		return fmt.Errorf("track ref must set id or query, not both")
	case !hasID && !hasQuery:
		return fmt.Errorf("track ref must set id or query")
	}
	return nil
}

// StreamSource identifies which provider produced a stream URL.
type StreamSource int

const (
	SourcePrimary StreamSource = iota
	SourceFallback
)

func (s StreamSource) String() string {
	switch s {
	case SourcePrimary:
		return "primary"
	case SourceFallback:
		return "fallback"
	default:
		return fmt.Sprintf("StreamSource(%d)", int(s))
	}
}

// MarshalText implements [encoding.TextMarshaler].
func (s StreamSource) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Stream is the body of a successful POST /stream.
type Stream struct {
	URL       string  `json:"url"`
	Title     string  `json:"title,omitempty"`
	Duration  float64 `json:"duration,omitempty"`
	Thumbnail string  `json:"thumbnail,omitempty"`
}

// StreamResult is produced once per resolution and handed to the playback sink.
type StreamResult struct {
	Source    StreamSource `json:"source"`
	URL       string       `json:"url"`
	Title     string       `json:"title,omitempty"`
	Duration  float64      `json:"duration,omitempty"`
	Thumbnail string       `json:"thumbnail,omitempty"`
}

// NewStreamResult wraps a provider response with the source that served it.
func NewStreamResult(source StreamSource, s *Stream) *StreamResult {
	return &StreamResult{
		Source:    source,
		URL:       s.URL,
		Title:     s.Title,
		Duration:  s.Duration,
		Thumbnail: s.Thumbnail,
	}
}

// PollSnapshot is the latest now-playing state. A nil Track means nothing is playing.
//
// Err is only set when the very first poll failed and there is no earlier snapshot to keep.
type PollSnapshot struct {
	Track     *Track    `json:"track"`
	FetchedAt time.Time `json:"fetched_at"`
	Err       error     `json:"-"`
}

// HasTrack reports whether a track is playing in this snapshot.
func (p PollSnapshot) HasTrack() bool {
	return p.Track != nil
}
