package services

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/desertthunder/tunebridge/internal/models"
	"github.com/desertthunder/tunebridge/internal/shared"
	tu "github.com/desertthunder/tunebridge/internal/testing"
)

func newTestGateway(b *tu.Backend) *Gateway {
	return NewGateway(NewAPIService(APIOpts{BaseURL: b.URL(), HTTPClient: NewHTTPClient(2*time.Second, nil)}))
}

// signIn completes a callback so the gateway's jar carries a live session cookie.
func signIn(t *testing.T, b *tu.Backend, g *Gateway) {
	t.Helper()
	b.AddCode("sign-in")
	if _, err := g.ExchangeCode(context.Background(), "sign-in"); err != nil {
		t.Fatalf("failed to sign in: %v", err)
	}
}

func TestGateway(t *testing.T) {
	ctx := context.Background()

	t.Run("Auth", func(t *testing.T) {
		t.Run("Login Flow Uses Session Cookie", func(t *testing.T) {
			b := tu.NewBackend(t)
			b.AddCode("good")
			g := newTestGateway(b)

			authed, err := g.AuthStatus(ctx)
			if err != nil || authed {
				t.Fatalf("expected unauthenticated, got %v, %v", authed, err)
			}

			u, err := g.LoginURL(ctx)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if u != b.AuthURL {
				t.Errorf("expected %s, got %s", b.AuthURL, u)
			}

			rec, err := g.ExchangeCode(ctx, "good")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if rec == nil || rec.AccessToken != "at" {
				t.Errorf("expected token record, got %+v", rec)
			}
			if got := b.Bodies("/auth/callback"); len(got) != 1 || got[0]["code"] != "good" {
				t.Errorf("unexpected callback body %v", got)
			}

			if authed, _ := g.AuthStatus(ctx); !authed {
				t.Error("expected authenticated after exchange")
			}

			if err := g.Logout(ctx); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if authed, _ := g.AuthStatus(ctx); authed {
				t.Error("expected unauthenticated after logout")
			}
		})

		t.Run("Consumed Code", func(t *testing.T) {
			b := tu.NewBackend(t)
			b.AddCode("once")
			g := newTestGateway(b)

			if _, err := g.ExchangeCode(ctx, "once"); err != nil {
				t.Fatalf("expected first exchange to succeed, got %v", err)
			}
			_, err := g.ExchangeCode(ctx, "once")

			var statusErr *shared.StatusError
			if !errors.As(err, &statusErr) || statusErr.Code != http.StatusBadRequest {
				t.Errorf("expected 400 status error, got %v", err)
			}
		})

		t.Run("Missing Auth URL", func(t *testing.T) {
			b := tu.NewBackend(t)
			b.AuthURL = ""
			if _, err := newTestGateway(b).LoginURL(ctx); !errors.Is(err, shared.ErrAPIRequest) {
				t.Errorf("expected ErrAPIRequest, got %v", err)
			}
		})

		t.Run("Logout Drops Cookies When Request Fails", func(t *testing.T) {
			b := tu.NewBackend(t)
			g := newTestGateway(b)
			signIn(t, b, g)

			b.FailWith("/auth/logout", http.StatusInternalServerError)
			if err := g.Logout(ctx); err == nil {
				t.Fatal("expected logout request to fail")
			}
			b.FailWith("/auth/logout", 0)

			if b.Sessions() != 1 {
				t.Fatalf("expected backend session to survive, got %d", b.Sessions())
			}
			if authed, _ := g.AuthStatus(ctx); authed {
				t.Error("expected client to stop sending the session cookie")
			}
		})

		t.Run("Status Failure", func(t *testing.T) {
			b := tu.NewBackend(t)
			b.FailWith("/auth/status", http.StatusInternalServerError)
			if _, err := newTestGateway(b).AuthStatus(ctx); !errors.Is(err, shared.ErrAPIRequest) {
				t.Errorf("expected ErrAPIRequest, got %v", err)
			}
		})
	})

	t.Run("Catalog", func(t *testing.T) {
		b := tu.NewBackend(t)
		b.Results = []models.Track{{ID: "1", Name: "One", Artists: []string{"A"}}}
		b.Tracks["1"] = b.Results[0]
		b.Playlists["p1"] = models.Playlist{ID: "p1", Name: "Mix", Tracks: b.Results}
		g := newTestGateway(b)
		signIn(t, b, g)

		t.Run("Search", func(t *testing.T) {
			tracks, err := g.Search(ctx, "one")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if len(tracks) != 1 || tracks[0].Name != "One" {
				t.Errorf("unexpected tracks %+v", tracks)
			}
		})

		t.Run("Search Requires Query", func(t *testing.T) {
			before := b.Hits("/search")
			if _, err := g.Search(ctx, "   "); !errors.Is(err, shared.ErrMissingArgument) {
				t.Errorf("expected ErrMissingArgument, got %v", err)
			}
			if b.Hits("/search") != before {
				t.Error("expected no request for empty query")
			}
		})

		t.Run("Track", func(t *testing.T) {
			track, err := g.Track(ctx, "1")
			if err != nil || track.ID != "1" {
				t.Errorf("expected track 1, got %+v, %v", track, err)
			}
			if _, err := g.Track(ctx, "missing"); !errors.Is(err, shared.ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}
		})

		t.Run("Playlists", func(t *testing.T) {
			lists, err := g.Playlists(ctx)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if len(lists) != 1 || lists[0].TrackCount != 1 {
				t.Errorf("unexpected playlists %+v", lists)
			}
		})

		t.Run("User Routes Require Session", func(t *testing.T) {
			anon := newTestGateway(b)
			if _, err := anon.Playlists(ctx); !errors.Is(err, shared.ErrNotAuthenticated) {
				t.Errorf("expected ErrNotAuthenticated, got %v", err)
			}
			if _, err := anon.Playlist(ctx, "p1"); !errors.Is(err, shared.ErrNotAuthenticated) {
				t.Errorf("expected ErrNotAuthenticated, got %v", err)
			}
			if _, err := anon.Search(ctx, "one"); err != nil {
				t.Errorf("expected search without a session, got %v", err)
			}
		})

		t.Run("Playlist Fills ID", func(t *testing.T) {
			p, err := g.Playlist(ctx, "p1")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if p.ID != "p1" || p.TrackCount != 1 || len(p.Tracks) != 1 {
				t.Errorf("unexpected playlist %+v", p)
			}
		})
	})

	t.Run("Stream", func(t *testing.T) {
		b := tu.NewBackend(t)
		b.StreamByID = func(id string) (int, any) {
			return http.StatusOK, models.Stream{URL: "https://cdn/" + id, Title: "t", Duration: 12.5}
		}
		b.StreamByQuery = func(q string) (int, any) {
			return http.StatusNotFound, nil
		}
		g := newTestGateway(b)

		s, err := g.StreamByID(ctx, "abc")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if s.URL != "https://cdn/abc" || s.Duration != 12.5 {
			t.Errorf("unexpected stream %+v", s)
		}

		if _, err := g.StreamByQuery(ctx, "song"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}

		bodies := b.Bodies("/stream")
		if len(bodies) != 2 || bodies[0]["track_id"] != "abc" || bodies[1]["query"] != "song" {
			t.Errorf("unexpected stream bodies %v", bodies)
		}
	})

	t.Run("CurrentTrack", func(t *testing.T) {
		b := tu.NewBackend(t)
		g := newTestGateway(b)
		signIn(t, b, g)

		t.Run("Nothing Playing", func(t *testing.T) {
			track, err := g.CurrentTrack(ctx)
			if err != nil || track != nil {
				t.Errorf("expected (nil, nil) for 404, got %+v, %v", track, err)
			}
		})

		t.Run("Playing", func(t *testing.T) {
			b.SetCurrent(&models.Track{ID: "x", Name: "Now"})
			track, err := g.CurrentTrack(ctx)
			if err != nil || track == nil || track.ID != "x" {
				t.Errorf("expected current track, got %+v, %v", track, err)
			}
		})

		t.Run("Unauthorized", func(t *testing.T) {
			b.FailWith("/user/current-track", http.StatusUnauthorized)
			defer b.FailWith("/user/current-track", 0)
			if _, err := g.CurrentTrack(ctx); !errors.Is(err, shared.ErrNotAuthenticated) {
				t.Errorf("expected ErrNotAuthenticated, got %v", err)
			}
		})
	})

	t.Run("Health", func(t *testing.T) {
		b := tu.NewBackend(t)
		h, err := newTestGateway(b).Health(ctx)
		if err != nil || h.Status != "healthy" {
			t.Errorf("expected healthy, got %+v, %v", h, err)
		}
		for _, id := range b.RequestIDs() {
			if id == "" {
				t.Error("expected every request to carry an id")
			}
		}
	})
}
