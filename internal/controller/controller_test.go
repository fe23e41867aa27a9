package controller

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/desertthunder/tunebridge/internal/models"
	"github.com/desertthunder/tunebridge/internal/nowplaying"
	"github.com/desertthunder/tunebridge/internal/session"
	"github.com/desertthunder/tunebridge/internal/shared"
	tu "github.com/desertthunder/tunebridge/internal/testing"
)

func testConfig(b *tu.Backend) *shared.Config {
	cfg := shared.DefaultConfig()
	cfg.API.BaseURL = b.URL()
	cfg.API.RateLimit = 0
	return cfg
}

// idleTicker never fires, so only the immediate first poll happens.
type idleTicker struct{ c chan time.Time }

func newIdleTicker(time.Duration) nowplaying.Ticker { return idleTicker{c: make(chan time.Time)} }

func (t idleTicker) C() <-chan time.Time { return t.c }
func (t idleTicker) Stop()               {}

func noBrowser() shared.Navigator {
	return shared.NavigatorFunc(func(string) error { return nil })
}

func TestController(t *testing.T) {
	ctx := context.Background()

	t.Run("Requires Config", func(t *testing.T) {
		if _, err := New(ctx, Options{}); !errors.Is(err, shared.ErrMissingConfig) {
			t.Errorf("expected ErrMissingConfig, got %v", err)
		}
	})

	t.Run("Web Keeps Token In Memory", func(t *testing.T) {
		b := tu.NewBackend(t)
		b.AddCode("code")
		cfg := testConfig(b)
		cfg.Session.Persistence = shared.PersistFile
		cfg.Session.TokenPath = filepath.Join(t.TempDir(), "token.json")

		c, err := New(ctx, Options{Config: cfg, Navigator: noBrowser()})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		defer c.Close()

		if err := c.Session().CompleteCallback(ctx, "code"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if s := c.Session().RefreshStatus(ctx); s.Status != models.Authenticated {
			t.Errorf("expected backend cookie to authenticate, got %v", s.Status)
		}
		if _, err := os.Stat(cfg.Session.TokenPath); !os.IsNotExist(err) {
			t.Error("expected web platform never to write a token file")
		}
		if _, err := os.Stat(filepath.Join(filepath.Dir(cfg.Session.TokenPath), session.CookieFileName)); !os.IsNotExist(err) {
			t.Error("expected web platform never to write a cookie file")
		}
	})

	t.Run("Mobile File Persistence", func(t *testing.T) {
		b := tu.NewBackend(t)
		b.AddCode("code")
		cfg := testConfig(b)
		cfg.Session.Platform = shared.PlatformMobile
		cfg.Session.Persistence = shared.PersistFile
		cfg.Session.TokenPath = filepath.Join(t.TempDir(), "token.json")

		c, err := New(ctx, Options{Config: cfg, Navigator: noBrowser()})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if err := c.Session().CompleteCallback(ctx, "code"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		c.Close()

		tu.AssertFileExists(t, cfg.Session.TokenPath)

		restarted, err := New(ctx, Options{Config: cfg, Navigator: noBrowser()})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		defer restarted.Close()
		if s := restarted.Session().Session(); s.Token == nil {
			t.Error("expected token restored on restart")
		}
		if s := restarted.Session().RefreshStatus(ctx); s.Status != models.Authenticated {
			t.Errorf("expected restored cookie to keep the backend session, got %v", s.Status)
		}
		if _, err := restarted.Catalog().Playlists(ctx); err != nil {
			t.Errorf("expected protected route after restart, got %v", err)
		}

		cookieFile := filepath.Join(filepath.Dir(cfg.Session.TokenPath), session.CookieFileName)
		tu.AssertFileMode(t, cookieFile, 0600)

		if err := restarted.Session().Logout(ctx); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if _, err := os.Stat(cfg.Session.TokenPath); !os.IsNotExist(err) {
			t.Error("expected logout to remove the token file")
		}
		if _, err := os.Stat(cookieFile); !os.IsNotExist(err) {
			t.Error("expected logout to remove the cookie file")
		}
	})

	t.Run("Mobile SQLite Persistence", func(t *testing.T) {
		b := tu.NewBackend(t)
		b.AddCode("code")
		cfg := testConfig(b)
		cfg.Session.Platform = shared.PlatformMobile
		cfg.Session.Persistence = shared.PersistSQLite
		cfg.Database.Path = filepath.Join(t.TempDir(), "tunebridge.db")

		c, err := New(ctx, Options{Config: cfg, Navigator: noBrowser()})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if err := c.Session().CompleteCallback(ctx, "code"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if err := c.Close(); err != nil {
			t.Fatalf("expected no error closing, got %v", err)
		}

		restarted, err := New(ctx, Options{Config: cfg, Navigator: noBrowser()})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		defer restarted.Close()
		if s := restarted.Session().Session(); s.Token == nil || s.Token.AccessToken != "at" {
			t.Errorf("expected token restored from sqlite, got %+v", s)
		}
		if err := restarted.RequireSession(ctx); err != nil {
			t.Errorf("expected restored cookie to keep the backend session, got %v", err)
		}
	})

	t.Run("Require Session", func(t *testing.T) {
		t.Run("Unauthenticated", func(t *testing.T) {
			b := tu.NewBackend(t)
			c, err := New(ctx, Options{Config: testConfig(b), Navigator: noBrowser()})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			defer c.Close()

			if err := c.RequireSession(ctx); !errors.Is(err, shared.ErrNotAuthenticated) {
				t.Errorf("expected ErrNotAuthenticated, got %v", err)
			}
			if b.Hits("/auth/status") != 1 {
				t.Errorf("expected one status check, got %d", b.Hits("/auth/status"))
			}
		})

		t.Run("Expired Token", func(t *testing.T) {
			b := tu.NewBackend(t)
			cfg := testConfig(b)
			cfg.Session.Platform = shared.PlatformMobile
			cfg.Session.Persistence = shared.PersistFile
			cfg.Session.TokenPath = filepath.Join(t.TempDir(), "token.json")
			if err := os.WriteFile(cfg.Session.TokenPath, []byte(`{"access_token":"old","expires_at":1600000000}`), 0600); err != nil {
				t.Fatalf("failed to write token: %v", err)
			}

			c, err := New(ctx, Options{Config: cfg, Navigator: noBrowser()})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			defer c.Close()

			err = c.RequireSession(ctx)
			if !errors.Is(err, shared.ErrTokenExpired) || !errors.Is(err, shared.ErrNotAuthenticated) {
				t.Errorf("expected ErrTokenExpired, got %v", err)
			}
		})

		t.Run("Follow Does Not Start Polling", func(t *testing.T) {
			b := tu.NewBackend(t)
			b.SetCurrent(&models.Track{ID: "now", Name: "Live"})
			c, err := New(ctx, Options{Config: testConfig(b), Navigator: noBrowser()})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			defer c.Close()

			sub, err := c.Follow(ctx)
			if !errors.Is(err, shared.ErrNotAuthenticated) || sub != nil {
				t.Errorf("expected ErrNotAuthenticated and no subscription, got %v, %v", sub, err)
			}
			if c.NowPlaying().Running() {
				t.Error("expected synchronizer to stay stopped")
			}
			if b.Hits("/user/current-track") != 0 {
				t.Errorf("expected no poll, got %d", b.Hits("/user/current-track"))
			}
		})
	})

	t.Run("Play Falls Back And Records History", func(t *testing.T) {
		b := tu.NewBackend(t)
		b.StreamByID = func(string) (int, any) { return http.StatusNotFound, nil }
		b.StreamByQuery = func(q string) (int, any) {
			return http.StatusOK, models.Stream{URL: "https://cdn/fallback", Title: q}
		}
		cfg := testConfig(b)
		cfg.Stream.History = true

		db, err := shared.NewDatabase(":memory:")
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()
		if err := shared.RunMigrations(db); err != nil {
			t.Fatalf("failed to migrate: %v", err)
		}

		c, err := New(ctx, Options{Config: cfg, DB: db, Navigator: noBrowser()})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		defer c.Close()

		var played *models.StreamResult
		sink := SinkFunc(func(_ context.Context, r *models.StreamResult) error { played = r; return nil })
		track := models.Track{ID: "abc", Name: "Song", Artists: []string{"Artist"}}

		result, err := c.Play(ctx, models.RefForTrack(track), sink)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result.Source != models.SourceFallback || played != result {
			t.Errorf("expected fallback result handed to sink, got %+v", result)
		}
		if got := b.Bodies("/stream"); len(got) != 2 || got[1]["query"] != "Song Artist" {
			t.Errorf("unexpected stream requests %v", got)
		}

		history, err := c.History(ctx, 10)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(history) != 1 || history[0].Source != "fallback" {
			t.Errorf("unexpected history %+v", history)
		}
	})

	t.Run("Play Reports Unavailable", func(t *testing.T) {
		b := tu.NewBackend(t)
		b.AddCode("code")
		b.SetCurrent(&models.Track{ID: "now", Name: "Live"})
		c, err := New(ctx, Options{Config: testConfig(b), Navigator: noBrowser(), NewTicker: newIdleTicker})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		defer c.Close()
		if err := c.Session().CompleteCallback(ctx, "code"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		sub, err := c.Follow(ctx)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		defer sub.Close()
		select {
		case <-sub.Updates():
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for first snapshot")
		}

		sessionBefore := c.Session().Session()
		snapBefore, _ := c.NowPlaying().Snapshot()
		statsBefore := c.NowPlaying().Stats()

		sink := SinkFunc(func(context.Context, *models.StreamResult) error {
			t.Error("sink should not be called")
			return nil
		})
		if _, err := c.Play(ctx, models.TrackRef{Query: "nothing"}, sink); !errors.Is(err, shared.ErrStreamUnavailable) {
			t.Errorf("expected ErrStreamUnavailable, got %v", err)
		}

		if after := c.Session().Session(); after.Status != sessionBefore.Status || after.Token != sessionBefore.Token {
			t.Errorf("expected session unchanged, got %+v (was %+v)", after, sessionBefore)
		}
		snapAfter, ok := c.NowPlaying().Snapshot()
		if !ok || snapAfter.Track != snapBefore.Track || !snapAfter.FetchedAt.Equal(snapBefore.FetchedAt) {
			t.Errorf("expected now-playing snapshot unchanged, got %+v (was %+v)", snapAfter, snapBefore)
		}
		if got := c.NowPlaying().Stats(); got != statsBefore {
			t.Errorf("expected synchronizer stats %+v, got %+v", statsBefore, got)
		}
		if !c.NowPlaying().Running() {
			t.Error("expected polling to continue")
		}
		if _, err := c.History(ctx, 1); !errors.Is(err, shared.ErrHistoryDisabled) {
			t.Errorf("expected ErrHistoryDisabled, got %v", err)
		}
	})

	t.Run("Now Playing", func(t *testing.T) {
		b := tu.NewBackend(t)
		b.AddCode("code")
		b.SetCurrent(&models.Track{ID: "now", Name: "Live"})
		c, err := New(ctx, Options{Config: testConfig(b), Navigator: noBrowser()})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if err := c.Session().CompleteCallback(ctx, "code"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		sub, err := c.Follow(ctx)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		select {
		case snap := <-sub.Updates():
			if snap.Track == nil || snap.Track.ID != "now" {
				t.Errorf("unexpected snapshot %+v", snap)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for first snapshot")
		}

		c.Close()
		if c.NowPlaying().Running() {
			t.Error("expected Close to stop polling")
		}
	})
}
