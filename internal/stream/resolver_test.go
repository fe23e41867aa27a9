package stream

import (
	"context"
	"errors"
	"testing"

	"github.com/desertthunder/tunebridge/internal/models"
	"github.com/desertthunder/tunebridge/internal/shared"
)

type fakeProvider struct {
	byID    func(id string) (*models.Stream, error)
	byQuery func(q string) (*models.Stream, error)
	ids     []string
	queries []string
}

func (f *fakeProvider) StreamByID(_ context.Context, id string) (*models.Stream, error) {
	f.ids = append(f.ids, id)
	if f.byID == nil {
		return nil, shared.ErrNotFound
	}
	return f.byID(id)
}

func (f *fakeProvider) StreamByQuery(_ context.Context, q string) (*models.Stream, error) {
	f.queries = append(f.queries, q)
	if f.byQuery == nil {
		return nil, shared.ErrNotFound
	}
	return f.byQuery(q)
}

type recorded struct {
	ref    models.TrackRef
	query  string
	result *models.StreamResult
	err    error
}

type fakeRecorder struct {
	entries []recorded
	err     error
}

func (f *fakeRecorder) RecordResolution(_ context.Context, ref models.TrackRef, query string, result *models.StreamResult, err error) error {
	f.entries = append(f.entries, recorded{ref, query, result, err})
	return f.err
}

func ok(url string) func(string) (*models.Stream, error) {
	return func(string) (*models.Stream, error) { return &models.Stream{URL: url, Title: "title"}, nil }
}

func TestResolver(t *testing.T) {
	ctx := context.Background()
	hint := &models.Track{ID: "abc", Name: "Song", Artists: []string{"Artist One", "Artist Two"}}

	t.Run("Primary Success Skips Fallback", func(t *testing.T) {
		p := &fakeProvider{byID: ok("https://primary/abc"), byQuery: ok("https://fallback")}
		r := NewResolver(p, p, Options{DeriveQuery: true})

		result, err := r.Resolve(ctx, models.TrackRef{ID: "abc", Hint: hint})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result.Source != models.SourcePrimary || result.URL != "https://primary/abc" {
			t.Errorf("unexpected result %+v", result)
		}
		if len(p.queries) != 0 {
			t.Errorf("expected fallback never called, got %v", p.queries)
		}
	})

	t.Run("Primary Failure Uses Derived Query", func(t *testing.T) {
		p := &fakeProvider{byQuery: ok("https://fallback/song")}
		r := NewResolver(p, p, Options{DeriveQuery: true})

		result, err := r.Resolve(ctx, models.TrackRef{ID: "abc", Hint: hint})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result.Source != models.SourceFallback {
			t.Errorf("expected fallback source, got %v", result.Source)
		}
		if len(p.ids) != 1 || len(p.queries) != 1 {
			t.Errorf("expected one call each, got %d / %d", len(p.ids), len(p.queries))
		}
		if p.queries[0] != "Song Artist One Artist Two" {
			t.Errorf("unexpected derived query %q", p.queries[0])
		}
	})

	t.Run("Empty Primary URL Counts As Failure", func(t *testing.T) {
		p := &fakeProvider{byID: ok(""), byQuery: ok("https://fallback")}
		r := NewResolver(p, p, Options{DeriveQuery: true})

		result, err := r.Resolve(ctx, models.TrackRef{ID: "abc", Hint: hint})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result.Source != models.SourceFallback {
			t.Errorf("expected fallback after empty url, got %v", result.Source)
		}
	})

	t.Run("Query Only Goes Straight To Fallback", func(t *testing.T) {
		p := &fakeProvider{byID: ok("https://primary"), byQuery: ok("https://fallback")}
		r := NewResolver(p, p, Options{})

		result, err := r.Resolve(ctx, models.TrackRef{Query: "  lofi beats  "})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(p.ids) != 0 {
			t.Error("expected primary not called without an id")
		}
		if p.queries[0] != "lofi beats" || result.Source != models.SourceFallback {
			t.Errorf("unexpected query %q / source %v", p.queries[0], result.Source)
		}
	})

	t.Run("Both Fail", func(t *testing.T) {
		p := &fakeProvider{byID: func(string) (*models.Stream, error) { return nil, shared.ErrTransientNetwork }}
		r := NewResolver(p, p, Options{DeriveQuery: true})

		result, err := r.Resolve(ctx, models.TrackRef{ID: "abc", Hint: hint})
		if result != nil {
			t.Errorf("expected no result, got %+v", result)
		}
		if !errors.Is(err, shared.ErrStreamUnavailable) {
			t.Fatalf("expected ErrStreamUnavailable, got %v", err)
		}

		var unavailable *shared.StreamUnavailableError
		if !errors.As(err, &unavailable) {
			t.Fatalf("expected StreamUnavailableError, got %T", err)
		}
		if !errors.Is(unavailable.Primary, shared.ErrTransientNetwork) || !errors.Is(unavailable.Fallback, shared.ErrNotFound) {
			t.Errorf("expected both reasons, got %+v", unavailable)
		}
		if len(p.ids) != 1 || len(p.queries) != 1 {
			t.Errorf("expected each provider called once, got %d / %d", len(p.ids), len(p.queries))
		}
	})

	t.Run("No Text For Fallback", func(t *testing.T) {
		p := &fakeProvider{}
		r := NewResolver(p, p, Options{DeriveQuery: true})

		_, err := r.Resolve(ctx, models.TrackRef{ID: "abc"})
		if !errors.Is(err, shared.ErrStreamUnavailable) || !errors.Is(err, shared.ErrNoFallbackQuery) {
			t.Errorf("expected unavailable with no fallback query, got %v", err)
		}
		if len(p.queries) != 0 {
			t.Error("expected fallback not called without text")
		}
	})

	t.Run("Derivation Disabled", func(t *testing.T) {
		p := &fakeProvider{byQuery: ok("https://fallback")}
		r := NewResolver(p, p, Options{DeriveQuery: false})

		if _, err := r.Resolve(ctx, models.TrackRef{ID: "abc", Hint: hint}); !errors.Is(err, shared.ErrNoFallbackQuery) {
			t.Errorf("expected ErrNoFallbackQuery, got %v", err)
		}
	})

	t.Run("Invalid Ref", func(t *testing.T) {
		p := &fakeProvider{}
		r := NewResolver(p, p, Options{})

		for _, ref := range []models.TrackRef{{}, {ID: "a", Query: "b"}} {
			if _, err := r.Resolve(ctx, ref); !errors.Is(err, shared.ErrInvalidTrackRef) {
				t.Errorf("expected ErrInvalidTrackRef for %+v, got %v", ref, err)
			}
		}
		if len(p.ids)+len(p.queries) != 0 {
			t.Error("expected no provider calls for invalid refs")
		}
	})

	t.Run("Cancelled After Primary", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		p := &fakeProvider{byID: func(string) (*models.Stream, error) {
			cancel()
			return nil, context.Canceled
		}}
		r := NewResolver(p, p, Options{DeriveQuery: true})

		_, err := r.Resolve(cctx, models.TrackRef{ID: "abc", Hint: hint})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected cancellation to surface, got %v", err)
		}
		if len(p.queries) != 0 {
			t.Error("expected no fallback call after cancellation")
		}
	})

	t.Run("Recorder", func(t *testing.T) {
		rec := &fakeRecorder{err: errors.New("db locked")}
		p := &fakeProvider{byQuery: ok("https://fallback")}
		r := NewResolver(p, p, Options{DeriveQuery: true, Recorder: rec})

		if _, err := r.Resolve(ctx, models.TrackRef{ID: "abc", Hint: hint}); err != nil {
			t.Fatalf("expected recorder failure to be ignored, got %v", err)
		}
		if len(rec.entries) != 1 {
			t.Fatalf("expected one entry, got %d", len(rec.entries))
		}
		got := rec.entries[0]
		if got.result == nil || got.result.Source != models.SourceFallback || got.query != "Song Artist One Artist Two" {
			t.Errorf("unexpected entry %+v", got)
		}
	})
}
