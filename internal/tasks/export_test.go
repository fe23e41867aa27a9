package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/desertthunder/tunebridge/internal/formatter"
	"github.com/desertthunder/tunebridge/internal/models"
	"github.com/desertthunder/tunebridge/internal/shared"
)

type fakeFetcher struct {
	mu        sync.Mutex
	playlists map[string]models.Playlist
	calls     []string
	cancel    func()
}

func (f *fakeFetcher) Playlist(ctx context.Context, id string) (*models.Playlist, error) {
	f.mu.Lock()
	f.calls = append(f.calls, id)
	if f.cancel != nil && len(f.calls) == 1 {
		f.cancel()
	}
	f.mu.Unlock()

	p, ok := f.playlists[id]
	if !ok {
		return nil, fmt.Errorf("%w: playlist %s", shared.ErrNotFound, id)
	}
	return &p, nil
}

func newFetcher(count int) *fakeFetcher {
	f := &fakeFetcher{playlists: map[string]models.Playlist{}}
	for i := 1; i <= count; i++ {
		id := fmt.Sprintf("playlist%d", i)
		f.playlists[id] = models.Playlist{
			ID:   id,
			Name: fmt.Sprintf("Playlist %d", i),
			Tracks: []models.Track{
				{ID: "t1", Name: "Song", Artists: []string{"Artist"}, DurationMS: 180000},
			},
		}
	}
	return f
}

func ids(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("playlist%d", i+1)
	}
	return out
}

func readManifest(t *testing.T, path string) BulkExportResult {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read manifest: %v", err)
	}
	var m BulkExportResult
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("failed to parse manifest: %v", err)
	}
	return m
}

func TestBulkExport(t *testing.T) {
	tests := []struct {
		name      string
		format    formatter.Format
		count     int
		fileCount int
		files     []string
	}{
		{name: "single playlist json export", format: formatter.JSON, count: 1, fileCount: 1, files: []string{"playlist.json"}},
		{name: "multiple playlists csv export", format: formatter.CSV, count: 3, fileCount: 2, files: []string{"tracks.csv", "metadata.json"}},
		{name: "text export", format: formatter.Text, count: 2, fileCount: 1, files: []string{"tracks.txt"}},
		{name: "markdown export without cover", format: formatter.Markdown, count: 2, fileCount: 1, files: []string{"README.md"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			exporter := NewExporter(newFetcher(tt.count), nil)

			result, err := exporter.BulkExport(context.Background(), nil, ids(tt.count), BulkExportOpts{
				Format:    tt.format,
				OutputDir: dir,
			})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if result.SuccessfulExports != tt.count || result.FailedExports != 0 {
				t.Errorf("expected %d successes and no failures, got %d/%d", tt.count, result.SuccessfulExports, result.FailedExports)
			}
			for _, res := range result.Results {
				if len(res.Files) != tt.fileCount {
					t.Errorf("expected %d files for %s, got %d", tt.fileCount, res.PlaylistID, len(res.Files))
				}
				for _, name := range tt.files {
					if _, err := os.Stat(filepath.Join(dir, res.PlaylistID, name)); err != nil {
						t.Errorf("expected %s for %s: %v", name, res.PlaylistID, err)
					}
				}
			}

			manifest := readManifest(t, result.ManifestPath)
			if manifest.TotalPlaylists != tt.count || len(manifest.Results) != tt.count {
				t.Errorf("unexpected manifest %+v", manifest)
			}
		})
	}
}

func TestBulkExportFailures(t *testing.T) {
	t.Run("Partial Failure", func(t *testing.T) {
		dir := t.TempDir()
		exporter := NewExporter(newFetcher(2), nil)

		result, err := exporter.BulkExport(context.Background(), nil, []string{"playlist1", "missing", "playlist2"}, BulkExportOpts{
			Format:    formatter.JSON,
			OutputDir: dir,
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result.SuccessfulExports != 2 || result.FailedExports != 1 {
			t.Errorf("expected 2 successes and 1 failure, got %d/%d", result.SuccessfulExports, result.FailedExports)
		}

		var failed *PlaylistExportResult
		for i := range result.Results {
			if !result.Results[i].Success {
				failed = &result.Results[i]
			}
		}
		if failed == nil || failed.PlaylistID != "missing" || !strings.Contains(failed.Error, "failed to fetch playlist") {
			t.Errorf("unexpected failure entry %+v", failed)
		}
	})

	t.Run("Results Sorted By ID", func(t *testing.T) {
		exporter := NewExporter(newFetcher(5), nil)

		result, err := exporter.BulkExport(context.Background(), nil, []string{"playlist5", "playlist2", "playlist4", "playlist1", "playlist3"}, BulkExportOpts{
			Format:     formatter.JSON,
			OutputDir:  t.TempDir(),
			NumWorkers: 4,
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		for i, res := range result.Results {
			if want := fmt.Sprintf("playlist%d", i+1); res.PlaylistID != want {
				t.Errorf("expected %s at %d, got %s", want, i, res.PlaylistID)
			}
		}
	})

	t.Run("No Fetcher", func(t *testing.T) {
		_, err := NewExporter(nil, nil).BulkExport(context.Background(), nil, ids(1), BulkExportOpts{OutputDir: t.TempDir()})
		if !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})

	t.Run("No Playlists", func(t *testing.T) {
		_, err := NewExporter(newFetcher(1), nil).BulkExport(context.Background(), nil, nil, BulkExportOpts{OutputDir: t.TempDir()})
		if !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("Context Cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		fetcher := newFetcher(3)
		fetcher.cancel = cancel

		result, err := NewExporter(fetcher, nil).BulkExport(ctx, nil, ids(3), BulkExportOpts{
			Format:    formatter.JSON,
			OutputDir: t.TempDir(),
		})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if len(fetcher.calls) != 1 {
			t.Errorf("expected fetching to stop after cancel, got %v", fetcher.calls)
		}
		if result == nil || result.FailedExports != 2 || result.SuccessfulExports != 1 {
			t.Errorf("unexpected result %+v", result)
		}
	})
}

func TestBulkExportProgress(t *testing.T) {
	prog := make(chan ProgressUpdate, 32)
	exporter := NewExporter(newFetcher(2), nil)

	if _, err := exporter.BulkExport(context.Background(), prog, ids(2), BulkExportOpts{
		Format:    formatter.JSON,
		OutputDir: t.TempDir(),
	}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	close(prog)

	var fetches, exports int
	for u := range prog {
		switch u.Phase {
		case FetchPlaylists:
			fetches++
		case ExportPlaylist:
			exports++
			if !strings.Contains(u.Message, "✓") {
				t.Errorf("expected success marker, got %q", u.Message)
			}
		}
		if u.Total != 2 {
			t.Errorf("expected total 2, got %d", u.Total)
		}
	}
	if fetches != 2 || exports != 2 {
		t.Errorf("expected 2 fetch and 2 export updates, got %d/%d", fetches, exports)
	}
}

func TestSendProgress(t *testing.T) {
	t.Run("nil channel", func(t *testing.T) {
		sendProgress(nil, ProgressUpdate{})
	})

	t.Run("full channel does not block", func(t *testing.T) {
		ch := make(chan ProgressUpdate, 1)
		sendProgress(ch, ProgressUpdate{Step: 1})
		sendProgress(ch, ProgressUpdate{Step: 2})
		if got := <-ch; got.Step != 1 {
			t.Errorf("expected first update kept, got %d", got.Step)
		}
	})
}

func TestPhaseString(t *testing.T) {
	if FetchPlaylists.String() != "fetch_playlists" || ExportPlaylist.String() != "export_playlist" {
		t.Error("unexpected phase names")
	}
	if Phase(99).String() != "" {
		t.Error("expected empty name for unknown phase")
	}
}
