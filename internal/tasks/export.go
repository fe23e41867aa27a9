package tasks

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tunebridge/internal/formatter"
	"github.com/desertthunder/tunebridge/internal/models"
	"github.com/desertthunder/tunebridge/internal/shared"
	"golang.org/x/time/rate"
)

const (
	defaultWorkers = 3
	maxWorkers     = 10
	manifestName   = "export_manifest.json"
)

// PlaylistFetcher loads a playlist with its tracks.
type PlaylistFetcher interface {
	Playlist(ctx context.Context, id string) (*models.Playlist, error)
}

// BulkExportOpts contains configuration for bulk playlist exports.
type BulkExportOpts struct {
	Format     formatter.Format
	OutputDir  string  // default: playlists_export_{epoch}
	NumWorkers int     // default 3, capped at 10
	RateLimit  float64 // playlist fetches per second, 0 for none
	Warn       io.Writer
}

// PlaylistExportResult is the outcome for one playlist.
type PlaylistExportResult struct {
	PlaylistID   string   `json:"playlist_id"`
	PlaylistName string   `json:"playlist_name"`
	Success      bool     `json:"success"`
	Files        []string `json:"files,omitempty"`
	Error        string   `json:"error,omitempty"`
}

// BulkExportResult summarizes a bulk export.
type BulkExportResult struct {
	TotalPlaylists    int                    `json:"total_playlists"`
	SuccessfulExports int                    `json:"successful_exports"`
	FailedExports     int                    `json:"failed_exports"`
	OutputDirectory   string                 `json:"output_directory"`
	ManifestPath      string                 `json:"-"`
	ExportedAt        time.Time              `json:"exported_at"`
	Results           []PlaylistExportResult `json:"results"`
}

// Exporter writes playlists to disk.
type Exporter struct {
	fetcher PlaylistFetcher
	logger  *log.Logger
}

// NewExporter creates an [Exporter] reading from fetcher.
func NewExporter(fetcher PlaylistFetcher, logger *log.Logger) *Exporter {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &Exporter{fetcher: fetcher, logger: logger}
}

// BulkExport exports the playlists in ids concurrently. Each playlist lands in its own subdirectory named by
// ID. A cancelled ctx stops new fetches; playlists already fetched still finish.
func (e *Exporter) BulkExport(ctx context.Context, prog chan<- ProgressUpdate, ids []string, opts BulkExportOpts) (*BulkExportResult, error) {
	if e.fetcher == nil {
		return nil, fmt.Errorf("%w: playlist fetcher not initialized", shared.ErrServiceUnavailable)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no playlists to export", shared.ErrMissingArgument)
	}

	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("playlists_export_%d", time.Now().Unix())
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = defaultWorkers
	}
	if opts.NumWorkers > maxWorkers {
		opts.NumWorkers = maxWorkers
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	result := &BulkExportResult{
		TotalPlaylists:  len(ids),
		OutputDirectory: opts.OutputDir,
		ExportedAt:      time.Now().UTC(),
		Results:         make([]PlaylistExportResult, 0, len(ids)),
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}

	jobs := make(chan *models.Playlist, len(ids))
	results := make(chan PlaylistExportResult, len(ids))

	var wg sync.WaitGroup
	for i := 0; i < opts.NumWorkers; i++ {
		wg.Add(1)
		go e.exportWorker(&wg, jobs, results, opts)
	}

	go func() {
		defer close(jobs)
		for i, id := range ids {
			if err := limiter.Wait(ctx); err != nil {
				return
			}
			sendProgress(prog, fetchingPlaylistUpdate(i+1, len(ids), id))

			p, err := e.fetcher.Playlist(ctx, id)
			if err != nil {
				results <- PlaylistExportResult{
					PlaylistID:   id,
					PlaylistName: fmt.Sprintf("Unknown (%s)", id),
					Error:        fmt.Sprintf("failed to fetch playlist: %v", err),
				}
				continue
			}
			if p.ID == "" {
				p.ID = id
			}
			jobs <- p
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		result.Results = append(result.Results, res)
		if res.Success {
			result.SuccessfulExports++
			sendProgress(prog, exportCompletedUpdate(completed, len(ids), res.PlaylistName, len(res.Files)))
		} else {
			result.FailedExports++
			sendProgress(prog, exportFailedUpdate(completed, len(ids), res.PlaylistName, res.Error))
		}
	}
	sort.SliceStable(result.Results, func(i, j int) bool { return result.Results[i].PlaylistID < result.Results[j].PlaylistID })

	// Playlists never fetched because ctx ended count as failures.
	if missing := len(ids) - completed; missing > 0 {
		result.FailedExports += missing
		e.logger.Warn("bulk export interrupted", "skipped", missing, "error", ctx.Err())
	}

	manifestPath := filepath.Join(opts.OutputDir, manifestName)
	data, err := shared.MarshalJSON(result, true)
	if err == nil {
		err = os.WriteFile(manifestPath, data, 0644)
	}
	if err != nil {
		return result, fmt.Errorf("export completed but failed to write manifest: %w", err)
	}
	result.ManifestPath = manifestPath

	if ctxErr := ctx.Err(); ctxErr != nil && completed < len(ids) {
		return result, ctxErr
	}
	return result, nil
}

func (e *Exporter) exportWorker(wg *sync.WaitGroup, jobs <-chan *models.Playlist, results chan<- PlaylistExportResult, opts BulkExportOpts) {
	defer wg.Done()
	for p := range jobs {
		results <- e.exportOne(p, opts)
	}
}

func (e *Exporter) exportOne(p *models.Playlist, opts BulkExportOpts) PlaylistExportResult {
	res := PlaylistExportResult{PlaylistID: p.ID, PlaylistName: p.Name}

	dir := filepath.Join(opts.OutputDir, p.ID)
	out, err := formatter.WritePlaylistExport(*p, opts.Format, dir, opts.Warn)
	if err != nil {
		res.Error = err.Error()
		e.logger.Debug("playlist export failed", "id", p.ID, "error", err)
		return res
	}
	res.Files = out.Files
	res.Success = true
	return res
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}
