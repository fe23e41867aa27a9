// Package stream resolves a track reference to a playable URL.
//
// Resolution tries the primary provider with the catalog ID and, only if that produced no URL, the fallback provider with free text.
// Each provider is asked at most once per call.
package stream

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tunebridge/internal/models"
	"github.com/desertthunder/tunebridge/internal/shared"
)

// PrimaryProvider resolves a catalog ID.
type PrimaryProvider interface {
	StreamByID(ctx context.Context, trackID string) (*models.Stream, error)
}

// FallbackProvider resolves free text.
type FallbackProvider interface {
	StreamByQuery(ctx context.Context, query string) (*models.Stream, error)
}

// Recorder is notified once per resolution. A nil result means both providers failed.
type Recorder interface {
	RecordResolution(ctx context.Context, ref models.TrackRef, query string, result *models.StreamResult, err error) error
}

// Options configures a [Resolver].
type Options struct {
	// DeriveQuery builds fallback text from the ref's hint when only an ID was given.
	DeriveQuery bool
	Recorder    Recorder
	Logger      *log.Logger
}

// Resolver implements the ordered primary-then-fallback policy.
type Resolver struct {
	primary  PrimaryProvider
	fallback FallbackProvider
	opts     Options
	logger   *log.Logger
}

// NewResolver creates a [Resolver].
func NewResolver(primary PrimaryProvider, fallback FallbackProvider, opts Options) *Resolver {
	logger := opts.Logger
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &Resolver{primary: primary, fallback: fallback, opts: opts, logger: logger}
}

// Resolve returns a stream for ref.
//
// The error matches [shared.ErrInvalidTrackRef] for a malformed ref and [shared.ErrStreamUnavailable] when neither provider produced a URL;
// in the latter case it is a [*shared.StreamUnavailableError] carrying both reasons.
func (r *Resolver) Resolve(ctx context.Context, ref models.TrackRef) (*models.StreamResult, error) {
	if err := ref.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidTrackRef, err)
	}

	var primaryErr error
	if id := strings.TrimSpace(ref.ID); id != "" {
		s, err := r.primary.StreamByID(ctx, id)
		if err = checkStream(s, err); err == nil {
			result := models.NewStreamResult(models.SourcePrimary, s)
			r.record(ctx, ref, "", result, nil)
			return result, nil
		}
		primaryErr = err
		r.logger.Debug("primary provider failed", "track_id", id, "error", err)

		if ctxErr := ctx.Err(); ctxErr != nil {
			unavailable := &shared.StreamUnavailableError{Primary: primaryErr, Fallback: ctxErr}
			r.record(ctx, ref, "", nil, unavailable)
			return nil, unavailable
		}
	}

	query := r.fallbackQuery(ref)
	if query == "" {
		unavailable := &shared.StreamUnavailableError{Primary: primaryErr, Fallback: shared.ErrNoFallbackQuery}
		r.record(ctx, ref, "", nil, unavailable)
		return nil, unavailable
	}

	s, err := r.fallback.StreamByQuery(ctx, query)
	if err = checkStream(s, err); err != nil {
		r.logger.Debug("fallback provider failed", "query", query, "error", err)
		unavailable := &shared.StreamUnavailableError{Primary: primaryErr, Fallback: err}
		r.record(ctx, ref, query, nil, unavailable)
		return nil, unavailable
	}

	result := models.NewStreamResult(models.SourceFallback, s)
	r.record(ctx, ref, query, result, nil)
	return result, nil
}

func (r *Resolver) fallbackQuery(ref models.TrackRef) string {
	if q := strings.TrimSpace(ref.Query); q != "" {
		return q
	}
	if r.opts.DeriveQuery && ref.Hint != nil {
		return ref.Hint.SearchText()
	}
	return ""
}

func (r *Resolver) record(ctx context.Context, ref models.TrackRef, query string, result *models.StreamResult, err error) {
	if r.opts.Recorder == nil {
		return
	}
	// a cancelled caller still gets its resolution logged
	if recErr := r.opts.Recorder.RecordResolution(context.WithoutCancel(ctx), ref, query, result, err); recErr != nil {
		r.logger.Warn("failed to record resolution", "error", recErr)
	}
}

func checkStream(s *models.Stream, err error) error {
	switch {
	case err != nil:
		return err
	case s == nil || strings.TrimSpace(s.URL) == "":
		return shared.ErrEmptyStreamURL
	}
	return nil
}
