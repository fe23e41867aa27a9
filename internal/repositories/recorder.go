package repositories

import (
	"context"
	"fmt"

	"github.com/desertthunder/tunebridge/internal/models"
)

// ResolutionRecorder implements stream.Recorder using [ResolutionRepository].
type ResolutionRecorder struct {
	repo *ResolutionRepository
}

// NewResolutionRecorder creates a new ResolutionRecorder with the given repository
func NewResolutionRecorder(repo *ResolutionRepository) *ResolutionRecorder {
	return &ResolutionRecorder{repo: repo}
}

// RecordResolution logs one outcome. query is the fallback text that was tried, if any.
func (a *ResolutionRecorder) RecordResolution(ctx context.Context, ref models.TrackRef, query string, result *models.StreamResult, err error) error {
	res := &Resolution{TrackID: ref.ID, Query: query, Source: SourceNone}
	if res.Query == "" {
		res.Query = ref.Query
	}
	if result != nil {
		res.Source = result.Source.String()
		res.Title = result.Title
	}
	if err != nil {
		res.Error = err.Error()
	}

	if createErr := a.repo.Create(ctx, res); createErr != nil {
		return fmt.Errorf("failed to record resolution: %w", createErr)
	}
	return nil
}
