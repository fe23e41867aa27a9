package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/tunebridge/internal/shared"
)

// SourceNone marks a resolution where neither provider produced a URL.
const SourceNone = "none"

// Resolution is one logged stream resolution. The stream URL itself is never stored.
type Resolution struct {
	ID        string    `json:"id"`
	Sequence  int       `json:"sequence"`
	TrackID   string    `json:"track_id,omitempty"`
	Query     string    `json:"query,omitempty"`
	Source    string    `json:"source"`
	Title     string    `json:"title,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Succeeded reports whether a provider served the resolution.
func (r Resolution) Succeeded() bool {
	return r.Source != SourceNone
}

// ResolutionRepository stores [Resolution] rows.
type ResolutionRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewResolutionRepository creates a new [ResolutionRepository] with the given database connection
func NewResolutionRepository(db *sql.DB) *ResolutionRepository {
	return &ResolutionRepository{db: db, now: time.Now}
}

// Create inserts res, assigning its ID, Sequence and CreatedAt.
func (r *ResolutionRepository) Create(ctx context.Context, res *Resolution) error {
	if res.Source == "" {
		return fmt.Errorf("%w: resolution source is required", shared.ErrInvalidInput)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	sequence, err := NextSequence(tx, "resolutions")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	createdAt := r.now().UTC()

	query := `
		INSERT INTO resolutions (id, sequence, track_id, query, source, title, error_message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = tx.ExecContext(ctx, query, id, sequence,
		nullString(res.TrackID), nullString(res.Query), res.Source,
		nullString(res.Title), nullString(res.Error), createdAt)
	if err != nil {
		return fmt.Errorf("failed to insert resolution: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit resolution: %w", err)
	}

	res.ID = id
	res.Sequence = sequence
	res.CreatedAt = createdAt
	return nil
}

// List returns the most recent resolutions first. A limit of zero or less returns all of them.
func (r *ResolutionRepository) List(ctx context.Context, limit int) ([]Resolution, error) {
	query := `
		SELECT id, sequence, track_id, query, source, title, error_message, created_at
		FROM resolutions
		ORDER BY sequence DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return r.query(ctx, query, args...)
}

// ListByTrack returns the resolutions for one catalog ID, most recent first.
func (r *ResolutionRepository) ListByTrack(ctx context.Context, trackID string) ([]Resolution, error) {
	query := `
		SELECT id, sequence, track_id, query, source, title, error_message, created_at
		FROM resolutions
		WHERE track_id = ?
		ORDER BY sequence DESC
	`
	return r.query(ctx, query, trackID)
}

// CountBySource returns how many resolutions each source served, including [SourceNone].
func (r *ResolutionRepository) CountBySource(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT source, COUNT(*) FROM resolutions GROUP BY source")
	if err != nil {
		return nil, fmt.Errorf("failed to count resolutions: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			source string
			count  int
		)
		if err := rows.Scan(&source, &count); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[source] = count
	}
	return counts, rows.Err()
}

// Clear deletes every resolution and returns how many were removed.
func (r *ResolutionRepository) Clear(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM resolutions")
	if err != nil {
		return 0, fmt.Errorf("failed to clear resolutions: %w", err)
	}
	return result.RowsAffected()
}

func (r *ResolutionRepository) query(ctx context.Context, query string, args ...any) ([]Resolution, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query resolutions: %w", err)
	}
	defer rows.Close()

	var resolutions []Resolution
	for rows.Next() {
		var (
			res                           Resolution
			trackID, q, title, errMessage sql.NullString
		)
		if err := rows.Scan(&res.ID, &res.Sequence, &trackID, &q, &res.Source, &title, &errMessage, &res.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan resolution: %w", err)
		}
		res.TrackID = trackID.String
		res.Query = q.String
		res.Title = title.String
		res.Error = errMessage.String
		resolutions = append(resolutions, res)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating resolutions: %w", err)
	}
	return resolutions, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
