package repository

import (
	"context"
	"fmt"
	"time"

	"spark-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SuggestionRepository handles database operations for suggested dates
type SuggestionRepository struct {
	db *pgxpool.Pool
}

// NewSuggestionRepository creates a new suggestion repository
func NewSuggestionRepository(db *pgxpool.Pool) *SuggestionRepository {
	return &SuggestionRepository{db: db}
}

// Create creates a new suggested date. Rows are never deduplicated: the
// current-suggestion read picks the newest unexpired one.
func (r *SuggestionRepository) Create(ctx context.Context, suggestion *models.SuggestedDate) error {
	query := `
		INSERT INTO suggested_dates (id, space_id, suggested_activity_id, vibe_data, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.Exec(ctx, query,
		suggestion.ID, suggestion.SpaceID, suggestion.SuggestedActivityID,
		suggestion.VibeData, suggestion.CreatedAt, suggestion.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create suggestion: %w", err)
	}
	return nil
}

// Current retrieves the most recently created unexpired suggestion for a
// space. Returns nil without error when there is none.
func (r *SuggestionRepository) Current(ctx context.Context, spaceID string, now time.Time) (*models.SuggestedDate, error) {
	query := `
		SELECT id, space_id, suggested_activity_id, vibe_data, created_at, expires_at
		FROM suggested_dates
		WHERE space_id = $1 AND expires_at > $2
		ORDER BY created_at DESC
		LIMIT 1
	`
	var s models.SuggestedDate
	err := r.db.QueryRow(ctx, query, spaceID, now).Scan(
		&s.ID, &s.SpaceID, &s.SuggestedActivityID, &s.VibeData, &s.CreatedAt, &s.ExpiresAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get current suggestion: %w", err)
	}
	return &s, nil
}
