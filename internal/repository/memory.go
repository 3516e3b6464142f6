package repository

import (
	"context"
	"fmt"

	"spark-backend/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// MemoryRepository handles database operations for memories
type MemoryRepository struct {
	db *pgxpool.Pool
}

// NewMemoryRepository creates a new memory repository
func NewMemoryRepository(db *pgxpool.Pool) *MemoryRepository {
	return &MemoryRepository{db: db}
}

// Create creates a new memory
func (r *MemoryRepository) Create(ctx context.Context, memory *models.Memory) error {
	query := `
		INSERT INTO memories (id, space_id, user_id, kind, caption, s3_url, session_id, taken_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.Exec(ctx, query,
		memory.ID, memory.SpaceID, memory.UserID, memory.Kind, memory.Caption,
		memory.S3URL, memory.SessionID, memory.TakenAt, memory.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create memory: %w", err)
	}
	return nil
}

// ListBySpace retrieves memories for a space with pagination
func (r *MemoryRepository) ListBySpace(ctx context.Context, spaceID string, limit, offset int) ([]*models.Memory, int, error) {
	countQuery := `SELECT COUNT(*) FROM memories WHERE space_id = $1`
	var total int
	err := r.db.QueryRow(ctx, countQuery, spaceID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count memories: %w", err)
	}

	query := `
		SELECT id, space_id, user_id, kind, caption, s3_url, session_id, taken_at, created_at
		FROM memories
		WHERE space_id = $1
		ORDER BY taken_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, spaceID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list memories: %w", err)
	}
	defer rows.Close()

	var memories []*models.Memory
	for rows.Next() {
		var m models.Memory
		err := rows.Scan(
			&m.ID, &m.SpaceID, &m.UserID, &m.Kind, &m.Caption,
			&m.S3URL, &m.SessionID, &m.TakenAt, &m.CreatedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan memory: %w", err)
		}
		memories = append(memories, &m)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating memories: %w", err)
	}

	return memories, total, nil
}

// UpdateS3URL updates the S3 URL for a photo memory after upload
func (r *MemoryRepository) UpdateS3URL(ctx context.Context, memoryID, s3URL string) error {
	query := `UPDATE memories SET s3_url = $1 WHERE id = $2`
	result, err := r.db.Exec(ctx, query, s3URL, memoryID)
	if err != nil {
		return fmt.Errorf("failed to update memory s3_url: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("memory not found")
	}
	return nil
}
