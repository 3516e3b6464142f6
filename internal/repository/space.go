package repository

import (
	"context"
	"fmt"

	"spark-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SpaceRepository handles database operations for spaces
type SpaceRepository struct {
	db *pgxpool.Pool
}

// NewSpaceRepository creates a new space repository
func NewSpaceRepository(db *pgxpool.Pool) *SpaceRepository {
	return &SpaceRepository{db: db}
}

// Create creates a new space
func (r *SpaceRepository) Create(ctx context.Context, space *models.Space) error {
	query := `
		INSERT INTO spaces (id, invite_code, created_at)
		VALUES ($1, $2, $3)
	`
	_, err := r.db.Exec(ctx, query, space.ID, space.InviteCode, space.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create space: %w", err)
	}
	return nil
}

// GetByID retrieves a space by ID
func (r *SpaceRepository) GetByID(ctx context.Context, id string) (*models.Space, error) {
	query := `
		SELECT id, invite_code, created_at
		FROM spaces
		WHERE id = $1
	`
	var space models.Space
	err := r.db.QueryRow(ctx, query, id).Scan(&space.ID, &space.InviteCode, &space.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("space not found: %w", err)
		}
		return nil, fmt.Errorf("failed to get space: %w", err)
	}
	return &space, nil
}

// GetByInviteCode retrieves a space by its invite code
func (r *SpaceRepository) GetByInviteCode(ctx context.Context, code string) (*models.Space, error) {
	query := `
		SELECT id, invite_code, created_at
		FROM spaces
		WHERE invite_code = $1
	`
	var space models.Space
	err := r.db.QueryRow(ctx, query, code).Scan(&space.ID, &space.InviteCode, &space.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("space not found: %w", err)
		}
		return nil, fmt.Errorf("failed to get space by invite code: %w", err)
	}
	return &space, nil
}

// InviteCodeExists checks if an invite code already exists
func (r *SpaceRepository) InviteCodeExists(ctx context.Context, code string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM spaces WHERE invite_code = $1)`
	var exists bool
	err := r.db.QueryRow(ctx, query, code).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check invite code existence: %w", err)
	}
	return exists, nil
}

// Members retrieves the profiles linked to a space
func (r *SpaceRepository) Members(ctx context.Context, spaceID string) ([]*models.User, error) {
	query := `
		SELECT id, name, push_token, space_id, spark_score, created_at
		FROM profiles
		WHERE space_id = $1
		ORDER BY created_at
	`
	rows, err := r.db.Query(ctx, query, spaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get space members: %w", err)
	}
	defer rows.Close()

	var members []*models.User
	for rows.Next() {
		var user models.User
		err := rows.Scan(
			&user.ID, &user.Name, &user.PushToken, &user.SpaceID, &user.SparkScore, &user.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, &user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating members: %w", err)
	}

	return members, nil
}

// OtherMember retrieves the member of a space that is not userID.
// Returns nil without error when the space has no second member yet.
func (r *SpaceRepository) OtherMember(ctx context.Context, spaceID, userID string) (*models.User, error) {
	query := `
		SELECT id, name, push_token, space_id, spark_score, created_at
		FROM profiles
		WHERE space_id = $1 AND id <> $2
		LIMIT 1
	`
	var user models.User
	err := r.db.QueryRow(ctx, query, spaceID, userID).Scan(
		&user.ID, &user.Name, &user.PushToken, &user.SpaceID, &user.SparkScore, &user.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get other member: %w", err)
	}
	return &user, nil
}
