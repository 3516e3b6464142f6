package repository

import (
	"context"
	"fmt"

	"spark-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserRepository handles database operations for user profiles
type UserRepository struct {
	db *pgxpool.Pool
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

// Create creates a new user profile
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO profiles (id, name, push_token, space_id, spark_score, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.Exec(ctx, query,
		user.ID, user.Name, user.PushToken, user.SpaceID, user.SparkScore, user.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `
		SELECT id, name, push_token, space_id, spark_score, created_at
		FROM profiles
		WHERE id = $1
	`
	var user models.User
	err := r.db.QueryRow(ctx, query, id).Scan(
		&user.ID, &user.Name, &user.PushToken, &user.SpaceID, &user.SparkScore, &user.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("user not found: %w", err)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// SetSpace links a user to a space
func (r *UserRepository) SetSpace(ctx context.Context, userID, spaceID string) error {
	query := `UPDATE profiles SET space_id = $1 WHERE id = $2`
	result, err := r.db.Exec(ctx, query, spaceID, userID)
	if err != nil {
		return fmt.Errorf("failed to set space: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("user not found")
	}
	return nil
}

// UpdatePushToken updates the push token for a user
func (r *UserRepository) UpdatePushToken(ctx context.Context, userID string, pushToken *string) error {
	query := `UPDATE profiles SET push_token = $1 WHERE id = $2`
	_, err := r.db.Exec(ctx, query, pushToken, userID)
	if err != nil {
		return fmt.Errorf("failed to update push token: %w", err)
	}
	return nil
}

// IncrementSparkScore bumps the user's spark score and returns the new value
func (r *UserRepository) IncrementSparkScore(ctx context.Context, userID string) (int, error) {
	query := `UPDATE profiles SET spark_score = spark_score + 1 WHERE id = $1 RETURNING spark_score`
	var score int
	err := r.db.QueryRow(ctx, query, userID).Scan(&score)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, fmt.Errorf("user not found: %w", err)
		}
		return 0, fmt.Errorf("failed to increment spark score: %w", err)
	}
	return score, nil
}
