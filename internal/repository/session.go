package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"spark-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrSessionNotFound is returned when a session id matches no row.
var ErrSessionNotFound = errors.New("session not found")

// SessionRepository handles database operations for date sessions
type SessionRepository struct {
	db *pgxpool.Pool
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionColumns = `id, space_id, template_id, initiator_id, partner_id, status, current_step, is_completed, last_interaction_at`

func scanSession(row pgx.Row) (*models.DateSession, error) {
	var s models.DateSession
	err := row.Scan(
		&s.ID, &s.SpaceID, &s.TemplateID, &s.InitiatorID, &s.PartnerID,
		&s.Status, &s.CurrentStep, &s.IsCompleted, &s.LastInteractionAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Create creates a new date session
func (r *SessionRepository) Create(ctx context.Context, session *models.DateSession) error {
	query := `
		INSERT INTO date_sessions (` + sessionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.Exec(ctx, query,
		session.ID, session.SpaceID, session.TemplateID, session.InitiatorID, session.PartnerID,
		session.Status, session.CurrentStep, session.IsCompleted, session.LastInteractionAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// GetByID retrieves a session by ID
func (r *SessionRepository) GetByID(ctx context.Context, id string) (*models.DateSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM date_sessions WHERE id = $1`
	session, err := scanSession(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return session, nil
}

// FindLive retrieves the pending or active session for a (space, template)
// pair. Returns nil without error when there is none.
func (r *SessionRepository) FindLive(ctx context.Context, spaceID, templateID string) (*models.DateSession, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM date_sessions
		WHERE space_id = $1 AND template_id = $2 AND status IN ('pending', 'active')
		LIMIT 1
	`
	session, err := scanSession(r.db.QueryRow(ctx, query, spaceID, templateID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find live session: %w", err)
	}
	return session, nil
}

// ListLive retrieves all pending and active sessions for a space, most
// recently touched first.
func (r *SessionRepository) ListLive(ctx context.Context, spaceID string) ([]*models.DateSession, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM date_sessions
		WHERE space_id = $1 AND status IN ('pending', 'active')
		ORDER BY last_interaction_at DESC
	`
	rows, err := r.db.Query(ctx, query, spaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list live sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.DateSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}

	return sessions, nil
}

// UpdateStatus sets a session's status and refreshes its interaction timestamp
func (r *SessionRepository) UpdateStatus(ctx context.Context, id string, status models.SessionStatus, at time.Time) error {
	query := `UPDATE date_sessions SET status = $1, last_interaction_at = $2 WHERE id = $3`
	result, err := r.db.Exec(ctx, query, status, at, id)
	if err != nil {
		return fmt.Errorf("failed to update session status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("session not found")
	}
	return nil
}

// UpdateStep sets a session's current step and refreshes its interaction timestamp
func (r *SessionRepository) UpdateStep(ctx context.Context, id string, step int, at time.Time) error {
	query := `UPDATE date_sessions SET current_step = $1, last_interaction_at = $2 WHERE id = $3`
	result, err := r.db.Exec(ctx, query, step, at, id)
	if err != nil {
		return fmt.Errorf("failed to update session step: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("session not found")
	}
	return nil
}

// Complete marks a session completed with its final step
func (r *SessionRepository) Complete(ctx context.Context, id string, step int, at time.Time) error {
	query := `
		UPDATE date_sessions
		SET status = 'completed', is_completed = TRUE, current_step = $1, last_interaction_at = $2
		WHERE id = $3
	`
	result, err := r.db.Exec(ctx, query, step, at, id)
	if err != nil {
		return fmt.Errorf("failed to complete session: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("session not found")
	}
	return nil
}

// AnswerRepository handles database operations for session answers
type AnswerRepository struct {
	db *pgxpool.Pool
}

// NewAnswerRepository creates a new answer repository
func NewAnswerRepository(db *pgxpool.Pool) *AnswerRepository {
	return &AnswerRepository{db: db}
}

// Upsert inserts an answer or overwrites the existing one for the same
// (session, user, step) key.
func (r *AnswerRepository) Upsert(ctx context.Context, answer *models.SessionAnswer) error {
	query := `
		INSERT INTO session_answers (session_id, user_id, step, answer_text, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (session_id, user_id, step)
		DO UPDATE SET answer_text = EXCLUDED.answer_text
	`
	_, err := r.db.Exec(ctx, query,
		answer.SessionID, answer.UserID, answer.Step, answer.AnswerText, answer.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert answer: %w", err)
	}
	return nil
}

// ListByStep retrieves all answers for a session step
func (r *AnswerRepository) ListByStep(ctx context.Context, sessionID string, step int) ([]*models.SessionAnswer, error) {
	query := `
		SELECT session_id, user_id, step, answer_text, created_at
		FROM session_answers
		WHERE session_id = $1 AND step = $2
	`
	return r.listAnswers(ctx, query, sessionID, step)
}

// ListBySession retrieves all answers for a session
func (r *AnswerRepository) ListBySession(ctx context.Context, sessionID string) ([]*models.SessionAnswer, error) {
	query := `
		SELECT session_id, user_id, step, answer_text, created_at
		FROM session_answers
		WHERE session_id = $1
		ORDER BY step
	`
	return r.listAnswers(ctx, query, sessionID)
}

func (r *AnswerRepository) listAnswers(ctx context.Context, query string, args ...any) ([]*models.SessionAnswer, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list answers: %w", err)
	}
	defer rows.Close()

	var answers []*models.SessionAnswer
	for rows.Next() {
		var a models.SessionAnswer
		err := rows.Scan(&a.SessionID, &a.UserID, &a.Step, &a.AnswerText, &a.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan answer: %w", err)
		}
		answers = append(answers, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating answers: %w", err)
	}

	return answers, nil
}
