package repository

import (
	"context"
	"time"

	"spark-backend/internal/models"
)

// UserStore handles profile rows.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	SetSpace(ctx context.Context, userID, spaceID string) error
	UpdatePushToken(ctx context.Context, userID string, pushToken *string) error
	IncrementSparkScore(ctx context.Context, userID string) (int, error)
}

// SpaceStore handles the two-person pairing unit.
type SpaceStore interface {
	Create(ctx context.Context, space *models.Space) error
	GetByID(ctx context.Context, id string) (*models.Space, error)
	GetByInviteCode(ctx context.Context, code string) (*models.Space, error)
	InviteCodeExists(ctx context.Context, code string) (bool, error)
	Members(ctx context.Context, spaceID string) ([]*models.User, error)
	OtherMember(ctx context.Context, spaceID, userID string) (*models.User, error)
}

// SessionStore handles date_sessions rows.
type SessionStore interface {
	Create(ctx context.Context, session *models.DateSession) error
	GetByID(ctx context.Context, id string) (*models.DateSession, error)
	FindLive(ctx context.Context, spaceID, templateID string) (*models.DateSession, error)
	ListLive(ctx context.Context, spaceID string) ([]*models.DateSession, error)
	UpdateStatus(ctx context.Context, id string, status models.SessionStatus, at time.Time) error
	UpdateStep(ctx context.Context, id string, step int, at time.Time) error
	Complete(ctx context.Context, id string, step int, at time.Time) error
}

// AnswerStore handles session_answers rows.
type AnswerStore interface {
	Upsert(ctx context.Context, answer *models.SessionAnswer) error
	ListByStep(ctx context.Context, sessionID string, step int) ([]*models.SessionAnswer, error)
	ListBySession(ctx context.Context, sessionID string) ([]*models.SessionAnswer, error)
}

// SuggestionStore handles suggested_dates rows.
type SuggestionStore interface {
	Create(ctx context.Context, suggestion *models.SuggestedDate) error
	Current(ctx context.Context, spaceID string, now time.Time) (*models.SuggestedDate, error)
}

// MemoryStore handles memory rows.
type MemoryStore interface {
	Create(ctx context.Context, memory *models.Memory) error
	ListBySpace(ctx context.Context, spaceID string, limit, offset int) ([]*models.Memory, int, error)
	UpdateS3URL(ctx context.Context, memoryID, s3URL string) error
}
