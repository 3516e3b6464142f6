package models

import (
	"encoding/json"
	"time"
)

// SessionStatus is the lifecycle state of a date session.
type SessionStatus string

const (
	StatusPending   SessionStatus = "pending"
	StatusActive    SessionStatus = "active"
	StatusCompleted SessionStatus = "completed"
	StatusCancelled SessionStatus = "cancelled"
)

// Live reports whether the session has not reached a terminal state.
func (s SessionStatus) Live() bool {
	return s == StatusPending || s == StatusActive
}

// Terminal reports whether no further transition is allowed.
func (s SessionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// User represents a user profile
type User struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Token      string    `json:"token,omitempty"`
	PushToken  *string   `json:"push_token,omitempty"`
	SpaceID    *string   `json:"space_id,omitempty"`
	SparkScore int       `json:"spark_score"`
	CreatedAt  time.Time `json:"created_at"`
}

// Space is the two-person pairing container. Membership lives on the
// profiles side (User.SpaceID); a space holds at most two members.
type Space struct {
	ID         string    `json:"id"`
	InviteCode string    `json:"invite_code"`
	CreatedAt  time.Time `json:"created_at"`
}

// DateSession is one instance of a shared guided-date activity.
// PartnerID stays nil for solo play.
type DateSession struct {
	ID                string        `json:"id"`
	SpaceID           string        `json:"space_id"`
	TemplateID        string        `json:"template_id"`
	InitiatorID       string        `json:"initiator_id"`
	PartnerID         *string       `json:"partner_id"`
	Status            SessionStatus `json:"status"`
	CurrentStep       int           `json:"current_step"`
	IsCompleted       bool          `json:"is_completed"`
	LastInteractionAt time.Time     `json:"last_interaction_at"`
}

// Participant reports whether userID is the initiator or the partner.
func (s *DateSession) Participant(userID string) bool {
	if s.InitiatorID == userID {
		return true
	}
	return s.PartnerID != nil && *s.PartnerID == userID
}

// SessionAnswer is one participant's free-text submission for a step.
// At most one row exists per (session, user, step); re-submission overwrites.
type SessionAnswer struct {
	SessionID  string    `json:"session_id"`
	UserID     string    `json:"user_id"`
	Step       int       `json:"step"`
	AnswerText string    `json:"answer_text"`
	CreatedAt  time.Time `json:"created_at"`
}

// VibeData is the short survey that drives the daily suggestion.
type VibeData struct {
	Location string `json:"location"`
	Energy   string `json:"energy"`
	Vibe     string `json:"vibe"`
}

// SuggestedDate is a day-scoped recommended activity for a space.
type SuggestedDate struct {
	ID                  string          `json:"id"`
	SpaceID             string          `json:"space_id"`
	SuggestedActivityID string          `json:"suggested_activity_id"`
	VibeData            json.RawMessage `json:"vibe_data"`
	CreatedAt           time.Time       `json:"created_at"`
	ExpiresAt           time.Time       `json:"expires_at"`
}

// MemoryKind classifies a memory entry.
type MemoryKind string

const (
	MemoryPhoto MemoryKind = "photo"
	MemoryDate  MemoryKind = "date"
	MemorySpark MemoryKind = "spark"
)

// Memory is a space-scoped keepsake: a photo, a completed date, or a
// spark milestone.
type Memory struct {
	ID        string     `json:"id"`
	SpaceID   string     `json:"space_id"`
	UserID    string     `json:"user_id"`
	Kind      MemoryKind `json:"kind"`
	Caption   string     `json:"caption,omitempty"`
	S3URL     string     `json:"s3_url,omitempty"`
	SessionID *string    `json:"session_id,omitempty"`
	TakenAt   time.Time  `json:"taken_at"`
	CreatedAt time.Time  `json:"created_at"`
}
