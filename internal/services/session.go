package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"spark-backend/internal/feed"
	"spark-backend/internal/models"
	"spark-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	ErrNotParticipant  = errors.New("user is not a participant of this session")
	ErrSessionFinished = errors.New("session is already completed or cancelled")
	ErrNotSpaceMember  = errors.New("user does not belong to this space")
	ErrNegativeStep    = errors.New("step must be non-negative")
)

// Presence reports whether a user currently holds a realtime connection.
type Presence interface {
	IsOnline(userID string) bool
}

// InvitePusher delivers an out-of-band invite notification to an offline partner.
type InvitePusher interface {
	PushInvite(ctx context.Context, partner *models.User, sessionID string)
}

// MemoryRecorder stores keepsake entries for finished dates and score milestones.
type MemoryRecorder interface {
	RecordDateMemory(ctx context.Context, userID, spaceID, sessionID, templateID string) (*models.Memory, error)
	RecordSparkMemory(ctx context.Context, userID, spaceID string, score int) (*models.Memory, error)
}

// A spark memory lands every time the score crosses another multiple of this.
const sparkMilestone = 10

// SessionService owns the date-session lifecycle. Every successful write
// publishes a change event so subscribed coordinators re-fetch.
type SessionService struct {
	sessionRepo repository.SessionStore
	answerRepo  repository.AnswerStore
	spaceRepo   repository.SpaceStore
	userRepo    repository.UserStore
	broker      *feed.Broker
	presence    Presence
	pusher      InvitePusher
	memories    MemoryRecorder
}

// NewSessionService creates a new session service. presence, pusher and
// memories may be nil; invite pushes and keepsake entries are then skipped.
func NewSessionService(
	sessionRepo repository.SessionStore,
	answerRepo repository.AnswerStore,
	spaceRepo repository.SpaceStore,
	userRepo repository.UserStore,
	broker *feed.Broker,
	presence Presence,
	pusher InvitePusher,
	memories MemoryRecorder,
) *SessionService {
	return &SessionService{
		sessionRepo: sessionRepo,
		answerRepo:  answerRepo,
		spaceRepo:   spaceRepo,
		userRepo:    userRepo,
		broker:      broker,
		presence:    presence,
		pusher:      pusher,
		memories:    memories,
	}
}

// StartSession creates a pending invitation for an activity, or returns the id
// of the live session that already exists for the (space, template) pair.
// Repeated taps therefore never produce duplicate invitations. The partner is
// resolved from the space and may be absent; solo play is allowed.
func (s *SessionService) StartSession(ctx context.Context, userID, templateID, spaceID string) (string, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to get user: %w", err)
	}
	if user.SpaceID == nil || *user.SpaceID != spaceID {
		return "", ErrNotSpaceMember
	}

	existing, err := s.sessionRepo.FindLive(ctx, spaceID, templateID)
	if err != nil {
		return "", fmt.Errorf("failed to check for live session: %w", err)
	}
	if existing != nil {
		return existing.ID, nil
	}

	partner, err := s.spaceRepo.OtherMember(ctx, spaceID, userID)
	if err != nil {
		return "", fmt.Errorf("failed to resolve partner: %w", err)
	}

	session := &models.DateSession{
		ID:                uuid.New().String(),
		SpaceID:           spaceID,
		TemplateID:        templateID,
		InitiatorID:       userID,
		Status:            models.StatusPending,
		CurrentStep:       0,
		IsCompleted:       false,
		LastInteractionAt: time.Now(),
	}
	if partner != nil {
		session.PartnerID = &partner.ID
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}

	s.publishSession(session)

	// Partner off the app misses the realtime invite; push instead.
	if partner != nil && s.pusher != nil && (s.presence == nil || !s.presence.IsOnline(partner.ID)) {
		s.pusher.PushInvite(ctx, partner, session.ID)
	}

	return session.ID, nil
}

// AcceptSession moves a pending session to active. The caller must be a
// participant of the session.
func (s *SessionService) AcceptSession(ctx context.Context, userID, sessionID string) error {
	session, err := s.authorize(ctx, userID, sessionID)
	if err != nil {
		return err
	}
	if session.Status.Terminal() {
		return ErrSessionFinished
	}

	now := time.Now()
	if err := s.sessionRepo.UpdateStatus(ctx, sessionID, models.StatusActive, now); err != nil {
		return fmt.Errorf("failed to accept session: %w", err)
	}

	session.Status = models.StatusActive
	session.LastInteractionAt = now
	s.publishSession(session)
	return nil
}

// CancelSession moves a session to cancelled. Cancelling an already-cancelled
// session is a no-op.
func (s *SessionService) CancelSession(ctx context.Context, userID, sessionID string) error {
	session, err := s.authorize(ctx, userID, sessionID)
	if err != nil {
		return err
	}
	if session.Status == models.StatusCancelled {
		return nil
	}
	if session.Status == models.StatusCompleted {
		return ErrSessionFinished
	}

	now := time.Now()
	if err := s.sessionRepo.UpdateStatus(ctx, sessionID, models.StatusCancelled, now); err != nil {
		return fmt.Errorf("failed to cancel session: %w", err)
	}

	session.Status = models.StatusCancelled
	session.LastInteractionAt = now
	s.publishSession(session)
	return nil
}

// AdvanceStep records the caller's step progress on the session row. Steps are
// caller-reported and not required to be monotonic; only negative values are
// rejected.
func (s *SessionService) AdvanceStep(ctx context.Context, userID, sessionID string, step int) error {
	if step < 0 {
		return ErrNegativeStep
	}

	session, err := s.authorize(ctx, userID, sessionID)
	if err != nil {
		return err
	}
	if session.Status.Terminal() {
		return ErrSessionFinished
	}

	if step < session.CurrentStep {
		log.Warn().
			Str("session_id", sessionID).
			Int("from", session.CurrentStep).
			Int("to", step).
			Msg("Session step moved backwards")
	}

	now := time.Now()
	if err := s.sessionRepo.UpdateStep(ctx, sessionID, step, now); err != nil {
		return fmt.Errorf("failed to advance step: %w", err)
	}

	session.CurrentStep = step
	session.LastInteractionAt = now
	s.publishSession(session)
	return nil
}

// CompleteSession marks a session finished and bumps the caller's spark score.
// Returns the new score.
func (s *SessionService) CompleteSession(ctx context.Context, userID, sessionID string) (int, error) {
	session, err := s.authorize(ctx, userID, sessionID)
	if err != nil {
		return 0, err
	}
	if session.Status.Terminal() {
		return 0, ErrSessionFinished
	}

	now := time.Now()
	finalStep := session.CurrentStep + 1
	if err := s.sessionRepo.Complete(ctx, sessionID, finalStep, now); err != nil {
		return 0, fmt.Errorf("failed to complete session: %w", err)
	}

	session.Status = models.StatusCompleted
	session.IsCompleted = true
	session.CurrentStep = finalStep
	session.LastInteractionAt = now
	s.publishSession(session)

	score, err := s.userRepo.IncrementSparkScore(ctx, userID)
	if err != nil {
		// The session is completed either way; the score catches up next time.
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to increment spark score")
		score = 0
	}

	s.recordCompletion(ctx, userID, session.SpaceID, sessionID, session.TemplateID, score)
	return score, nil
}

// CompleteSolo records a finished solo session directly, without the
// pending/active handshake. Used when no live session was coordinating the
// activity.
func (s *SessionService) CompleteSolo(ctx context.Context, userID, templateID, spaceID string) (string, int, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return "", 0, fmt.Errorf("failed to get user: %w", err)
	}
	if user.SpaceID == nil || *user.SpaceID != spaceID {
		return "", 0, ErrNotSpaceMember
	}

	session := &models.DateSession{
		ID:                uuid.New().String(),
		SpaceID:           spaceID,
		TemplateID:        templateID,
		InitiatorID:       userID,
		Status:            models.StatusCompleted,
		CurrentStep:       1,
		IsCompleted:       true,
		LastInteractionAt: time.Now(),
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return "", 0, fmt.Errorf("failed to create solo session: %w", err)
	}
	s.publishSession(session)

	score, err := s.userRepo.IncrementSparkScore(ctx, userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to increment spark score")
	}

	s.recordCompletion(ctx, userID, spaceID, session.ID, templateID, score)
	return session.ID, score, nil
}

// recordCompletion adds the keepsake entries for a finished date. Memories are
// decorative; failures never fail the completion itself.
func (s *SessionService) recordCompletion(ctx context.Context, userID, spaceID, sessionID, templateID string, score int) {
	if s.memories == nil {
		return
	}

	if _, err := s.memories.RecordDateMemory(ctx, userID, spaceID, sessionID, templateID); err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("Failed to record date memory")
	}

	if score > 0 && score%sparkMilestone == 0 {
		if _, err := s.memories.RecordSparkMemory(ctx, userID, spaceID, score); err != nil {
			log.Error().Err(err).Int("score", score).Msg("Failed to record spark memory")
		}
	}
}

// SubmitAnswer stores a participant's answer for a step, overwriting any
// previous submission for the same (session, user, step) key.
func (s *SessionService) SubmitAnswer(ctx context.Context, userID, sessionID string, step int, text string) error {
	if step < 0 {
		return ErrNegativeStep
	}

	session, err := s.authorize(ctx, userID, sessionID)
	if err != nil {
		return err
	}

	answer := &models.SessionAnswer{
		SessionID:  sessionID,
		UserID:     userID,
		Step:       step,
		AnswerText: text,
		CreatedAt:  time.Now(),
	}
	if err := s.answerRepo.Upsert(ctx, answer); err != nil {
		return fmt.Errorf("failed to submit answer: %w", err)
	}

	s.broker.Publish(feed.Event{
		Table:      feed.TableAnswers,
		SpaceID:    session.SpaceID,
		SessionID:  sessionID,
		UserID:     userID,
		Step:       step,
		AnswerText: text,
	})
	return nil
}

// StepAnswers retrieves all answers for a session step
func (s *SessionService) StepAnswers(ctx context.Context, userID, sessionID string, step int) ([]*models.SessionAnswer, error) {
	if _, err := s.authorize(ctx, userID, sessionID); err != nil {
		return nil, err
	}
	return s.answerRepo.ListByStep(ctx, sessionID, step)
}

// SessionAnswers retrieves all answers for a session
func (s *SessionService) SessionAnswers(ctx context.Context, userID, sessionID string) ([]*models.SessionAnswer, error) {
	if _, err := s.authorize(ctx, userID, sessionID); err != nil {
		return nil, err
	}
	return s.answerRepo.ListBySession(ctx, sessionID)
}

// GetSession retrieves a session the caller participates in
func (s *SessionService) GetSession(ctx context.Context, userID, sessionID string) (*models.DateSession, error) {
	return s.authorize(ctx, userID, sessionID)
}

// ListLive retrieves all live sessions for a space
func (s *SessionService) ListLive(ctx context.Context, spaceID string) ([]*models.DateSession, error) {
	return s.sessionRepo.ListLive(ctx, spaceID)
}

// authorize loads a session and checks the caller is one of its participants.
// A session without a partner additionally admits any member of its space, so
// a partner who joined the space after the invite was created can still accept.
func (s *SessionService) authorize(ctx context.Context, userID, sessionID string) (*models.DateSession, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	if session.Participant(userID) {
		return session, nil
	}
	if session.PartnerID == nil {
		user, err := s.userRepo.GetByID(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to get user: %w", err)
		}
		if user.SpaceID != nil && *user.SpaceID == session.SpaceID {
			return session, nil
		}
	}
	return nil, ErrNotParticipant
}

func (s *SessionService) publishSession(session *models.DateSession) {
	s.broker.Publish(feed.Event{
		Table:       feed.TableSessions,
		SpaceID:     session.SpaceID,
		SessionID:   session.ID,
		Status:      string(session.Status),
		CurrentStep: session.CurrentStep,
	})
}
