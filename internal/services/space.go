package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"spark-backend/internal/models"
	"spark-backend/internal/repository"

	"github.com/google/uuid"
)

const (
	codeLength = 6
	codeChars  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// Join failures the client distinguishes on.
var (
	ErrSpaceNotFound  = errors.New("no space with that code")
	ErrSpaceFull      = errors.New("space already has two members")
	ErrAlreadyMember  = errors.New("already in this space")
	ErrAlreadyInSpace = errors.New("user is already in a space")
)

// SpaceService handles the pairing lifecycle: one partner creates a space and
// shares its invite code, the other joins by entering it.
type SpaceService struct {
	spaceRepo repository.SpaceStore
	userRepo  repository.UserStore
}

// NewSpaceService creates a new space service
func NewSpaceService(spaceRepo repository.SpaceStore, userRepo repository.UserStore) *SpaceService {
	return &SpaceService{
		spaceRepo: spaceRepo,
		userRepo:  userRepo,
	}
}

// CreateForUser returns the user's existing space or creates a fresh one with
// a unique invite code and links the user to it.
func (s *SpaceService) CreateForUser(ctx context.Context, userID string) (*models.Space, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if user.SpaceID != nil {
		return s.spaceRepo.GetByID(ctx, *user.SpaceID)
	}

	code, err := s.generateUniqueCode(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to generate invite code: %w", err)
	}

	space := &models.Space{
		ID:         uuid.New().String(),
		InviteCode: code,
		CreatedAt:  time.Now(),
	}

	if err := s.spaceRepo.Create(ctx, space); err != nil {
		return nil, fmt.Errorf("failed to create space: %w", err)
	}

	if err := s.userRepo.SetSpace(ctx, userID, space.ID); err != nil {
		return nil, fmt.Errorf("failed to link user to space: %w", err)
	}

	return space, nil
}

// JoinByCode links a user to the space behind an invite code. A space holds at
// most two members.
func (s *SpaceService) JoinByCode(ctx context.Context, userID, code string) (*models.Space, error) {
	if len(code) != codeLength {
		return nil, fmt.Errorf("invite code must be %d characters", codeLength)
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user.SpaceID != nil {
		return nil, ErrAlreadyInSpace
	}

	space, err := s.spaceRepo.GetByInviteCode(ctx, code)
	if err != nil {
		return nil, ErrSpaceNotFound
	}

	members, err := s.spaceRepo.Members(ctx, space.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get space members: %w", err)
	}
	for _, m := range members {
		if m.ID == userID {
			return nil, ErrAlreadyMember
		}
	}
	if len(members) >= 2 {
		return nil, ErrSpaceFull
	}

	if err := s.userRepo.SetSpace(ctx, userID, space.ID); err != nil {
		return nil, fmt.Errorf("failed to link user to space: %w", err)
	}

	return space, nil
}

// SpaceIDForUser resolves the user's space id, nil when no space is linked yet
func (s *SpaceService) SpaceIDForUser(ctx context.Context, userID string) (*string, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user.SpaceID, nil
}

// MemberOf reports whether a user belongs to a space
func (s *SpaceService) MemberOf(ctx context.Context, userID, spaceID string) (bool, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to get user: %w", err)
	}
	return user.SpaceID != nil && *user.SpaceID == spaceID, nil
}

// OtherMember resolves the partner in a space, nil when there is none yet
func (s *SpaceService) OtherMember(ctx context.Context, spaceID, userID string) (*models.User, error) {
	return s.spaceRepo.OtherMember(ctx, spaceID, userID)
}

func (s *SpaceService) generateUniqueCode(ctx context.Context) (string, error) {
	maxAttempts := 10
	for i := 0; i < maxAttempts; i++ {
		code := generateCode()
		exists, err := s.spaceRepo.InviteCodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("failed to check code existence: %w", err)
		}
		if !exists {
			return code, nil
		}
	}
	return "", fmt.Errorf("failed to generate unique code after %d attempts", maxAttempts)
}

// generateCode generates a random 6-character code
func generateCode() string {
	code := make([]byte, codeLength)
	for i := range code {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(codeChars))))
		code[i] = codeChars[n.Int64()]
	}
	return string(code)
}
