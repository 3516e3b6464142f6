package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"spark-backend/internal/catalog"
	"spark-backend/internal/feed"
	"spark-backend/internal/models"
	"spark-backend/internal/repository"

	"github.com/google/uuid"
)

// Tone scoring weights. Location and energy are weak signals; the requested
// vibe is the strong one.
const (
	locationPoints  = 1
	energyPoints    = 1
	vibePoints      = 2
	candidateCutoff = 2
)

// SuggestionService picks today's activity from the static catalog and
// persists it as the space's daily suggestion.
type SuggestionService struct {
	suggestionRepo repository.SuggestionStore
	userRepo       repository.UserStore
	catalog        *catalog.Catalog
	broker         *feed.Broker
	now            func() time.Time
}

// NewSuggestionService creates a new suggestion service
func NewSuggestionService(
	suggestionRepo repository.SuggestionStore,
	userRepo repository.UserStore,
	cat *catalog.Catalog,
	broker *feed.Broker,
) *SuggestionService {
	return &SuggestionService{
		suggestionRepo: suggestionRepo,
		userRepo:       userRepo,
		catalog:        cat,
		broker:         broker,
		now:            time.Now,
	}
}

// matchesTone maps a category/mode onto the surveyed vibe.
func matchesTone(vibe string, entry catalog.Entry) bool {
	switch vibe {
	case "Romantic":
		return entry.Category == "Pure Presence" ||
			entry.Category == "Neuro-Parallel Rhythms" ||
			entry.Activity.Mode == catalog.ModeResonance
	case "Deep":
		return entry.Category == "Repair & Philosophy" ||
			entry.Category == "Attachment Security" ||
			entry.Activity.Mode == catalog.ModeDeepDive
	case "Fun":
		return entry.Category == "New Horizons" ||
			entry.Category == "Playful Discovery" ||
			entry.Activity.Mode == catalog.ModeEnvelope
	}
	return false
}

// Score computes the match score of one catalog entry against the survey.
func Score(vibe models.VibeData, entry catalog.Entry) int {
	score := 0
	if entry.Activity.Location == vibe.Location {
		score += locationPoints
	}
	if entry.Activity.Energy == vibe.Energy {
		score += energyPoints
	}
	if matchesTone(vibe.Vibe, entry) {
		score += vibePoints
	}
	return score
}

// Candidates returns every catalog entry clearing the score cutoff.
func (s *SuggestionService) Candidates(vibe models.VibeData) []catalog.Entry {
	var out []catalog.Entry
	for _, entry := range s.catalog.Entries() {
		if Score(vibe, entry) >= candidateCutoff {
			out = append(out, entry)
		}
	}
	return out
}

// PickActivity selects one activity for the survey. Any good-enough match is
// fine: ties are broken by shuffling, not catalog order. When nothing clears
// the cutoff a uniformly random catalog entry is returned, so a pick always
// exists.
func (s *SuggestionService) PickActivity(vibe models.VibeData) catalog.Entry {
	candidates := s.Candidates(vibe)
	if len(candidates) == 0 {
		all := s.catalog.Entries()
		return all[rand.Intn(len(all))]
	}

	rand.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	return candidates[0]
}

// CreateSuggestion persists an activity as today's suggestion for the space,
// expiring at the end of the current local calendar day. The created row is
// returned directly so the caller can display it without waiting for the feed
// echo. Existing unexpired suggestions are not deduplicated; the newest one
// wins on the read path.
func (s *SuggestionService) CreateSuggestion(ctx context.Context, userID, activityID string, vibe models.VibeData, spaceID string) (*models.SuggestedDate, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user.SpaceID == nil || *user.SpaceID != spaceID {
		return nil, ErrNotSpaceMember
	}

	vibeJSON, err := json.Marshal(vibe)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal vibe data: %w", err)
	}

	now := s.now()
	suggestion := &models.SuggestedDate{
		ID:                  uuid.New().String(),
		SpaceID:             spaceID,
		SuggestedActivityID: activityID,
		VibeData:            vibeJSON,
		CreatedAt:           now,
		ExpiresAt:           endOfDay(now),
	}

	if err := s.suggestionRepo.Create(ctx, suggestion); err != nil {
		return nil, fmt.Errorf("failed to create suggestion: %w", err)
	}

	s.broker.Publish(feed.Event{
		Table:        feed.TableSuggestions,
		SpaceID:      spaceID,
		SuggestionID: suggestion.ID,
	})

	return suggestion, nil
}

// GenerateSuggestion runs the survey through the matcher and persists the pick.
func (s *SuggestionService) GenerateSuggestion(ctx context.Context, userID string, vibe models.VibeData, spaceID string) (*models.SuggestedDate, *catalog.Entry, error) {
	entry := s.PickActivity(vibe)
	suggestion, err := s.CreateSuggestion(ctx, userID, entry.Activity.ID, vibe, spaceID)
	if err != nil {
		return nil, nil, err
	}
	return suggestion, &entry, nil
}

// CurrentSuggestion retrieves the newest unexpired suggestion for a space,
// nil when none is live.
func (s *SuggestionService) CurrentSuggestion(ctx context.Context, spaceID string) (*models.SuggestedDate, error) {
	return s.suggestionRepo.Current(ctx, spaceID, s.now())
}

// endOfDay returns 23:59:59.999 of t's local calendar day.
func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, 999_000_000, t.Location())
}
