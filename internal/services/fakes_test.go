package services_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"spark-backend/internal/models"
	"spark-backend/internal/repository"
)

// In-memory stores backing the service tests.

type fakeUserStore struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[string]*models.User)}
}

func (f *fakeUserStore) Create(_ context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *user
	f.users[user.ID] = &cp
	return nil
}

func (f *fakeUserStore) GetByID(_ context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return nil, fmt.Errorf("user not found")
	}
	cp := *user
	return &cp, nil
}

func (f *fakeUserStore) SetSpace(_ context.Context, userID, spaceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userID]
	if !ok {
		return fmt.Errorf("user not found")
	}
	user.SpaceID = &spaceID
	return nil
}

func (f *fakeUserStore) UpdatePushToken(_ context.Context, userID string, pushToken *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userID]
	if !ok {
		return fmt.Errorf("user not found")
	}
	user.PushToken = pushToken
	return nil
}

func (f *fakeUserStore) IncrementSparkScore(_ context.Context, userID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userID]
	if !ok {
		return 0, fmt.Errorf("user not found")
	}
	user.SparkScore++
	return user.SparkScore, nil
}

type fakeSpaceStore struct {
	mu     sync.Mutex
	spaces map[string]*models.Space
	users  *fakeUserStore
}

func newFakeSpaceStore(users *fakeUserStore) *fakeSpaceStore {
	return &fakeSpaceStore{spaces: make(map[string]*models.Space), users: users}
}

func (f *fakeSpaceStore) Create(_ context.Context, space *models.Space) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *space
	f.spaces[space.ID] = &cp
	return nil
}

func (f *fakeSpaceStore) GetByID(_ context.Context, id string) (*models.Space, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	space, ok := f.spaces[id]
	if !ok {
		return nil, fmt.Errorf("space not found")
	}
	cp := *space
	return &cp, nil
}

func (f *fakeSpaceStore) GetByInviteCode(_ context.Context, code string) (*models.Space, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, space := range f.spaces {
		if space.InviteCode == code {
			cp := *space
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("space not found")
}

func (f *fakeSpaceStore) InviteCodeExists(_ context.Context, code string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, space := range f.spaces {
		if space.InviteCode == code {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeSpaceStore) Members(_ context.Context, spaceID string) ([]*models.User, error) {
	f.users.mu.Lock()
	defer f.users.mu.Unlock()
	var members []*models.User
	for _, user := range f.users.users {
		if user.SpaceID != nil && *user.SpaceID == spaceID {
			cp := *user
			members = append(members, &cp)
		}
	}
	sort.Slice(members, func(i, j int) bool { return members[i].CreatedAt.Before(members[j].CreatedAt) })
	return members, nil
}

func (f *fakeSpaceStore) OtherMember(ctx context.Context, spaceID, userID string) (*models.User, error) {
	members, err := f.Members(ctx, spaceID)
	if err != nil {
		return nil, err
	}
	for _, m := range members {
		if m.ID != userID {
			return m, nil
		}
	}
	return nil, nil
}

type fakeSessionStore struct {
	mu       sync.Mutex
	sessions map[string]*models.DateSession
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: make(map[string]*models.DateSession)}
}

func (f *fakeSessionStore) Create(_ context.Context, session *models.DateSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *session
	f.sessions[session.ID] = &cp
	return nil
}

func (f *fakeSessionStore) GetByID(_ context.Context, id string) (*models.DateSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[id]
	if !ok {
		return nil, repository.ErrSessionNotFound
	}
	cp := *session
	return &cp, nil
}

func (f *fakeSessionStore) FindLive(_ context.Context, spaceID, templateID string) (*models.DateSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		if s.SpaceID == spaceID && s.TemplateID == templateID && s.Status.Live() {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeSessionStore) ListLive(_ context.Context, spaceID string) ([]*models.DateSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.DateSession
	for _, s := range f.sessions {
		if s.SpaceID == spaceID && s.Status.Live() {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastInteractionAt.After(out[j].LastInteractionAt)
	})
	return out, nil
}

func (f *fakeSessionStore) UpdateStatus(_ context.Context, id string, status models.SessionStatus, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[id]
	if !ok {
		return fmt.Errorf("session not found")
	}
	session.Status = status
	session.LastInteractionAt = at
	return nil
}

func (f *fakeSessionStore) UpdateStep(_ context.Context, id string, step int, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[id]
	if !ok {
		return fmt.Errorf("session not found")
	}
	session.CurrentStep = step
	session.LastInteractionAt = at
	return nil
}

func (f *fakeSessionStore) Complete(_ context.Context, id string, step int, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[id]
	if !ok {
		return fmt.Errorf("session not found")
	}
	session.Status = models.StatusCompleted
	session.IsCompleted = true
	session.CurrentStep = step
	session.LastInteractionAt = at
	return nil
}

func (f *fakeSessionStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessions)
}

type answerKey struct {
	sessionID string
	userID    string
	step      int
}

type fakeAnswerStore struct {
	mu      sync.Mutex
	answers map[answerKey]*models.SessionAnswer
}

func newFakeAnswerStore() *fakeAnswerStore {
	return &fakeAnswerStore{answers: make(map[answerKey]*models.SessionAnswer)}
}

func (f *fakeAnswerStore) Upsert(_ context.Context, answer *models.SessionAnswer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *answer
	f.answers[answerKey{answer.SessionID, answer.UserID, answer.Step}] = &cp
	return nil
}

func (f *fakeAnswerStore) ListByStep(_ context.Context, sessionID string, step int) ([]*models.SessionAnswer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.SessionAnswer
	for k, a := range f.answers {
		if k.sessionID == sessionID && k.step == step {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeAnswerStore) ListBySession(_ context.Context, sessionID string) ([]*models.SessionAnswer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.SessionAnswer
	for k, a := range f.answers {
		if k.sessionID == sessionID {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Step < out[j].Step })
	return out, nil
}

type fakeSuggestionStore struct {
	mu          sync.Mutex
	suggestions []*models.SuggestedDate
}

func newFakeSuggestionStore() *fakeSuggestionStore {
	return &fakeSuggestionStore{}
}

func (f *fakeSuggestionStore) Create(_ context.Context, suggestion *models.SuggestedDate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *suggestion
	f.suggestions = append(f.suggestions, &cp)
	return nil
}

func (f *fakeSuggestionStore) Current(_ context.Context, spaceID string, now time.Time) (*models.SuggestedDate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var current *models.SuggestedDate
	for _, s := range f.suggestions {
		if s.SpaceID != spaceID || !s.ExpiresAt.After(now) {
			continue
		}
		if current == nil || s.CreatedAt.After(current.CreatedAt) {
			current = s
		}
	}
	if current == nil {
		return nil, nil
	}
	cp := *current
	return &cp, nil
}

func (f *fakeSuggestionStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.suggestions)
}
