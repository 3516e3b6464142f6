package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"spark-backend/internal/feed"
	"spark-backend/internal/models"
	"spark-backend/internal/repository"
	"spark-backend/internal/services"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePresence struct {
	online map[string]bool
}

func (f *fakePresence) IsOnline(userID string) bool {
	return f.online[userID]
}

type fakePusher struct {
	mu      sync.Mutex
	invited []string
}

func (f *fakePusher) PushInvite(_ context.Context, partner *models.User, _ string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invited = append(f.invited, partner.ID)
}

func (f *fakePusher) invites() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.invited...)
}

type fakeMemoryRecorder struct {
	mu     sync.Mutex
	dates  []string // session ids
	sparks []int    // milestone scores
}

func (f *fakeMemoryRecorder) RecordDateMemory(_ context.Context, _, _, sessionID, _ string) (*models.Memory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dates = append(f.dates, sessionID)
	return &models.Memory{ID: uuid.New().String(), Kind: models.MemoryDate}, nil
}

func (f *fakeMemoryRecorder) RecordSparkMemory(_ context.Context, _, _ string, score int) (*models.Memory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sparks = append(f.sparks, score)
	return &models.Memory{ID: uuid.New().String(), Kind: models.MemorySpark}, nil
}

type sessionEnv struct {
	users    *fakeUserStore
	spaces   *fakeSpaceStore
	sessions *fakeSessionStore
	answers  *fakeAnswerStore
	broker   *feed.Broker
	svc      *services.SessionService
	spaceID  string
}

func addUser(t *testing.T, env *sessionEnv, name string, spaceID *string) string {
	t.Helper()
	user := &models.User{
		ID:        uuid.New().String(),
		Name:      name,
		SpaceID:   spaceID,
		CreatedAt: time.Now(),
	}
	require.NoError(t, env.users.Create(context.Background(), user))
	return user.ID
}

// newSessionEnv builds a space with two paired members and a session service
// over in-memory stores.
func newSessionEnv(t *testing.T) (*sessionEnv, string, string) {
	t.Helper()

	env := &sessionEnv{
		users:  newFakeUserStore(),
		broker: feed.NewBroker(),
	}
	env.spaces = newFakeSpaceStore(env.users)
	env.sessions = newFakeSessionStore()
	env.answers = newFakeAnswerStore()

	space := &models.Space{ID: uuid.New().String(), InviteCode: "ABC123", CreatedAt: time.Now()}
	require.NoError(t, env.spaces.Create(context.Background(), space))
	env.spaceID = space.ID

	alice := addUser(t, env, "Alice", &space.ID)
	bob := addUser(t, env, "Bob", &space.ID)

	env.svc = services.NewSessionService(env.sessions, env.answers, env.spaces, env.users, env.broker, nil, nil, nil)
	return env, alice, bob
}

func TestStartSessionIdempotent(t *testing.T) {
	env, alice, bob := newSessionEnv(t)
	ctx := context.Background()

	first, err := env.svc.StartSession(ctx, alice, "act_deep_01", env.spaceID)
	require.NoError(t, err)

	// A second tap on the same activity returns the live session instead of
	// creating a duplicate, no matter which member taps.
	second, err := env.svc.StartSession(ctx, alice, "act_deep_01", env.spaceID)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	third, err := env.svc.StartSession(ctx, bob, "act_deep_01", env.spaceID)
	require.NoError(t, err)
	assert.Equal(t, first, third)

	assert.Equal(t, 1, env.sessions.count())

	// A different activity gets its own session.
	other, err := env.svc.StartSession(ctx, alice, "act_presence_01", env.spaceID)
	require.NoError(t, err)
	assert.NotEqual(t, first, other)
}

func TestStartSessionResolvesPartner(t *testing.T) {
	env, alice, bob := newSessionEnv(t)
	ctx := context.Background()

	id, err := env.svc.StartSession(ctx, alice, "act_deep_01", env.spaceID)
	require.NoError(t, err)

	session, err := env.sessions.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, alice, session.InitiatorID)
	require.NotNil(t, session.PartnerID)
	assert.Equal(t, bob, *session.PartnerID)
	assert.Equal(t, models.StatusPending, session.Status)
	assert.Equal(t, 0, session.CurrentStep)
}

func TestStartSessionWithoutPartner(t *testing.T) {
	env, _, _ := newSessionEnv(t)
	ctx := context.Background()

	space := &models.Space{ID: uuid.New().String(), InviteCode: "XYZ789", CreatedAt: time.Now()}
	require.NoError(t, env.spaces.Create(ctx, space))
	solo := addUser(t, env, "Solo", &space.ID)

	id, err := env.svc.StartSession(ctx, solo, "act_deep_01", space.ID)
	require.NoError(t, err)

	session, err := env.sessions.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, session.PartnerID)
}

func TestStartSessionRejectsOutsider(t *testing.T) {
	env, _, _ := newSessionEnv(t)
	outsider := addUser(t, env, "Mallory", nil)

	_, err := env.svc.StartSession(context.Background(), outsider, "act_deep_01", env.spaceID)
	assert.ErrorIs(t, err, services.ErrNotSpaceMember)
}

func TestStartSessionPushesOfflinePartner(t *testing.T) {
	env, alice, bob := newSessionEnv(t)
	ctx := context.Background()

	presence := &fakePresence{online: map[string]bool{alice: true}}
	pusher := &fakePusher{}
	svc := services.NewSessionService(env.sessions, env.answers, env.spaces, env.users, env.broker, presence, pusher, nil)

	_, err := svc.StartSession(ctx, alice, "act_deep_01", env.spaceID)
	require.NoError(t, err)
	assert.Equal(t, []string{bob}, pusher.invites())

	// An online partner gets the realtime invite, not a push.
	presence.online[bob] = true
	_, err = svc.StartSession(ctx, alice, "act_presence_01", env.spaceID)
	require.NoError(t, err)
	assert.Len(t, pusher.invites(), 1)
}

func TestAcceptSession(t *testing.T) {
	env, alice, bob := newSessionEnv(t)
	ctx := context.Background()

	sub := env.broker.Subscribe(env.spaceID)
	defer sub.Close()

	id, err := env.svc.StartSession(ctx, alice, "act_deep_01", env.spaceID)
	require.NoError(t, err)
	require.NoError(t, env.svc.AcceptSession(ctx, bob, id))

	session, err := env.sessions.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, session.Status)

	// Both writes published a change event.
	ev := <-sub.C
	assert.Equal(t, feed.TableSessions, ev.Table)
	assert.Equal(t, string(models.StatusPending), ev.Status)
	ev = <-sub.C
	assert.Equal(t, string(models.StatusActive), ev.Status)
	assert.Equal(t, id, ev.SessionID)
}

func TestAcceptFinishedSession(t *testing.T) {
	env, alice, bob := newSessionEnv(t)
	ctx := context.Background()

	id, err := env.svc.StartSession(ctx, alice, "act_deep_01", env.spaceID)
	require.NoError(t, err)
	_, err = env.svc.CompleteSession(ctx, alice, id)
	require.NoError(t, err)

	assert.ErrorIs(t, env.svc.AcceptSession(ctx, bob, id), services.ErrSessionFinished)
}

func TestCancelSessionIdempotent(t *testing.T) {
	env, alice, _ := newSessionEnv(t)
	ctx := context.Background()

	id, err := env.svc.StartSession(ctx, alice, "act_deep_01", env.spaceID)
	require.NoError(t, err)

	require.NoError(t, env.svc.CancelSession(ctx, alice, id))
	// Cancelling again is a no-op, not an error.
	require.NoError(t, env.svc.CancelSession(ctx, alice, id))

	session, err := env.sessions.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, session.Status)
}

func TestCancelCompletedSession(t *testing.T) {
	env, alice, _ := newSessionEnv(t)
	ctx := context.Background()

	id, err := env.svc.StartSession(ctx, alice, "act_deep_01", env.spaceID)
	require.NoError(t, err)
	_, err = env.svc.CompleteSession(ctx, alice, id)
	require.NoError(t, err)

	assert.ErrorIs(t, env.svc.CancelSession(ctx, alice, id), services.ErrSessionFinished)
}

func TestAdvanceStep(t *testing.T) {
	env, alice, bob := newSessionEnv(t)
	ctx := context.Background()

	id, err := env.svc.StartSession(ctx, alice, "act_deep_01", env.spaceID)
	require.NoError(t, err)
	require.NoError(t, env.svc.AcceptSession(ctx, bob, id))

	require.NoError(t, env.svc.AdvanceStep(ctx, alice, id, 2))
	session, err := env.sessions.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 2, session.CurrentStep)

	// Steps are caller-reported; moving backwards is tolerated.
	require.NoError(t, env.svc.AdvanceStep(ctx, bob, id, 1))
	session, err = env.sessions.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, session.CurrentStep)

	assert.ErrorIs(t, env.svc.AdvanceStep(ctx, alice, id, -1), services.ErrNegativeStep)
}

func TestCompleteSessionBumpsScore(t *testing.T) {
	env, alice, bob := newSessionEnv(t)
	ctx := context.Background()

	id, err := env.svc.StartSession(ctx, alice, "act_deep_01", env.spaceID)
	require.NoError(t, err)
	require.NoError(t, env.svc.AcceptSession(ctx, bob, id))
	require.NoError(t, env.svc.AdvanceStep(ctx, alice, id, 3))

	score, err := env.svc.CompleteSession(ctx, alice, id)
	require.NoError(t, err)
	assert.Equal(t, 1, score)

	session, err := env.sessions.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, session.Status)
	assert.True(t, session.IsCompleted)
	assert.Equal(t, 4, session.CurrentStep)

	_, err = env.svc.CompleteSession(ctx, alice, id)
	assert.ErrorIs(t, err, services.ErrSessionFinished)

	// A completed session no longer blocks a fresh start for the activity.
	fresh, err := env.svc.StartSession(ctx, alice, "act_deep_01", env.spaceID)
	require.NoError(t, err)
	assert.NotEqual(t, id, fresh)
}

func TestCompleteSessionRecordsDateMemory(t *testing.T) {
	env, alice, bob := newSessionEnv(t)
	ctx := context.Background()

	recorder := &fakeMemoryRecorder{}
	svc := services.NewSessionService(env.sessions, env.answers, env.spaces, env.users, env.broker, nil, nil, recorder)

	id, err := svc.StartSession(ctx, alice, "act_deep_01", env.spaceID)
	require.NoError(t, err)
	require.NoError(t, svc.AcceptSession(ctx, bob, id))

	_, err = svc.CompleteSession(ctx, alice, id)
	require.NoError(t, err)

	assert.Equal(t, []string{id}, recorder.dates)
	assert.Empty(t, recorder.sparks)
}

func TestCompleteSessionRecordsSparkMilestone(t *testing.T) {
	env, _, _ := newSessionEnv(t)
	ctx := context.Background()

	space := &models.Space{ID: uuid.New().String(), InviteCode: "MILE10", CreatedAt: time.Now()}
	require.NoError(t, env.spaces.Create(ctx, space))
	user := &models.User{
		ID:         uuid.New().String(),
		Name:       "Niner",
		SpaceID:    &space.ID,
		SparkScore: 9,
		CreatedAt:  time.Now(),
	}
	require.NoError(t, env.users.Create(ctx, user))

	recorder := &fakeMemoryRecorder{}
	svc := services.NewSessionService(env.sessions, env.answers, env.spaces, env.users, env.broker, nil, nil, recorder)

	// Tenth point lands a spark milestone next to the date entry.
	_, score, err := svc.CompleteSolo(ctx, user.ID, "act_deep_01", space.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, score)
	assert.Len(t, recorder.dates, 1)
	assert.Equal(t, []int{10}, recorder.sparks)
}

func TestCompleteSolo(t *testing.T) {
	env, alice, _ := newSessionEnv(t)
	ctx := context.Background()

	id, score, err := env.svc.CompleteSolo(ctx, alice, "act_presence_01", env.spaceID)
	require.NoError(t, err)
	assert.Equal(t, 1, score)

	session, err := env.sessions.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, session.Status)
	assert.True(t, session.IsCompleted)
	assert.Equal(t, 1, session.CurrentStep)
	assert.Nil(t, session.PartnerID)
}

func TestSubmitAnswerUpsert(t *testing.T) {
	env, alice, bob := newSessionEnv(t)
	ctx := context.Background()

	id, err := env.svc.StartSession(ctx, alice, "act_deep_01", env.spaceID)
	require.NoError(t, err)
	require.NoError(t, env.svc.AcceptSession(ctx, bob, id))

	sub := env.broker.Subscribe(env.spaceID)
	defer sub.Close()

	require.NoError(t, env.svc.SubmitAnswer(ctx, alice, id, 1, "first draft"))
	require.NoError(t, env.svc.SubmitAnswer(ctx, alice, id, 1, "final answer"))
	require.NoError(t, env.svc.SubmitAnswer(ctx, bob, id, 1, "bob's answer"))

	answers, err := env.svc.StepAnswers(ctx, alice, id, 1)
	require.NoError(t, err)
	require.Len(t, answers, 2)

	byUser := map[string]string{}
	for _, a := range answers {
		byUser[a.UserID] = a.AnswerText
	}
	assert.Equal(t, "final answer", byUser[alice])
	assert.Equal(t, "bob's answer", byUser[bob])

	ev := <-sub.C
	assert.Equal(t, feed.TableAnswers, ev.Table)
	assert.Equal(t, id, ev.SessionID)
	assert.Equal(t, alice, ev.UserID)
	assert.Equal(t, 1, ev.Step)
}

func TestSessionAuthorization(t *testing.T) {
	env, alice, _ := newSessionEnv(t)
	ctx := context.Background()
	outsider := addUser(t, env, "Mallory", nil)

	id, err := env.svc.StartSession(ctx, alice, "act_deep_01", env.spaceID)
	require.NoError(t, err)

	assert.ErrorIs(t, env.svc.AcceptSession(ctx, outsider, id), services.ErrNotParticipant)
	assert.ErrorIs(t, env.svc.CancelSession(ctx, outsider, id), services.ErrNotParticipant)
	assert.ErrorIs(t, env.svc.AdvanceStep(ctx, outsider, id, 1), services.ErrNotParticipant)
	_, err = env.svc.StepAnswers(ctx, outsider, id, 0)
	assert.ErrorIs(t, err, services.ErrNotParticipant)
}

func TestUnknownSessionID(t *testing.T) {
	env, alice, _ := newSessionEnv(t)
	ctx := context.Background()

	_, err := env.svc.GetSession(ctx, alice, "no-such-session")
	assert.ErrorIs(t, err, repository.ErrSessionNotFound)
	assert.ErrorIs(t, env.svc.AcceptSession(ctx, alice, "no-such-session"), repository.ErrSessionNotFound)
}

func TestPartnerlessSessionAdmitsLateJoiner(t *testing.T) {
	env, _, _ := newSessionEnv(t)
	ctx := context.Background()

	space := &models.Space{ID: uuid.New().String(), InviteCode: "LATE01", CreatedAt: time.Now()}
	require.NoError(t, env.spaces.Create(ctx, space))
	early := addUser(t, env, "Early", &space.ID)

	// Invite created before the partner joined the space.
	id, err := env.svc.StartSession(ctx, early, "act_deep_01", space.ID)
	require.NoError(t, err)

	late := addUser(t, env, "Late", &space.ID)
	require.NoError(t, env.svc.AcceptSession(ctx, late, id))

	session, err := env.sessions.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, session.Status)
}
