package services_test

import (
	"context"
	"testing"

	"spark-backend/internal/feed"
	"spark-backend/internal/models"
	"spark-backend/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRelay(t *testing.T) (*services.FeedRelay, *sessionEnv, string, string) {
	t.Helper()
	env, alice, bob := newSessionEnv(t)

	c, err := services.NewCoordinatorService(env.users, env.sessions, env.broker).Connect(context.Background(), alice)
	require.NoError(t, err)
	t.Cleanup(c.Close)

	return services.NewFeedRelay(alice, c), env, alice, bob
}

func answerEvent(sessionID, userID string, step int, text string) feed.Event {
	return feed.Event{
		Table:      feed.TableAnswers,
		SpaceID:    "space-1",
		SessionID:  sessionID,
		UserID:     userID,
		Step:       step,
		AnswerText: text,
	}
}

func TestRelayHoldsPartnerAnswerUntilLocalSubmit(t *testing.T) {
	relay, _, alice, bob := newRelay(t)

	// Partner answers first: the event goes through, the text does not.
	msgs := relay.Relay(answerEvent("sess-1", bob, 1, "bob's secret"))
	require.Len(t, msgs, 1)
	assert.Equal(t, services.WSTypeFeedChange, msgs[0].Type)
	assert.Empty(t, msgs[0].Event.AnswerText)

	// The local submission echoes back and releases the held answer.
	msgs = relay.Relay(answerEvent("sess-1", alice, 1, "alice's answer"))
	require.Len(t, msgs, 2)
	assert.Equal(t, services.WSTypeFeedChange, msgs[0].Type)
	assert.Equal(t, "alice's answer", msgs[0].Event.AnswerText)
	assert.Equal(t, services.WSTypeAnswerRevealed, msgs[1].Type)
	assert.Equal(t, "bob's secret", msgs[1].Event.AnswerText)
}

func TestRelayRevealsWhenLocalSubmittedFirst(t *testing.T) {
	relay, _, alice, bob := newRelay(t)

	msgs := relay.Relay(answerEvent("sess-1", alice, 1, "alice's answer"))
	require.Len(t, msgs, 1)

	// Partner's answer arrives after the local submission: revealed directly.
	msgs = relay.Relay(answerEvent("sess-1", bob, 1, "bob's secret"))
	require.Len(t, msgs, 1)
	assert.Equal(t, services.WSTypeAnswerRevealed, msgs[0].Type)
	assert.Equal(t, "bob's secret", msgs[0].Event.AnswerText)
}

func TestRelayGatesPerStep(t *testing.T) {
	relay, _, alice, bob := newRelay(t)

	// Submitting step 1 does not unlock step 2.
	relay.Relay(answerEvent("sess-1", alice, 1, "step one"))
	msgs := relay.Relay(answerEvent("sess-1", bob, 2, "step two secret"))
	require.Len(t, msgs, 1)
	assert.Equal(t, services.WSTypeFeedChange, msgs[0].Type)
	assert.Empty(t, msgs[0].Event.AnswerText)
}

func TestRelaySessionEventCarriesPartnerReady(t *testing.T) {
	relay, _, _, _ := newRelay(t)

	ev := feed.Event{
		Table:       feed.TableSessions,
		SpaceID:     "space-1",
		SessionID:   "sess-1",
		Status:      string(models.StatusActive),
		CurrentStep: 0,
	}
	msgs := relay.Relay(ev)
	require.Len(t, msgs, 1)
	require.NotNil(t, msgs[0].PartnerReady)
	assert.False(t, *msgs[0].PartnerReady)

	// Partner moves past the local step.
	ev.CurrentStep = 1
	msgs = relay.Relay(ev)
	require.Len(t, msgs, 1)
	require.NotNil(t, msgs[0].PartnerReady)
	assert.True(t, *msgs[0].PartnerReady)
}

func TestRelayForwardsSuggestions(t *testing.T) {
	relay, _, _, _ := newRelay(t)

	msgs := relay.Relay(feed.Event{
		Table:        feed.TableSuggestions,
		SpaceID:      "space-1",
		SuggestionID: "sug-1",
	})
	require.Len(t, msgs, 1)
	assert.Equal(t, services.WSTypeSuggestionCreated, msgs[0].Type)
	assert.Equal(t, "sug-1", msgs[0].Event.SuggestionID)
}
