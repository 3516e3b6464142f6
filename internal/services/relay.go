package services

import (
	"fmt"

	"spark-backend/internal/feed"
	"spark-backend/internal/models"
)

// FeedRelay converts one connection's raw change events into the messages its
// client should actually see. Session events pick up the partner-ahead signal
// from the session's step tracker; an answer written by the partner is held
// back until the local participant has submitted their own answer for that
// step, then released. Not safe for concurrent use: each connection owns one
// relay and feeds it from a single goroutine.
type FeedRelay struct {
	userID      string
	coordinator *Coordinator
	exchanges   map[string]*AnswerExchange
}

// NewFeedRelay creates a relay for one user's connection.
func NewFeedRelay(userID string, coordinator *Coordinator) *FeedRelay {
	return &FeedRelay{
		userID:      userID,
		coordinator: coordinator,
		exchanges:   make(map[string]*AnswerExchange),
	}
}

// Relay returns the messages to deliver for an event, possibly none.
func (r *FeedRelay) Relay(ev feed.Event) []WSMessage {
	switch ev.Table {
	case feed.TableSessions:
		tracker := r.coordinator.Track(ev.SessionID)
		tracker.Observe(models.SessionStatus(ev.Status), ev.CurrentStep)
		ready := tracker.PartnerReady()
		event := ev
		return []WSMessage{{Type: WSTypeFeedChange, Event: &event, PartnerReady: &ready}}

	case feed.TableAnswers:
		return r.relayAnswer(ev)

	case feed.TableSuggestions:
		event := ev
		return []WSMessage{{Type: WSTypeSuggestionCreated, Event: &event}}
	}

	event := ev
	return []WSMessage{{Type: WSTypeFeedChange, Event: &event}}
}

func (r *FeedRelay) relayAnswer(ev feed.Event) []WSMessage {
	key := fmt.Sprintf("%s:%d", ev.SessionID, ev.Step)
	exchange, ok := r.exchanges[key]
	if !ok {
		exchange = NewAnswerExchange()
		r.exchanges[key] = exchange
	}

	if ev.UserID == r.userID {
		// The local side's own submission echoes back as-is.
		exchange.SubmitLocal()
		event := ev
		msgs := []WSMessage{{Type: WSTypeFeedChange, Event: &event}}

		// Submitting may complete the exchange; release the held-back answer.
		if text, revealed := exchange.PartnerAnswer(); revealed && text != "" {
			reveal := feed.Event{
				Table:      feed.TableAnswers,
				SpaceID:    ev.SpaceID,
				SessionID:  ev.SessionID,
				Step:       ev.Step,
				AnswerText: text,
			}
			msgs = append(msgs, WSMessage{Type: WSTypeAnswerRevealed, Event: &reveal})
		}
		return msgs
	}

	exchange.ObservePartner(ev.AnswerText)

	event := ev
	event.AnswerText = ""
	if text, revealed := exchange.PartnerAnswer(); revealed {
		event.AnswerText = text
		return []WSMessage{{Type: WSTypeAnswerRevealed, Event: &event}}
	}
	// Partner answered first: the client learns an answer exists, not its text.
	return []WSMessage{{Type: WSTypeFeedChange, Event: &event}}
}
