// Package feed is the in-process row-change feed. Repositories never talk to
// it directly; services publish an event after each successful write and every
// subscriber scoped to the same space receives it. Consumers treat an event as
// an invalidation hint and re-fetch authoritative rows rather than applying
// payload fields as state.
package feed

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Table identifies which logical table an event belongs to.
type Table string

const (
	TableSessions    Table = "date_sessions"
	TableAnswers     Table = "session_answers"
	TableSuggestions Table = "suggested_dates"
)

// Event is one row-level change notification. Only the fields relevant to the
// changed table are set.
type Event struct {
	Table     Table  `json:"table"`
	SpaceID   string `json:"space_id"`
	SessionID string `json:"session_id,omitempty"`

	// date_sessions fields
	Status      string `json:"status,omitempty"`
	CurrentStep int    `json:"current_step,omitempty"`

	// session_answers fields
	UserID     string `json:"user_id,omitempty"`
	Step       int    `json:"step,omitempty"`
	AnswerText string `json:"answer_text,omitempty"`

	// suggested_dates fields
	SuggestionID string `json:"suggestion_id,omitempty"`
}

const subscriptionBuffer = 16

// Subscription is a handle on a space-scoped event stream. The caller owns it
// and must call Close when done.
type Subscription struct {
	C chan Event

	broker  *Broker
	spaceID string
	once    sync.Once
}

// Close releases the subscription and closes C, so a consumer ranging over
// the channel terminates. Events published after Close are not delivered;
// already-buffered events can still be drained before the channel reports
// closed.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.broker.unsubscribe(s)
	})
}

// Broker fans out change events to space-scoped subscribers.
type Broker struct {
	mu   sync.RWMutex
	subs map[string]map[*Subscription]struct{}
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{
		subs: make(map[string]map[*Subscription]struct{}),
	}
}

// Subscribe opens a stream of events for one space.
func (b *Broker) Subscribe(spaceID string) *Subscription {
	sub := &Subscription{
		C:       make(chan Event, subscriptionBuffer),
		broker:  b,
		spaceID: spaceID,
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs[spaceID] == nil {
		b.subs[spaceID] = make(map[*Subscription]struct{})
	}
	b.subs[spaceID][sub] = struct{}{}
	return sub
}

func (b *Broker) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if set, ok := b.subs[sub.spaceID]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(b.subs, sub.spaceID)
		}
	}
	// Publish only sends to subscriptions still in the map, and does so under
	// the read lock, so closing here cannot race a send.
	close(sub.C)
}

// Publish delivers an event to every subscriber of its space. Delivery is
// non-blocking: a subscriber that has fallen behind loses the event, which is
// safe because consumers re-fetch on the next one.
func (b *Broker) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs[event.SpaceID] {
		select {
		case sub.C <- event:
		default:
			log.Warn().
				Str("space_id", event.SpaceID).
				Str("table", string(event.Table)).
				Msg("Feed subscriber buffer full, dropping event")
		}
	}
}
