package services

import (
	"context"
	"sync"

	"spark-backend/internal/feed"
	"spark-backend/internal/models"
	"spark-backend/internal/repository"

	"github.com/rs/zerolog/log"
)

// CoordinatorService builds per-user session coordinators. A coordinator is
// the read half of the protocol: it watches the space's change feed and keeps
// two derived views current, the pending invite addressed to the user and the
// active session the user participates in.
type CoordinatorService struct {
	userRepo    repository.UserStore
	sessionRepo repository.SessionStore
	broker      *feed.Broker
}

// NewCoordinatorService creates a new coordinator service
func NewCoordinatorService(userRepo repository.UserStore, sessionRepo repository.SessionStore, broker *feed.Broker) *CoordinatorService {
	return &CoordinatorService{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		broker:      broker,
	}
}

// Connect resolves the user's space and opens a coordinator over it. A user
// without a space gets an idle coordinator whose views stay empty; that is a
// normal not-ready state, not an error. The caller must Close the coordinator.
func (cs *CoordinatorService) Connect(ctx context.Context, userID string) (*Coordinator, error) {
	c := &Coordinator{
		userID:   userID,
		done:     make(chan struct{}),
		trackers: make(map[string]*StepTracker),
	}

	user, err := cs.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.SpaceID == nil {
		return c, nil
	}

	c.spaceID = *user.SpaceID
	c.sessionRepo = cs.sessionRepo
	c.sub = cs.broker.Subscribe(c.spaceID)

	c.refresh(ctx)
	go c.run()

	return c, nil
}

// Coordinator is a live handle on one user's view of their space's sessions.
type Coordinator struct {
	userID      string
	spaceID     string
	sessionRepo repository.SessionStore
	sub         *feed.Subscription

	mu       sync.RWMutex
	incoming *models.DateSession
	active   *models.DateSession
	trackers map[string]*StepTracker
	onChange func()

	closeOnce sync.Once
	done      chan struct{}
}

// SpaceID returns the space this coordinator watches, empty when idle.
func (c *Coordinator) SpaceID() string {
	return c.spaceID
}

// IncomingSession returns the pending session inviting this user, if any.
func (c *Coordinator) IncomingSession() *models.DateSession {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.incoming
}

// MyActiveSession returns the active session this user participates in, if any.
func (c *Coordinator) MyActiveSession() *models.DateSession {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active
}

// OnChange registers a callback invoked after each view refresh. Used by the
// transport layer to push fresh state to the client.
func (c *Coordinator) OnChange(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = fn
}

// Track returns the step tracker for a session, creating it on first use.
// Session change events for that id feed the tracker from then on.
func (c *Coordinator) Track(sessionID string) *StepTracker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.trackers[sessionID]
	if !ok {
		t = NewStepTracker()
		c.trackers[sessionID] = t
	}
	return t
}

// Close releases the feed subscription. Safe to call more than once; a refresh
// racing with Close is discarded instead of applied.
func (c *Coordinator) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.sub != nil {
			c.sub.Close()
		}
	})
}

func (c *Coordinator) run() {
	for {
		select {
		case <-c.done:
			return
		case ev, ok := <-c.sub.C:
			if !ok {
				return
			}
			c.handle(ev)
		}
	}
}

func (c *Coordinator) handle(ev feed.Event) {
	if ev.Table != feed.TableSessions {
		return
	}

	// The event payload is a hint, never applied as state: any session
	// change triggers a full re-fetch of the live set.
	c.refresh(context.Background())

	c.mu.RLock()
	tracker := c.trackers[ev.SessionID]
	c.mu.RUnlock()
	if tracker != nil {
		tracker.Observe(models.SessionStatus(ev.Status), ev.CurrentStep)
	}
}

// refresh re-fetches every live session for the space and recomputes both
// derived views. On failure the previous views are kept.
func (c *Coordinator) refresh(ctx context.Context) {
	sessions, err := c.sessionRepo.ListLive(ctx, c.spaceID)
	if err != nil {
		log.Warn().Err(err).Str("space_id", c.spaceID).Msg("Failed to refresh live sessions")
		return
	}

	var incoming, active *models.DateSession
	for _, s := range sessions {
		if incoming == nil && s.Status == models.StatusPending &&
			s.PartnerID != nil && *s.PartnerID == c.userID {
			incoming = s
		}
		if active == nil && s.Status == models.StatusActive && s.Participant(c.userID) {
			active = s
		}
	}

	select {
	case <-c.done:
		// Closed while the fetch was in flight; drop the result.
		return
	default:
	}

	c.mu.Lock()
	c.incoming = incoming
	c.active = active
	fn := c.onChange
	c.mu.Unlock()

	if fn != nil {
		fn()
	}
}
