package handlers

import (
	"encoding/json"
	"net/http"

	"spark-backend/internal/feed"
	"spark-backend/internal/services"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for MVP
	},
}

// WebSocketHandler handles WebSocket connections
type WebSocketHandler struct {
	hub                *services.WSHub
	userService        *services.UserService
	spaceService       *services.SpaceService
	coordinatorService *services.CoordinatorService
	broker             *feed.Broker
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(
	hub *services.WSHub,
	userService *services.UserService,
	spaceService *services.SpaceService,
	coordinatorService *services.CoordinatorService,
	broker *feed.Broker,
) *WebSocketHandler {
	return &WebSocketHandler{
		hub:                hub,
		userService:        userService,
		spaceService:       spaceService,
		coordinatorService: coordinatorService,
		broker:             broker,
	}
}

// HandleWebSocket handles WebSocket connections. Each connection holds a
// session coordinator whose derived views are pushed to the client on every
// change, plus a raw feed subscription for step-sync and answer events.
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		respondError(w, "token required", http.StatusUnauthorized)
		return
	}

	userID, err := h.userService.ValidateJWT(token)
	if err != nil {
		respondError(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}
	defer conn.Close()

	h.hub.Register(userID, conn)
	defer h.hub.Unregister(userID, conn)

	ctx := r.Context()

	coordinator, err := h.coordinatorService.Connect(ctx, userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to connect session coordinator")
		return
	}
	defer coordinator.Close()

	coordinator.OnChange(func() {
		h.pushSessionState(userID, coordinator)
	})

	// Initial state so the client does not wait for the first change.
	h.pushSessionState(userID, coordinator)

	var partnerID string
	if spaceID := coordinator.SpaceID(); spaceID != "" {
		if partner, err := h.spaceService.OtherMember(ctx, spaceID, userID); err == nil && partner != nil {
			partnerID = partner.ID
			h.hub.NotifyPartnerStatus(partnerID, true)
		}

		// Raw feed events drive the client's step-sync and answer reveal.
		sub := h.broker.Subscribe(spaceID)
		defer sub.Close()
		go h.forwardFeed(userID, services.NewFeedRelay(userID, coordinator), sub)
	}
	if partnerID != "" {
		defer h.hub.NotifyPartnerStatus(partnerID, false)
	}

	log.Info().Str("user_id", userID).Msg("WebSocket connection established")

	for {
		_, messageBytes, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("user_id", userID).Msg("WebSocket error")
			}
			break
		}

		var msg services.WSMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			log.Error().Err(err).Str("user_id", userID).Msg("Failed to parse WebSocket message")
			h.sendError(userID, "Invalid message format")
			continue
		}

		switch msg.Type {
		case services.WSTypePing:
			if err := h.hub.SendToUser(userID, services.WSMessage{Type: services.WSTypePong}); err != nil {
				log.Debug().Err(err).Str("user_id", userID).Msg("Failed to send pong")
			}
		default:
			h.sendError(userID, "Unknown message type")
		}
	}
}

// pushSessionState sends the coordinator's current derived views to the client
func (h *WebSocketHandler) pushSessionState(userID string, coordinator *services.Coordinator) {
	msg := services.WSMessage{
		Type:     services.WSTypeSessionState,
		Incoming: coordinator.IncomingSession(),
		Active:   coordinator.MyActiveSession(),
	}
	if err := h.hub.SendToUser(userID, msg); err != nil {
		log.Debug().Err(err).Str("user_id", userID).Msg("Failed to push session state")
	}
}

// forwardFeed relays change events to the client until the subscription
// closes. The relay adds the partner-ahead signal to session events and holds
// back partner answer text until the local side has submitted its own.
func (h *WebSocketHandler) forwardFeed(userID string, relay *services.FeedRelay, sub *feed.Subscription) {
	for ev := range sub.C {
		for _, msg := range relay.Relay(ev) {
			if err := h.hub.SendToUser(userID, msg); err != nil {
				log.Debug().Err(err).Str("user_id", userID).Msg("Failed to forward feed event")
				return
			}
		}
	}
}

// sendError sends an error message to the client
func (h *WebSocketHandler) sendError(userID, message string) {
	msg := services.WSMessage{
		Type:    services.WSTypeError,
		Message: message,
	}
	if err := h.hub.SendToUser(userID, msg); err != nil {
		log.Debug().Err(err).Str("user_id", userID).Msg("Failed to send error message")
	}
}
