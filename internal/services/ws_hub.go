package services

import (
	"encoding/json"
	"fmt"
	"sync"

	"spark-backend/internal/feed"
	"spark-backend/internal/models"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Server → client message types.
const (
	WSTypeSessionState      = "session_state"
	WSTypeFeedChange        = "feed_change"
	WSTypeAnswerRevealed    = "answer_revealed"
	WSTypeSuggestionCreated = "suggestion_created"
	WSTypePartnerStatus     = "partner_status"
	WSTypePong              = "pong"
	WSTypeError             = "error"
)

// Client → server message types.
const (
	WSTypePing = "ping"
)

// WSMessage is the envelope for all WebSocket traffic.
type WSMessage struct {
	Type         string              `json:"type"`
	Incoming     *models.DateSession `json:"incoming_session,omitempty"`
	Active       *models.DateSession `json:"active_session,omitempty"`
	Event        *feed.Event         `json:"event,omitempty"`
	PartnerReady *bool               `json:"partner_ready,omitempty"`
	Online       *bool               `json:"online,omitempty"`
	Message      string              `json:"message,omitempty"`
	Data         interface{}         `json:"data,omitempty"`
}

// wsClient pairs a connection with its write lock. gorilla/websocket allows
// only one concurrent writer per connection, and a connection here is written
// to from several goroutines (read loop, coordinator callback, feed forwarder).
type wsClient struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

// WSHub manages WebSocket connections
type WSHub struct {
	mu          sync.RWMutex
	connections map[string]*wsClient
}

// NewWSHub creates a new WebSocket hub
func NewWSHub() *WSHub {
	return &WSHub{
		connections: make(map[string]*wsClient),
	}
}

// Register registers a new WebSocket connection for a user, replacing any
// previous one.
func (h *WSHub) Register(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	if existing, exists := h.connections[userID]; exists {
		existing.conn.Close()
	}
	h.connections[userID] = &wsClient{conn: conn}
	h.mu.Unlock()

	log.Info().Str("user_id", userID).Msg("WebSocket connection registered")
}

// Unregister removes a user's WebSocket connection, but only if the map still
// holds the given conn. A handler shutting down after a reconnect replaced its
// connection must not tear down the replacement.
func (h *WSHub) Unregister(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	if client, exists := h.connections[userID]; exists && client.conn == conn {
		client.conn.Close()
		delete(h.connections, userID)
		log.Info().Str("user_id", userID).Msg("WebSocket connection unregistered")
	}
	h.mu.Unlock()
}

// SendToUser sends a message to a specific user. Safe to call from any
// goroutine; writes on a connection are serialized.
func (h *WSHub) SendToUser(userID string, message WSMessage) error {
	h.mu.RLock()
	client, exists := h.connections[userID]
	h.mu.RUnlock()

	if !exists {
		return fmt.Errorf("user %s is not connected", userID)
	}

	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	client.writeMu.Lock()
	err = client.conn.WriteMessage(websocket.TextMessage, data)
	client.writeMu.Unlock()
	if err != nil {
		h.Unregister(userID, client.conn)
		return fmt.Errorf("failed to send message: %w", err)
	}

	return nil
}

// IsOnline checks if a user is online
func (h *WSHub) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, exists := h.connections[userID]
	return exists
}

// NotifyPartnerStatus tells a partner the other member went on or offline
func (h *WSHub) NotifyPartnerStatus(partnerID string, online bool) {
	if partnerID == "" {
		return
	}

	message := WSMessage{
		Type:   WSTypePartnerStatus,
		Online: &online,
	}

	if err := h.SendToUser(partnerID, message); err != nil {
		log.Debug().
			Err(err).
			Str("user_id", partnerID).
			Msg("Failed to notify partner status")
	}
}
