package handlers

import (
	"encoding/json"
	"net/http"

	"spark-backend/internal/middleware"
	"spark-backend/internal/services"

	"github.com/rs/zerolog/log"
)

// SpaceHandler handles space-related HTTP requests
type SpaceHandler struct {
	spaceService *services.SpaceService
	wsHub        *services.WSHub
}

// NewSpaceHandler creates a new space handler
func NewSpaceHandler(spaceService *services.SpaceService, wsHub *services.WSHub) *SpaceHandler {
	return &SpaceHandler{
		spaceService: spaceService,
		wsHub:        wsHub,
	}
}

// CreateSpace handles POST /api/v1/spaces. Returns the caller's existing
// space or creates a new one with a shareable invite code.
func (h *SpaceHandler) CreateSpace(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	space, err := h.spaceService.CreateForUser(ctx, userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to create space")
		respondError(w, err.Error(), statusForError(err))
		return
	}

	log.Info().
		Str("user_id", userID).
		Str("space_id", space.ID).
		Msg("Space ready")

	respondJSON(w, http.StatusOK, space)
}

// JoinSpaceRequest represents the request body for joining a space
type JoinSpaceRequest struct {
	Code string `json:"code"`
}

// JoinSpace handles POST /api/v1/spaces/join
func (h *SpaceHandler) JoinSpace(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req JoinSpaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Code == "" {
		respondError(w, "code is required", http.StatusBadRequest)
		return
	}

	space, err := h.spaceService.JoinByCode(ctx, userID, req.Code)
	if err != nil {
		log.Error().
			Err(err).
			Str("user_id", userID).
			Msg("Failed to join space")
		respondError(w, err.Error(), statusForError(err))
		return
	}

	log.Info().
		Str("user_id", userID).
		Str("space_id", space.ID).
		Msg("User joined space")

	// Tell the waiting partner their invite code was used.
	if partner, err := h.spaceService.OtherMember(ctx, space.ID, userID); err == nil && partner != nil {
		if h.wsHub.IsOnline(partner.ID) {
			msg := services.WSMessage{
				Type: services.WSTypePartnerStatus,
				Data: map[string]interface{}{
					"partner_joined": true,
					"space_id":       space.ID,
				},
			}
			if err := h.wsHub.SendToUser(partner.ID, msg); err != nil {
				log.Debug().Err(err).Str("user_id", partner.ID).Msg("Failed to notify partner of join")
			}
		}
	}

	respondJSON(w, http.StatusOK, space)
}

// GetMySpace handles GET /api/v1/spaces/me
func (h *SpaceHandler) GetMySpace(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	spaceID, err := h.spaceService.SpaceIDForUser(ctx, userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to resolve space")
		respondError(w, "Failed to resolve space", http.StatusInternalServerError)
		return
	}
	if spaceID == nil {
		respondJSON(w, http.StatusOK, map[string]interface{}{"has_space": false})
		return
	}

	partner, err := h.spaceService.OtherMember(ctx, *spaceID, userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to resolve partner")
		respondError(w, "Failed to resolve partner", http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"has_space": true,
		"space_id":  *spaceID,
	}
	if partner != nil {
		partner.Token = ""
		partner.PushToken = nil
		response["partner"] = partner
	}

	respondJSON(w, http.StatusOK, response)
}
