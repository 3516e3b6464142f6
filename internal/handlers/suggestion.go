package handlers

import (
	"encoding/json"
	"net/http"

	"spark-backend/internal/middleware"
	"spark-backend/internal/models"
	"spark-backend/internal/services"

	"github.com/rs/zerolog/log"
)

// SuggestionHandler handles daily-suggestion HTTP requests
type SuggestionHandler struct {
	suggestionService *services.SuggestionService
	spaceService      *services.SpaceService
}

// NewSuggestionHandler creates a new suggestion handler
func NewSuggestionHandler(suggestionService *services.SuggestionService, spaceService *services.SpaceService) *SuggestionHandler {
	return &SuggestionHandler{
		suggestionService: suggestionService,
		spaceService:      spaceService,
	}
}

// CreateSuggestionRequest represents the vibe survey submission. When
// activity_id is empty the matcher picks one from the catalog.
type CreateSuggestionRequest struct {
	ActivityID string          `json:"activity_id,omitempty"`
	Vibe       models.VibeData `json:"vibe"`
	SpaceID    string          `json:"space_id"`
}

// CreateSuggestion handles POST /api/v1/suggestions. The created suggestion
// is returned immediately; subscribers catch up over the feed.
func (h *SuggestionHandler) CreateSuggestion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req CreateSuggestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.SpaceID == "" {
		respondError(w, "space_id is required", http.StatusBadRequest)
		return
	}

	var response map[string]interface{}

	if req.ActivityID != "" {
		suggestion, err := h.suggestionService.CreateSuggestion(ctx, userID, req.ActivityID, req.Vibe, req.SpaceID)
		if err != nil {
			log.Error().Err(err).Str("user_id", userID).Msg("Failed to create suggestion")
			respondError(w, err.Error(), statusForError(err))
			return
		}
		response = map[string]interface{}{"suggestion": suggestion}
	} else {
		suggestion, entry, err := h.suggestionService.GenerateSuggestion(ctx, userID, req.Vibe, req.SpaceID)
		if err != nil {
			log.Error().Err(err).Str("user_id", userID).Msg("Failed to generate suggestion")
			respondError(w, err.Error(), statusForError(err))
			return
		}
		response = map[string]interface{}{
			"suggestion": suggestion,
			"activity":   entry.Activity,
			"basis":      entry.Basis,
		}
	}

	log.Info().
		Str("user_id", userID).
		Str("space_id", req.SpaceID).
		Msg("Suggestion created")

	respondJSON(w, http.StatusOK, response)
}

// GetCurrentSuggestion handles GET /api/v1/suggestions/current
func (h *SuggestionHandler) GetCurrentSuggestion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	spaceID, err := h.spaceService.SpaceIDForUser(ctx, userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to resolve space")
		respondError(w, "Failed to resolve space", http.StatusInternalServerError)
		return
	}
	if spaceID == nil {
		respondJSON(w, http.StatusOK, map[string]interface{}{"suggestion": nil})
		return
	}

	suggestion, err := h.suggestionService.CurrentSuggestion(ctx, *spaceID)
	if err != nil {
		log.Error().Err(err).Str("space_id", *spaceID).Msg("Failed to get current suggestion")
		respondError(w, "Failed to get suggestion", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"suggestion": suggestion})
}
