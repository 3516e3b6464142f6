package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"spark-backend/internal/middleware"
	"spark-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// SessionHandler handles date-session HTTP requests
type SessionHandler struct {
	sessionService *services.SessionService
	spaceService   *services.SpaceService
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessionService *services.SessionService, spaceService *services.SpaceService) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
		spaceService:   spaceService,
	}
}

// StartSessionRequest represents the request body for starting a session
type StartSessionRequest struct {
	TemplateID string `json:"template_id"`
	SpaceID    string `json:"space_id"`
}

// StartSession handles POST /api/v1/sessions. Starting an activity that
// already has a live session returns the existing session id.
func (h *SessionHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req StartSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.TemplateID == "" || req.SpaceID == "" {
		respondError(w, "template_id and space_id are required", http.StatusBadRequest)
		return
	}

	sessionID, err := h.sessionService.StartSession(ctx, userID, req.TemplateID, req.SpaceID)
	if err != nil {
		log.Error().
			Err(err).
			Str("user_id", userID).
			Str("template_id", req.TemplateID).
			Msg("Failed to start session")
		respondError(w, err.Error(), statusForError(err))
		return
	}

	log.Info().
		Str("user_id", userID).
		Str("session_id", sessionID).
		Str("template_id", req.TemplateID).
		Msg("Session started")

	respondJSON(w, http.StatusOK, map[string]string{"session_id": sessionID})
}

// AcceptSession handles POST /api/v1/sessions/{session_id}/accept
func (h *SessionHandler) AcceptSession(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "accept", h.sessionService.AcceptSession)
}

// CancelSession handles POST /api/v1/sessions/{session_id}/cancel
func (h *SessionHandler) CancelSession(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "cancel", h.sessionService.CancelSession)
}

func (h *SessionHandler) transition(
	w http.ResponseWriter,
	r *http.Request,
	action string,
	fn func(ctx context.Context, userID, sessionID string) error,
) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	sessionID := chi.URLParam(r, "session_id")

	if sessionID == "" {
		respondError(w, "session_id is required", http.StatusBadRequest)
		return
	}

	if err := fn(ctx, userID, sessionID); err != nil {
		log.Error().
			Err(err).
			Str("user_id", userID).
			Str("session_id", sessionID).
			Str("action", action).
			Msg("Session transition failed")
		respondError(w, err.Error(), statusForError(err))
		return
	}

	log.Info().
		Str("user_id", userID).
		Str("session_id", sessionID).
		Str("action", action).
		Msg("Session transitioned")

	w.WriteHeader(http.StatusNoContent)
}

// AdvanceStepRequest represents the request body for advancing a step
type AdvanceStepRequest struct {
	Step int `json:"step"`
}

// AdvanceStep handles POST /api/v1/sessions/{session_id}/step
func (h *SessionHandler) AdvanceStep(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	sessionID := chi.URLParam(r, "session_id")

	var req AdvanceStepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.sessionService.AdvanceStep(ctx, userID, sessionID, req.Step); err != nil {
		log.Error().
			Err(err).
			Str("user_id", userID).
			Str("session_id", sessionID).
			Int("step", req.Step).
			Msg("Failed to advance step")
		respondError(w, err.Error(), statusForError(err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// CompleteSession handles POST /api/v1/sessions/{session_id}/complete
func (h *SessionHandler) CompleteSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	sessionID := chi.URLParam(r, "session_id")

	score, err := h.sessionService.CompleteSession(ctx, userID, sessionID)
	if err != nil {
		log.Error().
			Err(err).
			Str("user_id", userID).
			Str("session_id", sessionID).
			Msg("Failed to complete session")
		respondError(w, err.Error(), statusForError(err))
		return
	}

	log.Info().
		Str("user_id", userID).
		Str("session_id", sessionID).
		Int("spark_score", score).
		Msg("Session completed")

	respondJSON(w, http.StatusOK, map[string]int{"spark_score": score})
}

// CompleteSoloRequest represents the request body for a solo completion
type CompleteSoloRequest struct {
	TemplateID string `json:"template_id"`
	SpaceID    string `json:"space_id"`
}

// CompleteSolo handles POST /api/v1/sessions/solo
func (h *SessionHandler) CompleteSolo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req CompleteSoloRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.TemplateID == "" || req.SpaceID == "" {
		respondError(w, "template_id and space_id are required", http.StatusBadRequest)
		return
	}

	sessionID, score, err := h.sessionService.CompleteSolo(ctx, userID, req.TemplateID, req.SpaceID)
	if err != nil {
		log.Error().
			Err(err).
			Str("user_id", userID).
			Str("template_id", req.TemplateID).
			Msg("Failed to record solo session")
		respondError(w, err.Error(), statusForError(err))
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"session_id":  sessionID,
		"spark_score": score,
	})
}

// ListLive handles GET /api/v1/sessions/live
func (h *SessionHandler) ListLive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	spaceID, err := h.spaceService.SpaceIDForUser(ctx, userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to resolve space")
		respondError(w, "Failed to resolve space", http.StatusInternalServerError)
		return
	}
	if spaceID == nil {
		respondJSON(w, http.StatusOK, map[string]interface{}{"sessions": []interface{}{}})
		return
	}

	sessions, err := h.sessionService.ListLive(ctx, *spaceID)
	if err != nil {
		log.Error().Err(err).Str("space_id", *spaceID).Msg("Failed to list live sessions")
		respondError(w, "Failed to list sessions", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"sessions": sessions})
}

// SubmitAnswerRequest represents the request body for submitting an answer
type SubmitAnswerRequest struct {
	Step       int    `json:"step"`
	AnswerText string `json:"answer_text"`
}

// SubmitAnswer handles POST /api/v1/sessions/{session_id}/answers
func (h *SessionHandler) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	sessionID := chi.URLParam(r, "session_id")

	var req SubmitAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.AnswerText == "" {
		respondError(w, "answer_text is required", http.StatusBadRequest)
		return
	}

	if err := h.sessionService.SubmitAnswer(ctx, userID, sessionID, req.Step, req.AnswerText); err != nil {
		log.Error().
			Err(err).
			Str("user_id", userID).
			Str("session_id", sessionID).
			Int("step", req.Step).
			Msg("Failed to submit answer")
		respondError(w, err.Error(), statusForError(err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetAnswers handles GET /api/v1/sessions/{session_id}/answers.
// An optional ?step= query narrows the result to one step.
func (h *SessionHandler) GetAnswers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	sessionID := chi.URLParam(r, "session_id")

	var answers interface{}
	var err error

	if stepStr := r.URL.Query().Get("step"); stepStr != "" {
		step, convErr := strconv.Atoi(stepStr)
		if convErr != nil {
			respondError(w, "invalid step", http.StatusBadRequest)
			return
		}
		answers, err = h.sessionService.StepAnswers(ctx, userID, sessionID, step)
	} else {
		answers, err = h.sessionService.SessionAnswers(ctx, userID, sessionID)
	}

	if err != nil {
		log.Error().
			Err(err).
			Str("user_id", userID).
			Str("session_id", sessionID).
			Msg("Failed to get answers")
		respondError(w, err.Error(), statusForError(err))
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"answers": answers})
}
