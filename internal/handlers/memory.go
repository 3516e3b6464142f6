package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"spark-backend/internal/middleware"
	"spark-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// MemoryHandler handles memory-feed HTTP requests
type MemoryHandler struct {
	memoryService *services.MemoryService
}

// NewMemoryHandler creates a new memory handler
func NewMemoryHandler(memoryService *services.MemoryService) *MemoryHandler {
	return &MemoryHandler{
		memoryService: memoryService,
	}
}

// ListMemories handles GET /api/v1/memories
func (h *MemoryHandler) ListMemories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	limit := 50
	offset := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil {
			limit = parsed
		}
	}
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if parsed, err := strconv.Atoi(offsetStr); err == nil {
			offset = parsed
		}
	}

	memories, total, err := h.memoryService.ListMemories(ctx, userID, limit, offset)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to list memories")
		respondError(w, err.Error(), statusForError(err))
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"memories": memories,
		"total":    total,
	})
}

// UploadMemoryRequest represents the request body for a photo memory upload
type UploadMemoryRequest struct {
	Caption     string `json:"caption"`
	ContentType string `json:"content_type"`
}

// UploadMemory handles POST /api/v1/memories/upload
func (h *MemoryHandler) UploadMemory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req UploadMemoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.ContentType == "" {
		req.ContentType = "image/jpeg"
	}

	response, err := h.memoryService.CreatePhotoMemory(ctx, userID, req.Caption, req.ContentType)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to generate pre-signed URL")
		respondError(w, err.Error(), statusForError(err))
		return
	}

	log.Info().
		Str("user_id", userID).
		Str("memory_id", response.MemoryID).
		Msg("Pre-signed URL generated")

	respondJSON(w, http.StatusOK, response)
}

// ConfirmUploadRequest represents the request body for confirming an upload
type ConfirmUploadRequest struct {
	S3URL string `json:"s3_url"`
}

// ConfirmUpload handles POST /api/v1/memories/{memory_id}/confirm
func (h *MemoryHandler) ConfirmUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	memoryID := chi.URLParam(r, "memory_id")

	var req ConfirmUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.S3URL == "" {
		respondError(w, "s3_url is required", http.StatusBadRequest)
		return
	}

	if err := h.memoryService.ConfirmUpload(ctx, memoryID, req.S3URL); err != nil {
		log.Error().
			Err(err).
			Str("user_id", userID).
			Str("memory_id", memoryID).
			Msg("Failed to confirm upload")
		respondError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
