package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"spark-backend/internal/repository"
	"spark-backend/internal/services"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{Error: message})
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}

// statusForError maps service errors onto HTTP status codes
func statusForError(err error) int {
	switch {
	case errors.Is(err, services.ErrSpaceNotFound),
		errors.Is(err, repository.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrSpaceFull),
		errors.Is(err, services.ErrAlreadyMember),
		errors.Is(err, services.ErrAlreadyInSpace),
		errors.Is(err, services.ErrSessionFinished):
		return http.StatusConflict
	case errors.Is(err, services.ErrNotParticipant),
		errors.Is(err, services.ErrNotSpaceMember):
		return http.StatusForbidden
	case errors.Is(err, services.ErrNegativeStep):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
