package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"photogram-backend/internal/media"
	"photogram-backend/internal/repository"
	"photogram-backend/internal/session"
	"photogram-backend/internal/store"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// statusFor maps an error to the status code a client should see
func statusFor(err error) int {
	var validation *media.ValidationError
	switch {
	case errors.As(err, &validation), errors.Is(err, store.ErrEmptyUsername):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrInvalidToken), errors.Is(err, store.ErrNotSignedIn):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// userMessage returns the text for an error response. Internal errors are not exposed.
func userMessage(err error, fallback string) string {
	if statusFor(err) == http.StatusInternalServerError {
		return fallback
	}
	return err.Error()
}
