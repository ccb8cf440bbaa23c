package handlers

import (
	"encoding/json"
	"net/http"

	"photogram-backend/internal/models"
	"photogram-backend/internal/session"

	"github.com/rs/zerolog/log"
)

// SessionHandler handles sign-in requests
type SessionHandler struct {
	provider *session.Provider
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(provider *session.Provider) *SessionHandler {
	return &SessionHandler{provider: provider}
}

// SignInRequest carries the identity token from the sign-in provider
type SignInRequest struct {
	IdentityToken string `json:"identity_token"`
}

// SignInResponse is the signed-in user and their session token
type SignInResponse struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

// SignIn handles POST /api/v1/sessions
func (h *SessionHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req SignInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.IdentityToken == "" {
		respondError(w, "identity_token is required", http.StatusBadRequest)
		return
	}

	user, token, err := session.New(h.provider).SignIn(r.Context(), req.IdentityToken)
	if err != nil {
		log.Error().Err(err).Msg("Failed to sign in")
		respondError(w, userMessage(err, "Failed to sign in"), statusFor(err))
		return
	}

	log.Info().Str("user_id", user.ID).Msg("User signed in")

	respondJSON(w, http.StatusOK, SignInResponse{User: user, Token: token})
}
