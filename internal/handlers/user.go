package handlers

import (
	"encoding/json"
	"net/http"

	"photogram-backend/internal/middleware"
	"photogram-backend/internal/services"
	"photogram-backend/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// UserHandler handles profile and follow requests
type UserHandler struct {
	hub            *services.ClientHub
	profileService *services.ProfileService
	uploadService  *services.UploadService
	reconciler     *services.FollowReconciler
}

// NewUserHandler creates a new user handler
func NewUserHandler(
	hub *services.ClientHub,
	profileService *services.ProfileService,
	uploadService *services.UploadService,
	reconciler *services.FollowReconciler,
) *UserHandler {
	return &UserHandler{
		hub:            hub,
		profileService: profileService,
		uploadService:  uploadService,
		reconciler:     reconciler,
	}
}

// GetProfile handles GET /api/v1/users/{user_id}
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "user_id")

	profile, err := h.profileService.GetProfile(ctx, userID, middleware.GetUserID(ctx))
	if err != nil {
		respondError(w, userMessage(err, "Failed to load profile"), statusFor(err))
		return
	}

	respondJSON(w, http.StatusOK, profile)
}

// sessionStore loads the caller's store or writes an error response
func (h *UserHandler) sessionStore(w http.ResponseWriter, r *http.Request) (*store.Store, bool) {
	userID := middleware.GetUserID(r.Context())
	st, err := h.hub.StoreFor(r.Context(), userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to load session store")
		respondError(w, userMessage(err, "Failed to load session"), statusFor(err))
		return nil, false
	}
	return st, true
}

// UpdateProfile handles PUT /api/v1/users/me
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req store.ProfileUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	st, ok := h.sessionStore(w, r)
	if !ok {
		return
	}
	if err := st.UpdateProfile(r.Context(), req); err != nil {
		respondError(w, err.Error(), statusFor(err))
		return
	}
	h.hub.PushState(middleware.GetUserID(r.Context()))

	respondJSON(w, http.StatusOK, st.CurrentUser())
}

// UploadAvatar handles POST /api/v1/users/me/avatar
func (h *UserHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		respondError(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, "file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	st, ok := h.sessionStore(w, r)
	if !ok {
		return
	}

	url, err := h.uploadService.UploadAvatar(r.Context(), st, services.UploadRequest{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		respondError(w, userMessage(err, "Failed to upload avatar"), statusFor(err))
		return
	}
	h.hub.PushState(middleware.GetUserID(r.Context()))

	respondJSON(w, http.StatusOK, map[string]string{"avatar": url})
}

// PushTokenRequest carries an APNs device token
type PushTokenRequest struct {
	Token string `json:"token"`
}

// UpdatePushToken handles PUT /api/v1/users/me/push-token
func (h *UserHandler) UpdatePushToken(w http.ResponseWriter, r *http.Request) {
	var req PushTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		respondError(w, "token is required", http.StatusBadRequest)
		return
	}

	st, ok := h.sessionStore(w, r)
	if !ok {
		return
	}
	if !st.UpdatePushToken(r.Context(), req.Token) {
		respondError(w, "Failed to update push token", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ToggleFollow handles POST /api/v1/users/{user_id}/follow
func (h *UserHandler) ToggleFollow(w http.ResponseWriter, r *http.Request) {
	targetID := chi.URLParam(r, "user_id")
	currentID := middleware.GetUserID(r.Context())
	if targetID == currentID {
		respondError(w, "You cannot follow yourself", http.StatusBadRequest)
		return
	}

	st, ok := h.sessionStore(w, r)
	if !ok {
		return
	}
	following := st.ToggleFollow(r.Context(), targetID)
	h.hub.PushState(currentID)

	respondJSON(w, http.StatusOK, map[string]bool{"following": following})
}

// Reconcile handles POST /api/v1/users/{user_id}/reconcile
func (h *UserHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")

	changed, err := h.reconciler.Reconcile(r.Context(), userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to reconcile follow counters")
		respondError(w, userMessage(err, "Failed to reconcile"), statusFor(err))
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"changed": changed})
}
