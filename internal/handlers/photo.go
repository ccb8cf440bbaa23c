package handlers

import (
	"context"
	"net/http"

	"photogram-backend/internal/media"
	"photogram-backend/internal/middleware"
	"photogram-backend/internal/models"
	"photogram-backend/internal/services"
	"photogram-backend/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

const multipartMemory = 32 << 20

// maxUploadBody bounds the request body of media uploads
const maxUploadBody = media.MaxVideoSize + 1<<20

// PhotoHandler handles feed, detail, search and upload requests
type PhotoHandler struct {
	hub           *services.ClientHub
	feedService   *services.FeedService
	searchService *services.SearchService
	uploadService *services.UploadService
}

// NewPhotoHandler creates a new photo handler
func NewPhotoHandler(
	hub *services.ClientHub,
	feedService *services.FeedService,
	searchService *services.SearchService,
	uploadService *services.UploadService,
) *PhotoHandler {
	return &PhotoHandler{
		hub:           hub,
		feedService:   feedService,
		searchService: searchService,
		uploadService: uploadService,
	}
}

// viewStore returns the caller's store, or an anonymous one for signed-out callers
func viewStore(ctx context.Context, hub *services.ClientHub) *store.Store {
	if userID := middleware.GetUserID(ctx); userID != "" {
		st, err := hub.StoreFor(ctx, userID)
		if err == nil {
			return st
		}
		log.Warn().Err(err).Str("user_id", userID).Msg("Failed to load session store")
	}
	return hub.NewStore()
}

// GetFeed handles GET /api/v1/photos
func (h *PhotoHandler) GetFeed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	st := viewStore(ctx, h.hub)

	if err := h.feedService.Refresh(ctx, st); err != nil {
		respondError(w, "Failed to fetch feed", http.StatusInternalServerError)
		return
	}
	if userID := middleware.GetUserID(ctx); userID != "" {
		h.hub.PushState(userID)
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"photos": st.Snapshot().Photos,
	})
}

// GetPhoto handles GET /api/v1/photos/{photo_id}
func (h *PhotoHandler) GetPhoto(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	photoID := chi.URLParam(r, "photo_id")

	detail, err := h.feedService.OpenDetail(ctx, viewStore(ctx, h.hub), photoID)
	if err != nil {
		respondError(w, userMessage(err, "Failed to open photo"), statusFor(err))
		return
	}

	respondJSON(w, http.StatusOK, detail)
}

// Search handles GET /api/v1/search
func (h *PhotoHandler) Search(w http.ResponseWriter, r *http.Request) {
	results, err := h.searchService.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		respondError(w, "Search failed", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, results)
}

// UploadPhoto handles POST /api/v1/photos/upload
func (h *PhotoHandler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

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

	st, err := h.hub.StoreFor(ctx, userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to load session store")
		respondError(w, userMessage(err, "Failed to upload media"), statusFor(err))
		return
	}

	req := services.UploadRequest{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
		Caption:     r.FormValue("caption"),
		Filter:      r.FormValue("filter"),
	}

	progress := func(p models.UploadProgress) {
		h.hub.SendToUser(userID, services.WSMessage{Type: "upload_progress", Data: p})
	}

	photo, err := h.uploadService.Upload(ctx, st, req, progress)
	if err != nil {
		respondError(w, userMessage(err, "Failed to upload media"), statusFor(err))
		return
	}
	h.hub.PushState(userID)

	respondJSON(w, http.StatusCreated, photo)
}
