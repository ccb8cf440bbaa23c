package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"photogram-backend/internal/media"
	"photogram-backend/internal/models"
	"photogram-backend/internal/storage"
	"photogram-backend/internal/store"

	"github.com/rs/zerolog/log"
)

// ErrNotImage rejects avatar uploads that are not images
var ErrNotImage = &media.ValidationError{Message: "Please choose an image file."}

// UploadRequest is a media file selected for upload
type UploadRequest struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.ReadSeeker
	Caption     string
	Filter      string
}

// UploadService moves media into the object store and publishes it
type UploadService struct {
	objects storage.ObjectStore
	decoder media.FrameDecoder
	now     func() time.Time
}

// NewUploadService creates a new upload service
func NewUploadService(objects storage.ObjectStore, decoder media.FrameDecoder) *UploadService {
	return &UploadService{
		objects: objects,
		decoder: decoder,
		now:     time.Now,
	}
}

// Upload validates, processes and stores a photo or video, then publishes it through
// the store. Progress updates are sent to progress, which may be nil.
func (s *UploadService) Upload(ctx context.Context, st *store.Store, req UploadRequest, progress storage.ProgressFunc) (models.Photo, error) {
	user := st.CurrentUser()
	if user == nil {
		return models.Photo{}, store.ErrNotSignedIn
	}

	isVideo := media.IsVideo(req.ContentType)
	if isVideo {
		if err := media.ValidateVideo(req.ContentType, req.Size); err != nil {
			return models.Photo{}, err
		}
	}

	notify(progress, models.UploadProgress{Progress: 0, Status: models.UploadUploading})

	item := models.Media{Type: models.MediaImage, Size: &req.Size}
	filter := req.Filter
	if isVideo {
		item.Type = models.MediaVideo
		filter = ""
		notify(progress, models.UploadProgress{Progress: 0, Status: models.UploadProcessing})
		s.processVideo(ctx, user.ID, req.Body, &item)
	}

	key := storage.ObjectPath(item.Type, user.ID, req.Filename, s.now())
	url, err := s.objects.Upload(ctx, key, req.Body, req.Size, req.ContentType, progress)
	if err != nil {
		log.Error().Err(err).Str("user_id", user.ID).Str("key", key).Msg("Failed to upload media")
		return models.Photo{}, err
	}
	item.URL = url

	photo, err := st.PublishPhoto(ctx, models.Photo{
		Media:    item,
		Caption:  req.Caption,
		Likes:    0,
		Comments: []models.Comment{},
		Filter:   filter,
	})
	if err != nil {
		notify(progress, models.UploadProgress{Status: models.UploadError, Error: err.Error()})
		return models.Photo{}, err
	}

	notify(progress, models.UploadProgress{Progress: 100, Status: models.UploadComplete})

	log.Info().
		Str("user_id", user.ID).
		Str("photo_id", photo.ID).
		Str("type", string(item.Type)).
		Str("size", media.FormatFileSize(req.Size)).
		Msg("Media uploaded")

	return photo, nil
}

// processVideo fills the thumbnail and duration. Failures leave the fields empty.
func (s *UploadService) processVideo(ctx context.Context, userID string, body io.ReadSeeker, item *models.Media) {
	thumbnail, err := media.GenerateVideoThumbnail(ctx, s.decoder, body)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("Failed to generate video thumbnail")
	} else {
		item.ThumbnailURL = thumbnail
	}

	if err := rewind(body); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("Failed to rewind video")
		return
	}

	duration, err := media.VideoDuration(ctx, s.decoder, body)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("Failed to read video duration")
	} else if duration > 0 {
		item.Duration = &duration
	}

	if err := rewind(body); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("Failed to rewind video")
	}
}

// UploadAvatar stores an avatar image and points the current user at it
func (s *UploadService) UploadAvatar(ctx context.Context, st *store.Store, req UploadRequest) (string, error) {
	user := st.CurrentUser()
	if user == nil {
		return "", store.ErrNotSignedIn
	}
	if !strings.HasPrefix(req.ContentType, "image/") {
		return "", ErrNotImage
	}

	key := storage.AvatarPath(user.ID, req.Filename, s.now())
	url, err := s.objects.Upload(ctx, key, req.Body, req.Size, req.ContentType, nil)
	if err != nil {
		log.Error().Err(err).Str("user_id", user.ID).Msg("Failed to upload avatar")
		return "", err
	}

	if !st.UpdateAvatar(ctx, url) {
		return "", errors.New("failed to update avatar")
	}
	return url, nil
}

func rewind(r io.Seeker) error {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek: %w", err)
	}
	return nil
}

func notify(progress storage.ProgressFunc, update models.UploadProgress) {
	if progress != nil {
		progress(update)
	}
}
