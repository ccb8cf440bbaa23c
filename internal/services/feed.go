package services

import (
	"context"
	"errors"
	"fmt"

	"photogram-backend/internal/models"
	"photogram-backend/internal/repository"
	"photogram-backend/internal/store"

	"github.com/rs/zerolog/log"
)

// Detail is a photo with a freshly read copy of its owner
type Detail struct {
	Photo models.Photo `json:"photo"`
	Owner models.User  `json:"owner"`
}

// FeedService loads the feed and photo details
type FeedService struct {
	photoRepo *repository.PhotoRepository
	userRepo  *repository.UserRepository
}

// NewFeedService creates a new feed service
func NewFeedService(photoRepo *repository.PhotoRepository, userRepo *repository.UserRepository) *FeedService {
	return &FeedService{
		photoRepo: photoRepo,
		userRepo:  userRepo,
	}
}

// Refresh fetches the whole feed and replaces the store's copy. On failure the
// store keeps its previous feed.
func (s *FeedService) Refresh(ctx context.Context, st *store.Store) error {
	photos, err := s.photoRepo.ListFeed(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch feed")
		return err
	}
	st.SetFeed(photos)
	return nil
}

// OpenDetail returns a photo together with its owner. The owner is always read from
// the document store, never from the cached feed.
func (s *FeedService) OpenDetail(ctx context.Context, st store.Reader, photoID string) (*Detail, error) {
	photo, ok := cachedPhoto(st, photoID)
	if !ok {
		fetched, err := s.photoRepo.GetByID(ctx, photoID)
		if err != nil {
			return nil, err
		}
		photo = *fetched
	}

	owner, err := s.userRepo.GetByID(ctx, photo.UserID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			log.Error().Err(err).Str("photo_id", photoID).Str("user_id", photo.UserID).Msg("Failed to fetch photo owner")
		}
		return nil, fmt.Errorf("failed to open photo %s: %w", photoID, err)
	}

	return &Detail{Photo: photo, Owner: *owner}, nil
}

func cachedPhoto(st store.Reader, photoID string) (models.Photo, bool) {
	if st == nil {
		return models.Photo{}, false
	}
	for _, p := range st.Snapshot().Photos {
		if p.ID == photoID {
			return p, true
		}
	}
	return models.Photo{}, false
}
