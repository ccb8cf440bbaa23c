package services

import (
	"context"

	"photogram-backend/internal/models"
	"photogram-backend/internal/repository"

	"github.com/rs/zerolog/log"
)

// Profile is a user with their posts
type Profile struct {
	User        models.User    `json:"user"`
	Photos      []models.Photo `json:"photos"`
	IsFollowing bool           `json:"is_following"`
}

// ProfileService loads user profiles
type ProfileService struct {
	userRepo  *repository.UserRepository
	photoRepo *repository.PhotoRepository
}

// NewProfileService creates a new profile service
func NewProfileService(userRepo *repository.UserRepository, photoRepo *repository.PhotoRepository) *ProfileService {
	return &ProfileService{
		userRepo:  userRepo,
		photoRepo: photoRepo,
	}
}

// GetProfile reads a user and their photos. viewerID may be empty for signed-out viewers.
func (s *ProfileService) GetProfile(ctx context.Context, userID, viewerID string) (*Profile, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	photos, err := s.photoRepo.ListByUser(ctx, userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to fetch user photos")
		return nil, err
	}

	return &Profile{
		User:        *user,
		Photos:      photos,
		IsFollowing: viewerID != "" && user.IsFollowedBy(viewerID),
	}, nil
}
