package services

import (
	"context"
	"unicode/utf8"

	"photogram-backend/internal/models"
	"photogram-backend/internal/repository"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// MinSearchLength is the shortest term that triggers a search
const MinSearchLength = 2

// SearchService runs prefix searches over users and captions
type SearchService struct {
	userRepo  *repository.UserRepository
	photoRepo *repository.PhotoRepository
}

// NewSearchService creates a new search service
func NewSearchService(userRepo *repository.UserRepository, photoRepo *repository.PhotoRepository) *SearchService {
	return &SearchService{
		userRepo:  userRepo,
		photoRepo: photoRepo,
	}
}

// Search matches users by lowercased username prefix and photos by caption prefix.
// Terms shorter than MinSearchLength return empty results without querying.
func (s *SearchService) Search(ctx context.Context, term string) (models.SearchResults, error) {
	results := models.SearchResults{Users: []models.User{}, Photos: []models.Photo{}}
	if utf8.RuneCountInString(term) < MinSearchLength {
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		users, err := s.userRepo.SearchByUsername(gctx, term)
		if err != nil {
			return err
		}
		results.Users = users
		return nil
	})
	g.Go(func() error {
		photos, err := s.photoRepo.SearchByCaption(gctx, term)
		if err != nil {
			return err
		}
		results.Photos = photos
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Str("term", term).Msg("Search failed")
		return models.SearchResults{Users: []models.User{}, Photos: []models.Photo{}}, err
	}
	return results, nil
}
