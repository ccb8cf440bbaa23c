package repository

import (
	"context"
	"errors"
	"fmt"

	"photogram-backend/internal/models"
)

// PhotoRepository handles document operations for photos
type PhotoRepository struct {
	docs Documents
}

// NewPhotoRepository creates a new photo repository
func NewPhotoRepository(docs Documents) *PhotoRepository {
	return &PhotoRepository{docs: docs}
}

// GetByID retrieves a photo by ID
func (r *PhotoRepository) GetByID(ctx context.Context, id string) (*models.Photo, error) {
	doc, err := r.docs.Get(ctx, models.PhotosCollection, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("photo not found: %w", err)
		}
		return nil, fmt.Errorf("failed to get photo: %w", err)
	}

	var photo models.Photo
	if err := doc.Decode(&photo); err != nil {
		return nil, err
	}
	return &photo, nil
}

// ListFeed retrieves every photo, newest first
func (r *PhotoRepository) ListFeed(ctx context.Context) ([]models.Photo, error) {
	docs, err := r.docs.Query(ctx, models.PhotosCollection, Query{
		OrderBy:    "createdAt",
		Descending: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list feed: %w", err)
	}
	return decodePhotos(docs)
}

// ListByUser retrieves the photos owned by a user
func (r *PhotoRepository) ListByUser(ctx context.Context, userID string) ([]models.Photo, error) {
	docs, err := r.docs.Query(ctx, models.PhotosCollection, Query{
		Filters: []Filter{Equal("userId", userID)},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list photos by user: %w", err)
	}
	return decodePhotos(docs)
}

// SearchByCaption retrieves photos whose caption starts with prefix
func (r *PhotoRepository) SearchByCaption(ctx context.Context, prefix string) ([]models.Photo, error) {
	docs, err := r.docs.Query(ctx, models.PhotosCollection, Query{
		Filters: PrefixRange("caption", prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search photos: %w", err)
	}
	return decodePhotos(docs)
}

func decodePhotos(docs []Document) ([]models.Photo, error) {
	photos := make([]models.Photo, 0, len(docs))
	for _, doc := range docs {
		var photo models.Photo
		if err := doc.Decode(&photo); err != nil {
			return nil, err
		}
		if photo.Comments == nil {
			photo.Comments = []models.Comment{}
		}
		photos = append(photos, photo)
	}
	return photos, nil
}
