package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"photogram-backend/internal/models"
)

// UserRepository handles document operations for users
type UserRepository struct {
	docs Documents
}

// NewUserRepository creates a new user repository
func NewUserRepository(docs Documents) *UserRepository {
	return &UserRepository{docs: docs}
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	doc, err := r.docs.Get(ctx, models.UsersCollection, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("user not found: %w", err)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	var user models.User
	if err := doc.Decode(&user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Create writes a user document keyed by the user's ID
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if err := r.docs.Set(ctx, models.UsersCollection, user.ID, user); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// SearchByUsername retrieves users whose username starts with the lowercased prefix
func (r *UserRepository) SearchByUsername(ctx context.Context, prefix string) ([]models.User, error) {
	docs, err := r.docs.Query(ctx, models.UsersCollection, Query{
		Filters: PrefixRange("username", strings.ToLower(prefix)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search users: %w", err)
	}
	return decodeUsers(docs)
}

// SetCounts overwrites the follower and following counters
func (r *UserRepository) SetCounts(ctx context.Context, userID string, followers, following int) error {
	err := r.docs.Update(ctx, models.UsersCollection, userID,
		SetField("followers", followers),
		SetField("following", following),
	)
	if err != nil {
		return fmt.Errorf("failed to set counts: %w", err)
	}
	return nil
}

func decodeUsers(docs []Document) ([]models.User, error) {
	users := make([]models.User, 0, len(docs))
	for _, doc := range docs {
		var user models.User
		if err := doc.Decode(&user); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}
