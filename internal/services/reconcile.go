package services

import (
	"context"

	"photogram-backend/internal/repository"

	"github.com/rs/zerolog/log"
)

// FollowReconciler repairs follower counters left behind by a half-applied follow
type FollowReconciler struct {
	userRepo *repository.UserRepository
}

// NewFollowReconciler creates a new reconciler
func NewFollowReconciler(userRepo *repository.UserRepository) *FollowReconciler {
	return &FollowReconciler{userRepo: userRepo}
}

// Reconcile sets followers and following to the lengths of the membership lists.
// It reports whether the counters were rewritten.
func (r *FollowReconciler) Reconcile(ctx context.Context, userID string) (bool, error) {
	user, err := r.userRepo.GetByID(ctx, userID)
	if err != nil {
		return false, err
	}

	followers := len(user.FollowersList)
	following := len(user.FollowingList)
	if user.Followers == followers && user.Following == following {
		return false, nil
	}

	if err := r.userRepo.SetCounts(ctx, userID, followers, following); err != nil {
		return false, err
	}

	log.Info().
		Str("user_id", userID).
		Int("followers_was", user.Followers).
		Int("followers", followers).
		Int("following_was", user.Following).
		Int("following", following).
		Msg("Follow counters reconciled")

	return true, nil
}
