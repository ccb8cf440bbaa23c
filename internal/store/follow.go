package store

import (
	"context"

	"photogram-backend/internal/models"
	"photogram-backend/internal/repository"
)

// ToggleFollow follows or unfollows target and returns whether the current
// user follows target afterwards.
//
// The edge lives on two documents that are updated independently: the
// current user's following side first, then the target's follower side. If
// the second write fails the documents disagree until FollowReconciler runs.
//
// The result tracks the current user's document: it is the new state once the
// following side is written, even if the follower side then fails, and the old
// state when the following side itself fails.
func (s *Store) ToggleFollow(ctx context.Context, targetID string) bool {
	user := s.CurrentUser()
	if user == nil || targetID == "" || targetID == user.ID {
		return false
	}

	doc, err := s.docs.Get(ctx, models.UsersCollection, targetID)
	if err != nil {
		s.logger.Error().Err(err).Str("op", "toggle_follow").Str("target_id", targetID).Msg("Failed to fetch follow target")
		return containsString(user.FollowingList, targetID)
	}
	var target models.User
	if err := doc.Decode(&target); err != nil {
		s.logger.Error().Err(err).Str("op", "toggle_follow").Str("target_id", targetID).Msg("Failed to decode follow target")
		return containsString(user.FollowingList, targetID)
	}

	following := target.IsFollowedBy(user.ID)
	delta := int64(1)
	edge := repository.ArrayUnion
	if following {
		delta = -1
		edge = repository.ArrayRemove
	}

	applied := s.performWrite(ctx, "toggle_follow",
		map[string]any{"user_id": user.ID, "target_id": targetID},
		func(ctx context.Context) error {
			return s.docs.Update(ctx, models.UsersCollection, user.ID,
				repository.Increment("following", delta),
				edge("followingList", targetID),
			)
		},
		func(st State) State {
			st.User = updateUser(st.User, user.ID, func(u *models.User) {
				u.Following += int(delta)
				if following {
					u.FollowingList = removeString(u.FollowingList, targetID)
				} else {
					u.FollowingList = appendUnique(u.FollowingList, targetID)
				}
			})
			return st
		},
	)
	if !applied {
		return following
	}

	err = s.docs.Update(ctx, models.UsersCollection, targetID,
		repository.Increment("followers", delta),
		edge("followersList", user.ID),
	)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("op", "toggle_follow").
			Str("user_id", user.ID).
			Str("target_id", targetID).
			Bool("inconsistent", true).
			Msg("Follower side of follow edge failed after following side was written")
	}

	return !following
}

func containsString(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
