// Package store holds the application state of one client session and is the
// only component that mutates it or writes to the document store.
//
// Every mutating operation writes remotely first and touches the local state
// only after the remote call returned without error. State values are replaced
// whole, so a Snapshot never observes a half-applied operation.
package store

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"photogram-backend/internal/models"
	"photogram-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrEmptyUsername is returned when a profile update has a blank username
var ErrEmptyUsername = errors.New("username is required")

// ErrNotSignedIn is returned by operations that need a session
var ErrNotSignedIn = errors.New("not signed in")

// State is an immutable snapshot of the session
type State struct {
	User     *models.User   `json:"user"`
	Photos   []models.Photo `json:"photos"`
	DarkMode bool           `json:"dark_mode"`
}

// Reader is the read-only view handed to views
type Reader interface {
	Snapshot() State
}

// Hooks are called after a mutation has been applied locally
type Hooks struct {
	OnPhotoLiked   func(ctx context.Context, photo models.Photo, by models.User)
	OnCommentAdded func(ctx context.Context, photo models.Photo, comment models.Comment)
}

// Store owns the state of one client session
type Store struct {
	mu    sync.Mutex
	state State

	docs      repository.Documents
	logger    zerolog.Logger
	now       func() time.Time
	commentID func() string
	hooks     Hooks
}

// Option configures a Store
type Option func(*Store)

// WithLogger sets the logger used for failed writes
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithClock sets the clock used for comment timestamps
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithCommentIDs sets the comment id generator
func WithCommentIDs(next func() string) Option {
	return func(s *Store) { s.commentID = next }
}

// WithHooks sets the post-apply hooks
func WithHooks(hooks Hooks) Option {
	return func(s *Store) { s.hooks = hooks }
}

// New creates a store with no session and an empty feed
func New(docs repository.Documents, opts ...Option) *Store {
	s := &Store{
		state:     State{Photos: []models.Photo{}},
		docs:      docs,
		logger:    log.Logger,
		now:       time.Now,
		commentID: timeOrderedID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns a copy of the current state
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		User:     cloneUser(s.state.User),
		Photos:   clonePhotos(s.state.Photos),
		DarkMode: s.state.DarkMode,
	}
}

// CurrentUser returns a copy of the signed-in user, or nil
func (s *Store) CurrentUser() *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneUser(s.state.User)
}

// SetSession replaces the current user. Nil signs the session out.
func (s *Store) SetSession(user *models.User) {
	s.apply(func(st State) State {
		st.User = cloneUser(user)
		return st
	})
}

// SetFeed replaces the whole feed
func (s *Store) SetFeed(photos []models.Photo) {
	s.apply(func(st State) State {
		st.Photos = clonePhotos(photos)
		return st
	})
}

// AddPhoto prepends a photo that is already stored remotely
func (s *Store) AddPhoto(photo models.Photo) {
	s.apply(func(st State) State {
		return prependPhoto(st, photo)
	})
}

func prependPhoto(st State, photo models.Photo) State {
	photos := make([]models.Photo, 0, len(st.Photos)+1)
	photos = append(photos, clonePhoto(photo))
	st.Photos = append(photos, st.Photos...)
	return st
}

// ToggleDarkMode flips the dark mode flag
func (s *Store) ToggleDarkMode() {
	s.apply(func(st State) State {
		st.DarkMode = !st.DarkMode
		return st
	})
}

// LikePhoto increments the like counter of a photo. Repeated likes by the
// same user each count, the likedBy set is recorded but not consulted.
func (s *Store) LikePhoto(ctx context.Context, photoID string) {
	user := s.CurrentUser()
	if user == nil {
		return
	}

	applied := s.performWrite(ctx, "like_photo",
		map[string]any{"photo_id": photoID, "user_id": user.ID},
		func(ctx context.Context) error {
			return s.docs.Update(ctx, models.PhotosCollection, photoID,
				repository.Increment("likes", 1),
				repository.ArrayUnion("likedBy", user.ID),
			)
		},
		func(st State) State {
			st.Photos = replacePhoto(st.Photos, photoID, func(p models.Photo) models.Photo {
				p.Likes++
				p.LikedBy = appendUnique(p.LikedBy, user.ID)
				return p
			})
			return st
		},
	)

	if applied && s.hooks.OnPhotoLiked != nil {
		if photo, ok := s.photo(photoID); ok {
			s.hooks.OnPhotoLiked(ctx, photo, *user)
		}
	}
}

// AddComment appends a comment authored by the current user. Blank content is ignored.
func (s *Store) AddComment(ctx context.Context, photoID, content string) {
	user := s.CurrentUser()
	content = strings.TrimSpace(content)
	if user == nil || content == "" {
		return
	}

	comment := models.Comment{
		ID:        s.commentID(),
		UserID:    user.ID,
		Username:  user.Username,
		Avatar:    user.Avatar,
		Content:   content,
		CreatedAt: models.NewTimestamp(s.now()),
	}

	applied := s.performWrite(ctx, "add_comment",
		map[string]any{"photo_id": photoID, "user_id": user.ID, "comment_id": comment.ID},
		func(ctx context.Context) error {
			return s.docs.Update(ctx, models.PhotosCollection, photoID,
				repository.ArrayUnion("comments", comment),
			)
		},
		func(st State) State {
			st.Photos = replacePhoto(st.Photos, photoID, func(p models.Photo) models.Photo {
				comments := make([]models.Comment, 0, len(p.Comments)+1)
				p.Comments = append(append(comments, p.Comments...), comment)
				return p
			})
			return st
		},
	)

	if applied && s.hooks.OnCommentAdded != nil {
		if photo, ok := s.photo(photoID); ok {
			s.hooks.OnCommentAdded(ctx, photo, comment)
		}
	}
}

// PublishPhoto creates the photo document and, once stored, prepends it to the feed.
// The error is returned so an upload view can show it; it is logged either way.
func (s *Store) PublishPhoto(ctx context.Context, draft models.Photo) (models.Photo, error) {
	user := s.CurrentUser()
	if user == nil {
		return models.Photo{}, ErrNotSignedIn
	}

	draft.ID = ""
	draft.UserID = user.ID
	if draft.Comments == nil {
		draft.Comments = []models.Comment{}
	}
	if draft.CreatedAt.IsZero() {
		draft.CreatedAt = models.NewTimestamp(s.now())
	}

	var createErr error
	s.performWrite(ctx, "publish_photo",
		map[string]any{"user_id": user.ID},
		func(ctx context.Context) error {
			id, err := s.docs.Create(ctx, models.PhotosCollection, draft)
			if err != nil {
				createErr = err
				return err
			}
			draft.ID = id
			return nil
		},
		func(st State) State {
			return prependPhoto(st, draft)
		},
	)
	if createErr != nil {
		return models.Photo{}, createErr
	}
	return draft, nil
}

// ProfileUpdate carries editable profile fields
type ProfileUpdate struct {
	Username string        `json:"username"`
	Bio      string        `json:"bio"`
	Website  string        `json:"website"`
	Social   models.Social `json:"social"`
}

// UpdateProfile writes the trimmed profile fields of the current user.
// Only validation failures are returned.
func (s *Store) UpdateProfile(ctx context.Context, update ProfileUpdate) error {
	user := s.CurrentUser()
	if user == nil {
		return nil
	}

	username := strings.TrimSpace(update.Username)
	if username == "" {
		return ErrEmptyUsername
	}
	social := models.Social{
		Instagram: strings.TrimSpace(update.Social.Instagram),
		Twitter:   strings.TrimSpace(update.Social.Twitter),
		Facebook:  strings.TrimSpace(update.Social.Facebook),
	}
	bio := strings.TrimSpace(update.Bio)
	website := strings.TrimSpace(update.Website)

	s.performWrite(ctx, "update_profile",
		map[string]any{"user_id": user.ID},
		func(ctx context.Context) error {
			return s.docs.Update(ctx, models.UsersCollection, user.ID,
				repository.SetField("username", username),
				repository.SetField("bio", bio),
				repository.SetField("website", website),
				repository.SetField("social", social),
			)
		},
		func(st State) State {
			st.User = updateUser(st.User, user.ID, func(u *models.User) {
				u.Username = username
				u.Bio = bio
				u.Website = website
				u.Social = &social
			})
			return st
		},
	)
	return nil
}

// UpdateAvatar points the current user's avatar at an uploaded image
func (s *Store) UpdateAvatar(ctx context.Context, url string) bool {
	user := s.CurrentUser()
	if user == nil {
		return false
	}

	return s.performWrite(ctx, "update_avatar",
		map[string]any{"user_id": user.ID},
		func(ctx context.Context) error {
			return s.docs.Update(ctx, models.UsersCollection, user.ID, repository.SetField("avatar", url))
		},
		func(st State) State {
			st.User = updateUser(st.User, user.ID, func(u *models.User) { u.Avatar = url })
			return st
		},
	)
}

// UpdatePushToken records the device token used for push notifications
func (s *Store) UpdatePushToken(ctx context.Context, token string) bool {
	user := s.CurrentUser()
	if user == nil {
		return false
	}

	return s.performWrite(ctx, "update_push_token",
		map[string]any{"user_id": user.ID},
		func(ctx context.Context) error {
			return s.docs.Update(ctx, models.UsersCollection, user.ID, repository.SetField("pushToken", token))
		},
		func(st State) State {
			st.User = updateUser(st.User, user.ID, func(u *models.User) { u.PushToken = &token })
			return st
		},
	)
}

// performWrite runs remote and, only if it succeeds, swaps in local(state).
// A failure is logged and leaves the state untouched.
func (s *Store) performWrite(
	ctx context.Context,
	op string,
	fields map[string]any,
	remote func(context.Context) error,
	local func(State) State,
) bool {
	if err := remote(ctx); err != nil {
		s.logger.Error().
			Err(err).
			Str("op", op).
			Fields(fields).
			Msg("Remote write failed")
		return false
	}
	s.apply(local)
	return true
}

func (s *Store) apply(fn func(State) State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = fn(s.state)
}

func (s *Store) photo(id string) (models.Photo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.state.Photos {
		if p.ID == id {
			return clonePhoto(p), true
		}
	}
	return models.Photo{}, false
}

// replacePhoto returns a new slice where the photo with id is replaced by fn(photo)
func replacePhoto(photos []models.Photo, id string, fn func(models.Photo) models.Photo) []models.Photo {
	out := make([]models.Photo, len(photos))
	for i, p := range photos {
		if p.ID == id {
			out[i] = fn(clonePhoto(p))
			continue
		}
		out[i] = p
	}
	return out
}

// updateUser returns a modified copy of user when its id matches
func updateUser(user *models.User, id string, fn func(*models.User)) *models.User {
	if user == nil || user.ID != id {
		return user
	}
	updated := cloneUser(user)
	fn(updated)
	return updated
}

func cloneUser(u *models.User) *models.User {
	if u == nil {
		return nil
	}
	c := *u
	c.FollowingList = cloneStrings(u.FollowingList)
	c.FollowersList = cloneStrings(u.FollowersList)
	if u.Social != nil {
		social := *u.Social
		c.Social = &social
	}
	if u.PushToken != nil {
		token := *u.PushToken
		c.PushToken = &token
	}
	return &c
}

func clonePhotos(photos []models.Photo) []models.Photo {
	out := make([]models.Photo, len(photos))
	for i, p := range photos {
		out[i] = clonePhoto(p)
	}
	return out
}

func clonePhoto(p models.Photo) models.Photo {
	p.LikedBy = cloneStrings(p.LikedBy)
	comments := make([]models.Comment, len(p.Comments))
	copy(comments, p.Comments)
	p.Comments = comments
	return p
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func appendUnique(list []string, v string) []string {
	for _, item := range list {
		if item == v {
			return list
		}
	}
	out := make([]string, 0, len(list)+1)
	return append(append(out, list...), v)
}

func removeString(list []string, v string) []string {
	out := make([]string, 0, len(list))
	for _, item := range list {
		if item != v {
			out = append(out, item)
		}
	}
	return out
}

// timeOrderedID returns a UUIDv7, which sorts by creation time like the
// millisecond ids it replaces but does not collide within a millisecond.
func timeOrderedID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return strconv.FormatInt(time.Now().UnixMilli(), 10)
	}
	return id.String()
}
