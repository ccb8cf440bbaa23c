package notify

import (
	"context"
	"fmt"

	"photogram-backend/internal/config"
	"photogram-backend/internal/models"
	"photogram-backend/internal/repository"
	"photogram-backend/internal/store"

	"github.com/rs/zerolog/log"
	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/payload"
	"github.com/sideshow/apns2/token"
)

// Pusher sends a notification to APNs
type Pusher interface {
	PushWithContext(ctx apns2.Context, n *apns2.Notification) (*apns2.Response, error)
}

// APNSNotifier tells photo owners about likes and comments on their posts
type APNSNotifier struct {
	client   Pusher
	topic    string
	userRepo *repository.UserRepository
}

// NewAPNSNotifier creates a notifier using token based APNs authentication
func NewAPNSNotifier(cfg config.APNSConfig, userRepo *repository.UserRepository) (*APNSNotifier, error) {
	authKey, err := token.AuthKeyFromFile(cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load APNs key: %w", err)
	}

	client := apns2.NewTokenClient(&token.Token{
		AuthKey: authKey,
		KeyID:   cfg.KeyID,
		TeamID:  cfg.TeamID,
	})
	if cfg.Production {
		client = client.Production()
	} else {
		client = client.Development()
	}

	return NewAPNSNotifierWithClient(client, cfg.Topic, userRepo), nil
}

// NewAPNSNotifierWithClient creates a notifier over an existing client
func NewAPNSNotifierWithClient(client Pusher, topic string, userRepo *repository.UserRepository) *APNSNotifier {
	return &APNSNotifier{
		client:   client,
		topic:    topic,
		userRepo: userRepo,
	}
}

// Hooks returns store hooks that push in the background
func (n *APNSNotifier) Hooks() store.Hooks {
	return store.Hooks{
		OnPhotoLiked: func(ctx context.Context, photo models.Photo, by models.User) {
			go n.PhotoLiked(context.WithoutCancel(ctx), photo, by)
		},
		OnCommentAdded: func(ctx context.Context, photo models.Photo, comment models.Comment) {
			go n.CommentAdded(context.WithoutCancel(ctx), photo, comment)
		},
	}
}

// PhotoLiked notifies the owner of photo that by liked it
func (n *APNSNotifier) PhotoLiked(ctx context.Context, photo models.Photo, by models.User) {
	if photo.UserID == by.ID {
		return
	}
	p := payload.NewPayload().
		AlertTitle("New like").
		AlertBody(fmt.Sprintf("%s liked your post", by.Username)).
		Sound("default").
		Custom("photo_id", photo.ID)
	n.push(ctx, photo.UserID, p)
}

// CommentAdded notifies the owner of photo about a new comment
func (n *APNSNotifier) CommentAdded(ctx context.Context, photo models.Photo, comment models.Comment) {
	if photo.UserID == comment.UserID {
		return
	}
	p := payload.NewPayload().
		AlertTitle("New comment").
		AlertBody(fmt.Sprintf("%s commented: %s", comment.Username, comment.Content)).
		Sound("default").
		Custom("photo_id", photo.ID).
		Custom("comment_id", comment.ID)
	n.push(ctx, photo.UserID, p)
}

func (n *APNSNotifier) push(ctx context.Context, ownerID string, p *payload.Payload) {
	owner, err := n.userRepo.GetByID(ctx, ownerID)
	if err != nil {
		log.Error().Err(err).Str("user_id", ownerID).Msg("Failed to load notification recipient")
		return
	}
	if owner.PushToken == nil || *owner.PushToken == "" {
		return
	}

	res, err := n.client.PushWithContext(ctx, &apns2.Notification{
		DeviceToken: *owner.PushToken,
		Topic:       n.topic,
		Payload:     p,
	})
	if err != nil {
		log.Error().Err(err).Str("user_id", ownerID).Msg("Failed to send push notification")
		return
	}
	if !res.Sent() {
		log.Warn().
			Str("user_id", ownerID).
			Int("status", res.StatusCode).
			Str("reason", res.Reason).
			Msg("Push notification rejected")
	}
}
