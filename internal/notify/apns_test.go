package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"photogram-backend/internal/models"
	"photogram-backend/internal/repository"

	"github.com/sideshow/apns2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePusher struct {
	sent []*apns2.Notification
	err  error
}

func (f *fakePusher) PushWithContext(ctx apns2.Context, n *apns2.Notification) (*apns2.Response, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, n)
	return &apns2.Response{StatusCode: http.StatusOK}, nil
}

func setup(t *testing.T, ownerToken *string) (*APNSNotifier, *fakePusher) {
	t.Helper()
	users := repository.NewUserRepository(repository.NewMemoryDocuments())
	require.NoError(t, users.Create(context.Background(), &models.User{ID: "owner", Username: "owner", PushToken: ownerToken}))
	pusher := &fakePusher{}
	return NewAPNSNotifierWithClient(pusher, "com.example.photogram", users), pusher
}

func alert(t *testing.T, n *apns2.Notification) map[string]any {
	t.Helper()
	raw, err := json.Marshal(n.Payload)
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	return body
}

func TestPhotoLikedNotifiesOwner(t *testing.T) {
	deviceToken := "device-1"
	n, pusher := setup(t, &deviceToken)

	n.PhotoLiked(context.Background(), models.Photo{ID: "p1", UserID: "owner"}, models.User{ID: "fan", Username: "fan"})

	require.Len(t, pusher.sent, 1)
	assert.Equal(t, "device-1", pusher.sent[0].DeviceToken)
	assert.Equal(t, "com.example.photogram", pusher.sent[0].Topic)

	body := alert(t, pusher.sent[0])
	aps := body["aps"].(map[string]any)
	assert.Equal(t, "fan liked your post", aps["alert"].(map[string]any)["body"])
	assert.Equal(t, "p1", body["photo_id"])
}

func TestCommentAddedNotifiesOwner(t *testing.T) {
	deviceToken := "device-1"
	n, pusher := setup(t, &deviceToken)

	n.CommentAdded(context.Background(),
		models.Photo{ID: "p1", UserID: "owner"},
		models.Comment{ID: "c1", UserID: "fan", Username: "fan", Content: "lovely"},
	)

	require.Len(t, pusher.sent, 1)
	body := alert(t, pusher.sent[0])
	aps := body["aps"].(map[string]any)
	assert.Equal(t, "fan commented: lovely", aps["alert"].(map[string]any)["body"])
	assert.Equal(t, "c1", body["comment_id"])
}

func TestNoPushForOwnActionsOrMissingToken(t *testing.T) {
	deviceToken := "device-1"
	n, pusher := setup(t, &deviceToken)
	n.PhotoLiked(context.Background(), models.Photo{ID: "p1", UserID: "owner"}, models.User{ID: "owner"})
	n.CommentAdded(context.Background(), models.Photo{ID: "p1", UserID: "owner"}, models.Comment{UserID: "owner"})
	assert.Empty(t, pusher.sent)

	n, pusher = setup(t, nil)
	n.PhotoLiked(context.Background(), models.Photo{ID: "p1", UserID: "owner"}, models.User{ID: "fan"})
	assert.Empty(t, pusher.sent)

	n.PhotoLiked(context.Background(), models.Photo{ID: "p1", UserID: "ghost"}, models.User{ID: "fan"})
	assert.Empty(t, pusher.sent)
}

func TestPushFailureIsSwallowed(t *testing.T) {
	deviceToken := "device-1"
	n, pusher := setup(t, &deviceToken)
	pusher.err = errors.New("connection reset")

	assert.NotPanics(t, func() {
		n.PhotoLiked(context.Background(), models.Photo{ID: "p1", UserID: "owner"}, models.User{ID: "fan", Username: "fan"})
	})
}
