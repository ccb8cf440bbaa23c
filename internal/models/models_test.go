package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimestampIsFixedWidth(t *testing.T) {
	whole := NewTimestamp(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))
	frac := NewTimestamp(time.Date(2024, 3, 1, 10, 0, 0, 500_000_000, time.UTC))

	assert.Equal(t, "2024-03-01T10:00:00.000Z", whole.String())
	assert.Equal(t, "2024-03-01T10:00:00.500Z", frac.String())
	assert.Less(t, whole.String(), frac.String())
}

func TestTimestampJSON(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	ts := NewTimestamp(time.Date(2024, 3, 1, 12, 0, 0, 123_456_789, loc))

	data, err := json.Marshal(ts)
	require.NoError(t, err)
	assert.Equal(t, `"2024-03-01T10:00:00.123Z"`, string(data))

	var decoded Timestamp
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, ts.Equal(decoded.Time))

	require.NoError(t, json.Unmarshal([]byte(`""`), &decoded))
	assert.True(t, decoded.IsZero())

	assert.Error(t, json.Unmarshal([]byte(`"yesterday"`), &decoded))
}

func TestPhotoDocumentShape(t *testing.T) {
	size := int64(2048)
	photo := Photo{
		ID:       "p1",
		Media:    Media{Type: MediaImage, URL: "https://cdn/p1.jpg", Size: &size},
		Caption:  "sunset",
		Comments: []Comment{},
		UserID:   "u1",
	}

	data, err := json.Marshal(photo)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "u1", raw["userId"])
	assert.Contains(t, raw, "createdAt")
	assert.NotContains(t, raw, "likedBy")
	media := raw["media"].(map[string]any)
	assert.Equal(t, "image", media["type"])
	assert.NotContains(t, media, "thumbnailUrl")
}

func TestIsFollowedBy(t *testing.T) {
	u := User{ID: "u1", FollowersList: []string{"u2", "u3"}}
	assert.True(t, u.IsFollowedBy("u3"))
	assert.False(t, u.IsFollowedBy("u4"))
}
