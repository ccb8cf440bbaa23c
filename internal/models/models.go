package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Collection names in the document store
const (
	UsersCollection  = "users"
	PhotosCollection = "photos"
)

// Social holds optional social network handles
type Social struct {
	Instagram string `json:"instagram,omitempty"`
	Twitter   string `json:"twitter,omitempty"`
	Facebook  string `json:"facebook,omitempty"`
}

// User represents a user document
type User struct {
	ID            string   `json:"id"`
	Username      string   `json:"username"`
	Avatar        string   `json:"avatar"`
	Following     int      `json:"following"`
	Followers     int      `json:"followers"`
	FollowingList []string `json:"followingList,omitempty"`
	FollowersList []string `json:"followersList,omitempty"`
	Bio           string   `json:"bio,omitempty"`
	Website       string   `json:"website,omitempty"`
	Social        *Social  `json:"social,omitempty"`
	PushToken     *string  `json:"pushToken,omitempty"`
}

// IsFollowedBy reports whether userID is recorded in the followers list
func (u *User) IsFollowedBy(userID string) bool {
	for _, id := range u.FollowersList {
		if id == userID {
			return true
		}
	}
	return false
}

// MediaKind discriminates the media attached to a photo
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

// Media is the uploaded blob attached to a photo
type Media struct {
	Type         MediaKind `json:"type"`
	URL          string    `json:"url"`
	ThumbnailURL string    `json:"thumbnailUrl,omitempty"`
	Duration     *float64  `json:"duration,omitempty"`
	Size         *int64    `json:"size,omitempty"`
}

// Photo represents a post in the feed
type Photo struct {
	ID        string    `json:"id"`
	Media     Media     `json:"media"`
	Caption   string    `json:"caption"`
	Likes     int       `json:"likes"`
	LikedBy   []string  `json:"likedBy,omitempty"`
	Comments  []Comment `json:"comments"`
	UserID    string    `json:"userId"`
	Filter    string    `json:"filter"`
	CreatedAt Timestamp `json:"createdAt"`
}

// Comment is an entry appended to a photo. Author fields are a denormalized copy.
type Comment struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	Avatar    string    `json:"avatar"`
	Content   string    `json:"content"`
	CreatedAt Timestamp `json:"createdAt"`
}

// SearchResults is the transient result of a search
type SearchResults struct {
	Users  []User  `json:"users"`
	Photos []Photo `json:"photos"`
}

// UploadStatus is the phase of an upload
type UploadStatus string

const (
	UploadUploading  UploadStatus = "uploading"
	UploadProcessing UploadStatus = "processing"
	UploadComplete   UploadStatus = "complete"
	UploadError      UploadStatus = "error"
)

// UploadProgress reports the state of an upload in percent
type UploadProgress struct {
	Progress float64      `json:"progress"`
	Status   UploadStatus `json:"status"`
	Error    string       `json:"error,omitempty"`
}

// TimestampLayout is fixed width so stored values sort lexicographically by time
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Timestamp is a UTC instant with millisecond precision
type Timestamp struct {
	time.Time
}

// NewTimestamp truncates t to milliseconds in UTC
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC().Truncate(time.Millisecond)}
}

// String formats the timestamp with TimestampLayout
func (t Timestamp) String() string {
	return t.UTC().Format(TimestampLayout)
}

// MarshalJSON implements json.Marshaler
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements json.Unmarshaler
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("failed to decode timestamp: %w", err)
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return fmt.Errorf("failed to parse timestamp: %w", err)
	}
	*t = NewTimestamp(parsed)
	return nil
}
