package media

import "strings"

// MaxVideoSize is the largest accepted video upload in bytes
const MaxVideoSize int64 = 100 * 1024 * 1024

// SupportedVideoFormats lists the accepted video MIME types
var SupportedVideoFormats = []string{
	"video/mp4",
	"video/webm",
	"video/quicktime",
	"video/x-m4v",
}

// ValidationError is a user-facing rejection of an upload. It is not retried or logged.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

var (
	ErrUnsupportedVideoFormat = &ValidationError{Message: "Unsupported video format. Please use MP4, WebM, or MOV files."}
	ErrVideoTooLarge          = &ValidationError{Message: "Video size exceeds 100MB limit."}
)

// IsVideo reports whether a MIME type denotes a video
func IsVideo(mimeType string) bool {
	return strings.HasPrefix(mimeType, "video/")
}

// ValidateVideo checks the MIME type against the whitelist, then the size limit
func ValidateVideo(mimeType string, size int64) error {
	supported := false
	for _, f := range SupportedVideoFormats {
		if f == mimeType {
			supported = true
			break
		}
	}
	if !supported {
		return ErrUnsupportedVideoFormat
	}
	if size > MaxVideoSize {
		return ErrVideoTooLarge
	}
	return nil
}
