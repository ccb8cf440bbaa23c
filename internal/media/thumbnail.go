package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"os"
	"time"
)

const (
	// ThumbnailOffset is the position of the frame used as the thumbnail
	ThumbnailOffset = time.Second
	// ThumbnailQuality is the JPEG quality of thumbnails
	ThumbnailQuality = 70
)

// FrameDecoder reads metadata and frames from a video file
type FrameDecoder interface {
	Duration(ctx context.Context, path string) (float64, error)
	FrameAt(ctx context.Context, path string, offset time.Duration) (image.Image, error)
}

// GenerateVideoThumbnail grabs the frame at ThumbnailOffset and returns it as a JPEG data URL
func GenerateVideoThumbnail(ctx context.Context, dec FrameDecoder, video io.Reader) (string, error) {
	path, cleanup, err := spool(video)
	if err != nil {
		return "", err
	}
	defer cleanup()

	frame, err := dec.FrameAt(ctx, path, ThumbnailOffset)
	if err != nil {
		return "", fmt.Errorf("failed to read thumbnail frame: %w", err)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame, &jpeg.Options{Quality: ThumbnailQuality}); err != nil {
		return "", fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// VideoDuration returns the duration of a video in seconds
func VideoDuration(ctx context.Context, dec FrameDecoder, video io.Reader) (float64, error) {
	path, cleanup, err := spool(video)
	if err != nil {
		return 0, err
	}
	defer cleanup()

	duration, err := dec.Duration(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("failed to load video metadata: %w", err)
	}
	return duration, nil
}

// spool copies r to a temporary file so external decoders can seek in it
func spool(r io.Reader) (string, func(), error) {
	f, err := os.CreateTemp("", "photogram-video-*")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	cleanup := func() { os.Remove(f.Name()) }

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		cleanup()
		return "", nil, fmt.Errorf("failed to spool video: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to spool video: %w", err)
	}
	return f.Name(), cleanup, nil
}
