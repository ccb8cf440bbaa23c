package storage

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"photogram-backend/internal/models"
)

// ProgressFunc receives upload progress updates
type ProgressFunc func(models.UploadProgress)

// ObjectStore persists uploaded media and returns a stable URL for it
type ObjectStore interface {
	Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string, progress ProgressFunc) (string, error)
}

// ObjectPath builds the key for a feed upload:
// {photos|videos}/{userID}/{unixMillis}_{random}.{ext}
func ObjectPath(kind models.MediaKind, userID, filename string, now time.Time) string {
	folder := "photos"
	if kind == models.MediaVideo {
		folder = "videos"
	}
	ext := strings.TrimPrefix(path.Ext(filename), ".")
	if ext == "" {
		ext = "bin"
	}
	return fmt.Sprintf("%s/%s/%d_%s.%s", folder, userID, now.UnixMilli(), randomSuffix(), ext)
}

// AvatarPath builds the key for an avatar upload: avatars/{userID}/{unixMillis}_{name}
func AvatarPath(userID, filename string, now time.Time) string {
	return fmt.Sprintf("avatars/%s/%d_%s", userID, now.UnixMilli(), path.Base(filename))
}

func randomSuffix() string {
	return strconv.FormatUint(rand.Uint64()>>16, 36)
}

// PublicURL joins a public base URL and an object key
func PublicURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + key
}

// progressReader reports the share of size read so far
type progressReader struct {
	r        io.Reader
	size     int64
	read     int64
	last     int
	mu       sync.Mutex
	progress ProgressFunc
}

func newProgressReader(r io.Reader, size int64, progress ProgressFunc) *progressReader {
	return &progressReader{r: r, size: size, last: -1, progress: progress}
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.add(int64(n))
	}
	return n, err
}

// seekableProgressReader keeps the source seekable so the SDK can rewind it.
// Rewinding restarts the reported progress.
type seekableProgressReader struct {
	*progressReader
	seeker io.Seeker
}

func newSeekableProgressReader(r io.ReadSeeker, size int64, progress ProgressFunc) *seekableProgressReader {
	return &seekableProgressReader{progressReader: newProgressReader(r, size, progress), seeker: r}
}

func (p *seekableProgressReader) Seek(offset int64, whence int) (int64, error) {
	pos, err := p.seeker.Seek(offset, whence)
	if err != nil {
		return pos, err
	}
	p.mu.Lock()
	p.read = pos
	p.last = -1
	p.mu.Unlock()
	return pos, nil
}

func (p *progressReader) add(n int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.read += n
	if p.progress == nil || p.size <= 0 {
		return
	}
	pct := int(p.read * 100 / p.size)
	if pct > 100 {
		pct = 100
	}
	if pct == p.last {
		return
	}
	p.last = pct
	p.progress(models.UploadProgress{Progress: float64(pct), Status: models.UploadUploading})
}

func report(progress ProgressFunc, update models.UploadProgress) {
	if progress != nil {
		progress(update)
	}
}

func reportFailure(progress ProgressFunc, err error) {
	report(progress, models.UploadProgress{Status: models.UploadError, Error: err.Error()})
}
