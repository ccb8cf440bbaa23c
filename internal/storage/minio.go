package storage

import (
	"context"
	"fmt"
	"io"

	"photogram-backend/internal/config"
	"photogram-backend/internal/models"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioAPI is the subset of the MinIO client used by MinioStore
type MinioAPI interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// MinioStore uploads media to a MinIO (or other S3 compatible) server
type MinioStore struct {
	client  MinioAPI
	bucket  string
	baseURL string
}

// NewMinioStore creates a MinIO store
func NewMinioStore(cfg config.StorageConfig) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}
	return NewMinioStoreWithClient(client, cfg.Bucket, minioBaseURL(cfg)), nil
}

// NewMinioStoreWithClient creates a MinIO store over an existing client
func NewMinioStoreWithClient(client MinioAPI, bucket, baseURL string) *MinioStore {
	return &MinioStore{client: client, bucket: bucket, baseURL: baseURL}
}

func minioBaseURL(cfg config.StorageConfig) string {
	if cfg.PublicBaseURL != "" {
		return cfg.PublicBaseURL
	}
	scheme := "http"
	if cfg.UseSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s", scheme, cfg.Endpoint, cfg.Bucket)
}

// Upload puts the object and returns its public URL. Progress comes from the
// client's upload hook.
func (s *MinioStore) Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string, progress ProgressFunc) (string, error) {
	report(progress, models.UploadProgress{Progress: 0, Status: models.UploadUploading})

	_, err := s.client.PutObject(ctx, s.bucket, key, body, size, minio.PutObjectOptions{
		ContentType: contentType,
		Progress:    &progressHook{newProgressReader(nil, size, progress)},
	})
	if err != nil {
		err = fmt.Errorf("failed to upload %s: %w", key, err)
		reportFailure(progress, err)
		return "", err
	}

	return PublicURL(s.baseURL, key), nil
}

// progressHook is read by the MinIO client with each uploaded chunk
type progressHook struct {
	*progressReader
}

func (h *progressHook) Read(b []byte) (int, error) {
	h.add(int64(len(b)))
	return len(b), nil
}
