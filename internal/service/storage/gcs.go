package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"possumtracker/internal/logger"
)

const uploadTimeout = 2 * time.Minute

// GCSStore uploads media to a Google Cloud Storage bucket.
type GCSStore struct {
	client *storage.Client
	bucket string
	logger *logger.Logger
}

// NewGCSStore opens a client. An empty credentials path falls back to
// application default credentials.
func NewGCSStore(ctx context.Context, bucket, credentials string, log *logger.Logger) (*GCSStore, error) {
	var opts []option.ClientOption
	if credentials != "" {
		opts = append(opts, option.WithCredentialsFile(credentials))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	log.Info("Uploading visit media to gs://%s", bucket)
	return &GCSStore{client: client, bucket: bucket, logger: log}, nil
}

// Upload streams localPath into the bucket and returns gs://bucket/remotePath.
func (s *GCSStore) Upload(ctx context.Context, localPath, remotePath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer f.Close()

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(remotePath).NewWriter(ctx)
	if ct := mime.TypeByExtension(path.Ext(remotePath)); ct != "" {
		w.ContentType = ct
	}

	if _, err := io.Copy(w, f); err != nil {
		w.Close()
		return "", fmt.Errorf("failed to upload %s: %w", remotePath, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to finish upload of %s: %w", remotePath, err)
	}

	return fmt.Sprintf("gs://%s/%s", s.bucket, remotePath), nil
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}
