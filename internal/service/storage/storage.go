// Package storage copies finished visit media to durable object storage.
package storage

import (
	"context"
	"fmt"

	"possumtracker/internal/config"
	"possumtracker/internal/logger"
)

// ObjectStore uploads a local file under a remote key and returns its URI.
type ObjectStore interface {
	Upload(ctx context.Context, localPath, remotePath string) (string, error)
	Close() error
}

// New opens the backend selected by cfg.Backend.
func New(ctx context.Context, cfg config.StorageConfig, log *logger.Logger) (ObjectStore, error) {
	switch cfg.Backend {
	case "", "local":
		return NewLocalStore(cfg.Directory, log)
	case "gcs":
		return NewGCSStore(ctx, cfg.Bucket, cfg.Credentials, log)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
