package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"possumtracker/internal/logger"
)

// LocalStore keeps uploaded media in a directory on this machine.
type LocalStore struct {
	root   string
	mu     sync.Mutex
	logger *logger.Logger
}

// NewLocalStore creates the root directory if needed.
func NewLocalStore(dir string, log *logger.Logger) (*LocalStore, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage directory: %w", err)
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalStore{root: root, logger: log}, nil
}

// Upload copies localPath to root/remotePath and returns a file:// URI.
func (s *LocalStore) Upload(ctx context.Context, localPath, remotePath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	target := filepath.Join(s.root, filepath.FromSlash(remotePath))
	if !strings.HasPrefix(target, s.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("remote path %q escapes the storage directory", remotePath)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	src, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer src.Close()

	dst, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", target, err)
	}
	n, err := io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("failed to copy %s: %w", localPath, err)
	}

	s.logger.Info("Stored %s (%d bytes)", remotePath, n)
	return "file://" + filepath.ToSlash(target), nil
}

func (s *LocalStore) Close() error { return nil }
