package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Static errors for storage operations.
var (
	// ErrS3NotConfigured is returned when S3 operations are attempted
	// without proper configuration.
	ErrS3NotConfigured = errors.New("S3 storage is not configured")
	// ErrOutsideRoot is returned when asked to remove a directory that was
	// not created under the storage root.
	ErrOutsideRoot = errors.New("directory is outside the storage root")
)

// LocalStorage implements the Storage interface using local disk.
// Work directories are created under a configurable root and S3 operations
// are not supported unless wrapped with S3Storage.
type LocalStorage struct {
	root string
}

// NewLocalStorage creates a new LocalStorage instance.
// If root is empty, a "countdown" directory under os.TempDir() is used.
// The directory is created if it doesn't exist.
func NewLocalStorage(root string) (*LocalStorage, error) {
	if root == "" {
		root = filepath.Join(os.TempDir(), "countdown")
	}

	if err := os.MkdirAll(root, 0750); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}

	return &LocalStorage{root: root}, nil
}

// Root returns the directory work directories are created in.
func (s *LocalStorage) Root() string {
	return s.root
}

// WorkDir creates a uniquely named directory under the root.
func (s *LocalStorage) WorkDir(ctx context.Context, name string) (string, error) {
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	// The root may have been removed by a previous cleanup.
	if err := os.MkdirAll(s.root, 0750); err != nil {
		return "", fmt.Errorf("create storage root: %w", err)
	}

	dir, err := os.MkdirTemp(s.root, name+"_*")
	if err != nil {
		return "", fmt.Errorf("create work directory: %w", err)
	}
	return dir, nil
}

// CleanupDir removes dir and everything below it. Only directories under
// the root are accepted. The root itself is removed once it is empty and
// recreated by the next WorkDir.
func (s *LocalStorage) CleanupDir(_ context.Context, dir string) error {
	rel, err := filepath.Rel(s.root, dir)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%w: %s", ErrOutsideRoot, dir)
	}

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove work directory %s: %w", dir, err)
	}
	// Fails while other work directories or files remain.
	_ = os.Remove(s.root)
	return nil
}

// CleanupTemp removes the specified intermediate files.
// It continues cleanup even if some files fail to delete,
// returning the first error encountered.
func (s *LocalStorage) CleanupTemp(ctx context.Context, paths []string) error {
	var firstErr error
	for _, p := range paths {
		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled: %w", ctx.Err())
		default:
		}

		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			if firstErr == nil {
				firstErr = fmt.Errorf("remove temp file %s: %w", p, err)
			}
		}
	}
	return firstErr
}

// Upload is not supported by LocalStorage and returns ErrS3NotConfigured.
func (s *LocalStorage) Upload(_ context.Context, _ string, _ io.Reader) (string, error) {
	return "", ErrS3NotConfigured
}
