// Package storage provides the scratch space used while rendering and the
// optional publishing of finished videos. It defines the Storage interface
// (port) and implementations for local disk and S3.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Storage defines the interface for scratch directories, intermediate file
// cleanup and publishing.
type Storage interface {
	// WorkDir creates a fresh, uniquely named directory for a single render.
	// The name parameter is used as a prefix.
	WorkDir(ctx context.Context, name string) (string, error)

	// CleanupDir removes a directory created by WorkDir and its contents.
	CleanupDir(ctx context.Context, dir string) error

	// CleanupTemp removes the specified intermediate files.
	// It continues cleanup even if some files fail to delete.
	CleanupTemp(ctx context.Context, paths []string) error

	// Upload publishes data under key and returns its public URL.
	// Returns ErrS3NotConfigured if no remote store is configured.
	Upload(ctx context.Context, key string, data io.Reader) (url string, err error)
}

// UploadFile publishes the file at path under its base name.
func UploadFile(ctx context.Context, s Storage, path string) (string, error) {
	f, err := os.Open(path) // #nosec G304 - path is a render output owned by the caller
	if err != nil {
		return "", fmt.Errorf("open upload source: %w", err)
	}
	defer func() { _ = f.Close() }()

	return s.Upload(ctx, filepath.Base(path), f)
}
