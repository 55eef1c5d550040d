package frames

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/sync/singleflight"
)

// Generator writes the encoded contents of a frame asset to w.
type Generator func(w io.Writer) error

// Store persists frame assets by key.
type Store interface {
	// GetOrCreate returns the path for key, invoking gen only when no asset
	// exists yet.
	GetOrCreate(ctx context.Context, key string, gen Generator) (string, error)

	// Refresh regenerates the asset for key unconditionally.
	Refresh(ctx context.Context, key string, gen Generator) (string, error)
}

// Compile-time check that FileStore implements Store.
var _ Store = (*FileStore)(nil)

// FileStore keeps frame assets as flat files in a single directory.
// Writes go to a temporary file that is renamed into place, so readers never
// observe a partially written asset.
type FileStore struct {
	dir   string
	group singleflight.Group
}

// NewFileStore creates a FileStore rooted at dir. The directory is created
// lazily on the first write.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Dir returns the directory assets are written to.
func (s *FileStore) Dir() string {
	return s.dir
}

// GetOrCreate implements Store.
func (s *FileStore) GetOrCreate(ctx context.Context, key string, gen Generator) (string, error) {
	path := filepath.Join(s.dir, key)
	if exists(path) {
		return path, nil
	}

	_, err, _ := s.group.Do(key, func() (any, error) {
		if exists(path) {
			return nil, nil
		}
		return nil, s.write(ctx, path, gen)
	})
	if err != nil {
		return "", err
	}
	return path, nil
}

// Refresh implements Store.
func (s *FileStore) Refresh(ctx context.Context, key string, gen Generator) (string, error) {
	path := filepath.Join(s.dir, key)
	_, err, _ := s.group.Do(key, func() (any, error) {
		return nil, s.write(ctx, path, gen)
	})
	if err != nil {
		return "", err
	}
	return path, nil
}

func (s *FileStore) write(ctx context.Context, path string, gen Generator) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	if err := os.MkdirAll(s.dir, 0750); err != nil {
		return fmt.Errorf("create frames directory: %w", err)
	}

	f, err := os.CreateTemp(s.dir, ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("create temp frame: %w", err)
	}
	tmp := f.Name()

	if err := gen(f); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("generate %s: %w", filepath.Base(path), err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close temp frame: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("publish frame: %w", err)
	}
	return nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
