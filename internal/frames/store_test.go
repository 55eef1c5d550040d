package frames

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func constGen(content string, calls *atomic.Int32) Generator {
	return func(w io.Writer) error {
		calls.Add(1)
		_, err := io.WriteString(w, content)
		return err
	}
}

func TestFileStore_GetOrCreate(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "style")
	s := NewFileStore(dir)
	ctx := context.Background()
	var calls atomic.Int32

	path, err := s.GetOrCreate(ctx, "frame_00_01.png", constGen("one", &calls))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "frame_00_01.png"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "one", string(data))

	// Existing asset is returned untouched.
	path2, err := s.GetOrCreate(ctx, "frame_00_01.png", constGen("two", &calls))
	require.NoError(t, err)
	assert.Equal(t, path, path2)

	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "one", string(data))
	assert.Equal(t, int32(1), calls.Load())
}

func TestFileStore_Refresh(t *testing.T) {
	s := NewFileStore(t.TempDir())
	ctx := context.Background()
	var calls atomic.Int32

	_, err := s.GetOrCreate(ctx, "k", constGen("old", &calls))
	require.NoError(t, err)

	path, err := s.Refresh(ctx, "k", constGen("new", &calls))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
	assert.Equal(t, int32(2), calls.Load())
}

func TestFileStore_GeneratorError(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(dir)

	_, err := s.GetOrCreate(context.Background(), "k", func(w io.Writer) error {
		_, _ = io.WriteString(w, "partial")
		return errors.New("disk on fire")
	})
	require.Error(t, err)

	assert.NoFileExists(t, filepath.Join(dir, "k"))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFileStore_Concurrent(t *testing.T) {
	s := NewFileStore(t.TempDir())
	ctx := context.Background()
	var calls atomic.Int32

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.GetOrCreate(ctx, "shared", constGen("x", &calls))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// singleflight collapses in-flight calls and later callers see the file.
	assert.LessOrEqual(t, calls.Load(), int32(16))
	assert.GreaterOrEqual(t, calls.Load(), int32(1))
	assert.FileExists(t, filepath.Join(s.Dir(), "shared"))
}
