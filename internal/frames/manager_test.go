package frames

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// mockRenderer implements Renderer for testing.
type mockRenderer struct {
	mock.Mock
}

func (m *mockRenderer) RenderFrame(text string, alarm bool) (image.Image, error) {
	args := m.Called(text, alarm)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(image.Image), args.Error(1)
}

func (m *mockRenderer) Style() string {
	return "mock"
}

func newMockRenderer() *mockRenderer {
	r := &mockRenderer{}
	r.On("RenderFrame", mock.Anything, mock.Anything).Return(image.NewRGBA(image.Rect(0, 0, 4, 4)), nil)
	return r
}

func newTestManager(t *testing.T, r Renderer, opts Options) (*Manager, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), r.Style())
	m, err := NewManager(NewFileStore(dir), r, opts, nil)
	require.NoError(t, err)
	return m, dir
}

func TestKey(t *testing.T) {
	assert.Equal(t, "alarm.png", Key(0))
	assert.Equal(t, "frame_00_03.png", Key(3))
	assert.Equal(t, "frame_01_00.png", Key(60))
	assert.Equal(t, "frame_25_00.png", Key(1500))
	assert.Equal(t, "frame_120_05.png", Key(7205))
}

func TestText(t *testing.T) {
	assert.Equal(t, "00:00", Text(0))
	assert.Equal(t, "00:59", Text(59))
	assert.Equal(t, "10:00", Text(600))
	assert.Equal(t, "100:01", Text(6001))
}

func TestNewManager_InvalidOptions(t *testing.T) {
	_, err := NewManager(NewFileStore(t.TempDir()), newMockRenderer(), Options{FPS: 0, AlarmSeconds: 5}, nil)
	assert.ErrorIs(t, err, ErrInvalidOptions)

	_, err = NewManager(NewFileStore(t.TempDir()), newMockRenderer(), Options{FPS: 24, AlarmSeconds: 0}, nil)
	assert.ErrorIs(t, err, ErrInvalidOptions)
}

func TestManager_Prepare_Sequence(t *testing.T) {
	r := newMockRenderer()
	m, dir := newTestManager(t, r, Options{FPS: 24, AlarmSeconds: 5})

	seq, err := m.Prepare(context.Background(), 3)
	require.NoError(t, err)

	require.Len(t, seq, 3*24+5*24)
	for i := 0; i < 24; i++ {
		assert.Equal(t, filepath.Join(dir, "frame_00_03.png"), seq[i])
		assert.Equal(t, filepath.Join(dir, "frame_00_02.png"), seq[24+i])
		assert.Equal(t, filepath.Join(dir, "frame_00_01.png"), seq[48+i])
	}
	for _, p := range seq[72:] {
		assert.Equal(t, filepath.Join(dir, AlarmKey), p)
	}

	r.AssertNumberOfCalls(t, "RenderFrame", 4)
	r.AssertCalled(t, "RenderFrame", "00:03", false)
	r.AssertCalled(t, "RenderFrame", "00:00", true)

	for _, name := range []string{"frame_00_03.png", "frame_00_02.png", "frame_00_01.png", AlarmKey} {
		assert.FileExists(t, filepath.Join(dir, name))
	}
}

func TestManager_Prepare_ZeroDuration(t *testing.T) {
	r := newMockRenderer()
	m, dir := newTestManager(t, r, Options{FPS: 10, AlarmSeconds: 2})

	seq, err := m.Prepare(context.Background(), 0)
	require.NoError(t, err)

	require.Len(t, seq, 20)
	for _, p := range seq {
		assert.Equal(t, filepath.Join(dir, AlarmKey), p)
	}
	r.AssertNumberOfCalls(t, "RenderFrame", 1)
}

func TestManager_Prepare_NegativeDuration(t *testing.T) {
	m, _ := newTestManager(t, newMockRenderer(), Options{FPS: 24, AlarmSeconds: 5})

	_, err := m.Prepare(context.Background(), -1)
	assert.ErrorIs(t, err, ErrNegativeDuration)
}

func TestManager_Prepare_Idempotent(t *testing.T) {
	r := newMockRenderer()
	m, dir := newTestManager(t, r, Options{FPS: 2, AlarmSeconds: 1})
	ctx := context.Background()

	first, err := m.Prepare(ctx, 2)
	require.NoError(t, err)

	before, err := os.Stat(filepath.Join(dir, "frame_00_02.png"))
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)

	second, err := m.Prepare(ctx, 2)
	require.NoError(t, err)

	after, err := os.Stat(filepath.Join(dir, "frame_00_02.png"))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, before.ModTime(), after.ModTime())
	r.AssertNumberOfCalls(t, "RenderFrame", 3)
}

func TestManager_Prepare_Refresh(t *testing.T) {
	r := newMockRenderer()
	m, _ := newTestManager(t, r, Options{FPS: 1, AlarmSeconds: 1, Refresh: true})
	ctx := context.Background()

	_, err := m.Prepare(ctx, 2)
	require.NoError(t, err)
	_, err = m.Prepare(ctx, 2)
	require.NoError(t, err)

	// Countdown frames are regenerated each time, the alarm only once.
	r.AssertNumberOfCalls(t, "RenderFrame", 2+2+1)
}

func TestManager_Prepare_RenderError(t *testing.T) {
	r := &mockRenderer{}
	r.On("RenderFrame", mock.Anything, mock.Anything).Return(nil, errors.New("boom"))
	m, dir := newTestManager(t, r, Options{FPS: 24, AlarmSeconds: 5})

	_, err := m.Prepare(context.Background(), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "frame_00_01.png")

	// No partial or temporary files are left behind.
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), ".tmp-"), "leftover temp file %s", e.Name())
	}
}

func TestManager_Prepare_Cancelled(t *testing.T) {
	m, _ := newTestManager(t, newMockRenderer(), Options{FPS: 24, AlarmSeconds: 5})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Prepare(ctx, 3)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestManager_Prepare_Progress(t *testing.T) {
	var out strings.Builder
	m, _ := newTestManager(t, newMockRenderer(), Options{FPS: 1, AlarmSeconds: 1, Progress: &out})

	_, err := m.Prepare(context.Background(), 2)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Frames")
}
