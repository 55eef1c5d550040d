package render

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"github.com/maauso/countdown-video/internal/audio"
	"github.com/maauso/countdown-video/internal/media"
)

// mockPreparer implements FramePreparer for testing.
type mockPreparer struct {
	mock.Mock
}

func (m *mockPreparer) Prepare(ctx context.Context, duration int) ([]string, error) {
	args := m.Called(ctx, duration)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// mockReuser implements Reuser for testing.
type mockReuser struct {
	mock.Mock
}

func (m *mockReuser) Reuse(ctx context.Context, target string) (bool, error) {
	args := m.Called(ctx, target)
	return args.Bool(0), args.Error(1)
}

// mockMixer implements audio.Mixer for testing.
type mockMixer struct {
	mock.Mock
}

func (m *mockMixer) Prepare(ctx context.Context, dir string, opts audio.MixOpts) (string, error) {
	args := m.Called(ctx, dir, opts)
	return args.String(0), args.Error(1)
}

// mockEncoder implements media.Encoder for testing.
type mockEncoder struct {
	mock.Mock
}

func (m *mockEncoder) Compose(ctx context.Context, dir string, opts media.ComposeOpts) (*media.Composition, error) {
	args := m.Called(ctx, dir, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*media.Composition), args.Error(1)
}

func (m *mockEncoder) Encode(ctx context.Context, c *media.Composition, audioPath, output string) error {
	args := m.Called(ctx, c, audioPath, output)
	return args.Error(0)
}

func (m *mockEncoder) Concat(ctx context.Context, inputs []string, output string) error {
	args := m.Called(ctx, inputs, output)
	return args.Error(0)
}

// mockStorage implements storage.Storage for testing.
type mockStorage struct {
	mock.Mock
}

func (m *mockStorage) WorkDir(ctx context.Context, name string) (string, error) {
	args := m.Called(ctx, name)
	return args.String(0), args.Error(1)
}

func (m *mockStorage) CleanupDir(ctx context.Context, dir string) error {
	args := m.Called(ctx, dir)
	return args.Error(0)
}

func (m *mockStorage) CleanupTemp(ctx context.Context, paths []string) error {
	args := m.Called(ctx, paths)
	return args.Error(0)
}

func (m *mockStorage) Upload(ctx context.Context, key string, data io.Reader) (string, error) {
	args := m.Called(ctx, key, data)
	return args.String(0), args.Error(1)
}

// mockSegmentRenderer implements SegmentRenderer for testing.
type mockSegmentRenderer struct {
	mock.Mock
}

func (m *mockSegmentRenderer) Render(ctx context.Context, req Request) (*Result, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Result), args.Error(1)
}
