// Package frames produces the per-second numeral images of a countdown and
// expands them into a frame sequence at the video frame rate.
//
// Images are cached on disk, one file per displayed second plus one alarm
// image, and are only generated when missing. A cache directory is scoped to
// a renderer style so that a change of font, size, canvas or transparency
// never serves stale frames.
package frames

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
)

// AlarmKey is the asset name reserved for the alarm frame.
const AlarmKey = "alarm.png"

// Static errors for frame preparation.
var (
	// ErrNegativeDuration is returned when a negative countdown is requested.
	ErrNegativeDuration = errors.New("frames: duration must not be negative")
	// ErrInvalidOptions is returned when fps or alarm hold are not positive.
	ErrInvalidOptions = errors.New("frames: fps and alarm seconds must be positive")
)

// Options controls sequence expansion and cache behaviour.
type Options struct {
	// FPS is the number of frames each second is held for.
	FPS int
	// AlarmSeconds is how long the alarm frame is held.
	AlarmSeconds int
	// Refresh regenerates every countdown frame on each call. The alarm
	// frame is still reused.
	Refresh bool
	// Progress receives a progress bar while frames are prepared. Nil
	// disables it.
	Progress io.Writer
}

// Manager prepares frame sequences backed by a Store.
type Manager struct {
	store    Store
	renderer Renderer
	opts     Options
	logger   *slog.Logger
}

// NewManager creates a Manager.
func NewManager(store Store, renderer Renderer, opts Options, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.FPS <= 0 || opts.AlarmSeconds <= 0 {
		return nil, fmt.Errorf("%w: fps=%d, alarm_seconds=%d", ErrInvalidOptions, opts.FPS, opts.AlarmSeconds)
	}
	return &Manager{
		store:    store,
		renderer: renderer,
		opts:     opts,
		logger:   logger,
	}, nil
}

// StyleDir returns the cache directory for a renderer under root.
func StyleDir(root string, r Renderer) string {
	return filepath.Join(root, r.Style())
}

// Key returns the asset name for a countdown second. Second 0 is the alarm.
func Key(second int) string {
	if second == 0 {
		return AlarmKey
	}
	return fmt.Sprintf("frame_%02d_%02d.png", second/60, second%60)
}

// Text returns the MM:SS label shown for a second. Minutes may exceed two
// digits.
func Text(second int) string {
	return fmt.Sprintf("%02d:%02d", second/60, second%60)
}

// Prepare ensures an asset exists for every second from duration down to 1
// and for the alarm, then returns the ordered frame sequence: each second's
// path repeated FPS times, followed by the alarm path repeated
// FPS*AlarmSeconds times.
func (m *Manager) Prepare(ctx context.Context, duration int) ([]string, error) {
	if duration < 0 {
		return nil, fmt.Errorf("%w: %d", ErrNegativeDuration, duration)
	}

	var bar *progressbar.ProgressBar
	if m.opts.Progress != nil {
		bar = progressbar.NewOptions(duration+1,
			progressbar.OptionSetWriter(m.opts.Progress),
			progressbar.OptionSetDescription("Frames"),
		)
	}

	assets := make([]string, duration+1)
	for second := duration; second >= 0; second-- {
		path, err := m.asset(ctx, second)
		if err != nil {
			return nil, err
		}
		assets[second] = path
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	if bar != nil {
		_ = bar.Finish()
	}

	fps := m.opts.FPS
	seq := make([]string, 0, (duration+m.opts.AlarmSeconds)*fps)
	for second := duration; second >= 1; second-- {
		for range fps {
			seq = append(seq, assets[second])
		}
	}
	for range fps * m.opts.AlarmSeconds {
		seq = append(seq, assets[0])
	}

	m.logger.Debug("frames prepared",
		slog.Int("duration", duration),
		slog.Int("frames", len(seq)),
		slog.String("style", m.renderer.Style()),
	)

	return seq, nil
}

func (m *Manager) asset(ctx context.Context, second int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("context cancelled: %w", err)
	}

	key := Key(second)
	gen := m.generator(second)

	var (
		path string
		err  error
	)
	if m.opts.Refresh && second != 0 {
		path, err = m.store.Refresh(ctx, key, gen)
	} else {
		path, err = m.store.GetOrCreate(ctx, key, gen)
	}
	if err != nil {
		return "", fmt.Errorf("prepare %s: %w", key, err)
	}
	return path, nil
}

func (m *Manager) generator(second int) Generator {
	return func(w io.Writer) error {
		img, err := m.renderer.RenderFrame(Text(second), second == 0)
		if err != nil {
			return fmt.Errorf("render frame: %w", err)
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return fmt.Errorf("encode png: %w", err)
		}
		_, err = buf.WriteTo(w)
		return err
	}
}
