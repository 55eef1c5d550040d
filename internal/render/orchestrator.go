// Package render turns timer durations into video files. The Orchestrator
// renders one segment; the Driver renders every segment of a timer
// expression and joins them.
package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/maauso/countdown-video/internal/audio"
	"github.com/maauso/countdown-video/internal/media"
	"github.com/maauso/countdown-video/internal/storage"
)

// Static errors for rendering.
var (
	// ErrInvalidRequest is returned when a request fails validation.
	ErrInvalidRequest = errors.New("render: invalid request")
	// ErrBackgroundNotFound is returned when the background video does not exist.
	ErrBackgroundNotFound = errors.New("render: background video not found")
)

// FramePreparer builds frame sequences. Implemented by frames.Manager.
type FramePreparer interface {
	Prepare(ctx context.Context, duration int) ([]string, error)
}

// Reuser satisfies a segment from an identical one on disk. Implemented by
// segment.Resolver.
type Reuser interface {
	Reuse(ctx context.Context, target string) (bool, error)
}

// Inputs are the optional media files shared by every segment of a run.
type Inputs struct {
	// AlarmPath is the alarm sound. Empty or audio.DefaultAlarm selects the
	// generated tone.
	AlarmPath string `json:"alarm,omitempty" yaml:"alarm,omitempty"`
	// BackgroundMusic plays under the countdown.
	BackgroundMusic string `json:"background_music,omitempty" yaml:"background_music,omitempty"`
	// BackgroundVideo is shown behind the numerals.
	BackgroundVideo string `json:"background_video,omitempty" yaml:"background_video,omitempty"`
}

// Request describes a single segment render.
type Request struct {
	// Duration is the countdown length in seconds.
	Duration int `validate:"min=0,max=86400"`
	// Output is the segment file to produce.
	Output string `validate:"required"`
	Inputs
}

// Result describes a finished segment.
type Result struct {
	Output string
	Reused bool
	// Frames is the number of video frames encoded. Zero when reused.
	Frames  int
	States  []State
	Elapsed time.Duration
}

// Settings are the render parameters fixed for the lifetime of an
// Orchestrator.
type Settings struct {
	FPS          int
	Width        int
	Height       int
	AlarmSeconds int
}

// Orchestrator renders single timer segments.
type Orchestrator struct {
	frames   FramePreparer
	overlay  FramePreparer
	reuser   Reuser
	mixer    audio.Mixer
	encoder  media.Encoder
	store    storage.Storage
	settings Settings
	validate *validator.Validate
	logger   *slog.Logger
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithOverlayFrames sets the preparer used when a background video is
// attached. Without it the plain preparer is used for every render.
func WithOverlayFrames(p FramePreparer) OrchestratorOption {
	return func(o *Orchestrator) {
		o.overlay = p
	}
}

// NewOrchestrator creates a new Orchestrator.
func NewOrchestrator(
	frames FramePreparer,
	reuser Reuser,
	mixer audio.Mixer,
	encoder media.Encoder,
	store storage.Storage,
	settings Settings,
	logger *slog.Logger,
	opts ...OrchestratorOption,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		frames:   frames,
		overlay:  frames,
		reuser:   reuser,
		mixer:    mixer,
		encoder:  encoder,
		store:    store,
		settings: settings,
		validate: validator.New(),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Render produces req.Output. An identical segment already on disk is
// copied instead of rendered. The work directory is removed whether or not
// the render succeeds; frame assets are left in place.
func (o *Orchestrator) Render(ctx context.Context, req Request) (*Result, error) {
	if err := o.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if req.BackgroundVideo != "" {
		if _, err := os.Stat(req.BackgroundVideo); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrBackgroundNotFound, req.BackgroundVideo)
		}
	}

	start := time.Now()
	logger := o.logger.With(slog.String("output", req.Output))
	tr := &trace{}

	if err := tr.enter(StateCheckReuse); err != nil {
		return nil, err
	}
	reused, err := o.reuser.Reuse(ctx, req.Output)
	if err != nil {
		logger.Warn("segment reuse failed, rendering instead",
			slog.String("error", err.Error()),
		)
	}
	if reused {
		if err := tr.enter(StateReused); err != nil {
			return nil, err
		}
		return &Result{
			Output:  req.Output,
			Reused:  true,
			States:  tr.states,
			Elapsed: time.Since(start),
		}, nil
	}

	frames, err := o.render(ctx, req, tr, logger)
	if err != nil {
		logger.Debug("render aborted",
			slog.String("state", string(tr.current())),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	res := &Result{
		Output:  req.Output,
		Frames:  frames,
		States:  tr.states,
		Elapsed: time.Since(start),
	}
	logger.Info("segment rendered",
		slog.Int("duration", req.Duration),
		slog.Int("frames", frames),
		slog.Duration("elapsed", res.Elapsed),
	)
	return res, nil
}

func (o *Orchestrator) render(ctx context.Context, req Request, tr *trace, logger *slog.Logger) (frameCount int, err error) {
	if err := tr.enter(StatePrepareFrames); err != nil {
		return 0, err
	}
	preparer := o.frames
	if req.BackgroundVideo != "" {
		preparer = o.overlay
	}
	frames, err := preparer.Prepare(ctx, req.Duration)
	if err != nil {
		return 0, fmt.Errorf("prepare frames: %w", err)
	}

	if err := tr.enter(StatePrepareAudio); err != nil {
		return 0, err
	}
	workDir, err := o.store.WorkDir(ctx, workDirName(req.Output))
	if err != nil {
		return 0, fmt.Errorf("create work directory: %w", err)
	}
	defer func() {
		if terr := tr.enter(StateCleanup); terr != nil && err == nil {
			err = terr
		}
		// The caller's context may already be cancelled.
		if cerr := o.store.CleanupDir(context.WithoutCancel(ctx), workDir); cerr != nil {
			logger.Warn("failed to remove work directory",
				slog.String("dir", workDir),
				slog.String("error", cerr.Error()),
			)
		}
	}()

	audioPath, err := o.mixer.Prepare(ctx, workDir, audio.MixOpts{
		Duration:        req.Duration,
		AlarmSeconds:    o.settings.AlarmSeconds,
		AlarmPath:       req.AlarmPath,
		BackgroundMusic: req.BackgroundMusic,
		FrameRate:       o.settings.FPS,
	})
	if err != nil {
		return 0, fmt.Errorf("prepare audio: %w", err)
	}

	if err := tr.enter(StateCompose); err != nil {
		return 0, err
	}
	composition, err := o.encoder.Compose(ctx, workDir, media.ComposeOpts{
		Frames:          frames,
		FPS:             o.settings.FPS,
		Width:           o.settings.Width,
		Height:          o.settings.Height,
		BackgroundVideo: req.BackgroundVideo,
	})
	if err != nil {
		return 0, fmt.Errorf("compose: %w", err)
	}

	if err := tr.enter(StateEncode); err != nil {
		return 0, err
	}
	if dir := filepath.Dir(req.Output); dir != "" {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return 0, fmt.Errorf("create output directory: %w", err)
		}
	}
	if err := o.encoder.Encode(ctx, composition, audioPath, req.Output); err != nil {
		_ = os.Remove(req.Output)
		return 0, fmt.Errorf("encode: %w", err)
	}

	return len(frames), nil
}

// workDirName derives a readable work directory prefix from an output path.
func workDirName(output string) string {
	base := filepath.Base(output)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
