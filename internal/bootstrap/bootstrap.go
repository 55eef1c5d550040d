// Package bootstrap wires the renderer, its collaborators and the job
// service from configuration.
package bootstrap

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/maauso/countdown-video/internal/audio"
	"github.com/maauso/countdown-video/internal/config"
	"github.com/maauso/countdown-video/internal/frames"
	"github.com/maauso/countdown-video/internal/job"
	"github.com/maauso/countdown-video/internal/media"
	"github.com/maauso/countdown-video/internal/render"
	"github.com/maauso/countdown-video/internal/segment"
	"github.com/maauso/countdown-video/internal/storage"
)

// Dependencies holds everything the CLI and the HTTP server need.
type Dependencies struct {
	Storage      storage.Storage
	Orchestrator *render.Orchestrator
	Driver       *render.Driver
	Encoder      *media.FFmpegEncoder
	Settings     render.Settings
	Jobs         *job.RenderService
}

// Options tune wiring that differs between the CLI and the server.
type Options struct {
	// Progress receives frame progress bars. Nil disables them.
	Progress io.Writer
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (*Dependencies, error) {
	store, err := initStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	plain, overlay, err := initFrames(cfg, logger, opts.Progress)
	if err != nil {
		return nil, err
	}

	encoder, err := media.NewFFmpegEncoder(cfg.FFmpegPath, media.EncodeOpts{
		Codec:   cfg.VideoCodec,
		Quality: cfg.Quality,
	})
	if err != nil {
		return nil, fmt.Errorf("create encoder: %w", err)
	}

	settings := render.Settings{
		FPS:          cfg.FPS,
		Width:        cfg.Width,
		Height:       cfg.Height,
		AlarmSeconds: cfg.AlarmSeconds,
	}

	orchestrator := render.NewOrchestrator(
		plain,
		segment.NewResolver(logger),
		audio.NewFFmpegMixer(cfg.FFmpegPath, cfg.AlarmFrequency, logger),
		encoder,
		store,
		settings,
		logger,
		render.WithOverlayFrames(overlay),
	)
	driver := render.NewDriver(orchestrator, encoder, store, logger)

	jobs := job.NewRenderService(
		job.NewMemoryRepository(),
		driver,
		orchestrator,
		store,
		cfg.OutputDir,
		cfg.QueueSize,
		logger,
		job.WithMediaDir(cfg.MediaDir),
	)

	return &Dependencies{
		Storage:      store,
		Orchestrator: orchestrator,
		Driver:       driver,
		Encoder:      encoder,
		Settings:     settings,
		Jobs:         jobs,
	}, nil
}

// initFrames builds the frame managers for the opaque and the overlay style.
// Each style caches into its own directory under cfg.FramesDir.
func initFrames(cfg *config.Config, logger *slog.Logger, progress io.Writer) (plain, overlay *frames.Manager, err error) {
	renderer, err := frames.NewFontRenderer(frames.RendererOptions{
		Width:    cfg.Width,
		Height:   cfg.Height,
		FontPath: cfg.FontPath,
		FontSize: cfg.FontSize,
	}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("create frame renderer: %w", err)
	}
	transparent := renderer.Transparent()

	plain, err = frames.NewManager(
		frames.NewFileStore(frames.StyleDir(cfg.FramesDir, renderer)),
		renderer,
		frames.Options{FPS: cfg.FPS, AlarmSeconds: cfg.AlarmSeconds, Progress: progress},
		logger,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("create frame manager: %w", err)
	}

	overlay, err = frames.NewManager(
		frames.NewFileStore(frames.StyleDir(cfg.FramesDir, transparent)),
		transparent,
		frames.Options{
			FPS:          cfg.FPS,
			AlarmSeconds: cfg.AlarmSeconds,
			Refresh:      cfg.RefreshOverlayFrames,
			Progress:     progress,
		},
		logger,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("create overlay frame manager: %w", err)
	}

	logger.Debug("frame caches configured",
		slog.String("plain", frames.StyleDir(cfg.FramesDir, renderer)),
		slog.String("overlay", frames.StyleDir(cfg.FramesDir, transparent)),
	)
	return plain, overlay, nil
}

// initStorage creates the appropriate storage backend based on configuration.
// Work directories live under cfg.SoundsDir.
func initStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Store, err := storage.NewS3Storage(ctx, cfg.SoundsDir, storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		})
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.SoundsDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Debug("local storage configured",
		slog.String("root", localStore.Root()),
	)
	return localStore, nil
}
