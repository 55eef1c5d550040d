package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/maauso/countdown-video/internal/audio"
	"github.com/maauso/countdown-video/internal/expression"
	"github.com/maauso/countdown-video/internal/render"
	"github.com/maauso/countdown-video/internal/storage"
)

// Service errors.
var (
	// ErrQueueFull is returned when no more jobs can be accepted.
	ErrQueueFull = errors.New("render queue is full")
	// ErrInvalidInput is returned when a submission is malformed or out of range.
	ErrInvalidInput = errors.New("invalid render input")
)

// DefaultQueueSize bounds the number of jobs waiting for the worker.
const DefaultQueueSize = 16

// ExpressionRunner renders every timer of an expression into one video.
type ExpressionRunner interface {
	Run(ctx context.Context, expr, output string, in render.Inputs) (*render.RunResult, error)
}

// TimerRenderer renders a single timer.
type TimerRenderer interface {
	Render(ctx context.Context, req render.Request) (*render.Result, error)
}

// RenderInput describes a submitted timer video.
type RenderInput struct {
	// Expression selects a multi-timer render. When empty, Minutes and
	// Seconds describe a single timer.
	Expression string
	Minutes    int
	Seconds    int
	// Output is the requested file name. Directories are stripped.
	Output string
	render.Inputs
	// Upload publishes the finished video through storage.
	Upload bool
}

// RenderService accepts render jobs and runs them one at a time.
type RenderService struct {
	repo      Repository
	runner    ExpressionRunner
	renderer  TimerRenderer
	store     storage.Storage
	outputDir string
	mediaDir  string
	queue     chan string
	logger    *slog.Logger
}

// ServiceOption configures a RenderService.
type ServiceOption func(*RenderService)

// WithMediaDir resolves submitted alarm and background paths inside dir.
// Without it only the generated alarm is accepted.
func WithMediaDir(dir string) ServiceOption {
	return func(s *RenderService) {
		s.mediaDir = dir
	}
}

// NewRenderService creates a RenderService writing each job's video into
// its own directory under outputDir. A queueSize below 1 selects
// DefaultQueueSize.
func NewRenderService(
	repo Repository,
	runner ExpressionRunner,
	renderer TimerRenderer,
	store storage.Storage,
	outputDir string,
	queueSize int,
	logger *slog.Logger,
	opts ...ServiceOption,
) *RenderService {
	if logger == nil {
		logger = slog.Default()
	}
	if queueSize < 1 {
		queueSize = DefaultQueueSize
	}
	s := &RenderService{
		repo:      repo,
		runner:    runner,
		renderer:  renderer,
		store:     store,
		outputDir: outputDir,
		queue:     make(chan string, queueSize),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit validates input, stores a new job and queues it for the worker.
func (s *RenderService) Submit(ctx context.Context, input RenderInput) (*Job, error) {
	job := New()

	if input.Expression != "" {
		if err := expression.Validate(input.Expression); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
	} else {
		if input.Minutes < 0 || input.Minutes > expression.MaxMinutes ||
			input.Seconds < 0 || input.Seconds > expression.MaxDurationSeconds ||
			input.Minutes*60+input.Seconds > expression.MaxDurationSeconds {
			return nil, fmt.Errorf("%w: duration must be between 0 and %d seconds",
				ErrInvalidInput, expression.MaxDurationSeconds)
		}
		job.DurationSeconds = input.Minutes*60 + input.Seconds
	}

	var err error
	job.AlarmPath = input.AlarmPath
	if !audio.GeneratedAlarm(input.AlarmPath) {
		if job.AlarmPath, err = s.mediaPath(input.AlarmPath); err != nil {
			return nil, err
		}
	}
	if job.BackgroundMusic, err = s.mediaPath(input.BackgroundMusic); err != nil {
		return nil, err
	}
	if job.BackgroundVideo, err = s.mediaPath(input.BackgroundVideo); err != nil {
		return nil, err
	}

	job.Expression = input.Expression
	job.Upload = input.Upload
	// Segments are written beside the output, so each job gets its own
	// directory.
	job.OutputPath = filepath.Join(s.outputDir, job.ID, outputName(job.ID, input.Output))

	if err := s.repo.Save(ctx, job); err != nil {
		return nil, fmt.Errorf("save job: %w", err)
	}

	select {
	case s.queue <- job.ID:
	default:
		_ = s.repo.Delete(ctx, job.ID)
		return nil, ErrQueueFull
	}

	s.logger.Info("render job queued",
		slog.String("job_id", job.ID),
		slog.String("expression", job.Expression),
		slog.Int("duration_seconds", job.DurationSeconds),
		slog.Bool("upload", job.Upload),
	)
	return job.Clone(), nil
}

// GetJob retrieves a job by ID.
func (s *RenderService) GetJob(ctx context.Context, id string) (*Job, error) {
	return s.repo.FindByID(ctx, id)
}

// List returns every known job, oldest first.
func (s *RenderService) List(ctx context.Context) ([]*Job, error) {
	return s.repo.List(ctx)
}

// Run processes queued jobs until ctx is cancelled. Jobs still waiting in
// the queue at that point are marked CANCELLED.
func (s *RenderService) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			s.drain()
			return
		case id := <-s.queue:
			s.process(ctx, id)
		}
	}
}

func (s *RenderService) drain() {
	ctx := context.Background()
	for {
		select {
		case id := <-s.queue:
			job, err := s.repo.FindByID(ctx, id)
			if err != nil {
				continue
			}
			if err := job.Cancel(); err == nil {
				_ = s.repo.Save(ctx, job)
			}
		default:
			return
		}
	}
}

func (s *RenderService) process(ctx context.Context, id string) {
	logger := s.logger.With(slog.String("job_id", id))

	job, err := s.repo.FindByID(ctx, id)
	if err != nil {
		logger.Error("queued job disappeared", slog.String("error", err.Error()))
		return
	}
	if err := job.Start(); err != nil {
		logger.Warn("job not startable", slog.String("status", string(job.GetStatus())))
		return
	}
	s.save(logger, job)

	url, err := s.execute(ctx, job)
	if err != nil {
		if ctx.Err() != nil {
			_ = job.Cancel()
			logger.Warn("render cancelled")
		} else {
			_ = job.Fail(err.Error())
			logger.Error("render failed", slog.String("error", err.Error()))
		}
		s.save(logger, job)
		return
	}

	job.SetOutput(job.OutputPath, url)
	_ = job.Complete()
	s.save(logger, job)
	logger.Info("render completed",
		slog.String("output", job.OutputPath),
		slog.String("url", url),
	)
}

// execute renders the job and publishes it when requested.
func (s *RenderService) execute(ctx context.Context, job *Job) (string, error) {
	in := render.Inputs{
		AlarmPath:       job.AlarmPath,
		BackgroundMusic: job.BackgroundMusic,
		BackgroundVideo: job.BackgroundVideo,
	}

	if job.Expression != "" {
		res, err := s.runner.Run(ctx, job.Expression, job.OutputPath, in)
		if err != nil {
			return "", err
		}
		segments := make([]Segment, 0, len(res.Segments))
		for _, seg := range res.Segments {
			segments = append(segments, Segment{
				Name:            seg.Name,
				DurationSeconds: seg.DurationSeconds,
				Reused:          seg.Reused,
			})
		}
		job.SetSegments(segments)
	} else {
		if _, err := s.renderer.Render(ctx, render.Request{
			Duration: job.DurationSeconds,
			Output:   job.OutputPath,
			Inputs:   in,
		}); err != nil {
			return "", err
		}
	}

	if !job.Upload {
		return "", nil
	}
	url, err := storage.UploadFile(ctx, s.store, job.OutputPath)
	if err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}
	return url, nil
}

func (s *RenderService) save(logger *slog.Logger, job *Job) {
	if err := s.repo.Save(context.Background(), job); err != nil {
		logger.Error("failed to save job", slog.String("error", err.Error()))
	}
}

// mediaPath resolves a submitted media file inside the media directory.
// Empty stays empty.
func (s *RenderService) mediaPath(name string) (string, error) {
	if name == "" {
		return "", nil
	}
	if s.mediaDir == "" {
		return "", fmt.Errorf("%w: media files are not enabled", ErrInvalidInput)
	}
	if !filepath.IsLocal(name) {
		return "", fmt.Errorf("%w: media path %q must be relative to the media directory", ErrInvalidInput, name)
	}
	return filepath.Join(s.mediaDir, name), nil
}

// outputName reduces a requested name to a bare .mp4 file name, defaulting
// to <id>.mp4.
func outputName(id, requested string) string {
	name := filepath.Base(strings.TrimSpace(requested))
	if name == "." || name == string(filepath.Separator) || name == "" {
		return id + ".mp4"
	}
	if filepath.Ext(name) == "" {
		name += ".mp4"
	}
	return name
}
