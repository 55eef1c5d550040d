package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/maauso/countdown-video/internal/expression"
	"github.com/maauso/countdown-video/internal/storage"
)

// ErrOutputCollision is returned when a segment would overwrite the final
// output file.
var ErrOutputCollision = errors.New("render: segment name collides with output")

// SegmentRenderer renders one segment. Implemented by Orchestrator.
type SegmentRenderer interface {
	Render(ctx context.Context, req Request) (*Result, error)
}

// Concatenator joins segment files. Implemented by media.FFmpegEncoder.
type Concatenator interface {
	Concat(ctx context.Context, inputs []string, output string) error
}

// Segment describes one rendered segment of a run.
type Segment struct {
	Name            string        `yaml:"name"`
	Path            string        `yaml:"path"`
	DurationSeconds int           `yaml:"duration_seconds"`
	Reused          bool          `yaml:"reused"`
	Elapsed         time.Duration `yaml:"elapsed"`
}

// RunResult describes a finished multi-timer run.
type RunResult struct {
	Expression string
	Output     string
	Segments   []Segment
	Elapsed    time.Duration
}

// Driver renders every timer of an expression and concatenates them.
type Driver struct {
	renderer SegmentRenderer
	concat   Concatenator
	store    storage.Storage
	logger   *slog.Logger
}

// NewDriver creates a new Driver.
func NewDriver(renderer SegmentRenderer, concat Concatenator, store storage.Storage, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{
		renderer: renderer,
		concat:   concat,
		store:    store,
		logger:   logger,
	}
}

// Run compiles expr, renders each timer in order next to output and joins
// them into output. Segments are deleted after a successful join and kept
// when the join fails.
func (d *Driver) Run(ctx context.Context, expr, output string, in Inputs) (*RunResult, error) {
	timers, err := expression.Parse(expr)
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(output)
	paths := make([]string, len(timers))
	for i, timer := range timers {
		paths[i] = filepath.Join(dir, timer.OutputName)
		if filepath.Clean(paths[i]) == filepath.Clean(output) {
			return nil, fmt.Errorf("%w: %s", ErrOutputCollision, output)
		}
	}

	start := time.Now()
	d.logger.Info("rendering timer sequence",
		slog.String("expression", expr),
		slog.Int("segments", len(timers)),
		slog.String("output", output),
	)

	result := &RunResult{Expression: expr, Output: output}
	for i, timer := range timers {
		res, err := d.renderer.Render(ctx, Request{
			Duration: timer.DurationSeconds,
			Output:   paths[i],
			Inputs:   in,
		})
		if err != nil {
			return nil, fmt.Errorf("segment %s: %w", timer.OutputName, err)
		}
		result.Segments = append(result.Segments, Segment{
			Name:            timer.OutputName,
			Path:            paths[i],
			DurationSeconds: timer.DurationSeconds,
			Reused:          res.Reused,
			Elapsed:         res.Elapsed,
		})
	}

	if err := d.concat.Concat(ctx, paths, output); err != nil {
		d.logger.Error("concatenation failed, keeping segments",
			slog.Any("segments", paths),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("concatenate segments: %w", err)
	}

	if err := d.store.CleanupTemp(context.WithoutCancel(ctx), uniq(paths)); err != nil {
		d.logger.Warn("failed to remove segments",
			slog.String("error", err.Error()),
		)
	}

	result.Elapsed = time.Since(start)
	d.logger.Info("timer sequence rendered",
		slog.String("output", output),
		slog.Duration("elapsed", result.Elapsed),
	)
	return result, nil
}

func uniq(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}
