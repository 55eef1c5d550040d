package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/maauso/countdown-video/internal/bootstrap"
	"github.com/maauso/countdown-video/internal/config"
	"github.com/maauso/countdown-video/internal/expression"
	"github.com/maauso/countdown-video/internal/render"
	"github.com/maauso/countdown-video/internal/storage"
)

var errInvalidDuration = errors.New("timer must be between 0 seconds and 24 hours")

type renderFlags struct {
	minutes         int
	seconds         int
	alarm           string
	output          string
	backgroundMusic string
	backgroundVideo string
	expression      string
	manifest        string
	upload          bool
}

func (f renderFlags) inputs() render.Inputs {
	return render.Inputs{
		AlarmPath:       f.alarm,
		BackgroundMusic: f.backgroundMusic,
		BackgroundVideo: f.backgroundVideo,
	}
}

// duration converts the timer flags to seconds without overflowing.
func duration(minutes, seconds int) (int, error) {
	if minutes < 0 || minutes > expression.MaxMinutes || seconds < 0 || seconds > expression.MaxDurationSeconds {
		return 0, errInvalidDuration
	}
	total := minutes*60 + seconds
	if total > expression.MaxDurationSeconds {
		return 0, errInvalidDuration
	}
	return total, nil
}

func runRender(ctx context.Context, cfg *config.Config, flags renderFlags, logger *slog.Logger) error {
	var seconds int
	if flags.expression == "" {
		var err error
		if seconds, err = duration(flags.minutes, flags.seconds); err != nil {
			return err
		}
	}

	deps, err := bootstrap.NewDependencies(ctx, cfg, logger, bootstrap.Options{Progress: os.Stderr})
	if err != nil {
		return fmt.Errorf("initialize dependencies: %w", err)
	}

	var run *render.RunResult
	if flags.expression != "" {
		run, err = deps.Driver.Run(ctx, flags.expression, flags.output, flags.inputs())
		if err != nil {
			return err
		}
	} else {
		res, err := deps.Orchestrator.Render(ctx, render.Request{
			Duration: seconds,
			Output:   flags.output,
			Inputs:   flags.inputs(),
		})
		if err != nil {
			return err
		}
		run = &render.RunResult{
			Output: res.Output,
			Segments: []render.Segment{{
				Name:            filepath.Base(res.Output),
				Path:            res.Output,
				DurationSeconds: seconds,
				Reused:          res.Reused,
				Elapsed:         res.Elapsed,
			}},
			Elapsed: res.Elapsed,
		}
	}

	probed, err := deps.Encoder.GetMediaDuration(ctx, run.Output)
	if err != nil {
		logger.Warn("could not probe output duration", slog.String("error", err.Error()))
	}
	logger.Info("timer video ready",
		slog.String("output", run.Output),
		slog.Int("segments", len(run.Segments)),
		slog.Float64("duration_seconds", probed),
		slog.Duration("elapsed", run.Elapsed),
	)

	var url string
	if flags.upload {
		url, err = storage.UploadFile(ctx, deps.Storage, run.Output)
		if err != nil {
			return fmt.Errorf("upload %s: %w", run.Output, err)
		}
		logger.Info("timer video uploaded", slog.String("url", url))
	}

	if flags.manifest != "" {
		m := render.NewManifest(run, deps.Settings, flags.inputs())
		m.URL = url
		m.ProbedSeconds = probed
		if err := render.WriteManifest(flags.manifest, m); err != nil {
			return err
		}
		logger.Debug("manifest written", slog.String("path", flags.manifest))
	}
	return nil
}
