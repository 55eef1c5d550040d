package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/maauso/countdown-video/internal/bootstrap"
	"github.com/maauso/countdown-video/internal/config"
	"github.com/maauso/countdown-video/internal/server"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP render-job API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), configFrom(cmd.Context()), slog.Default())
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("starting countdown server",
		slog.Int("port", cfg.Port),
		slog.String("log_format", cfg.LogFormat),
		slog.String("log_level", cfg.LogLevel),
		slog.String("frames_dir", cfg.FramesDir),
		slog.String("output_dir", cfg.OutputDir),
		slog.String("media_dir", cfg.MediaDir),
		slog.Bool("s3_enabled", cfg.S3Enabled()),
	)

	if err := os.MkdirAll(cfg.OutputDir, 0750); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	deps, err := bootstrap.NewDependencies(ctx, cfg, logger, bootstrap.Options{})
	if err != nil {
		return fmt.Errorf("initialize dependencies: %w", err)
	}

	workerCtx, stopWorker := context.WithCancel(context.WithoutCancel(ctx))
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		deps.Jobs.Run(workerCtx)
	}()
	defer func() {
		stopWorker()
		wg.Wait()
		logger.Info("render worker stopped")
	}()

	handlers := server.NewHandlers(deps.Jobs, logger)
	router := server.NewRouter(handlers, logger, server.DefaultConfig())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      300 * time.Second, // video downloads
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening",
			slog.String("addr", srv.Addr),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server failed: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Info("shutting down server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	logger.Info("server stopped gracefully")
	return nil
}
