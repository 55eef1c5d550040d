// Package main provides the countdown command: it renders countdown timer
// videos from the command line and serves the render-job API.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/maauso/countdown-video/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		slog.Error("countdown failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var flags renderFlags

	root := &cobra.Command{
		Use:   "countdown",
		Short: "Render countdown timer videos",
		Long: `countdown renders MM:SS countdown videos that end with an alarm.

A single timer is set with --minutes and --seconds. An expression such as
m25m5x2m15 renders one timer per term and joins them into a single video;
xN repeats the term before it.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			slog.SetDefault(cfg.NewLogger())
			cmd.SetContext(withConfig(cmd.Context(), cfg))
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRender(cmd.Context(), configFrom(cmd.Context()), flags, slog.Default())
		},
	}

	f := root.Flags()
	f.IntVarP(&flags.minutes, "minutes", "m", 0, "timer minutes")
	f.IntVarP(&flags.seconds, "seconds", "s", 0, "timer seconds")
	f.StringVarP(&flags.alarm, "alarm", "a", "alarm.mp3", "alarm sound file; the default plays a generated tone")
	f.StringVarP(&flags.output, "outputfile", "o", "timer.mp4", "output video file")
	f.StringVarP(&flags.backgroundMusic, "backgroundmusic", "b", "", "background music file, looped and trimmed")
	f.StringVarP(&flags.backgroundVideo, "backgroundvideo", "v", "", "background video file, looped and trimmed")
	f.StringVarP(&flags.expression, "expression", "e", "", "timer expression, e.g. m25m5x2m15; overrides --minutes and --seconds")
	f.StringVar(&flags.manifest, "manifest", "", "write a YAML run manifest to this path")
	f.BoolVar(&flags.upload, "upload", false, "upload the finished video to S3")

	root.AddCommand(newServeCmd())
	return root
}

type configKey struct{}

func withConfig(ctx context.Context, cfg *config.Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

func configFrom(ctx context.Context) *config.Config {
	cfg, _ := ctx.Value(configKey{}).(*config.Config)
	return cfg
}
