// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lmittmann/tint"
	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrInvalidConfig is returned when a loaded value fails validation.
	ErrInvalidConfig = errors.New("config: invalid value")
	// ErrOddDimensions is returned when the canvas cannot be encoded as yuv420p.
	ErrOddDimensions = errors.New("config: TIMER_WIDTH and TIMER_HEIGHT must be even")
)

// Config holds all configuration for the application.
type Config struct {
	// Working directories
	FramesDir string `env:"TIMER_FRAMES_DIR, default=timer_frames" json:"frames_dir" validate:"required"`
	SoundsDir string `env:"TIMER_SOUNDS_DIR, default=sounds" json:"sounds_dir" validate:"required"`

	// Canvas and timing
	Width          int `env:"TIMER_WIDTH, default=1280" json:"width" validate:"min=16,max=7680"`
	Height         int `env:"TIMER_HEIGHT, default=720" json:"height" validate:"min=16,max=4320"`
	FPS            int `env:"TIMER_FPS, default=24" json:"fps" validate:"min=1,max=120"`
	AlarmSeconds   int `env:"TIMER_ALARM_SECONDS, default=5" json:"alarm_seconds" validate:"min=1,max=600"`
	AlarmFrequency int `env:"TIMER_ALARM_FREQUENCY, default=1000" json:"alarm_frequency" validate:"min=20,max=20000"`

	// Typography
	FontPath string  `env:"TIMER_FONT_PATH, default=/usr/share/fonts/truetype/dejavu/DejaVuSans-Bold.ttf" json:"font_path"`
	FontSize float64 `env:"TIMER_FONT_SIZE, default=120" json:"font_size" validate:"gt=0"`

	// Encoding
	FFmpegPath           string `env:"FFMPEG_PATH" json:"ffmpeg_path,omitempty"`
	VideoCodec           string `env:"TIMER_VIDEO_CODEC, default=libx264" json:"video_codec" validate:"oneof=libx264 h264_nvenc h264_videotoolbox"`
	Quality              int    `env:"TIMER_QUALITY, default=23" json:"quality" validate:"min=1,max=200"`
	RefreshOverlayFrames bool   `env:"TIMER_REFRESH_OVERLAY_FRAMES, default=false" json:"refresh_overlay_frames"`

	// Server settings
	Port      int    `env:"PORT, default=8080" json:"port" validate:"min=1,max=65535"`
	OutputDir string `env:"TIMER_OUTPUT_DIR, default=videos" json:"output_dir" validate:"required"`
	QueueSize int    `env:"TIMER_QUEUE_SIZE, default=16" json:"queue_size" validate:"min=1,max=1024"`
	// MediaDir holds the alarm and background files HTTP clients may name.
	// Empty disables them.
	MediaDir  string `env:"TIMER_MEDIA_DIR, default=media" json:"media_dir"`

	// Optional S3 settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=color" json:"log_format" validate:"oneof=color text json"` // "color", "text" or "json"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`                                      // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// Load reads configuration from environment variables using go-envconfig
// and validates the result.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks every field against its validate tag.
func (c *Config) Validate() error {
	c.LogFormat = strings.ToLower(c.LogFormat)
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.Width%2 != 0 || c.Height%2 != 0 {
		return ErrOddDimensions
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// "color" writes tinted, human-readable lines to stderr, "json" writes JSON
// and anything else falls back to slog's text handler.
func (c *Config) NewLogger() *slog.Logger {
	return c.newLogger(os.Stderr)
}

func (c *Config) newLogger(w io.Writer) *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	switch strings.ToLower(c.LogFormat) {
	case "json":
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	case "text":
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	default:
		handler = tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{FramesDir: %s, SoundsDir: %s, Size: %dx%d, FPS: %d, AlarmSeconds: %d, VideoCodec: %s, Port: %d, S3Bucket: %s, S3Region: %s, LogFormat: %s, LogLevel: %s}",
		c.FramesDir,
		c.SoundsDir,
		c.Width,
		c.Height,
		c.FPS,
		c.AlarmSeconds,
		c.VideoCodec,
		c.Port,
		c.S3Bucket,
		c.S3Region,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
