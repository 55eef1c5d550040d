package config

import (
	"bytes"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"TIMER_FRAMES_DIR",
	"TIMER_SOUNDS_DIR",
	"TIMER_WIDTH",
	"TIMER_HEIGHT",
	"TIMER_FPS",
	"TIMER_ALARM_SECONDS",
	"TIMER_ALARM_FREQUENCY",
	"TIMER_FONT_PATH",
	"TIMER_FONT_SIZE",
	"TIMER_VIDEO_CODEC",
	"TIMER_QUALITY",
	"TIMER_REFRESH_OVERLAY_FRAMES",
	"FFMPEG_PATH",
	"PORT",
	"TIMER_OUTPUT_DIR",
	"TIMER_QUEUE_SIZE",
	"TIMER_MEDIA_DIR",
	"S3_BUCKET",
	"S3_REGION",
	"S3_ENDPOINT",
	"AWS_ACCESS_KEY_ID",
	"AWS_SECRET_ACCESS_KEY",
	"LOG_FORMAT",
	"LOG_LEVEL",
}

// clearEnv unsets every variable Load reads and restores them after the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		if val, ok := os.LookupEnv(key); ok {
			t.Cleanup(func() { _ = os.Setenv(key, val) })
		}
		_ = os.Unsetenv(key)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "timer_frames", cfg.FramesDir)
	assert.Equal(t, "sounds", cfg.SoundsDir)
	assert.Equal(t, 1280, cfg.Width)
	assert.Equal(t, 720, cfg.Height)
	assert.Equal(t, 24, cfg.FPS)
	assert.Equal(t, 5, cfg.AlarmSeconds)
	assert.Equal(t, 1000, cfg.AlarmFrequency)
	assert.Equal(t, "/usr/share/fonts/truetype/dejavu/DejaVuSans-Bold.ttf", cfg.FontPath)
	assert.InDelta(t, 120.0, cfg.FontSize, 0.001)
	assert.Equal(t, "libx264", cfg.VideoCodec)
	assert.Equal(t, 23, cfg.Quality)
	assert.False(t, cfg.RefreshOverlayFrames)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "videos", cfg.OutputDir)
	assert.Equal(t, 16, cfg.QueueSize)
	assert.Equal(t, "media", cfg.MediaDir)
	assert.Equal(t, "color", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.S3Enabled())
}

func TestLoad_CustomValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("TIMER_FRAMES_DIR", "/var/cache/frames")
	t.Setenv("TIMER_SOUNDS_DIR", "/tmp/sounds")
	t.Setenv("TIMER_WIDTH", "1920")
	t.Setenv("TIMER_HEIGHT", "1080")
	t.Setenv("TIMER_FPS", "30")
	t.Setenv("TIMER_ALARM_SECONDS", "3")
	t.Setenv("TIMER_VIDEO_CODEC", "h264_nvenc")
	t.Setenv("TIMER_REFRESH_OVERLAY_FRAMES", "true")
	t.Setenv("S3_BUCKET", "my-bucket")
	t.Setenv("S3_REGION", "us-east-1")
	t.Setenv("AWS_ACCESS_KEY_ID", "access-key")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "secret-key")
	t.Setenv("LOG_FORMAT", "JSON")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/var/cache/frames", cfg.FramesDir)
	assert.Equal(t, "/tmp/sounds", cfg.SoundsDir)
	assert.Equal(t, 1920, cfg.Width)
	assert.Equal(t, 1080, cfg.Height)
	assert.Equal(t, 30, cfg.FPS)
	assert.Equal(t, 3, cfg.AlarmSeconds)
	assert.Equal(t, "h264_nvenc", cfg.VideoCodec)
	assert.True(t, cfg.RefreshOverlayFrames)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.S3Enabled())
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"non-numeric fps", "TIMER_FPS", "fast"},
		{"zero fps", "TIMER_FPS", "0"},
		{"unknown codec", "TIMER_VIDEO_CODEC", "vp9"},
		{"unknown log format", "LOG_FORMAT", "xml"},
		{"odd width", "TIMER_WIDTH", "1281"},
		{"zero alarm", "TIMER_ALARM_SECONDS", "0"},
		{"zero queue", "TIMER_QUEUE_SIZE", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			FramesDir:      "timer_frames",
			SoundsDir:      "sounds",
			Width:          1280,
			Height:         720,
			FPS:            24,
			AlarmSeconds:   5,
			AlarmFrequency: 1000,
			FontSize:       120,
			VideoCodec:     "libx264",
			Quality:        23,
			Port:           8080,
			OutputDir:      "videos",
			QueueSize:      16,
			LogFormat:      "color",
		}
	}

	t.Run("valid config", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("odd height", func(t *testing.T) {
		cfg := valid()
		cfg.Height = 721
		assert.ErrorIs(t, cfg.Validate(), ErrOddDimensions)
	})

	t.Run("missing frames dir", func(t *testing.T) {
		cfg := valid()
		cfg.FramesDir = ""
		assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
	})
}

func TestConfig_S3Enabled(t *testing.T) {
	tests := []struct {
		name     string
		bucket   string
		region   string
		expected bool
	}{
		{"both set", "bucket", "region", true},
		{"only bucket", "bucket", "", false},
		{"only region", "", "region", false},
		{"neither set", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				S3Bucket: tt.bucket,
				S3Region: tt.region,
			}
			assert.Equal(t, tt.expected, cfg.S3Enabled())
		})
	}
}

func TestConfig_String(t *testing.T) {
	cfg := &Config{
		FramesDir:          "/frames",
		Width:              1280,
		Height:             720,
		Port:               8080,
		S3Bucket:           "bucket",
		S3Region:           "region",
		AWSSecretAccessKey: "secret-key",
		LogFormat:          "json",
		LogLevel:           "info",
	}

	str := cfg.String()

	assert.Contains(t, str, "8080")
	assert.Contains(t, str, "/frames")
	assert.Contains(t, str, "1280x720")
	assert.NotContains(t, str, "secret-key")
}

func TestConfig_NewLogger(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		cfg := &Config{LogFormat: "json", LogLevel: "info"}

		cfg.newLogger(&buf).Info("frames ready", slog.Int("count", 3))

		assert.Contains(t, buf.String(), `"msg":"frames ready"`)
		assert.Contains(t, buf.String(), `"count":3`)
	})

	t.Run("text respects level", func(t *testing.T) {
		var buf bytes.Buffer
		cfg := &Config{LogFormat: "text", LogLevel: "warn"}

		logger := cfg.newLogger(&buf)
		logger.Info("hidden")
		logger.Warn("shown")

		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "shown")
	})

	t.Run("color", func(t *testing.T) {
		var buf bytes.Buffer
		cfg := &Config{LogFormat: "color", LogLevel: "debug"}

		cfg.newLogger(&buf).Debug("rendering segment")

		assert.Contains(t, buf.String(), "rendering segment")
		assert.Contains(t, buf.String(), "\x1b[")
	})
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLogLevel(tt.input))
		})
	}
}
