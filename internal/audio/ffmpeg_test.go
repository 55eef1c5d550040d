package audio

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"
)

// checkFFmpeg skips test if ffmpeg is not available.
func checkFFmpeg(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not found in PATH, skipping test")
	}
}

// createTestTone writes a mono sine tone of the given length.
func createTestTone(t *testing.T, outputPath string, durationSec float64) {
	t.Helper()

	cmd := exec.Command("ffmpeg", "-y",
		"-f", "lavfi", "-i", fmt.Sprintf("sine=frequency=440:duration=%.3f", durationSec),
		"-ar", "22050", "-ac", "1",
		outputPath,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("failed to create test tone: %v\noutput: %s", err, output)
	}
}

func TestNewFFmpegMixer(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		m := NewFFmpegMixer("", 0, nil)
		if m.ffmpegPath != "ffmpeg" {
			t.Errorf("expected default path 'ffmpeg', got %q", m.ffmpegPath)
		}
		if m.frequency != DefaultFrequency {
			t.Errorf("expected frequency %d, got %d", DefaultFrequency, m.frequency)
		}
		if m.logger == nil {
			t.Error("expected default logger")
		}
	})

	t.Run("custom values", func(t *testing.T) {
		m := NewFFmpegMixer("/opt/ffmpeg", 880, nil)
		if m.ffmpegPath != "/opt/ffmpeg" {
			t.Errorf("expected custom path, got %q", m.ffmpegPath)
		}
		if m.frequency != 880 {
			t.Errorf("expected frequency 880, got %d", m.frequency)
		}
	})
}

func TestGeneratedAlarm(t *testing.T) {
	for path, want := range map[string]bool{
		"":                true,
		"alarm.mp3":       true,
		"sounds/bell.mp3": false,
		"./alarm.mp3":     false,
	} {
		if got := GeneratedAlarm(path); got != want {
			t.Errorf("GeneratedAlarm(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestBuildArgs(t *testing.T) {
	m := NewFFmpegMixer("", 1000, nil)

	t.Run("silence and generated tone", func(t *testing.T) {
		args := m.buildArgs(MixOpts{Duration: 90, AlarmSeconds: 5}, "out.wav")
		joined := strings.Join(args, " ")

		for _, want := range []string{
			"-f lavfi -i anullsrc=r=44100:cl=stereo",
			"-f lavfi -i sine=frequency=1000:sample_rate=44100",
			"[0:a]atrim=end=90,",
			"[1:a]atrim=end=5,",
			"concat=n=2:v=0:a=1[out]",
			"-map [out] -c:a pcm_s16le out.wav",
		} {
			if !strings.Contains(joined, want) {
				t.Errorf("args missing %q: %s", want, joined)
			}
		}
		if slices.Contains(args, "-stream_loop") {
			t.Errorf("did not expect -stream_loop for generated inputs: %s", joined)
		}
	})

	t.Run("music and alarm file loop", func(t *testing.T) {
		args := m.buildArgs(MixOpts{
			Duration:        30,
			AlarmSeconds:    3,
			AlarmPath:       "bell.wav",
			BackgroundMusic: "music.mp3",
		}, "out.wav")
		joined := strings.Join(args, " ")

		if !strings.Contains(joined, "-stream_loop -1 -i music.mp3 -stream_loop -1 -i bell.wav") {
			t.Errorf("expected looped music then alarm inputs: %s", joined)
		}
	})

	t.Run("zero duration uses alarm only", func(t *testing.T) {
		args := m.buildArgs(MixOpts{Duration: 0, AlarmSeconds: 5, BackgroundMusic: "music.mp3"}, "out.wav")
		joined := strings.Join(args, " ")

		if strings.Contains(joined, "music.mp3") || strings.Contains(joined, "anullsrc") {
			t.Errorf("expected no background input: %s", joined)
		}
		if !strings.Contains(joined, "[0:a]atrim=end=5,") {
			t.Errorf("expected alarm as first input: %s", joined)
		}
		if strings.Contains(joined, "concat") {
			t.Errorf("did not expect concat: %s", joined)
		}
	})
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		want    float64
		wantErr bool
	}{
		{"centiseconds", "  Duration: 00:01:35.50, start: 0.000000", 95.5, false},
		{"hours", "Duration: 01:00:00.00, bitrate", 3600, false},
		{"milliseconds", "Duration: 00:00:05.125", 5.125, false},
		{"missing", "Input #0, wav, from 'x.wav':", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseDuration(tt.output)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPrepare_Validation(t *testing.T) {
	m := NewFFmpegMixer("", 0, nil)
	ctx := context.Background()
	dir := t.TempDir()

	if _, err := m.Prepare(ctx, dir, MixOpts{Duration: -1, AlarmSeconds: 5}); !errors.Is(err, ErrInvalidDuration) {
		t.Errorf("expected ErrInvalidDuration, got %v", err)
	}
	if _, err := m.Prepare(ctx, dir, MixOpts{Duration: 5, AlarmSeconds: 0}); !errors.Is(err, ErrInvalidDuration) {
		t.Errorf("expected ErrInvalidDuration, got %v", err)
	}
	if _, err := m.Prepare(ctx, dir, MixOpts{Duration: 5, AlarmSeconds: 5, AlarmPath: "/no/such/bell.wav"}); !errors.Is(err, ErrInputNotFound) {
		t.Errorf("expected ErrInputNotFound for alarm, got %v", err)
	}
	if _, err := m.Prepare(ctx, dir, MixOpts{Duration: 5, AlarmSeconds: 5, BackgroundMusic: "/no/such/music.mp3"}); !errors.Is(err, ErrInputNotFound) {
		t.Errorf("expected ErrInputNotFound for music, got %v", err)
	}
}

func TestPrepare_Length(t *testing.T) {
	checkFFmpeg(t)

	tmpDir := t.TempDir()
	music := filepath.Join(tmpDir, "music.wav")
	bell := filepath.Join(tmpDir, "bell.wav")
	createTestTone(t, music, 1.5) // shorter than the countdown, must loop
	createTestTone(t, bell, 10)   // longer than the alarm, must be clipped

	tests := []struct {
		name string
		opts MixOpts
	}{
		{"silence and tone", MixOpts{Duration: 3, AlarmSeconds: 2, FrameRate: 24}},
		{"looped music and clipped alarm file", MixOpts{Duration: 4, AlarmSeconds: 2, AlarmPath: bell, BackgroundMusic: music, FrameRate: 24}},
		{"alarm only", MixOpts{Duration: 0, AlarmSeconds: 2, FrameRate: 24}},
	}

	m := NewFFmpegMixer("", 0, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			dir := filepath.Join(tmpDir, strings.ReplaceAll(tt.name, " ", "_"))
			out, err := m.Prepare(ctx, dir, tt.opts)
			if err != nil {
				t.Fatalf("Prepare failed: %v", err)
			}
			if _, err := os.Stat(out); err != nil {
				t.Fatalf("output not created: %v", err)
			}

			got, err := m.Duration(ctx, out)
			if err != nil {
				t.Fatalf("Duration failed: %v", err)
			}
			want := float64(tt.opts.Duration + tt.opts.AlarmSeconds)
			if math.Abs(got-want) > 1.0/24 {
				t.Errorf("duration = %.3f, want %.3f", got, want)
			}
		})
	}
}
