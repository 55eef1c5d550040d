package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/maauso/countdown-video/internal/media"
)

const (
	sampleRate = 44100
	// OutputName is the file name of the prepared soundtrack.
	OutputName = "audio_with_alarm.wav"
	// DefaultFrequency is the pitch of the generated alarm tone in Hz.
	DefaultFrequency = 1000
)

var durationRe = regexp.MustCompile(`Duration:\s*(\d+):(\d+):(\d+)\.(\d+)`)

// FFmpegMixer implements Mixer using the ffmpeg CLI.
type FFmpegMixer struct {
	ffmpegPath string
	frequency  int
	logger     *slog.Logger
}

// NewFFmpegMixer creates a new FFmpegMixer.
// If ffmpegPath is empty, it defaults to "ffmpeg" (found in PATH). A
// non-positive frequency selects DefaultFrequency.
func NewFFmpegMixer(ffmpegPath string, frequency int, logger *slog.Logger) *FFmpegMixer {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if frequency <= 0 {
		frequency = DefaultFrequency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FFmpegMixer{ffmpegPath: ffmpegPath, frequency: frequency, logger: logger}
}

// Verify interface implementation at compile time.
var _ Mixer = (*FFmpegMixer)(nil)

// Prepare implements Mixer.Prepare. Background and alarm are trimmed to
// their lengths, normalised to 16-bit 44.1 kHz stereo, concatenated and
// written as PCM WAV.
func (m *FFmpegMixer) Prepare(ctx context.Context, dir string, opts MixOpts) (string, error) {
	if opts.Duration < 0 || opts.AlarmSeconds <= 0 {
		return "", fmt.Errorf("%w: duration=%d, alarm_seconds=%d", ErrInvalidDuration, opts.Duration, opts.AlarmSeconds)
	}
	if !GeneratedAlarm(opts.AlarmPath) {
		if err := checkInput(opts.AlarmPath); err != nil {
			return "", fmt.Errorf("alarm: %w", err)
		}
	}
	if opts.BackgroundMusic != "" && opts.Duration > 0 {
		if err := checkInput(opts.BackgroundMusic); err != nil {
			return "", fmt.Errorf("background music: %w", err)
		}
	}

	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	output := filepath.Join(dir, OutputName)
	if err := m.run(ctx, m.buildArgs(opts, output)); err != nil {
		return "", fmt.Errorf("mix audio: %w", err)
	}

	m.checkLength(ctx, output, opts)
	return output, nil
}

// buildArgs assembles the ffmpeg invocation for opts.
func (m *FFmpegMixer) buildArgs(opts MixOpts, output string) []string {
	args := []string{"-y", "-hide_banner"}

	const norm = "asetpts=N/SR/TB,aformat=sample_fmts=s16:sample_rates=44100:channel_layouts=stereo"

	var filter string
	if opts.Duration > 0 {
		if opts.BackgroundMusic != "" {
			args = append(args, "-stream_loop", "-1", "-i", opts.BackgroundMusic)
		} else {
			args = append(args, "-f", "lavfi", "-i", fmt.Sprintf("anullsrc=r=%d:cl=stereo", sampleRate))
		}
		filter = fmt.Sprintf("[0:a]atrim=end=%d,%s[bg];[1:a]atrim=end=%d,%s[al];[bg][al]concat=n=2:v=0:a=1[out]",
			opts.Duration, norm, opts.AlarmSeconds, norm)
	} else {
		filter = fmt.Sprintf("[0:a]atrim=end=%d,%s[out]", opts.AlarmSeconds, norm)
	}

	if GeneratedAlarm(opts.AlarmPath) {
		args = append(args, "-f", "lavfi", "-i", fmt.Sprintf("sine=frequency=%d:sample_rate=%d", m.frequency, sampleRate))
	} else {
		args = append(args, "-stream_loop", "-1", "-i", opts.AlarmPath)
	}

	return append(args,
		"-filter_complex", filter,
		"-map", "[out]",
		"-c:a", "pcm_s16le",
		output,
	)
}

// checkLength logs a warning when the prepared track deviates from the
// expected length by more than one video frame.
func (m *FFmpegMixer) checkLength(ctx context.Context, path string, opts MixOpts) {
	got, err := m.Duration(ctx, path)
	if err != nil {
		m.logger.Warn("could not probe prepared audio",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return
	}

	fps := opts.FrameRate
	if fps <= 0 {
		fps = 24
	}
	expected := float64(opts.Duration + opts.AlarmSeconds)
	if math.Abs(got-expected) > 1/float64(fps) {
		m.logger.Warn("prepared audio length deviates from timer",
			slog.Float64("expected_seconds", expected),
			slog.Float64("actual_seconds", got),
		)
	}
}

// Duration returns the duration of an audio file in seconds.
func (m *FFmpegMixer) Duration(ctx context.Context, path string) (float64, error) {
	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, m.ffmpegPath,
		"-i", path,
		"-hide_banner",
		"-f", "null", "-",
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	// ffmpeg reports the input duration on stderr; the exit status is irrelevant here.
	_ = cmd.Run()
	if ctx.Err() != nil {
		return 0, fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
	}

	return parseDuration(stderr.String())
}

// parseDuration extracts "Duration: HH:MM:SS.frac" from ffmpeg output.
func parseDuration(output string) (float64, error) {
	matches := durationRe.FindStringSubmatch(output)
	if len(matches) < 5 {
		return 0, errors.New("could not parse duration from ffmpeg output")
	}

	hours, _ := strconv.ParseFloat(matches[1], 64)
	minutes, _ := strconv.ParseFloat(matches[2], 64)
	seconds, _ := strconv.ParseFloat(matches[3], 64)
	frac, _ := strconv.ParseFloat("0."+matches[4], 64)

	return hours*3600 + minutes*60 + seconds + frac, nil
}

func (m *FFmpegMixer) run(ctx context.Context, args []string) error {
	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, m.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return &media.FFmpegError{Args: args, Stderr: stderr.String(), Err: err}
	}
	return nil
}

func checkInput(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrInputNotFound, path)
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrInputNotFound, path)
	}
	return nil
}
