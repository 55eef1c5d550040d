package media

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// Static errors for media operations.
var (
	// ErrInvalidDimensions is returned when the provided dimensions are not positive.
	ErrInvalidDimensions = errors.New("invalid dimensions: width and height must be positive")
	// ErrNoVideoPaths is returned when no video paths are provided for joining.
	ErrNoVideoPaths = errors.New("no video paths provided")
	// ErrNoFrames is returned when a composition has no frames.
	ErrNoFrames = errors.New("no frames provided")
	// ErrInvalidFPS is returned when the frame rate is not positive.
	ErrInvalidFPS = errors.New("invalid frame rate: must be positive")
	// ErrUnsupportedCodec is returned for video codecs the encoder has no quality mapping for.
	ErrUnsupportedCodec = errors.New("unsupported video codec")
	// ErrFFprobeExecution is returned when ffprobe command fails.
	ErrFFprobeExecution = errors.New("ffprobe execution failed")
)

// ListName is the file name of the ffconcat frame list written by Compose.
const ListName = "frames.ffconcat"

// EncodeOpts selects the video codec and its quality setting.
type EncodeOpts struct {
	// Codec is one of libx264, h264_nvenc or h264_videotoolbox.
	Codec string
	// Quality is the CRF for libx264, the CQ for h264_nvenc and a bitrate
	// in units of 100 kbit/s for h264_videotoolbox.
	Quality int
}

// FFmpegEncoder implements Encoder using the ffmpeg CLI.
type FFmpegEncoder struct {
	// ffmpegPath is the path to the ffmpeg binary. Defaults to "ffmpeg".
	ffmpegPath  string
	ffprobePath string
	opts        EncodeOpts
}

// Verify interface implementation at compile time.
var _ Encoder = (*FFmpegEncoder)(nil)

// NewFFmpegEncoder creates a new FFmpegEncoder.
// If ffmpegPath is empty, it defaults to "ffmpeg" (found via PATH). ffprobe
// is looked up next to ffmpeg when ffmpegPath names a directory.
func NewFFmpegEncoder(ffmpegPath string, opts EncodeOpts) (*FFmpegEncoder, error) {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if opts.Codec == "" {
		opts.Codec = "libx264"
	}
	if _, err := qualityArgs(opts); err != nil {
		return nil, err
	}

	ffprobePath := "ffprobe"
	if dir := filepath.Dir(ffmpegPath); dir != "." {
		ffprobePath = filepath.Join(dir, "ffprobe")
	}

	return &FFmpegEncoder{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath, opts: opts}, nil
}

// qualityArgs maps the configured quality to codec-specific flags.
func qualityArgs(opts EncodeOpts) ([]string, error) {
	q := strconv.Itoa(opts.Quality)
	switch opts.Codec {
	case "libx264":
		return []string{"-crf", q, "-preset", "medium"}, nil
	case "h264_nvenc":
		return []string{"-cq", q}, nil
	case "h264_videotoolbox":
		return []string{"-b:v", fmt.Sprintf("%dk", opts.Quality*100)}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedCodec, opts.Codec)
	}
}

// Compose writes the frame sequence as an ffconcat list. Consecutive
// repeats of a frame are collapsed into one entry held for count/FPS
// seconds, so a ten-minute countdown lists about six hundred images rather
// than one per output frame.
func (p *FFmpegEncoder) Compose(ctx context.Context, dir string, opts ComposeOpts) (*Composition, error) {
	if len(opts.Frames) == 0 {
		return nil, ErrNoFrames
	}
	if opts.FPS <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidFPS, opts.FPS)
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("%w: width=%d, height=%d", ErrInvalidDimensions, opts.Width, opts.Height)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}

	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create work directory: %w", err)
	}

	listPath := filepath.Join(dir, ListName)
	f, err := os.Create(listPath) // #nosec G304 - dir is a work directory owned by the caller
	if err != nil {
		return nil, fmt.Errorf("create frame list: %w", err)
	}
	defer func() { _ = f.Close() }()

	w := bufio.NewWriter(f)
	if err := writeFrameList(w, opts.Frames, opts.FPS); err != nil {
		return nil, fmt.Errorf("write frame list: %w", err)
	}
	if err := w.Flush(); err != nil {
		return nil, fmt.Errorf("write frame list: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close frame list: %w", err)
	}

	return &Composition{
		ListPath:        listPath,
		Duration:        float64(len(opts.Frames)) / float64(opts.FPS),
		FPS:             opts.FPS,
		Width:           opts.Width,
		Height:          opts.Height,
		BackgroundVideo: opts.BackgroundVideo,
	}, nil
}

// writeFrameList writes run-length collapsed ffconcat entries. The concat
// demuxer ignores the duration of the final entry, so the last file is
// listed once more.
func writeFrameList(w io.Writer, frames []string, fps int) error {
	if _, err := io.WriteString(w, "ffconcat version 1.0\n"); err != nil {
		return err
	}

	var last string
	for i := 0; i < len(frames); {
		j := i
		for j < len(frames) && frames[j] == frames[i] {
			j++
		}
		entry, err := quotePath(frames[i])
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "file %s\nduration %s\n", entry, formatSeconds(float64(j-i)/float64(fps))); err != nil {
			return err
		}
		last = entry
		i = j
	}

	_, err := fmt.Fprintf(w, "file %s\n", last)
	return err
}

// quotePath returns the absolute path quoted for a concat list.
func quotePath(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("get absolute path for %s: %w", path, err)
	}
	return "'" + strings.ReplaceAll(absPath, "'", `'\''`) + "'", nil
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 6, 64)
}

// Encode implements Encoder.Encode.
func (p *FFmpegEncoder) Encode(ctx context.Context, c *Composition, audioPath, output string) error {
	if c == nil {
		return ErrNoFrames
	}
	args, err := p.encodeArgs(c, audioPath, output)
	if err != nil {
		return err
	}
	return p.runFFmpeg(ctx, args)
}

func (p *FFmpegEncoder) encodeArgs(c *Composition, audioPath, output string) ([]string, error) {
	quality, err := qualityArgs(p.opts)
	if err != nil {
		return nil, err
	}

	args := []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", c.ListPath,
	}

	var filter string
	audioInput := 1
	if c.BackgroundVideo != "" {
		args = append(args, "-stream_loop", "-1", "-i", c.BackgroundVideo)
		audioInput = 2
		filter = fmt.Sprintf(
			"[1:v]scale=%[1]d:%[2]d:force_original_aspect_ratio=increase,crop=%[1]d:%[2]d,setsar=1,fps=%[3]d,trim=duration=%[4]s,setpts=PTS-STARTPTS[bg];"+
				"[0:v]fps=%[3]d,format=rgba[fg];"+
				"[bg][fg]overlay=0:0:shortest=1,format=yuv420p[v]",
			c.Width, c.Height, c.FPS, formatSeconds(c.Duration))
	} else {
		filter = fmt.Sprintf("[0:v]fps=%d,format=yuv420p[v]", c.FPS)
	}

	args = append(args,
		"-i", audioPath,
		"-filter_complex", filter,
		"-map", "[v]",
		"-map", fmt.Sprintf("%d:a", audioInput),
		"-t", formatSeconds(c.Duration),
		"-c:v", p.opts.Codec,
		"-pix_fmt", "yuv420p",
	)
	args = append(args, quality...)
	args = append(args,
		"-c:a", "aac",
		"-b:a", "192k",
		"-movflags", "+faststart",
		output,
	)
	return args, nil
}

// Concat joins the inputs with the concat demuxer and stream copy. A single
// input is copied verbatim.
func (p *FFmpegEncoder) Concat(ctx context.Context, inputs []string, output string) error {
	if len(inputs) == 0 {
		return ErrNoVideoPaths
	}

	if len(inputs) == 1 {
		return p.copyFile(inputs[0], output)
	}

	listFile, err := p.createConcatList(filepath.Dir(output), inputs)
	if err != nil {
		return fmt.Errorf("create concat list: %w", err)
	}
	defer func() { _ = os.Remove(listFile) }()

	args := []string{
		"-y",           // Overwrite output file
		"-f", "concat", // Use concat demuxer
		"-safe", "0", // Allow absolute paths
		"-i", listFile, // Input file list
		"-c", "copy", // Copy streams without re-encoding
		output,
	}
	return p.runFFmpeg(ctx, args)
}

// createConcatList creates a temporary file in dir containing the list of
// video files in the format required by ffmpeg's concat demuxer.
func (p *FFmpegEncoder) createConcatList(dir string, videoPaths []string) (string, error) {
	f, err := os.CreateTemp(dir, ".concat-*.txt")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = f.Close() }()

	for _, path := range videoPaths {
		entry, err := quotePath(path)
		if err != nil {
			return "", err
		}
		if _, err := fmt.Fprintf(f, "file %s\n", entry); err != nil {
			return "", fmt.Errorf("write to concat list: %w", err)
		}
	}

	return f.Name(), nil
}

// copyFile copies a file from src to dst.
func (p *FFmpegEncoder) copyFile(src, dst string) error {
	in, err := os.Open(src) // #nosec G304 - src is provided by trusted internal code
	if err != nil {
		return fmt.Errorf("open source file: %w", err)
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644) // #nosec G302 G304 - output video is meant to be shared
	if err != nil {
		return fmt.Errorf("create destination file: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("write destination file: %w", err)
	}
	return out.Close()
}

// runFFmpeg executes ffmpeg with the given arguments and returns an error
// containing stderr output if the command fails.
func (p *FFmpegEncoder) runFFmpeg(ctx context.Context, args []string) error {
	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, p.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		// Check if context was cancelled
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return &FFmpegError{
			Args:   args,
			Stderr: stderr.String(),
			Err:    err,
		}
	}

	return nil
}

// FFmpegError represents an error from running ffmpeg, including the stderr output.
type FFmpegError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}

// GetMediaDuration returns the duration in seconds of a media file.
// It uses ffprobe to extract the duration metadata.
func (p *FFmpegEncoder) GetMediaDuration(ctx context.Context, path string) (float64, error) {
	// #nosec G204 - ffprobePath is set by the application, not user input
	cmd := exec.CommandContext(ctx, p.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		if ctx.Err() != nil {
			return 0, fmt.Errorf("ffprobe cancelled: %w", ctx.Err())
		}
		return 0, fmt.Errorf("%w: %w, stderr: %s", ErrFFprobeExecution, err, stderr.String())
	}

	var duration float64
	_, err = fmt.Sscanf(strings.TrimSpace(stdout.String()), "%f", &duration)
	if err != nil {
		return 0, fmt.Errorf("parse duration: %w", err)
	}

	return duration, nil
}
