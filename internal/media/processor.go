// Package media turns frame sequences and soundtracks into video files.
package media

import "context"

// ComposeOpts describes the picture of a segment.
type ComposeOpts struct {
	// Frames is the ordered frame sequence, one path per output frame.
	Frames []string
	// FPS is the output frame rate.
	FPS int
	// Width and Height are the canvas size of the frames and the output.
	Width  int
	Height int
	// BackgroundVideo, when set, is scaled to cover the canvas, looped and
	// trimmed to the segment length, and the frames are overlaid on it.
	BackgroundVideo string
}

// Composition is a prepared picture ready to be encoded.
type Composition struct {
	// ListPath is the ffconcat file describing the frame sequence.
	ListPath string
	// Duration is the picture length in seconds.
	Duration float64
	FPS      int
	Width    int
	Height   int
	// BackgroundVideo is carried over from ComposeOpts.
	BackgroundVideo string
}

// Encoder defines the video operations used to produce timer videos.
// Implementations should use ffmpeg or similar tools for media manipulation.
type Encoder interface {
	// Compose writes the frame list for opts into dir. The caller owns dir.
	Compose(ctx context.Context, dir string, opts ComposeOpts) (*Composition, error)

	// Encode muxes the composition with the audio track into output.
	Encode(ctx context.Context, c *Composition, audioPath, output string) error

	// Concat joins encoded segments in order into output using stream copy.
	// Segments must share codec parameters.
	Concat(ctx context.Context, inputs []string, output string) error
}
