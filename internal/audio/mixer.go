// Package audio builds the soundtrack of a countdown segment: background
// music or silence for the countdown, followed by the alarm.
package audio

import (
	"context"
	"errors"
)

// DefaultAlarm is the alarm value that selects the generated sine tone
// instead of a file.
const DefaultAlarm = "alarm.mp3"

// Static errors for audio preparation.
var (
	// ErrInputNotFound is returned when an alarm or background music file
	// does not exist.
	ErrInputNotFound = errors.New("audio: input file not found")
	// ErrInvalidDuration is returned for negative countdowns or a
	// non-positive alarm hold.
	ErrInvalidDuration = errors.New("audio: invalid duration")
)

// MixOpts describes the soundtrack of a single segment.
type MixOpts struct {
	// Duration is the countdown length in seconds. Zero produces only the
	// alarm part.
	Duration int
	// AlarmSeconds is the length of the alarm part.
	AlarmSeconds int
	// AlarmPath is an audio file looped or clipped to AlarmSeconds. Empty or
	// DefaultAlarm selects the generated tone.
	AlarmPath string
	// BackgroundMusic is looped or clipped to Duration. Empty means silence.
	BackgroundMusic string
	// FrameRate sets the tolerance of the length check to one video frame.
	FrameRate int
}

// GeneratedAlarm reports whether path selects the generated tone.
func GeneratedAlarm(path string) bool {
	return path == "" || path == DefaultAlarm
}

// Mixer prepares segment soundtracks.
type Mixer interface {
	// Prepare writes a WAV file of length Duration+AlarmSeconds into dir
	// and returns its path. The caller owns dir and its cleanup.
	Prepare(ctx context.Context, dir string, opts MixOpts) (string, error)
}
