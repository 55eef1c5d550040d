// Package job provides the render Job aggregate for timer videos requested
// over HTTP, its state machine, and repository interfaces for persistence.
package job

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/maauso/countdown-video/internal/job/id"
)

// Status represents the current state of a Job.
type Status string

const (
	// StatusInQueue indicates the job is waiting for the render worker.
	StatusInQueue Status = "IN_QUEUE"
	// StatusRunning indicates the job is being rendered.
	StatusRunning Status = "RUNNING"
	// StatusCompleted indicates the video was rendered successfully.
	StatusCompleted Status = "COMPLETED"
	// StatusFailed indicates the render returned an error.
	StatusFailed Status = "FAILED"
	// StatusCancelled indicates the job was dropped before it finished,
	// for example on shutdown.
	StatusCancelled Status = "CANCELLED"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed.
var validTransitions = map[Status][]Status{
	StatusInQueue:   {StatusRunning, StatusCancelled},
	StatusRunning:   {StatusCompleted, StatusFailed, StatusCancelled},
	StatusCompleted: {},
	StatusFailed:    {},
	StatusCancelled: {},
}

// canTransition checks if a transition from one status to another is valid.
func canTransition(from, to Status) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	return slices.Contains(allowed, to)
}

// Segment records one rendered timer of a job.
type Segment struct {
	// Name is the segment file name, e.g. timer_5m_2.mp4.
	Name string
	// DurationSeconds is the countdown length without the alarm.
	DurationSeconds int
	// Reused is true when the segment was copied from an identical one.
	Reused bool
}

// Job represents a timer video render request.
type Job struct {
	mu sync.RWMutex

	// ID is the unique identifier for this job.
	ID string
	// Status is the current job state.
	Status Status
	// Expression is the timer expression, e.g. "m25m5x2m15". Empty for a
	// single timer described by DurationSeconds.
	Expression string
	// DurationSeconds is the single timer length when Expression is empty.
	DurationSeconds int
	// AlarmPath, BackgroundMusic and BackgroundVideo are optional media inputs.
	AlarmPath       string
	BackgroundMusic string
	BackgroundVideo string
	// Segments is filled in once an expression render finishes.
	Segments []Segment
	// Error contains any error message if the job failed.
	Error string
	// OutputPath is the path to the rendered video.
	OutputPath string
	// Upload indicates whether to publish the result to S3.
	Upload bool
	// VideoURL is the S3 URL if Upload was true.
	VideoURL string
	// CreatedAt is when the job was created.
	CreatedAt time.Time
	// UpdatedAt is when the job was last updated.
	UpdatedAt time.Time
	// StartedAt is when rendering started.
	StartedAt time.Time
	// CompletedAt is when the job reached a terminal state.
	CompletedAt time.Time
}

// New creates a new Job with a generated ID and initial IN_QUEUE status.
func New() *Job {
	return NewWithID(id.Generate())
}

// NewWithID creates a new Job with the specified ID and initial IN_QUEUE status.
// Useful for testing or when ID needs to be externally generated.
func NewWithID(jobID string) *Job {
	now := time.Now()
	return &Job{
		ID:        jobID,
		Status:    StatusInQueue,
		Segments:  make([]Segment, 0),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TransitionTo attempts to change the job status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) TransitionTo(status Status) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !canTransition(j.Status, status) {
		return ErrInvalidTransition
	}

	j.Status = status
	j.UpdatedAt = time.Now()

	switch status {
	case StatusRunning:
		j.StartedAt = j.UpdatedAt
	case StatusCompleted, StatusFailed, StatusCancelled:
		j.CompletedAt = j.UpdatedAt
	}

	return nil
}

// Start transitions the job from IN_QUEUE to RUNNING.
func (j *Job) Start() error {
	return j.TransitionTo(StatusRunning)
}

// Complete transitions the job to COMPLETED state.
func (j *Job) Complete() error {
	return j.TransitionTo(StatusCompleted)
}

// Fail transitions the job to FAILED state with an error message.
// The message is only recorded when the transition is allowed.
func (j *Job) Fail(errMsg string) error {
	if err := j.TransitionTo(StatusFailed); err != nil {
		return err
	}
	j.mu.Lock()
	j.Error = errMsg
	j.mu.Unlock()
	return nil
}

// Cancel transitions the job to CANCELLED state.
func (j *Job) Cancel() error {
	return j.TransitionTo(StatusCancelled)
}

// GetStatus returns the current job status (thread-safe).
func (j *Job) GetStatus() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// SetSegments records the rendered segments.
func (j *Job) SetSegments(segments []Segment) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Segments = segments
	j.UpdatedAt = time.Now()
}

// SetOutput sets the output video path and optional S3 URL.
func (j *Job) SetOutput(videoPath, videoURL string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.OutputPath = videoPath
	j.VideoURL = videoURL
	j.UpdatedAt = time.Now()
}

// IsTerminal returns true if the job is in a terminal state.
func (j *Job) IsTerminal() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status == StatusCompleted ||
		j.Status == StatusFailed ||
		j.Status == StatusCancelled
}

// Clone creates a deep copy of the job for safe reads.
func (j *Job) Clone() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()

	return &Job{
		ID:              j.ID,
		Status:          j.Status,
		Expression:      j.Expression,
		DurationSeconds: j.DurationSeconds,
		AlarmPath:       j.AlarmPath,
		BackgroundMusic: j.BackgroundMusic,
		BackgroundVideo: j.BackgroundVideo,
		Segments:        slices.Clone(j.Segments),
		Error:           j.Error,
		OutputPath:      j.OutputPath,
		Upload:          j.Upload,
		VideoURL:        j.VideoURL,
		CreatedAt:       j.CreatedAt,
		UpdatedAt:       j.UpdatedAt,
		StartedAt:       j.StartedAt,
		CompletedAt:     j.CompletedAt,
	}
}
