// Package server exposes timer rendering over HTTP. Handlers, middleware,
// routes and DTOs live here, separate from the job domain types.
package server

import "time"

// CreateTimerRequest is the HTTP request body for queueing a timer video.
// Either Expression or at least one of Minutes and Seconds must be set.
// When both are present the expression wins.
type CreateTimerRequest struct {
	// Expression is a multi-timer expression such as "m25m5x2m15".
	Expression string `json:"expression,omitempty" validate:"required_without_all=Minutes Seconds,max=256"`
	// Minutes and Seconds describe a single timer.
	Minutes *int `json:"minutes,omitempty" validate:"omitempty,min=0,max=1440"`
	Seconds *int `json:"seconds,omitempty" validate:"omitempty,min=0,max=86400"`
	// Output is the file name of the finished video.
	Output string `json:"output,omitempty" validate:"omitempty,max=128,excludesall=/\\"`
	// Alarm, BackgroundMusic and BackgroundVideo are relative to the
	// server's media directory. Alarm "alarm.mp3" selects the generated tone.
	Alarm           string `json:"alarm,omitempty" validate:"omitempty,max=256"`
	BackgroundMusic string `json:"background_music,omitempty" validate:"omitempty,max=256"`
	BackgroundVideo string `json:"background_video,omitempty" validate:"omitempty,max=256"`
	// Upload publishes the finished video to S3.
	Upload bool `json:"upload"`
}

// CreateTimerResponse is returned once a job is queued.
type CreateTimerResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// SegmentResponse describes one rendered timer of a job.
type SegmentResponse struct {
	Name            string `json:"name"`
	DurationSeconds int    `json:"duration_seconds"`
	Reused          bool   `json:"reused"`
}

// TimerResponse is the HTTP response for job details.
type TimerResponse struct {
	ID              string            `json:"id"`
	Status          string            `json:"status"`
	Expression      string            `json:"expression,omitempty"`
	DurationSeconds int               `json:"duration_seconds,omitempty"`
	Segments        []SegmentResponse `json:"segments,omitempty"`
	Error           string            `json:"error,omitempty"`
	// DownloadURL points at the video endpoint once the job completed.
	DownloadURL string `json:"download_url,omitempty"`
	// VideoURL is the S3 URL when the job was uploaded.
	VideoURL    string     `json:"video_url,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ListTimersResponse wraps the job list.
type ListTimersResponse struct {
	Timers []TimerResponse `json:"timers"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
}
