package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"

	"github.com/maauso/countdown-video/internal/job"
	"github.com/maauso/countdown-video/internal/render"
)

// maxBodyBytes caps the JSON request body.
const maxBodyBytes = 64 << 10

// JobService is the part of job.RenderService the handlers use.
type JobService interface {
	Submit(ctx context.Context, input job.RenderInput) (*job.Job, error)
	GetJob(ctx context.Context, id string) (*job.Job, error)
	List(ctx context.Context) ([]*job.Job, error)
}

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	service   JobService
	validator *validator.Validate
	logger    *slog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service JobService, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		service:   service,
		validator: validator.New(),
		logger:    logger,
	}
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// CreateTimer handles POST /timers requests.
func (h *Handlers) CreateTimer(w http.ResponseWriter, r *http.Request) {
	var req CreateTimerRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	input := job.RenderInput{
		Expression: req.Expression,
		Output:     req.Output,
		Inputs: render.Inputs{
			AlarmPath:       req.Alarm,
			BackgroundMusic: req.BackgroundMusic,
			BackgroundVideo: req.BackgroundVideo,
		},
		Upload: req.Upload,
	}
	if req.Minutes != nil {
		input.Minutes = *req.Minutes
	}
	if req.Seconds != nil {
		input.Seconds = *req.Seconds
	}

	created, err := h.service.Submit(r.Context(), input)
	switch {
	case errors.Is(err, job.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_TIMER")
		return
	case errors.Is(err, job.ErrQueueFull):
		w.Header().Set("Retry-After", "30")
		writeError(w, http.StatusServiceUnavailable, "render queue is full", "QUEUE_FULL")
		return
	case err != nil:
		h.logger.Error("failed to create job", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to create job", "JOB_CREATION_FAILED")
		return
	}

	w.Header().Set("Location", "/timers/"+created.ID)
	writeJSON(w, http.StatusAccepted, CreateTimerResponse{
		ID:     created.ID,
		Status: string(created.Status),
	})
}

// ListTimers handles GET /timers requests.
func (h *Handlers) ListTimers(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list jobs", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list jobs", "JOB_FETCH_FAILED")
		return
	}

	resp := ListTimersResponse{Timers: make([]TimerResponse, 0, len(jobs))}
	for _, j := range jobs {
		resp.Timers = append(resp.Timers, toTimerResponse(j))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetTimer handles GET /timers/{id} requests.
func (h *Handlers) GetTimer(w http.ResponseWriter, r *http.Request) {
	found, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toTimerResponse(found))
}

// DownloadTimer handles GET /timers/{id}/video requests by streaming the
// finished file.
func (h *Handlers) DownloadTimer(w http.ResponseWriter, r *http.Request) {
	found, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if found.Status != job.StatusCompleted {
		writeError(w, http.StatusConflict, "video is not ready", "JOB_NOT_COMPLETED")
		return
	}
	if _, err := os.Stat(found.OutputPath); err != nil {
		h.logger.Error("completed video missing",
			slog.String("job_id", found.ID),
			slog.String("path", found.OutputPath),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusGone, "video no longer available", "VIDEO_MISSING")
		return
	}
	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filepath.Base(found.OutputPath)+`"`)
	http.ServeFile(w, r, found.OutputPath)
}

// lookup loads the job named by the {id} path value, writing the error
// response itself when it cannot.
func (h *Handlers) lookup(w http.ResponseWriter, r *http.Request) (*job.Job, bool) {
	jobID := r.PathValue("id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required", "MISSING_JOB_ID")
		return nil, false
	}

	found, err := h.service.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
			return nil, false
		}
		h.logger.Error("failed to get job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get job", "JOB_FETCH_FAILED")
		return nil, false
	}
	return found, true
}

func toTimerResponse(j *job.Job) TimerResponse {
	resp := TimerResponse{
		ID:              j.ID,
		Status:          string(j.Status),
		Expression:      j.Expression,
		DurationSeconds: j.DurationSeconds,
		Error:           j.Error,
		VideoURL:        j.VideoURL,
		CreatedAt:       j.CreatedAt,
	}
	for _, seg := range j.Segments {
		resp.Segments = append(resp.Segments, SegmentResponse{
			Name:            seg.Name,
			DurationSeconds: seg.DurationSeconds,
			Reused:          seg.Reused,
		})
	}
	if !j.CompletedAt.IsZero() {
		completed := j.CompletedAt
		resp.CompletedAt = &completed
	}
	if j.Status == job.StatusCompleted {
		resp.DownloadURL = "/timers/" + j.ID + "/video"
	}
	return resp
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
