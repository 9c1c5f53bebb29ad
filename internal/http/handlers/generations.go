package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/evora/mediagen-back/internal/domain"
	"github.com/evora/mediagen-back/internal/http/middleware"
	"github.com/evora/mediagen-back/internal/service"
	"github.com/evora/mediagen-back/internal/validation"
)

type jobResponse struct {
	JobID           string           `json:"job_id"`
	State           domain.JobState  `json:"state"`
	ModelKey        string           `json:"model_key"`
	OperationHandle string           `json:"operation_handle,omitempty"`
	ResultRefs      []string         `json:"result_refs,omitempty"`
	MediaID         string           `json:"media_id,omitempty"`
	Error           *domain.JobError `json:"error,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

func jobToResponse(job domain.Job) jobResponse {
	return jobResponse{
		JobID:           job.ID,
		State:           job.State,
		ModelKey:        job.Request.ModelKey,
		OperationHandle: job.OperationHandle,
		ResultRefs:      job.ResultRefs,
		Error:           job.ErrorDetail,
		CreatedAt:       job.CreatedAt,
		UpdatedAt:       job.UpdatedAt,
	}
}

// CreateGeneration validates and admits a new generation Job. The response
// is a pollable handle; the UI observes progress via GenerationStatus.
func (api *API) CreateGeneration(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "unauthorized", "session identity missing")
		return
	}

	var request domain.GenerationRequest
	if err := decodeJSON(r, &request); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "malformed generation request")
		return
	}

	job, err := api.generations.Start(r.Context(), request, identity)
	if err != nil {
		var validationErr *validation.Error
		if errors.As(err, &validationErr) {
			writeError(w, r, http.StatusBadRequest, string(validationErr.Kind), validationErr.Message)
			return
		}
		writeError(w, r, http.StatusServiceUnavailable, "admission_failed", "failed to admit generation job")
		return
	}

	writeJSON(w, http.StatusAccepted, jobToResponse(job))
}

// GenerationStatus returns a non-blocking snapshot of a Job. Jobs are only
// visible to their owner.
func (api *API) GenerationStatus(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "unauthorized", "session identity missing")
		return
	}

	jobID := strings.TrimSpace(chi.URLParam(r, "jobID"))
	if jobID == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "job_id is required")
		return
	}

	job, record, err := api.generations.Status(r.Context(), identity, jobID)
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			writeError(w, r, http.StatusNotFound, "not_found", "job not found")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal_error", "failed to load job")
		return
	}

	response := jobToResponse(job)
	if record != nil {
		response.MediaID = record.MediaID
	}
	writeJSON(w, http.StatusOK, response)
}

// CancelGeneration requests cooperative cancellation of an in-flight Job,
// on behalf of its owner only.
func (api *API) CancelGeneration(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "unauthorized", "session identity missing")
		return
	}

	jobID := strings.TrimSpace(chi.URLParam(r, "jobID"))
	if jobID == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "job_id is required")
		return
	}

	if err := api.generations.Cancel(identity, jobID); err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			writeError(w, r, http.StatusNotFound, "not_found", "job not found")
			return
		}
		writeError(w, r, http.StatusConflict, "already_terminal", err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":           jobID,
		"cancel_requested": true,
	})
}
