package domain

import (
	"encoding/json"
	"time"
)

// GenerationMode selects how a model is driven: from text alone, from a
// single reference image, or by interpolating between two reference frames.
type GenerationMode string

const (
	ModeTextToMedia   GenerationMode = "text-to-media"
	ModeImageToMedia  GenerationMode = "image-to-media"
	ModeInterpolation GenerationMode = "interpolation"
)

type JobState string

const (
	JobStateValidated JobState = "validated"
	JobStateSubmitted JobState = "submitted"
	JobStatePolling   JobState = "polling"
	JobStateSucceeded JobState = "succeeded"
	JobStateFailed    JobState = "failed"
)

// Terminal reports whether no further state transitions can occur.
func (s JobState) Terminal() bool {
	return s == JobStateSucceeded || s == JobStateFailed
}

// ReferenceMedia points at user-supplied media conditioning a generation,
// e.g. the first or last frame for interpolation.
type ReferenceMedia struct {
	URI      string `json:"uri"`
	MimeType string `json:"mime_type,omitempty"`
}

// GenerationRequest is the caller's intent as assembled by the UI layer.
// It carries no identity and has not been checked against any model's
// capabilities. ExtraParams is an open bag so model-specific knobs survive
// round trips without schema changes.
type GenerationRequest struct {
	ModelKey        string           `json:"model_key"`
	Mode            GenerationMode   `json:"mode"`
	Prompt          string           `json:"prompt"`
	ReferenceMedia  []ReferenceMedia `json:"reference_media,omitempty"`
	AspectRatio     string           `json:"aspect_ratio"`
	DurationSeconds int              `json:"duration_seconds,omitempty"`
	SampleCount     int              `json:"sample_count"`
	ExtraParams     map[string]any   `json:"extra_params,omitempty"`
}

// ValidatedRequest is a GenerationRequest that passed every capability check,
// with model defaults (duration, sample count) already applied. Only the
// validator constructs these.
type ValidatedRequest struct {
	GenerationRequest
}

// Job tracks one attempt to produce media from a validated request. A Job is
// owned exclusively by the task driving it until it reaches a terminal state;
// retrying a request always creates a new Job with a new ID.
type Job struct {
	ID              string
	Request         ValidatedRequest
	UserEmail       string
	SessionID       string
	State           JobState
	OperationHandle string
	ResultRefs      []string
	ErrorDetail     *JobError
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// JobErrorKind classifies why a Job failed.
type JobErrorKind string

const (
	JobErrorSubmissionFailed JobErrorKind = "submission_failed"
	JobErrorBackendFailure   JobErrorKind = "backend_failure"
	JobErrorPollingTimeout   JobErrorKind = "polling_timeout"
	JobErrorCancelled        JobErrorKind = "cancelled"
)

// JobError is the structured failure cause of a terminal Job. For backend
// failures Message holds the backend's own diagnostic text verbatim.
type JobError struct {
	Kind    JobErrorKind `json:"kind"`
	Message string       `json:"message"`
}

func (e *JobError) Error() string {
	return string(e.Kind) + ": " + e.Message
}

// MediaRecord is the durable metadata row written exactly once per succeeded
// Job. MediaID never derives from user-supplied names or wall-clock time, and
// StorageRef is never shared between two records.
type MediaRecord struct {
	MediaID     string
	SourceJobID string
	UserEmail   string
	SessionID   string
	ModelKey    string
	Params      json.RawMessage
	StorageRef  string
	AssetRefs   []string
	CreatedAt   time.Time
}

// MediaListFilter scopes Metadata Store listings to one owner.
type MediaListFilter struct {
	UserEmail string
	Page      int
	PageSize  int
}

// QueueMessage is the transport format for the admission queue. It carries
// the full validated request and session identity so a worker in another
// process can reconstruct the Job.
type QueueMessage struct {
	JobID       string           `json:"job_id"`
	Request     ValidatedRequest `json:"request"`
	UserEmail   string           `json:"user_email"`
	SessionID   string           `json:"session_id"`
	Attempt     int              `json:"attempt"`
	RequestedAt time.Time        `json:"requested_at"`
}
