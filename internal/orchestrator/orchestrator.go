package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/evora/mediagen-back/internal/backend"
	"github.com/evora/mediagen-back/internal/domain"
	"github.com/evora/mediagen-back/internal/session"
)

var (
	ErrUnknownJob = errors.New("unknown job")
)

type Config struct {
	PollInterval time.Duration
	JobTimeout   time.Duration
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = 3 * time.Second
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = 10 * time.Minute
	}
	return c
}

type trackedJob struct {
	job *domain.Job

	started  bool
	cancelCh chan struct{}
	doneCh   chan struct{}

	cancelOnce sync.Once
}

// Orchestrator drives Jobs through validated -> submitted -> polling to
// exactly one terminal transition. Each in-flight Job is advanced by a single
// goroutine; everyone else only reads snapshots.
type Orchestrator struct {
	backend backend.Client
	config  Config
	logger  zerolog.Logger

	mu   sync.RWMutex
	jobs map[string]*trackedJob
}

func New(client backend.Client, config Config, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		backend: client,
		config:  config.withDefaults(),
		logger:  logger,
		jobs:    make(map[string]*trackedJob),
	}
}

// Create registers a new Job for a validated request. The Job starts in the
// validated state and is not submitted to the backend until Run is called.
func (o *Orchestrator) Create(request domain.ValidatedRequest, identity session.Context) domain.Job {
	now := time.Now().UTC()
	job := &domain.Job{
		ID:        uuid.NewString(),
		Request:   request,
		UserEmail: identity.UserEmail,
		SessionID: identity.SessionID,
		State:     domain.JobStateValidated,
		CreatedAt: now,
		UpdatedAt: now,
	}

	o.mu.Lock()
	o.jobs[job.ID] = &trackedJob{
		job:      job,
		cancelCh: make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	o.mu.Unlock()

	return cloneJob(job)
}

// Restore registers a Job reconstructed from a queue message, for workers
// that did not create it locally. Returns the existing Job when already
// tracked; a duplicate message never produces a second Job.
func (o *Orchestrator) Restore(message domain.QueueMessage) domain.Job {
	o.mu.Lock()
	defer o.mu.Unlock()

	if tracked, ok := o.jobs[message.JobID]; ok {
		return cloneJob(tracked.job)
	}

	now := time.Now().UTC()
	job := &domain.Job{
		ID:        message.JobID,
		Request:   message.Request,
		UserEmail: message.UserEmail,
		SessionID: message.SessionID,
		State:     domain.JobStateValidated,
		CreatedAt: message.RequestedAt,
		UpdatedAt: now,
	}
	o.jobs[job.ID] = &trackedJob{
		job:      job,
		cancelCh: make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	return cloneJob(job)
}

// Get returns a snapshot of a tracked Job.
func (o *Orchestrator) Get(jobID string) (domain.Job, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	tracked, ok := o.jobs[jobID]
	if !ok {
		return domain.Job{}, false
	}
	return cloneJob(tracked.job), true
}

// Cancel requests cooperative cancellation of a Job. The polling task
// observes the signal between polls; nothing irrevocable happens afterwards.
// Cancelling an unknown or already-terminal Job reports false.
func (o *Orchestrator) Cancel(jobID string) bool {
	o.mu.RLock()
	tracked, ok := o.jobs[jobID]
	var terminal bool
	if ok {
		terminal = tracked.job.State.Terminal()
	}
	o.mu.RUnlock()

	if !ok || terminal {
		return false
	}
	tracked.cancelOnce.Do(func() { close(tracked.cancelCh) })
	return true
}

// Abort fails a Job that never got a runner, e.g. when admission to the
// processing queue failed after Create. Reports false when the Job is unknown
// or already has a runner.
func (o *Orchestrator) Abort(jobID string, kind domain.JobErrorKind, message string) bool {
	o.mu.Lock()
	tracked, ok := o.jobs[jobID]
	if !ok || tracked.started {
		o.mu.Unlock()
		return false
	}
	tracked.started = true
	tracked.job.State = domain.JobStateFailed
	tracked.job.ErrorDetail = &domain.JobError{Kind: kind, Message: message}
	tracked.job.UpdatedAt = time.Now().UTC()
	o.mu.Unlock()

	close(tracked.doneCh)
	return true
}

// Await blocks until the Job reaches a terminal state, then returns its final
// snapshot. The error is the Job's failure cause, nil on success.
func (o *Orchestrator) Await(ctx context.Context, jobID string) (domain.Job, error) {
	o.mu.RLock()
	tracked, ok := o.jobs[jobID]
	o.mu.RUnlock()
	if !ok {
		return domain.Job{}, ErrUnknownJob
	}

	select {
	case <-ctx.Done():
		return domain.Job{}, ctx.Err()
	case <-tracked.doneCh:
	}

	job, _ := o.Get(jobID)
	if job.State == domain.JobStateFailed {
		return job, job.ErrorDetail
	}
	return job, nil
}

// Run drives a Job to its terminal state: one backend submission, then a
// bounded polling loop. It returns the final snapshot and, for failed Jobs,
// the structured failure cause. Calling Run on a Job that already has a
// runner degrades to Await.
func (o *Orchestrator) Run(ctx context.Context, jobID string) (domain.Job, error) {
	o.mu.Lock()
	tracked, ok := o.jobs[jobID]
	if !ok {
		o.mu.Unlock()
		return domain.Job{}, ErrUnknownJob
	}
	if tracked.started {
		o.mu.Unlock()
		return o.Await(ctx, jobID)
	}
	tracked.started = true
	o.mu.Unlock()

	defer close(tracked.doneCh)

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	go func() {
		select {
		case <-tracked.cancelCh:
			stop()
		case <-runCtx.Done():
		}
	}()

	o.run(runCtx, tracked)

	job, _ := o.Get(jobID)
	if job.State == domain.JobStateFailed {
		return job, job.ErrorDetail
	}
	return job, nil
}

func (o *Orchestrator) run(ctx context.Context, tracked *trackedJob) {
	jobID := tracked.job.ID

	handle, err := o.backend.Submit(ctx, tracked.job.Request)
	if err != nil {
		if o.cancelRequested(tracked) {
			o.fail(tracked, domain.JobErrorCancelled, "cancelled before submission completed")
			return
		}
		// A failed dispatch is terminal: resubmitting is the caller's call
		// and always yields a fresh Job.
		o.fail(tracked, domain.JobErrorSubmissionFailed, err.Error())
		return
	}

	o.transition(tracked, func(job *domain.Job) {
		job.State = domain.JobStateSubmitted
		job.OperationHandle = handle
	})
	o.logger.Info().
		Str("job_id", jobID).
		Str("operation", handle).
		Msg("generation submitted")

	o.transition(tracked, func(job *domain.Job) {
		job.State = domain.JobStatePolling
	})

	overall := time.NewTimer(o.config.JobTimeout)
	defer overall.Stop()
	ticker := time.NewTicker(o.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if o.cancelRequested(tracked) {
				o.fail(tracked, domain.JobErrorCancelled, "cancelled while polling")
			} else {
				o.fail(tracked, domain.JobErrorCancelled, fmt.Sprintf("context closed while polling: %v", ctx.Err()))
			}
			return
		case <-overall.C:
			o.fail(tracked, domain.JobErrorPollingTimeout,
				fmt.Sprintf("operation %s not terminal after %s", handle, o.config.JobTimeout))
			return
		case <-ticker.C:
			result, pollErr := o.backend.Poll(ctx, handle)
			if pollErr != nil {
				// Transient transport trouble: the operation may still be
				// running, keep polling until the overall timeout.
				o.logger.Warn().
					Err(pollErr).
					Str("job_id", jobID).
					Msg("poll attempt failed")
				continue
			}

			switch result.State {
			case backend.StateRunning:
				continue
			case backend.StateSucceeded:
				o.transition(tracked, func(job *domain.Job) {
					job.State = domain.JobStateSucceeded
					job.ResultRefs = append([]string(nil), result.ResultRefs...)
				})
				o.logger.Info().
					Str("job_id", jobID).
					Int("results", len(result.ResultRefs)).
					Msg("generation succeeded")
				return
			case backend.StateFailed:
				o.fail(tracked, domain.JobErrorBackendFailure, result.ErrorMessage)
				return
			}
		}
	}
}

func (o *Orchestrator) cancelRequested(tracked *trackedJob) bool {
	select {
	case <-tracked.cancelCh:
		return true
	default:
		return false
	}
}

func (o *Orchestrator) transition(tracked *trackedJob, mutate func(*domain.Job)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if tracked.job.State.Terminal() {
		return
	}
	mutate(tracked.job)
	tracked.job.UpdatedAt = time.Now().UTC()
}

func (o *Orchestrator) fail(tracked *trackedJob, kind domain.JobErrorKind, message string) {
	o.transition(tracked, func(job *domain.Job) {
		job.State = domain.JobStateFailed
		job.ErrorDetail = &domain.JobError{Kind: kind, Message: message}
	})
	o.logger.Warn().
		Str("job_id", tracked.job.ID).
		Str("kind", string(kind)).
		Str("detail", message).
		Msg("generation failed")
}

func cloneJob(job *domain.Job) domain.Job {
	clone := *job
	clone.ResultRefs = append([]string(nil), job.ResultRefs...)
	if job.ErrorDetail != nil {
		detail := *job.ErrorDetail
		clone.ErrorDetail = &detail
	}
	return clone
}
