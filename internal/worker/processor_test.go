package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/evora/mediagen-back/internal/backend"
	"github.com/evora/mediagen-back/internal/domain"
	"github.com/evora/mediagen-back/internal/orchestrator"
	"github.com/evora/mediagen-back/internal/queue"
	"github.com/evora/mediagen-back/internal/repository"
	"github.com/evora/mediagen-back/internal/results"
	"github.com/evora/mediagen-back/internal/storage"
)

type scriptedBackend struct {
	submitErr    error
	pollResult   backend.PollResult
	fetchPayload []byte
}

func (s *scriptedBackend) Submit(_ context.Context, _ domain.ValidatedRequest) (string, error) {
	if s.submitErr != nil {
		return "", s.submitErr
	}
	return "operations/scripted", nil
}

func (s *scriptedBackend) Poll(_ context.Context, _ string) (backend.PollResult, error) {
	return s.pollResult, nil
}

func (s *scriptedBackend) Fetch(_ context.Context, _ string) ([]byte, error) {
	return s.fetchPayload, nil
}

type workerHarness struct {
	orch      *orchestrator.Orchestrator
	repo      *repository.MemoryMediaRepository
	queue     *queue.LocalQueue
	processor *Processor
}

func newHarness(t *testing.T, client backend.Client) *workerHarness {
	t.Helper()
	blobs, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create file store: %v", err)
	}
	repo := repository.NewMemoryMediaRepository()
	orch := orchestrator.New(client, orchestrator.Config{
		PollInterval: 5 * time.Millisecond,
		JobTimeout:   time.Second,
	}, zerolog.Nop())
	resultStore := results.NewStore(client, blobs, repo, zerolog.Nop())
	localQueue := queue.NewLocalQueue(8, 2, zerolog.Nop())

	return &workerHarness{
		orch:      orch,
		repo:      repo,
		queue:     localQueue,
		processor: NewProcessor(localQueue, orch, resultStore, 2, zerolog.Nop()),
	}
}

func (h *workerHarness) enqueue(t *testing.T, ctx context.Context, jobID string) {
	t.Helper()
	message := domain.QueueMessage{
		JobID:       jobID,
		UserEmail:   "user@example.com",
		SessionID:   "sess-1",
		RequestedAt: time.Now().UTC(),
		Request: domain.ValidatedRequest{
			GenerationRequest: domain.GenerationRequest{
				ModelKey:        "veo-2",
				Mode:            domain.ModeTextToMedia,
				Prompt:          "a mountain trail",
				AspectRatio:     "16:9",
				DurationSeconds: 8,
				SampleCount:     1,
			},
		},
	}
	if err := h.queue.Enqueue(ctx, message); err != nil {
		t.Fatalf("failed to enqueue: %v", err)
	}
}

func waitForState(t *testing.T, orch *orchestrator.Orchestrator, jobID string, want domain.JobState) domain.Job {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if job, ok := orch.Get(jobID); ok && job.State == want {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	job, _ := orch.Get(jobID)
	t.Fatalf("job %s never reached %q, last state %q", jobID, want, job.State)
	return domain.Job{}
}

func TestProcessorPersistsSucceededJob(t *testing.T) {
	client := &scriptedBackend{
		pollResult:   backend.PollResult{State: backend.StateSucceeded, ResultRefs: []string{"files/a"}},
		fetchPayload: []byte("mp4 bytes"),
	}
	h := newHarness(t, client)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.processor.Start(ctx)

	h.enqueue(t, ctx, "job-ok")
	waitForState(t, h.orch, "job-ok", domain.JobStateSucceeded)

	deadline := time.Now().Add(3 * time.Second)
	for {
		record, err := h.repo.FindBySourceJob(ctx, "job-ok")
		if err == nil {
			if len(record.AssetRefs) != 1 {
				t.Fatalf("expected one asset ref, got %v", record.AssetRefs)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("record never persisted: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	_, total, err := h.repo.ListByOwner(ctx, domain.MediaListFilter{UserEmail: "user@example.com"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 {
		t.Fatalf("expected exactly one record, got %d", total)
	}
}

func TestProcessorDoesNotPersistFailedJob(t *testing.T) {
	client := &scriptedBackend{
		pollResult: backend.PollResult{State: backend.StateFailed, ErrorMessage: "safety filter"},
	}
	h := newHarness(t, client)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.processor.Start(ctx)

	h.enqueue(t, ctx, "job-bad")
	job := waitForState(t, h.orch, "job-bad", domain.JobStateFailed)
	if job.ErrorDetail == nil || job.ErrorDetail.Message != "safety filter" {
		t.Fatalf("expected verbatim backend failure, got %+v", job.ErrorDetail)
	}

	// Terminal failure is final: no record and no redelivery.
	time.Sleep(100 * time.Millisecond)
	if _, err := h.repo.FindBySourceJob(ctx, "job-bad"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected no record for failed job, got %v", err)
	}
	if h.queue.DLQSize() != 0 {
		t.Fatalf("failed job should not be dead-lettered, DLQ size %d", h.queue.DLQSize())
	}
}

func TestProcessorDoesNotPersistSubmissionFailure(t *testing.T) {
	client := &scriptedBackend{submitErr: errors.New("backend unreachable")}
	h := newHarness(t, client)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.processor.Start(ctx)

	h.enqueue(t, ctx, "job-unsubmitted")
	job := waitForState(t, h.orch, "job-unsubmitted", domain.JobStateFailed)
	if job.ErrorDetail == nil || job.ErrorDetail.Kind != domain.JobErrorSubmissionFailed {
		t.Fatalf("expected submission failure detail, got %+v", job.ErrorDetail)
	}

	time.Sleep(100 * time.Millisecond)
	if _, err := h.repo.FindBySourceJob(ctx, "job-unsubmitted"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected no record, got %v", err)
	}
}

func TestProcessorRestoresJobFromMessage(t *testing.T) {
	client := &scriptedBackend{
		pollResult:   backend.PollResult{State: backend.StateSucceeded, ResultRefs: []string{"files/a"}},
		fetchPayload: []byte("png bytes"),
	}
	h := newHarness(t, client)

	// The job was never created locally; only the message carries it.
	if _, ok := h.orch.Get("job-foreign"); ok {
		t.Fatal("job unexpectedly tracked before processing")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.processor.Start(ctx)

	h.enqueue(t, ctx, "job-foreign")
	job := waitForState(t, h.orch, "job-foreign", domain.JobStateSucceeded)
	if job.UserEmail != "user@example.com" {
		t.Fatalf("restored job lost its identity: %+v", job)
	}
}

func TestProcessorSkipsAlreadyStartedJob(t *testing.T) {
	client := &scriptedBackend{
		pollResult:   backend.PollResult{State: backend.StateSucceeded, ResultRefs: []string{"files/a"}},
		fetchPayload: []byte("bytes"),
	}
	h := newHarness(t, client)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.processor.Start(ctx)

	h.enqueue(t, ctx, "job-dup")
	h.enqueue(t, ctx, "job-dup")
	waitForState(t, h.orch, "job-dup", domain.JobStateSucceeded)

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := h.repo.FindBySourceJob(ctx, "job-dup"); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("record never persisted")
		}
		time.Sleep(10 * time.Millisecond)
	}

	time.Sleep(100 * time.Millisecond)
	_, total, err := h.repo.ListByOwner(ctx, domain.MediaListFilter{UserEmail: "user@example.com"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 {
		t.Fatalf("duplicate delivery produced %d records", total)
	}
}
