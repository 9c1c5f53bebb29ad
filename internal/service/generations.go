package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/evora/mediagen-back/internal/domain"
	"github.com/evora/mediagen-back/internal/orchestrator"
	"github.com/evora/mediagen-back/internal/queue"
	"github.com/evora/mediagen-back/internal/registry"
	"github.com/evora/mediagen-back/internal/repository"
	"github.com/evora/mediagen-back/internal/session"
	"github.com/evora/mediagen-back/internal/storage"
	"github.com/evora/mediagen-back/internal/validation"
)

var (
	ErrJobNotFound   = errors.New("job not found")
	ErrMediaNotFound = errors.New("media not found")
)

// GenerationsService is the synchronous surface the UI layer talks to:
// validate, admit, observe, cancel, and read back results. All identity comes
// in as an explicit parameter; the service holds no per-caller state.
type GenerationsService struct {
	registry *registry.Registry
	orch     *orchestrator.Orchestrator
	producer queue.Producer
	repo     repository.MediaRepository
	blobs    *storage.FileStore
}

func NewGenerationsService(
	reg *registry.Registry,
	orch *orchestrator.Orchestrator,
	producer queue.Producer,
	repo repository.MediaRepository,
	blobs *storage.FileStore,
) *GenerationsService {
	return &GenerationsService{
		registry: reg,
		orch:     orch,
		producer: producer,
		repo:     repo,
		blobs:    blobs,
	}
}

// Start validates the request and admits a new Job into the processing
// queue. The returned Job is a snapshot in the validated state; callers poll
// Status or Await for progress. Validation failures surface as
// *validation.Error before any external call happens.
func (s *GenerationsService) Start(
	ctx context.Context,
	request domain.GenerationRequest,
	identity session.Context,
) (domain.Job, error) {
	validated, err := validation.Validate(request, s.registry)
	if err != nil {
		return domain.Job{}, err
	}

	job := s.orch.Create(validated, identity)

	message := domain.QueueMessage{
		JobID:       job.ID,
		Request:     validated,
		UserEmail:   identity.UserEmail,
		SessionID:   identity.SessionID,
		Attempt:     0,
		RequestedAt: job.CreatedAt,
	}
	if err := s.producer.Enqueue(ctx, message); err != nil {
		s.orch.Abort(job.ID, domain.JobErrorSubmissionFailed, err.Error())
		return domain.Job{}, fmt.Errorf("admit job: %w", err)
	}

	return job, nil
}

// ownedJob loads a Job snapshot for its owner. Jobs are owner-scoped the
// same way media records are: a non-owner observes not-found, never a
// permission error that would confirm the job exists.
func (s *GenerationsService) ownedJob(identity session.Context, jobID string) (domain.Job, error) {
	job, ok := s.orch.Get(jobID)
	if !ok || job.UserEmail != identity.UserEmail {
		return domain.Job{}, ErrJobNotFound
	}
	return job, nil
}

// Status returns a non-blocking snapshot of a Job, with the persisted media
// record attached once one exists.
func (s *GenerationsService) Status(
	ctx context.Context,
	identity session.Context,
	jobID string,
) (domain.Job, *domain.MediaRecord, error) {
	job, err := s.ownedJob(identity, jobID)
	if err != nil {
		return domain.Job{}, nil, err
	}

	if job.State == domain.JobStateSucceeded {
		record, err := s.repo.FindBySourceJob(ctx, jobID)
		if err == nil {
			return job, record, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return job, nil, fmt.Errorf("load media record: %w", err)
		}
	}
	return job, nil, nil
}

// Await blocks until the Job is terminal.
func (s *GenerationsService) Await(ctx context.Context, identity session.Context, jobID string) (domain.Job, error) {
	if _, err := s.ownedJob(identity, jobID); err != nil {
		return domain.Job{}, err
	}
	job, err := s.orch.Await(ctx, jobID)
	if errors.Is(err, orchestrator.ErrUnknownJob) {
		return domain.Job{}, ErrJobNotFound
	}
	return job, err
}

// Cancel requests cooperative cancellation of an in-flight Job.
func (s *GenerationsService) Cancel(identity session.Context, jobID string) error {
	job, err := s.ownedJob(identity, jobID)
	if err != nil {
		return err
	}
	if job.State.Terminal() {
		return fmt.Errorf("job %s already %s", jobID, job.State)
	}
	s.orch.Cancel(jobID)
	return nil
}

// ListMedia returns the caller's own records, newest first.
func (s *GenerationsService) ListMedia(
	ctx context.Context,
	identity session.Context,
	page, pageSize int,
) ([]domain.MediaRecord, int, error) {
	return s.repo.ListByOwner(ctx, domain.MediaListFilter{
		UserEmail: identity.UserEmail,
		Page:      page,
		PageSize:  pageSize,
	})
}

// MediaAsset reads one stored asset back for its owner. Index selects the
// sample within the record, zero-based.
func (s *GenerationsService) MediaAsset(
	ctx context.Context,
	identity session.Context,
	mediaID string,
	index int,
) (*domain.MediaRecord, []byte, error) {
	record, err := s.repo.GetMedia(ctx, mediaID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrMediaNotFound
		}
		return nil, nil, fmt.Errorf("load media record: %w", err)
	}
	if record.UserEmail != identity.UserEmail {
		// Do not leak existence to non-owners.
		return nil, nil, ErrMediaNotFound
	}
	if index < 0 || index >= len(record.AssetRefs) {
		return nil, nil, ErrMediaNotFound
	}

	data, err := s.blobs.ReadBack(ctx, record.AssetRefs[index])
	if err != nil {
		return nil, nil, fmt.Errorf("read asset: %w", err)
	}
	return record, data, nil
}

// Models lists every registered capability descriptor for UI population.
func (s *GenerationsService) Models() []registry.ModelCapability {
	return s.registry.All()
}
