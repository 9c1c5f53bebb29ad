package results

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/evora/mediagen-back/internal/backend"
	"github.com/evora/mediagen-back/internal/domain"
	"github.com/evora/mediagen-back/internal/repository"
	"github.com/evora/mediagen-back/internal/storage"
)

var ErrJobNotSucceeded = errors.New("job has not succeeded")

// Store turns a succeeded Job into exactly one durable MediaRecord. Assets
// are downloaded and written to storage before the metadata row exists, so a
// record never points at a missing asset. A metadata insert that loses a race
// to a duplicate persist leaves orphaned asset files behind, which is logged
// and accepted: an asset without a pointer is an operational cleanup concern,
// not a correctness one.
type Store struct {
	backend backend.Client
	blobs   *storage.FileStore
	repo    repository.MediaRepository
	logger  zerolog.Logger
}

func NewStore(
	client backend.Client,
	blobs *storage.FileStore,
	repo repository.MediaRepository,
	logger zerolog.Logger,
) *Store {
	return &Store{
		backend: client,
		blobs:   blobs,
		repo:    repo,
		logger:  logger,
	}
}

// Persist writes the Job's assets and metadata record. Calling it again for
// the same Job is a no-op returning the already-persisted record.
func (s *Store) Persist(ctx context.Context, job domain.Job) (*domain.MediaRecord, error) {
	if job.State != domain.JobStateSucceeded {
		return nil, ErrJobNotSucceeded
	}

	if existing, err := s.repo.FindBySourceJob(ctx, job.ID); err == nil {
		return existing, nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("check existing record: %w", err)
	}

	// Never derived from user input or wall-clock time: collisions across
	// concurrent submissions would overwrite another user's asset.
	mediaID := uuid.NewString()
	storageRef := "generated/" + mediaID

	assetRefs := make([]string, 0, len(job.ResultRefs))
	for index, resultRef := range job.ResultRefs {
		data, err := s.backend.Fetch(ctx, resultRef)
		if err != nil {
			return nil, fmt.Errorf("fetch asset %d: %w", index+1, err)
		}
		key := fmt.Sprintf("%s/sample-%02d%s", storageRef, index+1, assetExtension(job))
		saved, err := s.blobs.Write(ctx, key, data)
		if err != nil {
			return nil, fmt.Errorf("store asset %d: %w", index+1, err)
		}
		assetRefs = append(assetRefs, saved)
	}

	params, err := json.Marshal(job.Request)
	if err != nil {
		return nil, fmt.Errorf("encode request snapshot: %w", err)
	}

	record := &domain.MediaRecord{
		MediaID:     mediaID,
		SourceJobID: job.ID,
		UserEmail:   job.UserEmail,
		SessionID:   job.SessionID,
		ModelKey:    job.Request.ModelKey,
		Params:      params,
		StorageRef:  storageRef,
		AssetRefs:   assetRefs,
		CreatedAt:   time.Now().UTC(),
	}

	inserted, err := s.repo.InsertIfAbsent(ctx, record)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("job_id", job.ID).
			Str("storage_ref", storageRef).
			Msg("metadata write failed, assets orphaned")
		return nil, fmt.Errorf("insert media record: %w", err)
	}
	if !inserted {
		s.logger.Info().
			Str("job_id", job.ID).
			Str("storage_ref", storageRef).
			Msg("duplicate persist lost insert race, assets orphaned")
		existing, findErr := s.repo.FindBySourceJob(ctx, job.ID)
		if findErr != nil {
			return nil, fmt.Errorf("load winning record: %w", findErr)
		}
		return existing, nil
	}

	s.logger.Info().
		Str("job_id", job.ID).
		Str("media_id", mediaID).
		Int("assets", len(assetRefs)).
		Msg("media record persisted")
	return record, nil
}

func assetExtension(job domain.Job) string {
	if job.Request.DurationSeconds > 0 {
		return ".mp4"
	}
	return ".png"
}
