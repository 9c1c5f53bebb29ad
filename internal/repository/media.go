package repository

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/evora/mediagen-back/internal/domain"
)

var ErrNotFound = errors.New("resource not found")

// MediaRepository is the Metadata Store: one record per succeeded Job, keyed
// by media ID with a uniqueness guarantee on the source job ID so duplicate
// persist attempts collapse into the first write.
type MediaRepository interface {
	// InsertIfAbsent writes the record unless one with the same source job
	// ID already exists. It reports whether this call performed the write.
	InsertIfAbsent(ctx context.Context, record *domain.MediaRecord) (bool, error)
	FindBySourceJob(ctx context.Context, sourceJobID string) (*domain.MediaRecord, error)
	GetMedia(ctx context.Context, mediaID string) (*domain.MediaRecord, error)
	ListByOwner(ctx context.Context, filter domain.MediaListFilter) ([]domain.MediaRecord, int, error)
}

// MemoryMediaRepository stores records in memory for local development and
// tests. The check-then-write in InsertIfAbsent is atomic under its lock.
type MemoryMediaRepository struct {
	mu          sync.RWMutex
	records     map[string]*domain.MediaRecord
	bySourceJob map[string]string
}

func NewMemoryMediaRepository() *MemoryMediaRepository {
	return &MemoryMediaRepository{
		records:     make(map[string]*domain.MediaRecord),
		bySourceJob: make(map[string]string),
	}
}

func (r *MemoryMediaRepository) InsertIfAbsent(_ context.Context, record *domain.MediaRecord) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.bySourceJob[record.SourceJobID]; exists {
		return false, nil
	}
	clone := cloneRecord(record)
	r.records[record.MediaID] = clone
	r.bySourceJob[record.SourceJobID] = record.MediaID
	return true, nil
}

func (r *MemoryMediaRepository) FindBySourceJob(_ context.Context, sourceJobID string) (*domain.MediaRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	mediaID, ok := r.bySourceJob[sourceJobID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneRecord(r.records[mediaID]), nil
}

func (r *MemoryMediaRepository) GetMedia(_ context.Context, mediaID string) (*domain.MediaRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.records[mediaID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneRecord(record), nil
}

func (r *MemoryMediaRepository) ListByOwner(
	_ context.Context,
	filter domain.MediaListFilter,
) ([]domain.MediaRecord, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}

	items := make([]domain.MediaRecord, 0)
	for _, record := range r.records {
		if record.UserEmail != filter.UserEmail {
			continue
		}
		items = append(items, *cloneRecord(record))
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})

	total := len(items)
	start := (filter.Page - 1) * filter.PageSize
	if start >= total {
		return []domain.MediaRecord{}, total, nil
	}
	end := start + filter.PageSize
	if end > total {
		end = total
	}
	return items[start:end], total, nil
}

func cloneRecord(record *domain.MediaRecord) *domain.MediaRecord {
	if record == nil {
		return nil
	}
	clone := *record
	clone.Params = append([]byte(nil), record.Params...)
	clone.AssetRefs = append([]string(nil), record.AssetRefs...)
	return &clone
}
