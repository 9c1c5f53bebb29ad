package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/evora/mediagen-back/internal/domain"
)

// PostgresMediaRepository persists media records in the media_records table.
// The unique index on source_job_id makes InsertIfAbsent race-safe across
// concurrent workers.
type PostgresMediaRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresMediaRepository(ctx context.Context, databaseURL string) (*PostgresMediaRepository, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pg pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping pg: %w", err)
	}
	return &PostgresMediaRepository{pool: pool}, nil
}

func (r *PostgresMediaRepository) Close() {
	r.pool.Close()
}

func (r *PostgresMediaRepository) InsertIfAbsent(ctx context.Context, record *domain.MediaRecord) (bool, error) {
	assetRefs, err := json.Marshal(record.AssetRefs)
	if err != nil {
		return false, fmt.Errorf("encode asset refs: %w", err)
	}

	command, err := r.pool.Exec(ctx, `
		INSERT INTO media_records (
			media_id,
			source_job_id,
			user_email,
			session_id,
			model_key,
			params,
			storage_ref,
			asset_refs,
			created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (source_job_id) DO NOTHING
	`,
		record.MediaID,
		record.SourceJobID,
		record.UserEmail,
		record.SessionID,
		record.ModelKey,
		record.Params,
		record.StorageRef,
		assetRefs,
		record.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert media record: %w", err)
	}
	return command.RowsAffected() > 0, nil
}

func (r *PostgresMediaRepository) FindBySourceJob(ctx context.Context, sourceJobID string) (*domain.MediaRecord, error) {
	return r.queryOne(ctx, `
		SELECT media_id, source_job_id, user_email, session_id, model_key, params, storage_ref, asset_refs, created_at
		FROM media_records
		WHERE source_job_id = $1
	`, sourceJobID)
}

func (r *PostgresMediaRepository) GetMedia(ctx context.Context, mediaID string) (*domain.MediaRecord, error) {
	return r.queryOne(ctx, `
		SELECT media_id, source_job_id, user_email, session_id, model_key, params, storage_ref, asset_refs, created_at
		FROM media_records
		WHERE media_id = $1
	`, mediaID)
}

func (r *PostgresMediaRepository) ListByOwner(
	ctx context.Context,
	filter domain.MediaListFilter,
) ([]domain.MediaRecord, int, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}

	var total int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM media_records WHERE user_email = $1`,
		filter.UserEmail,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count media records: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT media_id, source_job_id, user_email, session_id, model_key, params, storage_ref, asset_refs, created_at
		FROM media_records
		WHERE user_email = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, filter.UserEmail, filter.PageSize, (filter.Page-1)*filter.PageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("list media records: %w", err)
	}
	defer rows.Close()

	items := make([]domain.MediaRecord, 0)
	for rows.Next() {
		record, scanErr := scanRecord(rows.Scan)
		if scanErr != nil {
			return nil, 0, scanErr
		}
		items = append(items, *record)
	}
	if rows.Err() != nil {
		return nil, 0, fmt.Errorf("iterate media records: %w", rows.Err())
	}

	return items, total, nil
}

func (r *PostgresMediaRepository) queryOne(ctx context.Context, query string, arg any) (*domain.MediaRecord, error) {
	row := r.pool.QueryRow(ctx, query, arg)
	record, err := scanRecord(row.Scan)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return record, nil
}

func scanRecord(scan func(...any) error) (*domain.MediaRecord, error) {
	var (
		record    domain.MediaRecord
		params    []byte
		assetRefs []byte
		createdAt time.Time
	)
	err := scan(
		&record.MediaID,
		&record.SourceJobID,
		&record.UserEmail,
		&record.SessionID,
		&record.ModelKey,
		&params,
		&record.StorageRef,
		&assetRefs,
		&createdAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan media record: %w", err)
	}
	record.Params = json.RawMessage(params)
	record.CreatedAt = createdAt
	if len(assetRefs) > 0 {
		if decodeErr := json.Unmarshal(assetRefs, &record.AssetRefs); decodeErr != nil {
			return nil, fmt.Errorf("decode asset refs: %w", decodeErr)
		}
	}
	return &record, nil
}
