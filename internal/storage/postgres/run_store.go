package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"crypto-collector/internal/domain"
	"crypto-collector/internal/storage"
)

// RunStore implements storage.RunStore using PostgreSQL.
type RunStore struct {
	pool *Pool
}

// NewRunStore creates a new RunStore.
func NewRunStore(pool *Pool) *RunStore {
	return &RunStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RunStore = (*RunStore)(nil)

// Insert adds a new run and fills in its generated ID.
func (s *RunStore) Insert(ctx context.Context, r *domain.CollectionRun) error {
	if r == nil || r.JobType == "" || r.Scope == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO collection_runs (
			job_type, scope, assets, records, started_at, finished_at, error
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)
		RETURNING id
	`

	err := s.pool.QueryRow(ctx, query,
		r.JobType, r.Scope, r.Assets, r.Records, r.StartedAt, r.FinishedAt, r.Error,
	).Scan(&r.ID)
	if err != nil {
		return fmt.Errorf("insert collection run: %w", err)
	}
	return nil
}

// GetByJobType retrieves all runs of a job type, newest first.
func (s *RunStore) GetByJobType(ctx context.Context, jobType string) ([]*domain.CollectionRun, error) {
	query := `
		SELECT id, job_type, scope, assets, records, started_at, finished_at, error
		FROM collection_runs
		WHERE job_type = $1
		ORDER BY started_at DESC, id DESC
	`

	rows, err := s.pool.Query(ctx, query, jobType)
	if err != nil {
		return nil, fmt.Errorf("get collection runs by job type: %w", err)
	}
	defer rows.Close()

	return scanCollectionRuns(rows)
}

// GetByTimeRange retrieves runs started within [start, end] (inclusive),
// ordered by start time ASC.
func (s *RunStore) GetByTimeRange(ctx context.Context, start, end time.Time) ([]*domain.CollectionRun, error) {
	query := `
		SELECT id, job_type, scope, assets, records, started_at, finished_at, error
		FROM collection_runs
		WHERE started_at >= $1 AND started_at <= $2
		ORDER BY started_at ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("get collection runs by time range: %w", err)
	}
	defer rows.Close()

	return scanCollectionRuns(rows)
}

// scanCollectionRuns scans multiple rows into a slice of CollectionRun.
func scanCollectionRuns(rows pgx.Rows) ([]*domain.CollectionRun, error) {
	var runs []*domain.CollectionRun

	for rows.Next() {
		var r domain.CollectionRun

		err := rows.Scan(
			&r.ID, &r.JobType, &r.Scope, &r.Assets, &r.Records,
			&r.StartedAt, &r.FinishedAt, &r.Error,
		)
		if err != nil {
			return nil, fmt.Errorf("scan collection run row: %w", err)
		}

		runs = append(runs, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate collection run rows: %w", err)
	}

	return runs, nil
}
