package storage

import (
	"context"
	"time"

	"crypto-collector/internal/domain"
)

// TickStore provides access to trade_ticks storage.
type TickStore interface {
	// InsertBulk adds multiple ticks. Fails the entire batch on error.
	InsertBulk(ctx context.Context, ticks []*domain.TradeTick) error

	// GetByProduct retrieves ticks for one exchange product within
	// [start, end] (inclusive), ordered by timestamp ASC.
	GetByProduct(ctx context.Context, exchange, product string, start, end time.Time) ([]*domain.TradeTick, error)
}

// RunStore provides access to collection_runs storage.
type RunStore interface {
	// Insert adds a new run and fills in its generated ID.
	Insert(ctx context.Context, r *domain.CollectionRun) error

	// GetByJobType retrieves all runs of a job type, newest first.
	GetByJobType(ctx context.Context, jobType string) ([]*domain.CollectionRun, error)

	// GetByTimeRange retrieves runs started within [start, end] (inclusive),
	// ordered by start time ASC.
	GetByTimeRange(ctx context.Context, start, end time.Time) ([]*domain.CollectionRun, error)
}
