package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"crypto-collector/internal/domain"
	"crypto-collector/internal/storage"
)

// TickStore implements storage.TickStore using ClickHouse. The trade_ticks
// table is append-only; MergeTree does not enforce uniqueness and the stream
// connectors never replay accepted ticks.
type TickStore struct {
	conn *Conn
}

// NewTickStore creates a new TickStore.
func NewTickStore(conn *Conn) *TickStore {
	return &TickStore{conn: conn}
}

// Compile-time interface check.
var _ storage.TickStore = (*TickStore)(nil)

// InsertBulk adds multiple ticks in a single batch.
func (s *TickStore) InsertBulk(ctx context.Context, ticks []*domain.TradeTick) error {
	if len(ticks) == 0 {
		return nil
	}

	for _, t := range ticks {
		if t == nil || t.Exchange == "" || t.Product == "" {
			return storage.ErrInvalidInput
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO trade_ticks (
			exchange, product, price, volume, timestamp
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, t := range ticks {
		err = batch.Append(
			t.Exchange, t.Product, t.Price, t.Volume, t.Timestamp.UTC(),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByProduct retrieves ticks for one exchange product within [start, end]
// (inclusive), ordered by timestamp ASC.
func (s *TickStore) GetByProduct(ctx context.Context, exchange, product string, start, end time.Time) ([]*domain.TradeTick, error) {
	query := `
		SELECT exchange, product, price, volume, timestamp
		FROM trade_ticks
		WHERE exchange = ? AND product = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC
	`

	rows, err := s.conn.Query(ctx, query, exchange, product, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("query ticks by product: %w", err)
	}
	defer rows.Close()

	return scanTradeTicks(rows)
}

// scanTradeTicks scans multiple rows into a slice of TradeTick.
func scanTradeTicks(rows driver.Rows) ([]*domain.TradeTick, error) {
	var ticks []*domain.TradeTick

	for rows.Next() {
		var t domain.TradeTick

		err := rows.Scan(&t.Exchange, &t.Product, &t.Price, &t.Volume, &t.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("scan tick row: %w", err)
		}

		ticks = append(ticks, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tick rows: %w", err)
	}

	return ticks, nil
}
