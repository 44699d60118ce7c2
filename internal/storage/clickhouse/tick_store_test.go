package clickhouse

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crypto-collector/internal/domain"
	"crypto-collector/internal/storage"
)

func createTestTick(exchange, product string, ts time.Time, price float64) *domain.TradeTick {
	return &domain.TradeTick{
		Exchange:  exchange,
		Product:   product,
		Price:     price,
		Volume:    0.25,
		Timestamp: ts,
	}
}

func TestTickStore_InsertBulkAndGetByProduct(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTickStore(conn)
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	ticks := []*domain.TradeTick{
		createTestTick("binance", "BTCUSDT", base.Add(2*time.Second), 50002),
		createTestTick("binance", "BTCUSDT", base, 50000),
		createTestTick("binance", "ETHUSDT", base.Add(time.Second), 3000),
		createTestTick("coinbase", "BTC-USD", base.Add(time.Second), 50001),
	}
	require.NoError(t, store.InsertBulk(ctx, ticks))

	got, err := store.GetByProduct(ctx, "binance", "BTCUSDT", base, base.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.True(t, got[0].Timestamp.Before(got[1].Timestamp), "ticks must be ordered by timestamp ASC")
	assert.Equal(t, 50000.0, got[0].Price)
	assert.Equal(t, 0.25, got[0].Volume)
	assert.Equal(t, "binance", got[0].Exchange)
}

func TestTickStore_TimeRangeInclusive(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTickStore(conn)
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	ticks := []*domain.TradeTick{
		createTestTick("binance", "BTCUSDT", base.Add(-time.Second), 1),
		createTestTick("binance", "BTCUSDT", base, 2),
		createTestTick("binance", "BTCUSDT", base.Add(time.Minute), 3),
		createTestTick("binance", "BTCUSDT", base.Add(time.Minute+time.Second), 4),
	}
	require.NoError(t, store.InsertBulk(ctx, ticks))

	got, err := store.GetByProduct(ctx, "binance", "BTCUSDT", base, base.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 2.0, got[0].Price)
	assert.Equal(t, 3.0, got[1].Price)
}

func TestTickStore_InvalidInput(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTickStore(conn)

	err := store.InsertBulk(ctx, []*domain.TradeTick{{Product: "BTCUSDT"}})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestTickStore_EmptyBulkIsNoop(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTickStore(conn)
	assert.NoError(t, store.InsertBulk(context.Background(), nil))
}
