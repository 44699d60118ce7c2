package collect

import (
	"log"
	"time"

	"crypto-collector/internal/analysis"
	"crypto-collector/internal/dataset"
	"crypto-collector/internal/domain"
)

// LiveDatasetName is the single dataset all live snapshot rows share.
const LiveDatasetName = "live_data"

// LiveOptions configures a LiveCollector.
type LiveOptions struct {
	Store *dataset.Store[domain.LiveRow]
	// History backs the price outlier flag. Unreadable or missing history
	// means a row is never flagged.
	History *dataset.Store[domain.PricePoint]
	Logger  *log.Logger
	Now     func() time.Time
}

// LiveCollector persists one snapshot row per universe member per tick,
// tagging each row with the price outlier flag.
type LiveCollector struct {
	store   *dataset.Store[domain.LiveRow]
	history *dataset.Store[domain.PricePoint]
	logger  *log.Logger
	now     func() time.Time
}

// NewLiveCollector creates a LiveCollector.
func NewLiveCollector(opts LiveOptions) *LiveCollector {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &LiveCollector{
		store:   opts.Store,
		history: opts.History,
		logger:  logger,
		now:     now,
	}
}

// Snapshot writes one live row per quote and returns the number inserted.
func (c *LiveCollector) Snapshot(quotes []domain.MarketQuote) int {
	timestamp := c.now().UTC()
	rows := make([]domain.LiveRow, 0, len(quotes))
	for _, q := range quotes {
		history, err := c.history.Load(q.Symbol)
		if err != nil {
			c.logger.Printf("live: history unreadable for %s: %v", q.Symbol, err)
			history = nil
		}
		rows = append(rows, domain.LiveRow{
			Timestamp:          timestamp,
			Symbol:             q.Symbol,
			Price:              q.Price,
			MarketCap:          q.MarketCap,
			TotalVolume:        q.TotalVolume,
			PriceChangePct24h:  q.PriceChangePct24h,
			MarketCapChgPct24h: q.MarketCapChgPct24h,
			PriceOutlier:       analysis.IsPriceOutlier(history, q.Price),
		})
	}

	n, err := c.store.Merge(LiveDatasetName, rows)
	if err != nil {
		c.logger.Printf("live: merge failed: %v", err)
		return 0
	}
	return n
}
