// Package collect implements the pull collectors dispatched by the
// scheduler: daily price history, news articles, social posts and the live
// universe snapshot. Every collector is safe to re-run: all writes go
// through the windowed merge stores, and per-asset staleness checks skip
// work that is already fresh.
package collect

import (
	"context"
	"errors"
	"log"
	"time"

	"crypto-collector/internal/dataset"
	"crypto-collector/internal/domain"
	"crypto-collector/internal/observability"
	"crypto-collector/internal/provider"
)

// HistoryOptions configures a HistoryCollector.
type HistoryOptions struct {
	Source   provider.HistorySource
	Store    *dataset.Store[domain.PricePoint]
	Currency string
	// Days is the range requested from the provider; the store's horizon
	// still bounds what is kept.
	Days int
	// Delay paces provider calls.
	Delay time.Duration
	// SymbolOverrides remaps symbols for the provider query only; dataset
	// names always use the universe symbol.
	SymbolOverrides map[string]string
	Logger          *log.Logger
	Now             func() time.Time
	Sleep           func(time.Duration)
}

// HistoryCollector fetches daily OHLCV history for a set of assets from one
// provider and merges it into the per-asset history datasets.
type HistoryCollector struct {
	source    provider.HistorySource
	store     *dataset.Store[domain.PricePoint]
	currency  string
	days      int
	delay     time.Duration
	overrides map[string]string
	logger    *log.Logger
	now       func() time.Time
	sleep     func(time.Duration)
}

// NewHistoryCollector creates a HistoryCollector.
func NewHistoryCollector(opts HistoryOptions) *HistoryCollector {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	return &HistoryCollector{
		source:    opts.Source,
		store:     opts.Store,
		currency:  opts.Currency,
		days:      opts.Days,
		delay:     opts.Delay,
		overrides: opts.SymbolOverrides,
		logger:    logger,
		now:       now,
		sleep:     sleep,
	}
}

// Collect fetches and merges history for each asset in turn. Failures are
// per-asset: one asset's provider error never aborts the rest. It returns
// the total number of rows inserted.
func (c *HistoryCollector) Collect(ctx context.Context, assets []domain.Asset) int {
	inserted := 0
	for i, asset := range assets {
		if ctx.Err() != nil {
			return inserted
		}
		if c.upToDate(asset.Symbol) {
			c.logger.Printf("history: skipping %s, data already up to date", asset.Symbol)
			continue
		}
		if i > 0 {
			c.sleep(c.delay)
		}

		query := asset
		if override, ok := c.overrides[asset.Symbol]; ok {
			query.Symbol = override
		}

		points, err := c.source.DailyHistory(ctx, query, c.currency, c.days)
		if err != nil {
			if errors.Is(err, provider.ErrRateLimited) {
				observability.RecordProviderError("history", "rate_limit")
				c.logger.Printf("history: rate limited, skipping %s", asset.Symbol)
			} else {
				observability.RecordProviderError("history", "error")
				c.logger.Printf("history: fetch failed for %s: %v", asset.Symbol, err)
			}
			continue
		}

		n, err := c.store.Merge(asset.Symbol, points)
		if err != nil {
			c.logger.Printf("history: merge failed for %s: %v", asset.Symbol, err)
			continue
		}
		inserted += n
	}
	return inserted
}

// upToDate reports whether the asset's newest stored candle is less than a
// day old, making a refetch pointless.
func (c *HistoryCollector) upToDate(symbol string) bool {
	rows, err := c.store.Load(symbol)
	if err != nil || len(rows) == 0 {
		return false
	}
	last, err := time.Parse(dataset.DateFormat, rows[len(rows)-1].Date)
	if err != nil {
		return false
	}
	today := c.now().UTC().Truncate(24 * time.Hour)
	return today.Sub(last) < 24*time.Hour
}
