package dataset

import (
	"fmt"
	"strconv"
	"time"

	"crypto-collector/internal/domain"
)

// LiveHorizon is the retention window for the live snapshot dataset.
const LiveHorizon = 24 * time.Hour

// liveTimeFormat matches the millisecond-precision timestamps written to the
// live snapshot dataset.
const liveTimeFormat = "2006-01-02 15:04:05.000"

// LiveCodec maps domain.LiveRow to CSV rows keyed by (timestamp, symbol).
type LiveCodec struct{}

var _ Codec[domain.LiveRow] = LiveCodec{}

func (LiveCodec) Header() []string {
	return []string{
		"timestamp",
		"symbol",
		"price",
		"market_cap",
		"total_volume",
		"price_change_pct_24h",
		"market_cap_change_pct_24h",
		"price_outlier_flag",
	}
}

func (LiveCodec) Encode(r domain.LiveRow) []string {
	flag := "f"
	if r.PriceOutlier {
		flag = "t"
	}
	return []string{
		r.Timestamp.UTC().Format(liveTimeFormat),
		r.Symbol,
		formatFloat(r.Price),
		formatFloat(r.MarketCap),
		formatFloat(r.TotalVolume),
		formatFloat(r.PriceChangePct24h),
		formatFloat(r.MarketCapChgPct24h),
		flag,
	}
}

func (LiveCodec) Decode(row []string) (domain.LiveRow, error) {
	if len(row) != 8 {
		return domain.LiveRow{}, fmt.Errorf("expected 8 fields, got %d", len(row))
	}
	ts, err := time.ParseInLocation(liveTimeFormat, row[0], time.UTC)
	if err != nil {
		return domain.LiveRow{}, fmt.Errorf("parse timestamp %q: %w", row[0], err)
	}
	out := domain.LiveRow{
		Timestamp:    ts,
		Symbol:       row[1],
		PriceOutlier: row[7] == "t",
	}
	if out.Price, err = strconv.ParseFloat(row[2], 64); err != nil {
		return domain.LiveRow{}, fmt.Errorf("parse price: %w", err)
	}
	if out.MarketCap, err = strconv.ParseFloat(row[3], 64); err != nil {
		return domain.LiveRow{}, fmt.Errorf("parse market_cap: %w", err)
	}
	if out.TotalVolume, err = strconv.ParseFloat(row[4], 64); err != nil {
		return domain.LiveRow{}, fmt.Errorf("parse total_volume: %w", err)
	}
	if out.PriceChangePct24h, err = strconv.ParseFloat(row[5], 64); err != nil {
		return domain.LiveRow{}, fmt.Errorf("parse price_change_pct_24h: %w", err)
	}
	if out.MarketCapChgPct24h, err = strconv.ParseFloat(row[6], 64); err != nil {
		return domain.LiveRow{}, fmt.Errorf("parse market_cap_change_pct_24h: %w", err)
	}
	return out, nil
}

func (LiveCodec) Key(r domain.LiveRow) string {
	return r.Timestamp.UTC().Format(liveTimeFormat) + "|" + r.Symbol
}

func (LiveCodec) Time(r domain.LiveRow) time.Time { return r.Timestamp }

// NewLiveStore creates the live snapshot store: one row per (tick, symbol),
// 24-hour retention, chronological order.
func NewLiveStore(dir string, opts Options) *Store[domain.LiveRow] {
	opts.Dir = dir
	opts.Horizon = LiveHorizon
	opts.Order = KeyAscending
	return New[domain.LiveRow](LiveCodec{}, opts)
}
