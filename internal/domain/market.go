package domain

import "time"

// MarketQuote is one row of the ranked market snapshot returned by the
// market-data capability, ordered by market cap descending.
type MarketQuote struct {
	Symbol             string
	Name               string
	ProviderID         string
	Price              float64
	MarketCap          float64
	TotalVolume        float64
	PriceChangePct24h  float64
	MarketCapChgPct24h float64
}

// LiveRow is one row of the live snapshot dataset, written every scheduler
// tick for every member of the active universe.
type LiveRow struct {
	Timestamp          time.Time
	Symbol             string
	Price              float64
	MarketCap          float64
	TotalVolume        float64
	PriceChangePct24h  float64
	MarketCapChgPct24h float64
	PriceOutlier       bool
}
