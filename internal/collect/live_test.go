package collect

import (
	"testing"

	"crypto-collector/internal/dataset"
	"crypto-collector/internal/domain"
)

func TestLiveCollector_SnapshotWithOutlierFlag(t *testing.T) {
	history := historyStore(t)
	// Stable candles around 100; a live price of 100.5 is ordinary, 500 is
	// far outside both fences.
	var candles []domain.PricePoint
	for i, close := range []float64{99, 100, 101, 100, 99, 101, 100, 99, 100, 101} {
		candles = append(candles, candle(collectNow.AddDate(0, 0, i-12).Format(dataset.DateFormat), close))
	}
	if _, err := history.Merge("BTC", candles); err != nil {
		t.Fatal(err)
	}

	store := dataset.NewLiveStore(t.TempDir(), dataset.Options{Now: fixedNow})
	c := NewLiveCollector(LiveOptions{Store: store, History: history, Now: fixedNow})

	n := c.Snapshot([]domain.MarketQuote{
		{Symbol: "BTC", Name: "Bitcoin", Price: 500, MarketCap: 1e12, TotalVolume: 1e10},
		{Symbol: "ETH", Name: "Ethereum", Price: 3000, MarketCap: 4e11, TotalVolume: 5e9},
	})
	if n != 2 {
		t.Fatalf("expected 2 rows, got %d", n)
	}

	rows, err := store.Load(LiveDatasetName)
	if err != nil || len(rows) != 2 {
		t.Fatalf("Load: rows=%d err=%v", len(rows), err)
	}

	bySymbol := map[string]domain.LiveRow{}
	for _, r := range rows {
		bySymbol[r.Symbol] = r
	}
	if !bySymbol["BTC"].PriceOutlier {
		t.Error("a 5x spike against flat history should be flagged")
	}
	// ETH has no history at all, so it can never be an outlier.
	if bySymbol["ETH"].PriceOutlier {
		t.Error("missing history must not flag an outlier")
	}
}

func TestLiveCollector_RepeatedSnapshotSameTickIsIdempotent(t *testing.T) {
	store := dataset.NewLiveStore(t.TempDir(), dataset.Options{Now: fixedNow})
	c := NewLiveCollector(LiveOptions{Store: store, History: historyStore(t), Now: fixedNow})

	quotes := []domain.MarketQuote{{Symbol: "BTC", Price: 50000}}
	if n := c.Snapshot(quotes); n != 1 {
		t.Fatalf("first snapshot: %d", n)
	}
	// Same timestamp and symbol key: first-seen-wins drops the repeat.
	if n := c.Snapshot(quotes); n != 0 {
		t.Errorf("repeated snapshot should insert nothing, got %d", n)
	}
}
