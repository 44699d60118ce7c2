package collect

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"crypto-collector/internal/analysis"
	"crypto-collector/internal/config"
	"crypto-collector/internal/domain"
	"crypto-collector/internal/filter"
	"crypto-collector/internal/provider/stub"
)

// Collectors look up assets by the upper-cased universe symbol while YAML
// map keys arrive lower-cased from viper, so these tests go through
// config.Load instead of building options structs directly.

func loadConfig(t *testing.T, content string) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return cfg
}

func TestSocialCollector_SubredditsFromLoadedConfig(t *testing.T) {
	cfg := loadConfig(t, `
collector:
  currency: usd

social:
  subreddits:
    btc: Bitcoin
`)

	source := stub.NewSocialSource(map[string][]domain.RawPost{
		"Bitcoin": {healthyPost("a", "bitcoin breaks resistance")},
	})
	pipeline := filter.New(filter.Options{
		Classifier: stub.NewClassifier(0.9),
		Users:      stub.NewUserSource(nil),
		Config:     filter.Config{Keywords: []string{"bitcoin", "crypto"}},
		Now:        fixedNow,
		Sleep:      func(time.Duration) {},
	})
	c := NewSocialCollector(SocialOptions{
		Source:     source,
		Store:      socialStore(t),
		Pipeline:   pipeline,
		Scorer:     analysis.NeutralScorer{},
		Subreddits: cfg.Social.Subreddits,
		Now:        fixedNow,
		Sleep:      func(time.Duration) {},
	})

	n := c.Collect(context.Background(), []domain.Asset{{Symbol: "BTC", Name: "Bitcoin"}})
	if n != 1 {
		t.Fatalf("BTC should map to r/Bitcoin through a loaded config, got %d inserted", n)
	}
}

func TestHistoryCollector_OverridesFromLoadedConfig(t *testing.T) {
	cfg := loadConfig(t, `
collector:
  currency: usd
  symbol_overrides:
    mnt: MANTLE
`)

	source := stub.NewHistorySource(map[string][]domain.PricePoint{
		"MANTLE": {candle("2024-06-09", 1.2)},
	})
	c := NewHistoryCollector(HistoryOptions{
		Source: source, Store: historyStore(t), Currency: "usd", Days: 30,
		SymbolOverrides: cfg.Collector.SymbolOverrides,
		Now:             fixedNow, Sleep: func(time.Duration) {},
	})

	n := c.Collect(context.Background(), []domain.Asset{{Symbol: "MNT", Name: "Mantle"}})
	if n != 1 {
		t.Fatalf("expected 1 inserted, got %d", n)
	}
	if calls := source.Calls(); len(calls) != 1 || calls[0] != "MANTLE" {
		t.Errorf("provider should see the loaded override, got %v", calls)
	}
}
