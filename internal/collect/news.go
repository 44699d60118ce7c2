package collect

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"crypto-collector/internal/analysis"
	"crypto-collector/internal/dataset"
	"crypto-collector/internal/domain"
	"crypto-collector/internal/filter"
	"crypto-collector/internal/observability"
	"crypto-collector/internal/provider"
)

// keyRotator hands out API keys round-robin. It is safe for concurrent use.
type keyRotator struct {
	mu    sync.Mutex
	keys  []string
	index int
}

func newKeyRotator(keys []string) *keyRotator {
	return &keyRotator{keys: keys}
}

func (r *keyRotator) next() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.keys) == 0 {
		return "", false
	}
	key := r.keys[r.index%len(r.keys)]
	r.index++
	return key, true
}

// NewsOptions configures a NewsCollector.
type NewsOptions struct {
	Source provider.NewsSource
	Store  *dataset.Store[domain.NewsArticle]
	Scorer analysis.SentimentScorer
	// APIKeys rotate on rate-limit responses; a query gives up after every
	// key has been tried once.
	APIKeys   []string
	RangeDays int
	Delay     time.Duration
	// Staleness skips an asset whose dataset file was written recently.
	Staleness time.Duration
	Logger    *log.Logger
	Now       func() time.Time
	Sleep     func(time.Duration)
}

// NewsCollector queries the news provider per asset, keeps only articles
// primarily about that asset, scores sentiment and merges into the per-asset
// news datasets.
type NewsCollector struct {
	source    provider.NewsSource
	store     *dataset.Store[domain.NewsArticle]
	scorer    analysis.SentimentScorer
	rotator   *keyRotator
	keyCount  int
	rangeDays int
	delay     time.Duration
	staleness time.Duration
	logger    *log.Logger
	now       func() time.Time
	sleep     func(time.Duration)
}

// NewNewsCollector creates a NewsCollector.
func NewNewsCollector(opts NewsOptions) *NewsCollector {
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
	return &NewsCollector{
		source:    opts.Source,
		store:     opts.Store,
		scorer:    opts.Scorer,
		rotator:   newKeyRotator(opts.APIKeys),
		keyCount:  len(opts.APIKeys),
		rangeDays: opts.RangeDays,
		delay:     opts.Delay,
		staleness: opts.Staleness,
		logger:    logger,
		now:       now,
		sleep:     sleep,
	}
}

// Collect fetches, filters and merges news for each asset in turn. It
// returns the total number of rows inserted.
func (c *NewsCollector) Collect(ctx context.Context, assets []domain.Asset) int {
	// Every asset's name and symbol, for cross-mention filtering.
	allTerms := make([]string, 0, 2*len(assets))
	for _, a := range assets {
		allTerms = append(allTerms, a.Name, a.Symbol)
	}

	inserted := 0
	first := true
	for _, asset := range assets {
		if ctx.Err() != nil {
			return inserted
		}
		if c.fresh(asset.Symbol) {
			c.logger.Printf("news: skipping %s, articles already up to date", asset.Symbol)
			continue
		}
		if !first {
			c.sleep(c.delay)
		}
		first = false

		articles, err := c.query(ctx, asset)
		if err != nil {
			c.logger.Printf("news: query failed for %s: %v", asset.Symbol, err)
			continue
		}

		rows := c.filterAndScore(ctx, asset, articles, otherTerms(allTerms, asset))
		n, err := c.store.Merge(asset.Symbol, rows)
		if err != nil {
			c.logger.Printf("news: merge failed for %s: %v", asset.Symbol, err)
			continue
		}
		inserted += n
	}
	return inserted
}

// query runs one provider search, rotating through API keys while the
// provider signals rate limiting.
func (c *NewsCollector) query(ctx context.Context, asset domain.Asset) ([]domain.RawArticle, error) {
	now := c.now().UTC()
	from := now.AddDate(0, 0, -c.rangeDays)
	search := fmt.Sprintf("%q OR %q", asset.Name, asset.Symbol)

	var lastErr error
	for attempt := 0; attempt < c.keyCount; attempt++ {
		key, ok := c.rotator.next()
		if !ok {
			break
		}
		articles, err := c.source.Everything(ctx, search, key, from, now)
		if err == nil {
			return articles, nil
		}
		lastErr = err
		if errors.Is(err, provider.ErrRateLimited) {
			observability.RecordProviderError("news", "rate_limit")
			c.logger.Printf("news: key %d/%d rate limited for %s, trying next key", attempt+1, c.keyCount, asset.Symbol)
			continue
		}
		observability.RecordProviderError("news", "error")
		c.logger.Printf("news: provider error for %s: %v", asset.Symbol, err)
	}
	if lastErr == nil {
		lastErr = errors.New("no API keys configured")
	}
	return nil, fmt.Errorf("all keys exhausted: %w", lastErr)
}

func (c *NewsCollector) filterAndScore(ctx context.Context, asset domain.Asset, articles []domain.RawArticle, others []string) []domain.NewsArticle {
	var rows []domain.NewsArticle
	for _, a := range articles {
		if !filter.RelevantArticle(a, asset, others) {
			continue
		}
		text := a.Title + " " + a.SourceName + " " + a.Content
		rows = append(rows, domain.NewsArticle{
			Title:          a.Title,
			SourceName:     a.SourceName,
			URL:            a.URL,
			PublishedAt:    a.PublishedAt,
			SentimentScore: analysis.SafeScore(ctx, c.scorer, text),
		})
	}
	return rows
}

func (c *NewsCollector) fresh(symbol string) bool {
	if c.staleness <= 0 {
		return false
	}
	mod, ok := c.store.ModTime(symbol)
	return ok && c.now().Sub(mod) < c.staleness
}

// otherTerms returns every universe term that is not the asset's own name or
// symbol, case-insensitively.
func otherTerms(all []string, asset domain.Asset) []string {
	own := map[string]bool{
		strings.ToLower(asset.Name):   true,
		strings.ToLower(asset.Symbol): true,
	}
	var out []string
	for _, term := range all {
		if term == "" || own[strings.ToLower(term)] {
			continue
		}
		out = append(out, term)
	}
	return out
}
