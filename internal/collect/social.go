package collect

import (
	"context"
	"errors"
	"log"
	"time"

	"crypto-collector/internal/analysis"
	"crypto-collector/internal/dataset"
	"crypto-collector/internal/domain"
	"crypto-collector/internal/filter"
	"crypto-collector/internal/observability"
	"crypto-collector/internal/provider"
)

// SocialOptions configures a SocialCollector.
type SocialOptions struct {
	Source   provider.SocialSource
	Store    *dataset.Store[domain.SocialPost]
	Pipeline *filter.Pipeline
	Scorer   analysis.SentimentScorer
	// Subreddits maps an asset symbol to its community. Assets without a
	// mapping are skipped.
	Subreddits map[string]string
	Delay      time.Duration
	Staleness  time.Duration
	Logger     *log.Logger
	Now        func() time.Time
	Sleep      func(time.Duration)
}

// SocialCollector fetches top posts per asset community, runs them through
// the filter pipeline, scores sentiment and merges into the per-asset social
// datasets.
type SocialCollector struct {
	source     provider.SocialSource
	store      *dataset.Store[domain.SocialPost]
	pipeline   *filter.Pipeline
	scorer     analysis.SentimentScorer
	subreddits map[string]string
	delay      time.Duration
	staleness  time.Duration
	logger     *log.Logger
	now        func() time.Time
	sleep      func(time.Duration)
}

// NewSocialCollector creates a SocialCollector.
func NewSocialCollector(opts SocialOptions) *SocialCollector {
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
	return &SocialCollector{
		source:     opts.Source,
		store:      opts.Store,
		pipeline:   opts.Pipeline,
		scorer:     opts.Scorer,
		subreddits: opts.Subreddits,
		delay:      opts.Delay,
		staleness:  opts.Staleness,
		logger:     logger,
		now:        now,
		sleep:      sleep,
	}
}

// Collect fetches and merges posts for each mapped asset in turn. It returns
// the total number of rows inserted.
func (c *SocialCollector) Collect(ctx context.Context, assets []domain.Asset) int {
	inserted := 0
	first := true
	for _, asset := range assets {
		if ctx.Err() != nil {
			return inserted
		}
		subreddit, ok := c.subreddits[asset.Symbol]
		if !ok {
			continue
		}
		if c.fresh(asset.Symbol) {
			c.logger.Printf("social: skipping %s, posts already up to date", asset.Symbol)
			continue
		}
		if !first {
			c.sleep(c.delay)
		}
		first = false

		posts, err := c.source.TopPosts(ctx, subreddit)
		if err != nil {
			if errors.Is(err, provider.ErrRateLimited) {
				observability.RecordProviderError("social", "rate_limit")
				c.logger.Printf("social: rate limited, skipping r/%s", subreddit)
			} else {
				observability.RecordProviderError("social", "error")
				c.logger.Printf("social: fetch failed for r/%s: %v", subreddit, err)
			}
			continue
		}

		accepted := c.pipeline.FilterPosts(ctx, posts)
		rows := make([]domain.SocialPost, 0, len(accepted))
		for _, post := range accepted {
			rows = append(rows, domain.SocialPost{
				PostID:         post.PostID,
				Subreddit:      post.Subreddit,
				Title:          post.Title,
				Score:          post.Score,
				CreatedAt:      post.CreatedAt,
				SentimentScore: analysis.SafeScore(ctx, c.scorer, post.Title+" "+post.Body),
			})
		}

		n, err := c.store.Merge(asset.Symbol, rows)
		if err != nil {
			c.logger.Printf("social: merge failed for %s: %v", asset.Symbol, err)
			continue
		}
		inserted += n
	}
	return inserted
}

func (c *SocialCollector) fresh(symbol string) bool {
	if c.staleness <= 0 {
		return false
	}
	mod, ok := c.store.ModTime(symbol)
	return ok && c.now().Sub(mod) < c.staleness
}
