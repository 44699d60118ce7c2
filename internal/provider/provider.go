// Package provider defines the external capability interfaces the collector
// consumes: market snapshots, pull-based history/news/social fetchers, the
// zero-shot classifier and the user-metadata lookup. HTTP clients for real
// providers live outside this repository; the stub subpackage carries
// deterministic implementations for tests and --use-stub runs.
package provider

import (
	"context"
	"errors"
	"time"

	"crypto-collector/internal/domain"
)

// ErrRateLimited is the explicit rate-limit signal, distinct from other
// provider failures. Collectors log and skip the current cycle instead of
// retrying immediately.
var ErrRateLimited = errors.New("provider rate limited")

// MarketSource returns the ranked market snapshot: quotes ordered by market
// cap descending, up to perPage entries, priced in currency.
type MarketSource interface {
	TopMarkets(ctx context.Context, currency string, perPage int) ([]domain.MarketQuote, error)
}

// HistorySource returns up to days daily OHLCV candles for one asset.
type HistorySource interface {
	DailyHistory(ctx context.Context, asset domain.Asset, currency string, days int) ([]domain.PricePoint, error)
}

// NewsSource queries articles matching query within [from, to] using the
// given API key. It returns ErrRateLimited when the key is exhausted.
type NewsSource interface {
	Everything(ctx context.Context, query, apiKey string, from, to time.Time) ([]domain.RawArticle, error)
}

// SocialSource returns recent top posts of one subreddit.
type SocialSource interface {
	TopPosts(ctx context.Context, subreddit string) ([]domain.RawPost, error)
}

// UserSource resolves a username to the account creation time. A nil result
// with nil error means the account is unknown or the lookup was skipped.
type UserSource interface {
	AccountCreatedAt(ctx context.Context, username string) (*time.Time, error)
}

// Classifier is the zero-shot text classifier capability.
type Classifier interface {
	// Classify returns the top-ranked label from labels and its confidence.
	Classify(ctx context.Context, text string, labels []string) (label string, confidence float64, err error)
}
