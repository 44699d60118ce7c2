// Package stub provides deterministic in-memory implementations of the
// provider capabilities, used by tests and by the daemons' --use-stub mode.
package stub

import (
	"context"
	"strings"
	"sync"
	"time"

	"crypto-collector/internal/domain"
	"crypto-collector/internal/provider"
)

// MarketSource serves a fixed ranked snapshot.
type MarketSource struct {
	mu     sync.Mutex
	Quotes []domain.MarketQuote
	Err    error
}

// NewMarketSource creates a stub market source with the given snapshot.
func NewMarketSource(quotes []domain.MarketQuote) *MarketSource {
	return &MarketSource{Quotes: quotes}
}

// SetQuotes replaces the served snapshot.
func (s *MarketSource) SetQuotes(quotes []domain.MarketQuote) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Quotes = quotes
}

// TopMarkets returns up to perPage quotes in snapshot order.
func (s *MarketSource) TopMarkets(_ context.Context, _ string, perPage int) ([]domain.MarketQuote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	quotes := s.Quotes
	if perPage > 0 && perPage < len(quotes) {
		quotes = quotes[:perPage]
	}
	out := make([]domain.MarketQuote, len(quotes))
	copy(out, quotes)
	return out, nil
}

// HistorySource serves fixed candles per symbol.
type HistorySource struct {
	History map[string][]domain.PricePoint // keyed by symbol
	Err     error

	mu    sync.Mutex
	calls []string
}

// NewHistorySource creates a stub history source.
func NewHistorySource(history map[string][]domain.PricePoint) *HistorySource {
	if history == nil {
		history = make(map[string][]domain.PricePoint)
	}
	return &HistorySource{History: history}
}

// DailyHistory returns the configured candles for the asset's symbol.
func (s *HistorySource) DailyHistory(_ context.Context, asset domain.Asset, _ string, days int) ([]domain.PricePoint, error) {
	s.mu.Lock()
	s.calls = append(s.calls, asset.Symbol)
	s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	points := s.History[asset.Symbol]
	if days > 0 && days < len(points) {
		points = points[len(points)-days:]
	}
	out := make([]domain.PricePoint, len(points))
	copy(out, points)
	return out, nil
}

// Calls returns the symbols fetched so far, in order.
func (s *HistorySource) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.calls))
	copy(out, s.calls)
	return out
}

// NewsSource serves fixed articles per query term.
type NewsSource struct {
	Articles []domain.RawArticle
	// RateLimitedKeys simulates exhausted API keys.
	RateLimitedKeys map[string]bool
	Err             error

	mu   sync.Mutex
	keys []string
}

// NewNewsSource creates a stub news source.
func NewNewsSource(articles []domain.RawArticle) *NewsSource {
	return &NewsSource{Articles: articles, RateLimitedKeys: make(map[string]bool)}
}

// Everything returns articles whose title or content mentions the query's
// first quoted term, within [from, to].
func (s *NewsSource) Everything(_ context.Context, query, apiKey string, from, to time.Time) ([]domain.RawArticle, error) {
	s.mu.Lock()
	s.keys = append(s.keys, apiKey)
	s.mu.Unlock()
	if s.RateLimitedKeys[apiKey] {
		return nil, provider.ErrRateLimited
	}
	if s.Err != nil {
		return nil, s.Err
	}
	term := firstQuotedTerm(query)
	var out []domain.RawArticle
	for _, a := range s.Articles {
		if a.PublishedAt.Before(from) || a.PublishedAt.After(to) {
			continue
		}
		if term != "" && !mentions(a, term) {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

// UsedKeys returns the API keys seen so far, in order.
func (s *NewsSource) UsedKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

// SocialSource serves fixed posts per subreddit.
type SocialSource struct {
	Posts map[string][]domain.RawPost // keyed by subreddit
	Err   error
}

// NewSocialSource creates a stub social source.
func NewSocialSource(posts map[string][]domain.RawPost) *SocialSource {
	if posts == nil {
		posts = make(map[string][]domain.RawPost)
	}
	return &SocialSource{Posts: posts}
}

// TopPosts returns the configured posts for one subreddit.
func (s *SocialSource) TopPosts(_ context.Context, subreddit string) ([]domain.RawPost, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	posts := s.Posts[subreddit]
	out := make([]domain.RawPost, len(posts))
	copy(out, posts)
	return out, nil
}

// UserSource serves fixed account creation times per username.
type UserSource struct {
	Accounts map[string]time.Time
	Err      error

	mu      sync.Mutex
	lookups int
}

// NewUserSource creates a stub user-metadata source.
func NewUserSource(accounts map[string]time.Time) *UserSource {
	if accounts == nil {
		accounts = make(map[string]time.Time)
	}
	return &UserSource{Accounts: accounts}
}

// AccountCreatedAt returns the configured creation time, or nil for unknown
// users.
func (s *UserSource) AccountCreatedAt(_ context.Context, username string) (*time.Time, error) {
	s.mu.Lock()
	s.lookups++
	s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	t, ok := s.Accounts[username]
	if !ok {
		return nil, nil
	}
	created := t
	return &created, nil
}

// Lookups returns the number of lookups performed.
func (s *UserSource) Lookups() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookups
}

// Classifier labels text by keyword containment: the first configured label
// found in the text wins with fixed confidence.
type Classifier struct {
	Confidence float64
	Err        error
}

// NewClassifier creates a stub zero-shot classifier.
func NewClassifier(confidence float64) *Classifier {
	return &Classifier{Confidence: confidence}
}

// Classify returns the first label contained in the text, or the last label
// with zero confidence when none match.
func (c *Classifier) Classify(_ context.Context, text string, labels []string) (string, float64, error) {
	if c.Err != nil {
		return "", 0, c.Err
	}
	lower := strings.ToLower(text)
	for _, label := range labels {
		if strings.Contains(lower, strings.ToLower(label)) {
			return label, c.Confidence, nil
		}
	}
	if len(labels) == 0 {
		return "", 0, nil
	}
	return labels[len(labels)-1], 0, nil
}

func firstQuotedTerm(query string) string {
	start := strings.Index(query, `"`)
	if start < 0 {
		return strings.ToLower(query)
	}
	rest := query[start+1:]
	end := strings.Index(rest, `"`)
	if end < 0 {
		return strings.ToLower(rest)
	}
	return strings.ToLower(rest[:end])
}

func mentions(a domain.RawArticle, term string) bool {
	text := strings.ToLower(a.Title + " " + a.Description + " " + a.Content)
	return strings.Contains(text, term)
}
