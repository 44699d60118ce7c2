package domain

import "time"

// NewsArticle is one row of a per-asset news dataset, keyed by URL.
type NewsArticle struct {
	Title          string
	SourceName     string
	URL            string
	PublishedAt    time.Time
	SentimentScore float64
}

// RawArticle is a provider-native article before relevance filtering and
// sentiment scoring. Rejected articles are dropped without trace.
type RawArticle struct {
	Title       string
	Description string
	Content     string
	SourceName  string
	URL         string
	PublishedAt time.Time
}
