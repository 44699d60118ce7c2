package dataset

import (
	"fmt"
	"strconv"
	"time"

	"crypto-collector/internal/domain"
)

// NewsHorizon is the retention window for news datasets.
const NewsHorizon = 7 * 24 * time.Hour

// NewsCodec maps domain.NewsArticle to CSV rows keyed by URL.
type NewsCodec struct{}

var _ Codec[domain.NewsArticle] = NewsCodec{}

func (NewsCodec) Header() []string {
	return []string{"title", "source_name", "url", "published_at", "sentiment_score"}
}

func (NewsCodec) Encode(a domain.NewsArticle) []string {
	return []string{
		a.Title,
		a.SourceName,
		a.URL,
		a.PublishedAt.UTC().Format(time.RFC3339),
		formatFloat(a.SentimentScore),
	}
}

func (NewsCodec) Decode(row []string) (domain.NewsArticle, error) {
	if len(row) != 5 {
		return domain.NewsArticle{}, fmt.Errorf("expected 5 fields, got %d", len(row))
	}
	published, err := time.Parse(time.RFC3339, row[3])
	if err != nil {
		return domain.NewsArticle{}, fmt.Errorf("parse published_at %q: %w", row[3], err)
	}
	score, err := strconv.ParseFloat(row[4], 64)
	if err != nil {
		return domain.NewsArticle{}, fmt.Errorf("parse sentiment_score: %w", err)
	}
	return domain.NewsArticle{
		Title:          row[0],
		SourceName:     row[1],
		URL:            row[2],
		PublishedAt:    published,
		SentimentScore: score,
	}, nil
}

func (NewsCodec) Key(a domain.NewsArticle) string { return a.URL }

func (NewsCodec) Time(a domain.NewsArticle) time.Time { return a.PublishedAt }

// NewNewsStore creates a per-asset news store: URL-keyed, 7-day retention,
// newest first.
func NewNewsStore(dir string, opts Options) *Store[domain.NewsArticle] {
	opts.Dir = dir
	opts.Horizon = NewsHorizon
	opts.Order = NewestFirst
	return New[domain.NewsArticle](NewsCodec{}, opts)
}
