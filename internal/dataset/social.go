package dataset

import (
	"fmt"
	"strconv"
	"time"

	"crypto-collector/internal/domain"
)

// SocialHorizon is the retention window for social datasets.
const SocialHorizon = 30 * 24 * time.Hour

// SocialCodec maps domain.SocialPost to CSV rows keyed by post ID.
type SocialCodec struct{}

var _ Codec[domain.SocialPost] = SocialCodec{}

func (SocialCodec) Header() []string {
	return []string{"post_id", "subreddit", "title", "score", "created_utc", "sentiment_score"}
}

func (SocialCodec) Encode(p domain.SocialPost) []string {
	return []string{
		p.PostID,
		p.Subreddit,
		p.Title,
		strconv.Itoa(p.Score),
		p.CreatedAt.UTC().Format(time.RFC3339),
		formatFloat(p.SentimentScore),
	}
}

func (SocialCodec) Decode(row []string) (domain.SocialPost, error) {
	if len(row) != 6 {
		return domain.SocialPost{}, fmt.Errorf("expected 6 fields, got %d", len(row))
	}
	score, err := strconv.Atoi(row[3])
	if err != nil {
		return domain.SocialPost{}, fmt.Errorf("parse score: %w", err)
	}
	created, err := time.Parse(time.RFC3339, row[4])
	if err != nil {
		return domain.SocialPost{}, fmt.Errorf("parse created_utc %q: %w", row[4], err)
	}
	sentiment, err := strconv.ParseFloat(row[5], 64)
	if err != nil {
		return domain.SocialPost{}, fmt.Errorf("parse sentiment_score: %w", err)
	}
	return domain.SocialPost{
		PostID:         row[0],
		Subreddit:      row[1],
		Title:          row[2],
		Score:          score,
		CreatedAt:      created,
		SentimentScore: sentiment,
	}, nil
}

func (SocialCodec) Key(p domain.SocialPost) string { return p.PostID }

func (SocialCodec) Time(p domain.SocialPost) time.Time { return p.CreatedAt }

// NewSocialStore creates a per-asset social store: post-ID-keyed, 30-day
// retention, newest first.
func NewSocialStore(dir string, opts Options) *Store[domain.SocialPost] {
	opts.Dir = dir
	opts.Horizon = SocialHorizon
	opts.Order = NewestFirst
	return New[domain.SocialPost](SocialCodec{}, opts)
}
