package collect

import (
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"crypto-collector/internal/analysis"
	"crypto-collector/internal/dataset"
	"crypto-collector/internal/domain"
)

// SentimentFileName is the snapshot file written next to the live dataset.
const SentimentFileName = "live_sentiment.csv"

// SentimentOptions configures a SentimentCollector.
type SentimentOptions struct {
	News   *dataset.Store[domain.NewsArticle]
	Social *dataset.Store[domain.SocialPost]
	// Dir is the directory the summary snapshot is written to.
	Dir    string
	Logger *log.Logger
}

// SentimentCollector aggregates the persisted per-asset sentiment scores
// into one weighted summary row per asset. Unlike the merge stores the
// summary is a full snapshot: every run rewrites the whole file.
type SentimentCollector struct {
	news   *dataset.Store[domain.NewsArticle]
	social *dataset.Store[domain.SocialPost]
	dir    string
	logger *log.Logger
}

// NewSentimentCollector creates a SentimentCollector.
func NewSentimentCollector(opts SentimentOptions) *SentimentCollector {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &SentimentCollector{
		news:   opts.News,
		social: opts.Social,
		dir:    opts.Dir,
		logger: logger,
	}
}

// Collect summarizes every asset and rewrites the snapshot file. It returns
// the number of summary rows written; an unreadable dataset counts as empty.
func (c *SentimentCollector) Collect(ctx context.Context, assets []domain.Asset) int {
	summaries := make([]domain.SentimentSummary, 0, len(assets))
	for _, asset := range assets {
		if ctx.Err() != nil {
			return 0
		}
		summaries = append(summaries, c.summarize(asset.Symbol))
	}

	if err := c.write(summaries); err != nil {
		c.logger.Printf("sentiment: snapshot write failed: %v", err)
		return 0
	}
	return len(summaries)
}

func (c *SentimentCollector) summarize(symbol string) domain.SentimentSummary {
	newsScore, newsCount := analysis.AverageSentiment(c.newsScores(symbol))
	socialScore, socialCount := analysis.AverageSentiment(c.socialScores(symbol))

	return domain.SentimentSummary{
		Symbol:        symbol,
		WeightedScore: analysis.WeightedSentiment(newsScore, newsCount, socialScore, socialCount),
		NewsScore:     newsScore,
		SocialScore:   socialScore,
		NewsCount:     newsCount,
		SocialCount:   socialCount,
	}
}

func (c *SentimentCollector) newsScores(symbol string) []float64 {
	rows, err := c.news.Load(symbol)
	if err != nil {
		c.logger.Printf("sentiment: news dataset unreadable for %s: %v", symbol, err)
		return nil
	}
	scores := make([]float64, 0, len(rows))
	for _, r := range rows {
		scores = append(scores, r.SentimentScore)
	}
	return scores
}

func (c *SentimentCollector) socialScores(symbol string) []float64 {
	rows, err := c.social.Load(symbol)
	if err != nil {
		c.logger.Printf("sentiment: social dataset unreadable for %s: %v", symbol, err)
		return nil
	}
	scores := make([]float64, 0, len(rows))
	for _, r := range rows {
		scores = append(scores, r.SentimentScore)
	}
	return scores
}

// write replaces the snapshot atomically: temp file in the same directory,
// then rename.
func (c *SentimentCollector) write(summaries []domain.SentimentSummary) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	tmp, err := os.CreateTemp(c.dir, "live_sentiment-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	writer := csv.NewWriter(tmp)
	header := []string{"symbol", "weighted_score", "news_score", "social_score", "news_count", "social_count"}
	if err := writer.Write(header); err != nil {
		tmp.Close()
		return fmt.Errorf("write header: %w", err)
	}
	for _, s := range summaries {
		row := []string{
			s.Symbol,
			formatScore(s.WeightedScore),
			formatScore(s.NewsScore),
			formatScore(s.SocialScore),
			strconv.Itoa(s.NewsCount),
			strconv.Itoa(s.SocialCount),
		}
		if err := writer.Write(row); err != nil {
			tmp.Close()
			return fmt.Errorf("write row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp snapshot: %w", err)
	}

	if err := os.Rename(tmpPath, filepath.Join(c.dir, SentimentFileName)); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
