package collect

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"crypto-collector/internal/domain"
)

func newsRow(url string, score float64) domain.NewsArticle {
	return domain.NewsArticle{
		Title:          "bitcoin article",
		SourceName:     "wire",
		URL:            url,
		PublishedAt:    collectNow.Add(-2 * time.Hour),
		SentimentScore: score,
	}
}

func socialRow(id string, score float64) domain.SocialPost {
	return domain.SocialPost{
		PostID:         id,
		Subreddit:      "Bitcoin",
		Title:          "bitcoin post",
		Score:          10,
		CreatedAt:      collectNow.Add(-2 * time.Hour),
		SentimentScore: score,
	}
}

func readSentimentSnapshot(t *testing.T, dir string) [][]string {
	t.Helper()
	f, err := os.Open(filepath.Join(dir, SentimentFileName))
	if err != nil {
		t.Fatalf("open snapshot: %v", err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	return records
}

func TestSentimentCollector_WeightsNewsAndSocial(t *testing.T) {
	news := newsStore(t)
	social := socialStore(t)
	if _, err := news.Merge("BTC", []domain.NewsArticle{
		newsRow("https://a", 0.2), newsRow("https://b", 0.4), newsRow("https://c", 0.6),
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := social.Merge("BTC", []domain.SocialPost{
		socialRow("p1", -0.4), socialRow("p2", -0.5), socialRow("p3", -0.6),
	}); err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	c := NewSentimentCollector(SentimentOptions{News: news, Social: social, Dir: dir})

	n := c.Collect(context.Background(), []domain.Asset{{Symbol: "BTC", Name: "Bitcoin"}})
	if n != 1 {
		t.Fatalf("expected 1 summary row, got %d", n)
	}

	records := readSentimentSnapshot(t, dir)
	if len(records) != 2 {
		t.Fatalf("expected header + 1 row, got %d records", len(records))
	}
	row := records[1]
	// 0.8*0.4 + 0.2*(-0.5) = 0.22
	if row[0] != "BTC" || row[1] != "0.2200" || row[2] != "0.4000" || row[3] != "-0.5000" {
		t.Errorf("unexpected summary row: %v", row)
	}
	if row[4] != "3" || row[5] != "3" {
		t.Errorf("unexpected counts: %v", row)
	}
}

func TestSentimentCollector_SparseDatasets(t *testing.T) {
	news := newsStore(t)
	social := socialStore(t)
	// Two news scores stay below the minimum sample rule; no social at all.
	if _, err := news.Merge("ETH", []domain.NewsArticle{
		newsRow("https://d", 0.9), newsRow("https://e", 0.9),
	}); err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	c := NewSentimentCollector(SentimentOptions{News: news, Social: social, Dir: dir})
	if n := c.Collect(context.Background(), []domain.Asset{{Symbol: "ETH"}}); n != 1 {
		t.Fatalf("expected 1 summary row, got %d", n)
	}

	row := readSentimentSnapshot(t, dir)[1]
	if row[1] != "0.0000" || row[2] != "0.0000" {
		t.Errorf("below-minimum samples must summarize neutral: %v", row)
	}
	if row[4] != "2" || row[5] != "0" {
		t.Errorf("counts must still be reported: %v", row)
	}
}

func TestSentimentCollector_RewritesWholeSnapshot(t *testing.T) {
	news := newsStore(t)
	social := socialStore(t)
	dir := t.TempDir()
	c := NewSentimentCollector(SentimentOptions{News: news, Social: social, Dir: dir})

	c.Collect(context.Background(), []domain.Asset{{Symbol: "BTC"}, {Symbol: "ETH"}})
	c.Collect(context.Background(), []domain.Asset{{Symbol: "SOL"}})

	records := readSentimentSnapshot(t, dir)
	if len(records) != 2 || records[1][0] != "SOL" {
		t.Errorf("snapshot must be fully rewritten each run, got %v", records)
	}
}
