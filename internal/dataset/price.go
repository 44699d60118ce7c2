package dataset

import (
	"fmt"
	"strconv"
	"time"

	"crypto-collector/internal/domain"
)

// DateFormat is the daily history key format.
const DateFormat = "2006-01-02"

// HistoryHorizon is the retention window for daily price history.
const HistoryHorizon = 30 * 24 * time.Hour

// PriceCodec maps domain.PricePoint to CSV rows keyed by date.
type PriceCodec struct{}

var _ Codec[domain.PricePoint] = PriceCodec{}

func (PriceCodec) Header() []string {
	return []string{"date", "open", "high", "low", "close", "volume"}
}

func (PriceCodec) Encode(p domain.PricePoint) []string {
	return []string{
		p.Date,
		formatFloat(p.Open),
		formatFloat(p.High),
		formatFloat(p.Low),
		formatFloat(p.Close),
		formatFloat(p.Volume),
	}
}

func (PriceCodec) Decode(row []string) (domain.PricePoint, error) {
	if len(row) != 6 {
		return domain.PricePoint{}, fmt.Errorf("expected 6 fields, got %d", len(row))
	}
	if _, err := time.Parse(DateFormat, row[0]); err != nil {
		return domain.PricePoint{}, fmt.Errorf("parse date %q: %w", row[0], err)
	}
	p := domain.PricePoint{Date: row[0]}
	var err error
	if p.Open, err = strconv.ParseFloat(row[1], 64); err != nil {
		return domain.PricePoint{}, fmt.Errorf("parse open: %w", err)
	}
	if p.High, err = strconv.ParseFloat(row[2], 64); err != nil {
		return domain.PricePoint{}, fmt.Errorf("parse high: %w", err)
	}
	if p.Low, err = strconv.ParseFloat(row[3], 64); err != nil {
		return domain.PricePoint{}, fmt.Errorf("parse low: %w", err)
	}
	if p.Close, err = strconv.ParseFloat(row[4], 64); err != nil {
		return domain.PricePoint{}, fmt.Errorf("parse close: %w", err)
	}
	if p.Volume, err = strconv.ParseFloat(row[5], 64); err != nil {
		return domain.PricePoint{}, fmt.Errorf("parse volume: %w", err)
	}
	return p, nil
}

func (PriceCodec) Key(p domain.PricePoint) string { return p.Date }

func (PriceCodec) Time(p domain.PricePoint) time.Time {
	t, err := time.Parse(DateFormat, p.Date)
	if err != nil {
		// Decode already rejected unparseable dates; treat as epoch so the
		// row falls out of any retention window.
		return time.Time{}
	}
	return t
}

// NewHistoryStore creates a daily price history store: date-keyed, 30-day
// retention, ascending date order. dir is the per-provider dataset directory.
func NewHistoryStore(dir string, opts Options) *Store[domain.PricePoint] {
	opts.Dir = dir
	opts.Horizon = HistoryHorizon
	opts.Order = KeyAscending
	return New[domain.PricePoint](PriceCodec{}, opts)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
