package analysis

import "context"

// SentimentScorer maps text to a score in [-1, 1]. Implementations wrap an
// external model capability.
type SentimentScorer interface {
	Score(ctx context.Context, text string) (float64, error)
}

// SafeScore resolves scorer failures to neutral: any error, or a nil scorer,
// yields 0.0. Persisted rows therefore always carry a score.
func SafeScore(ctx context.Context, scorer SentimentScorer, text string) float64 {
	if scorer == nil {
		return 0.0
	}
	score, err := scorer.Score(ctx, text)
	if err != nil {
		return 0.0
	}
	if score > 1 {
		score = 1
	}
	if score < -1 {
		score = -1
	}
	return score
}

// NeutralScorer always scores 0.0. Used when no sentiment capability is
// configured.
type NeutralScorer struct{}

// Score implements SentimentScorer.
func (NeutralScorer) Score(context.Context, string) (float64, error) { return 0.0, nil }
