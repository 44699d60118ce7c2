package analysis

// Weighted sentiment blends the news and social averages per asset. News
// dominates; fewer than minSentimentScores samples in a dataset averages to
// neutral while still reporting the sample count.
const (
	newsSentimentWeight   = 0.8
	socialSentimentWeight = 0.2
	minSentimentScores    = 3
)

// AverageSentiment returns the mean of the scores and their count. Fewer
// than three samples yield a neutral 0.0 average.
func AverageSentiment(scores []float64) (avg float64, count int) {
	count = len(scores)
	if count < minSentimentScores {
		return 0.0, count
	}
	var sum float64
	for _, s := range scores {
		sum += s
	}
	return sum / float64(count), count
}

// WeightedSentiment combines the two averages: without social samples the
// news average stands alone, without news samples the result is neutral,
// otherwise news weighs 0.8 against 0.2 for social.
func WeightedSentiment(newsScore float64, newsCount int, socialScore float64, socialCount int) float64 {
	if socialCount == 0 {
		return newsScore
	}
	if newsCount == 0 {
		return 0.0
	}
	return newsSentimentWeight*newsScore + socialSentimentWeight*socialScore
}
