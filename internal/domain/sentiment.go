package domain

// SentimentSummary is one asset's aggregated sentiment across its news and
// social datasets, persisted to live_data/live_sentiment.csv.
type SentimentSummary struct {
	Symbol        string
	WeightedScore float64
	NewsScore     float64
	SocialScore   float64
	NewsCount     int
	SocialCount   int
}
