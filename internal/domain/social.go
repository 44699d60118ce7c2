package domain

import "time"

// SocialPost is one row of a per-asset social dataset, keyed by post ID.
type SocialPost struct {
	PostID         string
	Subreddit      string
	Title          string
	Score          int
	CreatedAt      time.Time
	SentimentScore float64
}

// RawPost is a provider-native social post before the filter pipeline runs.
// AuthorCreatedAt is populated by the user-metadata capability and is nil
// when the lookup failed or the author is deleted.
type RawPost struct {
	PostID          string
	Subreddit       string
	Author          string
	Title           string
	Body            string
	Score           int
	UpvoteRatio     float64
	CreatedAt       time.Time
	AuthorCreatedAt *time.Time
}
