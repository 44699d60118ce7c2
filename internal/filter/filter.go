// Package filter implements the multi-stage relevance and bot filter applied
// to candidate social posts before persistence, plus the mention-count
// relevance rules for news articles. Stages run in order per candidate;
// failing any single stage rejects the candidate. Accepted candidates keep
// their arrival order.
package filter

import (
	"context"
	"log"
	"strings"
	"time"

	"crypto-collector/internal/domain"
	"crypto-collector/internal/observability"
	"crypto-collector/internal/provider"
)

// Config holds the pipeline thresholds. Zero values fall back to the
// defaults below.
type Config struct {
	// Blocklist terms reject a candidate when found in its lower-cased
	// title+body text.
	Blocklist []string
	// Keywords is the zero-shot label set; the top label must belong to it.
	Keywords []string
	// Threshold is the minimum zero-shot confidence (default 0.4).
	Threshold float64
	// Lookback is the recency gate window (default 3 days).
	Lookback time.Duration
	// KarmaThreshold, RatioThreshold and MinAccountAge form the conjunctive
	// bot heuristic (defaults 5, 0.3, 7 days).
	KarmaThreshold int
	RatioThreshold float64
	MinAccountAge  time.Duration
	// MaxDailyPosts rejects authors exceeding this many batch posts within
	// 24 hours (default 10).
	MaxDailyPosts int
	// LookupDelay paces user-metadata lookups (default 500ms).
	LookupDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.Threshold == 0 {
		c.Threshold = 0.4
	}
	if c.Lookback == 0 {
		c.Lookback = 3 * 24 * time.Hour
	}
	if c.KarmaThreshold == 0 {
		c.KarmaThreshold = 5
	}
	if c.RatioThreshold == 0 {
		c.RatioThreshold = 0.3
	}
	if c.MinAccountAge == 0 {
		c.MinAccountAge = 7 * 24 * time.Hour
	}
	if c.MaxDailyPosts == 0 {
		c.MaxDailyPosts = 10
	}
	if c.LookupDelay == 0 {
		c.LookupDelay = 500 * time.Millisecond
	}
	return c
}

// Options configures a Pipeline.
type Options struct {
	Classifier provider.Classifier
	Users      provider.UserSource
	Config     Config
	Logger     *log.Logger
	// Now and Sleep are injectable for tests.
	Now   func() time.Time
	Sleep func(time.Duration)
}

// Pipeline applies the social filter stages to batches of same-origin posts.
type Pipeline struct {
	classifier provider.Classifier
	users      provider.UserSource
	cfg        Config
	logger     *log.Logger
	now        func() time.Time
	sleep      func(time.Duration)
}

// New creates a Pipeline.
func New(opts Options) *Pipeline {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Pipeline{
		classifier: opts.Classifier,
		users:      opts.Users,
		cfg:        opts.Config.withDefaults(),
		logger:     logger,
		now:        now,
		sleep:      sleep,
	}
}

// FilterPosts runs one batch through all stages and returns the accepted
// subset in arrival order. The per-author recent-post index is batch-scoped
// and discarded afterwards.
func (p *Pipeline) FilterPosts(ctx context.Context, posts []domain.RawPost) []domain.RawPost {
	now := p.now()

	// Stage 1: recency gate, applied before any costlier processing.
	recent := make([]domain.RawPost, 0, len(posts))
	for _, post := range posts {
		if now.Sub(post.CreatedAt) <= p.cfg.Lookback {
			recent = append(recent, post)
		} else {
			observability.RecordPostRejected("recency")
		}
	}

	// Full pass over the recency-passing batch to build the per-author
	// 24-hour post index needed by the bot gate.
	recentByAuthor := make(map[string]int)
	for _, post := range recent {
		if now.Sub(post.CreatedAt) <= 24*time.Hour {
			recentByAuthor[post.Author]++
		}
	}

	ages := p.resolveAccountAges(ctx, recent)

	var accepted []domain.RawPost
	for _, post := range recent {
		text := strings.ToLower(post.Title + " " + post.Body)

		// Stage 2: blocklist gate.
		if Blocked(text, p.cfg.Blocklist) {
			observability.RecordPostRejected("blocklist")
			continue
		}

		// Stage 3: zero-shot topical relevance.
		relevant, err := p.zeroShotRelevant(ctx, text)
		if err != nil {
			p.logger.Printf("filter: classifier error for post %s: %v", post.PostID, err)
			observability.RecordPostRejected("classifier")
			continue
		}
		if !relevant {
			observability.RecordPostRejected("relevance")
			continue
		}

		// Stage 4: bot likelihood.
		post.AuthorCreatedAt = ages[post.Author]
		if p.likelyBot(post, recentByAuthor[post.Author], now) {
			observability.RecordPostRejected("bot")
			continue
		}

		observability.RecordPostAccepted()
		accepted = append(accepted, post)
	}
	return accepted
}

// resolveAccountAges fills in missing author creation times via the
// user-metadata capability, paced by LookupDelay and deduplicated per
// author. A failed lookup resolves to nil, never to an error.
func (p *Pipeline) resolveAccountAges(ctx context.Context, posts []domain.RawPost) map[string]*time.Time {
	ages := make(map[string]*time.Time)
	if p.users == nil {
		return ages
	}
	first := true
	for _, post := range posts {
		if post.Author == "" || post.Author == "[deleted]" {
			continue
		}
		if post.AuthorCreatedAt != nil {
			ages[post.Author] = post.AuthorCreatedAt
			continue
		}
		if _, done := ages[post.Author]; done {
			continue
		}
		if !first {
			p.sleep(p.cfg.LookupDelay)
		}
		first = false
		created, err := p.users.AccountCreatedAt(ctx, post.Author)
		if err != nil {
			p.logger.Printf("filter: user lookup failed for %s: %v", post.Author, err)
			created = nil
		}
		ages[post.Author] = created
	}
	return ages
}

func (p *Pipeline) zeroShotRelevant(ctx context.Context, text string) (bool, error) {
	if p.classifier == nil || len(p.cfg.Keywords) == 0 {
		return true, nil
	}
	label, confidence, err := p.classifier.Classify(ctx, text, p.cfg.Keywords)
	if err != nil {
		return false, err
	}
	if confidence < p.cfg.Threshold {
		return false, nil
	}
	for _, kw := range p.cfg.Keywords {
		if label == kw {
			return true, nil
		}
	}
	return false, nil
}

// likelyBot applies the bot heuristic: too many batch posts in 24 hours, or
// low karma AND low upvote ratio AND a young account, all three at once. A
// nil account age never counts as young.
func (p *Pipeline) likelyBot(post domain.RawPost, recentCount int, now time.Time) bool {
	if recentCount > p.cfg.MaxDailyPosts {
		return true
	}
	lowKarma := post.Score < p.cfg.KarmaThreshold
	lowRatio := post.UpvoteRatio < p.cfg.RatioThreshold
	newAccount := post.AuthorCreatedAt != nil && now.Sub(*post.AuthorCreatedAt) < p.cfg.MinAccountAge
	return lowKarma && lowRatio && newAccount
}

// Blocked reports whether any blocklist term appears in the lower-cased
// text.
func Blocked(text string, blocklist []string) bool {
	for _, term := range blocklist {
		if term == "" {
			continue
		}
		if strings.Contains(text, strings.ToLower(term)) {
			return true
		}
	}
	return false
}
