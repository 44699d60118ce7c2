// Package scheduler drives the perpetual minute-tick collection loop. Each
// tick reloads configuration, recomputes the active asset universe, always
// persists a live snapshot, and dispatches pull-collection jobs: news and
// social for the whole universe every media interval, full history for the
// whole universe in the final minute before UTC midnight, and history, news
// and social scoped to newly appeared assets otherwise. A failing tick never
// stops the loop.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"crypto-collector/internal/collect"
	"crypto-collector/internal/config"
	"crypto-collector/internal/domain"
	"crypto-collector/internal/observability"
	"crypto-collector/internal/provider"
	"crypto-collector/internal/storage"
	"crypto-collector/internal/universe"
)

const (
	secondsInADay   = 86400
	minuteToSeconds = 60
	dayFormat       = "2006-01-02"
)

// Collector runs one pull-collection pass over a set of assets.
type Collector interface {
	Collect(ctx context.Context, assets []domain.Asset) int
}

// Snapshotter persists one live snapshot of the universe.
type Snapshotter interface {
	Snapshot(quotes []domain.MarketQuote) int
}

// Jobs bundles the collectors the scheduler dispatches. History and
// HistoryBackup are independent providers with independent job state.
type Jobs struct {
	Live          Snapshotter
	History       Collector
	HistoryBackup Collector
	News          Collector
	Social        Collector
	// Sentiment aggregates the persisted news/social scores; it runs on
	// the media cadence, summarizing the previous round's datasets.
	Sentiment Collector
}

var (
	_ Collector   = (*collect.HistoryCollector)(nil)
	_ Collector   = (*collect.NewsCollector)(nil)
	_ Collector   = (*collect.SocialCollector)(nil)
	_ Collector   = (*collect.SentimentCollector)(nil)
	_ Snapshotter = (*collect.LiveCollector)(nil)
)

// Options configures a Scheduler.
type Options struct {
	Market provider.MarketSource
	Jobs   Jobs
	// Reload is called at the start of every tick; a failure keeps the last
	// good configuration.
	Reload func() (*config.Config, error)
	// Runs, when non-nil, receives one ledger row per finished job.
	Runs   storage.RunStore
	Logger *log.Logger
	Now    func() time.Time
}

// Scheduler owns the tick loop state: the remembered universe, the last
// daily-refresh day, the media counter and per-job-type liveness.
type Scheduler struct {
	market provider.MarketSource
	jobs   Jobs
	reload func() (*config.Config, error)
	runs   storage.RunStore
	logger *log.Logger
	now    func() time.Time

	cfg        *config.Config
	known      map[string]domain.Asset
	lastRunDay string
	counter    int
	states     map[string]*jobState
}

// New creates a Scheduler.
func New(opts Options) *Scheduler {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Scheduler{
		market: opts.Market,
		jobs:   opts.Jobs,
		reload: opts.Reload,
		runs:   opts.Runs,
		logger: logger,
		now:    now,
		known:  make(map[string]domain.Asset),
		states: make(map[string]*jobState),
	}
}

// Run ticks once per minute until the context is cancelled. Ticks align to
// wall-clock minute boundaries, so the loop self-corrects instead of
// drifting.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		if err := waitUntilNextMinute(ctx, s.now()); err != nil {
			return
		}
		err := s.Tick(ctx)
		observability.RecordTick(s.now().Unix(), err)
		if err != nil {
			s.logger.Printf("scheduler: tick failed: %v", err)
		}
	}
}

// Tick executes one scheduler transition. Collection jobs run detached; Tick
// only dispatches them and returns.
func (s *Scheduler) Tick(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tick panicked: %v", r)
		}
	}()

	s.counter++

	if cfg, rerr := s.reload(); rerr != nil {
		s.logger.Printf("scheduler: config reload failed, keeping previous: %v", rerr)
	} else if verr := cfg.Validate(); verr != nil {
		s.logger.Printf("scheduler: config invalid, keeping previous: %v", verr)
	} else {
		s.cfg = cfg
	}
	if s.cfg == nil {
		return fmt.Errorf("no valid configuration loaded")
	}
	cfg := s.cfg

	now := s.now().UTC()

	perPage := cfg.Collector.TopCoins + cfg.Collector.SelectionMargin
	quotes, err := s.market.TopMarkets(ctx, cfg.Collector.Currency, perPage)
	if err != nil {
		return fmt.Errorf("market snapshot: %w", err)
	}

	uni := universe.Compute(quotes, universe.Config{
		TopCount:       cfg.Collector.TopCoins,
		StableKeywords: cfg.Collector.StableKeywords,
		Ignored:        cfg.Collector.IgnoredCoins,
	})
	observability.UpdateUniverseSize(len(uni.Assets))

	// The live snapshot is written every tick, whatever the branches below
	// decide.
	s.jobs.Live.Snapshot(memberQuotes(uni, quotes))

	if s.counter >= cfg.Collector.MediaInterval {
		s.dispatch(ctx, domain.JobNews, domain.ScopeUniverse, uni.Assets, s.jobs.News)
		s.dispatch(ctx, domain.JobSocial, domain.ScopeUniverse, uni.Assets, s.jobs.Social)
		s.dispatch(ctx, domain.JobSentiment, domain.ScopeUniverse, uni.Assets, s.jobs.Sentiment)
		s.counter = 0
	}

	secondsToday := now.Hour()*3600 + now.Minute()*60 + now.Second()
	today := now.Format(dayFormat)
	if secondsToday >= secondsInADay-minuteToSeconds && s.lastRunDay != today {
		s.logger.Printf("scheduler: daily refresh, fetching full history for %d assets", len(uni.Assets))
		s.dispatch(ctx, domain.JobHistory, domain.ScopeUniverse, uni.Assets, s.jobs.History)
		s.dispatch(ctx, domain.JobHistoryBackup, domain.ScopeUniverse, uni.Assets, s.jobs.HistoryBackup)

		s.known = make(map[string]domain.Asset, len(uni.Assets))
		for _, a := range uni.Assets {
			s.known[a.Symbol] = a
		}
		s.lastRunDay = today
	} else if fresh := universe.Diff(s.known, uni); len(fresh) > 0 {
		s.logger.Printf("scheduler: new coins detected: %v", symbols(fresh))
		s.dispatch(ctx, domain.JobHistory, domain.ScopeIncremental, fresh, s.jobs.History)
		s.dispatch(ctx, domain.JobHistoryBackup, domain.ScopeIncremental, fresh, s.jobs.HistoryBackup)
		s.dispatch(ctx, domain.JobNews, domain.ScopeIncremental, fresh, s.jobs.News)
		s.dispatch(ctx, domain.JobSocial, domain.ScopeIncremental, fresh, s.jobs.Social)

		// Membership grows monotonically within a day; assets that fall out
		// of rank are not retracted until the next daily refresh.
		for _, a := range fresh {
			s.known[a.Symbol] = a
		}
	}

	return nil
}

// dispatch starts one detached collection job unless a same-type job is
// still running.
func (s *Scheduler) dispatch(ctx context.Context, jobType, scope string, assets []domain.Asset, job Collector) {
	if job == nil || len(assets) == 0 {
		return
	}
	state := s.state(jobType)
	if !state.tryAcquire() {
		s.logger.Printf("scheduler: %s job still running, skipping dispatch", jobType)
		observability.RecordJobSkipped(jobType)
		return
	}
	observability.RecordJobDispatched(jobType, scope)

	started := s.now().UTC()
	go func() {
		var inserted int
		var jobErr error
		defer func() {
			if r := recover(); r != nil {
				jobErr = fmt.Errorf("job panicked: %v", r)
				s.logger.Printf("scheduler: %s job panicked: %v", jobType, r)
			}
			finished := s.now().UTC()
			observability.RecordJobOutcome(jobType, finished.Sub(started).Seconds(), inserted)
			s.record(jobType, scope, len(assets), inserted, started, finished, jobErr)
			state.release()
		}()
		inserted = job.Collect(ctx, assets)
	}()
}

// record writes one ledger row; ledger failures are logged, never fatal.
func (s *Scheduler) record(jobType, scope string, assets, inserted int, started, finished time.Time, jobErr error) {
	if s.runs == nil {
		return
	}
	run := &domain.CollectionRun{
		JobType:    jobType,
		Scope:      scope,
		Assets:     assets,
		Records:    inserted,
		StartedAt:  started,
		FinishedAt: finished,
	}
	if jobErr != nil {
		run.Error = jobErr.Error()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	insertStart := time.Now()
	err := s.runs.Insert(ctx, run)
	observability.RecordDBQuery("postgres", "insert_run", time.Since(insertStart).Seconds(), err)
	if err != nil {
		s.logger.Printf("scheduler: run ledger insert failed: %v", err)
	}
}

func (s *Scheduler) state(jobType string) *jobState {
	if st, ok := s.states[jobType]; ok {
		return st
	}
	st := &jobState{}
	s.states[jobType] = st
	return st
}

// memberQuotes returns the quotes belonging to universe members, in
// snapshot rank order, with symbols normalized to the universe form.
func memberQuotes(uni domain.Universe, quotes []domain.MarketQuote) []domain.MarketQuote {
	var out []domain.MarketQuote
	for _, q := range quotes {
		symbol := strings.ToUpper(q.Symbol)
		if uni.Contains(symbol) {
			q.Symbol = symbol
			out = append(out, q)
		}
	}
	return out
}

func symbols(assets []domain.Asset) []string {
	out := make([]string, len(assets))
	for i, a := range assets {
		out[i] = a.Symbol
	}
	return out
}

// waitUntilNextMinute sleeps until the next wall-clock minute boundary or
// context cancellation.
func waitUntilNextMinute(ctx context.Context, now time.Time) error {
	next := now.Truncate(time.Minute).Add(time.Minute)
	timer := time.NewTimer(next.Sub(now))
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
