package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"crypto-collector/internal/config"
	"crypto-collector/internal/domain"
	"crypto-collector/internal/provider/stub"
)

type fakeJob struct {
	mu    sync.Mutex
	calls [][]string
	block chan struct{}
}

func (f *fakeJob) Collect(_ context.Context, assets []domain.Asset) int {
	f.mu.Lock()
	call := make([]string, len(assets))
	for i, a := range assets {
		call[i] = a.Symbol
	}
	f.calls = append(f.calls, call)
	f.mu.Unlock()
	if f.block != nil {
		<-f.block
	}
	return len(assets)
}

func (f *fakeJob) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeJob) lastCall() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return nil
	}
	return f.calls[len(f.calls)-1]
}

type fakeSnapshotter struct {
	mu    sync.Mutex
	calls [][]domain.MarketQuote
}

func (f *fakeSnapshotter) Snapshot(quotes []domain.MarketQuote) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, quotes)
	return len(quotes)
}

func (f *fakeSnapshotter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeRunStore struct {
	mu   sync.Mutex
	runs []*domain.CollectionRun
}

func (f *fakeRunStore) Insert(_ context.Context, r *domain.CollectionRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r.ID = int64(len(f.runs) + 1)
	f.runs = append(f.runs, r)
	return nil
}

func (f *fakeRunStore) GetByJobType(context.Context, string) ([]*domain.CollectionRun, error) {
	return nil, nil
}

func (f *fakeRunStore) GetByTimeRange(context.Context, time.Time, time.Time) ([]*domain.CollectionRun, error) {
	return nil, nil
}

func (f *fakeRunStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.runs)
}

func testConfig(mediaInterval int) *config.Config {
	return &config.Config{
		Collector: config.CollectorConfig{
			TopCoins:        3,
			SelectionMargin: 2,
			Currency:        "usd",
			HistoryDays:     30,
			MediaInterval:   mediaInterval,
			StableKeywords:  []string{"usd"},
		},
		Filter:  config.FilterConfig{Threshold: 0.4, MaxDailyPosts: 10},
		News:    config.NewsConfig{RangeDays: 15},
		Storage: config.StorageConfig{DataDir: "./data", LogsDir: "./logs"},
		Logging: config.LoggingConfig{Level: "info"},
	}
}

func quote(symbol, name, id string, price float64) domain.MarketQuote {
	return domain.MarketQuote{Symbol: symbol, Name: name, ProviderID: id, Price: price}
}

type fixture struct {
	sched     *Scheduler
	market    *stub.MarketSource
	live      *fakeSnapshotter
	history   *fakeJob
	backup    *fakeJob
	news      *fakeJob
	social    *fakeJob
	sentiment *fakeJob
	runs      *fakeRunStore
	now       time.Time
}

func newFixture(cfg *config.Config) *fixture {
	f := &fixture{
		market:    stub.NewMarketSource(nil),
		live:      &fakeSnapshotter{},
		history:   &fakeJob{},
		backup:    &fakeJob{},
		news:      &fakeJob{},
		social:    &fakeJob{},
		sentiment: &fakeJob{},
		runs:      &fakeRunStore{},
		now:       time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC),
	}
	f.sched = New(Options{
		Market: f.market,
		Jobs: Jobs{
			Live:          f.live,
			History:       f.history,
			HistoryBackup: f.backup,
			News:          f.news,
			Social:        f.social,
			Sentiment:     f.sentiment,
		},
		Reload: func() (*config.Config, error) { return cfg, nil },
		Runs:   f.runs,
		Now:    func() time.Time { return f.now },
	})
	return f
}

// waitRuns blocks until the job has run want times and its job state is
// released, so the next tick is free to dispatch the same type again.
func (f *fixture) waitRuns(t *testing.T, jobType string, job *fakeJob, want int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		if job.callCount() == want && f.idle(jobType) {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("%s: want %d finished runs, got %d", jobType, want, job.callCount())
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func (f *fixture) idle(jobType string) bool {
	st, ok := f.sched.states[jobType]
	if !ok {
		return true
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return !st.running
}

func TestTick_AlwaysSnapshotsLive(t *testing.T) {
	f := newFixture(testConfig(15))
	f.market.SetQuotes([]domain.MarketQuote{
		quote("btc", "Bitcoin", "bitcoin", 50000),
		quote("usdt", "Tether", "tether", 1.0), // stablecoin, excluded
		quote("eth", "Ethereum", "ethereum", 3000),
	})

	if err := f.sched.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	if f.live.callCount() != 1 {
		t.Fatalf("live snapshot not written")
	}
	f.live.mu.Lock()
	snap := f.live.calls[0]
	f.live.mu.Unlock()
	if len(snap) != 2 {
		t.Fatalf("expected 2 universe quotes in snapshot, got %d", len(snap))
	}
	for _, q := range snap {
		if q.Symbol == "USDT" {
			t.Error("stablecoin leaked into the live snapshot")
		}
		if q.Symbol != "BTC" && q.Symbol != "ETH" {
			t.Errorf("unexpected snapshot symbol %q", q.Symbol)
		}
	}
}

func TestTick_MediaIntervalBranch(t *testing.T) {
	f := newFixture(testConfig(2))
	f.market.SetQuotes([]domain.MarketQuote{quote("btc", "Bitcoin", "bitcoin", 50000)})

	// Tick 1 stays below the interval; news and social still run once via
	// the new-coin branch, BTC being seen for the first time.
	if err := f.sched.Tick(context.Background()); err != nil {
		t.Fatalf("tick 1: %v", err)
	}
	f.waitRuns(t, domain.JobNews, f.news, 1)
	f.waitRuns(t, domain.JobSocial, f.social, 1)
	if got := f.sentiment.callCount(); got != 0 {
		t.Errorf("sentiment summary runs on the media cadence only, got %d runs", got)
	}

	// Tick 2 reaches the interval: whole-universe media dispatch.
	if err := f.sched.Tick(context.Background()); err != nil {
		t.Fatalf("tick 2: %v", err)
	}
	f.waitRuns(t, domain.JobNews, f.news, 2)
	f.waitRuns(t, domain.JobSocial, f.social, 2)
	f.waitRuns(t, domain.JobSentiment, f.sentiment, 1)
	if last := f.news.lastCall(); len(last) != 1 || last[0] != "BTC" {
		t.Errorf("media branch should cover the entire universe, got %v", last)
	}
	if last := f.sentiment.lastCall(); len(last) != 1 || last[0] != "BTC" {
		t.Errorf("sentiment summary should cover the entire universe, got %v", last)
	}

	// The counter was reset, so of ticks 3 and 4 only tick 4 dispatches.
	if err := f.sched.Tick(context.Background()); err != nil {
		t.Fatalf("tick 3: %v", err)
	}
	if got := f.news.callCount(); got != 2 {
		t.Errorf("tick below the interval dispatched news: %d runs", got)
	}
	if err := f.sched.Tick(context.Background()); err != nil {
		t.Fatalf("tick 4: %v", err)
	}
	f.waitRuns(t, domain.JobNews, f.news, 3)
}

func TestTick_SameTypeJobNeverOverlaps(t *testing.T) {
	f := newFixture(testConfig(1)) // media branch fires every tick
	f.market.SetQuotes([]domain.MarketQuote{quote("btc", "Bitcoin", "bitcoin", 50000)})
	f.news.block = make(chan struct{})

	if err := f.sched.Tick(context.Background()); err != nil {
		t.Fatalf("tick 1: %v", err)
	}
	// Let the news job start and park on its block.
	deadline := time.Now().Add(5 * time.Second)
	for f.news.callCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("news job never started")
		}
		time.Sleep(2 * time.Millisecond)
	}

	if err := f.sched.Tick(context.Background()); err != nil {
		t.Fatalf("tick 2: %v", err)
	}
	// Dispatch decisions happen inside Tick, so the skip already happened.
	if got := f.news.callCount(); got != 1 {
		t.Errorf("running news job must suppress re-dispatch, got %d runs", got)
	}

	close(f.news.block)
	f.waitRuns(t, domain.JobNews, f.news, 1)
}

func TestTick_DailyBranch(t *testing.T) {
	f := newFixture(testConfig(15))
	f.market.SetQuotes([]domain.MarketQuote{
		quote("btc", "Bitcoin", "bitcoin", 50000),
		quote("eth", "Ethereum", "ethereum", 3000),
	})
	f.now = time.Date(2024, 6, 10, 23, 59, 0, 0, time.UTC)

	if err := f.sched.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	f.waitRuns(t, domain.JobHistory, f.history, 1)
	f.waitRuns(t, domain.JobHistoryBackup, f.backup, 1)

	if got := f.history.lastCall(); len(got) != 2 {
		t.Errorf("daily refresh should cover the whole universe, got %v", got)
	}

	// A second tick in the same final minute must not refresh again.
	f.now = f.now.Add(30 * time.Second)
	if err := f.sched.Tick(context.Background()); err != nil {
		t.Fatalf("second tick: %v", err)
	}
	if got := f.history.callCount(); got != 1 {
		t.Errorf("daily refresh ran twice in one day: %d", got)
	}
}

func TestTick_IncrementalDiffNewMembersOnly(t *testing.T) {
	f := newFixture(testConfig(15))
	f.market.SetQuotes([]domain.MarketQuote{quote("btc", "Bitcoin", "bitcoin", 50000)})

	if err := f.sched.Tick(context.Background()); err != nil {
		t.Fatalf("tick 1: %v", err)
	}
	f.waitRuns(t, domain.JobHistory, f.history, 1)

	// ETH appears: only ETH is dispatched.
	f.market.SetQuotes([]domain.MarketQuote{
		quote("btc", "Bitcoin", "bitcoin", 50000),
		quote("eth", "Ethereum", "ethereum", 3000),
	})
	if err := f.sched.Tick(context.Background()); err != nil {
		t.Fatalf("tick 2: %v", err)
	}
	f.waitRuns(t, domain.JobHistory, f.history, 2)
	if got := f.history.lastCall(); len(got) != 1 || got[0] != "ETH" {
		t.Errorf("incremental dispatch should cover new members only, got %v", got)
	}

	// No change: nothing dispatched.
	if err := f.sched.Tick(context.Background()); err != nil {
		t.Fatalf("tick 3: %v", err)
	}
	if got := f.history.callCount(); got != 2 {
		t.Errorf("unchanged universe should not dispatch, got %d runs", got)
	}
}

func TestTick_MembershipMonotonicWithinDay(t *testing.T) {
	f := newFixture(testConfig(15))
	f.market.SetQuotes([]domain.MarketQuote{
		quote("btc", "Bitcoin", "bitcoin", 50000),
		quote("eth", "Ethereum", "ethereum", 3000),
	})
	if err := f.sched.Tick(context.Background()); err != nil {
		t.Fatalf("tick 1: %v", err)
	}
	f.waitRuns(t, domain.JobHistory, f.history, 1)

	// ETH drops out of rank, then re-enters. Neither move dispatches:
	// membership only shrinks at the daily refresh.
	f.market.SetQuotes([]domain.MarketQuote{quote("btc", "Bitcoin", "bitcoin", 50000)})
	if err := f.sched.Tick(context.Background()); err != nil {
		t.Fatalf("tick 2: %v", err)
	}
	f.market.SetQuotes([]domain.MarketQuote{
		quote("btc", "Bitcoin", "bitcoin", 50000),
		quote("eth", "Ethereum", "ethereum", 3000),
	})
	if err := f.sched.Tick(context.Background()); err != nil {
		t.Fatalf("tick 3: %v", err)
	}
	if got := f.history.callCount(); got != 1 {
		t.Errorf("oscillating member re-dispatched: %d runs", got)
	}
}

func TestTick_MarketErrorIsContained(t *testing.T) {
	f := newFixture(testConfig(15))
	f.market.Err = errors.New("provider down")

	if err := f.sched.Tick(context.Background()); err == nil {
		t.Fatal("expected tick error")
	}

	// The next tick recovers.
	f.market.Err = nil
	f.market.SetQuotes([]domain.MarketQuote{quote("btc", "Bitcoin", "bitcoin", 50000)})
	if err := f.sched.Tick(context.Background()); err != nil {
		t.Fatalf("recovery tick: %v", err)
	}
	f.waitRuns(t, domain.JobHistory, f.history, 1)
}

func TestTick_ReloadFailureKeepsLastConfig(t *testing.T) {
	cfg := testConfig(15)
	f := newFixture(cfg)
	fail := false
	f.sched.reload = func() (*config.Config, error) {
		if fail {
			return nil, errors.New("config file unreadable")
		}
		return cfg, nil
	}
	f.market.SetQuotes([]domain.MarketQuote{quote("btc", "Bitcoin", "bitcoin", 50000)})

	if err := f.sched.Tick(context.Background()); err != nil {
		t.Fatalf("tick 1: %v", err)
	}
	fail = true
	if err := f.sched.Tick(context.Background()); err != nil {
		t.Errorf("tick with reload failure should fall back to the last config: %v", err)
	}
}

func TestTick_RecordsRunLedger(t *testing.T) {
	f := newFixture(testConfig(15))
	f.market.SetQuotes([]domain.MarketQuote{quote("btc", "Bitcoin", "bitcoin", 50000)})

	if err := f.sched.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for f.runs.count() != 4 {
		if time.Now().After(deadline) {
			t.Fatalf("expected 4 ledger rows, got %d", f.runs.count())
		}
		time.Sleep(2 * time.Millisecond)
	}

	f.runs.mu.Lock()
	defer f.runs.mu.Unlock()
	seen := map[string]bool{}
	for _, r := range f.runs.runs {
		seen[r.JobType] = true
		if r.Scope != domain.ScopeIncremental {
			t.Errorf("first-sight dispatch should be incremental, got %s", r.Scope)
		}
		if r.Error != "" {
			t.Errorf("unexpected job error: %s", r.Error)
		}
		if r.Assets != 1 || r.Records != 1 {
			t.Errorf("unexpected counts: %+v", r)
		}
	}
	for _, jt := range []string{domain.JobHistory, domain.JobHistoryBackup, domain.JobNews, domain.JobSocial} {
		if !seen[jt] {
			t.Errorf("missing ledger row for %s", jt)
		}
	}
}

func TestJobState_AcquireRelease(t *testing.T) {
	var st jobState
	if !st.tryAcquire() {
		t.Fatal("fresh state should acquire")
	}
	if st.tryAcquire() {
		t.Fatal("second acquire should fail while running")
	}
	st.release()
	if !st.tryAcquire() {
		t.Fatal("released state should acquire again")
	}
}

func TestWaitUntilNextMinute_Cancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := waitUntilNextMinute(ctx, time.Now()); err == nil {
		t.Error("cancelled context should abort the wait")
	}
}
