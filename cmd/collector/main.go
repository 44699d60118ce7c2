// Package main runs the collection daemon: the minute-tick scheduler that
// maintains the asset universe and dispatches history, news, social and live
// collection jobs against the flat CSV datasets.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"crypto-collector/internal/analysis"
	"crypto-collector/internal/collect"
	"crypto-collector/internal/config"
	"crypto-collector/internal/dataset"
	"crypto-collector/internal/filter"
	"crypto-collector/internal/observability"
	"crypto-collector/internal/provider/stub"
	"crypto-collector/internal/scheduler"
	"crypto-collector/internal/storage"
	"crypto-collector/internal/storage/memory"
	"crypto-collector/internal/storage/migrations"
	pgstore "crypto-collector/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address")
	useStub := flag.Bool("use-stub", false, "Use deterministic stub providers")
	flag.Parse()

	logger := log.New(os.Stdout, "[collector] ", log.LstdFlags)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("Invalid config: %v", err)
	}

	// Provider HTTP clients live outside this repository; without them the
	// daemon only runs against the stubs.
	if !*useStub {
		logger.Fatal("No providers wired in this build; run with --use-stub")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	runs, cleanup, err := createRunStore(ctx, cfg.Storage.PostgresDSN, logger)
	if err != nil {
		logger.Fatalf("Failed to create run ledger: %v", err)
	}
	defer cleanup()

	sched := buildScheduler(cfg, *configPath, runs, logger)

	go serveMetrics(*metricsAddr, logger)

	logger.Printf("Collector started: universe size %d, media interval %d ticks",
		cfg.Collector.TopCoins, cfg.Collector.MediaInterval)
	sched.Run(ctx)
	logger.Println("Shutdown complete")
}

// buildScheduler wires stores, providers and collectors into a Scheduler.
// Collector dependencies are built once; per-tick config reloads only affect
// scheduler-level parameters.
func buildScheduler(cfg *config.Config, configPath string, runs storage.RunStore, logger *log.Logger) *scheduler.Scheduler {
	dataDir := cfg.Storage.DataDir
	storeOpts := dataset.Options{Logger: logger}

	histStore := dataset.NewHistoryStore(filepath.Join(dataDir, "hist_data"), storeOpts)
	backupStore := dataset.NewHistoryStore(filepath.Join(dataDir, "hist_backup_data"), storeOpts)
	newsStore := dataset.NewNewsStore(filepath.Join(dataDir, "news_data"), storeOpts)
	socialStore := dataset.NewSocialStore(filepath.Join(dataDir, "social_data"), storeOpts)
	liveStore := dataset.NewLiveStore(filepath.Join(dataDir, "live_data"), storeOpts)

	market := stub.NewMarketSource(nil)
	history := stub.NewHistorySource(nil)
	news := stub.NewNewsSource(nil)
	social := stub.NewSocialSource(nil)
	users := stub.NewUserSource(nil)
	classifier := stub.NewClassifier(0.9)
	scorer := analysis.NeutralScorer{}

	pipeline := filter.New(filter.Options{
		Classifier: classifier,
		Users:      users,
		Config: filter.Config{
			Blocklist:      cfg.Filter.Blocklist,
			Keywords:       cfg.Filter.Keywords,
			Threshold:      cfg.Filter.Threshold,
			Lookback:       cfg.Filter.Lookback,
			KarmaThreshold: cfg.Filter.KarmaThreshold,
			RatioThreshold: cfg.Filter.RatioThreshold,
			MinAccountAge:  cfg.Filter.MinAccountAge,
			MaxDailyPosts:  cfg.Filter.MaxDailyPosts,
			LookupDelay:    cfg.Filter.LookupDelay,
		},
		Logger: logger,
	})

	jobs := scheduler.Jobs{
		Live: collect.NewLiveCollector(collect.LiveOptions{
			Store:   liveStore,
			History: histStore,
			Logger:  logger,
		}),
		History: collect.NewHistoryCollector(collect.HistoryOptions{
			Source:   history,
			Store:    histStore,
			Currency: cfg.Collector.Currency,
			Days:     cfg.Collector.HistoryDays,
			Delay:    cfg.Collector.HistoryDelay,
			Logger:   logger,
		}),
		HistoryBackup: collect.NewHistoryCollector(collect.HistoryOptions{
			Source:          history,
			Store:           backupStore,
			Currency:        cfg.Collector.Currency,
			Days:            cfg.Collector.HistoryDays,
			Delay:           cfg.Collector.HistoryDelay,
			SymbolOverrides: cfg.Collector.SymbolOverrides,
			Logger:          logger,
		}),
		News: collect.NewNewsCollector(collect.NewsOptions{
			Source:    news,
			Store:     newsStore,
			Scorer:    scorer,
			APIKeys:   cfg.News.APIKeys,
			RangeDays: cfg.News.RangeDays,
			Delay:     cfg.News.QueryDelay,
			Staleness: cfg.News.Staleness,
			Logger:    logger,
		}),
		Sentiment: collect.NewSentimentCollector(collect.SentimentOptions{
			News:   newsStore,
			Social: socialStore,
			Dir:    filepath.Join(dataDir, "live_data"),
			Logger: logger,
		}),
		Social: collect.NewSocialCollector(collect.SocialOptions{
			Source:     social,
			Store:      socialStore,
			Pipeline:   pipeline,
			Scorer:     scorer,
			Subreddits: cfg.Social.Subreddits,
			Delay:      cfg.Social.FetchDelay,
			Staleness:  cfg.Social.Staleness,
			Logger:     logger,
		}),
	}

	return scheduler.New(scheduler.Options{
		Market: market,
		Jobs:   jobs,
		Reload: func() (*config.Config, error) { return config.Load(configPath) },
		Runs:   runs,
		Logger: logger,
	})
}

// createRunStore returns the Postgres-backed run ledger when a DSN is
// configured, an in-memory one otherwise.
func createRunStore(ctx context.Context, dsn string, logger *log.Logger) (storage.RunStore, func(), error) {
	if dsn == "" {
		logger.Println("No postgres DSN configured, using in-memory run ledger")
		return memory.NewRunStore(), func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, dsn)
	if err != nil {
		return nil, nil, err
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return pgstore.NewRunStore(pool), pool.Close, nil
}

func serveMetrics(addr string, logger *log.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger.Printf("Starting metrics server on %s", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Printf("Metrics server error: %v", err)
	}
}
