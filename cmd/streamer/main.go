// Package main runs the streaming daemon: one websocket connector per
// configured exchange, fanning accepted ticks out to the raw text logs and,
// when configured, the ClickHouse trade_ticks mirror.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"crypto-collector/internal/config"
	"crypto-collector/internal/observability"
	chstore "crypto-collector/internal/storage/clickhouse"
	"crypto-collector/internal/storage/migrations"
	"crypto-collector/internal/stream"
)

const storeSinkTimeout = 5 * time.Second

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	metricsAddr := flag.String("metrics-addr", ":9091", "Prometheus metrics HTTP address")
	flag.Parse()

	logger := log.New(os.Stdout, "[streamer] ", log.LstdFlags)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("Invalid config: %v", err)
	}
	if len(cfg.Streams) == 0 {
		logger.Fatal("No streams configured")
	}

	ctx := context.Background()

	tickStore, cleanup, err := createTickStore(ctx, cfg.Storage.ClickHouseDSN, logger)
	if err != nil {
		logger.Fatalf("Failed to create tick store: %v", err)
	}
	defer cleanup()

	var connectors []*stream.Connector
	var sinks []stream.Sink
	for _, sc := range cfg.Streams {
		connector, sink, err := buildConnector(sc, cfg.Storage.LogsDir, tickStore, logger)
		if err != nil {
			logger.Fatalf("Failed to build %s connector: %v", sc.Name, err)
		}
		connectors = append(connectors, connector)
		sinks = append(sinks, sink)
	}

	for i, c := range connectors {
		if err := c.Start(); err != nil {
			logger.Fatalf("Failed to start %s connector: %v", cfg.Streams[i].Name, err)
		}
		logger.Printf("Started %s connector (%d products)", cfg.Streams[i].Name, len(cfg.Streams[i].Products))
	}

	go serveMetrics(*metricsAddr, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Printf("Received signal %v, stopping connectors...", sig)

	for _, c := range connectors {
		c.Stop()
	}
	for _, s := range sinks {
		if err := s.Close(); err != nil {
			logger.Printf("Close sink: %v", err)
		}
	}
	logger.Println("Shutdown complete")
}

// buildConnector wires one configured stream into a connector with its
// sinks. Raw log files are truncated on start, matching a fresh session.
func buildConnector(sc config.StreamConfig, logsDir string, tickStore *chstore.TickStore, logger *log.Logger) (*stream.Connector, stream.Sink, error) {
	exchange, err := newExchange(sc.Name, sc.Products)
	if err != nil {
		return nil, nil, err
	}

	logPath := filepath.Join(logsDir, sc.Name+".txt")
	logSink, err := stream.NewLogSink(logPath, true)
	if err != nil {
		return nil, nil, fmt.Errorf("open raw log %s: %w", logPath, err)
	}

	var sink stream.Sink = logSink
	if tickStore != nil {
		sink = stream.NewMultiSink(logSink, stream.NewStoreSink(tickStore, storeSinkTimeout))
	}

	connector := stream.NewConnector(stream.ConnectorOptions{
		Exchange: exchange,
		Primary:  sc.Primary,
		Backup:   sc.Backup,
		Delay:    sc.Delay,
		Sink:     sink,
		Logger:   logger,
	})
	return connector, sink, nil
}

func newExchange(name string, products []string) (stream.Exchange, error) {
	switch strings.ToLower(name) {
	case "binance":
		return stream.NewBinance(products, nil), nil
	case "coinbase":
		return stream.NewCoinbase(products, nil), nil
	default:
		return nil, fmt.Errorf("unknown exchange %q", name)
	}
}

// createTickStore returns the ClickHouse tick mirror when a DSN is
// configured, nil otherwise.
func createTickStore(ctx context.Context, dsn string, logger *log.Logger) (*chstore.TickStore, func(), error) {
	if dsn == "" {
		logger.Println("No clickhouse DSN configured, ticks go to raw logs only")
		return nil, func() {}, nil
	}

	conn, err := migrations.RunClickhouseMigrations(ctx, dsn)
	if err != nil {
		return nil, nil, err
	}
	return chstore.NewTickStore(conn), func() { conn.Close() }, nil
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
