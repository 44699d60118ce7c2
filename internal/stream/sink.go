package stream

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"crypto-collector/internal/domain"
	"crypto-collector/internal/observability"
	"crypto-collector/internal/storage"
)

// Sink receives the ticks a connector accepts after rate limiting.
type Sink interface {
	Write(tick domain.TradeTick) error
	Close() error
}

// LogSink appends one line per accepted tick to a raw text log.
type LogSink struct {
	mu   sync.Mutex
	file *os.File
}

// NewLogSink opens (or creates) the log file for appending. When truncate is
// set the previous run's contents are discarded first.
func NewLogSink(path string, truncate bool) (*LogSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	flags := os.O_CREATE | os.O_WRONLY | os.O_APPEND
	if truncate {
		flags = os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	}
	file, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return &LogSink{file: file}, nil
}

func (s *LogSink) Write(tick domain.TradeTick) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	line := fmt.Sprintf("UTC: %s    %s: $%s    Volume: %s\n",
		tick.Timestamp.UTC().Format("15:04:05.000"),
		tick.Product,
		strconv.FormatFloat(tick.Price, 'f', -1, 64),
		strconv.FormatFloat(tick.Volume, 'f', -1, 64))
	if _, err := s.file.WriteString(line); err != nil {
		return fmt.Errorf("append tick: %w", err)
	}
	return nil
}

func (s *LogSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}

// StoreSink mirrors accepted ticks into a tick store.
type StoreSink struct {
	store   storage.TickStore
	timeout time.Duration
}

// NewStoreSink creates a sink over the given store. Each write uses its own
// bounded context so a slow database never stalls the receive loop for long.
func NewStoreSink(store storage.TickStore, timeout time.Duration) *StoreSink {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &StoreSink{store: store, timeout: timeout}
}

func (s *StoreSink) Write(tick domain.TradeTick) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	start := time.Now()
	err := s.store.InsertBulk(ctx, []*domain.TradeTick{&tick})
	observability.RecordDBQuery("clickhouse", "insert_ticks", time.Since(start).Seconds(), err)
	return err
}

func (s *StoreSink) Close() error { return nil }

// MultiSink fans one tick out to several sinks. Write returns the first
// error but still attempts every sink.
type MultiSink struct {
	sinks []Sink
}

func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

func (m *MultiSink) Write(tick domain.TradeTick) error {
	var firstErr error
	for _, s := range m.sinks {
		if err := s.Write(tick); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m *MultiSink) Close() error {
	var firstErr error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var (
	_ Sink = (*LogSink)(nil)
	_ Sink = (*StoreSink)(nil)
	_ Sink = (*MultiSink)(nil)
)
