package stream

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"crypto-collector/internal/domain"
)

func sampleTick() domain.TradeTick {
	return domain.TradeTick{
		Exchange:  "binance",
		Product:   "BTCUSDT",
		Price:     50000.5,
		Volume:    0.25,
		Timestamp: time.Date(2024, 6, 1, 12, 30, 45, 123_000_000, time.UTC),
	}
}

func TestLogSink_AppendsLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "binance_log.txt")
	sink, err := NewLogSink(path, false)
	if err != nil {
		t.Fatalf("NewLogSink: %v", err)
	}

	if err := sink.Write(sampleTick()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	line := string(data)
	if !strings.HasPrefix(line, "UTC: 12:30:45.123") {
		t.Errorf("unexpected timestamp prefix: %q", line)
	}
	if !strings.Contains(line, "BTCUSDT: $50000.5") || !strings.Contains(line, "Volume: 0.25") {
		t.Errorf("unexpected line: %q", line)
	}
}

func TestLogSink_Truncate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.txt")
	if err := os.WriteFile(path, []byte("stale\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	sink, err := NewLogSink(path, true)
	if err != nil {
		t.Fatalf("NewLogSink: %v", err)
	}
	defer sink.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 0 {
		t.Errorf("previous contents survived truncation: %q", data)
	}
}

type failSink struct{ err error }

func (f *failSink) Write(domain.TradeTick) error { return f.err }
func (f *failSink) Close() error                 { return f.err }

func TestMultiSink_WritesAllReportsFirstError(t *testing.T) {
	wantErr := errors.New("boom")
	ok := newCollectSink()
	multi := NewMultiSink(&failSink{err: wantErr}, ok)

	if err := multi.Write(sampleTick()); !errors.Is(err, wantErr) {
		t.Errorf("expected first error, got %v", err)
	}
	if got := len(ok.collected()); got != 1 {
		t.Errorf("later sinks should still be written, got %d ticks", got)
	}
}
