// Package dataset implements the windowed merge store: a keyed, time-ordered
// dataset backed by a flat CSV file with bounded retention and
// dedup-on-insert semantics. Every pull collector persists through the same
// merge discipline, parameterized only by codec, retention horizon and final
// ordering.
package dataset

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Codec maps records of one dataset category to and from CSV rows and
// extracts the dedup key and the timestamp used for retention pruning.
type Codec[R any] interface {
	// Header returns the CSV header row.
	Header() []string

	// Encode serializes a record into one CSV row matching Header.
	Encode(r R) []string

	// Decode parses one CSV row. A malformed row returns an error and is
	// skipped by the store; it never fails the whole load.
	Decode(row []string) (R, error)

	// Key returns the dedup key of a record.
	Key(r R) string

	// Time returns the timestamp used for retention pruning.
	Time(r R) time.Time
}

// Order controls the serialization order of a dataset file.
type Order int

const (
	// KeyAscending orders rows by key ascending (daily history, live data).
	KeyAscending Order = iota
	// NewestFirst orders rows by timestamp descending (news, social).
	NewestFirst
)

// Options configures a Store.
type Options struct {
	// Dir is the directory holding one CSV file per dataset name.
	Dir string
	// Horizon is the retention window; rows older than Now()-Horizon are
	// purged on every merge, whether pre-existing or freshly inserted.
	Horizon time.Duration
	// Order is the serialization order.
	Order Order
	// Now supplies the current time; defaults to time.Now. Injected by tests.
	Now func() time.Time
	// Logger defaults to log.Default().
	Logger *log.Logger
}

// Store is a windowed merge store over one dataset category. It is safe for
// concurrent use: merges to the same dataset file are serialized by a
// per-file mutex, so the load-prune-write cycle never interleaves.
type Store[R any] struct {
	codec   Codec[R]
	dir     string
	horizon time.Duration
	order   Order
	now     func() time.Time
	logger  *log.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a Store for one dataset category.
func New[R any](codec Codec[R], opts Options) *Store[R] {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Store[R]{
		codec:   codec,
		dir:     opts.Dir,
		horizon: opts.Horizon,
		order:   opts.Order,
		now:     now,
		logger:  logger,
		locks:   make(map[string]*sync.Mutex),
	}
}

// Path returns the dataset file path for a name.
func (s *Store[R]) Path(name string) string {
	return filepath.Join(s.dir, name+".csv")
}

// ModTime returns the dataset file's modification time. ok is false when the
// file does not exist yet.
func (s *Store[R]) ModTime(name string) (mod time.Time, ok bool) {
	info, err := os.Stat(s.Path(name))
	if err != nil {
		return time.Time{}, false
	}
	return info.ModTime(), true
}

// Merge applies the windowed merge algorithm for one dataset:
//
//  1. load existing rows into a key map (missing file = empty map)
//  2. drop every row older than the retention horizon
//  3. insert incoming rows whose key is absent (first-seen-wins; a key
//     already present, from storage or from an earlier element of the same
//     batch, causes the new row to be discarded)
//  4. atomically rewrite the file in the configured order
//
// It returns the number of incoming rows actually inserted.
func (s *Store[R]) Merge(name string, incoming []R) (int, error) {
	lock := s.fileLock(name)
	lock.Lock()
	defer lock.Unlock()

	existing, err := s.load(name)
	if err != nil {
		return 0, err
	}

	cutoff := s.now().Add(-s.horizon)

	kept := existing[:0]
	seen := make(map[string]struct{}, len(existing))
	for _, r := range existing {
		if s.codec.Time(r).Before(cutoff) {
			continue
		}
		kept = append(kept, r)
		seen[s.codec.Key(r)] = struct{}{}
	}

	inserted := 0
	for _, r := range incoming {
		if s.codec.Time(r).Before(cutoff) {
			continue
		}
		key := s.codec.Key(r)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		kept = append(kept, r)
		inserted++
	}

	s.sortRows(kept)

	if err := s.write(name, kept); err != nil {
		return 0, err
	}
	return inserted, nil
}

// Load reads all rows of a dataset in file order. A missing file yields an
// empty slice, not an error. Malformed rows are skipped.
func (s *Store[R]) Load(name string) ([]R, error) {
	lock := s.fileLock(name)
	lock.Lock()
	defer lock.Unlock()

	return s.load(name)
}

func (s *Store[R]) fileLock(name string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[name]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[name] = lock
	}
	return lock
}

func (s *Store[R]) load(name string) ([]R, error) {
	f, err := os.Open(s.Path(name))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open dataset %s: %w", name, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read dataset %s: %w", name, err)
	}

	var rows []R
	for i, record := range records {
		if i == 0 && isHeader(record, s.codec.Header()) {
			continue
		}
		r, err := s.codec.Decode(record)
		if err != nil {
			s.logger.Printf("dataset %s: skipping malformed row %d: %v", name, i, err)
			continue
		}
		rows = append(rows, r)
	}
	return rows, nil
}

func (s *Store[R]) sortRows(rows []R) {
	switch s.order {
	case NewestFirst:
		sort.SliceStable(rows, func(i, j int) bool {
			return s.codec.Time(rows[i]).After(s.codec.Time(rows[j]))
		})
	default:
		sort.SliceStable(rows, func(i, j int) bool {
			return s.codec.Key(rows[i]) < s.codec.Key(rows[j])
		})
	}
}

// write rewrites the dataset file atomically: serialize to a temp file in the
// same directory, then rename over the old file. A crash mid-write leaves the
// previous file intact.
func (s *Store[R]) write(name string, rows []R) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create dataset dir: %w", err)
	}

	path := s.Path(name)
	tmp, err := os.CreateTemp(s.dir, name+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp dataset: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	writer := csv.NewWriter(tmp)
	if err := writer.Write(s.codec.Header()); err != nil {
		tmp.Close()
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range rows {
		if err := writer.Write(s.codec.Encode(r)); err != nil {
			tmp.Close()
			return fmt.Errorf("write row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush dataset %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync dataset %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp dataset: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replace dataset %s: %w", name, err)
	}
	return nil
}

func isHeader(record, header []string) bool {
	if len(record) == 0 {
		return false
	}
	return strings.EqualFold(record[0], header[0])
}
