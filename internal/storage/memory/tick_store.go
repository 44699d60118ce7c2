package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"crypto-collector/internal/domain"
	"crypto-collector/internal/storage"
)

// TickStore is an in-memory implementation of storage.TickStore. Ticks are
// append-only; equal timestamps are allowed, matching the ClickHouse table.
type TickStore struct {
	mu   sync.RWMutex
	data []*domain.TradeTick
}

// NewTickStore creates a new in-memory tick store.
func NewTickStore() *TickStore {
	return &TickStore{}
}

// InsertBulk adds multiple ticks. Fails the entire batch on invalid input.
func (s *TickStore) InsertBulk(_ context.Context, ticks []*domain.TradeTick) error {
	if len(ticks) == 0 {
		return nil
	}

	for _, t := range ticks {
		if t == nil || t.Exchange == "" || t.Product == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range ticks {
		tickCopy := *t
		s.data = append(s.data, &tickCopy)
	}

	return nil
}

// GetByProduct retrieves ticks for one exchange product within [start, end]
// (inclusive), ordered by timestamp ASC.
func (s *TickStore) GetByProduct(_ context.Context, exchange, product string, start, end time.Time) ([]*domain.TradeTick, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TradeTick
	for _, t := range s.data {
		if t.Exchange != exchange || t.Product != product {
			continue
		}
		if t.Timestamp.Before(start) || t.Timestamp.After(end) {
			continue
		}
		tickCopy := *t
		result = append(result, &tickCopy)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp.Before(result[j].Timestamp)
	})

	return result, nil
}

var _ storage.TickStore = (*TickStore)(nil)
