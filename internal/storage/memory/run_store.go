package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"crypto-collector/internal/domain"
	"crypto-collector/internal/storage"
)

// RunStore is an in-memory implementation of storage.RunStore.
type RunStore struct {
	mu     sync.RWMutex
	data   map[int64]*domain.CollectionRun
	nextID int64
}

// NewRunStore creates a new in-memory run store.
func NewRunStore() *RunStore {
	return &RunStore{
		data:   make(map[int64]*domain.CollectionRun),
		nextID: 1,
	}
}

// Insert adds a new run and fills in its generated ID.
func (s *RunStore) Insert(_ context.Context, r *domain.CollectionRun) error {
	if r == nil || r.JobType == "" || r.Scope == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r.ID = s.nextID
	s.nextID++

	runCopy := *r
	s.data[r.ID] = &runCopy
	return nil
}

// GetByJobType retrieves all runs of a job type, newest first.
func (s *RunStore) GetByJobType(_ context.Context, jobType string) ([]*domain.CollectionRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.CollectionRun
	for _, r := range s.data {
		if r.JobType == jobType {
			runCopy := *r
			result = append(result, &runCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].StartedAt.Equal(result[j].StartedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].StartedAt.After(result[j].StartedAt)
	})

	return result, nil
}

// GetByTimeRange retrieves runs started within [start, end] (inclusive),
// ordered by start time ASC.
func (s *RunStore) GetByTimeRange(_ context.Context, start, end time.Time) ([]*domain.CollectionRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.CollectionRun
	for _, r := range s.data {
		if r.StartedAt.Before(start) || r.StartedAt.After(end) {
			continue
		}
		runCopy := *r
		result = append(result, &runCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].StartedAt.Equal(result[j].StartedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].StartedAt.Before(result[j].StartedAt)
	})

	return result, nil
}

var _ storage.RunStore = (*RunStore)(nil)
