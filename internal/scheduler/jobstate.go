package scheduler

import "sync"

// jobState tracks one job type's liveness. A type is either Idle or
// Running; a dispatch while Running is skipped, never queued.
type jobState struct {
	mu      sync.Mutex
	running bool
}

// tryAcquire transitions Idle → Running. It reports false when a same-type
// job is still running.
func (s *jobState) tryAcquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}
	s.running = true
	return true
}

// release transitions Running → Idle.
func (s *jobState) release() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}
