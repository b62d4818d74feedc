package orchestrator

import (
	"sync/atomic"

	"promptrelay/internal/domain"
)

// State tracks the service lifecycle flag and the cumulative counters.
// Counters are atomic and survive re-initialization: rotating credentials
// must never zero the request history.
type State struct {
	initialized atomic.Bool
	requests    atomic.Uint64
	errors      atomic.Uint64
}

func NewState() *State {
	return &State{}
}

// Initialized reports whether the service holds validated credentials
func (s *State) Initialized() bool {
	return s.initialized.Load()
}

func (s *State) setInitialized(v bool) {
	s.initialized.Store(v)
}

// NextRequest increments the monotonic request counter and returns the
// new value
func (s *State) NextRequest() uint64 {
	return s.requests.Add(1)
}

// RecordError increments the cumulative error counter
func (s *State) RecordError() {
	s.errors.Add(1)
}

// Snapshot returns a point-in-time view of the service state
func (s *State) Snapshot() domain.ServiceStats {
	return domain.ServiceStats{
		Initialized:   s.initialized.Load(),
		RequestsTotal: s.requests.Load(),
		ErrorsTotal:   s.errors.Load(),
	}
}
