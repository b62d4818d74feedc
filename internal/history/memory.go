// Package history stores conversation turns between assistance requests.
package history

import (
	"context"
	"sync"

	"promptrelay/internal/domain"
)

// DefaultCapacity bounds per-session retention when none is configured
const DefaultCapacity = 200

// MemoryStore keeps recent conversation turns in memory, bounded per
// session. Suitable for single-process deployments and tests.
type MemoryStore struct {
	sessions map[string][]domain.ConversationTurn
	capacity int
	mu       sync.RWMutex
}

// NewMemoryStore creates an in-memory history store
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &MemoryStore{
		sessions: make(map[string][]domain.ConversationTurn),
		capacity: capacity,
	}
}

// Append records turns at the end of a session, evicting the oldest
// entries beyond capacity
func (s *MemoryStore) Append(ctx context.Context, sessionID string, turns ...domain.ConversationTurn) error {
	if len(turns) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := append(s.sessions[sessionID], turns...)
	if over := len(stored) - s.capacity; over > 0 {
		stored = stored[over:]
	}
	s.sessions[sessionID] = stored
	return nil
}

// History returns up to limit most recent turns in chronological order
func (s *MemoryStore) History(ctx context.Context, sessionID string, limit int) ([]domain.ConversationTurn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.sessions[sessionID]
	if limit > 0 && len(stored) > limit {
		stored = stored[len(stored)-limit:]
	}

	out := make([]domain.ConversationTurn, len(stored))
	copy(out, stored)
	return out, nil
}

// Clear drops all turns for a session
func (s *MemoryStore) Clear(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

// Nop is a history source that remembers nothing. It stands in when
// history storage is disabled so callers never branch on nil.
type Nop struct{}

// Append discards the turns
func (Nop) Append(ctx context.Context, sessionID string, turns ...domain.ConversationTurn) error {
	return nil
}

// History returns no turns
func (Nop) History(ctx context.Context, sessionID string, limit int) ([]domain.ConversationTurn, error) {
	return nil, nil
}
