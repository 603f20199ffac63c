package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps governor state in process memory. A restart clears all cooldowns.
type MemoryStore struct {
	mu          sync.Mutex
	operations  map[string]OperationState
	globalUntil time.Time
}

// NewMemoryStore constructs a MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		operations: make(map[string]OperationState),
	}
}

// Operation returns the stored state for name, or the zero state.
func (s *MemoryStore) Operation(_ context.Context, name string) (OperationState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.operations[name], nil
}

// SaveOperation replaces the stored state for name.
func (s *MemoryStore) SaveOperation(_ context.Context, name string, state OperationState) error {
	s.mu.Lock()
	s.operations[name] = state
	s.mu.Unlock()
	return nil
}

// GlobalBackoffUntil returns the global cooldown deadline.
func (s *MemoryStore) GlobalBackoffUntil(_ context.Context) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.globalUntil, nil
}

// SetGlobalBackoffUntil replaces the global cooldown deadline.
func (s *MemoryStore) SetGlobalBackoffUntil(_ context.Context, until time.Time) error {
	s.mu.Lock()
	s.globalUntil = until
	s.mu.Unlock()
	return nil
}

// drain returns all stored state and clears the store.
func (s *MemoryStore) drain() (map[string]OperationState, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	operations, globalUntil := s.operations, s.globalUntil
	s.operations = make(map[string]OperationState)
	s.globalUntil = time.Time{}
	return operations, globalUntil
}
