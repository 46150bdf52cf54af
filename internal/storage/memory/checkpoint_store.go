package memory

import (
	"context"
	"sync"

	"curvesync/internal/storage"
)

// CheckpointStore is an in-memory implementation of storage.CheckpointStore.
type CheckpointStore struct {
	mu   sync.Mutex
	data map[string]uint64
}

// NewCheckpointStore creates a new in-memory checkpoint store.
func NewCheckpointStore() *CheckpointStore {
	return &CheckpointStore{
		data: make(map[string]uint64),
	}
}

// Get returns the last processed block for a scope.
func (s *CheckpointStore) Get(_ context.Context, scope string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	block, exists := s.data[scope]
	if !exists {
		return 0, storage.ErrNotFound
	}
	return block, nil
}

// Set advances the checkpoint; it never moves backwards.
func (s *CheckpointStore) Set(_ context.Context, scope string, block uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if current, exists := s.data[scope]; exists && current > block {
		return nil
	}
	s.data[scope] = block
	return nil
}

// Verify interface compliance at compile time.
var _ storage.CheckpointStore = (*CheckpointStore)(nil)
