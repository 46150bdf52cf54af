package memory

import (
	"context"
	"sync"
	"time"

	"curvesync/internal/domain"
	"curvesync/internal/storage"
)

// UserStore is an in-memory implementation of storage.UserStore.
type UserStore struct {
	mu   sync.Mutex
	data map[string]*domain.User // keyed by address
}

// NewUserStore creates a new in-memory user store.
func NewUserStore() *UserStore {
	return &UserStore{
		data: make(map[string]*domain.User),
	}
}

// FindOrCreate returns the user for an address, creating it lazily.
func (s *UserStore) FindOrCreate(_ context.Context, address string) (*domain.User, error) {
	if address == "" {
		return nil, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if u, exists := s.data[address]; exists {
		userCopy := *u
		return &userCopy, nil
	}

	u := &domain.User{
		Address:   address,
		Role:      domain.DefaultRole,
		CreatedAt: time.Now().UnixMilli(),
	}
	s.data[address] = u

	userCopy := *u
	return &userCopy, nil
}

// GetByAddress retrieves a user. Returns ErrNotFound if not exists.
func (s *UserStore) GetByAddress(_ context.Context, address string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, exists := s.data[address]
	if !exists {
		return nil, storage.ErrNotFound
	}

	userCopy := *u
	return &userCopy, nil
}

// Verify interface compliance at compile time.
var _ storage.UserStore = (*UserStore)(nil)
