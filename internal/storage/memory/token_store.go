package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"curvesync/internal/domain"
	"curvesync/internal/storage"
)

// TokenStore is an in-memory implementation of storage.TokenStore.
type TokenStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Token // keyed by address
}

// NewTokenStore creates a new in-memory token store.
func NewTokenStore() *TokenStore {
	return &TokenStore{
		data: make(map[string]*domain.Token),
	}
}

// Insert adds a new token. Returns ErrDuplicateKey if address exists.
func (s *TokenStore) Insert(_ context.Context, t *domain.Token) error {
	if t == nil || t.Address == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[t.Address]; exists {
		return storage.ErrDuplicateKey
	}

	// Store a copy to prevent external mutation
	tokenCopy := *t
	now := time.Now().UnixMilli()
	tokenCopy.CreatedAt = now
	tokenCopy.UpdatedAt = now
	s.data[t.Address] = &tokenCopy
	return nil
}

// GetByAddress retrieves a token. Returns ErrNotFound if not exists.
func (s *TokenStore) GetByAddress(_ context.Context, address string) (*domain.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, exists := s.data[address]
	if !exists {
		return nil, storage.ErrNotFound
	}

	tokenCopy := *t
	return &tokenCopy, nil
}

// UpdateMarketData overwrites only the mutable market fields.
func (s *TokenStore) UpdateMarketData(_ context.Context, address string, u domain.MarketUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, exists := s.data[address]
	if !exists {
		return storage.ErrNotFound
	}

	t.Status = u.Status
	t.MarketCapUSD = u.MarketCapUSD
	t.LiquidityUSD = u.LiquidityUSD
	t.BondingProgress = u.BondingProgress
	t.Volume24hUSD = u.Volume24hUSD
	t.UpdatedAt = time.Now().UnixMilli()
	return nil
}

// List retrieves all tokens ordered by creation block time DESC.
func (s *TokenStore) List(_ context.Context) ([]*domain.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Token, 0, len(s.data))
	for _, t := range s.data {
		tokenCopy := *t
		result = append(result, &tokenCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAtBlockTime != result[j].CreatedAtBlockTime {
			return result[i].CreatedAtBlockTime > result[j].CreatedAtBlockTime
		}
		return result[i].Address < result[j].Address
	})

	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.TokenStore = (*TokenStore)(nil)
