package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"curvesync/internal/domain"
	"curvesync/internal/storage"
)

// tradeKey is the natural uniqueness key of a trade.
type tradeKey struct {
	txHash       string
	tokenAddress string
}

// TradeStore is an in-memory implementation of storage.TradeStore.
type TradeStore struct {
	mu     sync.RWMutex
	data   map[tradeKey]*domain.Trade
	nextID int64
}

// NewTradeStore creates a new in-memory trade store.
func NewTradeStore() *TradeStore {
	return &TradeStore{
		data:   make(map[tradeKey]*domain.Trade),
		nextID: 1,
	}
}

// Insert adds a new trade. Returns ErrDuplicateKey if (tx_hash, token) exists.
func (s *TradeStore) Insert(_ context.Context, t *domain.Trade) error {
	if t == nil || t.TxHash == "" || t.TokenAddress == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := tradeKey{txHash: t.TxHash, tokenAddress: t.TokenAddress}
	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}

	tradeCopy := *t
	tradeCopy.ID = s.nextID
	tradeCopy.CreatedAt = time.Now().UnixMilli()
	s.nextID++
	s.data[key] = &tradeCopy
	return nil
}

// FindByTxAndToken retrieves a trade by its natural key.
func (s *TradeStore) FindByTxAndToken(_ context.Context, txHash, tokenAddress string) (*domain.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, exists := s.data[tradeKey{txHash: txHash, tokenAddress: tokenAddress}]
	if !exists {
		return nil, storage.ErrNotFound
	}

	tradeCopy := *t
	return &tradeCopy, nil
}

// GetByToken retrieves all trades for a token, ordered by block time ASC.
func (s *TradeStore) GetByToken(_ context.Context, tokenAddress string) ([]*domain.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Trade
	for _, t := range s.data {
		if t.TokenAddress == tokenAddress {
			tradeCopy := *t
			result = append(result, &tradeCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].BlockTime != result[j].BlockTime {
			return result[i].BlockTime < result[j].BlockTime
		}
		return result[i].ID < result[j].ID
	})

	return result, nil
}

// VolumeNativeSince sums native amounts of trades at or after the given time.
func (s *TradeStore) VolumeNativeSince(_ context.Context, tokenAddress string, since int64) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum := decimal.Zero
	for _, t := range s.data {
		if t.TokenAddress == tokenAddress && t.BlockTime >= since {
			sum = sum.Add(t.NativeAmount)
		}
	}
	return sum, nil
}

// Verify interface compliance at compile time.
var _ storage.TradeStore = (*TradeStore)(nil)
