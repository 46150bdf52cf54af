package storage

import (
	"context"

	"github.com/shopspring/decimal"

	"curvesync/internal/domain"
)

// TokenStore provides access to tokens storage. The unique constraint on
// address is the final arbiter for concurrent creation.
type TokenStore interface {
	// Insert adds a new token. Returns ErrDuplicateKey if address exists.
	Insert(ctx context.Context, t *domain.Token) error

	// GetByAddress retrieves a token by its lowercase contract address.
	// Returns ErrNotFound if not exists.
	GetByAddress(ctx context.Context, address string) (*domain.Token, error)

	// UpdateMarketData overwrites only the mutable market fields.
	// Identity fields are never touched. Returns ErrNotFound if not exists.
	UpdateMarketData(ctx context.Context, address string, u domain.MarketUpdate) error

	// List retrieves all tokens ordered by creation block time DESC.
	List(ctx context.Context) ([]*domain.Token, error)
}

// UserStore provides access to users storage.
type UserStore interface {
	// FindOrCreate returns the user for a normalized wallet address,
	// creating it lazily on first sighting. A duplicate-key race on create
	// resolves to the existing row.
	FindOrCreate(ctx context.Context, address string) (*domain.User, error)

	// GetByAddress retrieves a user. Returns ErrNotFound if not exists.
	GetByAddress(ctx context.Context, address string) (*domain.User, error)
}

// TradeStore provides access to trades storage.
type TradeStore interface {
	// Insert adds a new trade. Returns ErrDuplicateKey if
	// (tx_hash, token_address) exists. Trades are never updated.
	Insert(ctx context.Context, t *domain.Trade) error

	// FindByTxAndToken retrieves a trade by its natural key.
	// Returns ErrNotFound if not exists.
	FindByTxAndToken(ctx context.Context, txHash, tokenAddress string) (*domain.Trade, error)

	// GetByToken retrieves all trades for a token, ordered by block time ASC.
	GetByToken(ctx context.Context, tokenAddress string) ([]*domain.Trade, error)

	// VolumeNativeSince sums the native-asset amounts of a token's trades
	// at or after the given block time (unix seconds).
	VolumeNativeSince(ctx context.Context, tokenAddress string, since int64) (decimal.Decimal, error)
}

// CheckpointStore persists the last block fully processed per scope, so a
// restart replays at most one block range instead of losing or duplicating
// data. Scopes: "creations", "trades:<token address>".
type CheckpointStore interface {
	// Get returns the last processed block. Returns ErrNotFound if no
	// checkpoint has been saved for the scope yet.
	Get(ctx context.Context, scope string) (uint64, error)

	// Set advances the checkpoint. Callers only invoke this after the
	// corresponding writes are durably committed.
	Set(ctx context.Context, scope string, block uint64) error
}
