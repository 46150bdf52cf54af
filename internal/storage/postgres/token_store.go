package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"curvesync/internal/domain"
	"curvesync/internal/storage"
)

// TokenStore implements storage.TokenStore using PostgreSQL.
type TokenStore struct {
	pool *Pool
}

// NewTokenStore creates a new TokenStore.
func NewTokenStore(pool *Pool) *TokenStore {
	return &TokenStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TokenStore = (*TokenStore)(nil)

const tokenColumns = `
	address, name, symbol, total_supply::text, curve_address, status,
	market_cap_usd::text, liquidity_usd::text, bonding_progress,
	volume_24h_usd::text, creation_tx, created_at_block_time,
	creator_address, created_at, updated_at
`

// Insert adds a new token. Returns ErrDuplicateKey if address exists.
func (s *TokenStore) Insert(ctx context.Context, t *domain.Token) error {
	query := `
		INSERT INTO tokens (
			address, name, symbol, total_supply, curve_address, status,
			market_cap_usd, liquidity_usd, bonding_progress, volume_24h_usd,
			creation_tx, created_at_block_time, creator_address
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := s.pool.Exec(ctx, query,
		t.Address,
		t.Name,
		t.Symbol,
		t.TotalSupply.String(),
		t.CurveAddress,
		string(t.Status),
		t.MarketCapUSD.String(),
		t.LiquidityUSD.String(),
		t.BondingProgress,
		t.Volume24hUSD.String(),
		t.CreationTx,
		t.CreatedAtBlockTime,
		t.CreatorAddress,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert token: %w", err)
	}
	return nil
}

// GetByAddress retrieves a token by its lowercase contract address.
func (s *TokenStore) GetByAddress(ctx context.Context, address string) (*domain.Token, error) {
	query := `SELECT ` + tokenColumns + ` FROM tokens WHERE address = $1`

	row := s.pool.QueryRow(ctx, query, address)
	t, err := scanToken(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get token by address: %w", err)
	}
	return t, nil
}

// UpdateMarketData overwrites only the mutable market fields.
func (s *TokenStore) UpdateMarketData(ctx context.Context, address string, u domain.MarketUpdate) error {
	query := `
		UPDATE tokens SET
			status = $2,
			market_cap_usd = $3,
			liquidity_usd = $4,
			bonding_progress = $5,
			volume_24h_usd = $6,
			updated_at = (EXTRACT(EPOCH FROM now()) * 1000)::BIGINT
		WHERE address = $1
	`

	tag, err := s.pool.Exec(ctx, query,
		address,
		string(u.Status),
		u.MarketCapUSD.String(),
		u.LiquidityUSD.String(),
		u.BondingProgress,
		u.Volume24hUSD.String(),
	)
	if err != nil {
		return fmt.Errorf("update token market data: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// List retrieves all tokens ordered by creation block time DESC.
func (s *TokenStore) List(ctx context.Context) ([]*domain.Token, error) {
	query := `SELECT ` + tokenColumns + ` FROM tokens ORDER BY created_at_block_time DESC, address ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}
	defer rows.Close()

	var tokens []*domain.Token
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("scan token row: %w", err)
		}
		tokens = append(tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate token rows: %w", err)
	}
	return tokens, nil
}

// scanToken scans a single row into a Token.
func scanToken(row pgx.Row) (*domain.Token, error) {
	var t domain.Token
	var statusStr string
	var totalSupply, marketCap, liquidity, volume string

	err := row.Scan(
		&t.Address,
		&t.Name,
		&t.Symbol,
		&totalSupply,
		&t.CurveAddress,
		&statusStr,
		&marketCap,
		&liquidity,
		&t.BondingProgress,
		&volume,
		&t.CreationTx,
		&t.CreatedAtBlockTime,
		&t.CreatorAddress,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Status = domain.TokenStatus(statusStr)
	if t.TotalSupply, err = decimal.NewFromString(totalSupply); err != nil {
		return nil, fmt.Errorf("parse total_supply: %w", err)
	}
	if t.MarketCapUSD, err = decimal.NewFromString(marketCap); err != nil {
		return nil, fmt.Errorf("parse market_cap_usd: %w", err)
	}
	if t.LiquidityUSD, err = decimal.NewFromString(liquidity); err != nil {
		return nil, fmt.Errorf("parse liquidity_usd: %w", err)
	}
	if t.Volume24hUSD, err = decimal.NewFromString(volume); err != nil {
		return nil, fmt.Errorf("parse volume_24h_usd: %w", err)
	}
	return &t, nil
}
