package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"curvesync/internal/domain"
	"curvesync/internal/storage"
)

// TradeStore implements storage.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *Pool
}

// NewTradeStore creates a new TradeStore.
func NewTradeStore(pool *Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

const tradeColumns = `
	id, token_address, tx_hash, direction, trader_address,
	token_amount::text, native_amount::text, price::text,
	block_time, created_at
`

// Insert adds a new trade. Returns ErrDuplicateKey if
// (tx_hash, token_address) exists.
func (s *TradeStore) Insert(ctx context.Context, t *domain.Trade) error {
	query := `
		INSERT INTO trades (
			token_address, tx_hash, direction, trader_address,
			token_amount, native_amount, price, block_time
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := s.pool.Exec(ctx, query,
		t.TokenAddress,
		t.TxHash,
		string(t.Direction),
		t.TraderAddress,
		t.TokenAmount.String(),
		t.NativeAmount.String(),
		t.Price.String(),
		t.BlockTime,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

// FindByTxAndToken retrieves a trade by its natural key.
func (s *TradeStore) FindByTxAndToken(ctx context.Context, txHash, tokenAddress string) (*domain.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE tx_hash = $1 AND token_address = $2`

	row := s.pool.QueryRow(ctx, query, txHash, tokenAddress)
	t, err := scanTrade(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get trade by tx and token: %w", err)
	}
	return t, nil
}

// GetByToken retrieves all trades for a token, ordered by block time ASC.
func (s *TradeStore) GetByToken(ctx context.Context, tokenAddress string) ([]*domain.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE token_address = $1 ORDER BY block_time ASC, id ASC`

	rows, err := s.pool.Query(ctx, query, tokenAddress)
	if err != nil {
		return nil, fmt.Errorf("get trades by token: %w", err)
	}
	defer rows.Close()

	var trades []*domain.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trade row: %w", err)
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade rows: %w", err)
	}
	return trades, nil
}

// VolumeNativeSince sums native-asset amounts of a token's trades at or
// after the given block time.
func (s *TradeStore) VolumeNativeSince(ctx context.Context, tokenAddress string, since int64) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(native_amount), 0)::text
		FROM trades
		WHERE token_address = $1 AND block_time >= $2
	`

	var sum string
	if err := s.pool.QueryRow(ctx, query, tokenAddress, since).Scan(&sum); err != nil {
		return decimal.Zero, fmt.Errorf("sum trade volume: %w", err)
	}

	volume, err := decimal.NewFromString(sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse trade volume: %w", err)
	}
	return volume, nil
}

// scanTrade scans a single row into a Trade.
func scanTrade(row pgx.Row) (*domain.Trade, error) {
	var t domain.Trade
	var directionStr string
	var tokenAmount, nativeAmount, price string

	err := row.Scan(
		&t.ID,
		&t.TokenAddress,
		&t.TxHash,
		&directionStr,
		&t.TraderAddress,
		&tokenAmount,
		&nativeAmount,
		&price,
		&t.BlockTime,
		&t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Direction = domain.TradeDirection(directionStr)
	if t.TokenAmount, err = decimal.NewFromString(tokenAmount); err != nil {
		return nil, fmt.Errorf("parse token_amount: %w", err)
	}
	if t.NativeAmount, err = decimal.NewFromString(nativeAmount); err != nil {
		return nil, fmt.Errorf("parse native_amount: %w", err)
	}
	if t.Price, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("parse price: %w", err)
	}
	return &t, nil
}
