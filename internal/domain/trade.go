package domain

import "github.com/shopspring/decimal"

// TradeDirection represents the side of a bonding-curve trade.
type TradeDirection string

const (
	TradeBuy  TradeDirection = "BUY"
	TradeSell TradeDirection = "SELL"
)

// String returns the string representation of TradeDirection.
func (d TradeDirection) String() string {
	return string(d)
}

// IsValid checks if the direction is a valid value.
func (d TradeDirection) IsValid() bool {
	return d == TradeBuy || d == TradeSell
}

// Trade represents a single buy or sell against a token's bonding curve.
// Corresponds to trades table in PostgreSQL; UNIQUE(tx_hash, token_address).
//
// Price is derived as NativeAmount / TokenAmount and can always be recomputed
// from the amounts that produced it. Trades are never mutated after insert.
type Trade struct {
	ID            int64           // BIGSERIAL primary key
	TokenAddress  string          // FK to tokens, lowercase hex
	TxHash        string          // transaction hash
	Direction     TradeDirection  // BUY | SELL
	TraderAddress string          // wallet that traded
	TokenAmount   decimal.Decimal // token amount in whole tokens
	NativeAmount  decimal.Decimal // native asset amount
	Price         decimal.Decimal // native per token, derived
	BlockTime     int64           // block timestamp (unix seconds)
	CreatedAt     int64           // record creation timestamp (ms)
}
