package domain

import "github.com/shopspring/decimal"

// TokenStatus represents the lifecycle stage of a bonding-curve token.
type TokenStatus string

const (
	StatusActive    TokenStatus = "ACTIVE"
	StatusGraduated TokenStatus = "GRADUATED"
)

// String returns the string representation of TokenStatus.
func (s TokenStatus) String() string {
	return string(s)
}

// IsValid checks if the status is a valid value.
func (s TokenStatus) IsValid() bool {
	return s == StatusActive || s == StatusGraduated
}

// Token represents a launched bonding-curve token.
// Corresponds to tokens table in PostgreSQL.
//
// Address, Name, Symbol, TotalSupply, CurveAddress, CreationTx, CreatedAtBlockTime
// and CreatorAddress are fixed at creation; the remaining market fields are
// overwritten on every refresh.
type Token struct {
	Address            string          // PRIMARY KEY, lowercase hex contract address
	Name               string          // token name
	Symbol             string          // token symbol
	TotalSupply        decimal.Decimal // total supply in whole tokens
	CurveAddress       string          // bonding-curve contract address
	Status             TokenStatus     // ACTIVE | GRADUATED
	MarketCapUSD       decimal.Decimal // market capitalization in USD
	LiquidityUSD       decimal.Decimal // curve reserve value in USD
	BondingProgress    float64         // 0-100 completion of the bonding curve
	Volume24hUSD       decimal.Decimal // trailing 24h trade volume in USD
	CreationTx         string          // transaction hash of the creation event
	CreatedAtBlockTime int64           // block timestamp of creation (unix seconds)
	CreatorAddress     string          // FK to users
	CreatedAt          int64           // record creation timestamp (ms)
	UpdatedAt          int64           // last refresh timestamp (ms)
}

// MarketUpdate carries the mutable market fields applied by a refresh.
type MarketUpdate struct {
	Status          TokenStatus
	MarketCapUSD    decimal.Decimal
	LiquidityUSD    decimal.Decimal
	BondingProgress float64
	Volume24hUSD    decimal.Decimal
}
