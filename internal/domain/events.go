package domain

import "github.com/shopspring/decimal"

// CreationEvent is a decoded TokenCreated log from the factory contract.
type CreationEvent struct {
	TokenAddress string          // newly deployed token contract, lowercase hex
	CurveAddress string          // bonding-curve contract for the token
	Creator      string          // wallet that launched the token
	Name         string          // name carried in the event
	Symbol       string          // symbol carried in the event
	TotalSupply  decimal.Decimal // supply in whole tokens
	InitialBuy   decimal.Decimal // creator's initial buy in native asset
	TxHash       string          // creation transaction hash
	BlockNumber  uint64
	BlockTime    int64 // unix seconds
}

// TradeEvent is a decoded TokenBought or TokenSold log from a bonding curve.
type TradeEvent struct {
	TokenAddress string
	Trader       string
	Direction    TradeDirection
	TokenAmount  decimal.Decimal // whole tokens
	NativeAmount decimal.Decimal // native asset
	TxHash       string
	BlockNumber  uint64
}
