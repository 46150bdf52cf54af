package curve

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"curvesync/internal/chain"
	"curvesync/internal/ethaddr"
)

// Read-call selectors, computed once from the signatures.
var (
	tokenInfoSelector = chain.Selector("tokenInfo(address)")
	nameSelector      = chain.Selector("name()")
	symbolSelector    = chain.Selector("symbol()")
)

// TokenState is the factory's view of one token, as returned by
// tokenInfo(address). The contract derives price, market cap, and bonding
// progress from its own reserve math; we trust its accessors rather than
// re-deriving the curve.
type TokenState struct {
	Creator         string
	CurveAddress    string
	NativeReserve   decimal.Decimal
	TokenReserve    decimal.Decimal
	TotalSupply     decimal.Decimal
	PriceNative     decimal.Decimal // native asset per whole token
	MarketCapNative decimal.Decimal
	BondingProgress float64 // 0-100
	Graduated       bool
}

// Known reports whether the factory recognizes the token. The factory returns
// a zeroed tuple for addresses it never launched.
func (s *TokenState) Known() bool {
	return !ethaddr.IsZero(s.Creator)
}

// Metadata holds the optional ERC-20 metadata of a token contract. Fields are
// nil when the contract does not implement the corresponding call.
type Metadata struct {
	Name   *string
	Symbol *string
}

// Factory binds read calls against the token-launch factory contract.
type Factory struct {
	address string
	client  chain.Client
}

// NewFactory creates a binding for the factory at the given address.
func NewFactory(address string, client chain.Client) *Factory {
	return &Factory{address: address, client: client}
}

// Address returns the factory contract address.
func (f *Factory) Address() string {
	return f.address
}

// ReadTokenState reads the factory's tokenInfo tuple for one token:
//
//	(address creator, address curve,
//	 uint256 nativeReserve, uint256 tokenReserve, uint256 totalSupply,
//	 uint256 priceNative, uint256 marketCapNative,
//	 uint256 bondingProgressBps, bool graduated)
func (f *Factory) ReadTokenState(ctx context.Context, token string) (*TokenState, error) {
	data := tokenInfoSelector + chain.EncodeAddressArg(token)
	result, err := f.client.Call(ctx, f.address, data)
	if err != nil {
		return nil, fmt.Errorf("call tokenInfo(%s): %w", token, err)
	}

	words, err := chain.Words(result)
	if err != nil {
		return nil, err
	}
	if len(words) != 9 {
		return nil, &chain.DecodeError{Msg: fmt.Sprintf("tokenInfo returned %d words, want 9", len(words))}
	}

	creator, err := chain.WordToAddress(words[0])
	if err != nil {
		return nil, err
	}
	curveAddr, err := chain.WordToAddress(words[1])
	if err != nil {
		return nil, err
	}

	var nums [5]decimal.Decimal
	for i := 0; i < 5; i++ {
		raw, err := chain.WordToBig(words[2+i])
		if err != nil {
			return nil, err
		}
		nums[i] = chain.WeiToDecimal(raw, chain.NativeDecimals)
	}

	progressBps, err := chain.WordToBig(words[7])
	if err != nil {
		return nil, err
	}
	graduated, err := chain.WordToBool(words[8])
	if err != nil {
		return nil, err
	}

	progress := float64(progressBps.Int64()) / 100.0
	if progress > 100 {
		progress = 100
	}

	return &TokenState{
		Creator:         creator,
		CurveAddress:    curveAddr,
		NativeReserve:   nums[0],
		TokenReserve:    nums[1],
		TotalSupply:     nums[2],
		PriceNative:     nums[3],
		MarketCapNative: nums[4],
		BondingProgress: progress,
		Graduated:       graduated,
	}, nil
}

// ProbeMetadata reads a token contract's optional name and symbol.
// Absence of either call is a normal case, not an error: tokens that omit the
// optional metadata methods simply leave the field nil.
func ProbeMetadata(ctx context.Context, client chain.Client, token string) Metadata {
	var meta Metadata

	if result, err := client.Call(ctx, token, nameSelector); err == nil {
		if name, err := chain.DecodeStringResult(result); err == nil && name != "" {
			meta.Name = &name
		}
	}

	if result, err := client.Call(ctx, token, symbolSelector); err == nil {
		if symbol, err := chain.DecodeStringResult(result); err == nil && symbol != "" {
			meta.Symbol = &symbol
		}
	}

	return meta
}
