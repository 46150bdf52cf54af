// Package curve holds the ABI surface of the token-launch factory and its
// bonding-curve contracts: event topics, log decoders, and read-call bindings.
package curve

import (
	"fmt"

	"curvesync/internal/chain"
	"curvesync/internal/domain"
)

// Canonical event signatures of the deployed contracts. Argument order is
// bit-exact with what the contracts emit; decoders below must not reorder.
const (
	creationEventSig = "TokenCreated(address,address,address,string,string,uint256,uint256)"
	buyEventSig      = "TokenBought(address,address,uint256,uint256)"
	sellEventSig     = "TokenSold(address,address,uint256,uint256)"
)

// Topics, computed once from the signatures.
var (
	CreationTopic = chain.EventTopic(creationEventSig)
	BuyTopic      = chain.EventTopic(buyEventSig)
	SellTopic     = chain.EventTopic(sellEventSig)
)

// DecodeCreation decodes a TokenCreated log:
//
//	TokenCreated(address indexed token, address indexed creator,
//	             address curve, string name, string symbol,
//	             uint256 totalSupply, uint256 initialBuy)
//
// BlockTime is not carried by the log; the caller resolves it separately.
func DecodeCreation(log chain.Log) (*domain.CreationEvent, error) {
	if len(log.Topics) != 3 {
		return nil, &chain.DecodeError{Msg: fmt.Sprintf("creation log has %d topics, want 3", len(log.Topics))}
	}
	if log.Topics[0] != CreationTopic {
		return nil, &chain.DecodeError{Msg: "not a TokenCreated log"}
	}

	token, err := chain.TopicToAddress(log.Topics[1])
	if err != nil {
		return nil, err
	}
	creator, err := chain.TopicToAddress(log.Topics[2])
	if err != nil {
		return nil, err
	}

	words, err := chain.Words(log.Data)
	if err != nil {
		return nil, err
	}
	if len(words) < 5 {
		return nil, &chain.DecodeError{Msg: fmt.Sprintf("creation log data has %d words, want >= 5", len(words))}
	}

	curveAddr, err := chain.WordToAddress(words[0])
	if err != nil {
		return nil, err
	}
	name, err := chain.DecodeString(words, 1)
	if err != nil {
		return nil, err
	}
	symbol, err := chain.DecodeString(words, 2)
	if err != nil {
		return nil, err
	}
	totalSupply, err := chain.WordToBig(words[3])
	if err != nil {
		return nil, err
	}
	initialBuy, err := chain.WordToBig(words[4])
	if err != nil {
		return nil, err
	}

	return &domain.CreationEvent{
		TokenAddress: token,
		CurveAddress: curveAddr,
		Creator:      creator,
		Name:         name,
		Symbol:       symbol,
		TotalSupply:  chain.WeiToDecimal(totalSupply, chain.NativeDecimals),
		InitialBuy:   chain.WeiToDecimal(initialBuy, chain.NativeDecimals),
		TxHash:       log.TxHash,
		BlockNumber:  log.BlockNumber,
	}, nil
}

// DecodeTrade decodes a TokenBought or TokenSold log:
//
//	TokenBought(address indexed token, address indexed buyer,
//	            uint256 nativeIn, uint256 tokensOut)
//	TokenSold(address indexed token, address indexed seller,
//	          uint256 tokensIn, uint256 nativeOut)
func DecodeTrade(log chain.Log) (*domain.TradeEvent, error) {
	if len(log.Topics) != 3 {
		return nil, &chain.DecodeError{Msg: fmt.Sprintf("trade log has %d topics, want 3", len(log.Topics))}
	}

	var direction domain.TradeDirection
	switch log.Topics[0] {
	case BuyTopic:
		direction = domain.TradeBuy
	case SellTopic:
		direction = domain.TradeSell
	default:
		return nil, &chain.DecodeError{Msg: "not a TokenBought/TokenSold log"}
	}

	token, err := chain.TopicToAddress(log.Topics[1])
	if err != nil {
		return nil, err
	}
	trader, err := chain.TopicToAddress(log.Topics[2])
	if err != nil {
		return nil, err
	}

	words, err := chain.Words(log.Data)
	if err != nil {
		return nil, err
	}
	if len(words) != 2 {
		return nil, &chain.DecodeError{Msg: fmt.Sprintf("trade log data has %d words, want 2", len(words))}
	}
	first, err := chain.WordToBig(words[0])
	if err != nil {
		return nil, err
	}
	second, err := chain.WordToBig(words[1])
	if err != nil {
		return nil, err
	}

	event := &domain.TradeEvent{
		TokenAddress: token,
		Trader:       trader,
		Direction:    direction,
		TxHash:       log.TxHash,
		BlockNumber:  log.BlockNumber,
	}

	// Buys carry (nativeIn, tokensOut); sells carry (tokensIn, nativeOut).
	if direction == domain.TradeBuy {
		event.NativeAmount = chain.WeiToDecimal(first, chain.NativeDecimals)
		event.TokenAmount = chain.WeiToDecimal(second, chain.NativeDecimals)
	} else {
		event.TokenAmount = chain.WeiToDecimal(first, chain.NativeDecimals)
		event.NativeAmount = chain.WeiToDecimal(second, chain.NativeDecimals)
	}

	return event, nil
}
