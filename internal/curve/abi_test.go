package curve

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"curvesync/internal/chain"
)

const (
	tokenAddr   = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	creatorAddr = "0xcccccccccccccccccccccccccccccccccccccccc"
	curveAddr   = "0x3333333333333333333333333333333333333333"
	traderAddr  = "0x4444444444444444444444444444444444444444"
)

func topicAddress(addr string) string {
	return "0x" + strings.Repeat("0", 24) + strings.TrimPrefix(addr, "0x")
}

func uintWord(n *big.Int) string {
	return fmt.Sprintf("%064x", n)
}

func ether(whole int64) *big.Int {
	wei := new(big.Int).SetInt64(whole)
	return wei.Mul(wei, new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

func stringTail(s string) string {
	data := fmt.Sprintf("%x", s)
	padded := data + strings.Repeat("0", (64-len(data)%64)%64)
	return uintWord(big.NewInt(int64(len(s)))) + padded
}

func TestDecodeCreation(t *testing.T) {
	nameTail := stringTail("Moon Token")
	symbolOffset := 5*32 + len(nameTail)/2

	log := chain.Log{
		Address: "0xfactory",
		Topics:  []string{CreationTopic, topicAddress(tokenAddr), topicAddress(creatorAddr)},
		Data: "0x" +
			chain.EncodeAddressArg(curveAddr) +
			uintWord(big.NewInt(5*32)) +
			uintWord(big.NewInt(int64(symbolOffset))) +
			uintWord(ether(1_000_000_000)) +
			uintWord(ether(2)),
		BlockNumber: 420,
		TxHash:      "0xcreate",
	}
	log.Data += nameTail + stringTail("MOON")

	event, err := DecodeCreation(log)
	require.NoError(t, err)

	assert.Equal(t, tokenAddr, event.TokenAddress)
	assert.Equal(t, creatorAddr, event.Creator)
	assert.Equal(t, curveAddr, event.CurveAddress)
	assert.Equal(t, "Moon Token", event.Name)
	assert.Equal(t, "MOON", event.Symbol)
	assert.True(t, event.TotalSupply.Equal(decimal.RequireFromString("1000000000")))
	assert.True(t, event.InitialBuy.Equal(decimal.RequireFromString("2")))
	assert.Equal(t, uint64(420), event.BlockNumber)
	assert.Equal(t, "0xcreate", event.TxHash)
}

func TestDecodeCreationRejectsWrongShape(t *testing.T) {
	_, err := DecodeCreation(chain.Log{Topics: []string{CreationTopic}})
	require.Error(t, err)
	assert.True(t, chain.IsDecodeError(err))

	_, err = DecodeCreation(chain.Log{
		Topics: []string{BuyTopic, topicAddress(tokenAddr), topicAddress(creatorAddr)},
	})
	require.Error(t, err)
	assert.True(t, chain.IsDecodeError(err))
}

func TestDecodeTradeBuy(t *testing.T) {
	log := chain.Log{
		Topics:      []string{BuyTopic, topicAddress(tokenAddr), topicAddress(traderAddr)},
		Data:        "0x" + uintWord(ether(2)) + uintWord(ether(1000)),
		BlockNumber: 430,
		TxHash:      "0xbuy",
	}

	event, err := DecodeTrade(log)
	require.NoError(t, err)
	assert.Equal(t, "BUY", event.Direction.String())
	assert.Equal(t, traderAddr, event.Trader)
	assert.True(t, event.NativeAmount.Equal(decimal.RequireFromString("2")))
	assert.True(t, event.TokenAmount.Equal(decimal.RequireFromString("1000")))
}

func TestDecodeTradeSellSwapsAmountOrder(t *testing.T) {
	log := chain.Log{
		Topics: []string{SellTopic, topicAddress(tokenAddr), topicAddress(traderAddr)},
		Data:   "0x" + uintWord(ether(500)) + uintWord(ether(1)),
		TxHash: "0xsell",
	}

	event, err := DecodeTrade(log)
	require.NoError(t, err)
	assert.Equal(t, "SELL", event.Direction.String())
	assert.True(t, event.TokenAmount.Equal(decimal.RequireFromString("500")))
	assert.True(t, event.NativeAmount.Equal(decimal.RequireFromString("1")))
}

func TestDecodeTradeRejectsForeignTopic(t *testing.T) {
	_, err := DecodeTrade(chain.Log{
		Topics: []string{CreationTopic, topicAddress(tokenAddr), topicAddress(traderAddr)},
		Data:   "0x" + uintWord(ether(1)) + uintWord(ether(1)),
	})
	require.Error(t, err)
	assert.True(t, chain.IsDecodeError(err))
}

// callChain serves a single canned eth_call result.
type callChain struct {
	result string
	err    error
}

func (c *callChain) BlockNumber(context.Context) (uint64, error) { return 0, nil }

func (c *callChain) GetLogs(context.Context, chain.Filter) ([]chain.Log, error) {
	return nil, nil
}

func (c *callChain) BlockTime(context.Context, uint64) (int64, error) { return 0, nil }

func (c *callChain) Call(context.Context, string, string) (string, error) {
	return c.result, c.err
}

func TestReadTokenState(t *testing.T) {
	result := "0x" +
		chain.EncodeAddressArg(creatorAddr) +
		chain.EncodeAddressArg(curveAddr) +
		uintWord(ether(10)) +
		uintWord(ether(900_000_000)) +
		uintWord(ether(1_000_000_000)) +
		uintWord(big.NewInt(1e9)) +
		uintWord(ether(40)) +
		uintWord(big.NewInt(12_000)) + // bps above 100% clamp to 100
		uintWord(big.NewInt(1))

	f := NewFactory("0xfactory", &callChain{result: result})
	state, err := f.ReadTokenState(context.Background(), tokenAddr)
	require.NoError(t, err)

	assert.True(t, state.Known())
	assert.Equal(t, creatorAddr, state.Creator)
	assert.Equal(t, curveAddr, state.CurveAddress)
	assert.True(t, state.NativeReserve.Equal(decimal.RequireFromString("10")))
	assert.True(t, state.MarketCapNative.Equal(decimal.RequireFromString("40")))
	assert.InDelta(t, 100.0, state.BondingProgress, 0.001)
	assert.True(t, state.Graduated)
}

func TestReadTokenStateUnknownToken(t *testing.T) {
	zero := "0x0000000000000000000000000000000000000000"
	result := "0x" +
		chain.EncodeAddressArg(zero) +
		chain.EncodeAddressArg(zero) +
		strings.Repeat(uintWord(big.NewInt(0)), 7)

	f := NewFactory("0xfactory", &callChain{result: result})
	state, err := f.ReadTokenState(context.Background(), tokenAddr)
	require.NoError(t, err)
	assert.False(t, state.Known())
}

func TestReadTokenStateWrongWordCount(t *testing.T) {
	f := NewFactory("0xfactory", &callChain{result: "0x" + uintWord(big.NewInt(1))})
	_, err := f.ReadTokenState(context.Background(), tokenAddr)
	require.Error(t, err)
	assert.True(t, chain.IsDecodeError(err))
}

func TestProbeMetadataAbsentCallsLeaveNils(t *testing.T) {
	meta := ProbeMetadata(context.Background(), &callChain{err: fmt.Errorf("execution reverted")}, tokenAddr)
	assert.Nil(t, meta.Name)
	assert.Nil(t, meta.Symbol)
}

func TestProbeMetadataDecodesString(t *testing.T) {
	result := "0x" +
		uintWord(big.NewInt(32)) +
		uintWord(big.NewInt(4)) +
		"4d4f4f4e" + strings.Repeat("0", 56)

	meta := ProbeMetadata(context.Background(), &callChain{result: result}, tokenAddr)
	require.NotNil(t, meta.Name)
	assert.Equal(t, "MOON", *meta.Name)
	require.NotNil(t, meta.Symbol)
	assert.Equal(t, "MOON", *meta.Symbol)
}
