package memory

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"curvesync/internal/domain"
	"curvesync/internal/storage"
)

const (
	tokenAddr  = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	otherToken = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	userAddr   = "0xcccccccccccccccccccccccccccccccccccccccc"
)

func TestTokenStoreDuplicateInsert(t *testing.T) {
	s := NewTokenStore()
	ctx := context.Background()

	token := &domain.Token{Address: tokenAddr, Status: domain.StatusActive}
	require.NoError(t, s.Insert(ctx, token))
	assert.ErrorIs(t, s.Insert(ctx, token), storage.ErrDuplicateKey)
}

func TestTokenStoreNotFound(t *testing.T) {
	s := NewTokenStore()

	_, err := s.GetByAddress(context.Background(), tokenAddr)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	err = s.UpdateMarketData(context.Background(), tokenAddr, domain.MarketUpdate{})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTokenStoreUpdatePreservesIdentity(t *testing.T) {
	s := NewTokenStore()
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, &domain.Token{
		Address: tokenAddr,
		Name:    "Moon Token",
		Status:  domain.StatusActive,
	}))

	require.NoError(t, s.UpdateMarketData(ctx, tokenAddr, domain.MarketUpdate{
		Status:       domain.StatusGraduated,
		MarketCapUSD: decimal.RequireFromString("123.45"),
	}))

	token, err := s.GetByAddress(ctx, tokenAddr)
	require.NoError(t, err)
	assert.Equal(t, "Moon Token", token.Name)
	assert.Equal(t, domain.StatusGraduated, token.Status)
	assert.True(t, token.MarketCapUSD.Equal(decimal.RequireFromString("123.45")))
}

func TestTokenStoreReturnsCopies(t *testing.T) {
	s := NewTokenStore()
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, &domain.Token{Address: tokenAddr, Name: "Original"}))

	got, err := s.GetByAddress(ctx, tokenAddr)
	require.NoError(t, err)
	got.Name = "mutated"

	again, err := s.GetByAddress(ctx, tokenAddr)
	require.NoError(t, err)
	assert.Equal(t, "Original", again.Name)
}

func TestUserStoreFindOrCreate(t *testing.T) {
	s := NewUserStore()
	ctx := context.Background()

	u, err := s.FindOrCreate(ctx, userAddr)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultRole, u.Role)

	again, err := s.FindOrCreate(ctx, userAddr)
	require.NoError(t, err)
	assert.Equal(t, u.CreatedAt, again.CreatedAt)

	_, err = s.GetByAddress(ctx, "0x9999999999999999999999999999999999999999")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTradeStoreNaturalKey(t *testing.T) {
	s := NewTradeStore()
	ctx := context.Background()

	trade := &domain.Trade{
		TokenAddress: tokenAddr,
		TxHash:       "0xtx1",
		Direction:    domain.TradeBuy,
		TokenAmount:  decimal.RequireFromString("1000"),
		NativeAmount: decimal.RequireFromString("2"),
		BlockTime:    100,
	}
	require.NoError(t, s.Insert(ctx, trade))
	assert.ErrorIs(t, s.Insert(ctx, trade), storage.ErrDuplicateKey)

	// Same tx hash against a different token is a distinct trade.
	other := *trade
	other.TokenAddress = otherToken
	require.NoError(t, s.Insert(ctx, &other))

	found, err := s.FindByTxAndToken(ctx, "0xtx1", tokenAddr)
	require.NoError(t, err)
	assert.Equal(t, tokenAddr, found.TokenAddress)

	_, err = s.FindByTxAndToken(ctx, "0xmissing", tokenAddr)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTradeStoreGetByTokenOrdered(t *testing.T) {
	s := NewTradeStore()
	ctx := context.Background()

	for i, tx := range []string{"0xc", "0xa", "0xb"} {
		require.NoError(t, s.Insert(ctx, &domain.Trade{
			TokenAddress: tokenAddr,
			TxHash:       tx,
			BlockTime:    int64(300 - i*100),
		}))
	}

	rows, err := s.GetByToken(ctx, tokenAddr)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "0xb", rows[0].TxHash)
	assert.Equal(t, "0xa", rows[1].TxHash)
	assert.Equal(t, "0xc", rows[2].TxHash)
}

func TestTradeStoreVolumeSince(t *testing.T) {
	s := NewTradeStore()
	ctx := context.Background()

	insert := func(tx string, blockTime int64, native string) {
		require.NoError(t, s.Insert(ctx, &domain.Trade{
			TokenAddress: tokenAddr,
			TxHash:       tx,
			BlockTime:    blockTime,
			NativeAmount: decimal.RequireFromString(native),
		}))
	}
	insert("0xold", 100, "5")
	insert("0xin1", 200, "2.5")
	insert("0xin2", 300, "1.5")

	vol, err := s.VolumeNativeSince(ctx, tokenAddr, 200)
	require.NoError(t, err)
	assert.True(t, vol.Equal(decimal.RequireFromString("4")), "volume was %s", vol)

	vol, err = s.VolumeNativeSince(ctx, otherToken, 0)
	require.NoError(t, err)
	assert.True(t, vol.IsZero())
}

func TestCheckpointStoreMonotonic(t *testing.T) {
	s := NewCheckpointStore()
	ctx := context.Background()

	_, err := s.Get(ctx, "creations")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, s.Set(ctx, "creations", 500))
	require.NoError(t, s.Set(ctx, "creations", 300))

	last, err := s.Get(ctx, "creations")
	require.NoError(t, err)
	assert.Equal(t, uint64(500), last, "checkpoint must never move backwards")

	require.NoError(t, s.Set(ctx, "creations", 700))
	last, err = s.Get(ctx, "creations")
	require.NoError(t, err)
	assert.Equal(t, uint64(700), last)
}
