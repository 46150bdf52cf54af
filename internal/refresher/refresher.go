// Package refresher reads a token's authoritative on-chain state from the
// factory contract and reconciles the database row with it. It serves both
// first-time imports and periodic market-data refreshes through one path.
package refresher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"curvesync/internal/chain"
	"curvesync/internal/curve"
	"curvesync/internal/domain"
	"curvesync/internal/ethaddr"
	"curvesync/internal/storage"
)

// ErrTokenNotFound indicates the factory does not recognize the address.
// Terminal: the address is simply not a launched token, retrying is pointless.
var ErrTokenNotFound = errors.New("token not registered with factory")

// PriceSource converts the native asset to USD.
type PriceSource interface {
	GetNativeToUSD(ctx context.Context) decimal.Decimal
}

// Refresher reconciles token rows against factory state.
type Refresher struct {
	factory *curve.Factory
	client  chain.Client
	oracle  PriceSource
	tokens  storage.TokenStore
	users   storage.UserStore
	trades  storage.TradeStore
	logger  *zap.Logger
}

// Options contains dependencies for creating a Refresher.
type Options struct {
	Factory *curve.Factory
	Client  chain.Client
	Oracle  PriceSource
	Tokens  storage.TokenStore
	Users   storage.UserStore
	Trades  storage.TradeStore
	Logger  *zap.Logger
}

// New creates a new Refresher.
func New(opts Options) *Refresher {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Refresher{
		factory: opts.Factory,
		client:  opts.Client,
		oracle:  opts.Oracle,
		tokens:  opts.Tokens,
		users:   opts.Users,
		trades:  opts.Trades,
		logger:  logger,
	}
}

// Refresh pulls the factory's view of a token and upserts the row. Unknown
// address in the store → insert; known → market fields update only. Both
// outcomes return the resulting row.
//
// Concurrent refreshes of the same new token race on the insert; the loser
// observes storage.ErrDuplicateKey and retries as an update, so the call is
// idempotent from the caller's point of view.
func (r *Refresher) Refresh(ctx context.Context, address string) (*domain.Token, error) {
	addr, err := ethaddr.Normalize(address)
	if err != nil {
		return nil, err
	}

	state, err := r.factory.ReadTokenState(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("read token state: %w", err)
	}
	if !state.Known() {
		return nil, fmt.Errorf("%w: %s", ErrTokenNotFound, addr)
	}

	update, err := r.marketUpdate(ctx, addr, state)
	if err != nil {
		return nil, err
	}

	_, err = r.tokens.GetByAddress(ctx, addr)
	switch {
	case err == nil:
		if err := r.tokens.UpdateMarketData(ctx, addr, *update); err != nil {
			return nil, fmt.Errorf("update market data: %w", err)
		}

	case errors.Is(err, storage.ErrNotFound):
		if err := r.insertToken(ctx, addr, state, update); err != nil {
			return nil, err
		}

	default:
		return nil, fmt.Errorf("get token: %w", err)
	}

	token, err := r.tokens.GetByAddress(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("reload token: %w", err)
	}

	r.logger.Info("token refreshed",
		zap.String("token", addr),
		zap.String("status", token.Status.String()),
		zap.String("market_cap_usd", token.MarketCapUSD.String()))

	return token, nil
}

// marketUpdate converts the factory's native-denominated figures to USD.
func (r *Refresher) marketUpdate(ctx context.Context, addr string, state *curve.TokenState) (*domain.MarketUpdate, error) {
	price := r.oracle.GetNativeToUSD(ctx)

	since := time.Now().Add(-24 * time.Hour).Unix()
	volumeNative, err := r.trades.VolumeNativeSince(ctx, addr, since)
	if err != nil {
		return nil, fmt.Errorf("aggregate 24h volume: %w", err)
	}

	status := domain.StatusActive
	if state.Graduated {
		status = domain.StatusGraduated
	}

	return &domain.MarketUpdate{
		Status:          status,
		MarketCapUSD:    state.MarketCapNative.Mul(price),
		LiquidityUSD:    state.NativeReserve.Mul(price),
		BondingProgress: state.BondingProgress,
		Volume24hUSD:    volumeNative.Mul(price),
	}, nil
}

// insertToken creates the row for a token seen for the first time via direct
// import. Identity metadata comes from best-effort contract probes since no
// creation event is at hand.
func (r *Refresher) insertToken(ctx context.Context, addr string, state *curve.TokenState, update *domain.MarketUpdate) error {
	creator, err := r.users.FindOrCreate(ctx, ethaddr.NormalizeWallet(state.Creator))
	if err != nil {
		return fmt.Errorf("find or create creator: %w", err)
	}

	meta := curve.ProbeMetadata(ctx, r.client, addr)
	name := ""
	if meta.Name != nil {
		name = *meta.Name
	}
	symbol := ""
	if meta.Symbol != nil {
		symbol = *meta.Symbol
	}

	token := &domain.Token{
		Address:         addr,
		Name:            name,
		Symbol:          symbol,
		TotalSupply:     state.TotalSupply,
		CurveAddress:    state.CurveAddress,
		Status:          update.Status,
		MarketCapUSD:    update.MarketCapUSD,
		LiquidityUSD:    update.LiquidityUSD,
		BondingProgress: update.BondingProgress,
		Volume24hUSD:    update.Volume24hUSD,
		CreatorAddress:  creator.Address,
	}

	err = r.tokens.Insert(ctx, token)
	if errors.Is(err, storage.ErrDuplicateKey) {
		// Lost the race to a concurrent writer; their identity row stands,
		// our market figures are the fresher ones.
		r.logger.Debug("token insert raced, updating instead", zap.String("token", addr))
		return r.tokens.UpdateMarketData(ctx, addr, *update)
	}
	if err != nil {
		return fmt.Errorf("insert token: %w", err)
	}
	return nil
}
