// Package reconciler backfills a token's trade history from bonding-curve
// logs into the trades table. Inserts are keyed by (tx_hash, token_address),
// so replaying any range converges on the same rows.
package reconciler

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"curvesync/internal/chain"
	"curvesync/internal/curve"
	"curvesync/internal/domain"
	"curvesync/internal/ethaddr"
	"curvesync/internal/scanner"
	"curvesync/internal/storage"
)

// Reconciler syncs trade logs into storage.
type Reconciler struct {
	client      chain.Client
	scanner     *scanner.Scanner
	tokens      storage.TokenStore
	trades      storage.TradeStore
	users       storage.UserStore
	checkpoints storage.CheckpointStore
	logger      *zap.Logger
}

// Options contains dependencies for creating a Reconciler.
type Options struct {
	Client      chain.Client
	Scanner     *scanner.Scanner
	Tokens      storage.TokenStore
	Trades      storage.TradeStore
	Users       storage.UserStore
	Checkpoints storage.CheckpointStore
	Logger      *zap.Logger
}

// New creates a new Reconciler.
func New(opts Options) *Reconciler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Reconciler{
		client:      opts.Client,
		scanner:     opts.Scanner,
		tokens:      opts.Tokens,
		trades:      opts.Trades,
		users:       opts.Users,
		checkpoints: opts.Checkpoints,
		logger:      logger,
	}
}

// checkpointScope returns the sync-checkpoint scope for a token's trades.
func checkpointScope(token string) string {
	return "trades:" + token
}

// SyncTrades scans the token's bonding curve for buy and sell logs from
// fromBlock to the chain head and inserts any trades not yet stored. A
// fromBlock of zero resumes from the token's trade checkpoint. The token must
// already exist in storage; its curve address drives the log filter.
func (r *Reconciler) SyncTrades(ctx context.Context, token string, fromBlock uint64) (*scanner.Result, error) {
	addr, err := ethaddr.Normalize(token)
	if err != nil {
		return nil, err
	}

	row, err := r.tokens.GetByAddress(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("load token %s: %w", addr, err)
	}

	scope := checkpointScope(addr)
	from := fromBlock
	if from == 0 {
		last, err := r.checkpoints.Get(ctx, scope)
		switch {
		case err == nil:
			from = last + 1
		case errors.Is(err, storage.ErrNotFound):
			from = 0
		default:
			return nil, fmt.Errorf("read checkpoint %s: %w", scope, err)
		}
	}

	head, err := r.client.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("read chain head: %w", err)
	}

	result, err := r.scanner.Scan(ctx, scanner.Request{
		From: from,
		To:   head,
		Filter: chain.Filter{
			Addresses: []string{row.CurveAddress},
			Topics:    [][]string{{curve.BuyTopic, curve.SellTopic}},
		},
		Handle: func(ctx context.Context, entry chain.Log) error {
			return r.handleTradeLog(ctx, addr, entry)
		},
		AfterChunk: func(ctx context.Context, lastBlock uint64) {
			if err := r.checkpoints.Set(ctx, scope, lastBlock); err != nil {
				r.logger.Warn("checkpoint save failed",
					zap.String("scope", scope),
					zap.Uint64("block", lastBlock),
					zap.Error(err))
			}
		},
	})
	if err != nil {
		return result, fmt.Errorf("scan trades for %s: %w", addr, err)
	}

	r.logger.Info("trade sync complete",
		zap.String("token", addr),
		zap.Uint64("from", result.FromBlock),
		zap.Uint64("to", result.ToBlock),
		zap.Int("handled", result.LogsHandled),
		zap.Int("skipped", result.LogsSkipped))

	return result, nil
}

// handleTradeLog decodes one curve log and inserts the trade if absent.
// A trade already present, by lookup or by losing the insert race, is success.
func (r *Reconciler) handleTradeLog(ctx context.Context, token string, entry chain.Log) error {
	event, err := curve.DecodeTrade(entry)
	if err != nil {
		return err
	}

	_, err = r.trades.FindByTxAndToken(ctx, event.TxHash, token)
	if err == nil {
		return nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("lookup trade %s: %w", event.TxHash, err)
	}

	if event.TokenAmount.IsZero() {
		return &chain.DecodeError{Msg: fmt.Sprintf("trade %s has zero token amount", event.TxHash)}
	}
	price := event.NativeAmount.Div(event.TokenAmount)

	blockTime, err := r.client.BlockTime(ctx, event.BlockNumber)
	if err != nil {
		return fmt.Errorf("block time for %d: %w", event.BlockNumber, err)
	}

	if _, err := r.users.FindOrCreate(ctx, event.Trader); err != nil {
		return fmt.Errorf("find or create trader: %w", err)
	}

	trade := &domain.Trade{
		TokenAddress:  token,
		TxHash:        event.TxHash,
		Direction:     event.Direction,
		TraderAddress: event.Trader,
		TokenAmount:   event.TokenAmount,
		NativeAmount:  event.NativeAmount,
		Price:         price,
		BlockTime:     blockTime,
	}

	err = r.trades.Insert(ctx, trade)
	if errors.Is(err, storage.ErrDuplicateKey) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("insert trade %s: %w", event.TxHash, err)
	}
	return nil
}
