// Package engine is the operational facade over the sync components. CLI and
// service collaborators drive everything through it instead of wiring the
// refresher, reconciler, and subscriber themselves.
package engine

import (
	"context"

	"go.uber.org/zap"

	"curvesync/internal/domain"
	"curvesync/internal/reconciler"
	"curvesync/internal/refresher"
	"curvesync/internal/scanner"
	"curvesync/internal/subscriber"
)

// Engine exposes the operational entry points of the sync service.
type Engine struct {
	refresher  *refresher.Refresher
	reconciler *reconciler.Reconciler
	subscriber *subscriber.Subscriber
	logger     *zap.Logger
}

// Options contains dependencies for creating an Engine.
type Options struct {
	Refresher  *refresher.Refresher
	Reconciler *reconciler.Reconciler
	Subscriber *subscriber.Subscriber
	Logger     *zap.Logger
}

// New creates a new Engine.
func New(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Engine{
		refresher:  opts.Refresher,
		reconciler: opts.Reconciler,
		subscriber: opts.Subscriber,
		logger:     logger,
	}
}

// ImportToken registers a token by address, pulling its state from the
// factory. Importing an already-known token refreshes it instead; the call is
// safe to repeat.
func (e *Engine) ImportToken(ctx context.Context, address string) (*domain.Token, error) {
	return e.refresher.Refresh(ctx, address)
}

// UpdateTokenData refreshes a token's market data from the factory.
func (e *Engine) UpdateTokenData(ctx context.Context, address string) (*domain.Token, error) {
	return e.refresher.Refresh(ctx, address)
}

// SyncTokenTrades backfills a token's trade history from fromBlock to head.
// Zero fromBlock resumes from the token's trade checkpoint.
func (e *Engine) SyncTokenTrades(ctx context.Context, address string, fromBlock uint64) (*scanner.Result, error) {
	return e.reconciler.SyncTrades(ctx, address, fromBlock)
}

// SyncBlockRange scans an explicit block range for token creations.
func (e *Engine) SyncBlockRange(ctx context.Context, from, to uint64) (*scanner.Result, error) {
	return e.subscriber.ScanCreations(ctx, from, to)
}

// Start opens the live creation subscription with catch-up backfill.
func (e *Engine) Start(ctx context.Context) error {
	return e.subscriber.Start(ctx)
}

// Stop shuts the live subscription down.
func (e *Engine) Stop() {
	e.subscriber.Stop()
}
