// Package subscriber keeps the token catalog current: a standing WebSocket
// subscription delivers TokenCreated logs as they happen, and a one-shot
// catch-up backfill covers everything since the last committed checkpoint.
// Subscription opens before the backfill starts, so logs landing during the
// catch-up buffer on the channel instead of falling into a gap.
package subscriber

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"curvesync/internal/chain"
	"curvesync/internal/curve"
	"curvesync/internal/domain"
	"curvesync/internal/scanner"
	"curvesync/internal/storage"
)

// CreationCheckpointScope is the sync-checkpoint scope for creation events.
const CreationCheckpointScope = "creations"

// State is the lifecycle state of the subscriber.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateListening
)

// String returns the string representation of State.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "STOPPED"
	case StateStarting:
		return "STARTING"
	case StateListening:
		return "LISTENING"
	default:
		return "UNKNOWN"
	}
}

// PriceSource converts the native asset to USD.
type PriceSource interface {
	GetNativeToUSD(ctx context.Context) decimal.Decimal
}

// Subscriber consumes TokenCreated events live and via backfill.
type Subscriber struct {
	ws          chain.Subscriber
	client      chain.Client
	factoryAddr string
	scanner     *scanner.Scanner
	oracle      PriceSource
	tokens      storage.TokenStore
	users       storage.UserStore
	checkpoints storage.CheckpointStore
	logger      *zap.Logger

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Options contains dependencies for creating a Subscriber.
type Options struct {
	WS          chain.Subscriber
	Client      chain.Client
	FactoryAddr string
	Scanner     *scanner.Scanner
	Oracle      PriceSource
	Tokens      storage.TokenStore
	Users       storage.UserStore
	Checkpoints storage.CheckpointStore
	Logger      *zap.Logger
}

// New creates a new Subscriber.
func New(opts Options) *Subscriber {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Subscriber{
		ws:          opts.WS,
		client:      opts.Client,
		factoryAddr: opts.FactoryAddr,
		scanner:     opts.Scanner,
		oracle:      opts.Oracle,
		tokens:      opts.Tokens,
		users:       opts.Users,
		checkpoints: opts.Checkpoints,
		logger:      logger,
	}
}

// State returns the current lifecycle state.
func (s *Subscriber) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start opens the live subscription and kicks off the catch-up backfill.
// Calling Start while already running is a warned no-op.
func (s *Subscriber) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateStopped {
		s.mu.Unlock()
		s.logger.Warn("subscriber already running, ignoring start",
			zap.String("state", s.state.String()))
		return nil
	}
	s.state = StateStarting
	s.mu.Unlock()

	filter := chain.Filter{
		Addresses: []string{s.factoryAddr},
		Topics:    [][]string{{curve.CreationTopic}},
	}

	events, err := s.ws.SubscribeLogs(ctx, filter)
	if err != nil {
		s.mu.Lock()
		s.state = StateStopped
		s.mu.Unlock()
		return fmt.Errorf("subscribe to creation logs: %w", err)
	}

	consumeCtx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.cancel = cancel
	s.state = StateListening
	s.mu.Unlock()

	s.wg.Add(1)
	go s.consume(consumeCtx, events)
	// The backfill keeps the caller's context: Stop tears down only the
	// live consumer, an in-flight catch-up chunk runs to completion.
	go s.catchUp(ctx)

	s.logger.Info("subscriber started", zap.String("factory", s.factoryAddr))
	return nil
}

// Stop cancels the live consumer and waits for it. An in-flight catch-up
// backfill is not interrupted and finishes on the Start context. Idempotent.
func (s *Subscriber) Stop() {
	s.mu.Lock()
	if s.state == StateStopped {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()

	s.mu.Lock()
	s.state = StateStopped
	s.mu.Unlock()

	s.logger.Info("subscriber stopped")
}

// consume drains the live subscription. Each event is handled inside its own
// failure boundary; a malformed or failing event never tears the loop down.
func (s *Subscriber) consume(ctx context.Context, events <-chan chain.Log) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case entry, ok := <-events:
			if !ok {
				s.logger.Warn("subscription channel closed")
				return
			}
			if entry.Removed {
				continue
			}
			if err := s.handleCreationLog(ctx, entry); err != nil {
				s.logger.Warn("creation event failed",
					zap.String("tx", entry.TxHash),
					zap.Uint64("block", entry.BlockNumber),
					zap.Error(err))
			}
		}
	}
}

// catchUp runs the one-shot backfill from the creation checkpoint to head.
func (s *Subscriber) catchUp(ctx context.Context) {
	from := uint64(0)
	last, err := s.checkpoints.Get(ctx, CreationCheckpointScope)
	switch {
	case err == nil:
		from = last + 1
	case errors.Is(err, storage.ErrNotFound):
	default:
		s.logger.Error("read creation checkpoint failed", zap.Error(err))
		return
	}

	head, err := s.client.BlockNumber(ctx)
	if err != nil {
		s.logger.Error("read chain head failed", zap.Error(err))
		return
	}

	if _, err := s.ScanCreations(ctx, from, head); err != nil {
		s.logger.Error("creation catch-up failed", zap.Error(err))
	}
}

// ScanCreations scans [from, to] for TokenCreated logs and feeds them through
// the same handler the live path uses. The creation checkpoint advances with
// each committed chunk; it never moves backwards, so overlapping explicit
// ranges are safe.
func (s *Subscriber) ScanCreations(ctx context.Context, from, to uint64) (*scanner.Result, error) {
	return s.scanner.Scan(ctx, scanner.Request{
		From: from,
		To:   to,
		Filter: chain.Filter{
			Addresses: []string{s.factoryAddr},
			Topics:    [][]string{{curve.CreationTopic}},
		},
		Handle: s.handleCreationLog,
		AfterChunk: func(ctx context.Context, lastBlock uint64) {
			if err := s.checkpoints.Set(ctx, CreationCheckpointScope, lastBlock); err != nil {
				s.logger.Warn("checkpoint save failed",
					zap.Uint64("block", lastBlock),
					zap.Error(err))
			}
		},
	})
}

// handleCreationLog decodes a TokenCreated log and registers the token if it
// is not stored yet. Shared by the live consumer and the backfill scan, so it
// must stay idempotent.
func (s *Subscriber) handleCreationLog(ctx context.Context, entry chain.Log) error {
	event, err := curve.DecodeCreation(entry)
	if err != nil {
		return err
	}

	_, err = s.tokens.GetByAddress(ctx, event.TokenAddress)
	if err == nil {
		return nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("lookup token %s: %w", event.TokenAddress, err)
	}

	blockTime, err := s.client.BlockTime(ctx, event.BlockNumber)
	if err != nil {
		return fmt.Errorf("block time for %d: %w", event.BlockNumber, err)
	}
	event.BlockTime = blockTime

	return s.registerToken(ctx, event)
}

// registerToken inserts the token row for a decoded creation event.
func (s *Subscriber) registerToken(ctx context.Context, event *domain.CreationEvent) error {
	creator, err := s.users.FindOrCreate(ctx, event.Creator)
	if err != nil {
		return fmt.Errorf("find or create creator: %w", err)
	}

	// Contract metadata wins over the event payload when both exist.
	name := event.Name
	symbol := event.Symbol
	meta := curve.ProbeMetadata(ctx, s.client, event.TokenAddress)
	if meta.Name != nil {
		name = *meta.Name
	}
	if meta.Symbol != nil {
		symbol = *meta.Symbol
	}

	price := s.oracle.GetNativeToUSD(ctx)

	token := &domain.Token{
		Address:            event.TokenAddress,
		Name:               name,
		Symbol:             symbol,
		TotalSupply:        event.TotalSupply,
		CurveAddress:       event.CurveAddress,
		Status:             domain.StatusActive,
		MarketCapUSD:       event.InitialBuy.Mul(price),
		CreationTx:         event.TxHash,
		CreatedAtBlockTime: event.BlockTime,
		CreatorAddress:     creator.Address,
	}

	err = s.tokens.Insert(ctx, token)
	if errors.Is(err, storage.ErrDuplicateKey) {
		// Concurrent writer registered it first.
		return nil
	}
	if err != nil {
		return fmt.Errorf("insert token %s: %w", event.TokenAddress, err)
	}

	s.logger.Info("token registered",
		zap.String("token", event.TokenAddress),
		zap.String("symbol", symbol),
		zap.String("creator", creator.Address),
		zap.Uint64("block", event.BlockNumber))
	return nil
}
