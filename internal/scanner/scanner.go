// Package scanner provides generic batched iteration over historical
// contract logs. It is shared by token-creation backfill and trade backfill:
// the caller supplies the filter and a handler that owns decoding and
// idempotency; the scanner owns chunking, pacing, and failure isolation.
package scanner

import (
	"context"
	"time"

	"go.uber.org/zap"

	"curvesync/internal/chain"
)

// Default configuration values.
const (
	DefaultPacing = 200 * time.Millisecond
)

// HandlerFunc processes one log entry. Handlers must be idempotent: the same
// log can be seen by an overlapping re-scan or by the live path.
type HandlerFunc func(ctx context.Context, log chain.Log) error

// Scanner iterates block ranges in provider-sized chunks.
type Scanner struct {
	client    chain.Client
	chunkSize uint64
	pacing    time.Duration
	logger    *zap.Logger
}

// Options contains configuration for creating a Scanner.
type Options struct {
	Client chain.Client
	// ChunkSize bounds each log query; it must not exceed the provider's
	// block-span limit. Defaults to chain.DefaultMaxBlockSpan.
	ChunkSize uint64
	// Pacing is the fixed delay between chunks, the sole throttling
	// mechanism against provider rate limits.
	Pacing time.Duration
	Logger *zap.Logger
}

// New creates a new Scanner.
func New(opts Options) *Scanner {
	chunkSize := opts.ChunkSize
	if chunkSize == 0 || chunkSize > chain.DefaultMaxBlockSpan {
		chunkSize = chain.DefaultMaxBlockSpan
	}

	pacing := opts.Pacing
	if pacing == 0 {
		pacing = DefaultPacing
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Scanner{
		client:    opts.Client,
		chunkSize: chunkSize,
		pacing:    pacing,
		logger:    logger,
	}
}

// Request describes one range scan.
type Request struct {
	From   uint64
	To     uint64
	Filter chain.Filter
	Handle HandlerFunc

	// AfterChunk, when set, runs after each successful chunk with the last
	// block of that chunk. It stops being invoked once any chunk has
	// failed, so a checkpoint never advances past an unprocessed range.
	AfterChunk func(ctx context.Context, lastBlock uint64)
}

// Result contains statistics from a range scan.
type Result struct {
	FromBlock    uint64
	ToBlock      uint64
	ChunksTotal  int
	ChunksFailed int
	LogsHandled  int
	LogsSkipped  int
	Duration     time.Duration
}

// Scan iterates [req.From, req.To] in chunks. The upper bound is clamped to
// the chain head, read once at scan start so the range stays stable. A chunk
// failure is logged and skipped; the scan continues.
func (s *Scanner) Scan(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	result := &Result{FromBlock: req.From}

	head, err := s.client.BlockNumber(ctx)
	if err != nil {
		return nil, err
	}

	to := req.To
	if to > head {
		to = head
	}
	result.ToBlock = to

	if req.From > to {
		result.Duration = time.Since(start)
		return result, nil
	}

	s.logger.Info("starting range scan",
		zap.Uint64("from", req.From),
		zap.Uint64("to", to),
		zap.Uint64("chunk_size", s.chunkSize))

	checkpointing := req.AfterChunk != nil

	for cursor := req.From; cursor <= to; cursor += s.chunkSize {
		if cursor > req.From {
			select {
			case <-ctx.Done():
				result.Duration = time.Since(start)
				return result, ctx.Err()
			case <-time.After(s.pacing):
			}
		}

		chunkEnd := cursor + s.chunkSize - 1
		if chunkEnd > to {
			chunkEnd = to
		}
		result.ChunksTotal++

		filter := req.Filter
		filter.FromBlock = cursor
		filter.ToBlock = chunkEnd

		logs, err := s.client.GetLogs(ctx, filter)
		if err != nil {
			result.ChunksFailed++
			checkpointing = false
			s.logger.Warn("chunk failed, skipping",
				zap.Uint64("from", cursor),
				zap.Uint64("to", chunkEnd),
				zap.Error(err))
			continue
		}

		for _, entry := range logs {
			if entry.Removed {
				continue
			}
			if err := req.Handle(ctx, entry); err != nil {
				result.LogsSkipped++
				s.logger.Warn("log entry skipped",
					zap.String("tx", entry.TxHash),
					zap.Uint64("block", entry.BlockNumber),
					zap.Error(err))
				continue
			}
			result.LogsHandled++
		}

		if checkpointing {
			req.AfterChunk(ctx, chunkEnd)
		}
	}

	result.Duration = time.Since(start)
	s.logger.Info("range scan complete",
		zap.Int("chunks", result.ChunksTotal),
		zap.Int("chunks_failed", result.ChunksFailed),
		zap.Int("logs_handled", result.LogsHandled),
		zap.Int("logs_skipped", result.LogsSkipped),
		zap.Duration("duration", result.Duration))

	return result, nil
}
