package scanner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"curvesync/internal/chain"
)

// fakeClient implements chain.Client for scanner tests.
type fakeClient struct {
	mu      sync.Mutex
	head    uint64
	headErr error
	chunks  []chain.Filter
	logsFn  func(filter chain.Filter) ([]chain.Log, error)
}

func (c *fakeClient) BlockNumber(_ context.Context) (uint64, error) {
	return c.head, c.headErr
}

func (c *fakeClient) GetLogs(_ context.Context, filter chain.Filter) ([]chain.Log, error) {
	c.mu.Lock()
	c.chunks = append(c.chunks, filter)
	c.mu.Unlock()
	if c.logsFn != nil {
		return c.logsFn(filter)
	}
	return nil, nil
}

func (c *fakeClient) Call(_ context.Context, _ string, _ string) (string, error) {
	return "0x", nil
}

func (c *fakeClient) BlockTime(_ context.Context, _ uint64) (int64, error) {
	return 0, nil
}

func TestScanChunkPartitioning(t *testing.T) {
	client := &fakeClient{head: 10_000_000}
	s := New(Options{Client: client, ChunkSize: 500, Pacing: 1})

	result, err := s.Scan(context.Background(), Request{
		From:   100,
		To:     100_000,
		Handle: func(context.Context, chain.Log) error { return nil },
	})
	require.NoError(t, err)

	// 99,901 blocks inclusive at 500 per chunk.
	assert.Equal(t, 200, result.ChunksTotal)
	assert.Equal(t, 0, result.ChunksFailed)
	require.Len(t, client.chunks, 200)

	// First chunk covers [100, 599], last covers [99600, 100000].
	assert.Equal(t, uint64(100), client.chunks[0].FromBlock)
	assert.Equal(t, uint64(599), client.chunks[0].ToBlock)
	assert.Equal(t, uint64(99_600), client.chunks[199].FromBlock)
	assert.Equal(t, uint64(100_000), client.chunks[199].ToBlock)

	// No gaps or overlaps between adjacent chunks.
	for i := 1; i < len(client.chunks); i++ {
		assert.Equal(t, client.chunks[i-1].ToBlock+1, client.chunks[i].FromBlock)
	}
}

func TestScanEmptyRangeIsNoOp(t *testing.T) {
	client := &fakeClient{head: 1000}
	s := New(Options{Client: client, Pacing: 1})

	result, err := s.Scan(context.Background(), Request{
		From:   500,
		To:     400,
		Handle: func(context.Context, chain.Log) error { return nil },
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result.ChunksTotal)
	assert.Empty(t, client.chunks)
}

func TestScanClampsToHead(t *testing.T) {
	client := &fakeClient{head: 750}
	s := New(Options{Client: client, ChunkSize: 500, Pacing: 1})

	result, err := s.Scan(context.Background(), Request{
		From:   100,
		To:     100_000,
		Handle: func(context.Context, chain.Log) error { return nil },
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(750), result.ToBlock)
	require.Len(t, client.chunks, 2)
	assert.Equal(t, uint64(750), client.chunks[1].ToBlock)
}

func TestScanClampMakesRangeEmpty(t *testing.T) {
	client := &fakeClient{head: 50}
	s := New(Options{Client: client, Pacing: 1})

	result, err := s.Scan(context.Background(), Request{
		From:   100,
		To:     200,
		Handle: func(context.Context, chain.Log) error { return nil },
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result.ChunksTotal)
}

func TestScanChunkFailureIsIsolated(t *testing.T) {
	client := &fakeClient{head: 10_000}
	client.logsFn = func(filter chain.Filter) ([]chain.Log, error) {
		if filter.FromBlock == 600 {
			return nil, errors.New("provider timeout")
		}
		return []chain.Log{{
			TxHash:      fmt.Sprintf("0xtx%d", filter.FromBlock),
			BlockNumber: filter.FromBlock,
		}}, nil
	}
	s := New(Options{Client: client, ChunkSize: 500, Pacing: 1})

	result, err := s.Scan(context.Background(), Request{
		From:   100,
		To:     1599,
		Handle: func(context.Context, chain.Log) error { return nil },
	})
	require.NoError(t, err)
	assert.Equal(t, 3, result.ChunksTotal)
	assert.Equal(t, 1, result.ChunksFailed)
	assert.Equal(t, 2, result.LogsHandled)
}

func TestScanHandlerErrorSkipsEntry(t *testing.T) {
	client := &fakeClient{head: 10_000}
	client.logsFn = func(filter chain.Filter) ([]chain.Log, error) {
		return []chain.Log{
			{TxHash: "0xgood", BlockNumber: filter.FromBlock},
			{TxHash: "0xbad", BlockNumber: filter.FromBlock},
			{TxHash: "0xgood2", BlockNumber: filter.FromBlock},
		}, nil
	}
	s := New(Options{Client: client, ChunkSize: 500, Pacing: 1})

	result, err := s.Scan(context.Background(), Request{
		From: 100,
		To:   300,
		Handle: func(_ context.Context, entry chain.Log) error {
			if entry.TxHash == "0xbad" {
				return &chain.DecodeError{Msg: "malformed data"}
			}
			return nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.LogsHandled)
	assert.Equal(t, 1, result.LogsSkipped)
}

func TestScanSkipsRemovedLogs(t *testing.T) {
	client := &fakeClient{head: 10_000}
	client.logsFn = func(filter chain.Filter) ([]chain.Log, error) {
		return []chain.Log{
			{TxHash: "0xkept", BlockNumber: filter.FromBlock},
			{TxHash: "0xreorged", BlockNumber: filter.FromBlock, Removed: true},
		}, nil
	}
	s := New(Options{Client: client, ChunkSize: 500, Pacing: 1})

	handled := 0
	result, err := s.Scan(context.Background(), Request{
		From: 100,
		To:   200,
		Handle: func(context.Context, chain.Log) error {
			handled++
			return nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, handled)
	assert.Equal(t, 1, result.LogsHandled)
}

func TestScanAfterChunkStopsAfterFailure(t *testing.T) {
	client := &fakeClient{head: 10_000}
	client.logsFn = func(filter chain.Filter) ([]chain.Log, error) {
		if filter.FromBlock == 1100 {
			return nil, errors.New("provider timeout")
		}
		return nil, nil
	}
	s := New(Options{Client: client, ChunkSize: 500, Pacing: 1})

	var checkpoints []uint64
	result, err := s.Scan(context.Background(), Request{
		From:   100,
		To:     2099,
		Handle: func(context.Context, chain.Log) error { return nil },
		AfterChunk: func(_ context.Context, lastBlock uint64) {
			checkpoints = append(checkpoints, lastBlock)
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 4, result.ChunksTotal)
	assert.Equal(t, 1, result.ChunksFailed)

	// Chunks [100,599] and [600,1099] checkpoint; [1100,1599] fails and the
	// final chunk must not advance past it.
	assert.Equal(t, []uint64{599, 1099}, checkpoints)
}

func TestScanHeadFetchFailure(t *testing.T) {
	client := &fakeClient{headErr: errors.New("node down")}
	s := New(Options{Client: client, Pacing: 1})

	_, err := s.Scan(context.Background(), Request{
		From:   1,
		To:     10,
		Handle: func(context.Context, chain.Log) error { return nil },
	})
	require.Error(t, err)
}

func TestScanContextCancellation(t *testing.T) {
	client := &fakeClient{head: 10_000}
	client.logsFn = func(filter chain.Filter) ([]chain.Log, error) {
		return []chain.Log{{TxHash: "0xtx", BlockNumber: filter.FromBlock}}, nil
	}
	s := New(Options{Client: client, ChunkSize: 100, Pacing: 1})

	ctx, cancel := context.WithCancel(context.Background())
	_, err := s.Scan(ctx, Request{
		From: 100,
		To:   5000,
		Handle: func(context.Context, chain.Log) error {
			cancel()
			return nil
		},
	})
	require.ErrorIs(t, err, context.Canceled)
}
