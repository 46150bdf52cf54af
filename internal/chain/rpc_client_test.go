package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rpcServer(t *testing.T, handler func(method string, params []json.RawMessage) (interface{}, *rpcError)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     uint64            `json:"id"`
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		result, rpcErr := handler(req.Method, req.Params)
		resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
		if rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func fastClient(endpoint string) *HTTPClient {
	return NewHTTPClient(endpoint, WithMaxRetries(2), WithRetryDelay(time.Millisecond))
}

func TestBlockNumber(t *testing.T) {
	srv := rpcServer(t, func(method string, _ []json.RawMessage) (interface{}, *rpcError) {
		assert.Equal(t, "eth_blockNumber", method)
		return "0x112a880", nil
	})

	head, err := fastClient(srv.URL).BlockNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(18_000_000), head)
}

func TestGetLogsDecodesWireFormat(t *testing.T) {
	srv := rpcServer(t, func(method string, params []json.RawMessage) (interface{}, *rpcError) {
		assert.Equal(t, "eth_getLogs", method)

		var filter map[string]interface{}
		require.NoError(t, json.Unmarshal(params[0], &filter))
		assert.Equal(t, "0x64", filter["fromBlock"])
		assert.Equal(t, "0xc8", filter["toBlock"])

		return []map[string]interface{}{{
			"address":         "0xABCDabcd11111111111111111111111111111111",
			"topics":          []string{"0xtopic0"},
			"data":            "0x",
			"blockNumber":     "0x65",
			"transactionHash": "0xtx1",
			"logIndex":        "0x2",
			"removed":         false,
		}}, nil
	})

	logs, err := fastClient(srv.URL).GetLogs(context.Background(), Filter{
		FromBlock: 100,
		ToBlock:   200,
	})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "0xabcdabcd11111111111111111111111111111111", logs[0].Address)
	assert.Equal(t, uint64(101), logs[0].BlockNumber)
	assert.Equal(t, uint32(2), logs[0].LogIndex)
}

func TestGetLogsSkipsMalformedEntries(t *testing.T) {
	srv := rpcServer(t, func(string, []json.RawMessage) (interface{}, *rpcError) {
		return []map[string]interface{}{
			{"address": "0xa1", "blockNumber": "0x65", "transactionHash": "0xtx1"},
			{"address": "0xa2", "blockNumber": "not-hex", "transactionHash": "0xtx2"},
			{"address": "0xa3", "blockNumber": "0x67", "transactionHash": "0xtx3"},
		}, nil
	})

	logs, err := fastClient(srv.URL).GetLogs(context.Background(), Filter{
		FromBlock: 100,
		ToBlock:   200,
	})
	require.NoError(t, err)
	require.Len(t, logs, 2, "decodable entries must survive a bad neighbor")
	assert.Equal(t, "0xtx1", logs[0].TxHash)
	assert.Equal(t, "0xtx3", logs[1].TxHash)
}

func TestCallRetriesRateLimit(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		var req struct {
			ID uint64 `json:"id"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0", "id": req.ID, "result": "0xcafe",
		})
	}))
	t.Cleanup(srv.Close)

	result, err := fastClient(srv.URL).Call(context.Background(), "0xto", "0xdata")
	require.NoError(t, err)
	assert.Equal(t, "0xcafe", result)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestCallExhaustedRetriesAreRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	_, err := fastClient(srv.URL).Call(context.Background(), "0xto", "0xdata")
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
}

func TestCallProviderThrottleCodeIsRetried(t *testing.T) {
	var attempts atomic.Int32
	srv := rpcServer(t, func(string, []json.RawMessage) (interface{}, *rpcError) {
		if attempts.Add(1) < 2 {
			return nil, &rpcError{Code: -32005, Message: "limit exceeded"}
		}
		return "0x01", nil
	})

	result, err := fastClient(srv.URL).Call(context.Background(), "0xto", "0xdata")
	require.NoError(t, err)
	assert.Equal(t, "0x01", result)
}

func TestCallRPCErrorIsTerminal(t *testing.T) {
	var attempts atomic.Int32
	srv := rpcServer(t, func(string, []json.RawMessage) (interface{}, *rpcError) {
		attempts.Add(1)
		return nil, &rpcError{Code: 3, Message: "execution reverted"}
	})

	_, err := fastClient(srv.URL).Call(context.Background(), "0xto", "0xdata")
	require.Error(t, err)
	assert.False(t, IsRetryable(err))
	assert.Equal(t, int32(1), attempts.Load(), "contract reverts must not be retried")
}

func TestCallMalformedResponseIsDecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>not json</html>")
	}))
	t.Cleanup(srv.Close)

	_, err := fastClient(srv.URL).Call(context.Background(), "0xto", "0xdata")
	require.Error(t, err)
	assert.True(t, IsDecodeError(err))
}

func TestBlockTime(t *testing.T) {
	srv := rpcServer(t, func(method string, params []json.RawMessage) (interface{}, *rpcError) {
		assert.Equal(t, "eth_getBlockByNumber", method)
		var number string
		require.NoError(t, json.Unmarshal(params[0], &number))
		assert.Equal(t, "0x64", number)
		return map[string]string{"timestamp": "0x6553f100"}, nil
	})

	ts, err := fastClient(srv.URL).BlockTime(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, int64(0x6553f100), ts)
}

func TestBlockTimeMissingBlock(t *testing.T) {
	srv := rpcServer(t, func(string, []json.RawMessage) (interface{}, *rpcError) {
		return nil, nil
	})

	_, err := fastClient(srv.URL).BlockTime(context.Background(), 100)
	require.Error(t, err)
	assert.True(t, IsDecodeError(err))
}
