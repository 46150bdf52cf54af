package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Default configuration values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0
)

// HTTPClient implements Client using HTTP JSON-RPC 2.0.
type HTTPClient struct {
	endpoint    string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
	logger      *zap.Logger
	requestID   atomic.Uint64
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.retryDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *HTTPClient) {
		c.logger = logger
	}
}

// NewHTTPClient creates a new execution-layer JSON-RPC client.
func NewHTTPClient(endpoint string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		endpoint:    endpoint,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile-time interface check.
var _ Client = (*HTTPClient)(nil)

// rpcRequest represents a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

// rpcResponse represents a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// rpcError represents a JSON-RPC 2.0 error.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// call performs a JSON-RPC call with retries and exponential backoff.
// Transport failures and rate limits are retried; once retries are exhausted
// the last failure surfaces as a RetryableError. Malformed responses are
// terminal DecodeErrors.
func (c *HTTPClient) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	reqID := c.requestID.Add(1)
	reqBody := rpcRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  method,
		Params:  params,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		}

		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("server error %d", resp.StatusCode)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			return &DecodeError{Msg: fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, string(respBody))}
		}

		var rpcResp rpcResponse
		if err := json.Unmarshal(respBody, &rpcResp); err != nil {
			return &DecodeError{Msg: "unmarshal response", Err: err}
		}

		if rpcResp.Error != nil {
			// Provider-side throttling arrives as an RPC error on some nodes.
			if rpcResp.Error.Code == -32005 {
				lastErr = rpcResp.Error
				continue
			}
			return rpcResp.Error
		}

		if result != nil && rpcResp.Result != nil {
			if err := json.Unmarshal(rpcResp.Result, result); err != nil {
				return &DecodeError{Msg: "unmarshal result", Err: err}
			}
		}

		return nil
	}

	return &RetryableError{Err: fmt.Errorf("max retries exceeded: %w", lastErr)}
}

// BlockNumber returns the current chain head.
func (c *HTTPClient) BlockNumber(ctx context.Context) (uint64, error) {
	var result string
	if err := c.call(ctx, "eth_blockNumber", nil, &result); err != nil {
		return 0, err
	}

	n, err := parseHexUint(result)
	if err != nil {
		return 0, &DecodeError{Msg: "parse block number", Err: err}
	}
	return n, nil
}

// getLogsFilter is the wire shape of an eth_getLogs filter object.
type getLogsFilter struct {
	FromBlock string        `json:"fromBlock"`
	ToBlock   string        `json:"toBlock"`
	Address   []string      `json:"address,omitempty"`
	Topics    []interface{} `json:"topics,omitempty"`
}

// rawLog is the wire shape of a log entry.
type rawLog struct {
	Address     string   `json:"address"`
	Topics      []string `json:"topics"`
	Data        string   `json:"data"`
	BlockNumber string   `json:"blockNumber"`
	TxHash      string   `json:"transactionHash"`
	LogIndex    string   `json:"logIndex"`
	Removed     bool     `json:"removed"`
}

// GetLogs returns logs matching the filter.
func (c *HTTPClient) GetLogs(ctx context.Context, filter Filter) ([]Log, error) {
	wire := getLogsFilter{
		FromBlock: formatHexUint(filter.FromBlock),
		ToBlock:   formatHexUint(filter.ToBlock),
		Address:   filter.Addresses,
	}
	for _, position := range filter.Topics {
		switch len(position) {
		case 0:
			wire.Topics = append(wire.Topics, nil)
		case 1:
			wire.Topics = append(wire.Topics, position[0])
		default:
			wire.Topics = append(wire.Topics, position)
		}
	}

	var raw []rawLog
	if err := c.call(ctx, "eth_getLogs", []interface{}{wire}, &raw); err != nil {
		return nil, err
	}

	logs := make([]Log, 0, len(raw))
	for _, r := range raw {
		entry, err := decodeRawLog(r)
		if err != nil {
			// One undecodable entry must not sink the whole batch.
			c.logger.Warn("skipping malformed log entry",
				zap.String("tx", r.TxHash),
				zap.String("block", r.BlockNumber),
				zap.Error(err))
			continue
		}
		logs = append(logs, entry)
	}
	return logs, nil
}

func decodeRawLog(r rawLog) (Log, error) {
	blockNumber, err := parseHexUint(r.BlockNumber)
	if err != nil {
		return Log{}, &DecodeError{Msg: "parse log block number", Err: err}
	}

	var logIndex uint64
	if r.LogIndex != "" {
		logIndex, err = parseHexUint(r.LogIndex)
		if err != nil {
			return Log{}, &DecodeError{Msg: "parse log index", Err: err}
		}
	}

	return Log{
		Address:     lowerHex(r.Address),
		Topics:      r.Topics,
		Data:        r.Data,
		BlockNumber: blockNumber,
		TxHash:      r.TxHash,
		LogIndex:    uint32(logIndex),
		Removed:     r.Removed,
	}, nil
}

// Call performs a read-only contract call against the latest block.
func (c *HTTPClient) Call(ctx context.Context, to string, data string) (string, error) {
	params := []interface{}{
		map[string]string{"to": to, "data": data},
		"latest",
	}

	var result string
	if err := c.call(ctx, "eth_call", params, &result); err != nil {
		return "", err
	}
	return result, nil
}

// blockHeader is the subset of eth_getBlockByNumber we read.
type blockHeader struct {
	Timestamp string `json:"timestamp"`
}

// BlockTime returns the timestamp of a block (unix seconds).
func (c *HTTPClient) BlockTime(ctx context.Context, number uint64) (int64, error) {
	params := []interface{}{formatHexUint(number), false}

	var header *blockHeader
	if err := c.call(ctx, "eth_getBlockByNumber", params, &header); err != nil {
		return 0, err
	}
	if header == nil {
		return 0, &DecodeError{Msg: fmt.Sprintf("block %d not found", number)}
	}

	ts, err := parseHexUint(header.Timestamp)
	if err != nil {
		return 0, &DecodeError{Msg: "parse block timestamp", Err: err}
	}
	return int64(ts), nil
}
