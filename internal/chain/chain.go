package chain

import "context"

// DefaultMaxBlockSpan is the provider-imposed limit on eth_getLogs block
// ranges. The client never chunks; callers partition ranges themselves.
const DefaultMaxBlockSpan uint64 = 500

// Client defines the JSON-RPC HTTP interface to the execution-layer node.
type Client interface {
	// BlockNumber returns the current chain head.
	BlockNumber(ctx context.Context) (uint64, error)

	// GetLogs returns logs matching the filter. The span of
	// [FromBlock, ToBlock] must not exceed the provider limit.
	GetLogs(ctx context.Context, filter Filter) ([]Log, error)

	// Call performs a read-only contract call against the latest block and
	// returns the raw hex result.
	Call(ctx context.Context, to string, data string) (string, error)

	// BlockTime returns the timestamp of a block (unix seconds).
	BlockTime(ctx context.Context, number uint64) (int64, error)
}

// Subscriber defines the WebSocket log-subscription interface.
type Subscriber interface {
	// SubscribeLogs opens a standing logs subscription matching the filter.
	// The returned channel is closed when the subscriber is closed.
	SubscribeLogs(ctx context.Context, filter Filter) (<-chan Log, error)

	// Close terminates the connection and all subscriptions.
	Close() error
}

// Filter selects logs by emitting address and topics.
type Filter struct {
	// Addresses restricts logs to these contract addresses (empty = any).
	Addresses []string
	// Topics are positional; each position may list alternatives (OR).
	Topics [][]string
	// FromBlock and ToBlock bound a historical query; ignored by subscriptions.
	FromBlock uint64
	ToBlock   uint64
}

// Log is a raw contract log entry.
type Log struct {
	Address     string   // emitting contract, lowercase hex
	Topics      []string // topic0 is the event signature hash
	Data        string   // 0x-prefixed hex of non-indexed arguments
	BlockNumber uint64
	TxHash      string
	LogIndex    uint32
	Removed     bool // true when the log was reorged out
}
