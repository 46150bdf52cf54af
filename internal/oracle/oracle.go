// Package oracle converts native-asset amounts to USD through a layered
// fallback: cached quote, primary source, secondary source, fixed constant.
// Dependent computations (market cap, trade volume) must never hard-fail on a
// price-feed hiccup, so GetNativeToUSD returns a usable price unconditionally.
package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// FallbackPrice is the last-resort native-asset USD price, used only when
// both quote sources fail and no cached quote exists.
var FallbackPrice = decimal.RequireFromString("2500")

// DefaultCacheTTL bounds quote staleness under normal operation.
const DefaultCacheTTL = 60 * time.Second

// Options configures the Adapter.
type Options struct {
	// PrimaryURL returns a JSON object keyed by asset id:
	// {"<asset>":{"usd":<number>}}.
	PrimaryURL string
	// AssetID is the primary source's key for the native asset.
	AssetID string
	// SecondaryURL returns a pairs listing: {"pairs":[{"priceUsd":"<num>"}]}.
	SecondaryURL string
	CacheTTL     time.Duration
	HTTPClient   *http.Client
	Logger       *zap.Logger
}

// Adapter implements the layered native→USD conversion.
type Adapter struct {
	primaryURL   string
	assetID      string
	secondaryURL string
	cacheTTL     time.Duration
	client       *http.Client
	logger       *zap.Logger

	mu        sync.Mutex
	cached    decimal.Decimal
	fetchedAt time.Time
}

// NewAdapter creates a price oracle adapter.
func NewAdapter(opts Options) *Adapter {
	ttl := opts.CacheTTL
	if ttl == 0 {
		ttl = DefaultCacheTTL
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Adapter{
		primaryURL:   opts.PrimaryURL,
		assetID:      opts.AssetID,
		secondaryURL: opts.SecondaryURL,
		cacheTTL:     ttl,
		client:       client,
		logger:       logger,
	}
}

// GetNativeToUSD returns the native asset's USD price. It never fails:
// cache hit → cached quote; otherwise primary, then secondary, then the
// fixed fallback (or the stale cached quote if one exists).
func (a *Adapter) GetNativeToUSD(ctx context.Context) decimal.Decimal {
	a.mu.Lock()
	if !a.cached.IsZero() && time.Since(a.fetchedAt) < a.cacheTTL {
		price := a.cached
		a.mu.Unlock()
		return price
	}
	stale := a.cached
	a.mu.Unlock()

	if price, err := a.fetchPrimary(ctx); err == nil {
		a.store(price)
		return price
	} else {
		a.logger.Warn("primary price source failed", zap.Error(err))
	}

	if price, err := a.fetchSecondary(ctx); err == nil {
		a.store(price)
		return price
	} else {
		a.logger.Warn("secondary price source failed", zap.Error(err))
	}

	// Staleness beats an outage.
	if !stale.IsZero() {
		return stale
	}
	return FallbackPrice
}

func (a *Adapter) store(price decimal.Decimal) {
	a.mu.Lock()
	a.cached = price
	a.fetchedAt = time.Now()
	a.mu.Unlock()
}

func (a *Adapter) fetchPrimary(ctx context.Context) (decimal.Decimal, error) {
	if a.primaryURL == "" {
		return decimal.Zero, fmt.Errorf("primary source not configured")
	}

	body, err := a.get(ctx, a.primaryURL)
	if err != nil {
		return decimal.Zero, err
	}

	var result map[string]map[string]json.Number
	if err := json.Unmarshal(body, &result); err != nil {
		return decimal.Zero, fmt.Errorf("unmarshal primary response: %w", err)
	}

	quote, ok := result[a.assetID]
	if !ok {
		return decimal.Zero, fmt.Errorf("asset %q missing from primary response", a.assetID)
	}
	usd, ok := quote["usd"]
	if !ok {
		return decimal.Zero, fmt.Errorf("usd field missing from primary response")
	}

	return parsePositive(usd.String())
}

func (a *Adapter) fetchSecondary(ctx context.Context) (decimal.Decimal, error) {
	if a.secondaryURL == "" {
		return decimal.Zero, fmt.Errorf("secondary source not configured")
	}

	body, err := a.get(ctx, a.secondaryURL)
	if err != nil {
		return decimal.Zero, err
	}

	var result struct {
		Pairs []struct {
			PriceUSD string `json:"priceUsd"`
		} `json:"pairs"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return decimal.Zero, fmt.Errorf("unmarshal secondary response: %w", err)
	}
	if len(result.Pairs) == 0 {
		return decimal.Zero, fmt.Errorf("no pairs in secondary response")
	}

	return parsePositive(result.Pairs[0].PriceUSD)
}

func (a *Adapter) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

func parsePositive(s string) (decimal.Decimal, error) {
	price, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("non-numeric price %q: %w", s, err)
	}
	if !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("non-positive price %s", price)
	}
	return price, nil
}
