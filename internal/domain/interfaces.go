package domain

import (
	"context"
	"io"
	"time"
)

// PoolFetcher collects top pools for one protocol on one network. TopPools
// walks the provider's fallback chain, drops pools below minTVL, and
// truncates to limit preserving the source's own ordering.
type PoolFetcher interface {
	Protocol() Protocol
	Network() Network
	TopPools(ctx context.Context, limit int, minTVL float64) ([]PoolRecord, error)
}

// PriceSource is the remote price feed behind the oracle. The returned map
// contains only symbols the feed had data for; absent symbols are a normal
// outcome, not an error.
type PriceSource interface {
	FetchPrices(ctx context.Context, symbols []string) (map[string]float64, error)
}

// PriceOracle resolves token symbols to USD quotes. Implementations never
// fail a lookup: a symbol without a price comes back with Known=false.
type PriceOracle interface {
	Price(ctx context.Context, symbol string) PriceQuote
	Prices(ctx context.Context, symbols []string) map[string]PriceQuote
}

// QuoteCache is an optional shared second-tier price cache (e.g. Redis)
// consulted between the oracle's in-process cache and the remote feed.
type QuoteCache interface {
	Get(ctx context.Context, symbol string) (PriceQuote, error)
	Set(ctx context.Context, quote PriceQuote, ttl time.Duration) error
}

// SnapshotStore persists computed pool metrics per run.
type SnapshotStore interface {
	SaveSnapshots(ctx context.Context, runID string, metrics []PoolMetrics) error
}

// BlobWriter stores run artifacts in object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}
