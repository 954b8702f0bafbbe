package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/defilabs/poolscan/internal/domain"
)

// QuoteCache implements domain.QuoteCache using Redis hashes. Each symbol's
// quote is stored as a hash at key "poolscan:quote:{SYMBOL}" with fields
// "value" and "ts" (Unix nanosecond timestamp), expiring with the oracle's
// TTL.
type QuoteCache struct {
	client *Client
}

// NewQuoteCache creates a QuoteCache backed by the given Client.
func NewQuoteCache(c *Client) *QuoteCache {
	return &QuoteCache{client: c}
}

func quoteKey(symbol string) string {
	return key("quote", domain.NormalizeSymbol(symbol))
}

// Set stores a quote with the given TTL. Unknown quotes are never written.
func (qc *QuoteCache) Set(ctx context.Context, quote domain.PriceQuote, ttl time.Duration) error {
	if !quote.Known {
		return nil
	}
	fields := map[string]interface{}{
		"value": strconv.FormatFloat(quote.Value, 'f', -1, 64),
		"ts":    strconv.FormatInt(quote.FetchedAt.UnixNano(), 10),
	}

	if err := qc.client.setHash(ctx, quoteKey(quote.Symbol), fields, ttl); err != nil {
		return fmt.Errorf("redis: set quote %s: %w", quote.Symbol, err)
	}
	return nil
}

// Get retrieves the cached quote for a symbol. It returns domain.ErrNotFound
// when the key does not exist or has expired.
func (qc *QuoteCache) Get(ctx context.Context, symbol string) (domain.PriceQuote, error) {
	vals, err := qc.client.getHash(ctx, quoteKey(symbol))
	if err != nil {
		return domain.PriceQuote{}, fmt.Errorf("redis: get quote %s: %w", symbol, err)
	}
	if len(vals) == 0 {
		return domain.PriceQuote{}, domain.ErrNotFound
	}

	valueStr, ok := vals["value"]
	if !ok {
		return domain.PriceQuote{}, domain.ErrNotFound
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return domain.PriceQuote{}, fmt.Errorf("redis: parse quote %s: %w", symbol, err)
	}

	tsStr, ok := vals["ts"]
	if !ok {
		return domain.PriceQuote{}, domain.ErrNotFound
	}
	tsNano, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return domain.PriceQuote{}, fmt.Errorf("redis: parse quote ts %s: %w", symbol, err)
	}

	return domain.PriceQuote{
		Symbol:    domain.NormalizeSymbol(symbol),
		Value:     value,
		Known:     true,
		FetchedAt: time.Unix(0, tsNano),
	}, nil
}

// Compile-time interface check.
var _ domain.QuoteCache = (*QuoteCache)(nil)
