// Package oracle resolves token symbols to USD spot prices. It hides the
// upstream price feed behind a TTL cache so a batch of pool computations
// within one cache window issues at most one remote fetch per symbol.
package oracle

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/defilabs/poolscan/internal/domain"
	"github.com/defilabs/poolscan/internal/ratelimit"
	"github.com/defilabs/poolscan/internal/retry"
)

// DefaultTTL is how long a fetched quote stays usable.
const DefaultTTL = 5 * time.Minute

// Oracle caches quotes in process memory, optionally consults a shared
// second-tier cache, and falls back to the remote feed for misses. Price
// absence is a normal outcome: lookups never fail, they return quotes with
// Known=false.
type Oracle struct {
	source  domain.PriceSource
	shared  domain.QuoteCache // optional, may be nil
	limiter *ratelimit.Limiter
	policy  retry.Policy
	ttl     time.Duration
	logger  *slog.Logger

	// now is swappable in tests.
	now func() time.Time

	mu     sync.RWMutex
	quotes map[string]domain.PriceQuote
}

// New creates an Oracle over the given price source. shared may be nil when
// no cross-process cache is configured. A non-positive ttl selects the
// 5-minute default.
func New(
	source domain.PriceSource,
	shared domain.QuoteCache,
	limiter *ratelimit.Limiter,
	policy retry.Policy,
	ttl time.Duration,
	logger *slog.Logger,
) *Oracle {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Oracle{
		source:  source,
		shared:  shared,
		limiter: limiter,
		policy:  policy,
		ttl:     ttl,
		logger:  logger.With(slog.String("component", "oracle")),
		now:     time.Now,
		quotes:  make(map[string]domain.PriceQuote),
	}
}

// Price returns the USD quote for one symbol: cached if fresh, otherwise a
// single rate-limited, retried remote lookup. Persistent failure yields a
// quote with Known=false.
func (o *Oracle) Price(ctx context.Context, symbol string) domain.PriceQuote {
	key := domain.NormalizeSymbol(symbol)
	return o.Prices(ctx, []string{key})[key]
}

// Prices resolves a set of symbols, fetching only the cache misses in one
// batched remote call. Successful fetches are cached; failed or absent
// symbols are not, so they are retried on the next call rather than being
// permanently marked unknown.
func (o *Oracle) Prices(ctx context.Context, symbols []string) map[string]domain.PriceQuote {
	now := o.now()
	results := make(map[string]domain.PriceQuote, len(symbols))
	var misses []string

	o.mu.RLock()
	for _, s := range symbols {
		key := domain.NormalizeSymbol(s)
		if key == "" {
			continue
		}
		if _, seen := results[key]; seen {
			continue
		}
		if q, ok := o.quotes[key]; ok && q.Fresh(now, o.ttl) {
			results[key] = q
			continue
		}
		results[key] = domain.PriceQuote{Symbol: key}
		misses = append(misses, key)
	}
	o.mu.RUnlock()

	if len(misses) == 0 {
		return results
	}

	// Second tier: shared cache, per-symbol, failures treated as misses.
	if o.shared != nil {
		remaining := misses[:0]
		for _, key := range misses {
			q, err := o.shared.Get(ctx, key)
			if err == nil && q.Fresh(now, o.ttl) {
				results[key] = q
				o.store(q)
				continue
			}
			remaining = append(remaining, key)
		}
		misses = remaining
		if len(misses) == 0 {
			return results
		}
	}

	fetched, err := retry.Get(ctx, o.policy, func(ctx context.Context) (map[string]float64, error) {
		if err := o.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		return o.source.FetchPrices(ctx, misses)
	})
	if err != nil {
		o.logger.WarnContext(ctx, "price fetch failed",
			slog.Int("symbols", len(misses)),
			slog.String("error", err.Error()),
		)
		return results
	}

	for _, key := range misses {
		value, ok := fetched[key]
		if !ok {
			o.logger.DebugContext(ctx, "no price data for symbol", slog.String("symbol", key))
			continue
		}
		q := domain.PriceQuote{Symbol: key, Value: value, Known: true, FetchedAt: now}
		results[key] = q
		o.store(q)
		if o.shared != nil {
			if err := o.shared.Set(ctx, q, o.ttl); err != nil {
				o.logger.DebugContext(ctx, "shared cache set failed",
					slog.String("symbol", key),
					slog.String("error", err.Error()),
				)
			}
		}
	}
	return results
}

func (o *Oracle) store(q domain.PriceQuote) {
	o.mu.Lock()
	o.quotes[q.Symbol] = q
	o.mu.Unlock()
}

// Compile-time interface check.
var _ domain.PriceOracle = (*Oracle)(nil)
