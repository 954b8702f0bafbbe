// Package fetcher implements one pool collector per AMM family. Each fetcher
// walks an ordered chain of data sources: the protocol's own indexer or API
// first, then an alternate source, then the DefiLlama aggregator. Every tier
// is rate-limited and retried before it is judged failed; the first tier
// that yields pools wins and later tiers are never contacted.
package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/defilabs/poolscan/internal/domain"
	"github.com/defilabs/poolscan/internal/platform/defillama"
	"github.com/defilabs/poolscan/internal/ratelimit"
	"github.com/defilabs/poolscan/internal/retry"
)

// tier is one entry in a fallback chain.
type tier struct {
	name  string
	fetch func(ctx context.Context, limit int) ([]domain.PoolRecord, error)
}

// guard bundles the rate limiter and retry policy a fetcher applies to each
// tier, plus its logger.
type guard struct {
	limiter *ratelimit.Limiter
	policy  retry.Policy
	logger  *slog.Logger
}

// runChain tries each tier in order and returns the first non-empty result.
// A tier that errors out after retries, or that succeeds with zero pools,
// falls through to the next one. When every tier fails the last error is
// returned so the caller can log and skip this provider.
func (g guard) runChain(ctx context.Context, tiers []tier, limit int) ([]domain.PoolRecord, error) {
	var lastErr error
	for _, t := range tiers {
		pools, err := retry.Get(ctx, g.policy, func(ctx context.Context) ([]domain.PoolRecord, error) {
			if err := g.limiter.Wait(ctx); err != nil {
				return nil, err
			}
			return t.fetch(ctx, limit)
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			g.logger.WarnContext(ctx, "data source failed, falling through",
				slog.String("source", t.name),
				slog.String("error", err.Error()),
			)
			lastErr = fmt.Errorf("%s: %w", t.name, err)
			continue
		}
		if len(pools) == 0 {
			g.logger.WarnContext(ctx, "data source returned no pools, falling through",
				slog.String("source", t.name),
			)
			lastErr = fmt.Errorf("%s: %w", t.name, domain.ErrEmptyResult)
			continue
		}
		g.logger.InfoContext(ctx, "pools fetched",
			slog.String("source", t.name),
			slog.Int("count", len(pools)),
		)
		return pools, nil
	}
	return nil, lastErr
}

// filterPools drops pools below the TVL threshold and truncates to limit,
// preserving the source's own ordering. Pools without a trusted TVL figure
// count as zero for thresholding.
func filterPools(pools []domain.PoolRecord, minTVL float64, limit int) []domain.PoolRecord {
	kept := make([]domain.PoolRecord, 0, len(pools))
	for _, p := range pools {
		if p.TVLUSD.Or(0) < minTVL {
			continue
		}
		kept = append(kept, p)
		if limit > 0 && len(kept) == limit {
			break
		}
	}
	return kept
}

// pairName renders "TOK0/TOK1" style pool names.
func pairName(symbols []string) string {
	return strings.Join(symbols, "/")
}

// llamaChain maps a network to DefiLlama's chain tag.
func llamaChain(network domain.Network) string {
	if network == domain.NetworkBSC {
		return "binance"
	}
	return string(network)
}

// llamaPools converts aggregator entries into canonical records. The
// aggregator reports no reserves or volumes, so those fields stay unknown;
// TVL and reward APR survive.
func llamaPools(entries []defillama.Pool, protocol domain.Protocol, network domain.Network) []domain.PoolRecord {
	records := make([]domain.PoolRecord, 0, len(entries))
	for _, e := range entries {
		symbols := strings.Split(e.Symbol, "-")
		tokens := make([]domain.Token, 0, len(symbols))
		for _, s := range symbols {
			if s == "" {
				continue
			}
			tokens = append(tokens, domain.Token{Symbol: s, Decimals: 18})
		}
		if len(tokens) == 0 {
			continue
		}

		rec := domain.PoolRecord{
			Protocol: protocol,
			Network:  network,
			Address:  e.Pool,
			Name:     e.Symbol,
			Tokens:   tokens,
			TVLUSD:   domain.Known(e.TVLUSD),
			Extras:   map[string]float64{},
		}
		if e.APYReward > 0 {
			rec.Extras[domain.ExtraRewardsAPR] = e.APYReward
		}
		records = append(records, rec)
	}
	return records
}
