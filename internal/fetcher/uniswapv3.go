package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/defilabs/poolscan/internal/domain"
	"github.com/defilabs/poolscan/internal/platform/defillama"
	"github.com/defilabs/poolscan/internal/platform/subgraph"
	"github.com/defilabs/poolscan/internal/ratelimit"
	"github.com/defilabs/poolscan/internal/retry"
)

// feeTierToTickSpacing is Uniswap V3's fixed fee-tier to tick-spacing
// mapping. Unmapped tiers default to the 0.3% tier's spacing.
var feeTierToTickSpacing = map[int]int{
	500:   10,  // 0.05%
	3000:  60,  // 0.3%
	10000: 200, // 1%
}

const defaultTickSpacing = 60

func tickSpacingForFee(fee int) int {
	if spacing, ok := feeTierToTickSpacing[fee]; ok {
		return spacing
	}
	return defaultTickSpacing
}

// UniswapV3 collects concentrated-liquidity pools on one network. The chain
// is: primary subgraph, alternate community subgraph, DefiLlama.
type UniswapV3 struct {
	network domain.Network
	graph   *subgraph.Client
	alt     *subgraph.Client // optional
	llama   *defillama.Client
	guard   guard
}

// NewUniswapV3 creates a fetcher for the given network. alt may be nil when
// no alternate subgraph is configured.
func NewUniswapV3(
	network domain.Network,
	graph, alt *subgraph.Client,
	llama *defillama.Client,
	limiter *ratelimit.Limiter,
	policy retry.Policy,
	logger *slog.Logger,
) *UniswapV3 {
	return &UniswapV3{
		network: network,
		graph:   graph,
		alt:     alt,
		llama:   llama,
		guard: guard{
			limiter: limiter,
			policy:  policy,
			logger: logger.With(
				slog.String("component", "fetcher"),
				slog.String("protocol", string(domain.ProtocolUniswapV3)),
				slog.String("network", string(network)),
			),
		},
	}
}

func (f *UniswapV3) Protocol() domain.Protocol { return domain.ProtocolUniswapV3 }
func (f *UniswapV3) Network() domain.Network   { return f.network }

// TopPools walks the fallback chain and returns at most limit pools with
// TVL at or above minTVL, in the winning source's order.
func (f *UniswapV3) TopPools(ctx context.Context, limit int, minTVL float64) ([]domain.PoolRecord, error) {
	tiers := []tier{
		{name: "uniswap-v3-subgraph", fetch: func(ctx context.Context, limit int) ([]domain.PoolRecord, error) {
			return f.fetchSubgraph(ctx, f.graph, limit)
		}},
	}
	if f.alt != nil {
		tiers = append(tiers, tier{name: "uniswap-v3-subgraph-alt", fetch: func(ctx context.Context, limit int) ([]domain.PoolRecord, error) {
			return f.fetchSubgraph(ctx, f.alt, limit)
		}})
	}
	tiers = append(tiers, tier{name: "defillama", fetch: func(ctx context.Context, limit int) ([]domain.PoolRecord, error) {
		entries, err := f.llama.PoolsByProject(ctx, "uniswap-v3", llamaChain(f.network))
		if err != nil {
			return nil, err
		}
		return llamaPools(entries, domain.ProtocolUniswapV3, f.network), nil
	}})

	pools, err := f.guard.runChain(ctx, tiers, limit)
	if err != nil {
		return nil, fmt.Errorf("uniswap_v3/%s: %w", f.network, err)
	}
	return filterPools(pools, minTVL, limit), nil
}

// v3PoolPayload mirrors the subgraph's pool entity. The Graph serializes
// numbers as strings.
type v3PoolPayload struct {
	ID     string `json:"id"`
	Token0 struct {
		ID       string `json:"id"`
		Symbol   string `json:"symbol"`
		Decimals string `json:"decimals"`
	} `json:"token0"`
	Token1 struct {
		ID       string `json:"id"`
		Symbol   string `json:"symbol"`
		Decimals string `json:"decimals"`
	} `json:"token1"`
	FeeTier             string `json:"feeTier"`
	Liquidity           string `json:"liquidity"`
	SqrtPrice           string `json:"sqrtPrice"`
	Tick                string `json:"tick"`
	TotalValueLockedT0  string `json:"totalValueLockedToken0"`
	TotalValueLockedT1  string `json:"totalValueLockedToken1"`
	VolumeUSD           string `json:"volumeUSD"`
	FeesUSD             string `json:"feesUSD"`
	TotalValueLockedUSD string `json:"totalValueLockedUSD"`
}

const v3PoolsQuery = `
	query TopPools($first: Int!) {
		pools(first: $first, orderBy: totalValueLockedUSD, orderDirection: desc) {
			id
			token0 { id symbol decimals }
			token1 { id symbol decimals }
			feeTier
			liquidity
			sqrtPrice
			tick
			totalValueLockedToken0
			totalValueLockedToken1
			volumeUSD
			feesUSD
			totalValueLockedUSD
		}
	}
`

func (f *UniswapV3) fetchSubgraph(ctx context.Context, client *subgraph.Client, limit int) ([]domain.PoolRecord, error) {
	var result struct {
		Pools []v3PoolPayload `json:"pools"`
	}
	if err := client.Query(ctx, v3PoolsQuery, map[string]any{"first": limit}, &result); err != nil {
		return nil, err
	}

	records := make([]domain.PoolRecord, 0, len(result.Pools))
	for _, p := range result.Pools {
		rec, err := f.parsePool(p)
		if err != nil {
			f.guard.logger.WarnContext(ctx, "skipping malformed pool",
				slog.String("pool", p.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func (f *UniswapV3) parsePool(p v3PoolPayload) (domain.PoolRecord, error) {
	if p.Token0.Symbol == "" || p.Token1.Symbol == "" {
		return domain.PoolRecord{}, fmt.Errorf("missing token symbols")
	}

	fee, err := strconv.Atoi(p.FeeTier)
	if err != nil {
		return domain.PoolRecord{}, fmt.Errorf("parse feeTier %q: %w", p.FeeTier, err)
	}
	dec0, err := strconv.Atoi(p.Token0.Decimals)
	if err != nil {
		return domain.PoolRecord{}, fmt.Errorf("parse token0 decimals: %w", err)
	}
	dec1, err := strconv.Atoi(p.Token1.Decimals)
	if err != nil {
		return domain.PoolRecord{}, fmt.Errorf("parse token1 decimals: %w", err)
	}

	rec := domain.PoolRecord{
		Protocol: domain.ProtocolUniswapV3,
		Network:  f.network,
		Address:  p.ID,
		Name:     fmt.Sprintf("%s/%s %g%%", p.Token0.Symbol, p.Token1.Symbol, float64(fee)/10000),
		Tokens: []domain.Token{
			{Symbol: p.Token0.Symbol, Address: p.Token0.ID, Decimals: dec0, Reserve: parseFloat(p.TotalValueLockedT0)},
			{Symbol: p.Token1.Symbol, Address: p.Token1.ID, Decimals: dec1, Reserve: parseFloat(p.TotalValueLockedT1)},
		},
		Extras: map[string]float64{
			domain.ExtraFeeTier:     float64(fee),
			domain.ExtraTickSpacing: float64(tickSpacingForFee(fee)),
		},
	}

	if v, err := strconv.ParseFloat(p.VolumeUSD, 64); err == nil {
		rec.Volume24h = domain.Known(v)
	}
	if v, err := strconv.ParseFloat(p.FeesUSD, 64); err == nil {
		rec.Fees24h = domain.Known(v)
	}
	if v, err := strconv.ParseFloat(p.TotalValueLockedUSD, 64); err == nil {
		rec.TVLUSD = domain.Known(v)
	}
	if v, err := strconv.ParseFloat(p.Liquidity, 64); err == nil {
		rec.Extras[domain.ExtraLiquidity] = v
	}
	if v, err := strconv.ParseFloat(p.SqrtPrice, 64); err == nil {
		rec.Extras[domain.ExtraSqrtPriceX96] = v
	}
	if v, err := strconv.ParseFloat(p.Tick, 64); err == nil {
		rec.Extras[domain.ExtraTick] = v
	}

	return rec, nil
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// Compile-time interface check.
var _ domain.PoolFetcher = (*UniswapV3)(nil)
