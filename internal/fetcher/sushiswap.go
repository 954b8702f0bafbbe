package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/defilabs/poolscan/internal/domain"
	"github.com/defilabs/poolscan/internal/platform/defillama"
	"github.com/defilabs/poolscan/internal/platform/onchain"
	"github.com/defilabs/poolscan/internal/platform/subgraph"
	"github.com/defilabs/poolscan/internal/platform/sushiapi"
	"github.com/defilabs/poolscan/internal/ratelimit"
	"github.com/defilabs/poolscan/internal/retry"
)

// SushiSwap collects constant-product pairs on one network. The chain is:
// exchange subgraph, SushiSwap REST API, DefiLlama. When an RPC client is
// configured, pairs whose sources report no reserves are topped up with
// getReserves reads from the pair contract.
type SushiSwap struct {
	network domain.Network
	graph   *subgraph.Client
	api     *sushiapi.Client
	llama   *defillama.Client
	chain   *onchain.Client // optional
	guard   guard
}

// NewSushiSwap creates a fetcher for the given network. chain may be nil when
// no RPC endpoint is configured.
func NewSushiSwap(
	network domain.Network,
	graph *subgraph.Client,
	api *sushiapi.Client,
	llama *defillama.Client,
	chain *onchain.Client,
	limiter *ratelimit.Limiter,
	policy retry.Policy,
	logger *slog.Logger,
) *SushiSwap {
	return &SushiSwap{
		network: network,
		graph:   graph,
		api:     api,
		llama:   llama,
		chain:   chain,
		guard: guard{
			limiter: limiter,
			policy:  policy,
			logger: logger.With(
				slog.String("component", "fetcher"),
				slog.String("protocol", string(domain.ProtocolSushiSwap)),
				slog.String("network", string(network)),
			),
		},
	}
}

func (f *SushiSwap) Protocol() domain.Protocol { return domain.ProtocolSushiSwap }
func (f *SushiSwap) Network() domain.Network   { return f.network }

// TopPools walks the fallback chain and returns at most limit pairs with
// TVL at or above minTVL, in the winning source's order.
func (f *SushiSwap) TopPools(ctx context.Context, limit int, minTVL float64) ([]domain.PoolRecord, error) {
	tiers := []tier{
		{name: "sushiswap-subgraph", fetch: f.fetchSubgraph},
		{name: "sushiswap-api", fetch: f.fetchAPI},
		{name: "defillama", fetch: func(ctx context.Context, limit int) ([]domain.PoolRecord, error) {
			entries, err := f.llama.PoolsByProject(ctx, "sushiswap", llamaChain(f.network))
			if err != nil {
				return nil, err
			}
			return llamaPools(entries, domain.ProtocolSushiSwap, f.network), nil
		}},
	}

	pools, err := f.guard.runChain(ctx, tiers, limit)
	if err != nil {
		return nil, fmt.Errorf("sushiswap/%s: %w", f.network, err)
	}
	pools = filterPools(pools, minTVL, limit)
	f.enrichReserves(ctx, pools)
	return pools, nil
}

// sushiPairPayload mirrors the exchange subgraph's pair entity.
type sushiPairPayload struct {
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
	Reserve0   string `json:"reserve0"`
	Reserve1   string `json:"reserve1"`
	ReserveUSD string `json:"reserveUSD"`
	VolumeUSD  string `json:"volumeUSD"`
	DayData    []struct {
		VolumeUSD string `json:"volumeUSD"`
	} `json:"dayData"`
}

const sushiPairsQuery = `
	query TopPairs($first: Int!) {
		pairs(first: $first, orderBy: reserveUSD, orderDirection: desc) {
			id
			token0 { id symbol decimals }
			token1 { id symbol decimals }
			reserve0
			reserve1
			reserveUSD
			volumeUSD
			dayData(first: 1, orderBy: date, orderDirection: desc) {
				volumeUSD
			}
		}
	}
`

func (f *SushiSwap) fetchSubgraph(ctx context.Context, limit int) ([]domain.PoolRecord, error) {
	var result struct {
		Pairs []sushiPairPayload `json:"pairs"`
	}
	if err := f.graph.Query(ctx, sushiPairsQuery, map[string]any{"first": limit}, &result); err != nil {
		return nil, err
	}

	records := make([]domain.PoolRecord, 0, len(result.Pairs))
	for _, p := range result.Pairs {
		rec, err := f.parsePair(p)
		if err != nil {
			f.guard.logger.WarnContext(ctx, "skipping malformed pair",
				slog.String("pair", p.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func (f *SushiSwap) parsePair(p sushiPairPayload) (domain.PoolRecord, error) {
	if p.Token0.Symbol == "" || p.Token1.Symbol == "" {
		return domain.PoolRecord{}, fmt.Errorf("missing token symbols")
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
		Protocol: domain.ProtocolSushiSwap,
		Network:  f.network,
		Address:  p.ID,
		Name:     p.Token0.Symbol + "/" + p.Token1.Symbol,
		Tokens: []domain.Token{
			{Symbol: p.Token0.Symbol, Address: p.Token0.ID, Decimals: dec0, Reserve: parseFloat(p.Reserve0)},
			{Symbol: p.Token1.Symbol, Address: p.Token1.ID, Decimals: dec1, Reserve: parseFloat(p.Reserve1)},
		},
		Extras: map[string]float64{},
	}

	if v, err := strconv.ParseFloat(p.ReserveUSD, 64); err == nil {
		rec.TVLUSD = domain.Known(v)
	}

	// The pair's volumeUSD is lifetime volume; the latest day datum carries
	// the daily figure the fee estimate needs.
	if len(p.DayData) > 0 {
		if v, err := strconv.ParseFloat(p.DayData[0].VolumeUSD, 64); err == nil {
			rec.Volume24h = domain.Known(v)
			rec.Fees24h = domain.Known(v * rec.FeeRate())
		}
	}

	return rec, nil
}

func (f *SushiSwap) fetchAPI(ctx context.Context, limit int) ([]domain.PoolRecord, error) {
	pools, err := f.api.Pools(ctx, string(f.network))
	if err != nil {
		return nil, err
	}

	records := make([]domain.PoolRecord, 0, len(pools))
	for _, p := range pools {
		if p.Token0.Symbol == "" || p.Token1.Symbol == "" {
			continue
		}
		rec := domain.PoolRecord{
			Protocol: domain.ProtocolSushiSwap,
			Network:  f.network,
			Address:  p.Address,
			Name:     p.Token0.Symbol + "/" + p.Token1.Symbol,
			Tokens: []domain.Token{
				{Symbol: p.Token0.Symbol, Address: p.Token0.Address, Decimals: p.Token0.Decimals},
				{Symbol: p.Token1.Symbol, Address: p.Token1.Address, Decimals: p.Token1.Decimals},
			},
			TVLUSD:    domain.Known(p.TVL),
			Volume24h: domain.Known(p.Volume24h),
			Extras:    map[string]float64{},
		}
		if p.Fees24h > 0 {
			rec.Fees24h = domain.Known(p.Fees24h)
		} else {
			rec.Fees24h = domain.Known(p.Volume24h * rec.FeeRate())
		}
		records = append(records, rec)
		if len(records) == limit {
			break
		}
	}
	return records, nil
}

// enrichReserves reads getReserves for pairs whose sources reported no token
// balances. A failed read leaves the pair as-is; reserves are an enrichment,
// not a requirement.
func (f *SushiSwap) enrichReserves(ctx context.Context, pools []domain.PoolRecord) {
	if f.chain == nil {
		return
	}
	for i := range pools {
		p := &pools[i]
		if len(p.Tokens) != 2 || p.Address == "" {
			continue
		}
		if p.Tokens[0].Reserve > 0 || p.Tokens[1].Reserve > 0 {
			continue
		}
		r0, r1, err := f.chain.PairReserves(ctx, p.Address)
		if err != nil {
			f.guard.logger.WarnContext(ctx, "onchain reserve read failed",
				slog.String("pair", p.Address),
				slog.String("error", err.Error()),
			)
			continue
		}
		p.Tokens[0].Reserve = onchain.ReserveFloat(r0, p.Tokens[0].Decimals)
		p.Tokens[1].Reserve = onchain.ReserveFloat(r1, p.Tokens[1].Decimals)
	}
}

// Compile-time interface check.
var _ domain.PoolFetcher = (*SushiSwap)(nil)
