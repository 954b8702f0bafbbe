package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/defilabs/poolscan/internal/domain"
	"github.com/defilabs/poolscan/internal/platform/defillama"
	"github.com/defilabs/poolscan/internal/platform/pancakeapi"
	"github.com/defilabs/poolscan/internal/platform/subgraph"
	"github.com/defilabs/poolscan/internal/ratelimit"
	"github.com/defilabs/poolscan/internal/retry"
)

// PancakeSwap collects V2-style pairs, normally on BSC. The chain is:
// PancakeSwap info API, exchange subgraph, DefiLlama.
type PancakeSwap struct {
	network domain.Network
	api     *pancakeapi.Client
	graph   *subgraph.Client
	llama   *defillama.Client
	guard   guard
}

// NewPancakeSwap creates a fetcher for the given network.
func NewPancakeSwap(
	network domain.Network,
	api *pancakeapi.Client,
	graph *subgraph.Client,
	llama *defillama.Client,
	limiter *ratelimit.Limiter,
	policy retry.Policy,
	logger *slog.Logger,
) *PancakeSwap {
	return &PancakeSwap{
		network: network,
		api:     api,
		graph:   graph,
		llama:   llama,
		guard: guard{
			limiter: limiter,
			policy:  policy,
			logger: logger.With(
				slog.String("component", "fetcher"),
				slog.String("protocol", string(domain.ProtocolPancakeSwap)),
				slog.String("network", string(network)),
			),
		},
	}
}

func (f *PancakeSwap) Protocol() domain.Protocol { return domain.ProtocolPancakeSwap }
func (f *PancakeSwap) Network() domain.Network   { return f.network }

// TopPools walks the fallback chain and returns at most limit pairs with
// TVL at or above minTVL, in the winning source's order.
func (f *PancakeSwap) TopPools(ctx context.Context, limit int, minTVL float64) ([]domain.PoolRecord, error) {
	tiers := []tier{
		{name: "pancakeswap-api", fetch: f.fetchAPI},
		{name: "pancakeswap-subgraph", fetch: f.fetchSubgraph},
		{name: "defillama", fetch: func(ctx context.Context, limit int) ([]domain.PoolRecord, error) {
			entries, err := f.llama.PoolsByProject(ctx, "pancakeswap", llamaChain(f.network))
			if err != nil {
				return nil, err
			}
			return llamaPools(entries, domain.ProtocolPancakeSwap, f.network), nil
		}},
	}

	pools, err := f.guard.runChain(ctx, tiers, limit)
	if err != nil {
		return nil, fmt.Errorf("pancakeswap/%s: %w", f.network, err)
	}
	return filterPools(pools, minTVL, limit), nil
}

// fetchAPI converts the info API's pair map into records. The API reports
// 24h volume and USD liquidity but neither fees nor token reserves, so fees
// are estimated from the trading fee rate and reserves stay zero.
func (f *PancakeSwap) fetchAPI(ctx context.Context, limit int) ([]domain.PoolRecord, error) {
	pairs, err := f.api.Pairs(ctx)
	if err != nil {
		return nil, err
	}

	records := make([]domain.PoolRecord, 0, limit)
	for _, p := range pairs {
		if p.BaseSymbol == "" || p.QuoteSymbol == "" {
			continue
		}
		rec := domain.PoolRecord{
			Protocol: domain.ProtocolPancakeSwap,
			Network:  f.network,
			Address:  p.Address,
			Name:     p.BaseSymbol + "/" + p.QuoteSymbol,
			Tokens: []domain.Token{
				{Symbol: p.BaseSymbol, Address: p.BaseID, Decimals: 18},
				{Symbol: p.QuoteSymbol, Address: p.QuoteID, Decimals: 18},
			},
			TVLUSD: domain.Known(parseFloat(p.ReserveUSD)),
			Extras: map[string]float64{},
		}
		volume := parseFloat(p.VolumeUSD)
		rec.Volume24h = domain.Known(volume)
		rec.Fees24h = domain.Known(volume * rec.FeeRate())
		records = append(records, rec)
		if len(records) == limit {
			break
		}
	}
	return records, nil
}

// pancakePairPayload mirrors the exchange subgraph's pair entity.
type pancakePairPayload struct {
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
}

const pancakePairsQuery = `
	query TopPairs($first: Int!) {
		pairs(first: $first, orderBy: reserveUSD, orderDirection: desc) {
			id
			token0 { id symbol decimals }
			token1 { id symbol decimals }
			reserve0
			reserve1
			reserveUSD
		}
	}
`

// fetchSubgraph reads the top pairs by reserve. The pair entity only carries
// lifetime volume, so daily volume and fees stay unknown on this tier.
func (f *PancakeSwap) fetchSubgraph(ctx context.Context, limit int) ([]domain.PoolRecord, error) {
	var result struct {
		Pairs []pancakePairPayload `json:"pairs"`
	}
	if err := f.graph.Query(ctx, pancakePairsQuery, map[string]any{"first": limit}, &result); err != nil {
		return nil, err
	}

	records := make([]domain.PoolRecord, 0, len(result.Pairs))
	for _, p := range result.Pairs {
		if p.Token0.Symbol == "" || p.Token1.Symbol == "" {
			f.guard.logger.WarnContext(ctx, "skipping malformed pair", slog.String("pair", p.ID))
			continue
		}
		dec0, err0 := strconv.Atoi(p.Token0.Decimals)
		dec1, err1 := strconv.Atoi(p.Token1.Decimals)
		if err0 != nil || err1 != nil {
			f.guard.logger.WarnContext(ctx, "skipping malformed pair", slog.String("pair", p.ID))
			continue
		}
		rec := domain.PoolRecord{
			Protocol: domain.ProtocolPancakeSwap,
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
		records = append(records, rec)
	}
	return records, nil
}

// Compile-time interface check.
var _ domain.PoolFetcher = (*PancakeSwap)(nil)
