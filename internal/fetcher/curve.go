package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/defilabs/poolscan/internal/domain"
	"github.com/defilabs/poolscan/internal/platform/curveapi"
	"github.com/defilabs/poolscan/internal/platform/defillama"
	"github.com/defilabs/poolscan/internal/ratelimit"
	"github.com/defilabs/poolscan/internal/retry"
)

// Curve API fixed-point scales.
const (
	curveFeeScale   = 1e10
	curvePriceScale = 1e18
)

// Curve collects stable-swap pools on one network. The chain is: Curve API,
// DefiLlama.
type Curve struct {
	network domain.Network
	api     *curveapi.Client
	llama   *defillama.Client
	guard   guard
}

// NewCurve creates a fetcher for the given network.
func NewCurve(
	network domain.Network,
	api *curveapi.Client,
	llama *defillama.Client,
	limiter *ratelimit.Limiter,
	policy retry.Policy,
	logger *slog.Logger,
) *Curve {
	return &Curve{
		network: network,
		api:     api,
		llama:   llama,
		guard: guard{
			limiter: limiter,
			policy:  policy,
			logger: logger.With(
				slog.String("component", "fetcher"),
				slog.String("protocol", string(domain.ProtocolCurve)),
				slog.String("network", string(network)),
			),
		},
	}
}

func (f *Curve) Protocol() domain.Protocol { return domain.ProtocolCurve }
func (f *Curve) Network() domain.Network   { return f.network }

// TopPools walks the fallback chain and returns at most limit pools with
// TVL at or above minTVL, largest first.
func (f *Curve) TopPools(ctx context.Context, limit int, minTVL float64) ([]domain.PoolRecord, error) {
	tiers := []tier{
		{name: "curve-api", fetch: f.fetchAPI},
		{name: "defillama", fetch: func(ctx context.Context, limit int) ([]domain.PoolRecord, error) {
			entries, err := f.llama.PoolsByProject(ctx, "curve", llamaChain(f.network))
			if err != nil {
				return nil, err
			}
			return llamaPools(entries, domain.ProtocolCurve, f.network), nil
		}},
	}

	pools, err := f.guard.runChain(ctx, tiers, limit)
	if err != nil {
		return nil, fmt.Errorf("curve/%s: %w", f.network, err)
	}
	return filterPools(pools, minTVL, limit), nil
}

// fetchAPI converts the registry dump into records, largest TVL first. Coin
// balances arrive as raw integers and are rescaled by each coin's decimals.
func (f *Curve) fetchAPI(ctx context.Context, limit int) ([]domain.PoolRecord, error) {
	pools, err := f.api.Pools(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(pools, func(i, j int) bool { return pools[i].USDTotal > pools[j].USDTotal })

	records := make([]domain.PoolRecord, 0, limit)
	for _, p := range pools {
		rec, err := f.parsePool(p)
		if err != nil {
			f.guard.logger.WarnContext(ctx, "skipping malformed pool",
				slog.String("pool", p.Address),
				slog.String("error", err.Error()),
			)
			continue
		}
		records = append(records, rec)
		if len(records) == limit {
			break
		}
	}
	return records, nil
}

func (f *Curve) parsePool(p curveapi.Pool) (domain.PoolRecord, error) {
	if len(p.Coins) == 0 {
		return domain.PoolRecord{}, fmt.Errorf("pool has no coins")
	}

	tokens := make([]domain.Token, 0, len(p.Coins))
	symbols := make([]string, 0, len(p.Coins))
	for _, c := range p.Coins {
		if c.Symbol == "" {
			return domain.PoolRecord{}, fmt.Errorf("coin %s missing symbol", c.Address)
		}
		decimals := int(numberValue(c.Decimals))
		if decimals == 0 {
			decimals = 18
		}
		reserve := numberValue(c.PoolBalance) / math.Pow10(decimals)
		tokens = append(tokens, domain.Token{
			Symbol:   c.Symbol,
			Address:  c.Address,
			Decimals: decimals,
			Reserve:  reserve,
		})
		symbols = append(symbols, c.Symbol)
	}

	name := p.Name
	if name == "" {
		name = pairName(symbols)
	}

	rec := domain.PoolRecord{
		Protocol: domain.ProtocolCurve,
		Network:  f.network,
		Address:  p.Address,
		Name:     name,
		Tokens:   tokens,
		TVLUSD:   domain.Known(p.USDTotal),
		Extras:   map[string]float64{},
	}

	if amp := numberValue(p.Amplification); amp > 0 {
		rec.Extras[domain.ExtraAmp] = amp
	}
	if vp := numberValue(p.VirtualPrice); vp > 0 {
		rec.Extras[domain.ExtraVirtualPrice] = vp / curvePriceScale
	}
	if fee := numberValue(p.Fee); fee > 0 {
		rec.Extras[domain.ExtraPoolFee] = fee / curveFeeScale
	}
	if apy := numberValue(p.GaugeRewardsAPY); apy > 0 {
		rec.Extras[domain.ExtraRewardsAPR] = apy
	}

	if volume := numberValue(p.Volume); volume > 0 {
		rec.Volume24h = domain.Known(volume)
		rec.Fees24h = domain.Known(volume * rec.FeeRate())
	}

	return rec, nil
}

// numberValue reads a json.Number leniently; malformed or absent values
// count as zero.
func numberValue(n json.Number) float64 {
	v, err := n.Float64()
	if err != nil {
		return 0
	}
	return v
}

// Compile-time interface check.
var _ domain.PoolFetcher = (*Curve)(nil)
