// Package calc turns canonical pool records into scored metrics. All
// formulas are pure functions of the record and the oracle's quotes; the
// calculator itself holds no per-pool state.
package calc

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/defilabs/poolscan/internal/domain"
)

// riskFreeAPY is the annual yield (percent) the Sharpe ratio measures
// excess return against.
const riskFreeAPY = 5.0

// stableSymbols are tokens pegged to the dollar. Pools made only of these
// carry near-zero divergence risk.
var stableSymbols = map[string]bool{
	"USDT": true,
	"USDC": true,
	"DAI":  true,
	"BUSD": true,
}

// Daily impermanent-loss rates (percent per day) by pool composition.
const (
	ilRateCurve       = 0.1
	ilRateAllStable   = 0.1
	ilRateOneStable   = 1.0
	ilRateAllVolatile = 2.0
)

// Calculator computes PoolMetrics from PoolRecords using oracle prices.
type Calculator struct {
	oracle domain.PriceOracle
	logger *slog.Logger
	now    func() time.Time
}

// New creates a calculator backed by the given oracle.
func New(oracle domain.PriceOracle, logger *slog.Logger) *Calculator {
	return &Calculator{
		oracle: oracle,
		logger: logger.With(slog.String("component", "calc")),
		now:    time.Now,
	}
}

// Compute produces the full metric set for one pool. A pool with no tokens
// is rejected so one bad record cannot poison a batch.
func (c *Calculator) Compute(ctx context.Context, pool domain.PoolRecord) (domain.PoolMetrics, error) {
	if len(pool.Tokens) == 0 {
		return domain.PoolMetrics{}, fmt.Errorf("calc: %s %s: %w", pool.Protocol, pool.Address, domain.ErrNoTokens)
	}

	quotes := c.oracle.Prices(ctx, pool.Symbols())

	tokens := make([]domain.TokenValue, len(pool.Tokens))
	for i, t := range pool.Tokens {
		q := quotes[domain.NormalizeSymbol(t.Symbol)]
		tokens[i] = domain.TokenValue{
			Symbol:     t.Symbol,
			Reserve:    t.Reserve,
			PriceUSD:   q.Value,
			PriceKnown: q.Known,
		}
		if !q.Known {
			c.logger.DebugContext(ctx, "no price for token",
				slog.String("symbol", t.Symbol),
				slog.String("pool", pool.Address),
			)
		}
	}

	tvl := poolTVL(pool, tokens)
	aprBase := baseAPR(pool, tvl)
	aprRewards, _ := pool.Extra(domain.ExtraRewardsAPR)
	apyBase := compoundAPY(aprBase)
	apyTotal := compoundAPY(aprBase + aprRewards)

	il1d := impermanentLoss(pool, 1)
	il7d := impermanentLoss(pool, 7)

	m := domain.PoolMetrics{
		Protocol:          pool.Protocol,
		Network:           pool.Network,
		Address:           pool.Address,
		Name:              pool.Name,
		Tokens:            tokens,
		TVLUSD:            tvl,
		Volume24h:         pool.Volume24h.Or(0),
		Volume7d:          pool.Volume7d.Or(0),
		Fees24h:           pool.Fees24h.Or(0),
		APRBase:           aprBase,
		APRRewards:        aprRewards,
		APYBase:           apyBase,
		APYTotal:          apyTotal,
		ImpermanentLoss1d: il1d,
		ImpermanentLoss7d: il7d,
		SharpeRatio:       sharpeRatio(apyTotal, il7d),
		RiskScore:         riskScore(pool, tvl, il7d),
		LiquidityDepth:    liquidityDepth(tvl),
		PriceImpact1Pct:   priceImpact(pool, tvl),
		LastUpdated:       c.now().UTC(),
	}
	return m, nil
}

// poolTVL prefers the source's own TVL figure and otherwise values reserves
// at oracle prices. Tokens without a known price contribute nothing.
func poolTVL(pool domain.PoolRecord, tokens []domain.TokenValue) float64 {
	if pool.TVLUSD.Valid && pool.TVLUSD.Value > 0 {
		return pool.TVLUSD.Value
	}
	var tvl float64
	for _, t := range tokens {
		if t.PriceKnown {
			tvl += t.Reserve * t.PriceUSD
		}
	}
	return tvl
}

// baseAPR annualizes the pool's daily fee income as a percentage of TVL.
// Fees missing from the source are estimated from volume and the trading
// fee rate.
func baseAPR(pool domain.PoolRecord, tvl float64) float64 {
	if tvl <= 0 {
		return 0
	}
	fees := pool.Fees24h.Or(0)
	if !pool.Fees24h.Valid {
		fees = pool.Volume24h.Or(0) * pool.FeeRate()
	}
	if fees <= 0 {
		return 0
	}
	return fees * 365 / tvl * 100
}

// compoundAPY converts an APR percentage into APY assuming daily
// compounding.
func compoundAPY(apr float64) float64 {
	if apr <= 0 {
		return 0
	}
	daily := apr / 365 / 100
	return (math.Pow(1+daily, 365) - 1) * 100
}

// impermanentLoss estimates divergence loss (percent) over the horizon from
// the pool's composition. Stable-swap pools diverge minimally regardless of
// horizon growth in their constituents.
func impermanentLoss(pool domain.PoolRecord, days float64) float64 {
	if pool.Protocol == domain.ProtocolCurve {
		return ilRateCurve * days
	}

	stables := 0
	for _, t := range pool.Tokens {
		if stableSymbols[domain.NormalizeSymbol(t.Symbol)] {
			stables++
		}
	}
	switch {
	case stables == len(pool.Tokens):
		return ilRateAllStable * days
	case stables > 0:
		return ilRateOneStable * days
	default:
		return ilRateAllVolatile * days
	}
}

// sharpeRatio is excess APY per unit of divergence risk. Without a positive
// risk denominator the ratio is undefined and reported as nil.
func sharpeRatio(apyTotal, il7d float64) *float64 {
	if il7d <= 0 {
		return nil
	}
	s := (apyTotal - riskFreeAPY) / il7d
	return &s
}

// riskScore composes divergence, size, protocol, and network risk into a
// 0-100 score. Higher is riskier.
func riskScore(pool domain.PoolRecord, tvl, il7d float64) float64 {
	score := math.Min(il7d*2, 40)

	switch {
	case tvl > 50_000_000:
		// no size penalty
	case tvl > 10_000_000:
		score += 10
	case tvl > 1_000_000:
		score += 20
	default:
		score += 30
	}

	switch pool.Protocol {
	case domain.ProtocolUniswapV3, domain.ProtocolCurve:
		// established, audited
	case domain.ProtocolSushiSwap:
		score += 5
	default:
		score += 15
	}

	switch pool.Network {
	case domain.NetworkEthereum:
		// no network penalty
	case domain.NetworkPolygon, domain.NetworkArbitrum:
		score += 3
	default:
		score += 7
	}

	return math.Min(score, 100)
}

// liquidityDepth buckets TVL into a 2-10 depth score.
func liquidityDepth(tvl float64) float64 {
	switch {
	case tvl > 100_000_000:
		return 10
	case tvl > 50_000_000:
		return 8
	case tvl > 10_000_000:
		return 6
	case tvl > 1_000_000:
		return 4
	default:
		return 2
	}
}

// priceImpact estimates the price move (percent) caused by a trade sized at
// 1% of TVL: trade fraction times a protocol curve-shape constant.
// Concentrated liquidity amplifies impact around the active tick;
// stable-swap curves flatten it. Pools with no value report zero impact.
func priceImpact(pool domain.PoolRecord, tvl float64) float64 {
	if tvl <= 0 {
		return 0
	}
	k := 0.3
	switch pool.Protocol {
	case domain.ProtocolCurve:
		k = 0.1
	case domain.ProtocolUniswapV3:
		k = 0.5
	}
	return 0.01 * k
}
