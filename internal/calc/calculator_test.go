package calc

import (
	"context"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defilabs/poolscan/internal/domain"
)

// fixedOracle resolves symbols from a static price table.
type fixedOracle struct {
	prices map[string]float64
}

func (f fixedOracle) Price(ctx context.Context, symbol string) domain.PriceQuote {
	return f.Prices(ctx, []string{symbol})[domain.NormalizeSymbol(symbol)]
}

func (f fixedOracle) Prices(_ context.Context, symbols []string) map[string]domain.PriceQuote {
	out := make(map[string]domain.PriceQuote, len(symbols))
	for _, s := range symbols {
		key := domain.NormalizeSymbol(s)
		if v, ok := f.prices[key]; ok {
			out[key] = domain.PriceQuote{Symbol: key, Value: v, Known: true}
		} else {
			out[key] = domain.PriceQuote{Symbol: key}
		}
	}
	return out
}

func testCalculator(prices map[string]float64) *Calculator {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(fixedOracle{prices: prices}, logger)
}

func TestComputeRejectsPoolWithoutTokens(t *testing.T) {
	c := testCalculator(nil)

	_, err := c.Compute(context.Background(), domain.PoolRecord{
		Protocol: domain.ProtocolSushiSwap,
		Network:  domain.NetworkEthereum,
		Address:  "0xdead",
	})
	assert.ErrorIs(t, err, domain.ErrNoTokens)
}

func TestComputeZeroTVLPool(t *testing.T) {
	c := testCalculator(nil) // no prices known

	m, err := c.Compute(context.Background(), domain.PoolRecord{
		Protocol:  domain.ProtocolSushiSwap,
		Network:   domain.NetworkEthereum,
		Address:   "0xabc",
		Tokens:    []domain.Token{{Symbol: "AAA", Reserve: 100}, {Symbol: "BBB", Reserve: 100}},
		Volume24h: domain.Known(50_000),
	})
	require.NoError(t, err)

	assert.Zero(t, m.TVLUSD)
	assert.Zero(t, m.APRBase)
	assert.Zero(t, m.APYBase)
	assert.Zero(t, m.PriceImpact1Pct)
	assert.Equal(t, 2.0, m.LiquidityDepth)
	assert.False(t, m.Tokens[0].PriceKnown)
}

func TestComputeStableSwapScenario(t *testing.T) {
	c := testCalculator(map[string]float64{"USDC": 1, "USDT": 1})

	m, err := c.Compute(context.Background(), domain.PoolRecord{
		Protocol:  domain.ProtocolCurve,
		Network:   domain.NetworkEthereum,
		Address:   "0x3pool",
		Name:      "USDC/USDT",
		Tokens:    []domain.Token{{Symbol: "USDC", Reserve: 1_000_000}, {Symbol: "USDT", Reserve: 1_000_000}},
		TVLUSD:    domain.Known(2_000_000),
		Volume24h: domain.Known(100_000),
		Extras:    map[string]float64{domain.ExtraPoolFee: 0.0004},
	})
	require.NoError(t, err)

	assert.Equal(t, 2_000_000.0, m.TVLUSD)
	// Fees estimated from volume at the pool fee: 100k * 0.0004 = $40/day.
	assert.InDelta(t, 40.0, m.Fees24h, 1e-9)
	assert.InDelta(t, 0.73, m.APRBase, 1e-9)
	// Daily compounding barely moves a sub-1% APR.
	assert.InDelta(t, 0.7327, m.APYBase, 1e-3)

	assert.InDelta(t, 0.1, m.ImpermanentLoss1d, 1e-9)
	assert.InDelta(t, 0.7, m.ImpermanentLoss7d, 1e-9)

	require.NotNil(t, m.SharpeRatio)
	assert.InDelta(t, (m.APYTotal-5.0)/0.7, *m.SharpeRatio, 1e-9)

	// 1.4 divergence + 20 size + 0 protocol + 0 network.
	assert.InDelta(t, 21.4, m.RiskScore, 1e-9)
	assert.Equal(t, 4.0, m.LiquidityDepth)
	assert.InDelta(t, 0.001, m.PriceImpact1Pct, 1e-9)
}

func TestComputeConstantProductScenario(t *testing.T) {
	c := testCalculator(map[string]float64{"ETH": 3000, "USDC": 1})

	m, err := c.Compute(context.Background(), domain.PoolRecord{
		Protocol: domain.ProtocolSushiSwap,
		Network:  domain.NetworkEthereum,
		Address:  "0xpair",
		Name:     "ETH/USDC",
		Tokens:   []domain.Token{{Symbol: "ETH", Reserve: 166.67}, {Symbol: "USDC", Reserve: 500_000}},
		TVLUSD:   domain.Known(1_000_000),
		Fees24h:  domain.Known(600),
	})
	require.NoError(t, err)

	// 600 * 365 / 1M * 100.
	assert.InDelta(t, 21.9, m.APRBase, 1e-9)
	assert.Greater(t, m.APYBase, m.APRBase)

	// One stable constituent.
	assert.InDelta(t, 1.0, m.ImpermanentLoss1d, 1e-9)
	assert.InDelta(t, 7.0, m.ImpermanentLoss7d, 1e-9)

	// 14 divergence + 30 size + 5 protocol + 0 network.
	assert.InDelta(t, 49.0, m.RiskScore, 1e-9)
	assert.InDelta(t, 0.003, m.PriceImpact1Pct, 1e-9)
}

func TestComputeDerivesTVLFromReserves(t *testing.T) {
	c := testCalculator(map[string]float64{"ETH": 3000, "USDC": 1})

	m, err := c.Compute(context.Background(), domain.PoolRecord{
		Protocol: domain.ProtocolUniswapV3,
		Network:  domain.NetworkEthereum,
		Address:  "0xv3",
		Tokens:   []domain.Token{{Symbol: "ETH", Reserve: 100}, {Symbol: "USDC", Reserve: 250_000}},
	})
	require.NoError(t, err)

	assert.InDelta(t, 550_000.0, m.TVLUSD, 1e-6)
}

func TestComputeRewardsAddToTotalAPY(t *testing.T) {
	c := testCalculator(map[string]float64{"USDC": 1, "USDT": 1})

	m, err := c.Compute(context.Background(), domain.PoolRecord{
		Protocol:  domain.ProtocolCurve,
		Network:   domain.NetworkEthereum,
		Address:   "0xgauge",
		Tokens:    []domain.Token{{Symbol: "USDC", Reserve: 1}, {Symbol: "USDT", Reserve: 1}},
		TVLUSD:    domain.Known(2_000_000),
		Volume24h: domain.Known(100_000),
		Extras:    map[string]float64{domain.ExtraRewardsAPR: 3.5},
	})
	require.NoError(t, err)

	assert.Equal(t, 3.5, m.APRRewards)
	assert.InDelta(t, compoundAPY(m.APRBase+3.5), m.APYTotal, 1e-9)
	assert.Greater(t, m.APYTotal, m.APYBase)
}

func TestComputeRewardsOnlyAPYCompounds(t *testing.T) {
	c := testCalculator(map[string]float64{"USDC": 1, "USDT": 1})

	// No volume and no fees, so the base rate is zero and the total
	// comes entirely from compounding the 50% incentive APR.
	m, err := c.Compute(context.Background(), domain.PoolRecord{
		Protocol: domain.ProtocolCurve,
		Network:  domain.NetworkEthereum,
		Address:  "0xincentive",
		Tokens:   []domain.Token{{Symbol: "USDC", Reserve: 1}, {Symbol: "USDT", Reserve: 1}},
		TVLUSD:   domain.Known(2_000_000),
		Extras:   map[string]float64{domain.ExtraRewardsAPR: 50},
	})
	require.NoError(t, err)

	assert.Zero(t, m.APRBase)
	assert.Zero(t, m.APYBase)
	assert.InDelta(t, 64.8157, m.APYTotal, 1e-3)
}

func TestCompoundAPYMonotonicAndZeroFloored(t *testing.T) {
	assert.Zero(t, compoundAPY(0))
	assert.Zero(t, compoundAPY(-4))

	prev := 0.0
	for _, apr := range []float64{0.5, 1, 5, 20, 100, 400} {
		apy := compoundAPY(apr)
		assert.Greater(t, apy, prev)
		assert.GreaterOrEqual(t, apy, apr)
		prev = apy
	}
}

func TestRiskScoreStaysWithinBounds(t *testing.T) {
	protocols := []domain.Protocol{
		domain.ProtocolUniswapV3, domain.ProtocolSushiSwap,
		domain.ProtocolPancakeSwap, domain.ProtocolCurve,
	}
	networks := []domain.Network{
		domain.NetworkEthereum, domain.NetworkPolygon,
		domain.NetworkArbitrum, domain.NetworkBSC,
	}
	tvls := []float64{0, 500_000, 5_000_000, 20_000_000, 80_000_000, 200_000_000}
	ils := []float64{0, 0.7, 7, 14, math.Inf(1)}

	for _, p := range protocols {
		for _, n := range networks {
			for _, tvl := range tvls {
				for _, il := range ils {
					score := riskScore(domain.PoolRecord{Protocol: p, Network: n}, tvl, il)
					assert.GreaterOrEqual(t, score, 0.0)
					assert.LessOrEqual(t, score, 100.0)
				}
			}
		}
	}
}

func TestSharpeRatioUndefinedWithoutRisk(t *testing.T) {
	assert.Nil(t, sharpeRatio(10, 0))
	assert.Nil(t, sharpeRatio(10, -1))

	s := sharpeRatio(12, 7)
	require.NotNil(t, s)
	assert.InDelta(t, 1.0, *s, 1e-9)
}

func TestImpermanentLossClassification(t *testing.T) {
	stable := domain.Token{Symbol: "USDC"}
	stable2 := domain.Token{Symbol: "dai"}
	volatile := domain.Token{Symbol: "ETH"}
	volatile2 := domain.Token{Symbol: "WBTC"}

	cases := []struct {
		name string
		pool domain.PoolRecord
		want float64
	}{
		{"curve always minimal", domain.PoolRecord{Protocol: domain.ProtocolCurve, Tokens: []domain.Token{volatile, volatile2}}, 0.7},
		{"all stable", domain.PoolRecord{Protocol: domain.ProtocolSushiSwap, Tokens: []domain.Token{stable, stable2}}, 0.7},
		{"one stable", domain.PoolRecord{Protocol: domain.ProtocolSushiSwap, Tokens: []domain.Token{stable, volatile}}, 7.0},
		{"all volatile", domain.PoolRecord{Protocol: domain.ProtocolSushiSwap, Tokens: []domain.Token{volatile, volatile2}}, 14.0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, impermanentLoss(tc.pool, 7), 1e-9)
		})
	}
}
