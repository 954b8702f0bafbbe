package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defilabs/poolscan/internal/calc"
	"github.com/defilabs/poolscan/internal/domain"
)

// fakeFetcher returns canned pools or a canned error.
type fakeFetcher struct {
	protocol domain.Protocol
	network  domain.Network
	pools    []domain.PoolRecord
	err      error
	calls    int
}

func (f *fakeFetcher) Protocol() domain.Protocol { return f.protocol }
func (f *fakeFetcher) Network() domain.Network   { return f.network }

func (f *fakeFetcher) TopPools(context.Context, int, float64) ([]domain.PoolRecord, error) {
	f.calls++
	return f.pools, f.err
}

// staticOracle answers every symbol with the same dollar price.
type staticOracle struct{ price float64 }

func (o staticOracle) Price(ctx context.Context, symbol string) domain.PriceQuote {
	return o.Prices(ctx, []string{symbol})[domain.NormalizeSymbol(symbol)]
}

func (o staticOracle) Prices(_ context.Context, symbols []string) map[string]domain.PriceQuote {
	out := make(map[string]domain.PriceQuote, len(symbols))
	for _, s := range symbols {
		key := domain.NormalizeSymbol(s)
		out[key] = domain.PriceQuote{Symbol: key, Value: o.price, Known: true}
	}
	return out
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestOrchestrator(fetchers ...domain.PoolFetcher) *Orchestrator {
	calculator := calc.New(staticOracle{price: 1}, testLogger())
	return NewOrchestrator(fetchers, calculator, 0, 0, testLogger())
}

func makePools(protocol domain.Protocol, network domain.Network, n int) []domain.PoolRecord {
	out := make([]domain.PoolRecord, n)
	for i := range out {
		out[i] = domain.PoolRecord{
			Protocol: protocol,
			Network:  network,
			Address:  fmt.Sprintf("0x%s-%d", protocol, i),
			Tokens:   []domain.Token{{Symbol: "USDC", Reserve: 100}, {Symbol: "USDT", Reserve: 100}},
			TVLUSD:   domain.Known(float64((i + 1) * 1_000_000)),
		}
	}
	return out
}

func TestRunGroupsAndSortsByTVL(t *testing.T) {
	o := newTestOrchestrator(
		&fakeFetcher{
			protocol: domain.ProtocolCurve,
			network:  domain.NetworkEthereum,
			pools:    makePools(domain.ProtocolCurve, domain.NetworkEthereum, 3),
		},
		&fakeFetcher{
			protocol: domain.ProtocolSushiSwap,
			network:  domain.NetworkEthereum,
			pools:    makePools(domain.ProtocolSushiSwap, domain.NetworkEthereum, 2),
		},
	)

	report, err := o.Run(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, StateDone, o.State())
	assert.NotEmpty(t, report.RunID)
	assert.False(t, report.FinishedAt.Before(report.StartedAt))

	require.Len(t, report.ByProtocol, 2)
	curve := report.ByProtocol[domain.ProtocolCurve]
	require.Len(t, curve, 3)
	for i := 1; i < len(curve); i++ {
		assert.GreaterOrEqual(t, curve[i-1].TVLUSD, curve[i].TVLUSD)
	}
	assert.Len(t, report.Pools(), 5)
	assert.Empty(t, report.Dropped)
}

func TestRunRequestFiltersFetchers(t *testing.T) {
	curve := &fakeFetcher{
		protocol: domain.ProtocolCurve,
		network:  domain.NetworkEthereum,
		pools:    makePools(domain.ProtocolCurve, domain.NetworkEthereum, 1),
	}
	pancake := &fakeFetcher{
		protocol: domain.ProtocolPancakeSwap,
		network:  domain.NetworkBSC,
		pools:    makePools(domain.ProtocolPancakeSwap, domain.NetworkBSC, 1),
	}
	o := newTestOrchestrator(curve, pancake)

	report, err := o.Run(context.Background(), Request{
		Protocols: []domain.Protocol{domain.ProtocolCurve},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, curve.calls)
	assert.Zero(t, pancake.calls)
	assert.Len(t, report.Pools(), 1)
}

func TestRunNoMatchingFetchers(t *testing.T) {
	o := newTestOrchestrator(&fakeFetcher{
		protocol: domain.ProtocolCurve,
		network:  domain.NetworkEthereum,
	})

	_, err := o.Run(context.Background(), Request{
		Networks: []domain.Network{domain.NetworkBSC},
	})
	assert.ErrorIs(t, err, domain.ErrNoFetchers)
	assert.Equal(t, StateError, o.State())
}

func TestRunSkipsFailedProvider(t *testing.T) {
	o := newTestOrchestrator(
		&fakeFetcher{
			protocol: domain.ProtocolUniswapV3,
			network:  domain.NetworkEthereum,
			err:      errors.New("all sources exhausted"),
		},
		&fakeFetcher{
			protocol: domain.ProtocolCurve,
			network:  domain.NetworkEthereum,
			pools:    makePools(domain.ProtocolCurve, domain.NetworkEthereum, 2),
		},
	)

	report, err := o.Run(context.Background(), Request{})
	require.NoError(t, err)

	assert.Len(t, report.Pools(), 2)
	require.Len(t, report.Dropped, 1)
	drop := report.Dropped[0]
	assert.Equal(t, domain.ProtocolUniswapV3, drop.Protocol)
	assert.Equal(t, "collect", drop.Phase)
	assert.Contains(t, drop.Reason, "all sources exhausted")
}

func TestRunDropsUncomputablePoolsWithoutFailingBatch(t *testing.T) {
	pools := makePools(domain.ProtocolCurve, domain.NetworkEthereum, 10)
	pools[3].Tokens = nil // rejected by the calculator

	o := newTestOrchestrator(&fakeFetcher{
		protocol: domain.ProtocolCurve,
		network:  domain.NetworkEthereum,
		pools:    pools,
	})

	report, err := o.Run(context.Background(), Request{})
	require.NoError(t, err)

	assert.Len(t, report.Pools(), 9)
	require.Len(t, report.Dropped, 1)
	drop := report.Dropped[0]
	assert.Equal(t, pools[3].Address, drop.Address)
	assert.Equal(t, "compute", drop.Phase)
}

func TestRunCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fetcher := &fakeFetcher{
		protocol: domain.ProtocolCurve,
		network:  domain.NetworkEthereum,
		err:      context.Canceled,
	}
	o := newTestOrchestrator(fetcher)

	_, err := o.Run(ctx, Request{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateError, o.State())
}

func TestStateTransitionsStartIdle(t *testing.T) {
	o := newTestOrchestrator(&fakeFetcher{
		protocol: domain.ProtocolCurve,
		network:  domain.NetworkEthereum,
	})
	assert.Equal(t, StateIdle, o.State())
}
