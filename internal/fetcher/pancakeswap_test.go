package fetcher

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defilabs/poolscan/internal/domain"
	"github.com/defilabs/poolscan/internal/platform/defillama"
	"github.com/defilabs/poolscan/internal/platform/pancakeapi"
	"github.com/defilabs/poolscan/internal/platform/subgraph"
	"github.com/defilabs/poolscan/internal/ratelimit"
	"github.com/defilabs/poolscan/internal/retry"
)

func newPancakeFetcher(t *testing.T, apiURL, graphURL string) *PancakeSwap {
	t.Helper()
	return NewPancakeSwap(
		domain.NetworkBSC,
		pancakeapi.NewClient(apiURL, 5*time.Second),
		subgraph.NewClient(graphURL, 5*time.Second),
		defillama.NewClient("http://unused.invalid", 5*time.Second),
		ratelimit.New(1000),
		retry.Policy{MaxRetries: 0, BaseDelay: time.Millisecond},
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
}

func TestPancakeSwapTopPoolsFromAPI(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"data": {
				"0xbnbusd": {"base_symbol": "WBNB", "base_id": "0xb", "quote_symbol": "BUSD", "quote_id": "0xq", "reserve_USD": "8000000", "volume_USD": "500000"},
				"0xtiny":   {"base_symbol": "CAKE", "base_id": "0xc", "quote_symbol": "WBNB", "quote_id": "0xb", "reserve_USD": "50000", "volume_USD": "1000"}
			}
		}`)
	}))
	defer api.Close()

	f := newPancakeFetcher(t, api.URL, "http://unused.invalid")

	got, err := f.TopPools(context.Background(), 10, 100_000)
	require.NoError(t, err)
	require.Len(t, got, 1)

	rec := got[0]
	assert.Equal(t, "0xbnbusd", rec.Address)
	assert.Equal(t, "WBNB/BUSD", rec.Name)
	assert.Equal(t, 8_000_000.0, rec.TVLUSD.Or(0))
	assert.Equal(t, 500_000.0, rec.Volume24h.Or(0))
	assert.InDelta(t, 1250.0, rec.Fees24h.Or(0), 1e-9) // 500k at 0.25%
	assert.Zero(t, rec.Tokens[0].Reserve)
}

func TestPancakeSwapFallsThroughToSubgraph(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer api.Close()

	graph := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"data": {
				"pairs": [
					{
						"id": "0xsub",
						"token0": {"id": "0xb", "symbol": "WBNB", "decimals": "18"},
						"token1": {"id": "0xq", "symbol": "BUSD", "decimals": "18"},
						"reserve0": "10000",
						"reserve1": "3000000",
						"reserveUSD": "6000000"
					}
				]
			}
		}`)
	}))
	defer graph.Close()

	f := newPancakeFetcher(t, api.URL, graph.URL)

	got, err := f.TopPools(context.Background(), 10, 100_000)
	require.NoError(t, err)
	require.Len(t, got, 1)

	rec := got[0]
	assert.Equal(t, "0xsub", rec.Address)
	assert.Equal(t, 10_000.0, rec.Tokens[0].Reserve)
	// The pair entity carries no daily figures on this tier.
	assert.False(t, rec.Volume24h.Valid)
	assert.False(t, rec.Fees24h.Valid)
}
