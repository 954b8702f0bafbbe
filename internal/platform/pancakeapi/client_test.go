package pancakeapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defilabs/poolscan/internal/domain"
)

func TestPairsSortedByReserve(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/pairs", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"data": {
				"0xsmall": {"base_symbol": "CAKE", "quote_symbol": "WBNB", "reserve_USD": "250000", "volume_USD": "10000", "base_volume": "100", "quote_volume": "50"},
				"0xbig":   {"base_symbol": "WBNB", "quote_symbol": "BUSD", "reserve_USD": "9000000", "volume_USD": "400000", "base_volume": "2000", "quote_volume": "800000"},
				"0xmid":   {"base_symbol": "ETH", "quote_symbol": "WBNB", "reserve_USD": "1200000", "volume_USD": "90000", "base_volume": "300", "quote_volume": "1500"}
			}
		}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)

	pairs, err := c.Pairs(context.Background())
	require.NoError(t, err)
	require.Len(t, pairs, 3)

	assert.Equal(t, "0xbig", pairs[0].Address)
	assert.Equal(t, "0xmid", pairs[1].Address)
	assert.Equal(t, "0xsmall", pairs[2].Address)
	assert.Equal(t, "WBNB", pairs[0].BaseSymbol)
	assert.Equal(t, "9000000", pairs[0].ReserveUSD)
}

func TestPairsUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)

	_, err := c.Pairs(context.Background())
	require.Error(t, err)

	var statusErr *domain.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.Status)
}

func TestParseAmountLenient(t *testing.T) {
	assert.Equal(t, 1234.5, parseAmount("1234.5"))
	assert.Zero(t, parseAmount("n/a"))
	assert.Zero(t, parseAmount(""))
}
