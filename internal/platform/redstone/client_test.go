package redstone

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

func TestFetchPrices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/prices", r.URL.Path)
		assert.Equal(t, "ETH,USDC,FOO", r.URL.Query().Get("symbols"))
		assert.Equal(t, "redstone", r.URL.Query().Get("provider"))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"ETH": {"value": 3000.5}, "USDC": {"value": 1.0001}}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)

	prices, err := c.FetchPrices(context.Background(), []string{"eth", " usdc", "FOO"})
	require.NoError(t, err)

	assert.Equal(t, 3000.5, prices["ETH"])
	assert.Equal(t, 1.0001, prices["USDC"])
	_, ok := prices["FOO"]
	assert.False(t, ok) // no quote means absent, not zero
}

func TestFetchPricesEmptyInput(t *testing.T) {
	c := NewClient("http://unused.invalid", time.Second)

	prices, err := c.FetchPrices(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, prices)
}

func TestFetchPricesUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)

	_, err := c.FetchPrices(context.Background(), []string{"ETH"})
	require.Error(t, err)

	var statusErr *domain.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusTooManyRequests, statusErr.Status)
}
