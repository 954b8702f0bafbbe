package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defilabs/poolscan/internal/domain"
)

func TestKeyNamespacing(t *testing.T) {
	assert.Equal(t, "poolscan:quote:WETH", key("quote", "WETH"))
	assert.Equal(t, "poolscan:run", key("run"))
}

func TestQuoteKeyNormalizesSymbol(t *testing.T) {
	assert.Equal(t, "poolscan:quote:WETH", quoteKey("weth"))
	assert.Equal(t, quoteKey("USDC"), quoteKey(" usdc "))
}

func TestSetSkipsUnknownQuote(t *testing.T) {
	// An unknown quote never reaches the server, so no connection is needed.
	qc := NewQuoteCache(&Client{})

	err := qc.Set(context.Background(), domain.PriceQuote{
		Symbol:    "WETH",
		FetchedAt: time.Now(),
	}, time.Minute)
	require.NoError(t, err)
}
