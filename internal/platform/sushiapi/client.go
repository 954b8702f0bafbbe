// Package sushiapi is a client for the community SushiSwap pools API, used
// as the secondary data source when the exchange subgraph is unavailable.
package sushiapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/defilabs/poolscan/internal/domain"
)

// PoolToken is one side of a pair in the API payload.
type PoolToken struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

// Pool is the raw per-pool payload from /pools/{network}.
type Pool struct {
	Address   string    `json:"address"`
	Token0    PoolToken `json:"token0"`
	Token1    PoolToken `json:"token1"`
	TVL       float64   `json:"tvl"`
	Volume24h float64   `json:"volume24h"`
	Fees24h   float64   `json:"fees24h"`
}

// Client fetches pool summaries from the SushiSwap API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the given API base
// (e.g. "https://app.sushi.com/api").
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Pools fetches the pool listing for one network.
func (c *Client) Pools(ctx context.Context, network string) ([]Pool, error) {
	reqURL := c.baseURL + "/pools/" + network

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("sushiapi: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sushiapi: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sushiapi: %w", &domain.StatusError{URL: reqURL, Status: resp.StatusCode})
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("sushiapi: read response: %w", err)
	}

	var pools []Pool
	if err := json.Unmarshal(body, &pools); err != nil {
		return nil, fmt.Errorf("sushiapi: decode response: %w", err)
	}
	return pools, nil
}
