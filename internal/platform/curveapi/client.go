// Package curveapi is a client for the Curve Finance pool API. The API
// returns every registered pool with its coin list, balances, fee, and
// amplification coefficient.
package curveapi

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

// Coin is one constituent of a Curve pool as reported by the API.
type Coin struct {
	Address     string      `json:"address"`
	Symbol      string      `json:"symbol"`
	Decimals    json.Number `json:"decimals"`
	PoolBalance json.Number `json:"poolBalance"`
}

// Pool is the raw per-pool payload from /getPools/all. Numeric fields arrive
// as strings or numbers depending on API version, hence json.Number.
type Pool struct {
	Address         string      `json:"address"`
	Name            string      `json:"name"`
	Symbol          string      `json:"symbol"`
	Coins           []Coin      `json:"coins"`
	TotalSupply     json.Number `json:"totalSupply"`
	VirtualPrice    json.Number `json:"virtualPrice"`
	Amplification   json.Number `json:"amplificationCoefficient"`
	Fee             json.Number `json:"fee"`
	USDTotal        float64     `json:"usdTotal"`
	Volume          json.Number `json:"volumeUSD"`
	IsMetaPool      bool        `json:"isMetaPool"`
	RegistryAddress string      `json:"registryAddress"`
	GaugeRewardsAPY json.Number `json:"gaugeCrvApy"`
}

type poolsResponse struct {
	Data struct {
		PoolData []Pool `json:"poolData"`
	} `json:"data"`
}

// Client fetches pools from one network's Curve API deployment.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Curve API client for the given base URL
// (e.g. "https://api.curve.fi/api").
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Pools fetches every pool registered with this deployment.
func (c *Client) Pools(ctx context.Context) ([]Pool, error) {
	reqURL := c.baseURL + "/getPools/all"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("curveapi: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("curveapi: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("curveapi: %w", &domain.StatusError{URL: reqURL, Status: resp.StatusCode})
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("curveapi: read response: %w", err)
	}

	var payload poolsResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("curveapi: decode response: %w", err)
	}
	return payload.Data.PoolData, nil
}
