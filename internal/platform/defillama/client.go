// Package defillama is a client for the DefiLlama yields aggregator. It is
// the last tier of every fallback chain: a cross-protocol pool listing
// filtered by project and chain tags.
package defillama

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

// DefaultBaseURL is the public yields API endpoint.
const DefaultBaseURL = "https://yields.llama.fi"

// Pool is the raw per-pool payload from /pools.
type Pool struct {
	Pool      string  `json:"pool"`
	Chain     string  `json:"chain"`
	Project   string  `json:"project"`
	Symbol    string  `json:"symbol"`
	TVLUSD    float64 `json:"tvlUsd"`
	APY       float64 `json:"apy"`
	APYBase   float64 `json:"apyBase"`
	APYReward float64 `json:"apyReward"`
}

type poolsResponse struct {
	Status string `json:"status"`
	Data   []Pool `json:"data"`
}

// Client fetches the aggregated pool listing.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a DefiLlama client. An empty baseURL selects the public
// endpoint.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// PoolsByProject fetches the full listing and returns pools whose project
// tag contains project (case-insensitive) on the given chain tag.
func (c *Client) PoolsByProject(ctx context.Context, project, chain string) ([]Pool, error) {
	reqURL := c.baseURL + "/pools"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("defillama: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("defillama: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("defillama: %w", &domain.StatusError{URL: reqURL, Status: resp.StatusCode})
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("defillama: read response: %w", err)
	}

	var payload poolsResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("defillama: decode response: %w", err)
	}

	project = strings.ToLower(project)
	matched := make([]Pool, 0, 64)
	for _, p := range payload.Data {
		if !strings.Contains(strings.ToLower(p.Project), project) {
			continue
		}
		if chain != "" && !strings.EqualFold(p.Chain, chain) {
			continue
		}
		matched = append(matched, p)
	}
	return matched, nil
}
