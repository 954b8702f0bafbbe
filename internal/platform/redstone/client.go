// Package redstone is a client for the RedStone oracle cache service, which
// serves token spot prices keyed by upper-cased symbol.
package redstone

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/defilabs/poolscan/internal/domain"
)

// DefaultBaseURL is RedStone's public cache service endpoint.
const DefaultBaseURL = "https://cache-service.redstone.finance"

// Client fetches spot prices from the RedStone cache service.
type Client struct {
	baseURL    string
	provider   string
	httpClient *http.Client
}

// NewClient creates a RedStone client. An empty baseURL selects the public
// cache service.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		provider:   "redstone",
		httpClient: &http.Client{Timeout: timeout},
	}
}

// priceEntry is one symbol's quote in the /prices response.
type priceEntry struct {
	Value float64 `json:"value"`
}

// FetchPrices looks up USD prices for the given symbols in one request.
// The returned map is keyed by upper-cased symbol and contains only symbols
// the feed had data for; symbols without quotes are simply absent.
func (c *Client) FetchPrices(ctx context.Context, symbols []string) (map[string]float64, error) {
	if len(symbols) == 0 {
		return map[string]float64{}, nil
	}

	upper := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if norm := domain.NormalizeSymbol(s); norm != "" {
			upper = append(upper, norm)
		}
	}

	q := url.Values{}
	q.Set("symbols", strings.Join(upper, ","))
	q.Set("provider", c.provider)
	reqURL := c.baseURL + "/prices?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("redstone: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("redstone: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("redstone: %w", &domain.StatusError{URL: c.baseURL + "/prices", Status: resp.StatusCode})
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("redstone: read response: %w", err)
	}

	var payload map[string]priceEntry
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("redstone: decode response: %w", err)
	}

	prices := make(map[string]float64, len(payload))
	for _, sym := range upper {
		if entry, ok := payload[sym]; ok {
			prices[sym] = entry.Value
		}
	}
	return prices, nil
}

// Compile-time interface check.
var _ domain.PriceSource = (*Client)(nil)
