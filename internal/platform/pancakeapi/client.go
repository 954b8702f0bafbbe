// Package pancakeapi is a client for the PancakeSwap info API, which serves
// a summary of every pair on BSC keyed by pair address.
package pancakeapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/defilabs/poolscan/internal/domain"
)

// Pair is the raw per-pair payload from /pairs. Amounts arrive as strings.
type Pair struct {
	Address     string
	BaseID      string `json:"base_id"`
	BaseSymbol  string `json:"base_symbol"`
	QuoteID     string `json:"quote_id"`
	QuoteSymbol string `json:"quote_symbol"`
	BaseVolume  string `json:"base_volume"`
	QuoteVolume string `json:"quote_volume"`
	VolumeUSD   string `json:"volume_USD"`
	ReserveUSD  string `json:"reserve_USD"`
}

type pairsResponse struct {
	Data map[string]Pair `json:"data"`
}

// Client fetches pair summaries from the PancakeSwap info API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the given API base
// (e.g. "https://api.pancakeswap.info/api/v2").
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Pairs fetches all pairs, sorted by USD reserve descending so callers can
// truncate to the top of the book.
func (c *Client) Pairs(ctx context.Context) ([]Pair, error) {
	reqURL := c.baseURL + "/pairs"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("pancakeapi: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pancakeapi: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pancakeapi: %w", &domain.StatusError{URL: reqURL, Status: resp.StatusCode})
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("pancakeapi: read response: %w", err)
	}

	var payload pairsResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("pancakeapi: decode response: %w", err)
	}

	pairs := make([]Pair, 0, len(payload.Data))
	for addr, p := range payload.Data {
		p.Address = addr
		pairs = append(pairs, p)
	}
	sort.Slice(pairs, func(i, j int) bool {
		return parseAmount(pairs[i].ReserveUSD) > parseAmount(pairs[j].ReserveUSD)
	})
	return pairs, nil
}

func parseAmount(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
