// Package subgraph is a minimal GraphQL-over-HTTP client for The Graph style
// indexers (hosted service, decentralized gateway, and community mirrors).
package subgraph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/defilabs/poolscan/internal/domain"
)

// Client posts GraphQL queries to a single subgraph endpoint.
type Client struct {
	url        string
	httpClient *http.Client
}

// NewClient creates a Client for the given subgraph endpoint.
func NewClient(url string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// URL returns the configured endpoint, used in log fields.
func (c *Client) URL() string { return c.url }

// graphqlRequest is the standard GraphQL request envelope.
type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// graphqlResponse is the standard GraphQL response envelope.
type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// Query executes a GraphQL query and unmarshals the response's "data" field
// into out. Non-200 responses and GraphQL-level errors are returned as
// errors so callers can fall through to the next data source.
func (c *Client) Query(ctx context.Context, query string, variables map[string]any, out any) error {
	reqBody := graphqlRequest{Query: query, Variables: variables}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("subgraph: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("subgraph: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("subgraph: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("subgraph: %w", &domain.StatusError{URL: c.url, Status: resp.StatusCode})
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("subgraph: read response: %w", err)
	}

	var gqlResp graphqlResponse
	if err := json.Unmarshal(body, &gqlResp); err != nil {
		return fmt.Errorf("subgraph: decode response: %w", err)
	}
	if len(gqlResp.Errors) > 0 {
		return fmt.Errorf("subgraph: graphql error: %s", gqlResp.Errors[0].Message)
	}

	if err := json.Unmarshal(gqlResp.Data, out); err != nil {
		return fmt.Errorf("subgraph: decode data: %w", err)
	}
	return nil
}
