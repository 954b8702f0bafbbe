package subgraph

import (
	"context"
	"encoding/json"
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

func TestQueryDecodesDataEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req struct {
			Query     string         `json:"query"`
			Variables map[string]any `json:"variables"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Contains(t, req.Query, "pairs")
		assert.EqualValues(t, 2, req.Variables["first"])

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"data": {"pairs": [{"id": "0x1"}, {"id": "0x2"}]}}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)

	var result struct {
		Pairs []struct {
			ID string `json:"id"`
		} `json:"pairs"`
	}
	err := c.Query(context.Background(), `query($first: Int!) { pairs(first: $first) { id } }`,
		map[string]any{"first": 2}, &result)
	require.NoError(t, err)
	require.Len(t, result.Pairs, 2)
	assert.Equal(t, "0x1", result.Pairs[0].ID)
}

func TestQueryGraphQLError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"errors": [{"message": "indexer behind"}]}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)

	err := c.Query(context.Background(), "query { pairs { id } }", nil, &struct{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "indexer behind")
}

func TestQueryHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)

	err := c.Query(context.Background(), "query { pairs { id } }", nil, &struct{}{})
	require.Error(t, err)

	var statusErr *domain.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadGateway, statusErr.Status)
	assert.Equal(t, srv.URL, statusErr.URL)
}
