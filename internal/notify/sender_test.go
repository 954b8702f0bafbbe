package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTelegramSenderPostsMessage(t *testing.T) {
	var gotPath string
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	s := NewTelegramSender("token123", "chat42")
	s.apiBase = srv.URL

	require.NoError(t, s.Send(context.Background(), "Pool scan done", "Pools: 12"))

	assert.Equal(t, "/bottoken123/sendMessage", gotPath)
	assert.Equal(t, "chat42", payload["chat_id"])
	assert.Equal(t, "Markdown", payload["parse_mode"])
	assert.Equal(t, true, payload["disable_web_page_preview"])
	assert.Equal(t, "*Pool scan done*\nPools: 12", payload["text"])
}

func TestTelegramSenderUnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer srv.Close()

	s := NewTelegramSender("token", "chat")
	s.apiBase = srv.URL

	err := s.Send(context.Background(), "title", "body")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telegram: unexpected status 400")
}

func TestDiscordSenderPostsMessage(t *testing.T) {
	var payload map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s := NewDiscordSender(srv.URL)
	require.NoError(t, s.Send(context.Background(), "Pool scan done", "Pools: 12"))

	assert.Equal(t, "poolscan", payload["username"])
	assert.Equal(t, "**Pool scan done**\nPools: 12", payload["content"])
}

func TestClipMessage(t *testing.T) {
	assert.Equal(t, "short", clipMessage("short", 100))

	long := clipMessage(strings.Repeat("x", 3*discordMaxLen), discordMaxLen)
	assert.Len(t, long, discordMaxLen)
	assert.True(t, strings.HasSuffix(long, "[truncated]"))
}
