package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLokiClientDisabledWithoutCredentials(t *testing.T) {
	c := NewLokiClient("http://loki", "", "key")
	assert.False(t, c.enabled)
	c.Push(nil, map[string]any{"x": 1})
	c.Flush(time.Second)
}

func TestLokiPush(t *testing.T) {
	var (
		mu  sync.Mutex
		got lokiPushRequest
		usr string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, "/loki/api/v1/push", r.URL.Path)
		usr, _, _ = r.BasicAuth()
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	prev := defaultClient
	defaultClient = NewLokiClient(srv.URL, "user", "key")
	t.Cleanup(func() { defaultClient = prev })

	LogToolCall(context.Background(), "req-1", "work", "get_event", 42, "error", "boom")
	Flush(5 * time.Second)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "user", usr)
	require.Len(t, got.Streams, 1)
	s := got.Streams[0]
	assert.Equal(t, "get_event", s.Stream["tool"])
	assert.Equal(t, "error", s.Stream["level"])
	require.Len(t, s.Values, 1)

	var data map[string]any
	require.NoError(t, json.Unmarshal([]byte(s.Values[0][1]), &data))
	assert.Equal(t, "req-1", data["request_id"])
	assert.Equal(t, "work", data["profile"])
	assert.Equal(t, "boom", data["error"])
}

func TestRequestIDContext(t *testing.T) {
	id := NewRequestID()
	assert.Len(t, id, 36)
	ctx := WithRequestID(context.Background(), id)
	assert.Equal(t, id, RequestID(ctx))
	assert.Empty(t, RequestID(context.Background()))
}
