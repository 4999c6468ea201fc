package streaming

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/howard-nolan/gemini-client/internal/auth"
)

func newTestStrategy(t *testing.T, baseURL string) auth.Strategy {
	t.Helper()
	s, err := auth.NewStrategy(auth.Config{Type: auth.TypeGemini, Credentials: auth.APIKeyCredentials{Key: "k"}})
	require.NoError(t, err)
	return &fixedBaseURLStrategy{Strategy: s, base: baseURL}
}

// fixedBaseURLStrategy overrides BuildBaseURL so tests can point at an
// httptest server instead of the real Gemini host.
type fixedBaseURLStrategy struct {
	auth.Strategy
	base string
}

func (f *fixedBaseURLStrategy) BuildBaseURL() string { return f.base }

func TestTransport_Open_DeliversEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "data: {\"a\":1}\n\n")
		w.(http.Flusher).Flush()
		fmt.Fprint(w, "data: [DONE]\n\n")
		w.(http.Flusher).Flush()
	}))
	defer srv.Close()

	tr := NewTransport(newTestStrategy(t, srv.URL), "gemini", nil, srv.Client())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	events, err := tr.Open(ctx, "models/gemini-2.0-flash:streamGenerateContent", map[string]any{})
	require.NoError(t, err)

	var got []map[string]any
	for ev := range events {
		if m, ok := ev.Data.(map[string]any); ok {
			got = append(got, m)
		}
	}

	require.Len(t, got, 2)
	assert.Equal(t, float64(1), got[0]["a"])
	assert.Equal(t, true, got[1]["done"])
}

func TestTransport_Open_4xxNotRetried(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"message":"bad request"}}`)
	}))
	defer srv.Close()

	tr := NewTransport(newTestStrategy(t, srv.URL), "gemini", nil, srv.Client())
	tr.Retry = RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}

	_, err := tr.Open(context.Background(), "models/gemini-2.0-flash:streamGenerateContent", map[string]any{})
	require.Error(t, err)
	assert.Equal(t, 1, attempts, "a 4xx must not be retried")
}

func TestTransport_Open_MidStreamReadErrorSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "data: {\"a\":1}\n\n")
		w.(http.Flusher).Flush()

		hj, ok := w.(http.Hijacker)
		require.True(t, ok)
		conn, _, err := hj.Hijack()
		require.NoError(t, err)
		conn.Close()
	}))
	defer srv.Close()

	tr := NewTransport(newTestStrategy(t, srv.URL), "gemini", nil, srv.Client())

	events, err := tr.Open(context.Background(), "models/gemini-2.0-flash:streamGenerateContent", map[string]any{})
	require.NoError(t, err)

	var gotErr error
	for ev := range events {
		if ev.Err != nil {
			gotErr = ev.Err
		}
	}

	require.Error(t, gotErr, "expected a terminal error event after the connection dropped mid-stream")
}

func TestTransport_Open_5xxRetriedThenFails(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	tr := NewTransport(newTestStrategy(t, srv.URL), "gemini", nil, srv.Client())
	tr.Retry = RetryPolicy{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}

	_, err := tr.Open(context.Background(), "models/gemini-2.0-flash:streamGenerateContent", map[string]any{})
	require.Error(t, err)
	assert.Equal(t, 3, attempts, "expected 1 initial attempt + 2 retries")
}
