package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

// newTestClient points a client at the fake provider with the request
// limiter effectively disabled.
func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := NewClient(Config{APIKey: "test-key", BaseURL: baseURL, Timeout: 5 * time.Second})
	require.NoError(t, err)
	c.limiter = rate.NewLimiter(rate.Inf, 0)
	return c
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(Config{BaseURL: "http://localhost"})
	assert.Error(t, err)

	_, err = NewClient(Config{APIKey: "k"})
	assert.Error(t, err)
}

func TestComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req openAIRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req.Model)
		assert.False(t, req.Stream)
		assert.InDelta(t, 0.2, req.Temperature, 1e-9)

		fmt.Fprint(w, `{"id":"1","model":"gpt-4o-mini","choices":[{"index":0,"message":{"role":"assistant","content":"hello"},"finish_reason":"stop"}]}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	got, err := c.Complete(context.Background(), ChatRequest{
		Model:       "gpt-4o-mini",
		Messages:    []Message{{Role: "user", Content: "hi"}},
		Temperature: 0.2,
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", got)
}

func TestComplete_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"1","choices":[]}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.Complete(context.Background(), ChatRequest{Model: "m"})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestComplete_ProviderErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"rate limit exceeded","type":"requests","code":"429"}}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.Complete(context.Background(), ChatRequest{Model: "m"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API error (429)")
	assert.Contains(t, err.Error(), "rate limit exceeded")
}

func TestEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)

		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "text-embedding-3-small", req.Model)
		assert.Equal(t, []string{"tenant rights"}, req.Input)

		fmt.Fprint(w, `{"data":[{"index":0,"embedding":[0.1,0.2,0.3]}]}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	got, err := c.Embed(context.Background(), "text-embedding-3-small", "tenant rights")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, got)
}

func TestEmbed_EmptyData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[]}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.Embed(context.Background(), "m", "text")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestCompleteStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openAIRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"hel\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{},\"finish_reason\":\"stop\"}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	stream, err := c.CompleteStream(context.Background(), ChatRequest{Model: "m"})
	require.NoError(t, err)
	defer stream.Close()

	var parts []string
	for {
		delta, err := stream.Recv()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		parts = append(parts, delta)
	}
	assert.Equal(t, []string{"hel", "lo"}, parts)
}

func TestCompleteStream_OpenError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error":{"message":"backend down"}}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.CompleteStream(context.Background(), ChatRequest{Model: "m"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend down")
}
