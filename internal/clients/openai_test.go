package clients

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, server *httptest.Server) *OpenAIClient {
	t.Helper()

	return NewOpenAIClient(ClientOpts{
		BaseURL:        server.URL,
		APIKey:         "test-key",
		HTTPClient:     server.Client(),
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	})
}

func TestChat_SendsWireRequest(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-4o-mini", body["model"])
		assert.Equal(t, float64(200), body["max_tokens"])
		assert.Equal(t, float64(0), body["temperature"])

		w.Write([]byte(`{"choices":[{"message":{"content":"[\"rice\"]"}}]}`)) //nolint:errcheck
	}))
	defer server.Close()

	client := newTestClient(t, server)
	raw, err := client.Chat(context.Background(), ChatRequest{
		Model:     "gpt-4o-mini",
		Messages:  []ChatMessage{{Role: "user", Content: "Dish: pilaf"}},
		MaxTokens: 200,
	})

	require.NoError(t, err)
	assert.Contains(t, string(raw), "rice")
}

func TestChat_Retries500ThenSucceeds(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 3 {
			http.Error(w, "upstream exploded", http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`)) //nolint:errcheck
	}))
	defer server.Close()

	client := newTestClient(t, server)
	raw, err := client.Chat(context.Background(), ChatRequest{Model: "m", MaxTokens: 10})

	require.NoError(t, err)
	assert.Contains(t, string(raw), "ok")
	assert.Equal(t, int32(4), calls.Load(), "three retries after the initial attempt")
}

func TestChat_404IsNeverRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "no such model", http.StatusNotFound)
	}))
	defer server.Close()

	client := newTestClient(t, server)
	_, err := client.Chat(context.Background(), ChatRequest{Model: "m"})

	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.False(t, apiErr.Retryable())
}

func TestChat_429ExhaustsBudgetWithAggregatedError(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewOpenAIClient(ClientOpts{
		BaseURL:        server.URL,
		APIKey:         "k",
		HTTPClient:     server.Client(),
		MaxRetries:     2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	})
	_, err := client.Chat(context.Background(), ChatRequest{Model: "m"})

	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load(), "initial attempt plus two retries")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.True(t, apiErr.Retryable())
}

func TestChat_AttemptTimeoutIsRetryable(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			time.Sleep(200 * time.Millisecond)
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`)) //nolint:errcheck
	}))
	defer server.Close()

	client := NewOpenAIClient(ClientOpts{
		BaseURL:        server.URL,
		APIKey:         "k",
		HTTPClient:     server.Client(),
		MaxRetries:     2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	})
	raw, err := client.Chat(context.Background(), ChatRequest{
		Model:          "m",
		AttemptTimeout: 50 * time.Millisecond,
	})

	require.NoError(t, err)
	assert.Contains(t, string(raw), "ok")
	assert.Equal(t, int32(2), calls.Load())
}

func TestChat_CallerCancellationStopsRetrying(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "flaky", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewOpenAIClient(ClientOpts{
		BaseURL:        server.URL,
		APIKey:         "k",
		HTTPClient:     server.Client(),
		InitialBackoff: time.Minute, // first backoff wait outlives the ctx
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Chat(ctx, ChatRequest{Model: "m"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled))
}
