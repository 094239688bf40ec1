package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	defaultMaxRetries     = 5
	defaultInitialBackoff = 5 * time.Second
	defaultMaxBackoff     = 2 * time.Minute
	defaultAttemptTimeout = 45 * time.Second
)

// APIError is a non-2xx reply from the provider.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("openai status %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether the failure is worth another attempt:
// throttling (429) and server-side errors (5xx). Other statuses are fatal.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// ChatMessage is one conversation turn. Content is either a plain string or
// a part list (text + image reference) for the vision path.
type ChatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// TextPart and ImagePart are the multimodal content elements.
type TextPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type ImagePart struct {
	Type     string   `json:"type"`
	ImageURL ImageURL `json:"image_url"`
}

type ImageURL struct {
	URL string `json:"url"`
}

// ChatRequest is one chat-completions call. AttemptTimeout bounds each
// individual attempt, independent of the retry budget.
type ChatRequest struct {
	Model          string
	Messages       []ChatMessage
	MaxTokens      int
	AttemptTimeout time.Duration
}

// OpenAIClient calls the chat-completions endpoint of an OpenAI-compatible
// provider, retrying retryable failures with exponential backoff.
type OpenAIClient struct {
	baseURL        string
	apiKey         string
	httpClient     *http.Client
	maxRetries     uint64
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// ClientOpts configures an OpenAIClient. Zero values fall back to the
// production defaults (5 retries, 5s initial backoff capped at 2m).
type ClientOpts struct {
	BaseURL        string
	APIKey         string
	HTTPClient     *http.Client
	MaxRetries     uint64
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func NewOpenAIClient(opts ClientOpts) *OpenAIClient {
	c := &OpenAIClient{
		baseURL:        opts.BaseURL,
		apiKey:         opts.APIKey,
		httpClient:     opts.HTTPClient,
		maxRetries:     opts.MaxRetries,
		initialBackoff: opts.InitialBackoff,
		maxBackoff:     opts.MaxBackoff,
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	if c.maxRetries == 0 {
		c.maxRetries = defaultMaxRetries
	}
	if c.initialBackoff == 0 {
		c.initialBackoff = defaultInitialBackoff
	}
	if c.maxBackoff == 0 {
		c.maxBackoff = defaultMaxBackoff
	}
	return c
}

// Chat issues the request, retrying 429/5xx/timeout failures up to the
// retry budget. Backoff waits double from the initial interval up to the
// cap, with no jitter, so they never decrease across attempts. Returns the
// raw reply body; after exhaustion a single aggregated error wraps the last
// failure.
func (c *OpenAIClient) Chat(ctx context.Context, req ChatRequest) ([]byte, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initialBackoff
	b.MaxInterval = c.maxBackoff
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0 // bounded by retry count, not wall clock

	attempt := 0
	var raw []byte
	op := func() error {
		attempt++
		body, err := c.attempt(ctx, req)
		if err != nil {
			if !retryable(err) {
				return backoff.Permanent(err)
			}
			slog.Warn("provider call failed, will retry",
				"model", req.Model, "attempt", attempt, "error", err)
			return err
		}
		raw = body
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(b, c.maxRetries), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, fmt.Errorf("chat completion failed after %d attempts: %w", attempt, err)
	}
	return raw, nil
}

// attempt performs a single call bounded by the per-attempt timeout.
func (c *OpenAIClient) attempt(ctx context.Context, req ChatRequest) ([]byte, error) {
	timeout := req.AttemptTimeout
	if timeout == 0 {
		timeout = defaultAttemptTimeout
	}
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	payload := map[string]any{
		"model":       req.Model,
		"messages":    req.Messages,
		"max_tokens":  req.MaxTokens,
		"temperature": 0,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(actx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("openai request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("openai read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return raw, nil
}

// retryable classifies a failed attempt: 429, 5xx, or a transport-level
// timeout. Everything else — other 4xx, connection failures, cancellation —
// is fatal.
func retryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
