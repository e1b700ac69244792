// Package jina provides a client for the Jina AI embeddings API.
package jina

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/rotisserie/eris"
)

// DefaultModel is the embedding model used when none is configured.
const DefaultModel = "jina-embeddings-v3"

// Client defines the Jina AI embedding operations.
type Client interface {
	// Embed returns one vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbeddingRequest is the body sent to the embeddings endpoint.
type EmbeddingRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Task       string   `json:"task,omitempty"`
	Dimensions int      `json:"dimensions,omitempty"`
}

// EmbeddingResponse is the parsed embeddings API response.
type EmbeddingResponse struct {
	Model string          `json:"model"`
	Data  []EmbeddingData `json:"data"`
	Usage EmbeddingUsage  `json:"usage"`
}

// EmbeddingData holds a single embedding.
type EmbeddingData struct {
	Index     int       `json:"index"`
	Embedding []float32 `json:"embedding"`
}

// EmbeddingUsage tracks token consumption.
type EmbeddingUsage struct {
	TotalTokens int `json:"total_tokens"`
}

// StatusError is returned for a non-200 response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("jina: unexpected status %d: %s", e.StatusCode, e.Body)
}

// Option configures the Jina client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithModel sets the embedding model.
func WithModel(model string) Option {
	return func(c *httpClient) {
		if model != "" {
			c.model = model
		}
	}
}

// WithDimensions truncates embeddings to n dimensions.
func WithDimensions(n int) Option {
	return func(c *httpClient) {
		c.dimensions = n
	}
}

// WithMaxAttempts sets how many times a retryable status is attempted.
func WithMaxAttempts(n int) Option {
	return func(c *httpClient) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

type httpClient struct {
	apiKey      string
	baseURL     string
	model       string
	dimensions  int
	maxAttempts int
	backoff     time.Duration
	http        *http.Client
}

// NewClient creates a new Jina AI embeddings client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:      apiKey,
		baseURL:     "https://api.jina.ai",
		model:       DefaultModel,
		maxAttempts: 3,
		backoff:     time.Second,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// retryableStatusCode returns true if the HTTP status code should trigger a retry.
func retryableStatusCode(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusInternalServerError ||
		code == http.StatusBadGateway ||
		code == http.StatusServiceUnavailable
}

// retryDo posts payload with exponential backoff on transient statuses.
// Returns the response body and status code of the last attempt.
func (c *httpClient) retryDo(ctx context.Context, url string, payload []byte) ([]byte, int, error) {
	backoff := c.backoff

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return nil, 0, eris.Wrap(err, "jina: create request")
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			if attempt < c.maxAttempts {
				select {
				case <-ctx.Done():
					return nil, 0, ctx.Err()
				case <-time.After(backoff):
				}
				backoff *= 2
				continue
			}
			return nil, 0, lastErr
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return nil, resp.StatusCode, eris.Wrap(readErr, "jina: read response body")
		}

		if retryableStatusCode(resp.StatusCode) && attempt < c.maxAttempts {
			select {
			case <-ctx.Done():
				return nil, 0, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			continue
		}

		return body, resp.StatusCode, nil
	}

	return nil, 0, lastErr
}

func (c *httpClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	payload, err := json.Marshal(EmbeddingRequest{
		Model:      c.model,
		Input:      texts,
		Task:       "text-matching",
		Dimensions: c.dimensions,
	})
	if err != nil {
		return nil, eris.Wrap(err, "jina: marshal request")
	}

	body, statusCode, err := c.retryDo(ctx, c.baseURL+"/v1/embeddings", payload)
	if err != nil {
		return nil, eris.Wrap(err, "jina: request failed")
	}
	if statusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: statusCode, Body: string(body)}
	}

	var result EmbeddingResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "jina: unmarshal response")
	}
	if len(result.Data) != len(texts) {
		return nil, eris.Errorf("jina: got %d embeddings for %d inputs", len(result.Data), len(texts))
	}

	sort.Slice(result.Data, func(i, j int) bool { return result.Data[i].Index < result.Data[j].Index })
	out := make([][]float32, len(result.Data))
	for i, d := range result.Data {
		out[i] = d.Embedding
	}
	return out, nil
}
