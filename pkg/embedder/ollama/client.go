// Package ollama implements the embedder.Provider interface against a local
// or remote Ollama server.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/GlitchInZen/graph-mem/pkg/embedder"
)

const defaultEndpoint = "http://localhost:11434"

// Config is the configuration for the Ollama embedder.
type Config struct {
	// Endpoint is the Ollama server base URL. Default http://localhost:11434.
	Endpoint string

	// Model is the embedding model name, for example nomic-embed-text.
	Model string

	// Dimensions overrides the dimensionality for models not in the known
	// model table.
	Dimensions int

	// Timeout bounds each HTTP request. Default 30s.
	Timeout time.Duration

	// Retry controls retries of transient failures.
	Retry embedder.RetryPolicy
}

// Client talks to Ollama's /api/embed endpoint.
type Client struct {
	endpoint   string
	model      string
	dimensions int
	retry      embedder.RetryPolicy
	httpClient *http.Client
}

var _ embedder.Provider = (*Client)(nil)

// NewClient creates an Ollama embedder client.
func NewClient(cfg *Config) (*Client, error) {
	if cfg.Model == "" {
		return nil, &embedder.Error{
			Kind:    embedder.KindMisconfigured,
			Adapter: "ollama",
			Err:     errors.New("model is required"),
		}
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	retry := cfg.Retry
	if retry.MaxAttempts == 0 {
		retry = embedder.DefaultRetryPolicy
	}

	return &Client{
		endpoint:   endpoint,
		model:      cfg.Model,
		dimensions: embedder.ModelDimensions(cfg.Model, cfg.Dimensions),
		retry:      retry,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type embedRequest struct {
	Model string      `json:"model"`
	Input interface{} `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed converts a single text to a vector.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.embed(ctx, text, 1)
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch converts multiple texts to vectors in one request. Servers that
// reject list inputs with a 400 are retried item by item.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	vecs, err := c.embed(ctx, texts, len(texts))
	if err == nil {
		return vecs, nil
	}

	var ee *embedder.Error
	if !errors.As(err, &ee) || ee.StatusCode != http.StatusBadRequest {
		return nil, err
	}

	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := c.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// embed posts one /api/embed request and validates the response shape.
func (c *Client) embed(ctx context.Context, input interface{}, want int) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{Model: c.model, Input: input})
	if err != nil {
		return nil, &embedder.Error{Kind: embedder.KindProvider, Adapter: "ollama", Err: err}
	}

	var result embedResponse
	err = c.retry.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/api/embed", bytes.NewReader(body))
		if err != nil {
			return &embedder.Error{Kind: embedder.KindProvider, Adapter: "ollama", Err: err}
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return classifyTransport(err)
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			return classifyStatus(resp)
		}
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return &embedder.Error{Kind: embedder.KindProvider, Adapter: "ollama", Err: err}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(result.Embeddings) != want {
		return nil, &embedder.Error{
			Kind:    embedder.KindLengthMismatch,
			Adapter: "ollama",
			Err:     fmt.Errorf("got %d embeddings, expected %d", len(result.Embeddings), want),
		}
	}
	return result.Embeddings, nil
}

// Dimensions returns the vector dimensionality.
func (c *Client) Dimensions() int {
	return c.dimensions
}

// Close releases the HTTP client's idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func classifyTransport(err error) error {
	kind := embedder.KindTransport
	if errors.Is(err, context.DeadlineExceeded) {
		kind = embedder.KindTimeout
	}
	var ne interface{ Timeout() bool }
	if errors.As(err, &ne) && ne.Timeout() {
		kind = embedder.KindTimeout
	}
	return &embedder.Error{Kind: kind, Adapter: "ollama", Err: err}
}

func classifyStatus(resp *http.Response) error {
	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	err := fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(payload))

	kind := embedder.KindProvider
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		kind = embedder.KindRateLimited
	case resp.StatusCode >= 500:
		// Server errors are transient; the retry policy gets a shot at them.
		kind = embedder.KindTransport
	}
	return &embedder.Error{Kind: kind, Adapter: "ollama", Err: err, StatusCode: resp.StatusCode}
}
