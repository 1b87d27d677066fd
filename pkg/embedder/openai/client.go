// Package openai implements the embedder.Provider interface on the OpenAI
// Embeddings API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"

	openai "github.com/sashabaranov/go-openai"

	"github.com/GlitchInZen/graph-mem/pkg/embedder"
)

// Config is the configuration for the OpenAI embedder.
type Config struct {
	// APIKey is the OpenAI API key. Required.
	APIKey string

	// Model is the embedding model name. Default text-embedding-3-small.
	Model string

	// BaseURL overrides the API base URL, for proxies and compatible servers.
	BaseURL string

	// Dimensions overrides the dimensionality for models not in the known
	// model table.
	Dimensions int

	// Retry controls retries of transient failures.
	Retry embedder.RetryPolicy
}

// Client is an OpenAI embedder client.
type Client struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
	retry      embedder.RetryPolicy
}

var _ embedder.Provider = (*Client)(nil)

// NewClient creates an OpenAI embedder client.
func NewClient(cfg *Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, &embedder.Error{
			Kind:    embedder.KindMisconfigured,
			Adapter: "openai",
			Err:     errors.New("api key is required"),
		}
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = string(openai.SmallEmbedding3)
	}
	retry := cfg.Retry
	if retry.MaxAttempts == 0 {
		retry = embedder.DefaultRetryPolicy
	}

	return &Client{
		client:     openai.NewClientWithConfig(config),
		model:      openai.EmbeddingModel(model),
		dimensions: embedder.ModelDimensions(model, cfg.Dimensions),
		retry:      retry,
	}, nil
}

// Embed converts a single text to a vector.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch converts multiple texts to vectors in one request, preserving
// input order.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	var resp openai.EmbeddingResponse
	err := c.retry.Do(ctx, func() error {
		var err error
		resp, err = c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: texts,
			Model: c.model,
		})
		if err != nil {
			return classify(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Data) != len(texts) {
		return nil, &embedder.Error{
			Kind:    embedder.KindLengthMismatch,
			Adapter: "openai",
			Err:     fmt.Errorf("got %d embeddings, expected %d", len(resp.Data), len(texts)),
		}
	}

	// The API reports the position of each item; order by it rather than
	// trusting response order.
	sort.Slice(resp.Data, func(i, j int) bool {
		return resp.Data[i].Index < resp.Data[j].Index
	})

	out := make([][]float32, len(texts))
	for i, d := range resp.Data {
		out[i] = d.Embedding
	}
	return out, nil
}

// Dimensions returns the vector dimensionality.
func (c *Client) Dimensions() int {
	return c.dimensions
}

// Close releases resources. The OpenAI SDK needs no explicit shutdown.
func (c *Client) Close() error {
	return nil
}

func classify(err error) error {
	kind := embedder.KindTransport
	status := 0

	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	case errors.Is(err, context.DeadlineExceeded):
		kind = embedder.KindTimeout
	}

	if status != 0 {
		switch {
		case status == http.StatusTooManyRequests:
			kind = embedder.KindRateLimited
		case status == http.StatusUnauthorized:
			kind = embedder.KindMisconfigured
		case status >= 500:
			// Server errors are transient; the retry policy gets a shot.
			kind = embedder.KindTransport
		default:
			kind = embedder.KindProvider
		}
	}

	return &embedder.Error{Kind: kind, Adapter: "openai", StatusCode: status, Err: err}
}
