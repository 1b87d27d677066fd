package core

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/GlitchInZen/graph-mem/pkg/embedder"
	"github.com/GlitchInZen/graph-mem/pkg/embedder/batch"
	embedollama "github.com/GlitchInZen/graph-mem/pkg/embedder/ollama"
	embedopenai "github.com/GlitchInZen/graph-mem/pkg/embedder/openai"
	"github.com/GlitchInZen/graph-mem/pkg/indexer"
	"github.com/GlitchInZen/graph-mem/pkg/indexer/jobqueue"
	"github.com/GlitchInZen/graph-mem/pkg/llm"
	llmollama "github.com/GlitchInZen/graph-mem/pkg/llm/ollama"
	llmopenai "github.com/GlitchInZen/graph-mem/pkg/llm/openai"
	"github.com/GlitchInZen/graph-mem/pkg/storage"
	"github.com/GlitchInZen/graph-mem/pkg/storage/inmemory"
	"github.com/GlitchInZen/graph-mem/pkg/storage/postgres"
)

// Client is the agent-facing entry point.
//
// All operations take an AccessContext identifying the caller; the client
// never assumes an ambient identity.
type Client struct {
	cfg        *Config
	backend    storage.Backend
	embedding  embedder.Provider
	reflector  llm.Provider
	queue      jobqueue.Queue
	indexer    *indexer.Indexer
	logger     zerolog.Logger
	dimensions int
}

// New creates a client from configuration or injected components.
//
// Without options, configuration is read from the environment. Injected
// backends and providers take precedence over their configured counterparts;
// the client owns and closes whatever it ends up using.
func New(opts ...ClientOption) (*Client, error) {
	var o clientOptions
	for _, opt := range opts {
		opt(&o)
	}

	cfg := o.config
	if cfg == nil {
		loaded, err := LoadConfigFromEnv()
		if err != nil {
			return nil, NewMemoryError("New", err)
		}
		cfg = loaded
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := zerolog.Nop()
	if o.logger != nil {
		logger = *o.logger
	}

	c := &Client{cfg: cfg, logger: logger}

	if err := c.buildEmbedding(o); err != nil {
		return nil, err
	}
	if err := c.buildBackend(o); err != nil {
		return nil, err
	}
	if err := c.buildReflector(o); err != nil {
		return nil, err
	}
	if err := c.buildIndexer(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) buildEmbedding(o clientOptions) error {
	if o.embedding != nil {
		// Injected providers are used as-is; tests rely on their calls being
		// observable without batching delays.
		c.embedding = o.embedding
		c.dimensions = o.embedding.Dimensions()
		return nil
	}

	cfg := c.cfg.Embedding
	var (
		provider embedder.Provider
		err      error
	)
	switch cfg.Adapter {
	case "":
		c.dimensions = cfg.Dimensions
		return nil
	case "ollama":
		provider, err = embedollama.NewClient(&embedollama.Config{
			Endpoint:   cfg.OllamaEndpoint,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Timeout:    cfg.HTTPTimeout,
			Retry:      embedder.RetryPolicy{MaxAttempts: cfg.HTTPRetry},
		})
	case "openai":
		provider, err = embedopenai.NewClient(&embedopenai.Config{
			APIKey:     cfg.OpenAIAPIKey,
			Model:      cfg.Model,
			BaseURL:    cfg.OpenAIBaseURL,
			Dimensions: cfg.Dimensions,
			Retry:      embedder.RetryPolicy{MaxAttempts: cfg.HTTPRetry},
		})
	}
	if err != nil {
		return NewMemoryError("New", err)
	}

	c.embedding = batch.New(batch.Config{
		Provider:  provider,
		BatchSize: c.cfg.BatchSize,
		Timeout:   c.cfg.BatchTimeout,
		Logger:    c.logger,
	})
	c.dimensions = provider.Dimensions()
	return nil
}

func (c *Client) buildBackend(o clientOptions) error {
	if o.backend != nil {
		c.backend = o.backend
		return nil
	}

	switch c.cfg.Backend {
	case "postgres":
		c.backend = postgres.New(postgres.Config{
			Host:       c.cfg.Postgres.Host,
			Port:       c.cfg.Postgres.Port,
			User:       c.cfg.Postgres.User,
			Password:   c.cfg.Postgres.Password,
			DBName:     c.cfg.Postgres.DBName,
			SSLMode:    c.cfg.Postgres.SSLMode,
			Dimensions: c.dimensions,
		})
	default:
		c.backend = inmemory.New()
	}
	return nil
}

func (c *Client) buildReflector(o clientOptions) error {
	if o.reflector != nil {
		c.reflector = o.reflector
		return nil
	}

	cfg := c.cfg.Reflection
	var err error
	switch cfg.Adapter {
	case "ollama":
		c.reflector, err = llmollama.NewClient(&llmollama.Config{
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
		})
	case "openai":
		c.reflector, err = llmopenai.NewClient(&llmopenai.Config{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
		})
	}
	if err != nil {
		return NewMemoryError("New", err)
	}
	return nil
}

func (c *Client) buildIndexer() error {
	if c.cfg.QueuePath != "" {
		queue, err := jobqueue.OpenSQLite(c.cfg.QueuePath)
		if err != nil {
			return NewMemoryError("New", err)
		}
		c.queue = queue
	}

	var linker *indexer.Linker
	if c.cfg.AutoLink {
		linker = indexer.NewLinker(c.backend, indexer.LinkerConfig{
			Threshold:     c.cfg.LinkThreshold,
			MaxCandidates: c.cfg.LinkMaxCandidates,
			MaxLinks:      c.cfg.LinkMaxLinks,
		}, c.logger)
	}

	c.indexer = indexer.New(indexer.Config{
		Backend:  c.backend,
		Provider: c.embedding,
		Linker:   linker,
		Queue:    c.queue,
		Logger:   c.logger,
	})
	return nil
}

// Start prepares the backend and launches the durable indexing worker.
func (c *Client) Start(ctx context.Context) error {
	if err := c.backend.Start(ctx); err != nil {
		return NewMemoryError("Start", err)
	}
	c.indexer.Start(ctx)
	return nil
}

// Close shuts the client down, waiting for in-flight indexing.
func (c *Client) Close() error {
	c.indexer.Close()

	var firstErr error
	if c.embedding != nil {
		if err := c.embedding.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if c.reflector != nil {
		if err := c.reflector.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if c.queue != nil {
		if err := c.queue.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := c.backend.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return NewMemoryError("Close", firstErr)
}

// DrainIndexing blocks until all pending ephemeral indexing work completes.
// Intended for tests and batch jobs that need write-then-read consistency.
func (c *Client) DrainIndexing() {
	c.indexer.Wait()
}

// Backend exposes the underlying storage backend.
func (c *Client) Backend() storage.Backend {
	return c.backend
}
