package core

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config contains the complete configuration for a graph-mem client.
//
// Example:
//
//	config := &core.Config{
//	    Backend: "inmemory",
//	    Embedding: core.EmbeddingConfig{
//	        Adapter: "ollama",
//	        Model:   "nomic-embed-text",
//	    },
//	}
type Config struct {
	// Backend selects the storage implementation: "inmemory" or "postgres".
	Backend string `json:"backend"`

	// Postgres configures the relational backend.
	Postgres PostgresConfig `json:"postgres"`

	// Embedding configures the embedding adapter.
	Embedding EmbeddingConfig `json:"embedding"`

	// AutoLink enables automatic edge creation after indexing. Default on.
	AutoLink bool `json:"auto_link"`

	// LinkThreshold is the minimum similarity for an automatic link.
	LinkThreshold float64 `json:"link_threshold,omitempty"`

	// LinkMaxCandidates bounds the auto-link candidate search.
	LinkMaxCandidates int `json:"link_max_candidates,omitempty"`

	// LinkMaxLinks bounds edges created per memory.
	LinkMaxLinks int `json:"link_max_links,omitempty"`

	// BatchSize is the embedding batcher flush threshold.
	BatchSize int `json:"batch_size,omitempty"`

	// BatchTimeout is the embedding batcher queueing delay.
	BatchTimeout time.Duration `json:"batch_timeout,omitempty"`

	// QueuePath makes indexing durable through a SQLite job queue at this
	// path. Empty selects ephemeral in-process indexing.
	QueuePath string `json:"queue_path,omitempty"`

	// Reflection configures the optional LLM synthesizer.
	Reflection ReflectionConfig `json:"reflection"`
}

// PostgresConfig contains PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password,omitempty"`
	DBName   string `json:"db_name"`
	SSLMode  string `json:"ssl_mode,omitempty"`
}

// EmbeddingConfig contains configuration for the embedding adapter.
//
// Supported adapters: ollama, openai. An empty adapter disables embeddings;
// recall then returns empty results and stores keep memories unembedded.
type EmbeddingConfig struct {
	// Adapter is the adapter name: "ollama", "openai", or empty.
	Adapter string `json:"adapter"`

	// Model is the embedding model name.
	Model string `json:"model"`

	// Dimensions overrides the vector length for unknown models.
	Dimensions int `json:"dimensions,omitempty"`

	// OllamaEndpoint is the Ollama server URL.
	OllamaEndpoint string `json:"ollama_endpoint,omitempty"`

	// OpenAIAPIKey is the hosted provider credential.
	OpenAIAPIKey string `json:"openai_api_key,omitempty"`

	// OpenAIBaseURL overrides the hosted provider URL.
	OpenAIBaseURL string `json:"openai_base_url,omitempty"`

	// HTTPTimeout bounds each adapter request. Default 30s.
	HTTPTimeout time.Duration `json:"http_timeout,omitempty"`

	// HTTPRetry is the attempt count for transient failures. Default 2.
	HTTPRetry int `json:"http_retry,omitempty"`
}

// ReflectionConfig contains configuration for the reflection synthesizer.
//
// Supported adapters: ollama, openai. An empty adapter selects the built-in
// deterministic formatter.
type ReflectionConfig struct {
	// Adapter is the adapter name: "ollama", "openai", or empty.
	Adapter string `json:"adapter"`

	// Model is the chat model name.
	Model string `json:"model,omitempty"`

	// APIKey is the provider credential.
	APIKey string `json:"api_key,omitempty"`

	// BaseURL overrides the provider URL.
	BaseURL string `json:"base_url,omitempty"`
}

// DefaultConfig returns a config with the in-memory backend and no adapters.
func DefaultConfig() *Config {
	return &Config{
		Backend:  "inmemory",
		AutoLink: true,
	}
}

// LoadConfigFromEnv loads configuration from environment variables.
//
// It searches for a .env file up to 5 directory levels up and loads it before
// reading the variables:
//
//	BACKEND, POSTGRES_HOST, POSTGRES_PORT, POSTGRES_USER, POSTGRES_PASSWORD,
//	POSTGRES_DATABASE, POSTGRES_SSLMODE,
//	EMBEDDING_ADAPTER, EMBEDDING_MODEL, EMBEDDING_DIMENSIONS,
//	OLLAMA_ENDPOINT, OPENAI_API_KEY, HTTP_TIMEOUT, HTTP_RETRY,
//	AUTO_LINK, LINK_THRESHOLD, LINK_MAX_CANDIDATES, LINK_MAX_LINKS,
//	BATCH_SIZE, BATCH_TIMEOUT_MS, INDEX_QUEUE_PATH,
//	REFLECTION_ADAPTER, REFLECTION_MODEL, REFLECTION_API_KEY
func LoadConfigFromEnv() (*Config, error) {
	if envPath, found := FindEnvFile(); found {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	cfg := DefaultConfig()
	cfg.Backend = getEnvOrDefault("BACKEND", "inmemory")

	if cfg.Backend == "postgres" {
		port, _ := strconv.Atoi(getEnvOrDefault("POSTGRES_PORT", "5432"))
		cfg.Postgres = PostgresConfig{
			Host:     getEnvOrDefault("POSTGRES_HOST", "localhost"),
			Port:     port,
			User:     getEnvOrDefault("POSTGRES_USER", "postgres"),
			Password: os.Getenv("POSTGRES_PASSWORD"),
			DBName:   getEnvOrDefault("POSTGRES_DATABASE", "graphmem"),
			SSLMode:  getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
		}
	}

	cfg.Embedding = EmbeddingConfig{
		Adapter:        os.Getenv("EMBEDDING_ADAPTER"),
		Model:          os.Getenv("EMBEDDING_MODEL"),
		OllamaEndpoint: getEnvOrDefault("OLLAMA_ENDPOINT", "http://localhost:11434"),
		OpenAIAPIKey:   os.Getenv("OPENAI_API_KEY"),
	}
	if dims, err := strconv.Atoi(os.Getenv("EMBEDDING_DIMENSIONS")); err == nil {
		cfg.Embedding.Dimensions = dims
	}
	if secs, err := strconv.Atoi(os.Getenv("HTTP_TIMEOUT")); err == nil {
		cfg.Embedding.HTTPTimeout = time.Duration(secs) * time.Second
	}
	if retry, err := strconv.Atoi(os.Getenv("HTTP_RETRY")); err == nil {
		cfg.Embedding.HTTPRetry = retry
	}

	cfg.AutoLink = getEnvOrDefault("AUTO_LINK", "true") != "false"
	if v, err := strconv.ParseFloat(os.Getenv("LINK_THRESHOLD"), 64); err == nil {
		cfg.LinkThreshold = v
	}
	if v, err := strconv.Atoi(os.Getenv("LINK_MAX_CANDIDATES")); err == nil {
		cfg.LinkMaxCandidates = v
	}
	if v, err := strconv.Atoi(os.Getenv("LINK_MAX_LINKS")); err == nil {
		cfg.LinkMaxLinks = v
	}

	if v, err := strconv.Atoi(os.Getenv("BATCH_SIZE")); err == nil {
		cfg.BatchSize = v
	}
	if ms, err := strconv.Atoi(os.Getenv("BATCH_TIMEOUT_MS")); err == nil {
		cfg.BatchTimeout = time.Duration(ms) * time.Millisecond
	}
	cfg.QueuePath = os.Getenv("INDEX_QUEUE_PATH")

	cfg.Reflection = ReflectionConfig{
		Adapter: os.Getenv("REFLECTION_ADAPTER"),
		Model:   os.Getenv("REFLECTION_MODEL"),
		APIKey:  os.Getenv("REFLECTION_API_KEY"),
	}

	return cfg, nil
}

// LoadConfigFromJSON loads configuration from a JSON file.
func LoadConfigFromJSON(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewMemoryError("LoadConfig", err)
	}
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, NewMemoryError("LoadConfig", err)
	}
	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Backend {
	case "inmemory":
	case "postgres":
		if c.Postgres.Host == "" || c.Postgres.DBName == "" {
			return NewMemoryError("Validate", ErrInvalidConfig)
		}
	default:
		return NewMemoryError("Validate", ErrInvalidConfig)
	}

	switch c.Embedding.Adapter {
	case "", "ollama":
	case "openai":
		if c.Embedding.OpenAIAPIKey == "" {
			return NewMemoryError("Validate", ErrInvalidConfig)
		}
	default:
		return NewMemoryError("Validate", ErrInvalidConfig)
	}

	switch c.Reflection.Adapter {
	case "", "ollama":
	case "openai":
		if c.Reflection.APIKey == "" {
			return NewMemoryError("Validate", ErrInvalidConfig)
		}
	default:
		return NewMemoryError("Validate", ErrInvalidConfig)
	}

	return nil
}

// getEnvOrDefault gets an environment variable or returns the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// FindEnvFile searches the current directory and up to 5 parent directories
// for a .env or .env.example file.
func FindEnvFile() (string, bool) {
	dir, err := os.Getwd()
	if err != nil {
		return "", false
	}
	for i := 0; i < 5; i++ {
		for _, name := range []string{".env", ".env.example"} {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path, true
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false
}
