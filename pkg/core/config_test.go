package core_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GlitchInZen/graph-mem/pkg/core"
)

func TestDefaultConfig(t *testing.T) {
	cfg := core.DefaultConfig()
	assert.Equal(t, "inmemory", cfg.Backend)
	assert.True(t, cfg.AutoLink)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("BACKEND", "postgres")
	t.Setenv("POSTGRES_HOST", "db.internal")
	t.Setenv("POSTGRES_PORT", "5433")
	t.Setenv("POSTGRES_DATABASE", "memories")
	t.Setenv("EMBEDDING_ADAPTER", "ollama")
	t.Setenv("EMBEDDING_MODEL", "nomic-embed-text")
	t.Setenv("HTTP_TIMEOUT", "10")
	t.Setenv("AUTO_LINK", "false")
	t.Setenv("LINK_THRESHOLD", "0.8")
	t.Setenv("BATCH_TIMEOUT_MS", "75")
	t.Setenv("INDEX_QUEUE_PATH", "/tmp/index.db")

	cfg, err := core.LoadConfigFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Backend)
	assert.Equal(t, "db.internal", cfg.Postgres.Host)
	assert.Equal(t, 5433, cfg.Postgres.Port)
	assert.Equal(t, "memories", cfg.Postgres.DBName)
	assert.Equal(t, "ollama", cfg.Embedding.Adapter)
	assert.Equal(t, "nomic-embed-text", cfg.Embedding.Model)
	assert.Equal(t, 10*time.Second, cfg.Embedding.HTTPTimeout)
	assert.False(t, cfg.AutoLink)
	assert.Equal(t, 0.8, cfg.LinkThreshold)
	assert.Equal(t, 75*time.Millisecond, cfg.BatchTimeout)
	assert.Equal(t, "/tmp/index.db", cfg.QueuePath)
}

func TestLoadConfigFromJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	data := `{
		"backend": "postgres",
		"postgres": {"host": "db.internal", "port": 5432, "db_name": "memories"},
		"embedding": {"adapter": "ollama", "model": "all-minilm"},
		"auto_link": false
	}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := core.LoadConfigFromJSON(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Backend)
	assert.Equal(t, "db.internal", cfg.Postgres.Host)
	assert.Equal(t, "all-minilm", cfg.Embedding.Model)
	assert.False(t, cfg.AutoLink)
	assert.NoError(t, cfg.Validate())

	_, err = core.LoadConfigFromJSON(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*core.Config)
		wantErr bool
	}{
		{"default ok", func(c *core.Config) {}, false},
		{"unknown backend", func(c *core.Config) { c.Backend = "redis" }, true},
		{"postgres missing host", func(c *core.Config) { c.Backend = "postgres" }, true},
		{"postgres complete", func(c *core.Config) {
			c.Backend = "postgres"
			c.Postgres.Host = "localhost"
			c.Postgres.DBName = "graphmem"
		}, false},
		{"unknown embedding adapter", func(c *core.Config) { c.Embedding.Adapter = "cohere" }, true},
		{"openai embedding without key", func(c *core.Config) { c.Embedding.Adapter = "openai" }, true},
		{"openai embedding with key", func(c *core.Config) {
			c.Embedding.Adapter = "openai"
			c.Embedding.OpenAIAPIKey = "sk-test"
		}, false},
		{"openai reflection without key", func(c *core.Config) { c.Reflection.Adapter = "openai" }, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := core.DefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantErr {
				assert.ErrorIs(t, err, core.ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
