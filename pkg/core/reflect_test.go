package core_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GlitchInZen/graph-mem/pkg/core"
	"github.com/GlitchInZen/graph-mem/pkg/llm"
	"github.com/GlitchInZen/graph-mem/pkg/storage"
	"github.com/GlitchInZen/graph-mem/pkg/storage/inmemory"
)

// scriptedLLM returns a canned completion for every request.
type scriptedLLM struct {
	response string
	prompts  []string
}

func (s *scriptedLLM) Generate(ctx context.Context, prompt string, opts ...llm.GenerateOption) (string, error) {
	s.prompts = append(s.prompts, prompt)
	return s.response, nil
}

func (s *scriptedLLM) GenerateWithMessages(ctx context.Context, messages []llm.Message, opts ...llm.GenerateOption) (string, error) {
	for _, m := range messages {
		s.prompts = append(s.prompts, m.Content)
	}
	return s.response, nil
}

func (s *scriptedLLM) Close() error { return nil }

func reflectVectors() map[string][]float32 {
	return map[string][]float32{
		"deploys":                        {1, 0, 0},
		"deploys happen on thursday":     {1, 0, 0},
		"deploys need two approvals":     {0.95, 0.05, 0},
		"deploys are frozen in december": {0.9, 0.1, 0},
	}
}

func seedReflectionMemories(t *testing.T, c *core.Client, access storage.AccessContext) {
	t.Helper()
	ctx := context.Background()
	for _, content := range []string{
		"deploys happen on thursday",
		"deploys need two approvals",
		"deploys are frozen in december",
	} {
		_, err := c.Remember(ctx, access, content, core.WithSummary(content), core.WithConfidence(0.8))
		require.NoError(t, err)
	}
	c.DrainIndexing()
}

func TestReflectRequiresEnoughMemories(t *testing.T) {
	c := newClient(t, nil, reflectVectors())
	access := storage.NewAccessContext("a1")

	_, err := c.Remember(context.Background(), access, "deploys happen on thursday")
	require.NoError(t, err)
	c.DrainIndexing()

	_, err = c.Reflect(context.Background(), access, core.WithTopic("deploys"))
	assert.ErrorIs(t, err, core.ErrInsufficientMemories)
}

func TestReflectStoresLinkedReflection(t *testing.T) {
	ctx := context.Background()
	cfg := core.DefaultConfig()
	cfg.AutoLink = false
	c := newClient(t, cfg, reflectVectors())
	access := storage.NewAccessContext("a1")
	seedReflectionMemories(t, c, access)

	result, err := c.Reflect(ctx, access, core.WithTopic("deploys"))
	require.NoError(t, err)
	c.DrainIndexing()

	// Built-in formatter output.
	assert.True(t, strings.HasPrefix(result.Text, "Reflection about deploys from 3 memories:"))
	assert.Contains(t, result.Text, "- [fact] deploys need two approvals")

	m := result.Memory
	require.NotNil(t, m)
	assert.Equal(t, storage.TypeReflection, m.Type)
	assert.Equal(t, storage.ScopePrivate, m.Scope)
	assert.InDelta(t, 0.8, m.Importance, 1e-9)
	assert.InDelta(t, 0.9, m.Confidence, 1e-9)
	assert.Equal(t, "deploys", m.Metadata["topic"])
	assert.Len(t, m.Metadata["source_ids"], 3)

	// The reflection supports each of its sources.
	neighbors, err := c.Neighbors(ctx, access, m.ID, storage.DirectionOutgoing, nil)
	require.NoError(t, err)
	require.Len(t, neighbors, 3)
	for _, n := range neighbors {
		assert.Equal(t, storage.EdgeSupports, n.Edge.Type)
		assert.InDelta(t, 0.7, n.Edge.Weight, 1e-9)
	}
}

func TestReflectWithoutStore(t *testing.T) {
	ctx := context.Background()
	cfg := core.DefaultConfig()
	cfg.AutoLink = false
	c := newClient(t, cfg, reflectVectors())
	access := storage.NewAccessContext("a1")
	seedReflectionMemories(t, c, access)

	result, err := c.Reflect(ctx, access, core.WithTopic("deploys"), core.WithoutStore())
	require.NoError(t, err)
	assert.Nil(t, result.Memory)
	assert.NotEmpty(t, result.Text)

	memories, err := c.List(ctx, access, nil)
	require.NoError(t, err)
	for _, m := range memories {
		assert.NotEqual(t, storage.TypeReflection, m.Type)
	}
}

func TestReflectUsesLLMWhenConfigured(t *testing.T) {
	ctx := context.Background()
	cfg := core.DefaultConfig()
	cfg.AutoLink = false
	llmStub := &scriptedLLM{response: "Deploys are tightly controlled.\nThursday cadence, dual approval, December freeze."}

	c, err := core.New(
		core.WithConfig(cfg),
		core.WithBackend(inmemory.New()),
		core.WithEmbeddingProvider(&stubProvider{vectors: reflectVectors()}),
		core.WithReflectionProvider(llmStub),
	)
	require.NoError(t, err)
	require.NoError(t, c.Start(ctx))
	defer func() { _ = c.Close() }()

	access := storage.NewAccessContext("a1")
	seedReflectionMemories(t, c, access)

	result, err := c.Reflect(ctx, access, core.WithTopic("deploys"))
	require.NoError(t, err)
	c.DrainIndexing()

	assert.Equal(t, llmStub.response, result.Text)
	assert.NotEmpty(t, llmStub.prompts)

	// The first line becomes the summary, the rest the content.
	require.NotNil(t, result.Memory)
	assert.Equal(t, "Deploys are tightly controlled.", result.Memory.Summary)
	assert.Equal(t, "Thursday cadence, dual approval, December freeze.", result.Memory.Content)
}
