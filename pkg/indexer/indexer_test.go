package indexer_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GlitchInZen/graph-mem/pkg/indexer"
	"github.com/GlitchInZen/graph-mem/pkg/indexer/jobqueue"
	"github.com/GlitchInZen/graph-mem/pkg/storage"
	"github.com/GlitchInZen/graph-mem/pkg/storage/inmemory"
)

// fixedProvider answers every Embed call with the same vector.
type fixedProvider struct {
	vec   []float32
	calls atomic.Int64
}

func (p *fixedProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	p.calls.Add(1)
	return append([]float32(nil), p.vec...), nil
}

func (p *fixedProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		vec, _ := p.Embed(ctx, texts[i])
		out[i] = vec
	}
	return out, nil
}

func (p *fixedProvider) Dimensions() int { return len(p.vec) }
func (p *fixedProvider) Close() error    { return nil }

func putMemory(t *testing.T, store storage.Backend, access storage.AccessContext, id, content string, embedding []float32) {
	t.Helper()
	err := store.PutMemory(context.Background(), &storage.Memory{
		ID:         id,
		Type:       storage.TypeFact,
		Content:    content,
		Embedding:  embedding,
		Importance: 0.5,
		Confidence: 0.9,
		Scope:      storage.ScopePrivate,
		AgentID:    access.AgentID,
	}, access)
	require.NoError(t, err)
}

func TestEmbedsStoresAndLinks(t *testing.T) {
	ctx := context.Background()
	store := inmemory.New()
	access := storage.NewAccessContext("a1")

	// Two close neighbors and one orthogonal memory that must not be linked.
	putMemory(t, store, access, "near-1", "deploys run on fridays", []float32{1, 0, 0})
	putMemory(t, store, access, "near-2", "deploys need approval", []float32{0.9, 0.1, 0})
	putMemory(t, store, access, "far", "the office plant is a ficus", []float32{0, 1, 0})
	putMemory(t, store, access, "fresh", "deploy window moved to thursday", nil)

	provider := &fixedProvider{vec: []float32{1, 0, 0}}
	ix := indexer.New(indexer.Config{
		Backend:  store,
		Provider: provider,
		Linker:   indexer.NewLinker(store, indexer.LinkerConfig{}, zerolog.Nop()),
		Logger:   zerolog.Nop(),
	})

	require.NoError(t, ix.Submit("fresh", access))
	ix.Wait()

	got, err := store.GetMemory(ctx, "fresh", access)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0, 0}, got.Embedding)
	assert.EqualValues(t, 1, provider.calls.Load())

	neighbors, err := store.Neighbors(ctx, "fresh", storage.DirectionOutgoing, access, nil)
	require.NoError(t, err)
	require.Len(t, neighbors, 2)

	linked := map[string]*storage.Edge{}
	for _, n := range neighbors {
		linked[n.Memory.ID] = n.Edge
	}
	require.Contains(t, linked, "near-1")
	require.Contains(t, linked, "near-2")
	assert.NotContains(t, linked, "far")

	edge := linked["near-1"]
	assert.Equal(t, storage.EdgeRelatesTo, edge.Type)
	assert.InDelta(t, 1.0, edge.Weight, 1e-6)
	assert.Equal(t, "auto", edge.Metadata["linked_by"])
}

func TestAlreadyEmbeddedSkipsProvider(t *testing.T) {
	store := inmemory.New()
	access := storage.NewAccessContext("a1")
	putMemory(t, store, access, "done", "already vectorized", []float32{0, 0, 1})

	provider := &fixedProvider{vec: []float32{1, 0, 0}}
	ix := indexer.New(indexer.Config{Backend: store, Provider: provider, Logger: zerolog.Nop()})

	require.NoError(t, ix.Submit("done", access))
	ix.Wait()

	assert.EqualValues(t, 0, provider.calls.Load())
}

func TestDeletedMemoryJobEvaporates(t *testing.T) {
	store := inmemory.New()
	access := storage.NewAccessContext("a1")

	provider := &fixedProvider{vec: []float32{1, 0, 0}}
	ix := indexer.New(indexer.Config{Backend: store, Provider: provider, Logger: zerolog.Nop()})

	// The memory never existed; the job must finish without embedding anything.
	require.NoError(t, ix.Submit("gone", access))
	ix.Wait()

	assert.EqualValues(t, 0, provider.calls.Load())
}

func TestDurableQueueRoundtrip(t *testing.T) {
	ctx := context.Background()
	store := inmemory.New()
	access := storage.NewAccessContext("a1")
	putMemory(t, store, access, "queued", "persisted before embedding", nil)

	q, err := jobqueue.OpenSQLite(":memory:")
	require.NoError(t, err)
	defer func() { _ = q.Close() }()

	provider := &fixedProvider{vec: []float32{0, 1, 0}}
	ix := indexer.New(indexer.Config{
		Backend:  store,
		Provider: provider,
		Queue:    q,
		Logger:   zerolog.Nop(),
	})

	require.NoError(t, ix.Submit("queued", access))

	pending, err := q.Pending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, pending)

	ix.Start(ctx)
	assert.Eventually(t, func() bool {
		m, err := store.GetMemory(ctx, "queued", access)
		return err == nil && m.Embedding != nil
	}, 5*time.Second, 10*time.Millisecond)
	ix.Close()

	pending, err = q.Pending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, pending)
}
