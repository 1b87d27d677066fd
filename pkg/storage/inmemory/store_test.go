package inmemory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GlitchInZen/graph-mem/pkg/storage"
	"github.com/GlitchInZen/graph-mem/pkg/storage/inmemory"
)

func newMemory(id, agentID string, embedding []float32) *storage.Memory {
	return &storage.Memory{
		ID:         id,
		Type:       storage.TypeFact,
		Content:    "content of " + id,
		Embedding:  embedding,
		Importance: 0.5,
		Confidence: 0.8,
		Scope:      storage.ScopePrivate,
		AgentID:    agentID,
	}
}

func mustPut(t *testing.T, s *inmemory.Store, m *storage.Memory, access storage.AccessContext) {
	t.Helper()
	require.NoError(t, s.PutMemory(context.Background(), m, access))
}

func TestPutGetRoundtrip(t *testing.T) {
	s := inmemory.New()
	ctx := context.Background()
	access := storage.NewAccessContext("a1")

	m := newMemory("m1", "a1", nil)
	mustPut(t, s, m, access)

	got, err := s.GetMemory(ctx, "m1", access)
	require.NoError(t, err)
	assert.Equal(t, "content of m1", got.Content)
	assert.False(t, got.InsertedAt.IsZero())

	// Replacement keeps the original insertion time.
	inserted := got.InsertedAt
	m2 := newMemory("m1", "a1", []float32{1, 0, 0})
	mustPut(t, s, m2, access)

	got, err = s.GetMemory(ctx, "m1", access)
	require.NoError(t, err)
	assert.Equal(t, inserted, got.InsertedAt)
	assert.Equal(t, []float32{1, 0, 0}, got.Embedding)
}

func TestGetMemoryErrors(t *testing.T) {
	s := inmemory.New()
	ctx := context.Background()
	owner := storage.NewAccessContext("a1")
	stranger := storage.NewAccessContext("a2")

	_, err := s.GetMemory(ctx, "missing", owner)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	mustPut(t, s, newMemory("m1", "a1", nil), owner)
	_, err = s.GetMemory(ctx, "m1", stranger)
	assert.ErrorIs(t, err, storage.ErrAccessDenied)
}

func TestPutMemoryWriteDenied(t *testing.T) {
	s := inmemory.New()
	access := storage.NewAccessContext("a1")

	m := newMemory("m1", "a1", nil)
	m.Scope = storage.ScopeShared
	err := s.PutMemory(context.Background(), m, access)
	assert.ErrorIs(t, err, storage.ErrAccessDenied)
}

func TestDeleteCascadesEdges(t *testing.T) {
	s := inmemory.New()
	ctx := context.Background()
	access := storage.NewAccessContext("a1")

	mustPut(t, s, newMemory("m1", "a1", nil), access)
	mustPut(t, s, newMemory("m2", "a1", nil), access)
	mustPut(t, s, newMemory("m3", "a1", nil), access)

	putEdge := func(from, to string) {
		require.NoError(t, s.PutEdge(ctx, &storage.Edge{
			FromID: from, ToID: to, Type: storage.EdgeRelatesTo,
			Weight: 0.8, Confidence: 0.8, Scope: storage.ScopePrivate,
		}, access))
	}
	putEdge("m1", "m2")
	putEdge("m2", "m3")
	putEdge("m3", "m1")

	require.NoError(t, s.DeleteMemory(ctx, "m1", access))

	_, err := s.GetMemory(ctx, "m1", access)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// Every edge touching m1 is gone; the unrelated edge survives.
	for _, id := range []string{"m2", "m3"} {
		neighbors, err := s.Neighbors(ctx, id, storage.DirectionBoth, access, nil)
		require.NoError(t, err)
		for _, n := range neighbors {
			assert.NotEqual(t, "m1", n.Memory.ID)
		}
	}
	neighbors, err := s.Neighbors(ctx, "m2", storage.DirectionOutgoing, access, nil)
	require.NoError(t, err)
	require.Len(t, neighbors, 1)
	assert.Equal(t, "m3", neighbors[0].Memory.ID)

	// Deleting a missing memory is a no-op.
	assert.NoError(t, s.DeleteMemory(ctx, "m1", access))
}

func TestDeleteRequiresOwnership(t *testing.T) {
	s := inmemory.New()
	ctx := context.Background()
	owner := storage.NewAccessContext("a1")
	stranger := storage.NewAccessContext("a2")
	system := storage.AccessContext{AgentID: "sys", Role: storage.RoleSystem}

	mustPut(t, s, newMemory("m1", "a1", nil), owner)
	assert.ErrorIs(t, s.DeleteMemory(ctx, "m1", stranger), storage.ErrAccessDenied)
	assert.NoError(t, s.DeleteMemory(ctx, "m1", system))
}

func TestPutEdgeFirstWriterWins(t *testing.T) {
	s := inmemory.New()
	ctx := context.Background()
	access := storage.NewAccessContext("a1")

	mustPut(t, s, newMemory("m1", "a1", nil), access)
	mustPut(t, s, newMemory("m2", "a1", nil), access)

	first := &storage.Edge{
		FromID: "m1", ToID: "m2", Type: storage.EdgeSupports,
		Weight: 0.8, Confidence: 0.8, Scope: storage.ScopePrivate,
	}
	require.NoError(t, s.PutEdge(ctx, first, access))

	second := &storage.Edge{
		FromID: "m1", ToID: "m2", Type: storage.EdgeSupports,
		Weight: 0.1, Confidence: 0.1, Scope: storage.ScopePrivate,
	}
	require.NoError(t, s.PutEdge(ctx, second, access))

	neighbors, err := s.Neighbors(ctx, "m1", storage.DirectionOutgoing, access, nil)
	require.NoError(t, err)
	require.Len(t, neighbors, 1)
	assert.Equal(t, 0.8, neighbors[0].Edge.Weight)

	// A different type is a different edge.
	third := &storage.Edge{
		FromID: "m1", ToID: "m2", Type: storage.EdgeCauses,
		Weight: 0.5, Confidence: 0.5, Scope: storage.ScopePrivate,
	}
	require.NoError(t, s.PutEdge(ctx, third, access))
	neighbors, err = s.Neighbors(ctx, "m1", storage.DirectionOutgoing, access, nil)
	require.NoError(t, err)
	assert.Len(t, neighbors, 2)
}

func TestPutEdgeMissingEndpoint(t *testing.T) {
	s := inmemory.New()
	access := storage.NewAccessContext("a1")
	mustPut(t, s, newMemory("m1", "a1", nil), access)

	err := s.PutEdge(context.Background(), &storage.Edge{
		FromID: "m1", ToID: "ghost", Type: storage.EdgeRelatesTo,
		Weight: 0.5, Confidence: 0.5, Scope: storage.ScopePrivate,
	}, access)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSearchMemories(t *testing.T) {
	s := inmemory.New()
	ctx := context.Background()
	a1 := storage.NewAccessContext("a1")
	a2 := storage.NewAccessContext("a2")

	mustPut(t, s, newMemory("hit", "a1", []float32{1, 0, 0}), a1)
	mustPut(t, s, newMemory("near", "a1", []float32{0.9, 0.1, 0}), a1)
	mustPut(t, s, newMemory("far", "a1", []float32{0, 1, 0}), a1)
	mustPut(t, s, newMemory("unembedded", "a1", nil), a1)
	mustPut(t, s, newMemory("foreign", "a2", []float32{1, 0, 0}), a2)

	hits, err := s.SearchMemories(ctx, []float32{1, 0, 0}, a1, &storage.SearchOptions{Threshold: 0.3})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "hit", hits[0].ID)
	assert.Equal(t, "near", hits[1].ID)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-9)

	// Another agent's private memory never appears.
	for _, h := range hits {
		assert.NotEqual(t, "foreign", h.ID)
	}
}

func TestSearchBumpsAccessCount(t *testing.T) {
	s := inmemory.New()
	ctx := context.Background()
	access := storage.NewAccessContext("a1")

	mustPut(t, s, newMemory("m1", "a1", []float32{1, 0, 0}), access)

	_, err := s.SearchMemories(ctx, []float32{1, 0, 0}, access, &storage.SearchOptions{Threshold: 0.3})
	require.NoError(t, err)
	_, err = s.SearchMemories(ctx, []float32{1, 0, 0}, access, &storage.SearchOptions{Threshold: 0.3})
	require.NoError(t, err)

	got, err := s.GetMemory(ctx, "m1", access)
	require.NoError(t, err)
	assert.Equal(t, 2, got.AccessCount)
	assert.NotNil(t, got.LastAccessedAt)
}

func TestSearchFilters(t *testing.T) {
	s := inmemory.New()
	ctx := context.Background()
	access := storage.NewAccessContext("a1")

	tagged := newMemory("tagged", "a1", []float32{1, 0, 0})
	tagged.Tags = []string{"deploy"}
	tagged.Type = storage.TypeObservation
	mustPut(t, s, tagged, access)

	shaky := newMemory("shaky", "a1", []float32{1, 0, 0})
	shaky.Confidence = 0.4
	mustPut(t, s, shaky, access)

	hits, err := s.SearchMemories(ctx, []float32{1, 0, 0}, access, &storage.SearchOptions{
		Threshold: 0.3, Type: storage.TypeObservation,
	})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "tagged", hits[0].ID)

	hits, err = s.SearchMemories(ctx, []float32{1, 0, 0}, access, &storage.SearchOptions{
		Threshold: 0.3, MinConfidence: 0.5,
	})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "tagged", hits[0].ID)

	hits, err = s.SearchMemories(ctx, []float32{1, 0, 0}, access, &storage.SearchOptions{
		Threshold: 0.3, Tags: []string{"deploy"},
	})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "tagged", hits[0].ID)
}

func TestExpandDepthAndWeight(t *testing.T) {
	s := inmemory.New()
	ctx := context.Background()
	access := storage.NewAccessContext("a1")

	for _, id := range []string{"A", "B", "C", "D"} {
		mustPut(t, s, newMemory(id, "a1", nil), access)
	}
	putEdge := func(from, to string, weight float64) {
		require.NoError(t, s.PutEdge(ctx, &storage.Edge{
			FromID: from, ToID: to, Type: storage.EdgeRelatesTo,
			Weight: weight, Confidence: 0.8, Scope: storage.ScopePrivate,
		}, access))
	}
	putEdge("A", "B", 0.8)
	putEdge("B", "C", 0.8)
	putEdge("C", "D", 0.1)

	ids := func(ms []*storage.Memory) []string {
		out := make([]string, len(ms))
		for i, m := range ms {
			out[i] = m.ID
		}
		return out
	}

	res, err := s.Expand(ctx, []string{"A"}, access, &storage.ExpandOptions{Depth: 2, MinWeight: 0.3})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"A", "B", "C"}, ids(res.Memories))
	require.Len(t, res.Edges, 2)

	res, err = s.Expand(ctx, []string{"A"}, access, &storage.ExpandOptions{Depth: 1, MinWeight: 0.3})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"A", "B"}, ids(res.Memories))
	require.Len(t, res.Edges, 1)
	assert.Equal(t, "A", res.Edges[0].FromID)
	assert.Equal(t, "B", res.Edges[0].ToID)

	// The low-weight edge never lets D in, even at depth 3.
	res, err = s.Expand(ctx, []string{"A"}, access, &storage.ExpandOptions{Depth: 3, MinWeight: 0.3})
	require.NoError(t, err)
	assert.NotContains(t, ids(res.Memories), "D")
}

func TestExpandPrunesInaccessibleAndLowConfidence(t *testing.T) {
	s := inmemory.New()
	ctx := context.Background()
	a1 := storage.NewAccessContext("a1")
	a2 := storage.NewAccessContext("a2")
	system := storage.AccessContext{AgentID: "sys", Role: storage.RoleSystem}

	mustPut(t, s, newMemory("A", "a1", nil), a1)
	mustPut(t, s, newMemory("foreign", "a2", nil), a2)
	doubtful := newMemory("doubtful", "a1", nil)
	doubtful.Confidence = 0.2
	mustPut(t, s, doubtful, a1)

	putEdge := func(from, to string) {
		require.NoError(t, s.PutEdge(ctx, &storage.Edge{
			FromID: from, ToID: to, Type: storage.EdgeRelatesTo,
			Weight: 0.9, Confidence: 0.9, Scope: storage.ScopePrivate,
		}, system))
	}
	putEdge("A", "foreign")
	putEdge("A", "doubtful")

	res, err := s.Expand(ctx, []string{"A"}, a1, &storage.ExpandOptions{Depth: 2, MinConfidence: 0.5})
	require.NoError(t, err)
	require.Len(t, res.Memories, 1)
	assert.Equal(t, "A", res.Memories[0].ID)
}

func TestListMemoriesNewestFirst(t *testing.T) {
	s := inmemory.New()
	ctx := context.Background()
	access := storage.NewAccessContext("a1")

	older := newMemory("older", "a1", nil)
	older.InsertedAt = time.Now().Add(-time.Hour)
	mustPut(t, s, older, access)
	newer := newMemory("newer", "a1", nil)
	newer.InsertedAt = time.Now()
	mustPut(t, s, newer, access)

	got, err := s.ListMemories(ctx, access, &storage.ListOptions{Limit: 10})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "newer", got[0].ID)
	assert.Equal(t, "older", got[1].ID)

	got, err = s.ListMemories(ctx, access, &storage.ListOptions{Limit: 1})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "newer", got[0].ID)
}

func TestNeighborsDirections(t *testing.T) {
	s := inmemory.New()
	ctx := context.Background()
	access := storage.NewAccessContext("a1")

	mustPut(t, s, newMemory("center", "a1", nil), access)
	mustPut(t, s, newMemory("out", "a1", nil), access)
	mustPut(t, s, newMemory("in", "a1", nil), access)

	require.NoError(t, s.PutEdge(ctx, &storage.Edge{
		FromID: "center", ToID: "out", Type: storage.EdgeRelatesTo,
		Weight: 0.9, Confidence: 0.8, Scope: storage.ScopePrivate,
	}, access))
	require.NoError(t, s.PutEdge(ctx, &storage.Edge{
		FromID: "in", ToID: "center", Type: storage.EdgeFollows,
		Weight: 0.4, Confidence: 0.8, Scope: storage.ScopePrivate,
	}, access))

	outgoing, err := s.Neighbors(ctx, "center", storage.DirectionOutgoing, access, nil)
	require.NoError(t, err)
	require.Len(t, outgoing, 1)
	assert.Equal(t, "out", outgoing[0].Memory.ID)

	incoming, err := s.Neighbors(ctx, "center", storage.DirectionIncoming, access, nil)
	require.NoError(t, err)
	require.Len(t, incoming, 1)
	assert.Equal(t, "in", incoming[0].Memory.ID)

	both, err := s.Neighbors(ctx, "center", storage.DirectionBoth, access, nil)
	require.NoError(t, err)
	assert.Len(t, both, 2)
	// Sorted by weight descending.
	assert.Equal(t, "out", both[0].Memory.ID)

	filtered, err := s.Neighbors(ctx, "center", storage.DirectionBoth, access, &storage.NeighborOptions{MinWeight: 0.5})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "out", filtered[0].Memory.ID)

	typed, err := s.Neighbors(ctx, "center", storage.DirectionBoth, access, &storage.NeighborOptions{Type: storage.EdgeFollows})
	require.NoError(t, err)
	require.Len(t, typed, 1)
	assert.Equal(t, "in", typed[0].Memory.ID)
}

func TestDeleteEdgeIdempotent(t *testing.T) {
	s := inmemory.New()
	ctx := context.Background()
	access := storage.NewAccessContext("a1")

	mustPut(t, s, newMemory("m1", "a1", nil), access)
	mustPut(t, s, newMemory("m2", "a1", nil), access)
	require.NoError(t, s.PutEdge(ctx, &storage.Edge{
		FromID: "m1", ToID: "m2", Type: storage.EdgeRelatesTo,
		Weight: 0.5, Confidence: 0.5, Scope: storage.ScopePrivate,
	}, access))

	require.NoError(t, s.DeleteEdge(ctx, "m1", "m2", storage.EdgeRelatesTo))
	require.NoError(t, s.DeleteEdge(ctx, "m1", "m2", storage.EdgeRelatesTo))

	neighbors, err := s.Neighbors(ctx, "m1", storage.DirectionOutgoing, access, nil)
	require.NoError(t, err)
	assert.Empty(t, neighbors)
}
