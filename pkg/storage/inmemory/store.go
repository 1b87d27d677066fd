// Package inmemory provides a map-backed Backend implementation.
//
// It holds every memory and edge in process memory and computes cosine
// similarity in-process, which makes it suitable for tests, examples, and
// single-process deployments that do not need durability.
package inmemory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/GlitchInZen/graph-mem/pkg/storage"
)

// edgeKey identifies an edge by its unique (from, to, type) triple.
type edgeKey struct {
	from string
	to   string
	typ  storage.EdgeType
}

// Store implements storage.Backend with in-process maps.
//
// All operations are atomic under a single RWMutex; no lock is held across
// any suspension point.
type Store struct {
	mu       sync.RWMutex
	memories map[string]*storage.Memory
	edges    map[edgeKey]*storage.Edge
}

var _ storage.Backend = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		memories: make(map[string]*storage.Memory),
		edges:    make(map[edgeKey]*storage.Edge),
	}
}

// Start is a no-op for the in-memory store.
func (s *Store) Start(ctx context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}

// PutMemory stores a memory, fully replacing any previous version with the
// same id.
func (s *Store) PutMemory(ctx context.Context, m *storage.Memory, access storage.AccessContext) error {
	if !access.CanWrite(m.Scope) {
		return storage.ErrAccessDenied
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := m.Clone()
	now := time.Now().UTC()
	if prev, ok := s.memories[cp.ID]; ok {
		cp.InsertedAt = prev.InsertedAt
	} else if cp.InsertedAt.IsZero() {
		cp.InsertedAt = now
	}
	cp.UpdatedAt = now
	cp.Score = 0
	s.memories[cp.ID] = cp
	return nil
}

// GetMemory retrieves a memory by id, enforcing access control.
func (s *Store) GetMemory(ctx context.Context, id string, access storage.AccessContext) (*storage.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.memories[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	if !access.CanAccessMemory(m) {
		return nil, storage.ErrAccessDenied
	}
	return m.Clone(), nil
}

// DeleteMemory removes a memory and cascades to every incident edge.
func (s *Store) DeleteMemory(ctx context.Context, id string, access storage.AccessContext) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.memories[id]
	if !ok {
		return nil
	}
	if access.Role != storage.RoleSystem && m.AgentID != access.AgentID {
		return storage.ErrAccessDenied
	}

	delete(s.memories, id)
	for k := range s.edges {
		if k.from == id || k.to == id {
			delete(s.edges, k)
		}
	}
	return nil
}

// ListMemories returns accessible memories, newest first.
func (s *Store) ListMemories(ctx context.Context, access storage.AccessContext, opts *storage.ListOptions) ([]*storage.Memory, error) {
	if opts == nil {
		opts = &storage.ListOptions{}
	}
	opts.Normalize()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*storage.Memory
	for _, m := range s.memories {
		if !access.CanAccessMemory(m) {
			continue
		}
		if opts.Type != "" && m.Type != opts.Type {
			continue
		}
		if len(opts.Tags) > 0 && !m.HasAllTags(opts.Tags) {
			continue
		}
		out = append(out, m.Clone())
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].InsertedAt.After(out[j].InsertedAt)
	})
	if len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

// SearchMemories performs an in-process cosine similarity scan.
func (s *Store) SearchMemories(ctx context.Context, embedding []float32, access storage.AccessContext, opts *storage.SearchOptions) ([]*storage.Memory, error) {
	if opts == nil {
		opts = &storage.SearchOptions{}
	}
	opts.Normalize()

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*storage.Memory
	for _, m := range s.memories {
		if m.Embedding == nil {
			continue
		}
		if !access.CanAccessMemory(m) {
			continue
		}
		if opts.Type != "" && m.Type != opts.Type {
			continue
		}
		if len(opts.Tags) > 0 && !m.HasAllTags(opts.Tags) {
			continue
		}
		if opts.MinConfidence > 0 && m.Confidence < opts.MinConfidence {
			continue
		}
		score := storage.CosineSimilarity(embedding, m.Embedding)
		if score < opts.Threshold {
			continue
		}
		cp := m.Clone()
		cp.Score = score
		out = append(out, cp)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	if len(out) > opts.Limit {
		out = out[:opts.Limit]
	}

	// Access bump on the stored records; the returned copies keep the counts
	// observed at match time.
	now := time.Now().UTC()
	for _, hit := range out {
		if stored, ok := s.memories[hit.ID]; ok {
			stored.AccessCount++
			t := now
			stored.LastAccessedAt = &t
		}
	}
	return out, nil
}

// PutEdge stores an edge; a repeated put of the same triple is a no-op.
func (s *Store) PutEdge(ctx context.Context, e *storage.Edge, access storage.AccessContext) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.memories[e.FromID]; !ok {
		return storage.ErrNotFound
	}
	if _, ok := s.memories[e.ToID]; !ok {
		return storage.ErrNotFound
	}

	key := edgeKey{from: e.FromID, to: e.ToID, typ: e.Type}
	if _, ok := s.edges[key]; ok {
		return nil
	}

	cp := e.Clone()
	if cp.ID == "" {
		cp.ID = storage.NewID()
	}
	if cp.InsertedAt.IsZero() {
		cp.InsertedAt = time.Now().UTC()
	}
	s.edges[key] = cp
	return nil
}

// DeleteEdge removes the edge with the given triple.
func (s *Store) DeleteEdge(ctx context.Context, fromID, toID string, typ storage.EdgeType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.edges, edgeKey{from: fromID, to: toID, typ: typ})
	return nil
}

// Neighbors returns incident edges with accessible peer memories.
func (s *Store) Neighbors(ctx context.Context, id string, dir storage.Direction, access storage.AccessContext, opts *storage.NeighborOptions) ([]*storage.Neighbor, error) {
	if opts == nil {
		opts = &storage.NeighborOptions{}
	}
	opts.Normalize()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*storage.Neighbor
	for key, e := range s.edges {
		var peerID string
		switch {
		case key.from == id && (dir == storage.DirectionOutgoing || dir == storage.DirectionBoth):
			peerID = key.to
		case key.to == id && (dir == storage.DirectionIncoming || dir == storage.DirectionBoth):
			peerID = key.from
		default:
			continue
		}
		if opts.Type != "" && e.Type != opts.Type {
			continue
		}
		if e.Weight < opts.MinWeight {
			continue
		}
		peer, ok := s.memories[peerID]
		if !ok || !access.CanAccessMemory(peer) {
			continue
		}
		out = append(out, &storage.Neighbor{Memory: peer.Clone(), Edge: e.Clone()})
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Edge.Weight > out[j].Edge.Weight
	})
	if len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

// Expand runs a depth-limited BFS over outgoing edges from the seeds.
func (s *Store) Expand(ctx context.Context, seeds []string, access storage.AccessContext, opts *storage.ExpandOptions) (*storage.ExpandResult, error) {
	if opts == nil {
		opts = &storage.ExpandOptions{}
	}
	opts.Normalize()

	s.mu.RLock()
	defer s.mu.RUnlock()

	collected := make(map[string]*storage.Memory)
	var order []string
	var frontier []string

	for _, id := range seeds {
		m, ok := s.memories[id]
		if !ok || !access.CanAccessMemory(m) {
			continue
		}
		if _, seen := collected[id]; seen {
			continue
		}
		collected[id] = m
		order = append(order, id)
		frontier = append(frontier, id)
	}

	for depth := 0; depth < opts.Depth && len(frontier) > 0 && len(collected) < opts.Limit; depth++ {
		var next []string
		for _, id := range frontier {
			for key, e := range s.edges {
				if key.from != id || e.Weight < opts.MinWeight {
					continue
				}
				if _, seen := collected[key.to]; seen {
					continue
				}
				target, ok := s.memories[key.to]
				if !ok || target.Confidence < opts.MinConfidence || !access.CanAccessMemory(target) {
					continue
				}
				collected[key.to] = target
				order = append(order, key.to)
				next = append(next, key.to)
				if len(collected) >= opts.Limit {
					break
				}
			}
			if len(collected) >= opts.Limit {
				break
			}
		}
		frontier = next
	}

	result := &storage.ExpandResult{}
	for _, id := range order {
		result.Memories = append(result.Memories, collected[id].Clone())
	}
	for key, e := range s.edges {
		if e.Weight < opts.MinWeight {
			continue
		}
		if _, ok := collected[key.from]; !ok {
			continue
		}
		if _, ok := collected[key.to]; !ok {
			continue
		}
		result.Edges = append(result.Edges, e.Clone())
	}
	sort.Slice(result.Edges, func(i, j int) bool {
		if result.Edges[i].FromID != result.Edges[j].FromID {
			return result.Edges[i].FromID < result.Edges[j].FromID
		}
		return result.Edges[i].ToID < result.Edges[j].ToID
	})
	return result, nil
}
