package storage

import (
	"context"
	"math"
)

// Default option values shared by all backends.
const (
	DefaultSearchLimit     = 5
	DefaultSearchThreshold = 0.3

	DefaultListLimit     = 100
	DefaultNeighborLimit = 50
	DefaultExpandDepth   = 2
	MaxExpandDepth       = 3
	DefaultExpandLimit   = 50

	DefaultExpandMinWeight     = 0.3
	DefaultExpandMinConfidence = 0.5
)

// Backend defines the contract every storage implementation satisfies.
//
// All read operations filter results through AccessContext.CanAccessMemory;
// a memory the context cannot see behaves as if it did not exist, except for
// GetMemory which distinguishes not_found from access_denied.
type Backend interface {
	// Start prepares the backend for use (connections, schema).
	Start(ctx context.Context) error

	// PutMemory stores a memory. Idempotent on id; a repeated put fully
	// replaces the previous version (last writer wins).
	PutMemory(ctx context.Context, m *Memory, access AccessContext) error

	// GetMemory retrieves a memory by id.
	// Returns ErrNotFound or ErrAccessDenied as appropriate.
	GetMemory(ctx context.Context, id string, access AccessContext) (*Memory, error)

	// DeleteMemory removes a memory and every edge incident to it.
	// Deleting a missing memory is a no-op.
	DeleteMemory(ctx context.Context, id string, access AccessContext) error

	// ListMemories returns accessible memories, newest first.
	ListMemories(ctx context.Context, access AccessContext, opts *ListOptions) ([]*Memory, error)

	// SearchMemories returns accessible memories with embeddings whose cosine
	// similarity to the query vector is at least opts.Threshold, sorted by
	// similarity descending, with Score populated. Matched memories get their
	// access count bumped (best effort).
	SearchMemories(ctx context.Context, embedding []float32, access AccessContext, opts *SearchOptions) ([]*Memory, error)

	// PutEdge stores an edge. A repeated put of the same (from, to, type)
	// triple is a no-op; the first writer wins.
	PutEdge(ctx context.Context, e *Edge, access AccessContext) error

	// DeleteEdge removes the edge with the given triple. Idempotent.
	DeleteEdge(ctx context.Context, fromID, toID string, typ EdgeType) error

	// Neighbors returns the edges incident to a memory together with the peer
	// memory, filtered by direction, edge type, minimum weight and access.
	Neighbors(ctx context.Context, id string, dir Direction, access AccessContext, opts *NeighborOptions) ([]*Neighbor, error)

	// Expand performs a depth-limited traversal of outgoing edges from the
	// seed memories and returns the induced subgraph.
	Expand(ctx context.Context, seeds []string, access AccessContext, opts *ExpandOptions) (*ExpandResult, error)

	// Close releases the backend's resources.
	Close() error
}

// ListOptions contains options for ListMemories.
type ListOptions struct {
	// Limit caps the number of results. Default DefaultListLimit.
	Limit int

	// Type filters by memory type when non-empty.
	Type MemoryType

	// Tags filters to memories carrying every listed tag.
	Tags []string
}

// SearchOptions contains options for SearchMemories.
type SearchOptions struct {
	// Limit caps the number of results. Default DefaultSearchLimit.
	Limit int

	// Threshold is the minimum cosine similarity for a hit. Default
	// DefaultSearchThreshold; negative values are honored as given.
	Threshold float64

	// Type filters by memory type when non-empty.
	Type MemoryType

	// Tags filters to memories carrying every listed tag.
	Tags []string

	// MinConfidence filters out memories below this confidence.
	MinConfidence float64
}

// NeighborOptions contains options for Neighbors.
type NeighborOptions struct {
	// Type filters by edge type when non-empty.
	Type EdgeType

	// MinWeight filters out edges below this weight.
	MinWeight float64

	// Limit caps the number of results. Default DefaultNeighborLimit.
	Limit int
}

// ExpandOptions contains options for Expand.
type ExpandOptions struct {
	// Depth is the maximum path length from a seed. Default
	// DefaultExpandDepth, capped at MaxExpandDepth.
	Depth int

	// MinWeight prunes edges below this weight. Default
	// DefaultExpandMinWeight.
	MinWeight float64

	// MinConfidence prunes target memories below this confidence. Default
	// DefaultExpandMinConfidence.
	MinConfidence float64

	// Limit caps the number of collected memories. Default
	// DefaultExpandLimit.
	Limit int
}

// Neighbor pairs an incident edge with the memory on its far side.
type Neighbor struct {
	// Memory is the peer memory.
	Memory *Memory `json:"memory"`

	// Edge is the connecting edge.
	Edge *Edge `json:"edge"`
}

// ExpandResult is the induced subgraph of a traversal: the collected
// memories plus every qualifying edge between them.
type ExpandResult struct {
	Memories []*Memory `json:"memories"`
	Edges    []*Edge   `json:"edges"`
}

// Normalize fills zero values with defaults.
func (o *ListOptions) Normalize() {
	if o.Limit <= 0 {
		o.Limit = DefaultListLimit
	}
}

// Normalize fills zero values with defaults. A negative threshold is kept;
// it admits anti-similar hits on purpose.
func (o *SearchOptions) Normalize() {
	if o.Limit <= 0 {
		o.Limit = DefaultSearchLimit
	}
	if o.Threshold == 0 {
		o.Threshold = DefaultSearchThreshold
	}
}

// Normalize fills zero values with defaults.
func (o *NeighborOptions) Normalize() {
	if o.Limit <= 0 {
		o.Limit = DefaultNeighborLimit
	}
}

// Normalize fills zero values with defaults and caps the depth.
func (o *ExpandOptions) Normalize() {
	if o.Depth <= 0 {
		o.Depth = DefaultExpandDepth
	}
	if o.Depth > MaxExpandDepth {
		o.Depth = MaxExpandDepth
	}
	if o.MinWeight <= 0 {
		o.MinWeight = DefaultExpandMinWeight
	}
	if o.MinConfidence <= 0 {
		o.MinConfidence = DefaultExpandMinConfidence
	}
	if o.Limit <= 0 {
		o.Limit = DefaultExpandLimit
	}
}

// CosineSimilarity computes the cosine similarity between two vectors.
//
// The result is the dot product divided by the product of magnitudes. Vectors
// of different lengths or zero magnitude yield exactly 0, never NaN.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// HasAllTags reports whether the memory carries every tag in want.
func (m *Memory) HasAllTags(want []string) bool {
	for _, w := range want {
		found := false
		for _, t := range m.Tags {
			if t == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
