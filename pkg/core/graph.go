package core

import (
	"context"
	"time"

	"github.com/GlitchInZen/graph-mem/pkg/storage"
)

// Link creates a typed edge between two memories.
//
// Both endpoints must exist and be accessible. The edge scope is derived as
// the more restrictive of the endpoint scopes; linking the same triple twice
// is a no-op.
func (c *Client) Link(ctx context.Context, access storage.AccessContext, fromID, toID string, edgeType storage.EdgeType, opts ...LinkOption) (*storage.Edge, error) {
	from, err := c.backend.GetMemory(ctx, fromID, access)
	if err != nil {
		return nil, NewMemoryError("Link", err)
	}
	to, err := c.backend.GetMemory(ctx, toID, access)
	if err != nil {
		return nil, NewMemoryError("Link", err)
	}

	o := defaultLinkOptions()
	for _, opt := range opts {
		opt(&o)
	}

	edge := &storage.Edge{
		ID:         storage.NewID(),
		FromID:     from.ID,
		ToID:       to.ID,
		Type:       edgeType,
		Weight:     o.weight,
		Confidence: o.confidence,
		Scope:      storage.MinScope(from.Scope, to.Scope),
		Metadata:   o.metadata,
		InsertedAt: time.Now().UTC(),
	}
	if err := edge.Validate(); err != nil {
		return nil, NewMemoryError("Link", err)
	}
	if err := c.backend.PutEdge(ctx, edge, access); err != nil {
		return nil, NewMemoryError("Link", err)
	}
	return edge, nil
}

// Unlink removes the edge with the given triple. Idempotent.
func (c *Client) Unlink(ctx context.Context, access storage.AccessContext, fromID, toID string, edgeType storage.EdgeType) error {
	// The endpoint check keeps unlink symmetric with link on access.
	if _, err := c.backend.GetMemory(ctx, fromID, access); err != nil {
		return NewMemoryError("Unlink", err)
	}
	if err := c.backend.DeleteEdge(ctx, fromID, toID, edgeType); err != nil {
		return NewMemoryError("Unlink", err)
	}
	return nil
}

// Neighbors returns the edges incident to a memory together with the peer
// memories, filtered by direction and the given options.
func (c *Client) Neighbors(ctx context.Context, access storage.AccessContext, id string, dir storage.Direction, opts *storage.NeighborOptions) ([]*storage.Neighbor, error) {
	neighbors, err := c.backend.Neighbors(ctx, id, dir, access, opts)
	if err != nil {
		return nil, NewMemoryError("Neighbors", err)
	}
	return neighbors, nil
}

// Expand traverses outgoing edges from the seed memories up to the
// configured depth and returns the induced subgraph.
func (c *Client) Expand(ctx context.Context, access storage.AccessContext, seeds []string, opts *storage.ExpandOptions) (*storage.ExpandResult, error) {
	result, err := c.backend.Expand(ctx, seeds, access, opts)
	if err != nil {
		return nil, NewMemoryError("Expand", err)
	}
	return result, nil
}
