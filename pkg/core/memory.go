package core

import (
	"context"
	"time"

	"github.com/GlitchInZen/graph-mem/pkg/storage"
)

// Remember stores a new memory for the agent identified by the access
// context and schedules asynchronous embedding and auto-linking.
//
// The write itself is synchronous and never blocks on, or fails because of,
// embedding work. A scope the caller cannot write is silently demoted to
// private, as is any memory with confidence below 0.7.
func (c *Client) Remember(ctx context.Context, access storage.AccessContext, content string, opts ...RememberOption) (*storage.Memory, error) {
	o := defaultRememberOptions()
	for _, opt := range opts {
		opt(&o)
	}

	scope := o.scope
	if !access.CanWrite(scope) {
		scope = storage.ScopePrivate
	}
	if o.confidence < 0.7 {
		scope = storage.ScopePrivate
	}

	tenantID := o.tenantID
	if tenantID == "" {
		tenantID = access.TenantID
	}

	now := time.Now().UTC()
	m := &storage.Memory{
		ID:         storage.NewID(),
		Type:       o.memoryType,
		Summary:    o.summary,
		Content:    content,
		Embedding:  o.embedding,
		Importance: o.importance,
		Confidence: o.confidence,
		Scope:      scope,
		AgentID:    access.AgentID,
		TenantID:   tenantID,
		Tags:       o.tags,
		Metadata:   o.metadata,
		SessionID:  o.sessionID,
		InsertedAt: now,
		UpdatedAt:  now,
	}

	if err := m.Validate(c.dimensions); err != nil {
		return nil, NewMemoryError("Remember", err)
	}
	if !access.CanWrite(m.Scope) {
		return nil, NewMemoryError("Remember", storage.ErrAccessDenied)
	}
	if err := c.backend.PutMemory(ctx, m, access); err != nil {
		return nil, NewMemoryError("Remember", err)
	}

	// Pre-embedded writes skip the embed step but still get auto-linked.
	if c.embedding != nil || m.Embedding != nil {
		if err := c.indexer.Submit(m.ID, access); err != nil {
			c.logger.Warn().Err(err).Str("memory_id", m.ID).Msg("indexing submit failed")
		}
	}

	return m, nil
}

// Get retrieves a memory by id under the access context.
func (c *Client) Get(ctx context.Context, access storage.AccessContext, id string) (*storage.Memory, error) {
	m, err := c.backend.GetMemory(ctx, id, access)
	if err != nil {
		return nil, NewMemoryError("Get", err)
	}
	return m, nil
}

// Delete removes a memory and all its edges. Only the owning agent or the
// system role may delete; deleting a missing memory is a no-op.
func (c *Client) Delete(ctx context.Context, access storage.AccessContext, id string) error {
	if err := c.backend.DeleteMemory(ctx, id, access); err != nil {
		return NewMemoryError("Delete", err)
	}
	return nil
}

// List returns accessible memories, newest first.
func (c *Client) List(ctx context.Context, access storage.AccessContext, opts *storage.ListOptions) ([]*storage.Memory, error) {
	memories, err := c.backend.ListMemories(ctx, access, opts)
	if err != nil {
		return nil, NewMemoryError("List", err)
	}
	return memories, nil
}
