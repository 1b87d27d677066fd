// Package storage defines the graph-mem data model and the Backend interface
// that all storage implementations must satisfy.
//
// The types live here, rather than in the core package, so that backends can
// enforce access control uniformly without an import cycle.
package storage

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MemoryType classifies a memory record.
type MemoryType string

const (
	// TypeFact is a discrete piece of knowledge.
	TypeFact MemoryType = "fact"

	// TypeConversation is a transcript fragment.
	TypeConversation MemoryType = "conversation"

	// TypeEpisodic is a record of something the agent experienced.
	TypeEpisodic MemoryType = "episodic"

	// TypeReflection is a synthesized insight derived from other memories.
	TypeReflection MemoryType = "reflection"

	// TypeObservation is a record of something the agent noticed.
	TypeObservation MemoryType = "observation"

	// TypeDecision is a record of a choice the agent made.
	TypeDecision MemoryType = "decision"
)

// MemoryScope defines the visibility tier of a memory or edge.
//
// Scopes form a total order private < shared < global; the more restrictive
// of two scopes is the minimum under this order.
type MemoryScope string

const (
	// ScopePrivate makes the record visible only to the owning agent.
	ScopePrivate MemoryScope = "private"

	// ScopeShared makes the record visible to agents in the same tenant.
	ScopeShared MemoryScope = "shared"

	// ScopeGlobal makes the record visible to every agent.
	ScopeGlobal MemoryScope = "global"
)

// EdgeType classifies a relationship between two memories.
type EdgeType string

const (
	// EdgeRelatesTo is a generic semantic association.
	EdgeRelatesTo EdgeType = "relates_to"

	// EdgeSupports marks the source as evidence for the target.
	EdgeSupports EdgeType = "supports"

	// EdgeContradicts marks the source as conflicting with the target.
	EdgeContradicts EdgeType = "contradicts"

	// EdgeCauses marks a causal relationship.
	EdgeCauses EdgeType = "causes"

	// EdgeFollows marks a temporal ordering.
	EdgeFollows EdgeType = "follows"
)

// Direction selects which edges Neighbors traverses.
type Direction string

const (
	// DirectionOutgoing follows edges where the node is the source.
	DirectionOutgoing Direction = "outgoing"

	// DirectionIncoming follows edges where the node is the target.
	DirectionIncoming Direction = "incoming"

	// DirectionBoth follows edges in either orientation.
	DirectionBoth Direction = "both"
)

// Memory is a typed text record with an optional vector embedding, owned by
// an agent.
//
// An embedding, when present, must have the dimensionality configured for the
// embedding model; it is absent until the indexer completes.
type Memory struct {
	// ID is an opaque stable identifier, unique per backend.
	ID string `json:"id"`

	// Type is one of the MemoryType constants.
	Type MemoryType `json:"type"`

	// Summary is a short free-form description.
	Summary string `json:"summary"`

	// Content is the full text.
	Content string `json:"content"`

	// Embedding is the vector representation of Content.
	// Omitted from JSON to reduce payload size.
	Embedding []float32 `json:"embedding,omitempty"`

	// Importance is a relevance prior in [0, 1]. Default 0.5.
	Importance float64 `json:"importance"`

	// Confidence is a trust level in [0, 1]. Default 0.7.
	// Memories with confidence below 0.7 are always private.
	Confidence float64 `json:"confidence"`

	// Scope is the visibility tier. Default private.
	Scope MemoryScope `json:"scope"`

	// AgentID identifies the owning agent. Immutable once stored.
	AgentID string `json:"agent_id"`

	// TenantID groups agents for shared-scope visibility.
	TenantID string `json:"tenant_id,omitempty"`

	// Tags is a set of short strings used for filtering only.
	Tags []string `json:"tags,omitempty"`

	// Metadata contains free-form additional attributes.
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	// SessionID ties the memory to the session that produced it.
	SessionID string `json:"session_id,omitempty"`

	// AccessCount is the number of times the memory was returned by a
	// similarity search.
	AccessCount int `json:"access_count"`

	// LastAccessedAt is when the memory last matched a search (nil if never).
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty"`

	// InsertedAt is when the memory was first stored.
	InsertedAt time.Time `json:"inserted_at"`

	// UpdatedAt is when the memory was last replaced.
	UpdatedAt time.Time `json:"updated_at"`

	// Score is the similarity score from search operations. Not persisted.
	Score float64 `json:"score,omitempty"`
}

// Edge is a typed weighted directed link between two memories.
type Edge struct {
	// ID is an opaque stable identifier.
	ID string `json:"id"`

	// FromID is the source memory id.
	FromID string `json:"from_id"`

	// ToID is the target memory id.
	ToID string `json:"to_id"`

	// Type is one of the EdgeType constants.
	Type EdgeType `json:"type"`

	// Weight is the strength of the relationship in [0, 1]. Default 0.5.
	Weight float64 `json:"weight"`

	// Confidence is a trust level in [0, 1]. Default 0.7.
	Confidence float64 `json:"confidence"`

	// Scope is the more restrictive of the endpoints' scopes.
	Scope MemoryScope `json:"scope"`

	// Metadata contains free-form additional attributes.
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	// InsertedAt is when the edge was created.
	InsertedAt time.Time `json:"inserted_at"`
}

// NewID generates an opaque identifier from 16 random bytes.
func NewID() string {
	return uuid.NewString()
}

// ParseMemoryType normalizes a string to a MemoryType.
func ParseMemoryType(s string) (MemoryType, error) {
	switch MemoryType(s) {
	case TypeFact, TypeConversation, TypeEpisodic, TypeReflection, TypeObservation, TypeDecision:
		return MemoryType(s), nil
	}
	return "", &ValidationError{Field: "type", Reason: fmt.Sprintf("unknown memory type %q", s)}
}

// ParseScope normalizes a string to a MemoryScope.
func ParseScope(s string) (MemoryScope, error) {
	switch MemoryScope(s) {
	case ScopePrivate, ScopeShared, ScopeGlobal:
		return MemoryScope(s), nil
	}
	return "", &ValidationError{Field: "scope", Reason: fmt.Sprintf("unknown scope %q", s)}
}

// ParseEdgeType normalizes a string to an EdgeType.
func ParseEdgeType(s string) (EdgeType, error) {
	switch EdgeType(s) {
	case EdgeRelatesTo, EdgeSupports, EdgeContradicts, EdgeCauses, EdgeFollows:
		return EdgeType(s), nil
	}
	return "", &ValidationError{Field: "type", Reason: fmt.Sprintf("unknown edge type %q", s)}
}

// scopeRank orders scopes from most to least restrictive.
func scopeRank(s MemoryScope) int {
	switch s {
	case ScopePrivate:
		return 0
	case ScopeShared:
		return 1
	case ScopeGlobal:
		return 2
	}
	return 0
}

// MinScope returns the more restrictive of two scopes under the order
// private < shared < global.
func MinScope(a, b MemoryScope) MemoryScope {
	if scopeRank(a) <= scopeRank(b) {
		return a
	}
	return b
}

// Validate checks the memory's invariants.
//
// dimensions is the configured embedding dimensionality; pass 0 to skip the
// length check (no adapter configured).
func (m *Memory) Validate(dimensions int) error {
	if m.AgentID == "" {
		return &ValidationError{Field: "agent_id", Reason: "must not be empty"}
	}
	if m.Content == "" {
		return &ValidationError{Field: "content", Reason: "must not be empty"}
	}
	if _, err := ParseMemoryType(string(m.Type)); err != nil {
		return err
	}
	if _, err := ParseScope(string(m.Scope)); err != nil {
		return err
	}
	if m.Importance < 0 || m.Importance > 1 {
		return &ValidationError{Field: "importance", Reason: "must be in [0, 1]"}
	}
	if m.Confidence < 0 || m.Confidence > 1 {
		return &ValidationError{Field: "confidence", Reason: "must be in [0, 1]"}
	}
	// Uncertain data never leaves the private scope.
	if m.Confidence < 0.7 && m.Scope != ScopePrivate {
		return &ValidationError{Field: "scope", Reason: "confidence below 0.7 requires private scope"}
	}
	if m.Embedding != nil && dimensions > 0 && len(m.Embedding) != dimensions {
		return &ValidationError{
			Field:  "embedding",
			Reason: fmt.Sprintf("expected %d dimensions, got %d", dimensions, len(m.Embedding)),
		}
	}
	return nil
}

// Validate checks the edge's invariants.
func (e *Edge) Validate() error {
	if e.FromID == "" {
		return &ValidationError{Field: "from_id", Reason: "must not be empty"}
	}
	if e.ToID == "" {
		return &ValidationError{Field: "to_id", Reason: "must not be empty"}
	}
	if _, err := ParseEdgeType(string(e.Type)); err != nil {
		return err
	}
	if _, err := ParseScope(string(e.Scope)); err != nil {
		return err
	}
	if e.Weight < 0 || e.Weight > 1 {
		return &ValidationError{Field: "weight", Reason: "must be in [0, 1]"}
	}
	if e.Confidence < 0 || e.Confidence > 1 {
		return &ValidationError{Field: "confidence", Reason: "must be in [0, 1]"}
	}
	return nil
}

// Clone returns a deep copy of the memory.
func (m *Memory) Clone() *Memory {
	cp := *m
	if m.Embedding != nil {
		cp.Embedding = append([]float32(nil), m.Embedding...)
	}
	if m.Tags != nil {
		cp.Tags = append([]string(nil), m.Tags...)
	}
	if m.Metadata != nil {
		cp.Metadata = make(map[string]interface{}, len(m.Metadata))
		for k, v := range m.Metadata {
			cp.Metadata[k] = v
		}
	}
	if m.LastAccessedAt != nil {
		t := *m.LastAccessedAt
		cp.LastAccessedAt = &t
	}
	return &cp
}

// Clone returns a deep copy of the edge.
func (e *Edge) Clone() *Edge {
	cp := *e
	if e.Metadata != nil {
		cp.Metadata = make(map[string]interface{}, len(e.Metadata))
		for k, v := range e.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}
