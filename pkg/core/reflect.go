package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/GlitchInZen/graph-mem/pkg/llm"
	"github.com/GlitchInZen/graph-mem/pkg/storage"
)

const (
	// defaultReflectionQuery seeds recall when no topic is given.
	defaultReflectionQuery = "important observations, facts, and decisions"

	// reflectionSummaryLimit bounds the summary derived from the first line
	// of a synthesized reflection.
	reflectionSummaryLimit = 200

	// reflectionEdgeWeight is the weight of the supports edges from a stored
	// reflection to its sources.
	reflectionEdgeWeight = 0.7
)

// ReflectResult is the outcome of a Reflect call.
type ReflectResult struct {
	// Text is the synthesized reflection.
	Text string `json:"text"`

	// Memory is the stored reflection memory, nil when storing was disabled.
	Memory *storage.Memory `json:"memory,omitempty"`
}

// Reflect recalls a cluster of related memories and synthesizes an insight
// from them.
//
// With an LLM adapter configured the synthesis is generated; otherwise a
// deterministic bullet-list formatter is used. Unless disabled, the result is
// stored as a reflection memory linked to each source with a supports edge.
func (c *Client) Reflect(ctx context.Context, access storage.AccessContext, opts ...ReflectOption) (*ReflectResult, error) {
	o := defaultReflectOptions()
	for _, opt := range opts {
		opt(&o)
	}

	query := o.topic
	if query == "" {
		query = defaultReflectionQuery
	}

	results, err := c.Recall(ctx, access, query, WithLimit(o.maxMemories))
	if err != nil {
		return nil, err
	}
	if len(results) < o.minMemories {
		return nil, NewMemoryError("Reflect", ErrInsufficientMemories)
	}

	sources := make([]*storage.Memory, len(results))
	for i, r := range results {
		sources[i] = r.Memory
	}

	text, err := c.synthesize(ctx, sources, o.topic)
	if err != nil {
		return nil, NewMemoryError("Reflect", err)
	}

	result := &ReflectResult{Text: text}
	if !o.store {
		return result, nil
	}

	m, err := c.storeReflection(ctx, access, text, sources, o.topic)
	if err != nil {
		return nil, err
	}
	result.Memory = m
	return result, nil
}

func (c *Client) synthesize(ctx context.Context, sources []*storage.Memory, topic string) (string, error) {
	if c.reflector != nil {
		return llm.Reflect(ctx, c.reflector, sources, topic)
	}

	var b strings.Builder
	if topic != "" {
		fmt.Fprintf(&b, "Reflection about %s from %d memories:\n", topic, len(sources))
	} else {
		fmt.Fprintf(&b, "Reflection from %d memories:\n", len(sources))
	}
	for _, m := range sources {
		fmt.Fprintf(&b, "- [%s] %s\n", m.Type, m.Summary)
	}
	return b.String(), nil
}

func (c *Client) storeReflection(ctx context.Context, access storage.AccessContext, text string, sources []*storage.Memory, topic string) (*storage.Memory, error) {
	summary, content := splitReflection(text)

	var confidenceSum float64
	sourceIDs := make([]interface{}, len(sources))
	for i, m := range sources {
		confidenceSum += m.Confidence
		sourceIDs[i] = m.ID
	}
	confidence := confidenceSum/float64(len(sources)) + 0.1
	if confidence > 1.0 {
		confidence = 1.0
	}

	metadata := map[string]interface{}{"source_ids": sourceIDs}
	if topic != "" {
		metadata["topic"] = topic
	}

	m, err := c.Remember(ctx, access, content,
		WithType(storage.TypeReflection),
		WithSummary(summary),
		WithImportance(0.8),
		WithConfidence(confidence),
		WithScope(storage.ScopePrivate),
		WithMetadata(metadata),
	)
	if err != nil {
		return nil, err
	}

	for _, src := range sources {
		_, err := c.Link(ctx, access, m.ID, src.ID, storage.EdgeSupports,
			WithWeight(reflectionEdgeWeight), WithEdgeConfidence(confidence))
		if err != nil {
			c.logger.Warn().Err(err).
				Str("reflection_id", m.ID).
				Str("source_id", src.ID).
				Msg("reflection link failed")
		}
	}
	return m, nil
}

// splitReflection derives (summary, content) from the synthesized text. The
// first line becomes the summary, truncated to a bounded length; the rest
// becomes the content. A single-line reflection serves as both.
func splitReflection(text string) (string, string) {
	summary := text
	content := text
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		summary = text[:i]
		if rest := strings.TrimSpace(text[i+1:]); rest != "" {
			content = rest
		}
	}
	summary = strings.TrimSpace(summary)
	if runes := []rune(summary); len(runes) > reflectionSummaryLimit {
		summary = string(runes[:reflectionSummaryLimit])
	}
	return summary, content
}
