package core

import (
	"context"
	"sort"

	"github.com/GlitchInZen/graph-mem/pkg/reduction"
	"github.com/GlitchInZen/graph-mem/pkg/storage"
)

// expandedHitScore is the similarity assigned to memories that enter the
// result set through graph expansion rather than vector search.
const expandedHitScore = 0.5

// RecallResult pairs a recalled memory with its relevance score.
type RecallResult struct {
	// Memory is the recalled memory.
	Memory *storage.Memory `json:"memory"`

	// Score is the cosine similarity of a search hit, or 0.5 for a memory
	// merged in through graph expansion.
	Score float64 `json:"score"`
}

// Recall retrieves the memories most similar to the query.
//
// Without an embedding adapter the result is empty, not an error. With graph
// expansion enabled, neighbors of the hits join the result set at score 0.5
// (keeping the higher score for memories found both ways), after which the
// threshold and limit are re-applied.
func (c *Client) Recall(ctx context.Context, access storage.AccessContext, query string, opts ...RecallOption) ([]RecallResult, error) {
	o := defaultRecallOptions()
	for _, opt := range opts {
		opt(&o)
	}

	if c.embedding == nil {
		return []RecallResult{}, nil
	}

	queryVec, err := c.embedding.Embed(ctx, query)
	if err != nil {
		return nil, NewMemoryError("Recall", err)
	}

	hits, err := c.backend.SearchMemories(ctx, queryVec, access, &storage.SearchOptions{
		Limit:         o.limit,
		Threshold:     o.threshold,
		Type:          o.memoryType,
		Tags:          o.tags,
		MinConfidence: o.minConfidence,
	})
	if err != nil {
		return nil, NewMemoryError("Recall", err)
	}

	results := make([]RecallResult, 0, len(hits))
	for _, m := range hits {
		results = append(results, RecallResult{Memory: m, Score: m.Score})
	}

	if o.expandGraph && len(results) > 0 {
		results, err = c.expandResults(ctx, access, results, o)
		if err != nil {
			return nil, NewMemoryError("Recall", err)
		}
	}
	return results, nil
}

// expandResults merges graph neighbors into the hit set and re-applies the
// recall threshold and limit.
func (c *Client) expandResults(ctx context.Context, access storage.AccessContext, results []RecallResult, o recallOptions) ([]RecallResult, error) {
	seeds := make([]string, len(results))
	byID := make(map[string]int, len(results))
	for i, r := range results {
		seeds[i] = r.Memory.ID
		byID[r.Memory.ID] = i
	}

	expanded, err := c.backend.Expand(ctx, seeds, access, &storage.ExpandOptions{
		Depth: o.graphDepth,
	})
	if err != nil {
		return nil, err
	}

	for _, m := range expanded.Memories {
		if i, ok := byID[m.ID]; ok {
			if results[i].Score < expandedHitScore {
				results[i].Score = expandedHitScore
			}
			continue
		}
		byID[m.ID] = len(results)
		results = append(results, RecallResult{Memory: m, Score: expandedHitScore})
	}

	filtered := results[:0]
	for _, r := range results {
		if r.Score >= o.threshold {
			filtered = append(filtered, r)
		}
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Score > filtered[j].Score
	})
	if len(filtered) > o.limit {
		filtered = filtered[:o.limit]
	}
	return filtered, nil
}

// RecallContext recalls memories and reduces them to a formatted context
// string for prompt injection.
func (c *Client) RecallContext(ctx context.Context, access storage.AccessContext, query string, reduceOpts reduction.Options, opts ...RecallOption) (string, error) {
	results, err := c.Recall(ctx, access, query, opts...)
	if err != nil {
		return "", err
	}

	in := reduction.Input{
		Memories:     make([]*storage.Memory, len(results)),
		Similarities: make(map[string]float64, len(results)),
	}
	for i, r := range results {
		in.Memories[i] = r.Memory
		in.Similarities[r.Memory.ID] = r.Score
	}

	if reduceOpts.IncludeEdges && len(results) > 0 {
		seeds := make([]string, len(results))
		for i, r := range results {
			seeds[i] = r.Memory.ID
		}
		expanded, err := c.backend.Expand(ctx, seeds, access, &storage.ExpandOptions{Depth: 1})
		if err == nil {
			in.Edges = expanded.Edges
		}
	}

	out, err := reduction.Reduce(in, reduceOpts)
	if err != nil {
		return "", NewMemoryError("RecallContext", err)
	}
	return out, nil
}
