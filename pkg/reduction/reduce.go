// Package reduction turns a set of recalled memories into a bounded, formatted
// context string for prompt injection.
//
// Memories are ranked by a composite of similarity, confidence, importance,
// recency, and access frequency, then greedily selected under a character
// budget derived from the token budget.
package reduction

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/GlitchInZen/graph-mem/pkg/storage"
)

// Format selects the output rendering.
type Format string

const (
	// FormatText renders Markdown.
	FormatText Format = "text"

	// FormatStructured renders XML-like memory elements.
	FormatStructured Format = "structured"

	// FormatJSON renders a single JSON document.
	FormatJSON Format = "json"
)

const (
	// DefaultMaxTokens is the token budget when none is configured.
	DefaultMaxTokens = 2000

	// charsPerToken approximates the character cost of one token.
	charsPerToken = 4

	// Edge caps per format.
	textEdgeLimit = 10
	jsonEdgeLimit = 20
)

// Composite score weights.
const (
	weightSimilarity = 0.35
	weightConfidence = 0.25
	weightImportance = 0.20
	weightRecency    = 0.10
	weightAccess     = 0.10
)

// Options controls Reduce.
type Options struct {
	// MaxTokens is the output budget. Default DefaultMaxTokens.
	MaxTokens int

	// IncludeEdges adds a relationship section to the output.
	IncludeEdges bool

	// Format selects the rendering. Default FormatText.
	Format Format
}

// Input is the material handed to Reduce.
type Input struct {
	// Memories are the recalled memories, possibly with duplicates.
	Memories []*storage.Memory

	// Edges are relationships between the memories (optional).
	Edges []*storage.Edge

	// Similarities maps memory id to its recall score.
	Similarities map[string]float64
}

// scored pairs a memory with its recall similarity and composite score.
type scored struct {
	memory     *storage.Memory
	similarity float64
	score      float64
}

// Reduce ranks, selects, and formats memories into a context string.
func Reduce(in Input, opts Options) (string, error) {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	if opts.Format == "" {
		opts.Format = FormatText
	}

	// Dedup by id, first occurrence wins.
	seen := make(map[string]bool, len(in.Memories))
	var items []scored
	now := time.Now()
	for _, m := range in.Memories {
		if m == nil || seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		// A memory without a recorded similarity sits at the neutral midpoint
		// rather than the bottom of the ranking.
		sim, ok := in.Similarities[m.ID]
		if !ok {
			sim = 0.5
		}
		items = append(items, scored{memory: m, similarity: sim, score: CompositeScore(m, sim, now)})
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].score > items[j].score
	})

	budget := opts.MaxTokens * charsPerToken
	var selected []scored
	used := 0
	for _, it := range items {
		cost := len(it.memory.Summary) + len(it.memory.Content)
		if used+cost > budget && len(selected) > 0 {
			break
		}
		selected = append(selected, it)
		used += cost
	}

	switch opts.Format {
	case FormatText:
		return formatText(selected, in.Edges, opts.IncludeEdges), nil
	case FormatStructured:
		return formatStructured(selected, in.Edges, opts.IncludeEdges), nil
	case FormatJSON:
		return formatJSON(selected, in.Edges, opts.IncludeEdges)
	}
	return "", fmt.Errorf("unknown format %q", opts.Format)
}

// CompositeScore ranks a memory for selection.
//
// Weights: 0.35 similarity, 0.25 confidence, 0.20 importance, 0.10 recency,
// 0.10 access frequency.
func CompositeScore(m *storage.Memory, similarity float64, now time.Time) float64 {
	return weightSimilarity*similarity +
		weightConfidence*m.Confidence +
		weightImportance*m.Importance +
		weightRecency*recencyScore(m.InsertedAt, now) +
		weightAccess*accessScore(m.AccessCount)
}

// recencyScore buckets age into a coarse freshness signal.
func recencyScore(insertedAt time.Time, now time.Time) float64 {
	if insertedAt.IsZero() {
		return 0.5
	}
	age := now.Sub(insertedAt)
	switch {
	case age <= 24*time.Hour:
		return 1.0
	case age <= 7*24*time.Hour:
		return 0.8
	case age <= 30*24*time.Hour:
		return 0.6
	case age <= 90*24*time.Hour:
		return 0.4
	}
	return 0.2
}

// accessScore rewards frequently recalled memories; a never-recalled memory
// scores below the neutral 0.5.
func accessScore(count int) float64 {
	if count == 0 {
		return 0.3
	}
	s := 0.5 + 0.1*float64(count)
	if s > 1.0 {
		return 1.0
	}
	return s
}

func formatText(selected []scored, edges []*storage.Edge, includeEdges bool) string {
	var b strings.Builder
	b.WriteString("## Relevant Memories\n\n")
	for _, it := range selected {
		m := it.memory
		if m.Summary != "" {
			fmt.Fprintf(&b, "- **%s** (%s): %s\n", m.Summary, m.Type, m.Content)
		} else {
			fmt.Fprintf(&b, "- (%s): %s\n", m.Type, m.Content)
		}
	}

	if includeEdges && len(edges) > 0 {
		b.WriteString("\n## Memory Relationships\n\n")
		for i, e := range edges {
			if i >= textEdgeLimit {
				break
			}
			fmt.Fprintf(&b, "- %s --[%s]--> %s\n", e.FromID, e.Type, e.ToID)
		}
	}
	return b.String()
}

func formatStructured(selected []scored, edges []*storage.Edge, includeEdges bool) string {
	var b strings.Builder
	b.WriteString("<memories>\n")
	for _, it := range selected {
		m := it.memory
		fmt.Fprintf(&b, "  <memory id=%q type=%q confidence=%q>\n", m.ID, m.Type, fmt.Sprintf("%.2f", m.Confidence))
		fmt.Fprintf(&b, "    <summary>%s</summary>\n", escapeXML(m.Summary))
		fmt.Fprintf(&b, "    <content>%s</content>\n", escapeXML(m.Content))
		b.WriteString("  </memory>\n")
	}
	b.WriteString("</memories>")

	if includeEdges && len(edges) > 0 {
		b.WriteString("\n<relationships>\n")
		for _, e := range edges {
			fmt.Fprintf(&b, "  <edge from=%q to=%q type=%q weight=%q/>\n",
				e.FromID, e.ToID, e.Type, fmt.Sprintf("%.2f", e.Weight))
		}
		b.WriteString("</relationships>")
	}
	return b.String()
}

type jsonMemory struct {
	ID         string  `json:"id"`
	Type       string  `json:"type"`
	Summary    string  `json:"summary"`
	Content    string  `json:"content"`
	Confidence float64 `json:"confidence"`
	Relevance  float64 `json:"relevance"`
	Score      float64 `json:"score"`
}

type jsonEdge struct {
	From   string  `json:"from"`
	To     string  `json:"to"`
	Type   string  `json:"type"`
	Weight float64 `json:"weight"`
}

type jsonDocument struct {
	Memories []jsonMemory `json:"memories"`
	Edges    []jsonEdge   `json:"edges,omitempty"`
}

func formatJSON(selected []scored, edges []*storage.Edge, includeEdges bool) (string, error) {
	doc := jsonDocument{Memories: make([]jsonMemory, 0, len(selected))}
	for _, it := range selected {
		m := it.memory
		doc.Memories = append(doc.Memories, jsonMemory{
			ID:         m.ID,
			Type:       string(m.Type),
			Summary:    m.Summary,
			Content:    m.Content,
			Confidence: m.Confidence,
			Relevance:  it.similarity,
			Score:      it.score,
		})
	}
	if includeEdges {
		for i, e := range edges {
			if i >= jsonEdgeLimit {
				break
			}
			doc.Edges = append(doc.Edges, jsonEdge{
				From:   e.FromID,
				To:     e.ToID,
				Type:   string(e.Type),
				Weight: e.Weight,
			})
		}
	}

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("reduce: marshal: %w", err)
	}
	return string(out), nil
}

func escapeXML(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
	return r.Replace(s)
}
