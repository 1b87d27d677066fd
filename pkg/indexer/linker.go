package indexer

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/GlitchInZen/graph-mem/pkg/storage"
)

// Auto-link defaults.
const (
	DefaultLinkThreshold     = 0.75
	DefaultLinkMaxCandidates = 20
	DefaultLinkMaxLinks      = 5
)

// LinkerConfig controls automatic edge creation after indexing.
type LinkerConfig struct {
	// Threshold is the minimum similarity for a candidate. Default
	// DefaultLinkThreshold.
	Threshold float64

	// MaxCandidates bounds the similarity search. Default
	// DefaultLinkMaxCandidates.
	MaxCandidates int

	// MaxLinks bounds how many edges one memory receives. Default
	// DefaultLinkMaxLinks.
	MaxLinks int
}

// Linker creates relates_to edges from a freshly indexed memory to its most
// similar accessible neighbors.
type Linker struct {
	backend storage.Backend
	cfg     LinkerConfig
	logger  zerolog.Logger
}

// NewLinker creates a Linker over the given backend.
func NewLinker(backend storage.Backend, cfg LinkerConfig, logger zerolog.Logger) *Linker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultLinkThreshold
	}
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = DefaultLinkMaxCandidates
	}
	if cfg.MaxLinks <= 0 {
		cfg.MaxLinks = DefaultLinkMaxLinks
	}
	return &Linker{backend: backend, cfg: cfg, logger: logger}
}

// Link searches for the memory's nearest neighbors and writes one relates_to
// edge per qualifying candidate, returning how many edges were created. A
// memory without an embedding is skipped.
func (l *Linker) Link(ctx context.Context, m *storage.Memory, access storage.AccessContext) (int, error) {
	if m.Embedding == nil {
		return 0, nil
	}

	candidates, err := l.backend.SearchMemories(ctx, m.Embedding, access, &storage.SearchOptions{
		Limit:     l.cfg.MaxCandidates,
		Threshold: l.cfg.Threshold,
	})
	if err != nil {
		return 0, fmt.Errorf("link search: %w", err)
	}

	linked := 0
	for _, cand := range candidates {
		if linked >= l.cfg.MaxLinks {
			break
		}
		if cand.ID == m.ID {
			continue
		}

		confidence := m.Confidence
		if cand.Confidence < confidence {
			confidence = cand.Confidence
		}
		edge := &storage.Edge{
			ID:         storage.NewID(),
			FromID:     m.ID,
			ToID:       cand.ID,
			Type:       storage.EdgeRelatesTo,
			Weight:     cand.Score,
			Confidence: confidence,
			Scope:      storage.MinScope(m.Scope, cand.Scope),
			Metadata: map[string]interface{}{
				"linked_by":        "auto",
				"similarity_score": cand.Score,
			},
		}

		if err := l.backend.PutEdge(ctx, edge, access); err != nil {
			l.logger.Warn().Err(err).
				Str("from_id", m.ID).
				Str("to_id", cand.ID).
				Msg("auto-link edge write failed")
			continue
		}
		linked++
	}

	if linked > 0 {
		l.logger.Debug().Str("memory_id", m.ID).Int("links", linked).Msg("auto-linked memory")
	}
	return linked, nil
}
