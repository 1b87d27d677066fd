package core

import (
	"github.com/rs/zerolog"

	"github.com/GlitchInZen/graph-mem/pkg/embedder"
	"github.com/GlitchInZen/graph-mem/pkg/llm"
	"github.com/GlitchInZen/graph-mem/pkg/storage"
)

// ClientOption configures a Client at construction time.
type ClientOption func(*clientOptions)

type clientOptions struct {
	config    *Config
	backend   storage.Backend
	embedding embedder.Provider
	reflector llm.Provider
	logger    *zerolog.Logger
}

// WithConfig supplies the configuration explicitly instead of reading the
// environment.
func WithConfig(cfg *Config) ClientOption {
	return func(o *clientOptions) {
		o.config = cfg
	}
}

// WithBackend injects a pre-built storage backend, overriding the configured
// one. The client takes ownership and closes it.
func WithBackend(b storage.Backend) ClientOption {
	return func(o *clientOptions) {
		o.backend = b
	}
}

// WithEmbeddingProvider injects a pre-built embedding provider, overriding
// the configured adapter. The client takes ownership and closes it.
func WithEmbeddingProvider(p embedder.Provider) ClientOption {
	return func(o *clientOptions) {
		o.embedding = p
	}
}

// WithReflectionProvider injects a pre-built LLM provider for reflection.
func WithReflectionProvider(p llm.Provider) ClientOption {
	return func(o *clientOptions) {
		o.reflector = p
	}
}

// WithLogger sets the client logger. Default is a disabled logger.
func WithLogger(logger zerolog.Logger) ClientOption {
	return func(o *clientOptions) {
		o.logger = &logger
	}
}

// rememberOptions collects attributes for a Remember call.
type rememberOptions struct {
	memoryType storage.MemoryType
	summary    string
	importance float64
	confidence float64
	scope      storage.MemoryScope
	tenantID   string
	tags       []string
	metadata   map[string]interface{}
	sessionID  string
	embedding  []float32
}

// RememberOption configures a Remember call.
type RememberOption func(*rememberOptions)

func defaultRememberOptions() rememberOptions {
	return rememberOptions{
		memoryType: storage.TypeFact,
		importance: 0.5,
		confidence: 0.7,
		scope:      storage.ScopePrivate,
	}
}

// WithType sets the memory type. Default fact.
func WithType(t storage.MemoryType) RememberOption {
	return func(o *rememberOptions) {
		o.memoryType = t
	}
}

// WithSummary sets a short description of the memory.
func WithSummary(summary string) RememberOption {
	return func(o *rememberOptions) {
		o.summary = summary
	}
}

// WithImportance sets the relevance prior in [0, 1]. Default 0.5.
func WithImportance(importance float64) RememberOption {
	return func(o *rememberOptions) {
		o.importance = importance
	}
}

// WithConfidence sets the trust level in [0, 1]. Default 0.7.
// A confidence below 0.7 forces the memory private.
func WithConfidence(confidence float64) RememberOption {
	return func(o *rememberOptions) {
		o.confidence = confidence
	}
}

// WithScope sets the requested visibility tier. Default private. A scope the
// caller cannot write is silently demoted to private.
func WithScope(scope storage.MemoryScope) RememberOption {
	return func(o *rememberOptions) {
		o.scope = scope
	}
}

// WithTenant sets the tenant the memory belongs to.
func WithTenant(tenantID string) RememberOption {
	return func(o *rememberOptions) {
		o.tenantID = tenantID
	}
}

// WithTags attaches filter tags.
func WithTags(tags ...string) RememberOption {
	return func(o *rememberOptions) {
		o.tags = tags
	}
}

// WithMetadata attaches free-form metadata.
func WithMetadata(metadata map[string]interface{}) RememberOption {
	return func(o *rememberOptions) {
		o.metadata = metadata
	}
}

// WithSession ties the memory to a session.
func WithSession(sessionID string) RememberOption {
	return func(o *rememberOptions) {
		o.sessionID = sessionID
	}
}

// WithEmbedding supplies a pre-computed embedding, bypassing async indexing.
func WithEmbedding(embedding []float32) RememberOption {
	return func(o *rememberOptions) {
		o.embedding = embedding
	}
}

// recallOptions collects parameters for a Recall call.
type recallOptions struct {
	limit         int
	threshold     float64
	memoryType    storage.MemoryType
	tags          []string
	minConfidence float64
	expandGraph   bool
	graphDepth    int
}

// RecallOption configures a Recall call.
type RecallOption func(*recallOptions)

func defaultRecallOptions() recallOptions {
	return recallOptions{
		limit:      storage.DefaultSearchLimit,
		threshold:  storage.DefaultSearchThreshold,
		graphDepth: 1,
	}
}

// WithLimit caps the number of results. Default 5.
func WithLimit(limit int) RecallOption {
	return func(o *recallOptions) {
		o.limit = limit
	}
}

// WithThreshold sets the minimum similarity for a hit. Default 0.3.
func WithThreshold(threshold float64) RecallOption {
	return func(o *recallOptions) {
		o.threshold = threshold
	}
}

// WithTypeFilter restricts results to one memory type.
func WithTypeFilter(t storage.MemoryType) RecallOption {
	return func(o *recallOptions) {
		o.memoryType = t
	}
}

// WithTagFilter restricts results to memories carrying every tag.
func WithTagFilter(tags ...string) RecallOption {
	return func(o *recallOptions) {
		o.tags = tags
	}
}

// WithMinConfidence filters out memories below this confidence.
func WithMinConfidence(min float64) RecallOption {
	return func(o *recallOptions) {
		o.minConfidence = min
	}
}

// WithGraphExpansion merges graph neighbors of the hits into the result set,
// traversing up to depth edges. Depth defaults to 1 when not positive.
func WithGraphExpansion(depth int) RecallOption {
	return func(o *recallOptions) {
		o.expandGraph = true
		if depth > 0 {
			o.graphDepth = depth
		}
	}
}

// linkOptions collects attributes for a Link call.
type linkOptions struct {
	weight     float64
	confidence float64
	metadata   map[string]interface{}
}

// LinkOption configures a Link call.
type LinkOption func(*linkOptions)

func defaultLinkOptions() linkOptions {
	return linkOptions{
		weight:     0.5,
		confidence: 0.7,
	}
}

// WithWeight sets the relationship strength in [0, 1]. Default 0.5.
// Zero is a valid weight and is stored as given.
func WithWeight(weight float64) LinkOption {
	return func(o *linkOptions) {
		o.weight = weight
	}
}

// WithEdgeConfidence sets the trust level of the edge in [0, 1]. Default 0.7.
func WithEdgeConfidence(confidence float64) LinkOption {
	return func(o *linkOptions) {
		o.confidence = confidence
	}
}

// WithEdgeMetadata attaches free-form edge attributes.
func WithEdgeMetadata(metadata map[string]interface{}) LinkOption {
	return func(o *linkOptions) {
		o.metadata = metadata
	}
}

// reflectOptions collects parameters for a Reflect call.
type reflectOptions struct {
	topic       string
	minMemories int
	maxMemories int
	store       bool
}

// ReflectOption configures a Reflect call.
type ReflectOption func(*reflectOptions)

func defaultReflectOptions() reflectOptions {
	return reflectOptions{
		minMemories: 3,
		maxMemories: 15,
		store:       true,
	}
}

// WithTopic focuses the reflection on a topic.
func WithTopic(topic string) ReflectOption {
	return func(o *reflectOptions) {
		o.topic = topic
	}
}

// WithMinMemories sets how many memories a reflection needs. Default 3.
func WithMinMemories(min int) ReflectOption {
	return func(o *reflectOptions) {
		o.minMemories = min
	}
}

// WithMaxMemories caps the memories fed to the synthesizer. Default 15.
func WithMaxMemories(max int) ReflectOption {
	return func(o *reflectOptions) {
		o.maxMemories = max
	}
}

// WithoutStore returns the reflection text without persisting it.
func WithoutStore() ReflectOption {
	return func(o *reflectOptions) {
		o.store = false
	}
}
