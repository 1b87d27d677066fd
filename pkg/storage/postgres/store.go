// Package postgres provides a PostgreSQL + pgvector Backend implementation.
//
// Memories are stored with a vector(D) column and searched through pgvector's
// cosine distance operator; graph expansion runs as a single recursive CTE.
// Every query is parameterized; identifiers and bounds are never interpolated
// into SQL text.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"

	"github.com/GlitchInZen/graph-mem/pkg/storage"
)

// Config contains PostgreSQL connection settings.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string

	// Dimensions is the embedding dimensionality used for the vector column.
	Dimensions int
}

// Store implements storage.Backend on PostgreSQL with the pgvector extension.
type Store struct {
	cfg Config
	db  *sql.DB
}

var _ storage.Backend = (*Store)(nil)

// New creates a store; the connection is established by Start.
func New(cfg Config) *Store {
	if cfg.SSLMode == "" {
		cfg.SSLMode = "disable"
	}
	if cfg.Port == 0 {
		cfg.Port = 5432
	}
	return &Store{cfg: cfg}
}

// Start opens the connection and initializes the schema.
func (s *Store) Start(ctx context.Context) error {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		s.cfg.Host, s.cfg.Port, s.cfg.User, s.cfg.Password, s.cfg.DBName, s.cfg.SSLMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("postgres: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres: ping: %w", err)
	}
	s.db = db

	if err := s.initSchema(ctx); err != nil {
		return err
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) initSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("postgres: create extension: %w", err)
	}

	// The vector dimensionality is fixed per deployment; it is the only value
	// formatted into DDL, and it is an integer.
	createMemories := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS memories (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			summary TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL,
			embedding vector(%d),
			importance DOUBLE PRECISION NOT NULL DEFAULT 0.5,
			confidence DOUBLE PRECISION NOT NULL DEFAULT 0.7,
			scope TEXT NOT NULL DEFAULT 'private',
			agent_id TEXT NOT NULL,
			tenant_id TEXT NOT NULL DEFAULT '',
			tags TEXT[] NOT NULL DEFAULT '{}',
			metadata JSONB,
			session_id TEXT NOT NULL DEFAULT '',
			access_count INTEGER NOT NULL DEFAULT 0,
			last_accessed_at TIMESTAMPTZ,
			inserted_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`, s.cfg.Dimensions)
	if _, err := s.db.ExecContext(ctx, createMemories); err != nil {
		return fmt.Errorf("postgres: create memories: %w", err)
	}

	createEdges := `
		CREATE TABLE IF NOT EXISTS edges (
			id TEXT PRIMARY KEY,
			from_id TEXT NOT NULL REFERENCES memories(id) ON DELETE CASCADE,
			to_id TEXT NOT NULL REFERENCES memories(id) ON DELETE CASCADE,
			type TEXT NOT NULL DEFAULT 'relates_to',
			weight DOUBLE PRECISION NOT NULL DEFAULT 0.5,
			confidence DOUBLE PRECISION NOT NULL DEFAULT 0.7,
			scope TEXT NOT NULL DEFAULT 'private',
			metadata JSONB,
			inserted_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (from_id, to_id, type)
		)
	`
	if _, err := s.db.ExecContext(ctx, createEdges); err != nil {
		return fmt.Errorf("postgres: create edges: %w", err)
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_memories_type ON memories (type)",
		"CREATE INDEX IF NOT EXISTS idx_memories_agent_id ON memories (agent_id)",
		"CREATE INDEX IF NOT EXISTS idx_memories_scope ON memories (scope)",
		"CREATE INDEX IF NOT EXISTS idx_memories_tenant_id ON memories (tenant_id)",
		"CREATE INDEX IF NOT EXISTS idx_memories_session_id ON memories (session_id)",
		"CREATE INDEX IF NOT EXISTS idx_memories_confidence ON memories (confidence)",
		"CREATE INDEX IF NOT EXISTS idx_memories_agent_scope_time ON memories (agent_id, scope, inserted_at)",
		"CREATE INDEX IF NOT EXISTS idx_memories_tags ON memories USING gin (tags)",
		"CREATE INDEX IF NOT EXISTS idx_memories_embedding ON memories USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100)",
		"CREATE INDEX IF NOT EXISTS idx_edges_from ON edges (from_id)",
		"CREATE INDEX IF NOT EXISTS idx_edges_to ON edges (to_id)",
		"CREATE INDEX IF NOT EXISTS idx_edges_from_type_weight ON edges (from_id, type, weight)",
	}
	for _, q := range indexes {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("postgres: create index: %w", err)
		}
	}
	return nil
}

// scopePredicate builds the parameterized visibility filter for the access
// context against the memories table under the given alias.
func scopePredicate(access storage.AccessContext, alias string, args *[]interface{}) string {
	if access.Role == storage.RoleSystem {
		return "TRUE"
	}

	var parts []string

	*args = append(*args, access.AgentID)
	parts = append(parts, fmt.Sprintf("(%s.scope = 'private' AND %s.agent_id = $%d)", alias, alias, len(*args)))

	if access.CanRead(storage.ScopeShared) {
		if access.TenantID == "" {
			parts = append(parts, fmt.Sprintf("%s.scope = 'shared'", alias))
		} else {
			*args = append(*args, access.TenantID)
			parts = append(parts, fmt.Sprintf("(%s.scope = 'shared' AND %s.tenant_id = $%d)", alias, alias, len(*args)))
		}
	}
	if access.CanRead(storage.ScopeGlobal) {
		parts = append(parts, fmt.Sprintf("%s.scope = 'global'", alias))
	}

	return "(" + strings.Join(parts, " OR ") + ")"
}

const memoryColumns = `id, type, summary, content, embedding::text, importance, confidence, scope,
	agent_id, tenant_id, tags, metadata, session_id, access_count, last_accessed_at, inserted_at, updated_at`

const edgeColumns = `id, from_id, to_id, type, weight, confidence, scope, metadata, inserted_at`

// PutMemory upserts a memory. The id is the conflict key; agent_id and
// inserted_at are never overwritten on conflict.
func (s *Store) PutMemory(ctx context.Context, m *storage.Memory, access storage.AccessContext) error {
	if !access.CanWrite(m.Scope) {
		return storage.ErrAccessDenied
	}

	metadata, err := marshalMetadata(m.Metadata)
	if err != nil {
		return fmt.Errorf("postgres: put memory: %w", err)
	}

	query := `
		INSERT INTO memories
			(id, type, summary, content, embedding, importance, confidence, scope,
			 agent_id, tenant_id, tags, metadata, session_id, access_count, last_accessed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			type = EXCLUDED.type,
			summary = EXCLUDED.summary,
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding,
			importance = EXCLUDED.importance,
			confidence = EXCLUDED.confidence,
			scope = EXCLUDED.scope,
			tenant_id = EXCLUDED.tenant_id,
			tags = EXCLUDED.tags,
			metadata = EXCLUDED.metadata,
			session_id = EXCLUDED.session_id,
			updated_at = now()
	`
	_, err = s.db.ExecContext(ctx, query,
		m.ID,
		string(m.Type),
		m.Summary,
		m.Content,
		vectorValue(m.Embedding),
		m.Importance,
		m.Confidence,
		string(m.Scope),
		m.AgentID,
		m.TenantID,
		pq.Array(m.Tags),
		metadata,
		m.SessionID,
		m.AccessCount,
		m.LastAccessedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: put memory: %w", err)
	}
	return nil
}

// GetMemory retrieves a memory by id, enforcing access control.
func (s *Store) GetMemory(ctx context.Context, id string, access storage.AccessContext) (*storage.Memory, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+memoryColumns+" FROM memories WHERE id = $1", id)

	m, err := scanMemory(row, false)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get memory: %w", err)
	}
	if !access.CanAccessMemory(m) {
		return nil, storage.ErrAccessDenied
	}
	return m, nil
}

// DeleteMemory removes a memory under a single transaction; incident edges
// go with it through the ON DELETE CASCADE constraints.
func (s *Store) DeleteMemory(ctx context.Context, id string, access storage.AccessContext) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: delete memory: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var agentID string
	err = tx.QueryRowContext(ctx, "SELECT agent_id FROM memories WHERE id = $1", id).Scan(&agentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("postgres: delete memory: %w", err)
	}
	if access.Role != storage.RoleSystem && agentID != access.AgentID {
		return storage.ErrAccessDenied
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM memories WHERE id = $1", id); err != nil {
		return fmt.Errorf("postgres: delete memory: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: delete memory: %w", err)
	}
	return nil
}

// ListMemories returns accessible memories, newest first.
func (s *Store) ListMemories(ctx context.Context, access storage.AccessContext, opts *storage.ListOptions) ([]*storage.Memory, error) {
	if opts == nil {
		opts = &storage.ListOptions{}
	}
	opts.Normalize()

	var args []interface{}
	where := []string{scopePredicate(access, "m", &args)}

	if opts.Type != "" {
		args = append(args, string(opts.Type))
		where = append(where, fmt.Sprintf("m.type = $%d", len(args)))
	}
	if len(opts.Tags) > 0 {
		args = append(args, pq.Array(opts.Tags))
		where = append(where, fmt.Sprintf("m.tags @> $%d", len(args)))
	}
	args = append(args, opts.Limit)

	query := fmt.Sprintf(`
		SELECT %s FROM memories m
		WHERE %s
		ORDER BY m.inserted_at DESC
		LIMIT $%d
	`, memoryColumns, strings.Join(where, " AND "), len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list memories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanMemories(rows, false)
}

// SearchMemories performs a scoped cosine similarity search through the
// pgvector <=> operator and bumps the access count of every hit.
func (s *Store) SearchMemories(ctx context.Context, embedding []float32, access storage.AccessContext, opts *storage.SearchOptions) ([]*storage.Memory, error) {
	if opts == nil {
		opts = &storage.SearchOptions{}
	}
	opts.Normalize()

	args := []interface{}{vectorValue(embedding)}
	where := []string{"m.embedding IS NOT NULL", scopePredicate(access, "m", &args)}

	if opts.Type != "" {
		args = append(args, string(opts.Type))
		where = append(where, fmt.Sprintf("m.type = $%d", len(args)))
	}
	if len(opts.Tags) > 0 {
		args = append(args, pq.Array(opts.Tags))
		where = append(where, fmt.Sprintf("m.tags @> $%d", len(args)))
	}
	if opts.MinConfidence > 0 {
		args = append(args, opts.MinConfidence)
		where = append(where, fmt.Sprintf("m.confidence >= $%d", len(args)))
	}
	args = append(args, opts.Threshold)
	where = append(where, fmt.Sprintf("1 - (m.embedding <=> $1) >= $%d", len(args)))
	args = append(args, opts.Limit)

	query := fmt.Sprintf(`
		SELECT %s, 1 - (m.embedding <=> $1) AS similarity
		FROM memories m
		WHERE %s
		ORDER BY m.embedding <=> $1
		LIMIT $%d
	`, memoryColumns, strings.Join(where, " AND "), len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: search memories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	hits, err := scanMemories(rows, true)
	if err != nil {
		return nil, err
	}

	if len(hits) > 0 {
		ids := make([]string, len(hits))
		for i, h := range hits {
			ids[i] = h.ID
		}
		// Best effort; a failed bump never fails the search.
		_, _ = s.db.ExecContext(ctx,
			"UPDATE memories SET access_count = access_count + 1, last_accessed_at = now() WHERE id = ANY($1)",
			pq.Array(ids))
	}
	return hits, nil
}

// PutEdge inserts an edge; a conflicting (from, to, type) triple is a no-op.
func (s *Store) PutEdge(ctx context.Context, e *storage.Edge, access storage.AccessContext) error {
	metadata, err := marshalMetadata(e.Metadata)
	if err != nil {
		return fmt.Errorf("postgres: put edge: %w", err)
	}

	id := e.ID
	if id == "" {
		id = storage.NewID()
	}

	query := `
		INSERT INTO edges (id, from_id, to_id, type, weight, confidence, scope, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (from_id, to_id, type) DO NOTHING
	`
	_, err = s.db.ExecContext(ctx, query,
		id, e.FromID, e.ToID, string(e.Type), e.Weight, e.Confidence, string(e.Scope), metadata)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return storage.ErrNotFound
		}
		return fmt.Errorf("postgres: put edge: %w", err)
	}
	return nil
}

// DeleteEdge removes the edge with the given triple. Idempotent.
func (s *Store) DeleteEdge(ctx context.Context, fromID, toID string, typ storage.EdgeType) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM edges WHERE from_id = $1 AND to_id = $2 AND type = $3",
		fromID, toID, string(typ))
	if err != nil {
		return fmt.Errorf("postgres: delete edge: %w", err)
	}
	return nil
}

// Neighbors returns incident edges joined with accessible peer memories.
func (s *Store) Neighbors(ctx context.Context, id string, dir storage.Direction, access storage.AccessContext, opts *storage.NeighborOptions) ([]*storage.Neighbor, error) {
	if opts == nil {
		opts = &storage.NeighborOptions{}
	}
	opts.Normalize()

	var out []*storage.Neighbor
	if dir == storage.DirectionOutgoing || dir == storage.DirectionBoth {
		batch, err := s.neighborsOneWay(ctx, id, access, opts, true)
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
	}
	if dir == storage.DirectionIncoming || dir == storage.DirectionBoth {
		batch, err := s.neighborsOneWay(ctx, id, access, opts, false)
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
	}
	if len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (s *Store) neighborsOneWay(ctx context.Context, id string, access storage.AccessContext, opts *storage.NeighborOptions, outgoing bool) ([]*storage.Neighbor, error) {
	anchor, peer := "from_id", "to_id"
	if !outgoing {
		anchor, peer = "to_id", "from_id"
	}

	args := []interface{}{id, opts.MinWeight}
	where := []string{
		fmt.Sprintf("e.%s = $1", anchor),
		"e.weight >= $2",
	}
	if opts.Type != "" {
		args = append(args, string(opts.Type))
		where = append(where, fmt.Sprintf("e.type = $%d", len(args)))
	}
	where = append(where, scopePredicate(access, "m", &args))
	args = append(args, opts.Limit)

	query := fmt.Sprintf(`
		SELECT %s, %s
		FROM edges e
		JOIN memories m ON m.id = e.%s
		WHERE %s
		ORDER BY e.weight DESC
		LIMIT $%d
	`, prefixColumns("m", memoryColumns), prefixColumns("e", edgeColumns), peer, strings.Join(where, " AND "), len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: neighbors: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*storage.Neighbor
	for rows.Next() {
		n, err := scanNeighbor(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: neighbors: %w", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: neighbors: %w", err)
	}
	return out, nil
}

// Expand collects the depth-bounded reachable set with a single recursive
// query, then loads the induced edges, inside one transaction.
func (s *Store) Expand(ctx context.Context, seeds []string, access storage.AccessContext, opts *storage.ExpandOptions) (*storage.ExpandResult, error) {
	if opts == nil {
		opts = &storage.ExpandOptions{}
	}
	opts.Normalize()
	if len(seeds) == 0 {
		return &storage.ExpandResult{}, nil
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("postgres: expand: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	args := []interface{}{pq.Array(seeds)}
	pred := scopePredicate(access, "m", &args)

	args = append(args, opts.Depth)
	depthArg := len(args)
	args = append(args, opts.MinWeight)
	weightArg := len(args)
	args = append(args, opts.MinConfidence)
	confArg := len(args)
	args = append(args, opts.Limit)
	limitArg := len(args)

	query := fmt.Sprintf(`
		WITH RECURSIVE traverse AS (
			SELECT m.id, 0 AS depth
			FROM memories m
			WHERE m.id = ANY($1) AND %s
			UNION
			SELECT e.to_id, t.depth + 1
			FROM traverse t
			JOIN edges e ON e.from_id = t.id
			JOIN memories m ON m.id = e.to_id
			WHERE t.depth < $%d
			  AND e.weight >= $%d
			  AND m.confidence >= $%d
			  AND %s
		)
		SELECT %s
		FROM memories m
		JOIN (
			SELECT id, MIN(depth) AS depth
			FROM traverse
			GROUP BY id
			ORDER BY depth
			LIMIT $%d
		) t ON t.id = m.id
		ORDER BY t.depth
	`, pred, depthArg, weightArg, confArg, pred, prefixColumns("m", memoryColumns), limitArg)

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: expand: %w", err)
	}
	memories, err := scanMemories(rows, false)
	_ = rows.Close()
	if err != nil {
		return nil, err
	}

	result := &storage.ExpandResult{Memories: memories}
	if len(memories) == 0 {
		return result, nil
	}

	ids := make([]string, len(memories))
	for i, m := range memories {
		ids[i] = m.ID
	}

	edgeQuery := "SELECT " + edgeColumns + ` FROM edges
		WHERE from_id = ANY($1) AND to_id = ANY($1) AND weight >= $2
		ORDER BY from_id, to_id`
	edgeRows, err := tx.QueryContext(ctx, edgeQuery, pq.Array(ids), opts.MinWeight)
	if err != nil {
		return nil, fmt.Errorf("postgres: expand edges: %w", err)
	}
	defer func() { _ = edgeRows.Close() }()

	for edgeRows.Next() {
		e, err := scanEdge(edgeRows)
		if err != nil {
			return nil, fmt.Errorf("postgres: expand edges: %w", err)
		}
		result.Edges = append(result.Edges, e)
	}
	if err := edgeRows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: expand edges: %w", err)
	}
	return result, nil
}

// prefixColumns qualifies each column of a comma-separated list with alias.
func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

// vectorValue renders an embedding in pgvector's text format, or NULL.
func vectorValue(v []float32) interface{} {
	if v == nil {
		return nil
	}
	parts := make([]string, len(v))
	for i, f := range v {
		parts[i] = strconv.FormatFloat(float64(f), 'f', -1, 32)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// parseVector parses pgvector's "[x,y,z]" text representation.
func parseVector(s string) ([]float32, error) {
	s = strings.Trim(strings.TrimSpace(s), "[]")
	if s == "" {
		return []float32{}, nil
	}
	parts := strings.Split(s, ",")
	out := make([]float32, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, err
		}
		out[i] = float32(f)
	}
	return out, nil
}

func marshalMetadata(m map[string]interface{}) (interface{}, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMemory(row rowScanner, withScore bool) (*storage.Memory, error) {
	var (
		m              storage.Memory
		typ, scope     string
		embedding      sql.NullString
		metadata       []byte
		tags           pq.StringArray
		lastAccessedAt sql.NullTime
		score          float64
	)

	dest := []interface{}{
		&m.ID, &typ, &m.Summary, &m.Content, &embedding, &m.Importance, &m.Confidence, &scope,
		&m.AgentID, &m.TenantID, &tags, &metadata, &m.SessionID, &m.AccessCount,
		&lastAccessedAt, &m.InsertedAt, &m.UpdatedAt,
	}
	if withScore {
		dest = append(dest, &score)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	m.Type = storage.MemoryType(typ)
	m.Scope = storage.MemoryScope(scope)
	m.Tags = []string(tags)
	if embedding.Valid {
		vec, err := parseVector(embedding.String)
		if err != nil {
			return nil, fmt.Errorf("parse embedding: %w", err)
		}
		m.Embedding = vec
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &m.Metadata); err != nil {
			return nil, fmt.Errorf("parse metadata: %w", err)
		}
	}
	if lastAccessedAt.Valid {
		t := lastAccessedAt.Time
		m.LastAccessedAt = &t
	}
	if withScore {
		m.Score = score
	}
	return &m, nil
}

func scanMemories(rows *sql.Rows, withScore bool) ([]*storage.Memory, error) {
	var out []*storage.Memory
	for rows.Next() {
		m, err := scanMemory(rows, withScore)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan memory: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: scan memories: %w", err)
	}
	return out, nil
}

func scanEdge(row rowScanner) (*storage.Edge, error) {
	var (
		e          storage.Edge
		typ, scope string
		metadata   []byte
	)
	if err := row.Scan(&e.ID, &e.FromID, &e.ToID, &typ, &e.Weight, &e.Confidence, &scope, &metadata, &e.InsertedAt); err != nil {
		return nil, err
	}
	e.Type = storage.EdgeType(typ)
	e.Scope = storage.MemoryScope(scope)
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
			return nil, fmt.Errorf("parse metadata: %w", err)
		}
	}
	return &e, nil
}

// scanNeighbor scans a row of memory columns followed by edge columns.
func scanNeighbor(rows *sql.Rows) (*storage.Neighbor, error) {
	var (
		m              storage.Memory
		mType, mScope  string
		embedding      sql.NullString
		mMetadata      []byte
		tags           pq.StringArray
		lastAccessedAt sql.NullTime

		e             storage.Edge
		eType, eScope string
		eMetadata     []byte
	)

	err := rows.Scan(
		&m.ID, &mType, &m.Summary, &m.Content, &embedding, &m.Importance, &m.Confidence, &mScope,
		&m.AgentID, &m.TenantID, &tags, &mMetadata, &m.SessionID, &m.AccessCount,
		&lastAccessedAt, &m.InsertedAt, &m.UpdatedAt,
		&e.ID, &e.FromID, &e.ToID, &eType, &e.Weight, &e.Confidence, &eScope, &eMetadata, &e.InsertedAt,
	)
	if err != nil {
		return nil, err
	}

	m.Type = storage.MemoryType(mType)
	m.Scope = storage.MemoryScope(mScope)
	m.Tags = []string(tags)
	if embedding.Valid {
		vec, err := parseVector(embedding.String)
		if err != nil {
			return nil, fmt.Errorf("parse embedding: %w", err)
		}
		m.Embedding = vec
	}
	if len(mMetadata) > 0 {
		if err := json.Unmarshal(mMetadata, &m.Metadata); err != nil {
			return nil, fmt.Errorf("parse metadata: %w", err)
		}
	}
	if lastAccessedAt.Valid {
		t := lastAccessedAt.Time
		m.LastAccessedAt = &t
	}

	e.Type = storage.EdgeType(eType)
	e.Scope = storage.MemoryScope(eScope)
	if len(eMetadata) > 0 {
		if err := json.Unmarshal(eMetadata, &e.Metadata); err != nil {
			return nil, fmt.Errorf("parse metadata: %w", err)
		}
	}

	return &storage.Neighbor{Memory: &m, Edge: &e}, nil
}
