package jobqueue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/GlitchInZen/graph-mem/pkg/storage"
)

const (
	// dedupWindow is how long an existing job suppresses re-enqueues of the
	// same memory.
	dedupWindow = 60 * time.Second

	// leaseDuration is how long a dequeued job stays invisible before a
	// crashed worker releases it.
	leaseDuration = 60 * time.Second
)

// SQLite is a Queue backed by a local SQLite file.
type SQLite struct {
	db *sql.DB
}

var _ Queue = (*SQLite)(nil)

// OpenSQLite opens or creates the queue database at path. Use ":memory:" for
// an ephemeral queue.
func OpenSQLite(path string) (*SQLite, error) {
	dsn := path
	if path != ":memory:" {
		// WAL keeps enqueues from blocking on the drain loop's reads.
		dsn = path + "?_journal_mode=WAL"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("jobqueue: open: %w", err)
	}
	// SQLite allows one writer at a time; a second connection would only
	// produce SQLITE_BUSY errors.
	db.SetMaxOpenConns(1)

	schema := `
		CREATE TABLE IF NOT EXISTS index_jobs (
			memory_id TEXT PRIMARY KEY,
			access TEXT NOT NULL,
			attempts INTEGER NOT NULL DEFAULT 0,
			enqueued_at INTEGER NOT NULL,
			next_run_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_index_jobs_due ON index_jobs (next_run_at);
	`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("jobqueue: init schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Enqueue adds a job, or refreshes one that has sat in the queue longer than
// the dedup window.
func (q *SQLite) Enqueue(ctx context.Context, memoryID string, access storage.AccessContext) error {
	accessJSON, err := json.Marshal(access)
	if err != nil {
		return fmt.Errorf("jobqueue: enqueue: %w", err)
	}

	now := time.Now().Unix()
	query := `
		INSERT INTO index_jobs (memory_id, access, attempts, enqueued_at, next_run_at)
		VALUES (?, ?, 0, ?, ?)
		ON CONFLICT(memory_id) DO UPDATE SET
			access = excluded.access,
			attempts = 0,
			enqueued_at = excluded.enqueued_at,
			next_run_at = excluded.next_run_at
		WHERE excluded.enqueued_at - index_jobs.enqueued_at >= ?
	`
	_, err = q.db.ExecContext(ctx, query, memoryID, string(accessJSON), now, now, int64(dedupWindow.Seconds()))
	if err != nil {
		return fmt.Errorf("jobqueue: enqueue: %w", err)
	}
	return nil
}

// Dequeue leases the next due job.
func (q *SQLite) Dequeue(ctx context.Context) (*Job, error) {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("jobqueue: dequeue: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().Unix()
	row := tx.QueryRowContext(ctx, `
		SELECT memory_id, access, attempts, enqueued_at, next_run_at
		FROM index_jobs
		WHERE next_run_at <= ?
		ORDER BY next_run_at
		LIMIT 1
	`, now)

	var (
		job        Job
		accessJSON string
		enqueued   int64
		nextRun    int64
	)
	err = row.Scan(&job.MemoryID, &accessJSON, &job.Attempts, &enqueued, &nextRun)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("jobqueue: dequeue: %w", err)
	}
	if err := json.Unmarshal([]byte(accessJSON), &job.Access); err != nil {
		return nil, fmt.Errorf("jobqueue: dequeue: %w", err)
	}
	job.EnqueuedAt = time.Unix(enqueued, 0)
	job.NextRunAt = time.Unix(nextRun, 0)

	lease := time.Now().Add(leaseDuration).Unix()
	_, err = tx.ExecContext(ctx,
		"UPDATE index_jobs SET attempts = attempts + 1, next_run_at = ? WHERE memory_id = ?",
		lease, job.MemoryID)
	if err != nil {
		return nil, fmt.Errorf("jobqueue: dequeue: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("jobqueue: dequeue: %w", err)
	}

	job.Attempts++
	return &job, nil
}

// Ack removes a completed job.
func (q *SQLite) Ack(ctx context.Context, memoryID string) error {
	_, err := q.db.ExecContext(ctx, "DELETE FROM index_jobs WHERE memory_id = ?", memoryID)
	if err != nil {
		return fmt.Errorf("jobqueue: ack: %w", err)
	}
	return nil
}

// Nack reschedules a failed job.
func (q *SQLite) Nack(ctx context.Context, memoryID string, nextRunAt time.Time) error {
	_, err := q.db.ExecContext(ctx,
		"UPDATE index_jobs SET next_run_at = ? WHERE memory_id = ?",
		nextRunAt.Unix(), memoryID)
	if err != nil {
		return fmt.Errorf("jobqueue: nack: %w", err)
	}
	return nil
}

// Pending returns the number of queued jobs.
func (q *SQLite) Pending(ctx context.Context) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM index_jobs").Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("jobqueue: pending: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (q *SQLite) Close() error {
	return q.db.Close()
}
