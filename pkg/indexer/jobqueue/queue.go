// Package jobqueue provides durable queueing for pending indexing work, so
// that memories written without embeddings survive a process restart.
package jobqueue

import (
	"context"
	"time"

	"github.com/GlitchInZen/graph-mem/pkg/storage"
)

// Job is one unit of pending indexing work.
type Job struct {
	// MemoryID identifies the memory awaiting indexing.
	MemoryID string `json:"memory_id"`

	// Access is the access context the write was performed under; indexing
	// runs with the same rights.
	Access storage.AccessContext `json:"access"`

	// Attempts counts how many times the job has been leased.
	Attempts int `json:"attempts"`

	// EnqueuedAt is when the job was first queued.
	EnqueuedAt time.Time `json:"enqueued_at"`

	// NextRunAt is when the job becomes due.
	NextRunAt time.Time `json:"next_run_at"`
}

// Queue is a durable at-least-once job queue keyed by memory id.
//
// Enqueueing a memory that is already queued refreshes the existing job only
// when it is older than the dedup window; within the window it is a no-op.
type Queue interface {
	// Enqueue adds or refreshes a job for the memory.
	Enqueue(ctx context.Context, memoryID string, access storage.AccessContext) error

	// Dequeue leases the next due job, pushing its due time forward so a
	// crashed worker releases it. Returns nil when nothing is due.
	Dequeue(ctx context.Context) (*Job, error)

	// Ack removes a completed job.
	Ack(ctx context.Context, memoryID string) error

	// Nack reschedules a failed job for the given time.
	Nack(ctx context.Context, memoryID string, nextRunAt time.Time) error

	// Pending returns the number of queued jobs.
	Pending(ctx context.Context) (int, error)

	// Close releases the queue's resources.
	Close() error
}
