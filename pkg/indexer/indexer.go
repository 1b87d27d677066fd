// Package indexer performs the asynchronous half of the write pipeline:
// embedding freshly written memories, persisting the vectors, and creating
// automatic similarity links.
package indexer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/GlitchInZen/graph-mem/pkg/embedder"
	"github.com/GlitchInZen/graph-mem/pkg/indexer/jobqueue"
	"github.com/GlitchInZen/graph-mem/pkg/storage"
)

const (
	// DefaultConcurrency bounds in-flight indexing goroutines.
	DefaultConcurrency = 4

	// maxAttempts is how many times a durable job is tried before it is
	// dropped.
	maxAttempts = 3

	// retryBase is the backoff unit for failed durable jobs; attempt n waits
	// retryBase << n.
	retryBase = 5 * time.Second

	// pollInterval is the durable worker's idle sleep.
	pollInterval = time.Second
)

// Config configures an Indexer.
type Config struct {
	// Backend is the store memories are read from and written back to.
	Backend storage.Backend

	// Provider produces embeddings.
	Provider embedder.Provider

	// Linker creates automatic edges; nil disables auto-linking.
	Linker *Linker

	// Queue makes indexing durable; nil selects in-process goroutines.
	Queue jobqueue.Queue

	// Concurrency bounds in-flight jobs. Default DefaultConcurrency.
	Concurrency int

	// Logger receives per-job failures.
	Logger zerolog.Logger
}

// Indexer embeds and links memories after their synchronous write completes.
//
// With a queue configured, jobs are persisted and drained by a worker loop;
// otherwise each submission runs on its own goroutine.
type Indexer struct {
	backend  storage.Backend
	provider embedder.Provider
	linker   *Linker
	queue    jobqueue.Queue
	logger   zerolog.Logger

	wg   sync.WaitGroup
	sem  chan struct{}
	stop chan struct{}
	once sync.Once
}

// New creates an Indexer.
func New(cfg Config) *Indexer {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Indexer{
		backend:  cfg.Backend,
		provider: cfg.Provider,
		linker:   cfg.Linker,
		queue:    cfg.Queue,
		logger:   cfg.Logger,
		sem:      make(chan struct{}, concurrency),
		stop:     make(chan struct{}),
	}
}

// Start launches the durable worker loop. A no-op without a queue.
func (ix *Indexer) Start(ctx context.Context) {
	if ix.queue == nil {
		return
	}
	ix.wg.Add(1)
	go ix.drain(ctx)
}

// Submit schedules a memory for embedding and linking.
func (ix *Indexer) Submit(memoryID string, access storage.AccessContext) error {
	if ix.queue != nil {
		return ix.queue.Enqueue(context.Background(), memoryID, access)
	}

	ix.wg.Add(1)
	go func() {
		defer ix.wg.Done()
		ix.sem <- struct{}{}
		defer func() { <-ix.sem }()

		if err := ix.process(context.Background(), memoryID, access); err != nil {
			ix.logger.Warn().Err(err).Str("memory_id", memoryID).Msg("indexing failed")
		}
	}()
	return nil
}

// Wait blocks until all in-flight work completes. Stop the worker loop first
// when a queue is configured.
func (ix *Indexer) Wait() {
	ix.wg.Wait()
}

// Close stops the worker loop and waits for in-flight jobs.
func (ix *Indexer) Close() {
	ix.once.Do(func() { close(ix.stop) })
	ix.wg.Wait()
}

// drain polls the durable queue until stopped.
func (ix *Indexer) drain(ctx context.Context) {
	defer ix.wg.Done()

	for {
		select {
		case <-ix.stop:
			return
		case <-ctx.Done():
			return
		default:
		}

		job, err := ix.queue.Dequeue(ctx)
		if err != nil {
			ix.logger.Error().Err(err).Msg("job dequeue failed")
			ix.sleep(pollInterval)
			continue
		}
		if job == nil {
			ix.sleep(pollInterval)
			continue
		}

		if err := ix.process(ctx, job.MemoryID, job.Access); err != nil {
			if job.Attempts >= maxAttempts {
				ix.logger.Error().Err(err).
					Str("memory_id", job.MemoryID).
					Int("attempts", job.Attempts).
					Msg("dropping indexing job")
				_ = ix.queue.Ack(ctx, job.MemoryID)
				continue
			}
			backoff := retryBase << uint(job.Attempts)
			_ = ix.queue.Nack(ctx, job.MemoryID, time.Now().Add(backoff))
			continue
		}
		_ = ix.queue.Ack(ctx, job.MemoryID)
	}
}

func (ix *Indexer) sleep(d time.Duration) {
	select {
	case <-time.After(d):
	case <-ix.stop:
	}
}

// process embeds one memory, stores the vector, and links it.
//
// A memory deleted between write and indexing is not an error; the job just
// evaporates.
func (ix *Indexer) process(ctx context.Context, memoryID string, access storage.AccessContext) error {
	m, err := ix.backend.GetMemory(ctx, memoryID, access)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if m.Embedding == nil {
		if ix.provider == nil {
			return nil
		}
		vec, err := ix.provider.Embed(ctx, m.Content)
		if err != nil {
			return err
		}
		m.Embedding = vec
		if err := ix.backend.PutMemory(ctx, m, access); err != nil {
			return err
		}
	}

	if ix.linker != nil {
		if _, err := ix.linker.Link(ctx, m, access); err != nil {
			ix.logger.Warn().Err(err).Str("memory_id", memoryID).Msg("auto-link failed")
		}
	}
	return nil
}
