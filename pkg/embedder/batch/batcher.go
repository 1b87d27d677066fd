// Package batch wraps an embedder.Provider with request coalescing.
//
// Single Embed calls are queued and flushed to the underlying provider as one
// EmbedBatch call, either when the queue reaches the batch size or when the
// oldest queued request has waited for the batch timeout. Callers block until
// their own vector arrives.
package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/GlitchInZen/graph-mem/pkg/embedder"
)

const (
	// DefaultBatchSize is the flush threshold when none is configured.
	DefaultBatchSize = 32

	// DefaultTimeout is the maximum queueing delay when none is configured.
	DefaultTimeout = 50 * time.Millisecond

	// dispatchGrace bounds how long a dispatched batch may run beyond the
	// queueing delay before its waiters give up.
	dispatchGrace = 60 * time.Second
)

// ErrClosed is returned by Embed after Close.
var ErrClosed = errors.New("batcher closed")

// Config configures a Batcher.
type Config struct {
	// Provider is the wrapped embedding provider. Required.
	Provider embedder.Provider

	// BatchSize is the flush threshold. Default DefaultBatchSize.
	BatchSize int

	// Timeout is the maximum time a request waits in the queue before a
	// partial batch is flushed. Default DefaultTimeout.
	Timeout time.Duration

	// Logger receives dispatch failures.
	Logger zerolog.Logger
}

type result struct {
	vec []float32
	err error
}

type request struct {
	text string
	resp chan result
}

// Batcher coalesces Embed calls into EmbedBatch calls.
//
// A single goroutine owns the pending queue; flushes dispatch on their own
// goroutines so a slow provider never stalls the queue.
type Batcher struct {
	inner     embedder.Provider
	batchSize int
	timeout   time.Duration
	logger    zerolog.Logger

	requests   chan request
	timerFired chan uint64
	done       chan struct{}
	closeOnce  sync.Once
}

var _ embedder.Provider = (*Batcher)(nil)

// New creates a Batcher and starts its queue goroutine.
func New(cfg Config) *Batcher {
	b := &Batcher{
		inner:      cfg.Provider,
		batchSize:  cfg.BatchSize,
		timeout:    cfg.Timeout,
		logger:     cfg.Logger,
		requests:   make(chan request),
		timerFired: make(chan uint64, 1),
		done:       make(chan struct{}),
	}
	if b.batchSize <= 0 {
		b.batchSize = DefaultBatchSize
	}
	if b.timeout <= 0 {
		b.timeout = DefaultTimeout
	}
	go b.run()
	return b
}

// Embed queues the text and blocks until its vector arrives.
func (b *Batcher) Embed(ctx context.Context, text string) ([]float32, error) {
	req := request{text: text, resp: make(chan result, 1)}

	select {
	case b.requests <- req:
	case <-b.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	// A flush is bounded by the queueing delay plus the dispatch deadline;
	// waiting longer than that means something is wrong.
	deadline := time.NewTimer(b.timeout + dispatchGrace)
	defer deadline.Stop()

	select {
	case res := <-req.resp:
		return res.vec, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-deadline.C:
		return nil, fmt.Errorf("batch embed: %w", context.DeadlineExceeded)
	}
}

// EmbedBatch bypasses the queue; the caller already has a batch.
func (b *Batcher) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return b.inner.EmbedBatch(ctx, texts)
}

// Dimensions returns the wrapped provider's dimensionality.
func (b *Batcher) Dimensions() int {
	return b.inner.Dimensions()
}

// Close stops the queue and closes the wrapped provider. Requests already
// queued are still dispatched.
func (b *Batcher) Close() error {
	b.closeOnce.Do(func() { close(b.done) })
	return b.inner.Close()
}

// run owns the pending queue.
//
// The nonce identifies the current batch generation. Each flush bumps it, so
// a timer armed for an earlier generation is recognized as stale and ignored.
func (b *Batcher) run() {
	var (
		pending []request
		nonce   uint64
	)

	flush := func() {
		if len(pending) == 0 {
			return
		}
		batch := pending
		pending = nil
		nonce++
		go b.dispatch(batch)
	}

	for {
		select {
		case req := <-b.requests:
			pending = append(pending, req)
			if len(pending) == 1 {
				b.armTimer(nonce)
			}
			if len(pending) >= b.batchSize {
				flush()
			}

		case fired := <-b.timerFired:
			if fired == nonce {
				flush()
			}

		case <-b.done:
			flush()
			return
		}
	}
}

// armTimer schedules a flush signal carrying the generation it was armed for.
func (b *Batcher) armTimer(nonce uint64) {
	time.AfterFunc(b.timeout, func() {
		select {
		case b.timerFired <- nonce:
		case <-b.done:
		}
	})
}

// dispatch sends one coalesced batch to the provider and fans results back
// out to the waiting callers.
func (b *Batcher) dispatch(batch []request) {
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout+dispatchGrace)
	defer cancel()

	texts := make([]string, len(batch))
	for i, req := range batch {
		texts[i] = req.text
	}

	vecs, err := b.inner.EmbedBatch(ctx, texts)
	if err == nil && len(vecs) != len(batch) {
		err = &embedder.Error{
			Kind:    embedder.KindLengthMismatch,
			Adapter: "batch",
			Err:     fmt.Errorf("got %d embeddings, expected %d", len(vecs), len(batch)),
		}
	}
	if err != nil {
		b.logger.Warn().Err(err).Int("batch_size", len(batch)).Msg("batch embed failed")
		for _, req := range batch {
			req.resp <- result{err: err}
		}
		return
	}

	for i, req := range batch {
		req.resp <- result{vec: vecs[i]}
	}
}
