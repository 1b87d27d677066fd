// Package embedder provides interfaces for text embedding providers.
//
// It defines the Provider interface that all embedding implementations must
// satisfy, enabling text-to-vector conversion for similarity search.
package embedder

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// Provider defines the interface for embedding providers.
type Provider interface {
	// Embed converts a text string into a vector embedding.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch converts multiple text strings into vector embeddings,
	// one per input, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the dimensionality of vectors produced by this
	// provider.
	Dimensions() int

	// Close releases the provider's resources.
	Close() error
}

// ErrorKind classifies embedding failures.
type ErrorKind string

const (
	// KindTimeout is a request that exceeded its deadline.
	KindTimeout ErrorKind = "timeout"

	// KindTransport is a network or connection failure.
	KindTransport ErrorKind = "transport"

	// KindRateLimited is a provider-side throttling response.
	KindRateLimited ErrorKind = "rate_limited"

	// KindProvider is any other provider-reported failure.
	KindProvider ErrorKind = "provider"

	// KindMisconfigured is a client-side configuration problem, such as a
	// missing API key. Never retried.
	KindMisconfigured ErrorKind = "misconfigured"

	// KindLengthMismatch is a batch response whose item count does not match
	// the request.
	KindLengthMismatch ErrorKind = "length_mismatch"
)

// Error is a classified embedding failure.
type Error struct {
	// Kind classifies the failure.
	Kind ErrorKind

	// Adapter names the provider that failed.
	Adapter string

	// StatusCode is the HTTP status of a provider response, when one was
	// received.
	StatusCode int

	// Err is the underlying error, if any.
	Err error
}

// Error returns a formatted message.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("embedder %s: %s: %v", e.Adapter, e.Kind, e.Err)
	}
	return fmt.Sprintf("embedder %s: %s", e.Adapter, e.Kind)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure is worth retrying.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindTimeout, KindTransport, KindRateLimited:
		return true
	}
	return false
}

// RetryPolicy controls retries of transient embedding failures.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// BaseDelay is the delay before the first retry; subsequent retries
	// double it, with jitter.
	BaseDelay time.Duration
}

// DefaultRetryPolicy retries once after a short delay.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 2, BaseDelay: 500 * time.Millisecond}

// Do runs fn under the policy, retrying classified transient failures.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := p.BaseDelay << (attempt - 1)
			delay += time.Duration(rand.Int63n(int64(p.BaseDelay)/2 + 1))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err = fn()
		if err == nil {
			return nil
		}
		var ee *Error
		if !errors.As(err, &ee) || !ee.Retryable() {
			return err
		}
	}
	return err
}

// modelDimensions maps known embedding models to their dimensionality.
var modelDimensions = map[string]int{
	"nomic-embed-text":       768,
	"mxbai-embed-large":      1024,
	"all-minilm":             384,
	"snowflake-arctic-embed": 1024,
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// ModelDimensions returns the dimensionality for a known model name, or the
// fallback (768 when the fallback is zero) for unknown models.
func ModelDimensions(model string, fallback int) int {
	if d, ok := modelDimensions[model]; ok {
		return d
	}
	if fallback > 0 {
		return fallback
	}
	return 768
}
