package embedder_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GlitchInZen/graph-mem/pkg/embedder"
)

func TestErrorRetryable(t *testing.T) {
	retryable := []embedder.ErrorKind{
		embedder.KindTimeout,
		embedder.KindTransport,
		embedder.KindRateLimited,
	}
	for _, kind := range retryable {
		e := &embedder.Error{Kind: kind, Adapter: "test"}
		assert.True(t, e.Retryable(), string(kind))
	}

	terminal := []embedder.ErrorKind{
		embedder.KindProvider,
		embedder.KindMisconfigured,
		embedder.KindLengthMismatch,
	}
	for _, kind := range terminal {
		e := &embedder.Error{Kind: kind, Adapter: "test"}
		assert.False(t, e.Retryable(), string(kind))
	}
}

func TestErrorMessageAndUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	e := &embedder.Error{Kind: embedder.KindTransport, Adapter: "ollama", Err: cause}
	assert.Equal(t, "embedder ollama: transport: connection refused", e.Error())
	assert.ErrorIs(t, e, cause)

	bare := &embedder.Error{Kind: embedder.KindTimeout, Adapter: "openai"}
	assert.Equal(t, "embedder openai: timeout", bare.Error())
}

func TestRetryPolicyRetriesTransient(t *testing.T) {
	policy := embedder.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}

	calls := 0
	err := policy.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return &embedder.Error{Kind: embedder.KindTransport, Adapter: "test"}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryPolicyStopsOnTerminal(t *testing.T) {
	policy := embedder.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}

	calls := 0
	err := policy.Do(context.Background(), func() error {
		calls++
		return &embedder.Error{Kind: embedder.KindMisconfigured, Adapter: "test"}
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryPolicyHonorsContext(t *testing.T) {
	policy := embedder.RetryPolicy{MaxAttempts: 5, BaseDelay: time.Minute}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := policy.Do(ctx, func() error {
		return &embedder.Error{Kind: embedder.KindTransport, Adapter: "test"}
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestModelDimensions(t *testing.T) {
	assert.Equal(t, 768, embedder.ModelDimensions("nomic-embed-text", 0))
	assert.Equal(t, 1536, embedder.ModelDimensions("text-embedding-3-small", 0))
	assert.Equal(t, 512, embedder.ModelDimensions("unknown-model", 512))
	assert.Equal(t, 768, embedder.ModelDimensions("unknown-model", 0))
}
