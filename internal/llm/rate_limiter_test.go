package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRateLimitedEmbedder_DisabledReturnsNext(t *testing.T) {
	gen := &stubGenerator{}
	assert.Same(t, gen, NewRateLimitedEmbedder(gen, 0, 5))
}

func TestRateLimitedEmbedder_Delegates(t *testing.T) {
	gen := &stubGenerator{vec: []float32{0.5}}
	limited := NewRateLimitedEmbedder(gen, 100, 2)

	vec, err := limited.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5}, vec)
	assert.Equal(t, "stub", limited.GetModel())
	assert.Equal(t, 1, gen.calls)
}

func TestRateLimitedEmbedder_WaitExceedsDeadline(t *testing.T) {
	gen := &stubGenerator{vec: []float32{1}}
	// one token per minute, burst one: the second call cannot be served
	limited := NewRateLimitedEmbedder(gen, 1.0/60, 1)

	_, err := limited.Embed(context.Background(), "first")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = limited.Embed(ctx, "second")
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, 1, gen.calls)
}
