package llm

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitedEmbedder bounds the rate of calls reaching the wrapped
// generator. Callers block until a token is available or ctx ends.
type RateLimitedEmbedder struct {
	next    EmbeddingGenerator
	limiter *rate.Limiter
}

// NewRateLimitedEmbedder wraps next with a token bucket of reqPerSec and
// burst. A non-positive reqPerSec disables limiting and returns next as is.
func NewRateLimitedEmbedder(next EmbeddingGenerator, reqPerSec float64, burst int) EmbeddingGenerator {
	if reqPerSec <= 0 {
		return next
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedEmbedder{
		next:    next,
		limiter: rate.NewLimiter(rate.Every(time.Duration(float64(time.Second)/reqPerSec)), burst),
	}
}

// Embed waits for a token, then delegates.
func (r *RateLimitedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRateLimited, err)
	}
	return r.next.Embed(ctx, text)
}

// GetModel returns the wrapped generator's model.
func (r *RateLimitedEmbedder) GetModel() string {
	return r.next.GetModel()
}

var _ EmbeddingGenerator = (*RateLimitedEmbedder)(nil)
