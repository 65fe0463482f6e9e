package llm

import (
	"context"
	"errors"
)

var (
	// ErrCircuitOpen is returned when the circuit breaker rejects a call.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrRateLimited is returned when a call could not obtain a rate limiter
	// token before its context ended.
	ErrRateLimited = errors.New("embedding rate limit exceeded")

	// ErrEmptyEmbedding is returned when a provider answers with no vector.
	ErrEmptyEmbedding = errors.New("provider returned empty embedding")
)

// EmbeddingGenerator produces a vector embedding for a piece of text.
type EmbeddingGenerator interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	GetModel() string
}

// EmbeddingProvider is what the extraction engine consumes: an embedding
// generator plus a similarity function over the vectors it produces.
type EmbeddingProvider interface {
	EmbeddingGenerator
	CosineSimilarity(a, b []float32) float64
}
