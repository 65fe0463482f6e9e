package llm

import "math"

// CosineSimilarity returns the cosine of the angle between a and b, in [-1, 1].
// Empty, zero-norm, or unequal-length inputs yield 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	// Rounding can push parallel vectors a hair past 1.
	if sim > 1 {
		return 1
	}
	if sim < -1 {
		return -1
	}
	return sim
}

type embeddingProvider struct {
	EmbeddingGenerator
}

// NewEmbeddingProvider adapts gen into an EmbeddingProvider that scores
// vectors with CosineSimilarity. A nil gen yields a nil provider.
func NewEmbeddingProvider(gen EmbeddingGenerator) EmbeddingProvider {
	if gen == nil {
		return nil
	}
	return embeddingProvider{EmbeddingGenerator: gen}
}

func (embeddingProvider) CosineSimilarity(a, b []float32) float64 {
	return CosineSimilarity(a, b)
}
