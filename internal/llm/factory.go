package llm

import (
	"fmt"

	"github.com/scrypster/mnemo/internal/config"
)

// NewEmbeddingGenerator creates the EmbeddingGenerator named by cfg.Provider,
// wrapped in a rate limiter when cfg.RequestsPerSecond is positive.
// Returns (nil, nil) for the "none" provider.
func NewEmbeddingGenerator(cfg config.EmbeddingConfig) (EmbeddingGenerator, error) {
	var gen EmbeddingGenerator
	switch cfg.Provider {
	case config.ProviderOllama, "":
		gen = NewOllamaClient(OllamaConfig{BaseURL: cfg.URL, Model: cfg.Model, Timeout: cfg.Timeout})
	case config.ProviderOpenAI:
		gen = NewOpenAIEmbeddingClient(OpenAIEmbeddingConfig{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.URL,
			Timeout: cfg.Timeout,
		})
	case config.ProviderNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %q", cfg.Provider)
	}
	return NewRateLimitedEmbedder(gen, cfg.RequestsPerSecond, cfg.Burst), nil
}

// NewEmbeddingProviderFromConfig is NewEmbeddingGenerator followed by
// NewEmbeddingProvider.
func NewEmbeddingProviderFromConfig(cfg config.EmbeddingConfig) (EmbeddingProvider, error) {
	gen, err := NewEmbeddingGenerator(cfg)
	if err != nil {
		return nil, err
	}
	return NewEmbeddingProvider(gen), nil
}
