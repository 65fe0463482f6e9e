// Package engine turns conversation turns into durable memories. It extracts
// candidate facts and preferences from the user's utterance, screens each one
// against recently stored memories, and persists the survivors with an
// embedding when one can be generated.
package engine

import (
	"fmt"
	"time"

	"github.com/scrypster/mnemo/internal/config"
)

// Config holds configuration for the extraction pipeline and duplicate checker.
type Config struct {
	// Enabled turns extraction on. A disabled pipeline ignores every turn.
	Enabled bool

	// RecencyWindow is how many recent memories a candidate is compared
	// against (default: 50).
	RecencyWindow int

	// JaccardThreshold is the token-set overlap above which two texts are
	// duplicates (default: 0.8, strict).
	JaccardThreshold float64

	// EmbeddingThreshold is the cosine similarity above which two embeddings
	// are duplicates (default: 0.92, strict).
	EmbeddingThreshold float64

	// EmbedTimeout bounds each embedding call. Zero means no extra deadline.
	EmbedTimeout time.Duration

	// StoreTimeout bounds each store call. Zero means no extra deadline.
	StoreTimeout time.Duration
}

// DefaultConfig returns a Config with the standard thresholds.
func DefaultConfig() Config {
	return Config{
		Enabled:            true,
		RecencyWindow:      50,
		JaccardThreshold:   0.8,
		EmbeddingThreshold: 0.92,
		EmbedTimeout:       10 * time.Second,
		StoreTimeout:       5 * time.Second,
	}
}

// Validate checks if the config is valid.
func (c *Config) Validate() error {
	if c.RecencyWindow < 1 {
		return fmt.Errorf("RecencyWindow must be >= 1, got %d", c.RecencyWindow)
	}
	if c.JaccardThreshold < 0 || c.JaccardThreshold > 1 {
		return fmt.Errorf("JaccardThreshold must be in [0,1], got %v", c.JaccardThreshold)
	}
	if c.EmbeddingThreshold < -1 || c.EmbeddingThreshold > 1 {
		return fmt.Errorf("EmbeddingThreshold must be in [-1,1], got %v", c.EmbeddingThreshold)
	}
	if c.EmbedTimeout < 0 {
		return fmt.Errorf("EmbedTimeout must be >= 0, got %v", c.EmbedTimeout)
	}
	if c.StoreTimeout < 0 {
		return fmt.Errorf("StoreTimeout must be >= 0, got %v", c.StoreTimeout)
	}
	return nil
}

// ConfigFromSettings maps the extraction section of the application config.
func ConfigFromSettings(x config.ExtractionConfig) Config {
	return Config{
		Enabled:            x.Enabled,
		RecencyWindow:      x.RecencyWindow,
		JaccardThreshold:   x.JaccardThreshold,
		EmbeddingThreshold: x.EmbeddingThreshold,
		EmbedTimeout:       x.EmbedTimeout,
		StoreTimeout:       x.StoreTimeout,
	}
}
