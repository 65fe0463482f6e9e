package types

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidMemory is returned by Validate for memories that cannot be stored.
var ErrInvalidMemory = errors.New("invalid memory")

// Memory is a single durable fact about the user.
// Memories are never mutated once stored; deduplication happens before insert.
type Memory struct {
	ID         string     `json:"id"`                  // Unique identifier (UUID)
	Type       MemoryType `json:"type"`                // fact, preference, pattern, note, entity
	Content    string     `json:"content"`             // Natural-language statement
	Source     string     `json:"source"`              // Provenance tag (e.g., "auto-extraction")
	Embedding  []float32  `json:"embedding,omitempty"` // Nil when generation failed or was skipped
	Importance float64    `json:"importance"`          // 0-10 as assigned by the extractor
	CreatedAt  time.Time  `json:"created_at"`          // Wall clock at insert

	// ConversationID is the conversation the memory was extracted from.
	ConversationID string `json:"conversation_id,omitempty"`
}

// HasEmbedding reports whether a vector is stored for this memory.
func (m *Memory) HasEmbedding() bool {
	return len(m.Embedding) > 0
}

// Validate checks the fields every store requires before insert.
func (m *Memory) Validate() error {
	if m == nil {
		return fmt.Errorf("%w: memory is nil", ErrInvalidMemory)
	}
	if m.ID == "" {
		return fmt.Errorf("%w: memory ID is required", ErrInvalidMemory)
	}
	if strings.TrimSpace(m.Content) == "" {
		return fmt.Errorf("%w: memory content is required", ErrInvalidMemory)
	}
	if !IsValidMemoryType(m.Type) {
		return fmt.Errorf("%w: unknown memory type %q", ErrInvalidMemory, m.Type)
	}
	if m.Importance < MinImportance || m.Importance > MaxImportance {
		return fmt.Errorf("%w: importance %.2f outside [%.0f, %.0f]",
			ErrInvalidMemory, m.Importance, MinImportance, MaxImportance)
	}
	return nil
}

// CandidateMemory is a transient extraction result that has not been persisted.
// It has no identity and is discarded once stored or rejected as a duplicate.
type CandidateMemory struct {
	Type       MemoryType `json:"type"`
	Content    string     `json:"content"`
	Importance float64    `json:"importance"`
}
