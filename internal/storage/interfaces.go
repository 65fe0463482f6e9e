// Package storage provides the persistence interface for extracted memories.
//
// The memory store is append-only from the point of view of the extraction
// engine: memories are inserted once and read back as a recency window for
// duplicate checking. Retention and cleanup belong to other components, so
// the interface deliberately has no update or delete operations.
package storage

import (
	"context"

	"github.com/scrypster/mnemo/pkg/types"
)

// MemoryStore persists memories and serves the recency window.
// Implementations must be safe for concurrent use.
type MemoryStore interface {
	// Insert persists a new memory.
	// Returns ErrInvalidInput if the memory fails validation and
	// ErrDuplicateID if a memory with the same ID already exists.
	Insert(ctx context.Context, memory *types.Memory) error

	// QueryRecent returns up to limit memories ordered by creation time,
	// most recent first. Memories created at the same instant are returned
	// newest insertion first. Limits outside [1, MaxRecentLimit] are normalized.
	QueryRecent(ctx context.Context, limit int) ([]*types.Memory, error)

	// Close releases any resources held by the store.
	Close() error
}
