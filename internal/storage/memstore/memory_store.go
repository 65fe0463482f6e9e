// Package memstore provides a process-local implementation of
// storage.MemoryStore. Nothing is persisted; it backs the "memory" storage
// engine and serves as a deterministic fixture in tests.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/scrypster/mnemo/internal/storage"
	"github.com/scrypster/mnemo/pkg/types"
)

type entry struct {
	seq    uint64
	memory types.Memory
}

// MemoryStore keeps memories in a slice guarded by a mutex.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []entry
	ids     map[string]struct{}
	nextSeq uint64
	closed  bool
}

var _ storage.MemoryStore = (*MemoryStore)(nil)

// New creates an empty in-memory store.
func New() *MemoryStore {
	return &MemoryStore{ids: make(map[string]struct{})}
}

// Insert persists a copy of memory.
func (s *MemoryStore) Insert(ctx context.Context, memory *types.Memory) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := memory.Validate(); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return storage.ErrStoreClosed
	}
	if _, exists := s.ids[memory.ID]; exists {
		return fmt.Errorf("%w: %s", storage.ErrDuplicateID, memory.ID)
	}

	if memory.CreatedAt.IsZero() {
		memory.CreatedAt = time.Now()
	}

	s.nextSeq++
	s.entries = append(s.entries, entry{seq: s.nextSeq, memory: cloneMemory(memory)})
	s.ids[memory.ID] = struct{}{}
	return nil
}

// QueryRecent returns copies of up to limit memories, most recent first.
func (s *MemoryStore) QueryRecent(ctx context.Context, limit int) ([]*types.Memory, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, storage.ErrStoreClosed
	}

	sorted := make([]entry, len(s.entries))
	copy(sorted, s.entries)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if !a.memory.CreatedAt.Equal(b.memory.CreatedAt) {
			return a.memory.CreatedAt.After(b.memory.CreatedAt)
		}
		return a.seq > b.seq
	})

	limit = storage.NormalizeLimit(limit)
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}

	memories := make([]*types.Memory, len(sorted))
	for i := range sorted {
		m := cloneMemory(&sorted[i].memory)
		memories[i] = &m
	}
	return memories, nil
}

// Len returns the number of stored memories.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Close marks the store closed. Subsequent operations return ErrStoreClosed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// cloneMemory copies m so callers cannot mutate stored state through the
// embedding slice.
func cloneMemory(m *types.Memory) types.Memory {
	c := *m
	if m.Embedding != nil {
		c.Embedding = append([]float32(nil), m.Embedding...)
	}
	return c
}
