package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/scrypster/mnemo/internal/llm"
	"github.com/scrypster/mnemo/internal/storage"
	"github.com/scrypster/mnemo/internal/storage/memstore"
	"github.com/scrypster/mnemo/pkg/types"
)

var (
	errQueryFailed  = errors.New("recent query failed")
	errInsertFailed = errors.New("insert failed")
	errEmbedFailed  = errors.New("embedding backend unavailable")
)

// fakeProvider returns canned vectors keyed by text.
type fakeProvider struct {
	mu      sync.Mutex
	vectors map[string][]float32
	err     error
	calls   map[string]int
}

func newFakeProvider(vectors map[string][]float32) *fakeProvider {
	return &fakeProvider{vectors: vectors, calls: make(map[string]int)}
}

func (f *fakeProvider) Embed(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[text]++
	if f.err != nil {
		return nil, f.err
	}
	if vec, ok := f.vectors[text]; ok {
		return vec, nil
	}
	return []float32{0, 0, 1}, nil
}

func (f *fakeProvider) GetModel() string { return "fake" }

func (f *fakeProvider) CosineSimilarity(a, b []float32) float64 {
	return llm.CosineSimilarity(a, b)
}

func (f *fakeProvider) callsFor(text string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[text]
}

var _ llm.EmbeddingProvider = (*fakeProvider)(nil)

// fixedScoreProvider embeds everything to the same vector and reports a
// fixed similarity for any pair.
type fixedScoreProvider struct {
	score float64
}

func (p fixedScoreProvider) Embed(context.Context, string) ([]float32, error) {
	return []float32{1, 0}, nil
}

func (p fixedScoreProvider) GetModel() string { return "fixed" }

func (p fixedScoreProvider) CosineSimilarity(_, _ []float32) float64 { return p.score }

// faultyStore wraps an in-memory store and injects failures.
type faultyStore struct {
	*memstore.MemoryStore
	queryErr   error
	failInsert map[string]bool
	panicQuery bool
}

func newFaultyStore() *faultyStore {
	return &faultyStore{MemoryStore: memstore.New(), failInsert: make(map[string]bool)}
}

func (s *faultyStore) QueryRecent(ctx context.Context, limit int) ([]*types.Memory, error) {
	if s.panicQuery {
		panic("store exploded")
	}
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	return s.MemoryStore.QueryRecent(ctx, limit)
}

func (s *faultyStore) Insert(ctx context.Context, m *types.Memory) error {
	if s.failInsert[m.Content] {
		return errInsertFailed
	}
	return s.MemoryStore.Insert(ctx, m)
}

var _ storage.MemoryStore = (*faultyStore)(nil)

// seed inserts memories with increasing timestamps so the last is newest.
func seed(store storage.MemoryStore, contents ...string) []*types.Memory {
	base := time.Now().Add(-time.Hour)
	out := make([]*types.Memory, len(contents))
	for i, c := range contents {
		m := &types.Memory{
			ID:         "seed-" + c,
			Type:       types.MemoryTypeFact,
			Content:    c,
			Source:     types.SourceManual,
			Importance: 5,
			CreatedAt:  base.Add(time.Duration(i) * time.Second),
		}
		if err := store.Insert(context.Background(), m); err != nil {
			panic(err)
		}
		out[i] = m
	}
	return out
}

func seedWithEmbedding(store storage.MemoryStore, content string, vec []float32) *types.Memory {
	m := &types.Memory{
		ID:         "seed-" + content,
		Type:       types.MemoryTypeFact,
		Content:    content,
		Source:     types.SourceManual,
		Embedding:  vec,
		Importance: 5,
		CreatedAt:  time.Now().Add(-time.Minute),
	}
	if err := store.Insert(context.Background(), m); err != nil {
		panic(err)
	}
	return m
}

// panickingExtractor simulates a buggy extractor implementation.
type panickingExtractor struct{}

func (panickingExtractor) Extract(string, string) []types.CandidateMemory {
	panic("extractor bug")
}

// staticExtractor returns the same candidates for every turn.
type staticExtractor []types.CandidateMemory

func (s staticExtractor) Extract(string, string) []types.CandidateMemory {
	return append([]types.CandidateMemory(nil), s...)
}
