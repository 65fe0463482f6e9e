package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/scrypster/mnemo/internal/llm"
	"github.com/scrypster/mnemo/internal/storage"
	"github.com/scrypster/mnemo/pkg/types"
)

// Stage names as reported in verdicts and traces.
const (
	StageExactMatch      = "exact_match"
	StageLexicalOverlap  = "lexical_overlap"
	StageSemanticOverlap = "semantic_overlap"
)

// DedupContext is the state shared by the stages of one duplicate check.
type DedupContext struct {
	// Candidate is the text being checked.
	Candidate string

	// Window holds the most recently stored memories, newest first.
	Window []*types.Memory

	provider     llm.EmbeddingProvider
	embedTimeout time.Duration

	embedded  bool
	embedding []float32
	embedErr  error
}

// NewDedupContext builds a context for checking candidate against window.
// provider may be nil, in which case no candidate embedding is available.
func NewDedupContext(candidate string, window []*types.Memory, provider llm.EmbeddingProvider, embedTimeout time.Duration) *DedupContext {
	return &DedupContext{
		Candidate:    candidate,
		Window:       window,
		provider:     provider,
		embedTimeout: embedTimeout,
	}
}

// Provider returns the embedding provider, or nil.
func (dc *DedupContext) Provider() llm.EmbeddingProvider {
	return dc.provider
}

// CandidateEmbedding generates the candidate's embedding on first use and
// returns the same result, success or failure, on every later call.
func (dc *DedupContext) CandidateEmbedding(ctx context.Context) ([]float32, error) {
	if dc.embedded {
		return dc.embedding, dc.embedErr
	}
	dc.embedded = true

	if dc.provider == nil {
		dc.embedErr = fmt.Errorf("no embedding provider configured")
		return nil, dc.embedErr
	}

	ctx, cancel := withOptionalTimeout(ctx, dc.embedTimeout)
	defer cancel()

	vec, err := dc.provider.Embed(ctx, dc.Candidate)
	switch {
	case err != nil:
		dc.embedErr = err
	case len(vec) == 0:
		dc.embedErr = llm.ErrEmptyEmbedding
	default:
		dc.embedding = vec
	}
	return dc.embedding, dc.embedErr
}

// DuplicateStage is one predicate in the duplicate check. Check returns the
// window member the candidate duplicates, or nil if this stage finds none.
// A returned error aborts the check.
type DuplicateStage interface {
	Name() string
	Check(ctx context.Context, dc *DedupContext) (*types.Memory, error)
}

// ExactMatchStage flags a candidate whose trimmed text equals a stored
// memory's content, ignoring case.
type ExactMatchStage struct{}

// Name implements DuplicateStage.
func (ExactMatchStage) Name() string { return StageExactMatch }

// Check implements DuplicateStage.
func (ExactMatchStage) Check(_ context.Context, dc *DedupContext) (*types.Memory, error) {
	want := normalizeContent(dc.Candidate)
	for _, m := range dc.Window {
		if normalizeContent(m.Content) == want {
			return m, nil
		}
	}
	return nil, nil
}

// LexicalOverlapStage flags a candidate whose word set overlaps a stored
// memory's by more than Threshold (Jaccard).
type LexicalOverlapStage struct {
	Threshold float64
}

// Name implements DuplicateStage.
func (LexicalOverlapStage) Name() string { return StageLexicalOverlap }

// Check implements DuplicateStage.
func (s LexicalOverlapStage) Check(_ context.Context, dc *DedupContext) (*types.Memory, error) {
	for _, m := range dc.Window {
		if jaccardSimilarity(dc.Candidate, m.Content) > s.Threshold {
			return m, nil
		}
	}
	return nil, nil
}

// SemanticOverlapStage flags a candidate whose embedding is closer than
// Threshold (cosine) to any stored embedding. It is skipped when no window
// member has an embedding or the candidate cannot be embedded.
type SemanticOverlapStage struct {
	Threshold float64
}

// Name implements DuplicateStage.
func (SemanticOverlapStage) Name() string { return StageSemanticOverlap }

// Check implements DuplicateStage.
func (s SemanticOverlapStage) Check(ctx context.Context, dc *DedupContext) (*types.Memory, error) {
	provider := dc.Provider()
	if provider == nil {
		return nil, nil
	}

	var embedded []*types.Memory
	for _, m := range dc.Window {
		if m.HasEmbedding() {
			embedded = append(embedded, m)
		}
	}
	if len(embedded) == 0 {
		return nil, nil
	}

	vec, err := dc.CandidateEmbedding(ctx)
	if err != nil {
		log.Printf("[extraction] semantic check skipped for %q: %v", dc.Candidate, err)
		return nil, nil
	}

	for _, m := range embedded {
		if len(m.Embedding) != len(vec) {
			continue
		}
		if provider.CosineSimilarity(vec, m.Embedding) > s.Threshold {
			return m, nil
		}
	}
	return nil, nil
}

// Verdict is the outcome of a duplicate check.
type Verdict struct {
	Duplicate bool

	// Stage and MatchedID identify the deciding stage and the stored memory
	// that matched, when Duplicate is true.
	Stage     string
	MatchedID string

	// Embedding is the candidate embedding generated during the check, or
	// nil if none was generated or generation failed.
	Embedding []float32
}

// DuplicateChecker decides whether a candidate repeats a recently stored
// memory. It fails open: any internal error yields "not a duplicate".
type DuplicateChecker struct {
	store        storage.MemoryStore
	provider     llm.EmbeddingProvider
	stages       []DuplicateStage
	window       int
	storeTimeout time.Duration
	embedTimeout time.Duration
}

// NewDuplicateChecker creates a checker with the exact, lexical, and
// semantic stages in that order. provider may be nil.
func NewDuplicateChecker(store storage.MemoryStore, provider llm.EmbeddingProvider, cfg Config) *DuplicateChecker {
	return NewDuplicateCheckerWithStages(store, provider, cfg,
		ExactMatchStage{},
		LexicalOverlapStage{Threshold: cfg.JaccardThreshold},
		SemanticOverlapStage{Threshold: cfg.EmbeddingThreshold},
	)
}

// NewDuplicateCheckerWithStages creates a checker running stages in order.
func NewDuplicateCheckerWithStages(store storage.MemoryStore, provider llm.EmbeddingProvider, cfg Config, stages ...DuplicateStage) *DuplicateChecker {
	window := cfg.RecencyWindow
	if window < 1 {
		window = storage.DefaultRecentLimit
	}
	return &DuplicateChecker{
		store:        store,
		provider:     provider,
		stages:       stages,
		window:       window,
		storeTimeout: cfg.StoreTimeout,
		embedTimeout: cfg.EmbedTimeout,
	}
}

// IsDuplicate reports whether candidate repeats a recent memory.
func (c *DuplicateChecker) IsDuplicate(ctx context.Context, candidate string) bool {
	return c.Evaluate(ctx, candidate).Duplicate
}

// Evaluate runs the stages against a freshly queried recency window and
// returns the first positive verdict. Store errors, stage errors, and
// panics all produce a negative verdict.
func (c *DuplicateChecker) Evaluate(ctx context.Context, candidate string) (verdict Verdict) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[extraction] duplicate check panicked for %q: %v", candidate, r)
			verdict = Verdict{}
		}
	}()

	window, err := c.recentWindow(ctx)
	if err != nil {
		log.Printf("[extraction] duplicate check skipped, recency query failed: %v", err)
		return Verdict{}
	}
	if len(window) == 0 {
		return Verdict{}
	}

	dc := NewDedupContext(candidate, window, c.provider, c.embedTimeout)
	for _, stage := range c.stages {
		match, err := stage.Check(ctx, dc)
		if err != nil {
			log.Printf("[extraction] duplicate stage %s failed for %q: %v", stage.Name(), candidate, err)
			return Verdict{}
		}
		if match != nil {
			return Verdict{Duplicate: true, Stage: stage.Name(), MatchedID: match.ID}
		}
	}
	return Verdict{Embedding: dc.embedding}
}

func (c *DuplicateChecker) recentWindow(ctx context.Context) ([]*types.Memory, error) {
	ctx, cancel := withOptionalTimeout(ctx, c.storeTimeout)
	defer cancel()
	return c.store.QueryRecent(ctx, c.window)
}
