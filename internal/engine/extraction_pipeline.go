package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/scrypster/mnemo/internal/llm"
	"github.com/scrypster/mnemo/internal/storage"
	"github.com/scrypster/mnemo/pkg/types"
)

// ExtractionPipeline records memories from completed conversation turns.
//
// For each turn it extracts candidates from the user's utterance, drops
// those that repeat a recently stored memory, embeds the rest, and inserts
// them with Source "auto-extraction". Candidates of one turn are screened
// against stored memories only, never against each other. Failures are
// logged and confined to the candidate they occur on.
type ExtractionPipeline struct {
	store     storage.MemoryStore
	provider  llm.EmbeddingProvider
	extractor Extractor
	checker   *DuplicateChecker
	config    Config

	mu             sync.RWMutex
	onMemoryStored func(memory *types.Memory)

	now   func() time.Time
	newID func() string
}

// NewExtractionPipeline creates a pipeline using the pattern extractor and
// the default duplicate stages. provider may be nil: candidates are then
// stored without embeddings and the semantic stage never runs.
func NewExtractionPipeline(store storage.MemoryStore, provider llm.EmbeddingProvider, config Config) (*ExtractionPipeline, error) {
	if store == nil {
		return nil, errors.New("extraction pipeline: store is required")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("extraction pipeline: invalid config: %w", err)
	}

	return &ExtractionPipeline{
		store:     store,
		provider:  provider,
		extractor: NewPatternExtractor(),
		checker:   NewDuplicateChecker(store, provider, config),
		config:    config,
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
	}, nil
}

// SetExtractor replaces the candidate extractor.
func (p *ExtractionPipeline) SetExtractor(e Extractor) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.extractor = e
}

// SetDuplicateChecker replaces the duplicate checker.
func (p *ExtractionPipeline) SetDuplicateChecker(c *DuplicateChecker) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.checker = c
}

// SetOnMemoryStored sets a callback fired after each successful insert.
func (p *ExtractionPipeline) SetOnMemoryStored(callback func(memory *types.Memory)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onMemoryStored = callback
}

// ExtractAndStoreMemories processes one completed turn. It never returns an
// error and never panics; whatever could not be recorded is logged.
// assistantReply is passed through to the extractor.
func (p *ExtractionPipeline) ExtractAndStoreMemories(ctx context.Context, userUtterance, assistantReply, conversationID string) {
	if !p.config.Enabled {
		return
	}

	extracted, stored := 0, 0
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[extraction] recovered from panic in conversation %s: %v", conversationID, r)
		}
		emitToContext(ctx, EventExtractionFinished(extracted, stored))
	}()

	p.mu.RLock()
	extractor, checker, onStored := p.extractor, p.checker, p.onMemoryStored
	p.mu.RUnlock()

	candidates := extractor.Extract(userUtterance, assistantReply)
	extracted = len(candidates)
	if extracted == 0 {
		return
	}

	type acceptedCandidate struct {
		candidate types.CandidateMemory
		embedding []float32
	}
	accepted := make([]acceptedCandidate, 0, len(candidates))
	for _, c := range candidates {
		emitToContext(ctx, EventCandidateExtracted(c.Content))
		verdict := checker.Evaluate(ctx, c.Content)
		if verdict.Duplicate {
			log.Printf("[extraction] skipping duplicate %q (%s, matches %s)", c.Content, verdict.Stage, verdict.MatchedID)
			emitToContext(ctx, EventDuplicateRejected(c.Content, verdict))
			continue
		}
		accepted = append(accepted, acceptedCandidate{candidate: c, embedding: verdict.Embedding})
	}

	for _, a := range accepted {
		if memory := p.storeCandidate(ctx, a.candidate, a.embedding, conversationID); memory != nil {
			stored++
			if onStored != nil {
				p.notify(onStored, memory)
			}
		}
	}

	if stored > 0 {
		log.Printf("[extraction] stored %d of %d candidates from conversation %s", stored, extracted, conversationID)
	}
}

// storeCandidate inserts one candidate, returning the stored memory or nil.
// embedding is the vector produced by the duplicate check; when nil the
// candidate is embedded here. A panic here is confined to this candidate.
func (p *ExtractionPipeline) storeCandidate(ctx context.Context, c types.CandidateMemory, embedding []float32, conversationID string) (stored *types.Memory) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[extraction] recovered from panic storing %q: %v", c.Content, r)
			stored = nil
		}
	}()

	if embedding == nil {
		embedding = p.embed(ctx, c.Content)
	}

	memory := &types.Memory{
		ID:             p.newID(),
		Type:           c.Type,
		Content:        c.Content,
		Source:         types.SourceAutoExtraction,
		Embedding:      embedding,
		Importance:     c.Importance,
		CreatedAt:      p.now(),
		ConversationID: conversationID,
	}

	storeCtx, cancel := withOptionalTimeout(ctx, p.config.StoreTimeout)
	defer cancel()

	if err := p.store.Insert(storeCtx, memory); err != nil {
		log.Printf("[extraction] failed to store %q: %v", c.Content, err)
		emitToContext(ctx, EventStoreFailed(c.Content, err))
		return nil
	}

	emitToContext(ctx, EventMemoryStored(memory.ID, memory.Content))
	return memory
}

// embed returns the embedding for content, or nil when there is no
// provider or generation fails.
func (p *ExtractionPipeline) embed(ctx context.Context, content string) []float32 {
	if p.provider == nil {
		return nil
	}

	embedCtx, cancel := withOptionalTimeout(ctx, p.config.EmbedTimeout)
	defer cancel()

	vec, err := p.provider.Embed(embedCtx, content)
	if err == nil && len(vec) == 0 {
		err = llm.ErrEmptyEmbedding
	}
	if err != nil {
		log.Printf("[extraction] storing %q without embedding: %v", content, err)
		emitToContext(ctx, EventEmbeddingFailed(content, err))
		return nil
	}
	return vec
}

func (p *ExtractionPipeline) notify(callback func(*types.Memory), memory *types.Memory) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[extraction] memory stored callback panicked for %s: %v", memory.ID, r)
		}
	}()
	callback(memory)
}

func withOptionalTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}
