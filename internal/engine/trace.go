package engine

import (
	"context"
	"sync"
	"time"
)

// TraceEventKind classifies each trace event by type.
type TraceEventKind string

const (
	// KindCandidateExtracted is emitted once per candidate the extractor produced.
	KindCandidateExtracted TraceEventKind = "candidate_extracted"

	// KindDuplicateRejected is emitted when a duplicate stage rejects a candidate.
	KindDuplicateRejected TraceEventKind = "duplicate_rejected"

	// KindEmbeddingFailed is emitted when a candidate is stored without an embedding.
	KindEmbeddingFailed TraceEventKind = "embedding_failed"

	// KindMemoryStored is emitted after a successful insert.
	KindMemoryStored TraceEventKind = "memory_stored"

	// KindStoreFailed is emitted when an insert fails.
	KindStoreFailed TraceEventKind = "store_failed"

	// KindExtractionFinished closes every extraction call.
	KindExtractionFinished TraceEventKind = "extraction_finished"
)

// TraceEvent is a single structured event emitted during an extraction call.
type TraceEvent struct {
	Kind TraceEventKind `json:"kind"`
	At   time.Time      `json:"at"`

	// Content is the candidate text for per-candidate events.
	Content string `json:"content,omitempty"`

	// MemoryID is set on memory_stored, and on duplicate_rejected with the
	// stored memory that matched.
	MemoryID string `json:"memory_id,omitempty"`

	// Stage names the duplicate stage for duplicate_rejected.
	Stage string `json:"stage,omitempty"`

	// Error carries the failure text for embedding_failed and store_failed.
	Error string `json:"error,omitempty"`

	// Extracted and Stored are the totals reported by extraction_finished.
	Extracted int `json:"extracted,omitempty"`
	Stored    int `json:"stored,omitempty"`
}

func newTraceEvent(kind TraceEventKind) TraceEvent {
	return TraceEvent{Kind: kind, At: time.Now()}
}

// EventCandidateExtracted creates a candidate_extracted trace event.
func EventCandidateExtracted(content string) TraceEvent {
	e := newTraceEvent(KindCandidateExtracted)
	e.Content = content
	return e
}

// EventDuplicateRejected creates a duplicate_rejected trace event.
func EventDuplicateRejected(content string, v Verdict) TraceEvent {
	e := newTraceEvent(KindDuplicateRejected)
	e.Content = content
	e.Stage = v.Stage
	e.MemoryID = v.MatchedID
	return e
}

// EventEmbeddingFailed creates an embedding_failed trace event.
func EventEmbeddingFailed(content string, err error) TraceEvent {
	e := newTraceEvent(KindEmbeddingFailed)
	e.Content = content
	e.Error = err.Error()
	return e
}

// EventMemoryStored creates a memory_stored trace event.
func EventMemoryStored(memoryID, content string) TraceEvent {
	e := newTraceEvent(KindMemoryStored)
	e.MemoryID = memoryID
	e.Content = content
	return e
}

// EventStoreFailed creates a store_failed trace event.
func EventStoreFailed(content string, err error) TraceEvent {
	e := newTraceEvent(KindStoreFailed)
	e.Content = content
	e.Error = err.Error()
	return e
}

// EventExtractionFinished creates an extraction_finished trace event.
func EventExtractionFinished(extracted, stored int) TraceEvent {
	e := newTraceEvent(KindExtractionFinished)
	e.Extracted = extracted
	e.Stored = stored
	return e
}

// contextKey is an unexported type for context keys owned by this package.
type contextKey string

const traceKey contextKey = "extraction_trace"

// TraceCollector accumulates TraceEvents for extraction calls.
type TraceCollector struct {
	mu     sync.Mutex
	events []TraceEvent
}

// NewTraceCollector returns a fresh collector.
func NewTraceCollector() *TraceCollector {
	return &TraceCollector{}
}

// Emit appends an event to the collector.
func (tc *TraceCollector) Emit(e TraceEvent) {
	tc.mu.Lock()
	tc.events = append(tc.events, e)
	tc.mu.Unlock()
}

// Events returns a copy of the collected events in emission order.
func (tc *TraceCollector) Events() []TraceEvent {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return append([]TraceEvent(nil), tc.events...)
}

// Kinds returns the kind of every collected event, in order.
func (tc *TraceCollector) Kinds() []TraceEventKind {
	events := tc.Events()
	kinds := make([]TraceEventKind, len(events))
	for i, e := range events {
		kinds[i] = e.Kind
	}
	return kinds
}

// WithTraceCollector stores a collector in the context.
func WithTraceCollector(ctx context.Context, tc *TraceCollector) context.Context {
	return context.WithValue(ctx, traceKey, tc)
}

// TraceCollectorFromContext retrieves the collector from the context.
// Returns (nil, false) if none is present.
func TraceCollectorFromContext(ctx context.Context) (*TraceCollector, bool) {
	tc, ok := ctx.Value(traceKey).(*TraceCollector)
	return tc, ok && tc != nil
}

// emitToContext emits e only when a collector is present in ctx.
func emitToContext(ctx context.Context, e TraceEvent) {
	if tc, ok := TraceCollectorFromContext(ctx); ok {
		tc.Emit(e)
	}
}
