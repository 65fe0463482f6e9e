package engine

import (
	"context"
	"errors"
	"testing"
)

// ---------------------------------------------------------------------------
// TraceEvent constructors
// ---------------------------------------------------------------------------

func TestEventDuplicateRejected(t *testing.T) {
	e := EventDuplicateRejected("User likes tea", Verdict{Duplicate: true, Stage: StageLexicalOverlap, MatchedID: "m-1"})

	if e.Kind != KindDuplicateRejected {
		t.Errorf("Kind: got %q, want %q", e.Kind, KindDuplicateRejected)
	}
	if e.Stage != StageLexicalOverlap {
		t.Errorf("Stage: got %q, want %q", e.Stage, StageLexicalOverlap)
	}
	if e.MemoryID != "m-1" {
		t.Errorf("MemoryID: got %q", e.MemoryID)
	}
	if e.At.IsZero() {
		t.Error("At should not be zero")
	}
}

func TestEventFailuresCarryError(t *testing.T) {
	err := errors.New("boom")
	for _, e := range []TraceEvent{EventEmbeddingFailed("x", err), EventStoreFailed("x", err)} {
		if e.Error != "boom" {
			t.Errorf("%s: Error got %q, want %q", e.Kind, e.Error, "boom")
		}
		if e.Content != "x" {
			t.Errorf("%s: Content got %q", e.Kind, e.Content)
		}
	}
}

func TestEventExtractionFinished(t *testing.T) {
	e := EventExtractionFinished(3, 1)
	if e.Extracted != 3 || e.Stored != 1 {
		t.Errorf("got extracted=%d stored=%d, want 3/1", e.Extracted, e.Stored)
	}
}

// ---------------------------------------------------------------------------
// Context plumbing
// ---------------------------------------------------------------------------

func TestTraceCollectorFromContext(t *testing.T) {
	if _, ok := TraceCollectorFromContext(context.Background()); ok {
		t.Fatal("expected no collector on a bare context")
	}

	tc := NewTraceCollector()
	ctx := WithTraceCollector(context.Background(), tc)
	got, ok := TraceCollectorFromContext(ctx)
	if !ok || got != tc {
		t.Fatal("collector not returned from context")
	}

	emitToContext(ctx, EventCandidateExtracted("a"))
	emitToContext(ctx, EventMemoryStored("id", "a"))
	emitToContext(context.Background(), EventCandidateExtracted("dropped"))

	kinds := tc.Kinds()
	if len(kinds) != 2 || kinds[0] != KindCandidateExtracted || kinds[1] != KindMemoryStored {
		t.Errorf("kinds: got %v", kinds)
	}
}

func TestTraceCollector_EventsIsACopy(t *testing.T) {
	tc := NewTraceCollector()
	tc.Emit(EventCandidateExtracted("a"))

	events := tc.Events()
	events[0].Content = "mutated"

	if tc.Events()[0].Content != "a" {
		t.Error("Events must not expose internal storage")
	}
}
