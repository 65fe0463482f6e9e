// Package stdio feeds conversation turns to the extraction pipeline as
// line-delimited JSON over a reader/writer pair.
//
// Each input line is one Turn. Each Turn produces exactly one TurnResult
// line on the output, in input order. Diagnostics go to stderr only, so the
// output stream can be piped into other tools.
package stdio

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/scrypster/mnemo/internal/engine"
)

// Turn is one completed exchange between the user and the assistant.
type Turn struct {
	User           string `json:"user"`
	Assistant      string `json:"assistant"`
	ConversationID string `json:"conversation_id"`
}

// StoredMemory identifies a memory recorded for a turn.
type StoredMemory struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

// Rejection records a candidate dropped as a duplicate.
type Rejection struct {
	Content string `json:"content"`
	Stage   string `json:"stage"`
	MatchID string `json:"match_id,omitempty"`
}

// TurnResult summarizes what the pipeline did with one Turn.
type TurnResult struct {
	Line           int            `json:"line"`
	ConversationID string         `json:"conversation_id,omitempty"`
	Extracted      int            `json:"extracted"`
	Stored         []StoredMemory `json:"stored"`
	Rejected       []Rejection    `json:"rejected,omitempty"`
	Failed         []string       `json:"failed,omitempty"`
	Error          string         `json:"error,omitempty"`
}

// TurnProcessor is the subset of *engine.ExtractionPipeline the transport uses.
type TurnProcessor interface {
	ExtractAndStoreMemories(ctx context.Context, userUtterance, assistantReply, conversationID string)
}

var _ TurnProcessor = (*engine.ExtractionPipeline)(nil)

// Transport reads turns from in and writes results to out.
type Transport struct {
	processor TurnProcessor
	in        io.Reader
	out       io.Writer
	logger    *log.Logger
}

// NewTransport constructs a Transport. Log output goes to stderr.
func NewTransport(processor TurnProcessor, in io.Reader, out io.Writer) *Transport {
	return &Transport{
		processor: processor,
		in:        in,
		out:       out,
		logger:    log.New(os.Stderr, "mnemo-extract: ", log.LstdFlags),
	}
}

// Serve processes turns until in is exhausted or ctx is cancelled. Turns
// are handled synchronously in arrival order. A malformed line yields a
// result with Error set and processing continues.
func (t *Transport) Serve(ctx context.Context) error {
	scanner := bufio.NewScanner(t.in)

	const maxBuf = 4 * 1024 * 1024
	scanner.Buffer(make([]byte, 64*1024), maxBuf)

	lineNo := 0
	for {
		if err := ctx.Err(); err != nil {
			t.logger.Println("context cancelled, shutting down")
			return err
		}

		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("input scanner: %w", err)
			}
			return nil
		}
		lineNo++

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		result := t.handle(ctx, lineNo, line)
		if err := t.writeResult(result); err != nil {
			return fmt.Errorf("write result: %w", err)
		}
	}
}

func (t *Transport) handle(ctx context.Context, lineNo int, line []byte) TurnResult {
	var turn Turn
	if err := json.Unmarshal(line, &turn); err != nil {
		t.logger.Printf("line %d: invalid turn: %v", lineNo, err)
		return TurnResult{Line: lineNo, Stored: []StoredMemory{}, Error: "invalid turn: " + err.Error()}
	}

	tc := engine.NewTraceCollector()
	t.processor.ExtractAndStoreMemories(engine.WithTraceCollector(ctx, tc), turn.User, turn.Assistant, turn.ConversationID)

	return summarize(lineNo, turn.ConversationID, tc.Events())
}

// summarize folds the pipeline's trace for one turn into a TurnResult.
func summarize(lineNo int, conversationID string, events []engine.TraceEvent) TurnResult {
	result := TurnResult{Line: lineNo, ConversationID: conversationID, Stored: []StoredMemory{}}
	for _, e := range events {
		switch e.Kind {
		case engine.KindMemoryStored:
			result.Stored = append(result.Stored, StoredMemory{ID: e.MemoryID, Content: e.Content})
		case engine.KindDuplicateRejected:
			result.Rejected = append(result.Rejected, Rejection{Content: e.Content, Stage: e.Stage, MatchID: e.MemoryID})
		case engine.KindStoreFailed:
			result.Failed = append(result.Failed, e.Content)
		case engine.KindExtractionFinished:
			result.Extracted = e.Extracted
		}
	}
	return result
}

func (t *Transport) writeResult(result TurnResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(t.out, "%s\n", data)
	return err
}
