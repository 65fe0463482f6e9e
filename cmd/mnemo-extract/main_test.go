package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/mnemo/internal/api/stdio"
	"github.com/scrypster/mnemo/internal/config"
	"github.com/scrypster/mnemo/pkg/types"
)

func sqliteConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Storage.DataPath = t.TempDir()
	cfg.Embedding.Provider = config.ProviderNone
	return cfg
}

func decodeLines[T any](t *testing.T, out *bytes.Buffer) []T {
	t.Helper()
	var items []T
	scanner := bufio.NewScanner(out)
	for scanner.Scan() {
		var item T
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &item))
		items = append(items, item)
	}
	return items
}

func TestRun_PersistsAcrossInvocations(t *testing.T) {
	cfg := sqliteConfig(t)
	ctx := context.Background()

	turns := `{"user":"I hate mushrooms","assistant":"Got it","conversation_id":"c1"}
{"user":"My favorite color is teal","assistant":"","conversation_id":"c1"}
`
	var out bytes.Buffer
	require.NoError(t, run(ctx, cfg, strings.NewReader(turns), &out, 0))
	results := decodeLines[stdio.TurnResult](t, &out)
	require.Len(t, results, 2)
	assert.Len(t, results[0].Stored, 1)
	assert.Len(t, results[1].Stored, 1)

	// A second process sees the first one's memories and rejects repeats.
	out.Reset()
	require.NoError(t, run(ctx, cfg, strings.NewReader(`{"user":"I hate mushrooms"}`+"\n"), &out, 0))
	again := decodeLines[stdio.TurnResult](t, &out)
	require.Len(t, again, 1)
	assert.Empty(t, again[0].Stored)
	assert.Len(t, again[0].Rejected, 1)

	out.Reset()
	require.NoError(t, run(ctx, cfg, strings.NewReader(""), &out, 5))
	memories := decodeLines[types.Memory](t, &out)
	require.Len(t, memories, 2)
	assert.Equal(t, "User's favorite color is teal", memories[0].Content)
	assert.Equal(t, "User dislikes mushrooms", memories[1].Content)
	assert.Equal(t, types.SourceAutoExtraction, memories[1].Source)
	assert.Equal(t, "c1", memories[1].ConversationID)
}

func TestRun_MemoryEngine(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Storage.Engine = config.EngineMemory
	cfg.Embedding.Provider = config.ProviderNone

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), cfg, strings.NewReader(`{"user":"Call me Ishmael"}`+"\n"), &out, 0))
	results := decodeLines[stdio.TurnResult](t, &out)
	require.Len(t, results, 1)
	require.Len(t, results[0].Stored, 1)
	assert.Equal(t, "User's name is Ishmael", results[0].Stored[0].Content)
}

func TestOpenStore_Errors(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Storage.Engine = "cassandra"
	_, err := openStore(cfg)
	assert.Error(t, err)
}

func TestRun_BadEmbeddingProvider(t *testing.T) {
	cfg := sqliteConfig(t)
	cfg.Embedding.Provider = "anthropic"

	err := run(context.Background(), cfg, strings.NewReader(""), &bytes.Buffer{}, 0)
	assert.ErrorContains(t, err, "embedding provider")
}
