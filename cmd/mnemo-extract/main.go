// cmd/mnemo-extract records memories from conversation turns.
//
// It reads one JSON turn per line from stdin:
//
//	{"user": "...", "assistant": "...", "conversation_id": "..."}
//
// runs each through the extraction pipeline, and writes one JSON result per
// turn to stdout. With -recent N it instead prints the N most recent stored
// memories, one JSON object per line.
//
// All logging goes to stderr so stdout stays machine-readable.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/scrypster/mnemo/internal/api/stdio"
	"github.com/scrypster/mnemo/internal/config"
	"github.com/scrypster/mnemo/internal/engine"
	"github.com/scrypster/mnemo/internal/llm"
	"github.com/scrypster/mnemo/internal/storage"
	"github.com/scrypster/mnemo/internal/storage/memstore"
	"github.com/scrypster/mnemo/internal/storage/postgres"
	"github.com/scrypster/mnemo/internal/storage/sqlite"
)

func main() {
	log.SetOutput(os.Stderr)
	log.SetPrefix("mnemo-extract: ")
	log.SetFlags(log.LstdFlags)

	recent := flag.Int("recent", 0, "print the N most recent memories instead of reading turns")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("received shutdown signal")
		cancel()
	}()

	if err := run(ctx, cfg, os.Stdin, os.Stdout, *recent); err != nil && ctx.Err() == nil {
		log.Fatalf("%v", err)
	}
}

// run opens the configured store and either serves turns from in or, when
// recent > 0, lists recent memories to out.
func run(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer, recent int) error {
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("store close error: %v", err)
		}
	}()

	if recent > 0 {
		return printRecent(ctx, store, out, recent)
	}

	provider, err := llm.NewEmbeddingProviderFromConfig(cfg.Embedding)
	if err != nil {
		return fmt.Errorf("failed to create embedding provider: %w", err)
	}
	if provider == nil {
		log.Println("embedding provider disabled, memories will be stored without embeddings")
	} else {
		log.Printf("embedding with %s via %s", provider.GetModel(), cfg.Embedding.Provider)
	}

	pipeline, err := engine.NewExtractionPipeline(store, provider, engine.ConfigFromSettings(cfg.Extraction))
	if err != nil {
		return fmt.Errorf("failed to create extraction pipeline: %w", err)
	}

	log.Println("ready, reading turns from stdin")
	return stdio.NewTransport(pipeline, in, out).Serve(ctx)
}

// openStore opens the storage engine named in cfg.
func openStore(cfg *config.Config) (storage.MemoryStore, error) {
	switch cfg.Storage.Engine {
	case config.EngineMemory:
		log.Println("using in-memory store, nothing will be persisted")
		return memstore.New(), nil

	case config.EnginePostgres:
		store, err := postgres.NewMemoryStore(cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres at %s: %w", cfg.RedactedDSN(), err)
		}
		log.Printf("using postgres store at %s (pgvector: %v)", cfg.RedactedDSN(), store.PgvectorAvailable())
		return store, nil

	case config.EngineSQLite:
		if err := os.MkdirAll(cfg.Storage.DataPath, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create data directory %q: %w", cfg.Storage.DataPath, err)
		}
		dbPath := cfg.SQLitePath()
		store, err := sqlite.NewMemoryStore(dbPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open database at %q: %w", dbPath, err)
		}
		return store, nil

	default:
		return nil, fmt.Errorf("unsupported storage engine %q", cfg.Storage.Engine)
	}
}

// printRecent writes the n most recent memories to out as JSON lines.
func printRecent(ctx context.Context, store storage.MemoryStore, out io.Writer, n int) error {
	memories, err := store.QueryRecent(ctx, n)
	if err != nil {
		return fmt.Errorf("failed to query recent memories: %w", err)
	}

	enc := json.NewEncoder(out)
	for _, m := range memories {
		if err := enc.Encode(m); err != nil {
			return fmt.Errorf("failed to write memory %s: %w", m.ID, err)
		}
	}
	return nil
}
