// Package sqlite provides a SQLite implementation of storage.MemoryStore.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/exec"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/scrypster/mnemo/internal/storage"
	"github.com/scrypster/mnemo/pkg/types"
)

// MemoryStore implements storage.MemoryStore using SQLite.
type MemoryStore struct {
	db *sql.DB
}

var _ storage.MemoryStore = (*MemoryStore)(nil)

// NewMemoryStore creates a new SQLite memory store with WAL self-healing.
// If the initial open fails due to stale WAL files (left behind by a crashed
// process), it verifies no other process holds them and retries once after
// removing the stale -shm/-wal files.
func NewMemoryStore(dsn string) (*MemoryStore, error) {
	store, err := openMemoryStore(dsn)
	if err == nil {
		return store, nil
	}

	if !isRecoverableWALError(err) {
		return nil, err
	}

	dbPath := dbPathFromDSN(dsn)
	if dbPath == "" {
		return nil, err
	}

	if !recoverStaleWAL(dbPath) {
		return nil, err
	}

	store, retryErr := openMemoryStore(dsn)
	if retryErr != nil {
		return nil, fmt.Errorf("failed after WAL recovery: %w (original: %v)", retryErr, err)
	}

	log.Printf("sqlite: recovered from stale WAL files for %s", dbPath)
	return store, nil
}

// openMemoryStore opens a SQLite database, configures WAL mode, and creates the schema.
func openMemoryStore(dsn string) (*MemoryStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one concurrent writer. A single connection
	// serialises writes and keeps :memory: databases on one connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Callers wait for the connection instead of failing with SQLITE_BUSY.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &MemoryStore{db: db}, nil
}

// Insert persists a new memory.
func (s *MemoryStore) Insert(ctx context.Context, memory *types.Memory) error {
	if err := memory.Validate(); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}

	if memory.CreatedAt.IsZero() {
		memory.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO memories (id, type, content, source, embedding, importance, conversation_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		memory.ID,
		string(memory.Type),
		memory.Content,
		memory.Source,
		storage.EncodeEmbedding(memory.Embedding),
		memory.Importance,
		nullableString(memory.ConversationID),
		memory.CreatedAt.UnixNano(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", storage.ErrDuplicateID, memory.ID)
		}
		return fmt.Errorf("sqlite: failed to insert memory: %w", err)
	}

	return nil
}

// QueryRecent returns up to limit memories, most recent first.
func (s *MemoryStore) QueryRecent(ctx context.Context, limit int) ([]*types.Memory, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, content, source, embedding, importance, conversation_id, created_at
		FROM memories
		ORDER BY created_at DESC, seq DESC
		LIMIT ?
	`, storage.NormalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to query recent memories: %w", err)
	}
	defer rows.Close()

	var memories []*types.Memory
	for rows.Next() {
		var (
			m              types.Memory
			memType        string
			embedding      []byte
			conversationID sql.NullString
			createdAt      int64
		)
		if err := rows.Scan(&m.ID, &memType, &m.Content, &m.Source, &embedding,
			&m.Importance, &conversationID, &createdAt); err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan memory: %w", err)
		}

		m.Type = types.MemoryType(memType)
		m.ConversationID = conversationID.String
		m.CreatedAt = time.Unix(0, createdAt)

		m.Embedding, err = storage.DecodeEmbedding(embedding)
		if err != nil {
			// A corrupt vector only disables the semantic check for this row.
			log.Printf("sqlite: ignoring embedding for memory %s: %v", m.ID, err)
			m.Embedding = nil
		}

		memories = append(memories, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: failed to iterate memories: %w", err)
	}

	return memories, nil
}

// GetDB returns the underlying database connection.
func (s *MemoryStore) GetDB() *sql.DB {
	return s.db
}

// Close flushes the WAL into the main database file and releases resources.
// The TRUNCATE checkpoint removes the -shm and -wal files so that other
// processes can open the database without encountering stale WAL state.
func (s *MemoryStore) Close() error {
	if s.db == nil {
		return nil
	}

	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		log.Printf("sqlite: WAL checkpoint on close failed (non-fatal): %v", err)
	}

	return s.db.Close()
}

// nullableString converts a string to sql.NullString.
// An empty string is treated as NULL.
func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// dbPathFromDSN extracts the filesystem path from a SQLite DSN.
// Handles bare paths ("/path/to/db.sqlite") and file: URIs ("file:/path/to/db.sqlite?mode=rwc").
// Returns empty string for in-memory databases or unparseable DSNs.
func dbPathFromDSN(dsn string) string {
	if dsn == ":memory:" || dsn == "" {
		return ""
	}

	if strings.HasPrefix(dsn, "file:") {
		u, err := url.Parse(dsn)
		if err != nil {
			return ""
		}
		path := u.Path
		if path == "" {
			path = u.Opaque
		}
		if path == ":memory:" || path == "" {
			return ""
		}
		return path
	}

	return dsn
}

// isRecoverableWALError returns true if the error matches patterns caused by
// stale WAL files left behind after a crash (SIGKILL, OOM, etc.).
func isRecoverableWALError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "disk I/O error") ||
		strings.Contains(msg, "database is locked")
}

// walSidecars returns the -shm and -wal files present next to dbPath.
func walSidecars(dbPath string) []string {
	var found []string
	for _, suffix := range []string{"-shm", "-wal"} {
		if _, err := os.Stat(dbPath + suffix); err == nil {
			found = append(found, dbPath+suffix)
		}
	}
	return found
}

// walInUse reports whether any process holds one of paths open.
// Tests replace it to avoid depending on lsof.
var walInUse = lsofInUse

// lsofInUse asks lsof about paths. An error means the answer is unknown.
func lsofInUse(paths ...string) (bool, error) {
	lsofPath, err := exec.LookPath("lsof")
	if err != nil {
		return false, err
	}

	output, err := exec.Command(lsofPath, append([]string{"-t"}, paths...)...).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			// lsof exits 1 when no process has the files open.
			return false, nil
		}
		return false, err
	}
	return strings.TrimSpace(string(output)) != "", nil
}

// recoverStaleWAL removes the WAL sidecars of dbPath when they exist and
// no process holds them. It reports whether anything was removed.
func recoverStaleWAL(dbPath string) bool {
	sidecars := walSidecars(dbPath)
	if len(sidecars) == 0 {
		return false
	}

	inUse, err := walInUse(append([]string{dbPath}, sidecars...)...)
	if err != nil {
		log.Printf("sqlite: cannot tell whether WAL files of %s are in use: %v", dbPath, err)
		return false
	}
	if inUse {
		return false
	}

	removed := false
	for _, path := range sidecars {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Printf("sqlite: failed to remove stale %s: %v", path, err)
			continue
		}
		removed = true
	}
	return removed
}
