package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// TruncateForTest removes all rows from the memories table.
// It is intended for use in tests only. The method is defined in the
// postgres package (not the _test package) so it has access to the
// unexported db field. It is still exported so that the postgres_test
// package can call it.
func (s *MemoryStore) TruncateForTest(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "TRUNCATE TABLE memories RESTART IDENTITY")
	if err != nil {
		return fmt.Errorf("postgres: failed to truncate memories: %w", err)
	}
	return nil
}

// VectorDimensionForTest returns the dimension stored in embedding_vec for id,
// or 0 when the column is NULL.
func (s *MemoryStore) VectorDimensionForTest(ctx context.Context, id string) (int, error) {
	var dim sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		"SELECT vector_dims(embedding_vec) FROM memories WHERE id = $1", id).Scan(&dim)
	if err != nil {
		return 0, fmt.Errorf("postgres: failed to read vector dims: %w", err)
	}
	return int(dim.Int64), nil
}

// ClearEmbeddingBlobForTest sets the BYTEA embedding of id to NULL, leaving
// embedding_vec untouched.
func (s *MemoryStore) ClearEmbeddingBlobForTest(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "UPDATE memories SET embedding = NULL WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("postgres: failed to clear embedding blob: %w", err)
	}
	return nil
}
