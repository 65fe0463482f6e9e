// Package postgres provides a PostgreSQL implementation of storage.MemoryStore.
package postgres

// Schema contains the SQL statements to create the memories table.
// The embedding is always kept in the BYTEA column; MigrationPgvector adds a
// native vector column when the extension is installed.
//
// importance defaults to 0.5 while the extractor writes values on a 0-10
// scale. The default is never used by the extraction pipeline.
const Schema = `
CREATE TABLE IF NOT EXISTS memories (
    seq             BIGSERIAL,
    id              TEXT PRIMARY KEY,
    type            TEXT NOT NULL,
    content         TEXT NOT NULL,
    source          TEXT NOT NULL,
    embedding       BYTEA,
    importance      DOUBLE PRECISION NOT NULL DEFAULT 0.5,
    conversation_id TEXT,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_memories_recent ON memories(created_at DESC, seq DESC);
`

// MigrationPgvector adds the embedding_vec column. It is only applied when
// the vector extension is available and is safe to run multiple times.
const MigrationPgvector = `
DO $$
BEGIN
    IF NOT EXISTS (
        SELECT 1 FROM information_schema.columns
        WHERE table_name = 'memories' AND column_name = 'embedding_vec'
    ) THEN
        ALTER TABLE memories ADD COLUMN embedding_vec vector;
    END IF;
END
$$;
`
