package sqlite

// Schema creates the memories table. created_at is stored as Unix nanoseconds
// so that ordering is exact; seq breaks ties between memories created in the
// same instant.
//
// importance defaults to 0.5 while the extractor writes values on a 0-10
// scale. The default is never used by the extraction pipeline.
const Schema = `
CREATE TABLE IF NOT EXISTS memories (
    seq             INTEGER PRIMARY KEY AUTOINCREMENT,
    id              TEXT NOT NULL UNIQUE,
    type            TEXT NOT NULL,
    content         TEXT NOT NULL,
    source          TEXT NOT NULL,
    embedding       BLOB,
    importance      REAL NOT NULL DEFAULT 0.5,
    conversation_id TEXT,
    created_at      INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_memories_recent ON memories(created_at DESC, seq DESC);
`
