package protocol

// SchemaDDL defines the SQLite schema for the coordinator audit journal.
// The journal records operations for later inspection; registries are never
// rebuilt from it. Execute with: db.Exec(SchemaDDL)
const SchemaDDL = `
-- Coordinator operation log
CREATE TABLE IF NOT EXISTS events (
    id INTEGER PRIMARY KEY,
    type TEXT NOT NULL,
    source TEXT NOT NULL,
    agent_id TEXT,
    success INTEGER NOT NULL DEFAULT 1,
    payload TEXT,
    created_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS events_agent_idx ON events(agent_id);
CREATE INDEX IF NOT EXISTS events_type_idx ON events(type);
`
