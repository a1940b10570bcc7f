package db

const indexStateSchemaV3 = `
CREATE TABLE IF NOT EXISTS index_state (
    name        TEXT PRIMARY KEY,
    value       INTEGER NOT NULL,
    updated_at  TEXT NOT NULL
);
`
