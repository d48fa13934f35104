package store

import "database/sql"

const ddl = `
PRAGMA journal_mode=DELETE;

CREATE TABLE IF NOT EXISTS chunks (
    position   INTEGER PRIMARY KEY,
    source     TEXT NOT NULL,
    ordinal    INTEGER NOT NULL,
    total      INTEGER NOT NULL,
    char_count INTEGER NOT NULL,
    text       TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS chunks_source ON chunks(source);

CREATE TABLE IF NOT EXISTS meta (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// Init creates the schema tables if they don't exist.
func Init(db *sql.DB) error {
	_, err := db.Exec(ddl)
	return err
}
