package store

import "database/sql"

const ddl = `
PRAGMA journal_mode=WAL;
PRAGMA foreign_keys=ON;

CREATE TABLE IF NOT EXISTS units (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    project    TEXT NOT NULL,
    unit_id    TEXT NOT NULL,
    signature  TEXT NOT NULL DEFAULT '',
    kind       TEXT NOT NULL DEFAULT '',
    file_path  TEXT NOT NULL DEFAULT '',
    start_line INTEGER NOT NULL DEFAULT 0,
    end_line   INTEGER NOT NULL DEFAULT 0,
    has_doc    INTEGER NOT NULL DEFAULT 0,
    calls      TEXT NOT NULL DEFAULT '',
    content    TEXT NOT NULL,
    body       TEXT NOT NULL DEFAULT '',
    UNIQUE (project, unit_id)
);

CREATE VIRTUAL TABLE IF NOT EXISTS vec_units USING vec0(
    unit_rowid INTEGER PRIMARY KEY,
    embedding float[768]
);
`

// initSchema creates the schema tables if they don't exist.
func initSchema(db *sql.DB) error {
	_, err := db.Exec(ddl)
	return err
}
