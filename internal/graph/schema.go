package graph

import "database/sql"

const ddl = `
PRAGMA journal_mode=WAL;
PRAGMA foreign_keys=ON;

CREATE TABLE IF NOT EXISTS nodes (
    project    TEXT NOT NULL,
    unit_id    TEXT NOT NULL,
    name       TEXT NOT NULL,
    kind       TEXT NOT NULL,
    signature  TEXT NOT NULL,
    file_path  TEXT NOT NULL,
    start_line INTEGER NOT NULL,
    end_line   INTEGER NOT NULL,
    PRIMARY KEY (project, unit_id)
);

CREATE TABLE IF NOT EXISTS edges (
    project TEXT NOT NULL,
    caller  TEXT NOT NULL,
    callee  TEXT NOT NULL,
    seq     INTEGER NOT NULL,
    PRIMARY KEY (project, caller, callee)
);

CREATE INDEX IF NOT EXISTS idx_edges_caller ON edges(project, caller);
CREATE INDEX IF NOT EXISTS idx_edges_callee ON edges(project, callee);
`

// initSchema creates the graph tables if they don't exist.
func initSchema(db *sql.DB) error {
	_, err := db.Exec(ddl)
	return err
}
