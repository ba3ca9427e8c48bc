// Package graph persists the per-project call graph: one node per extracted
// unit, one edge per resolved caller→callee relationship.
package graph

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"quarry/internal/extract"
)

// StorageError wraps a persistence failure. A failed Rebuild leaves the
// previous graph for the project intact.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("graph %s: %v", e.Op, e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }

func storageErr(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

// Stats reports the result of a rebuild.
type Stats struct {
	Nodes int
	Edges int
}

// Store is a SQLite-backed project graph. Rebuilds are transactional: readers
// observe either the old graph or the fully new one, never a partial write.
type Store struct {
	db *sql.DB
}

// Open creates or opens the graph database at the given path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, storageErr("open", err)
	}
	if err := initSchema(db); err != nil {
		db.Close()
		return nil, storageErr("init schema", err)
	}
	return &Store{db: db}, nil
}

// Rebuild replaces the stored graph for project atomically. Call names that
// resolve to exactly one unit's declared name produce an edge; ambiguous or
// unresolved names are dropped. Self-loops and cycles are stored as-is.
func (s *Store) Rebuild(ctx context.Context, project string, units []extract.Unit) (Stats, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Stats{}, storageErr("rebuild", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM edges WHERE project = ?", project); err != nil {
		return Stats{}, storageErr("rebuild", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM nodes WHERE project = ?", project); err != nil {
		return Stats{}, storageErr("rebuild", err)
	}

	nodeStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO nodes (project, unit_id, name, kind, signature, file_path, start_line, end_line)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (project, unit_id) DO NOTHING`)
	if err != nil {
		return Stats{}, storageErr("rebuild", err)
	}
	defer nodeStmt.Close()

	// Declared name → unit ids. A name maps to an edge target only when it
	// is unambiguous within the project.
	names := make(map[string][]string, len(units))
	for _, u := range units {
		if _, err := nodeStmt.ExecContext(ctx,
			project, u.ID, u.Name, string(u.Kind), u.Signature,
			u.FilePath, u.StartLine, u.EndLine,
		); err != nil {
			return Stats{}, storageErr("rebuild", err)
		}
		names[u.Name] = append(names[u.Name], u.ID)
	}

	edgeStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO edges (project, caller, callee, seq)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (project, caller, callee) DO NOTHING`)
	if err != nil {
		return Stats{}, storageErr("rebuild", err)
	}
	defer edgeStmt.Close()

	edges := 0
	for _, u := range units {
		emitted := make(map[string]bool, len(u.Calls))
		seq := 0
		for _, call := range u.Calls {
			targets := names[call]
			if len(targets) != 1 {
				continue
			}
			callee := targets[0]
			if emitted[callee] {
				continue
			}
			emitted[callee] = true
			if _, err := edgeStmt.ExecContext(ctx, project, u.ID, callee, seq); err != nil {
				return Stats{}, storageErr("rebuild", err)
			}
			seq++
			edges++
		}
	}

	if err := ctx.Err(); err != nil {
		return Stats{}, storageErr("rebuild", err)
	}
	if err := tx.Commit(); err != nil {
		return Stats{}, storageErr("rebuild", err)
	}
	return Stats{Nodes: len(units), Edges: edges}, nil
}

// Neighbors returns the callee ids directly reachable from unitID, in the
// caller's recorded call order. Unknown ids yield an empty list.
func (s *Store) Neighbors(ctx context.Context, project, unitID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT callee FROM edges WHERE project = ? AND caller = ? ORDER BY seq",
		project, unitID)
	if err != nil {
		return nil, storageErr("neighbors", err)
	}
	defer rows.Close()

	var callees []string
	for rows.Next() {
		var callee string
		if err := rows.Scan(&callee); err != nil {
			return nil, storageErr("neighbors", err)
		}
		callees = append(callees, callee)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("neighbors", err)
	}
	return callees, nil
}

// Node returns the stored metadata for a unit id.
func (s *Store) Node(ctx context.Context, project, unitID string) (signature, filePath string, ok bool, err error) {
	err = s.db.QueryRowContext(ctx,
		"SELECT signature, file_path FROM nodes WHERE project = ? AND unit_id = ?",
		project, unitID).Scan(&signature, &filePath)
	if err == sql.ErrNoRows {
		return "", "", false, nil
	}
	if err != nil {
		return "", "", false, storageErr("node", err)
	}
	return signature, filePath, true, nil
}

const overviewLimit = 10

// Overview returns a human-readable summary of the stored graph: counts, the
// most-calling and most-called units, and a sample of call edges.
func (s *Store) Overview(ctx context.Context, project string) (string, error) {
	var nodeCount, fileCount, edgeCount int
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT file_path)
		FROM nodes WHERE project = ?`, project)
	if err := row.Scan(&nodeCount, &fileCount); err != nil {
		return "", storageErr("overview", err)
	}
	row = s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM edges WHERE project = ?", project)
	if err := row.Scan(&edgeCount); err != nil {
		return "", storageErr("overview", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Project: %s\n", project)
	fmt.Fprintf(&b, "Files indexed: %d\n", fileCount)
	fmt.Fprintf(&b, "Units indexed: %d\n", nodeCount)
	fmt.Fprintf(&b, "Call edges: %d\n", edgeCount)

	callers, err := s.topDegrees(ctx, project, "caller")
	if err != nil {
		return "", err
	}
	if len(callers) > 0 {
		b.WriteString("\nTop callers (out-degree):\n")
		for _, d := range callers {
			fmt.Fprintf(&b, "- %s (calls=%d)\n", d.label, d.count)
		}
	}

	callees, err := s.topDegrees(ctx, project, "callee")
	if err != nil {
		return "", err
	}
	if len(callees) > 0 {
		b.WriteString("\nTop callees (in-degree):\n")
		for _, d := range callees {
			fmt.Fprintf(&b, "- %s (called_by=%d)\n", d.label, d.count)
		}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT caller, callee FROM edges
		WHERE project = ? ORDER BY caller, callee LIMIT ?`,
		project, overviewLimit)
	if err != nil {
		return "", storageErr("overview", err)
	}
	defer rows.Close()

	var sample []string
	for rows.Next() {
		var caller, callee string
		if err := rows.Scan(&caller, &callee); err != nil {
			return "", storageErr("overview", err)
		}
		sample = append(sample, fmt.Sprintf("- %s -> %s", caller, callee))
	}
	if err := rows.Err(); err != nil {
		return "", storageErr("overview", err)
	}
	if len(sample) > 0 {
		b.WriteString("\nSample call edges:\n")
		b.WriteString(strings.Join(sample, "\n"))
		b.WriteByte('\n')
	}

	return strings.TrimSpace(b.String()), nil
}

type degree struct {
	label string
	count int
}

func (s *Store) topDegrees(ctx context.Context, project, col string) ([]degree, error) {
	// col is one of the fixed column names "caller" or "callee".
	q := fmt.Sprintf(`
		SELECT COALESCE(n.signature, e.%[1]s), COUNT(*) AS c
		FROM edges e
		LEFT JOIN nodes n ON n.project = e.project AND n.unit_id = e.%[1]s
		WHERE e.project = ?
		GROUP BY e.%[1]s
		ORDER BY c DESC, e.%[1]s
		LIMIT ?`, col)

	rows, err := s.db.QueryContext(ctx, q, project, overviewLimit)
	if err != nil {
		return nil, storageErr("overview", err)
	}
	defer rows.Close()

	var out []degree
	for rows.Next() {
		var d degree
		if err := rows.Scan(&d.label, &d.count); err != nil {
			return nil, storageErr("overview", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("overview", err)
	}
	return out, nil
}

// Delete removes all graph state for a project. Deleting an unknown project
// is a no-op.
func (s *Store) Delete(ctx context.Context, project string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("delete", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM edges WHERE project = ?", project); err != nil {
		return storageErr("delete", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM nodes WHERE project = ?", project); err != nil {
		return storageErr("delete", err)
	}
	if err := tx.Commit(); err != nil {
		return storageErr("delete", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
