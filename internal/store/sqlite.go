package store

import (
	"context"
	"database/sql"
	"fmt"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	sqlite_vec.Auto()
}

const embedBatchSize = 32

// oversample compensates for project filtering after the KNN scan: the vec
// table is shared across projects, so the nearest rows may belong to others.
const oversample = 8

// SQLiteIndex implements Index backed by SQLite + sqlite-vec.
type SQLiteIndex struct {
	db       *sql.DB
	embedder Embedder
}

// Open creates or opens an index database at the given path.
func Open(path string, embedder Embedder) (*SQLiteIndex, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open index db: %w", err)
	}
	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("init index schema: %w", err)
	}
	return &SQLiteIndex{db: db, embedder: embedder}, nil
}

func (s *SQLiteIndex) Upsert(ctx context.Context, project string, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	// Embed outside the transaction; the embedder is the slow part.
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Text
	}
	embeddings := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += embedBatchSize {
		end := min(i+embedBatchSize, len(texts))
		batch, err := s.embedder.Embed(ctx, texts[i:end])
		if err != nil {
			return fmt.Errorf("embed batch: %w", err)
		}
		embeddings = append(embeddings, batch...)
	}
	if len(embeddings) != len(docs) {
		return fmt.Errorf("expected %d embeddings, got %d", len(docs), len(embeddings))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for i, d := range docs {
		var existing int64
		err := tx.QueryRowContext(ctx,
			"SELECT id FROM units WHERE project = ? AND unit_id = ?",
			project, d.UnitID).Scan(&existing)
		switch {
		case err == nil:
			if _, err := tx.ExecContext(ctx, "DELETE FROM vec_units WHERE unit_rowid = ?", existing); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, "DELETE FROM units WHERE id = ?", existing); err != nil {
				return err
			}
		case err != sql.ErrNoRows:
			return err
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO units (project, unit_id, signature, kind, file_path, start_line, end_line, has_doc, calls, content, body)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			project, d.UnitID, d.Meta.Signature, d.Meta.Kind, d.Meta.FilePath,
			d.Meta.StartLine, d.Meta.EndLine, d.Meta.HasDoc, joinCalls(d.Meta.Calls), d.Text, d.Body,
		)
		if err != nil {
			return fmt.Errorf("insert unit %s: %w", d.UnitID, err)
		}
		rowID, err := res.LastInsertId()
		if err != nil {
			return err
		}

		blob, err := sqlite_vec.SerializeFloat32(embeddings[i])
		if err != nil {
			return fmt.Errorf("serialize embedding for %s: %w", d.UnitID, err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO vec_units (unit_rowid, embedding) VALUES (?, ?)",
			rowID, blob); err != nil {
			return fmt.Errorf("insert embedding for %s: %w", d.UnitID, err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteIndex) Search(ctx context.Context, project, query string, k int) ([]Result, error) {
	vecs, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("expected 1 query embedding, got %d", len(vecs))
	}
	blob, err := sqlite_vec.SerializeFloat32(vecs[0])
	if err != nil {
		return nil, fmt.Errorf("serialize query embedding: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT u.unit_id, u.signature, u.kind, u.file_path, u.start_line, u.end_line,
		       u.has_doc, u.calls, u.content, u.body, v.distance
		FROM (
			SELECT unit_rowid, distance
			FROM vec_units
			WHERE embedding MATCH ?
			ORDER BY distance
			LIMIT ?
		) v
		JOIN units u ON u.id = v.unit_rowid
		WHERE u.project = ?
		ORDER BY v.distance
		LIMIT ?
	`, blob, k*oversample, project, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func (s *SQLiteIndex) Get(ctx context.Context, project, unitID string) (Document, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT unit_id, signature, kind, file_path, start_line, end_line, has_doc, calls, content, body
		FROM units WHERE project = ? AND unit_id = ?`,
		project, unitID)

	var d Document
	var calls string
	err := row.Scan(&d.UnitID, &d.Meta.Signature, &d.Meta.Kind, &d.Meta.FilePath,
		&d.Meta.StartLine, &d.Meta.EndLine, &d.Meta.HasDoc, &calls, &d.Text, &d.Body)
	if err == sql.ErrNoRows {
		return Document{}, false, nil
	}
	if err != nil {
		return Document{}, false, err
	}
	d.Meta.Calls = splitCalls(calls)
	return d, true, nil
}

func (s *SQLiteIndex) DeleteProject(ctx context.Context, project string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, "SELECT id FROM units WHERE project = ?", project)
	if err != nil {
		return err
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, "DELETE FROM vec_units WHERE unit_rowid = ?", id); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM units WHERE project = ?", project); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteIndex) Close() error {
	return s.db.Close()
}

func scanResult(rows *sql.Rows) (Result, error) {
	var r Result
	var calls string
	err := rows.Scan(&r.UnitID, &r.Meta.Signature, &r.Meta.Kind, &r.Meta.FilePath,
		&r.Meta.StartLine, &r.Meta.EndLine, &r.Meta.HasDoc, &calls, &r.Text, &r.Body, &r.Distance)
	if err != nil {
		return Result{}, err
	}
	r.Meta.Calls = splitCalls(calls)
	return r, nil
}
