// Package store provides the embedding index: a vector-searchable document
// store for extracted units, keyed by project and unit id.
package store

import (
	"context"
	"strings"
)

// Metadata round-trips the unit fields needed to reconstruct a retrieval hit.
// Calls is an ordered name list internally; it is serialized to a primitive
// string only at the storage boundary.
type Metadata struct {
	Signature string
	Kind      string
	FilePath  string
	StartLine int
	EndLine   int
	HasDoc    bool
	Calls     []string
}

// Document is one indexed unit: the embedded text, the verbatim unit body,
// and the unit metadata.
type Document struct {
	UnitID string
	Text   string
	Body   string
	Meta   Metadata
}

// Result is a search hit ordered by ascending distance.
type Result struct {
	UnitID   string
	Text     string
	Body     string
	Meta     Metadata
	Distance float64
}

// Embedder turns texts into vectors. The returned slice has the same length
// and order as the input.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Index is the embedding index capability consumed by indexing and retrieval.
type Index interface {
	// Upsert replaces the stored documents for the given unit ids.
	Upsert(ctx context.Context, project string, docs []Document) error
	// Search returns up to k documents nearest to the query text, most
	// similar first.
	Search(ctx context.Context, project, query string, k int) ([]Result, error)
	// Get fetches one stored document by unit id; ok is false if absent.
	Get(ctx context.Context, project, unitID string) (Document, bool, error)
	// DeleteProject removes all documents for a project; unknown projects
	// are a no-op.
	DeleteProject(ctx context.Context, project string) error
	Close() error
}

const callsSeparator = ", "

func joinCalls(calls []string) string {
	return strings.Join(calls, callsSeparator)
}

func splitCalls(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	calls := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			calls = append(calls, p)
		}
	}
	return calls
}
