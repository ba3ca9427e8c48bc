// Package retrieve implements graph-enriched retrieval: vector search for
// primary matches, then one-hop call-graph expansion of their callees.
package retrieve

import (
	"context"
	"fmt"

	"quarry/internal/store"
)

// DefaultK is the number of primary matches when the caller passes k <= 0.
const DefaultK = 4

// RetrievalError indicates the embedding index or graph store failed during a
// query. No partial results are returned alongside it.
type RetrievalError struct {
	Err error
}

func (e *RetrievalError) Error() string { return fmt.Sprintf("retrieve: %v", e.Err) }
func (e *RetrievalError) Unwrap() error { return e.Err }

// Hit is one entry in a retrieval result.
type Hit struct {
	UnitID    string
	Signature string
	Kind      string
	FilePath  string
	StartLine int
	EndLine   int
	Body      string
	HasDoc    bool
	// IsDependency is false for primary vector-search matches and true for
	// units pulled in through call-graph expansion.
	IsDependency bool
	// CalledFrom identifies the primary hit whose call graph introduced
	// this unit. Set only when IsDependency is true.
	CalledFrom string
}

// DocIndex is the slice of the embedding index the retriever consumes.
type DocIndex interface {
	Search(ctx context.Context, project, query string, k int) ([]store.Result, error)
	Get(ctx context.Context, project, unitID string) (store.Document, bool, error)
}

// CallGraph resolves one-hop callees for a unit.
type CallGraph interface {
	Neighbors(ctx context.Context, project, unitID string) ([]string, error)
}

// Retriever combines similarity search with call-graph expansion.
type Retriever struct {
	Index DocIndex
	Graph CallGraph
}

// New creates a retriever over the given index and graph.
func New(index DocIndex, graph CallGraph) *Retriever {
	return &Retriever{Index: index, Graph: graph}
}

// Retrieve returns up to k primary matches in search order, followed by their
// direct callees. Dependencies are deduplicated by unit id across the whole
// result and attributed to the first primary that introduced them; expansion
// is exactly one hop, so callees of dependencies are never included. A missing
// dependency document is skipped silently.
func (r *Retriever) Retrieve(ctx context.Context, project, query string, k int) ([]Hit, error) {
	if k <= 0 {
		k = DefaultK
	}

	primaries, err := r.Index.Search(ctx, project, query, k)
	if err != nil {
		return nil, &RetrievalError{Err: err}
	}

	seen := make(map[string]bool, len(primaries))
	hits := make([]Hit, 0, len(primaries))
	for _, p := range primaries {
		if seen[p.UnitID] {
			continue
		}
		seen[p.UnitID] = true
		hits = append(hits, Hit{
			UnitID:    p.UnitID,
			Signature: p.Meta.Signature,
			Kind:      p.Meta.Kind,
			FilePath:  p.Meta.FilePath,
			StartLine: p.Meta.StartLine,
			EndLine:   p.Meta.EndLine,
			Body:      p.Body,
			HasDoc:    p.Meta.HasDoc,
		})
	}

	// One-hop expansion, in primary order, then call order within a primary.
	var deps []Hit
	for _, p := range primaries {
		callees, err := r.Graph.Neighbors(ctx, project, p.UnitID)
		if err != nil {
			return nil, &RetrievalError{Err: err}
		}
		for _, callee := range callees {
			if seen[callee] {
				continue
			}
			doc, ok, err := r.Index.Get(ctx, project, callee)
			if err != nil {
				return nil, &RetrievalError{Err: err}
			}
			if !ok {
				// Graph and index disagree; degrade gracefully.
				continue
			}
			seen[callee] = true
			deps = append(deps, Hit{
				UnitID:       doc.UnitID,
				Signature:    doc.Meta.Signature,
				Kind:         doc.Meta.Kind,
				FilePath:     doc.Meta.FilePath,
				StartLine:    doc.Meta.StartLine,
				EndLine:      doc.Meta.EndLine,
				Body:         doc.Body,
				HasDoc:       doc.Meta.HasDoc,
				IsDependency: true,
				CalledFrom:   p.UnitID,
			})
		}
	}

	return append(hits, deps...), nil
}
