// Package index orchestrates a full project (re)index: per-file extraction,
// call-graph rebuild, and embedding upsert.
package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"

	"quarry/internal/extract"
	"quarry/internal/graph"
	"quarry/internal/store"
)

// ErrIndexInProgress is returned when a rebuild is requested for a project
// that already has one in flight. Rebuilds for different projects run
// concurrently; the same project has at most one writer.
var ErrIndexInProgress = errors.New("index rebuild already in progress for this project")

// GraphRebuilder is the graph store capability the job consumes.
type GraphRebuilder interface {
	Rebuild(ctx context.Context, project string, units []extract.Unit) (graph.Stats, error)
}

// DocUpserter is the embedding index capability the job consumes.
type DocUpserter interface {
	Upsert(ctx context.Context, project string, docs []store.Document) error
}

// Stats reports the result of a project rebuild.
type Stats struct {
	FilesTotal  int
	FilesParsed int
	FilesFailed int
	Units       int
	CallEdges   int
}

// Indexer runs indexing jobs. Safe for concurrent use across projects.
type Indexer struct {
	registry *extract.Registry
	graph    GraphRebuilder
	index    DocUpserter
	workers  int
	log      *slog.Logger

	mu      sync.Mutex
	running map[string]bool
}

// New creates an indexer. workers <= 0 means one per CPU.
func New(registry *extract.Registry, g GraphRebuilder, idx DocUpserter, workers int, log *slog.Logger) *Indexer {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Indexer{
		registry: registry,
		graph:    g,
		index:    idx,
		workers:  workers,
		log:      log,
		running:  make(map[string]bool),
	}
}

// RebuildProject extracts units from the given source files, rebuilds the
// project graph, and upserts unit documents into the embedding index. Files
// that fail to parse are logged and skipped; the rest of the batch continues.
// A second call for the same project while one is in flight is rejected with
// ErrIndexInProgress. Cancelling ctx between files aborts the job and leaves
// the previous graph intact.
func (ix *Indexer) RebuildProject(ctx context.Context, project string, paths []string) (*Stats, error) {
	if !ix.acquire(project) {
		return nil, ErrIndexInProgress
	}
	defer ix.release(project)

	units, stats, err := ix.extractAll(ctx, project, paths)
	if err != nil {
		return stats, err
	}

	gstats, err := ix.graph.Rebuild(ctx, project, units)
	if err != nil {
		return stats, fmt.Errorf("rebuild graph for %s: %w", project, err)
	}
	stats.CallEdges = gstats.Edges

	docs := make([]store.Document, len(units))
	for i, u := range units {
		docs[i] = unitDocument(u)
	}
	if err := ix.index.Upsert(ctx, project, docs); err != nil {
		return stats, fmt.Errorf("upsert units for %s: %w", project, err)
	}

	return stats, nil
}

func (ix *Indexer) acquire(project string) bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.running[project] {
		return false
	}
	ix.running[project] = true
	return true
}

func (ix *Indexer) release(project string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	delete(ix.running, project)
}

// extractAll fans file paths out to extraction workers and collects units.
func (ix *Indexer) extractAll(ctx context.Context, project string, paths []string) ([]extract.Unit, *Stats, error) {
	stats := &Stats{FilesTotal: len(paths)}

	pathCh := make(chan string)
	go func() {
		defer close(pathCh)
		for _, p := range paths {
			select {
			case pathCh <- p:
			case <-ctx.Done():
				return
			}
		}
	}()

	type fileResult struct {
		units  []extract.Unit
		failed bool
	}
	resultCh := make(chan fileResult, ix.workers)

	var wg sync.WaitGroup
	for range ix.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range pathCh {
				if ctx.Err() != nil {
					return
				}
				units, ok := ix.extractFile(project, path)
				select {
				case resultCh <- fileResult{units: units, failed: !ok}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}
	go func() {
		wg.Wait()
		close(resultCh)
	}()

	var units []extract.Unit
	for r := range resultCh {
		if r.failed {
			stats.FilesFailed++
			continue
		}
		stats.FilesParsed++
		units = append(units, r.units...)
	}

	if err := ctx.Err(); err != nil {
		return nil, stats, err
	}

	// Workers finish in arbitrary order; sort for stable downstream output.
	sort.Slice(units, func(i, j int) bool {
		if units[i].FilePath != units[j].FilePath {
			return units[i].FilePath < units[j].FilePath
		}
		return units[i].StartLine < units[j].StartLine
	})
	stats.Units = len(units)
	return units, stats, nil
}

// extractFile parses one source file. Parse and read failures are logged and
// reported as skipped so one bad file never aborts the batch.
func (ix *Indexer) extractFile(project, path string) ([]extract.Unit, bool) {
	spec := ix.registry.Lookup(path)
	if spec == nil {
		return nil, true // no grammar registered for this extension
	}

	src, err := os.ReadFile(path)
	if err != nil {
		ix.log.Warn("read failed, skipping file",
			"project", project, "path", path, "error", err)
		return nil, false
	}

	units, err := extract.Extract(spec, path, src)
	if err != nil {
		var perr *extract.ParseError
		if errors.As(err, &perr) {
			ix.log.Warn("parse failed, skipping file",
				"project", project, "path", path, "error", err)
			return nil, false
		}
		ix.log.Warn("extraction failed, skipping file",
			"project", project, "path", path, "error", err)
		return nil, false
	}
	return units, true
}

// unitDocument composes the embedded document for one unit: signature, kind,
// documentation, call list, then the code itself.
func unitDocument(u extract.Unit) store.Document {
	var parts []string
	parts = append(parts, "Signature: "+u.Signature)
	parts = append(parts, "Type: "+string(u.Kind))
	if u.DocComment != "" {
		parts = append(parts, "Documentation: "+u.DocComment)
	}
	if len(u.Calls) > 0 {
		parts = append(parts, "Calls: "+strings.Join(u.Calls, ", "))
	}
	parts = append(parts, "Code:\n"+u.Body)

	return store.Document{
		UnitID: u.ID,
		Text:   strings.Join(parts, "\n\n"),
		Body:   u.Body,
		Meta: store.Metadata{
			Signature: u.Signature,
			Kind:      string(u.Kind),
			FilePath:  u.FilePath,
			StartLine: u.StartLine,
			EndLine:   u.EndLine,
			HasDoc:    u.HasDoc(),
			Calls:     u.Calls,
		},
	}
}
