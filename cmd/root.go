package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"quarry/internal/embedder"
	"quarry/internal/graph"
	"quarry/internal/store"

	"github.com/spf13/cobra"
)

var (
	flagData    string
	flagOllama  string
	flagModel   string
	flagProject string
)

var rootCmd = &cobra.Command{
	Use:   "quarry",
	Short: "Call-graph-aware code search for local codebases",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagData, "data", "", "data directory (default <project>/.quarry)")
	rootCmd.PersistentFlags().StringVar(&flagOllama, "ollama", "http://localhost:11434", "ollama base URL")
	rootCmd.PersistentFlags().StringVar(&flagModel, "model", "nomic-embed-text", "embedding model")
	rootCmd.PersistentFlags().StringVar(&flagProject, "project", "", "project name (default: base name of the indexed path)")
}

// dataDir resolves the storage directory for a project root.
func dataDir(root string) string {
	if flagData != "" {
		return flagData
	}
	return filepath.Join(root, ".quarry")
}

// projectName resolves the project identifier for a project root.
func projectName(root string) string {
	if flagProject != "" {
		return flagProject
	}
	return filepath.Base(root)
}

// openStores opens the graph database and the embedding index under dir.
// The caller must invoke the returned closer.
func openStores(dir string) (*graph.Store, *store.SQLiteIndex, func(), error) {
	g, err := graph.Open(filepath.Join(dir, "graph.db"))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open graph: %w", err)
	}

	emb := embedder.NewOllamaEmbedder(flagOllama, flagModel)
	idx, err := store.Open(filepath.Join(dir, "index.db"), emb)
	if err != nil {
		g.Close()
		return nil, nil, nil, fmt.Errorf("open index: %w", err)
	}

	closer := func() {
		idx.Close()
		g.Close()
	}
	return g, idx, closer, nil
}

// requireData fails with a hint when no index has been built yet.
func requireData(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return fmt.Errorf("no index found at %s\nRun 'quarry index <path>' first", dir)
	}
	return nil
}
