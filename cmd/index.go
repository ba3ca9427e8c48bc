package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"quarry/internal/extract"
	"quarry/internal/extract/languages"
	"quarry/internal/index"
	"quarry/internal/walker"

	"github.com/spf13/cobra"
)

var flagWorkers int

var indexCmd = &cobra.Command{
	Use:   "index <path>",
	Short: "Index a codebase: extract units, rebuild the call graph, embed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}

		dir := dataDir(root)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create data directory: %w", err)
		}

		registry := extract.NewRegistry()
		languages.RegisterJava(registry)

		paths, err := walker.Collect(root, registry.Extensions())
		if err != nil {
			return fmt.Errorf("collect sources: %w", err)
		}

		g, idx, closeAll, err := openStores(dir)
		if err != nil {
			return err
		}
		defer closeAll()

		project := projectName(root)
		fmt.Printf("Indexing %s as %q...\n", root, project)
		start := time.Now()

		ix := index.New(registry, g, idx, flagWorkers, slog.Default())
		stats, err := ix.RebuildProject(cmd.Context(), project, paths)
		elapsed := time.Since(start)

		if stats != nil {
			fmt.Printf("\nDone in %s\n", elapsed.Round(time.Millisecond))
			fmt.Printf("  Files:  %d total, %d parsed, %d failed\n",
				stats.FilesTotal, stats.FilesParsed, stats.FilesFailed)
			fmt.Printf("  Units:  %d\n", stats.Units)
			fmt.Printf("  Edges:  %d\n", stats.CallEdges)
		}

		return err
	},
}

func init() {
	indexCmd.Flags().IntVar(&flagWorkers, "workers", runtime.NumCPU(), "parallel extraction workers")
	rootCmd.AddCommand(indexCmd)
}
