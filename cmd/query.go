package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"quarry/internal/retrieve"

	"github.com/spf13/cobra"
)

var (
	flagK        int
	flagPath     string
	flagShowBody bool
)

var queryCmd = &cobra.Command{
	Use:   "query <text>",
	Short: "Search indexed units and expand results along call edges",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := resolveRoot(flagPath)
		if err != nil {
			return err
		}

		dir := dataDir(root)
		if err := requireData(dir); err != nil {
			return err
		}

		g, idx, closeAll, err := openStores(dir)
		if err != nil {
			return err
		}
		defer closeAll()

		query := strings.Join(args, " ")
		r := retrieve.New(idx, g)
		hits, err := r.Retrieve(cmd.Context(), projectName(root), query, flagK)
		if err != nil {
			return err
		}
		if len(hits) == 0 {
			fmt.Printf("No results for %q\n", query)
			return nil
		}

		for _, h := range hits {
			printHit(h)
		}
		return nil
	},
}

func printHit(h retrieve.Hit) {
	label := "PRIMARY"
	if h.IsDependency {
		label = "DEPENDENCY"
	}
	fmt.Printf("[%s] %s\n", label, h.Signature)
	fmt.Printf("  %s:%d-%d", h.FilePath, h.StartLine, h.EndLine)
	if h.IsDependency {
		fmt.Printf("  (called from %s)", h.CalledFrom)
	}
	if h.HasDoc {
		fmt.Printf("  [documented]")
	}
	fmt.Println()
	if flagShowBody {
		fmt.Println()
		for _, line := range strings.Split(h.Body, "\n") {
			fmt.Printf("    %s\n", line)
		}
	}
	fmt.Println()
}

// resolveRoot returns the absolute project root, defaulting to the working
// directory.
func resolveRoot(path string) (string, error) {
	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		return wd, nil
	}
	return filepath.Abs(path)
}

func init() {
	queryCmd.Flags().IntVar(&flagK, "k", retrieve.DefaultK, "number of primary matches")
	queryCmd.Flags().StringVar(&flagPath, "path", "", "project root (default: current directory)")
	queryCmd.Flags().BoolVar(&flagShowBody, "body", false, "print unit bodies")
	rootCmd.AddCommand(queryCmd)
}
