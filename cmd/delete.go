package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var flagDeletePath string

var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Remove all indexed state for a project",
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := resolveRoot(flagDeletePath)
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

		ctx := cmd.Context()
		project := projectName(root)

		if err := g.Delete(ctx, project); err != nil {
			return fmt.Errorf("delete graph: %w", err)
		}
		if err := idx.DeleteProject(ctx, project); err != nil {
			return fmt.Errorf("delete index: %w", err)
		}

		fmt.Printf("Deleted project %q\n", project)
		return nil
	},
}

func init() {
	deleteCmd.Flags().StringVar(&flagDeletePath, "path", "", "project root (default: current directory)")
	rootCmd.AddCommand(deleteCmd)
}
