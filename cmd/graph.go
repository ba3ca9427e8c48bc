package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	flagGraphPath string
	flagNeighbors string
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Show the project call graph",
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := resolveRoot(flagGraphPath)
		if err != nil {
			return err
		}

		dir := dataDir(root)
		if err := requireData(dir); err != nil {
			return err
		}

		g, _, closeAll, err := openStores(dir)
		if err != nil {
			return err
		}
		defer closeAll()

		ctx := cmd.Context()
		project := projectName(root)

		if flagNeighbors != "" {
			sig, path, ok, err := g.Node(ctx, project, flagNeighbors)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("unit %q not found in project %q", flagNeighbors, project)
			}
			fmt.Printf("%s  (%s)\n", sig, path)

			callees, err := g.Neighbors(ctx, project, flagNeighbors)
			if err != nil {
				return err
			}
			if len(callees) == 0 {
				fmt.Println("  no outgoing calls")
				return nil
			}
			for _, c := range callees {
				fmt.Printf("  -> %s\n", c)
			}
			return nil
		}

		text, err := g.Overview(ctx, project)
		if err != nil {
			return err
		}
		fmt.Println(text)
		return nil
	},
}

func init() {
	graphCmd.Flags().StringVar(&flagGraphPath, "path", "", "project root (default: current directory)")
	graphCmd.Flags().StringVar(&flagNeighbors, "neighbors", "", "show outgoing calls for a unit id")
	rootCmd.AddCommand(graphCmd)
}
