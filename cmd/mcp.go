package cmd

import (
	"context"
	"fmt"
	"strings"

	"quarry/internal/graph"
	"quarry/internal/retrieve"
	"quarry/internal/store"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

var flagMCPPath string

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start an MCP server exposing call-graph-aware search tools",
	RunE:  runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	root, err := resolveRoot(flagMCPPath)
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

	project := projectName(root)

	s := mcpserver.NewMCPServer("quarry", "1.0.0", mcpserver.WithToolCapabilities(false))

	s.AddTool(searchUnitsTool(), makeSearchUnitsHandler(project, idx, g))
	s.AddTool(getUnitTool(), makeGetUnitHandler(project, idx, g))
	s.AddTool(getGraphOverviewTool(), makeGraphOverviewHandler(project, g))

	return mcpserver.ServeStdio(s)
}

func init() {
	mcpCmd.Flags().StringVar(&flagMCPPath, "path", "", "project root (default: current directory)")
	rootCmd.AddCommand(mcpCmd)
}

// --- Tool schema builders ---

var readOnlyAnnotation = mcp.ToolAnnotation{
	ReadOnlyHint:    mcp.ToBoolPtr(true),
	DestructiveHint: mcp.ToBoolPtr(false),
	IdempotentHint:  mcp.ToBoolPtr(true),
	OpenWorldHint:   mcp.ToBoolPtr(false),
}

func searchUnitsTool() mcp.Tool {
	return mcp.NewTool("search_units",
		mcp.WithDescription("Semantically search indexed methods and constructors. Results include the matched units plus the units they call, so returned code is understandable without further lookups."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Natural language or keyword query"),
		),
		mcp.WithNumber("k",
			mcp.Description(fmt.Sprintf("Maximum number of primary matches (default %d)", retrieve.DefaultK)),
		),
	)
}

func getUnitTool() mcp.Tool {
	return mcp.NewTool("get_unit",
		mcp.WithDescription("Fetch one indexed unit by id: signature, location, documentation, body, and the ids of units it calls."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("unit_id",
			mcp.Required(),
			mcp.Description("Unit id as returned by search_units"),
		),
	)
}

func getGraphOverviewTool() mcp.Tool {
	return mcp.NewTool("get_graph_overview",
		mcp.WithDescription("Get a summary of the project call graph: node and edge counts plus the most-connected units."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
	)
}

// --- Handler factories ---

func makeSearchUnitsHandler(project string, idx *store.SQLiteIndex, g *graph.Store) mcpserver.ToolHandlerFunc {
	r := retrieve.New(idx, g)
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query := req.GetString("query", "")
		if query == "" {
			return mcp.NewToolResultError("query is required"), nil
		}
		k := req.GetInt("k", retrieve.DefaultK)
		if k <= 0 {
			k = retrieve.DefaultK
		}

		hits, err := r.Retrieve(ctx, project, query, k)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
		}

		return mcp.NewToolResultText(formatHits(query, hits)), nil
	}
}

func makeGetUnitHandler(project string, idx *store.SQLiteIndex, g *graph.Store) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		unitID := req.GetString("unit_id", "")
		if unitID == "" {
			return mcp.NewToolResultError("unit_id is required"), nil
		}

		doc, ok, err := idx.Get(ctx, project, unitID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("get unit failed: %v", err)), nil
		}
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("unit %q not found - call search_units to discover ids", unitID)), nil
		}

		callees, err := g.Neighbors(ctx, project, unitID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("neighbors failed: %v", err)), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "## %s\n\n", doc.Meta.Signature)
		fmt.Fprintf(&sb, "**Kind:** %s  \n**File:** %s  \n**Lines:** %d-%d\n\n",
			doc.Meta.Kind, doc.Meta.FilePath, doc.Meta.StartLine, doc.Meta.EndLine)
		if len(callees) > 0 {
			fmt.Fprintf(&sb, "**Calls:** %s\n\n", strings.Join(callees, ", "))
		}
		fmt.Fprintf(&sb, "```java\n%s\n```\n", doc.Body)

		return mcp.NewToolResultText(sb.String()), nil
	}
}

func makeGraphOverviewHandler(project string, g *graph.Store) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := g.Overview(ctx, project)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("overview failed: %v", err)), nil
		}
		return mcp.NewToolResultText(text), nil
	}
}

// --- Formatting helpers ---

func formatHits(query string, hits []retrieve.Hit) string {
	if len(hits) == 0 {
		return fmt.Sprintf("No results found for query: %q", query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Search results for %q (%d units)\n\n", query, len(hits))

	for i, h := range hits {
		label := "primary match"
		if h.IsDependency {
			label = fmt.Sprintf("called from %s", h.CalledFrom)
		}
		fmt.Fprintf(&sb, "### Result %d: `%s` (%s)\n\n", i+1, h.UnitID, label)
		fmt.Fprintf(&sb, "**Signature:** %s  \n**File:** %s  \n**Lines:** %d-%d\n\n",
			h.Signature, h.FilePath, h.StartLine, h.EndLine)
		fmt.Fprintf(&sb, "```java\n%s\n```\n\n", h.Body)
	}

	return sb.String()
}
