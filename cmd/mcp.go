package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"lawrag/internal/config"
	"lawrag/internal/logger"
	"lawrag/internal/rag"
	"lawrag/internal/store"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start an MCP server exposing law search tools",
	Args:  cobra.NoArgs,
	RunE:  runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg := appCfg
	p := newPipeline(cfg)
	defer p.Close()

	// Tools still answer while the index is unavailable; search reports it.
	if err := ready(cmd, p, cfg); err != nil {
		logger.Error("index not ready: %v", err)
	}

	return mcpserver.ServeStdio(newMCPServer(p, cfg))
}

func newMCPServer(p *rag.Pipeline, cfg *config.AppConfig) *mcpserver.MCPServer {
	s := mcpserver.NewMCPServer("lawrag", "1.0.0", mcpserver.WithToolCapabilities(false))
	s.AddTool(searchLawTool(cfg), makeSearchHandler(p, cfg))
	s.AddTool(indexStatsTool(), makeStatsHandler(p))
	s.AddTool(listSourcesTool(), makeListSourcesHandler(p))
	return s
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

// --- Tool schema builders ---

var readOnlyAnnotation = mcp.ToolAnnotation{
	ReadOnlyHint:    mcp.ToBoolPtr(true),
	DestructiveHint: mcp.ToBoolPtr(false),
	IdempotentHint:  mcp.ToBoolPtr(true),
	OpenWorldHint:   mcp.ToBoolPtr(false),
}

func searchLawTool(cfg *config.AppConfig) mcp.Tool {
	return mcp.NewTool("search_law",
		mcp.WithDescription("Search the indexed laws of the Republic of Kazakhstan by meaning. Returns the most relevant passages with their source document and similarity score."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Question or phrase in Russian or Kazakh, e.g. 'право собственности'"),
		),
		mcp.WithNumber("k",
			mcp.Description(fmt.Sprintf("Number of passages to return (default %d, at most %d)", cfg.Search.DefaultK, cfg.Search.MaxK)),
		),
	)
}

func indexStatsTool() mcp.Tool {
	return mcp.NewTool("index_stats",
		mcp.WithDescription("Describe the indexed corpus: documents, chunk counts, embedding model and index state."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
	)
}

func listSourcesTool() mcp.Tool {
	return mcp.NewTool("list_sources",
		mcp.WithDescription("List the indexed law documents with their chunk and character counts."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("filter",
			mcp.Description("Optional case-insensitive substring of the document path, e.g. 'civil'"),
		),
	)
}

// --- Handler factories ---

func makeSearchHandler(p *rag.Pipeline, cfg *config.AppConfig) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query := req.GetString("query", "")
		if strings.TrimSpace(query) == "" {
			return mcp.NewToolResultError("query is required"), nil
		}
		k := clampK(req.GetInt("k", cfg.Search.DefaultK), cfg.Search.DefaultK, cfg.Search.MaxK)

		results, err := p.Search(ctx, query, k)
		if errors.Is(err, rag.ErrNotReady) {
			return mcp.NewToolResultError("the law index is not built yet; run 'lawrag build' first"), nil
		}
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
		}
		return mcp.NewToolResultText(formatSearchResults(query, results)), nil
	}
}

func makeStatsHandler(p *rag.Pipeline) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		st := p.Stats()
		if !st.Indexed {
			return mcp.NewToolResultText(st.String()), nil
		}
		return mcp.NewToolResultText("## Index\n\n```\n" + st.String() + "```\n"), nil
	}
}

func makeListSourcesHandler(p *rag.Pipeline) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		filter := strings.ToLower(req.GetString("filter", ""))

		sources, err := p.Sources()
		if errors.Is(err, rag.ErrNotReady) {
			return mcp.NewToolResultError("the law index is not built yet; run 'lawrag build' first"), nil
		}
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list sources failed: %v", err)), nil
		}

		var filtered []store.SourceSummary
		for _, src := range sources {
			if filter == "" || strings.Contains(strings.ToLower(src.Source), filter) {
				filtered = append(filtered, src)
			}
		}

		var sb strings.Builder
		if filter != "" {
			fmt.Fprintf(&sb, "## Indexed documents (%d, filter: %s)\n\n", len(filtered), filter)
		} else {
			fmt.Fprintf(&sb, "## Indexed documents (%d)\n\n", len(filtered))
		}
		for _, src := range filtered {
			fmt.Fprintf(&sb, "- **%s** (%d chunks, %d characters)\n", src.Source, src.Chunks, src.Characters)
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

// --- Formatting helpers ---

func formatSearchResults(query string, results []rag.SearchResult) string {
	if len(results) == 0 {
		return fmt.Sprintf("No results found for query: %q", query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Search results for %q (%d passages)\n\n", query, len(results))
	for _, r := range results {
		fmt.Fprintf(&sb, "### Result %d: `%s`\n\n", r.Rank, r.Meta.Source)
		fmt.Fprintf(&sb, "**Chunk:** %d of %d  \n**Score:** %.3f\n\n", r.Meta.Ordinal+1, r.Meta.Total, r.Score)
		fmt.Fprintf(&sb, "> %s\n\n", r.Text)
	}
	return sb.String()
}
