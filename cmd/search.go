package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"lawrag/internal/rag"
)

const previewLen = 150

var (
	flagK    int
	flagJSON bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Find the passages most relevant to a question",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := appCfg
		p := newPipeline(cfg)
		defer p.Close()

		if err := ready(cmd, p, cfg); err != nil {
			return err
		}

		query := strings.Join(args, " ")
		k := clampK(flagK, cfg.Search.DefaultK, cfg.Search.MaxK)
		results, err := p.Search(cmd.Context(), query, k)
		if err != nil {
			return err
		}

		if flagJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(results)
		}
		printResults(cmd.OutOrStdout(), query, results)
		return nil
	},
}

func printResults(w io.Writer, query string, results []rag.SearchResult) {
	if len(results) == 0 {
		fmt.Fprintf(w, "No results for %q\n", query)
		return
	}
	fmt.Fprintf(w, "Results for %q:\n\n", query)
	for _, r := range results {
		fmt.Fprintf(w, "%d. %s (chunk %d/%d), score %.3f\n", r.Rank, r.Meta.Source, r.Meta.Ordinal+1, r.Meta.Total, r.Score)
		fmt.Fprintf(w, "   %s\n\n", preview(r.Text, previewLen))
	}
}

func preview(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}

func init() {
	searchCmd.Flags().IntVarP(&flagK, "k", "k", 0, "number of results (default from config)")
	searchCmd.Flags().BoolVar(&flagJSON, "json", false, "print results as JSON")
	rootCmd.AddCommand(searchCmd)
}
