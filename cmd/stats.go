package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"lawrag/internal/rag"
	"lawrag/internal/store"
)

var (
	flagStatsJSON bool
	flagSources   bool
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show what the persisted index contains",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p := newPipeline(appCfg)
		defer p.Close()

		if err := p.Load(cmd.Context()); err != nil && !errors.Is(err, rag.ErrNoArtifacts) {
			return err
		}

		st := p.Stats()
		var sources []store.SourceSummary
		if flagSources && st.Indexed {
			var err error
			if sources, err = p.Sources(); err != nil {
				return err
			}
		}

		if flagStatsJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if flagSources {
				return enc.Encode(struct {
					rag.Stats
					Documents []store.SourceSummary `json:"documents"`
				}{st, sources})
			}
			return enc.Encode(st)
		}
		fmt.Fprint(cmd.OutOrStdout(), st.String())
		if !st.Indexed {
			fmt.Fprintln(cmd.OutOrStdout())
		}
		if flagSources && st.Indexed {
			printSources(cmd.OutOrStdout(), sources)
		}
		return nil
	},
}

func printSources(w io.Writer, sources []store.SourceSummary) {
	fmt.Fprintf(w, "\n%-40s %8s %12s\n", "Document", "Chunks", "Characters")
	for _, s := range sources {
		fmt.Fprintf(w, "%-40s %8d %12d\n", s.Source, s.Chunks, s.Characters)
	}
}

func init() {
	statsCmd.Flags().BoolVar(&flagStatsJSON, "json", false, "print stats as JSON")
	statsCmd.Flags().BoolVar(&flagSources, "sources", false, "also list per-document chunk and character counts")
	rootCmd.AddCommand(statsCmd)
}
