package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"lawrag/internal/rag"
)

var (
	flagChunkSize int
	flagOverlap   int
	flagForce     bool
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Load, chunk and embed the law documents and persist the index",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := appCfg
		p := newPipeline(cfg)
		defer p.Close()

		opts := buildOptions(cfg)
		if cmd.Flags().Changed("chunk-size") {
			opts.ChunkSize = flagChunkSize
		}
		if cmd.Flags().Changed("overlap") {
			opts.Overlap = flagOverlap
		}
		opts.ForceRebuild = flagForce
		opts.OnProgress = progressPrinter(cmd)

		fmt.Fprintf(cmd.OutOrStdout(), "Indexing %s...\n", cfg.DataDir)
		start := time.Now()
		err := p.Build(cmd.Context(), opts)
		elapsed := time.Since(start)
		if err != nil {
			return err
		}

		st := p.Stats()
		fmt.Fprintf(cmd.OutOrStdout(), "\nDone in %s\n", elapsed.Round(time.Millisecond))
		fmt.Fprintf(cmd.OutOrStdout(), "  Sources: %d\n", len(st.Sources))
		fmt.Fprintf(cmd.OutOrStdout(), "  Chunks:  %d (avg %.0f chars)\n", st.TotalChunks, st.AverageChunkSize)
		fmt.Fprintf(cmd.OutOrStdout(), "  Model:   %s\n", st.Model)
		return nil
	},
}

// progressPrinter reports each stage at most once per ten percent.
func progressPrinter(cmd *cobra.Command) rag.ProgressFunc {
	last := map[string]int{}
	return func(stage string, done, total int) {
		if total == 0 {
			return
		}
		pct := done * 100 / total
		if prev, ok := last[stage]; ok && pct/10 == prev/10 && done != total {
			return
		}
		last[stage] = pct
		fmt.Fprintf(cmd.ErrOrStderr(), "  %-9s %d/%d\n", stage, done, total)
	}
}

func init() {
	buildCmd.Flags().IntVar(&flagChunkSize, "chunk-size", 1000, "target chunk size in characters")
	buildCmd.Flags().IntVar(&flagOverlap, "overlap", 200, "overlap between consecutive chunks")
	buildCmd.Flags().BoolVar(&flagForce, "force", false, "rebuild even if a persisted index exists")
	rootCmd.AddCommand(buildCmd)
}
