package cmd

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"lawrag/internal/config"
	"lawrag/internal/embedder"
	"lawrag/internal/loader"
	"lawrag/internal/logger"
	"lawrag/internal/rag"
)

var (
	flagConfig   string
	flagIndexDir string
	flagDataDir  string
	flagOllama   string
	flagBackend  string
	flagDebug    bool

	appCfg *config.AppConfig
)

var rootCmd = &cobra.Command{
	Use:          "lawrag",
	Short:        "Semantic search over the laws of the Republic of Kazakhstan",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger.Init(flagDebug)
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("could not read .env: %v", err)
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		applyFlags(cmd, cfg)
		appCfg = cfg
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default ./lawrag.yaml, then ~/.config/lawrag/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagIndexDir, "index-dir", "", "directory holding the persisted index")
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "directory with law documents")
	rootCmd.PersistentFlags().StringVar(&flagOllama, "ollama", "", "ollama base URL for every ollama embedder")
	rootCmd.PersistentFlags().StringVar(&flagBackend, "backend", "", "vector index backend: flat or sqlite-vec")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")
}

func loadConfig() (*config.AppConfig, error) {
	if flagConfig != "" {
		return config.Load(flagConfig)
	}
	cfg, path, err := config.LoadDefault()
	if err != nil {
		logger.Warn("using built-in defaults: %v", err)
		return config.Default(), nil
	}
	logger.Debug("config loaded from %s", path)
	return cfg, nil
}

// applyFlags lets explicitly set flags override the config file.
func applyFlags(cmd *cobra.Command, cfg *config.AppConfig) {
	flags := cmd.Flags()
	if flags.Changed("index-dir") {
		cfg.Index.Dir = flagIndexDir
	}
	if flags.Changed("data-dir") {
		cfg.DataDir = flagDataDir
	}
	if flags.Changed("backend") {
		cfg.Index.Backend = flagBackend
	}
	if flags.Changed("ollama") {
		for i := range cfg.Embedders {
			if cfg.Embedders[i].Type == "ollama" {
				cfg.Embedders[i].BaseURL = flagOllama
			}
		}
	}
}

func newPipeline(cfg *config.AppConfig) *rag.Pipeline {
	resolver := embedder.NewResolver(embedder.Candidates(cfg.Embedders)...)
	return rag.New(rag.Config{
		IndexDir: cfg.Index.Dir,
		Backend:  cfg.Index.Backend,
		Loader: loader.Options{
			Extensions:  cfg.Loader.Extensions,
			Exclude:     cfg.Loader.Exclude,
			MaxFileSize: cfg.Loader.MaxFileSize,
		},
		BackScan:    cfg.Chunker.BackScan,
		ForwardScan: cfg.Chunker.ForwardScan,
		EmbedBatch:  batchSize(cfg),
	}, resolver)
}

func batchSize(cfg *config.AppConfig) int {
	for _, e := range cfg.Embedders {
		if e.BatchSize > 0 {
			return e.BatchSize
		}
	}
	return 32
}

func buildOptions(cfg *config.AppConfig) rag.BuildOptions {
	opts := rag.DefaultBuildOptions(cfg.DataDir)
	opts.ChunkSize = cfg.Chunker.Size
	opts.Overlap = cfg.Chunker.Overlap
	return opts
}

// clampK keeps k inside [1, max], treating k <= 0 as def.
func clampK(k, def, max int) int {
	if k <= 0 {
		k = def
	}
	if max > 0 && k > max {
		k = max
	}
	return k
}

// ready loads the persisted index, building it first when nothing usable
// is on disk.
func ready(cmd *cobra.Command, p *rag.Pipeline, cfg *config.AppConfig) error {
	err := p.Load(cmd.Context())
	if err == nil {
		return nil
	}
	if !errors.Is(err, rag.ErrNoArtifacts) {
		logger.Warn("persisted index unusable (%v), rebuilding", err)
	} else {
		logger.Info("no index in %s yet, building from %s", cfg.Index.Dir, cfg.DataDir)
	}
	opts := buildOptions(cfg)
	opts.ForceRebuild = true
	return p.Build(cmd.Context(), opts)
}
