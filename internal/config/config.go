package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// EmbedderConfig describes one embedding backend candidate. Candidates are
// tried in order; the first one that answers a probe is used.
type EmbedderConfig struct {
	Type        string `yaml:"type"`
	Model       string `yaml:"model"`
	BaseURL     string `yaml:"base_url,omitempty"`
	APIKeyEnv   string `yaml:"api_key_env,omitempty"`
	TimeoutSecs int    `yaml:"timeout_secs,omitempty"`
	BatchSize   int    `yaml:"batch_size,omitempty"`
	Dimension   int    `yaml:"dimension,omitempty"`
}

// ChunkerConfig configures how cleaned documents are split into chunks.
type ChunkerConfig struct {
	Size        int `yaml:"size"`
	Overlap     int `yaml:"overlap"`
	BackScan    int `yaml:"back_scan,omitempty"`
	ForwardScan int `yaml:"forward_scan"`
}

// LoaderConfig controls which files under the data directory are read.
type LoaderConfig struct {
	Extensions  []string `yaml:"extensions"`
	Exclude     []string `yaml:"exclude,omitempty"`
	MaxFileSize int64    `yaml:"max_file_size"`
}

// IndexConfig selects the vector index backend.
type IndexConfig struct {
	Backend string `yaml:"backend"`
	Dir     string `yaml:"dir"`
}

// SearchConfig holds query defaults applied by callers.
type SearchConfig struct {
	DefaultK int `yaml:"default_k"`
	MaxK     int `yaml:"max_k"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	DataDir   string           `yaml:"data_dir"`
	Index     IndexConfig      `yaml:"index"`
	Loader    LoaderConfig     `yaml:"loader"`
	Chunker   ChunkerConfig    `yaml:"chunker"`
	Embedders []EmbedderConfig `yaml:"embedders"`
	Search    SearchConfig     `yaml:"search"`
}

const (
	BackendFlat      = "flat"
	BackendSQLiteVec = "sqlite-vec"
)

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	// Keys absent from the file keep their defaults; an explicit zero stays zero.
	cfg := Default()
	cfg.Embedders = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if cfg.Embedders == nil {
		cfg.Embedders = Default().Embedders
	}
	applyDefaults(cfg)
	return cfg, nil
}

// LoadDefault tries ./lawrag.yaml first, then ~/.config/lawrag/config.yaml.
// If neither exists, it writes defaults to the user path and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "lawrag.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := Default()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "lawrag", "config.yaml"), nil
}

// Default returns the built-in configuration: Ollama with bge-m3, falling
// back to the lighter paraphrase-multilingual model.
func Default() *AppConfig {
	cfg := &AppConfig{
		Chunker: ChunkerConfig{Size: 1000, Overlap: 200, ForwardScan: 100},
		Embedders: []EmbedderConfig{
			{Type: "ollama", Model: "bge-m3"},
			{Type: "ollama", Model: "paraphrase-multilingual"},
		},
	}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *AppConfig) {
	if cfg.DataDir == "" {
		cfg.DataDir = filepath.Join("data", "laws")
	}
	if cfg.Index.Dir == "" {
		cfg.Index.Dir = ".lawrag"
	}
	if cfg.Index.Backend == "" {
		cfg.Index.Backend = BackendFlat
	}
	if len(cfg.Loader.Extensions) == 0 {
		cfg.Loader.Extensions = []string{"txt", "md", "rtf", "html", "htm"}
	}
	if cfg.Loader.MaxFileSize == 0 {
		cfg.Loader.MaxFileSize = 16 << 20
	}
	if cfg.Chunker.Size == 0 {
		cfg.Chunker.Size = 1000
	}
	if cfg.Search.DefaultK == 0 {
		cfg.Search.DefaultK = 3
	}
	if cfg.Search.MaxK == 0 {
		cfg.Search.MaxK = 20
	}
	for i := range cfg.Embedders {
		e := &cfg.Embedders[i]
		switch e.Type {
		case "ollama":
			if e.BaseURL == "" {
				e.BaseURL = "http://localhost:11434"
			}
		case "openai":
			if e.BaseURL == "" {
				e.BaseURL = "https://api.openai.com/v1"
			}
			if e.APIKeyEnv == "" {
				e.APIKeyEnv = "OPENAI_API_KEY"
			}
			if e.Model == "" {
				e.Model = "text-embedding-3-small"
			}
		case "hashing":
			if e.Dimension == 0 {
				e.Dimension = 512
			}
		}
		if e.TimeoutSecs == 0 {
			e.TimeoutSecs = 120
		}
		if e.BatchSize == 0 {
			e.BatchSize = 32
		}
	}
}
