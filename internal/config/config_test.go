package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 1000, cfg.Chunker.Size)
	assert.Equal(t, 200, cfg.Chunker.Overlap)
	assert.Equal(t, 100, cfg.Chunker.ForwardScan)
	assert.Equal(t, BackendFlat, cfg.Index.Backend)
	assert.Equal(t, []string{"txt", "md", "rtf", "html", "htm"}, cfg.Loader.Extensions)
	require.Len(t, cfg.Embedders, 2)
	assert.Equal(t, "bge-m3", cfg.Embedders[0].Model)
	assert.Equal(t, "http://localhost:11434", cfg.Embedders[1].BaseURL)
}

func TestLoadAppliesDefaultsToPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lawrag.yaml")
	data := []byte(`
data_dir: corpus
chunker:
  size: 500
embedders:
  - type: openai
  - type: hashing
index:
  backend: sqlite-vec
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "corpus", cfg.DataDir)
	assert.Equal(t, 500, cfg.Chunker.Size)
	assert.Equal(t, 200, cfg.Chunker.Overlap)
	assert.Equal(t, BackendSQLiteVec, cfg.Index.Backend)
	assert.Equal(t, "OPENAI_API_KEY", cfg.Embedders[0].APIKeyEnv)
	assert.Equal(t, "text-embedding-3-small", cfg.Embedders[0].Model)
	assert.Equal(t, 512, cfg.Embedders[1].Dimension)
	assert.Equal(t, 32, cfg.Embedders[1].BatchSize)
}

func TestLoadKeepsExplicitZeroChunkerSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lawrag.yaml")
	data := []byte(`
chunker:
  overlap: 0
  forward_scan: 0
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 1000, cfg.Chunker.Size)
	assert.Equal(t, 0, cfg.Chunker.Overlap)
	assert.Equal(t, 0, cfg.Chunker.ForwardScan)
	require.Len(t, cfg.Embedders, 2)
	assert.Equal(t, "bge-m3", cfg.Embedders[0].Model)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	want := Default()
	want.DataDir = "elsewhere"

	require.NoError(t, Save(path, want))
	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chunker: [1, 2"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
