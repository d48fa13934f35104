package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lawrag/internal/config"
	"lawrag/internal/rag"
	"lawrag/internal/store"
)

func testConfig(t *testing.T) *config.AppConfig {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default()
	cfg.DataDir = filepath.Join(root, "laws")
	cfg.Index.Dir = filepath.Join(root, "index")
	cfg.Embedders = []config.EmbedderConfig{{Type: "hashing", Model: "hashing", Dimension: 128}}
	require.NoError(t, os.MkdirAll(cfg.DataDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.DataDir, "civil.txt"),
		[]byte("Статья 188. Право собственности есть право владеть, пользоваться и распоряжаться имуществом."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.DataDir, "tax.txt"),
		[]byte("Статья 209. Налоговая декларация представляется ежегодно."), 0o644))
	return cfg
}

func callTool(t *testing.T, h func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) (string, bool) {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	res, err := h(context.Background(), req)
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text, res.IsError
}

func TestClampK(t *testing.T) {
	assert.Equal(t, 3, clampK(0, 3, 20))
	assert.Equal(t, 3, clampK(-1, 3, 20))
	assert.Equal(t, 7, clampK(7, 3, 20))
	assert.Equal(t, 20, clampK(50, 3, 20))
	assert.Equal(t, 50, clampK(50, 3, 0))
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "коротко", preview("коротко", 150))
	long := strings.Repeat("я", 200)
	got := preview(long, 150)
	assert.Equal(t, 153, len([]rune(got)))
	assert.True(t, strings.HasSuffix(got, "..."))
}

func TestPrintResults(t *testing.T) {
	var buf bytes.Buffer
	printResults(&buf, "право", nil)
	assert.Contains(t, buf.String(), "No results")

	buf.Reset()
	printResults(&buf, "право", []rag.SearchResult{{
		Text:  "Статья 1. Право.",
		Meta:  rag.ChunkMeta{Source: "civil.txt", Ordinal: 0, Total: 2, CharCount: 16},
		Score: 0.75,
		Rank:  1,
	}})
	assert.Contains(t, buf.String(), "1. civil.txt (chunk 1/2), score 0.750")
	assert.Contains(t, buf.String(), "Статья 1. Право.")
}

func TestMCPToolsBeforeBuild(t *testing.T) {
	cfg := testConfig(t)
	p := newPipeline(cfg)
	defer p.Close()

	text, isErr := callTool(t, makeSearchHandler(p, cfg), map[string]any{"query": "право"})
	assert.True(t, isErr)
	assert.Contains(t, text, "not built")

	text, isErr = callTool(t, makeStatsHandler(p), nil)
	assert.False(t, isErr)
	assert.Contains(t, text, "No documents indexed")

	text, isErr = callTool(t, makeListSourcesHandler(p), nil)
	assert.True(t, isErr)
	assert.Contains(t, text, "not built")
}

func TestMCPListSources(t *testing.T) {
	cfg := testConfig(t)
	p := newPipeline(cfg)
	defer p.Close()
	require.NoError(t, p.Build(context.Background(), buildOptions(cfg)))

	handler := makeListSourcesHandler(p)
	text, isErr := callTool(t, handler, nil)
	assert.False(t, isErr)
	assert.Contains(t, text, "## Indexed documents (2)")
	assert.Contains(t, text, "- **civil.txt** (1 chunks,")
	assert.Contains(t, text, "- **tax.txt** (1 chunks,")

	text, isErr = callTool(t, handler, map[string]any{"filter": "CIVIL"})
	assert.False(t, isErr)
	assert.Contains(t, text, "(1, filter: civil)")
	assert.Contains(t, text, "civil.txt")
	assert.NotContains(t, text, "tax.txt")
}

func TestPrintSources(t *testing.T) {
	var buf bytes.Buffer
	printSources(&buf, []store.SourceSummary{{Source: "civil.txt", Chunks: 4, Characters: 3200}})
	assert.Contains(t, buf.String(), "Document")
	assert.Regexp(t, `civil\.txt\s+4\s+3200`, buf.String())
}

func TestMCPSearchAndStats(t *testing.T) {
	cfg := testConfig(t)
	p := newPipeline(cfg)
	defer p.Close()
	require.NoError(t, p.Build(context.Background(), buildOptions(cfg)))

	handler := makeSearchHandler(p, cfg)
	text, isErr := callTool(t, handler, map[string]any{"query": "право собственности", "k": float64(1)})
	assert.False(t, isErr)
	assert.Contains(t, text, "### Result 1: `civil.txt`")
	assert.NotContains(t, text, "Result 2")

	_, isErr = callTool(t, handler, map[string]any{"query": "   "})
	assert.True(t, isErr)

	text, isErr = callTool(t, makeStatsHandler(p), nil)
	assert.False(t, isErr)
	assert.Contains(t, text, "civil.txt")
	assert.Contains(t, text, "hashing/128")

	assert.NotNil(t, newMCPServer(p, cfg))
}

func TestReadyBuildsWhenNothingPersisted(t *testing.T) {
	cfg := testConfig(t)
	p := newPipeline(cfg)
	defer p.Close()

	c := &cobra.Command{}
	c.SetContext(context.Background())
	require.NoError(t, ready(c, p, cfg))
	assert.Equal(t, rag.Ready, p.State())
	assert.True(t, p.HasArtifacts())

	again := newPipeline(cfg)
	defer again.Close()
	require.NoError(t, ready(c, again, cfg))
	assert.Equal(t, p.Stats().BuildID, again.Stats().BuildID)
}
