package rag

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"lawrag/internal/chunker"
	"lawrag/internal/loader"
)

var (
	// ErrNotReady is returned by Search when no index was ever built or loaded.
	ErrNotReady = errors.New("index not ready: build or load it first")
	// ErrBuildInProgress is returned when Build is called while another build runs.
	ErrBuildInProgress = errors.New("a build is already in progress")
	// ErrNoArtifacts is returned by Load when nothing has been persisted yet.
	ErrNoArtifacts = errors.New("no persisted index")
	// ErrModelChanged is returned when persisted vectors came from another model.
	ErrModelChanged = errors.New("persisted index was built with a different embedding model")
)

// State is the lifecycle stage of a Pipeline.
type State int

const (
	Uninitialized State = iota
	Loading
	Building
	Ready
	Failed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Loading:
		return "loading"
	case Building:
		return "building"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// DefaultK is the number of results Search returns when k <= 0.
const DefaultK = 3

// Config holds the pipeline configuration.
type Config struct {
	// IndexDir holds the two persisted artifacts.
	IndexDir string
	// Backend is the vector index backend name.
	Backend string
	Loader  loader.Options
	// BackScan and ForwardScan tune the chunk boundary search. A zero
	// ForwardScan disables the forward search for a sentence end.
	BackScan    int
	ForwardScan int
	// EmbedBatch is the number of chunks sent to the embedder at once.
	EmbedBatch int
	// Workers is the number of parallel chunking workers.
	Workers int
}

// ProgressFunc is called as a build advances through its stages.
type ProgressFunc func(stage string, done, total int)

// BuildOptions are the per-call build parameters.
type BuildOptions struct {
	DataDir      string
	ChunkSize    int
	Overlap      int
	ForceRebuild bool
	OnProgress   ProgressFunc
}

// DefaultBuildOptions returns chunk size 1000 and overlap 200 for dataDir.
func DefaultBuildOptions(dataDir string) BuildOptions {
	return BuildOptions{DataDir: dataDir, ChunkSize: 1000, Overlap: 200}
}

func (o BuildOptions) chunkOptions(cfg Config) chunker.Options {
	return chunker.Options{
		Size:        o.ChunkSize,
		Overlap:     o.Overlap,
		BackScan:    cfg.BackScan,
		ForwardScan: cfg.ForwardScan,
	}
}

// ChunkMeta describes where a chunk came from.
type ChunkMeta struct {
	Source    string `json:"source"`
	Ordinal   int    `json:"chunk_id"`
	Total     int    `json:"total_chunks"`
	CharCount int    `json:"char_count"`
}

// SearchResult is one ranked passage. Rank starts at 1.
type SearchResult struct {
	Text  string    `json:"text"`
	Meta  ChunkMeta `json:"metadata"`
	Score float32   `json:"score"`
	Rank  int       `json:"rank"`
}

// Stats summarizes the live corpus.
type Stats struct {
	State            string    `json:"state"`
	Indexed          bool      `json:"indexed"`
	TotalChunks      int       `json:"total_chunks"`
	TotalCharacters  int       `json:"total_characters"`
	AverageChunkSize float64   `json:"average_chunk_size"`
	Sources          []string  `json:"sources"`
	Model            string    `json:"embedding_model"`
	IndexSize        int       `json:"index_size"`
	Backend          string    `json:"index_backend,omitempty"`
	BuildID          string    `json:"build_id,omitempty"`
	BuiltAt          time.Time `json:"built_at,omitempty"`
}

// String renders the stats for humans.
func (s Stats) String() string {
	if !s.Indexed {
		return fmt.Sprintf("No documents indexed (state: %s)", s.State)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "State:        %s\n", s.State)
	fmt.Fprintf(&sb, "Chunks:       %d\n", s.TotalChunks)
	fmt.Fprintf(&sb, "Characters:   %d\n", s.TotalCharacters)
	fmt.Fprintf(&sb, "Average size: %.1f\n", s.AverageChunkSize)
	fmt.Fprintf(&sb, "Model:        %s\n", s.Model)
	fmt.Fprintf(&sb, "Index:        %s, %d vectors\n", s.Backend, s.IndexSize)
	fmt.Fprintf(&sb, "Built:        %s (%s)\n", s.BuiltAt.Format(time.RFC3339), s.BuildID)
	fmt.Fprintf(&sb, "Sources (%d):\n", len(s.Sources))
	for _, src := range s.Sources {
		fmt.Fprintf(&sb, "  - %s\n", src)
	}
	return sb.String()
}
