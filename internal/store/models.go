package store

import "time"

// Chunk is one retrievable excerpt with its metadata. Position is its slot
// in the vector index.
type Chunk struct {
	Position  int
	Source    string
	Ordinal   int
	Total     int
	CharCount int
	Text      string
}

// Meta describes the build that produced a chunk store. The vector index
// artifact carries the same BuildID.
type Meta struct {
	BuildID   string
	Model     string
	Dimension int
	Count     int
	Backend   string
	ChunkSize int
	Overlap   int
	BuiltAt   time.Time
}

// SourceSummary is a per-document rollup of stored chunks.
type SourceSummary struct {
	Source     string `json:"source"`
	Chunks     int    `json:"chunks"`
	Characters int    `json:"characters"`
}
