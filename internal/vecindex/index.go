// Package vecindex holds exact inner-product vector indexes. Vectors are
// expected to be L2-normalized so scores are cosine similarities.
package vecindex

import (
	"errors"
	"fmt"
	"os"
	"sort"
)

var (
	// ErrDimensionMismatch is returned when a vector's length differs from the index dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrCorrupt is returned when a persisted index cannot be read back.
	ErrCorrupt = errors.New("index artifact is corrupt")
)

// Hit is one search result: the position of the stored vector and its score.
type Hit struct {
	Position int
	Score    float32
}

// Index is an append-only exact vector index. Position i is the i-th vector
// ever added.
type Index interface {
	Dim() int
	Len() int
	// Add appends vectors in order.
	Add(vectors [][]float32) error
	// Search returns up to k hits by descending score, ties by position.
	// k is clamped to Len; k <= 0 returns no hits.
	Search(query []float32, k int) ([]Hit, error)
	// Save persists the index to path atomically, stamped with tag.
	Save(path, tag string) error
	Close() error
}

// Backend names.
const (
	Flat      = "flat"
	SQLiteVec = "sqlite-vec"
)

// New creates an empty index for the named backend.
func New(backend string, dim int) (Index, error) {
	switch backend {
	case Flat, "":
		return NewFlat(dim), nil
	case SQLiteVec:
		return NewSQLiteVec(dim)
	default:
		return nil, fmt.Errorf("unknown index backend %q", backend)
	}
}

// Open loads a persisted index and the tag it was saved with.
func Open(backend, path string) (Index, string, error) {
	switch backend {
	case Flat, "":
		return OpenFlat(path)
	case SQLiteVec:
		return OpenSQLiteVec(path)
	default:
		return nil, "", fmt.Errorf("unknown index backend %q", backend)
	}
}

// FileName is the artifact name for a backend inside an index directory.
func FileName(backend string) string {
	if backend == SQLiteVec {
		return "index.db"
	}
	return "index.gob"
}

func checkDim(dim int, v []float32) error {
	if len(v) != dim {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(v), dim)
	}
	return nil
}

// clampK bounds k to [0, n].
func clampK(k, n int) int {
	if k < 0 {
		return 0
	}
	return min(k, n)
}

// sortHits orders hits by descending score, ties by ascending position.
func sortHits(hits []Hit) {
	sort.Slice(hits, func(a, b int) bool {
		if hits[a].Score != hits[b].Score {
			return hits[a].Score > hits[b].Score
		}
		return hits[a].Position < hits[b].Position
	})
}

// replaceFile moves tmp over path, removing tmp on failure.
func replaceFile(tmp, path string) error {
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}
