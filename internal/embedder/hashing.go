package embedder

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

// HashingEmbedder is a deterministic offline embedder. It hashes lowercased
// words and their character trigrams into a fixed number of signed buckets,
// so inflected forms of the same stem land close together.
type HashingEmbedder struct {
	dim int
}

// NewHashingEmbedder creates a hashing embedder with the given dimension.
func NewHashingEmbedder(dim int) *HashingEmbedder {
	if dim <= 0 {
		dim = 512
	}
	return &HashingEmbedder{dim: dim}
}

// Model returns the model identifier.
func (e *HashingEmbedder) Model() string { return fmt.Sprintf("hashing/%d", e.dim) }

// Dim returns the vector dimension.
func (e *HashingEmbedder) Dim() int { return e.dim }

const (
	wordWeight    = 1.0
	trigramWeight = 0.5
)

// Embed hashes each text. It never fails unless ctx is done.
func (e *HashingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = e.vector(t)
	}
	return out, nil
}

func (e *HashingEmbedder) vector(text string) []float32 {
	v := make([]float32, e.dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, w := range words {
		e.add(v, "w:"+w, wordWeight)
		r := []rune("^" + w + "$")
		for j := 0; j+3 <= len(r); j++ {
			e.add(v, "t:"+string(r[j:j+3]), trigramWeight)
		}
	}
	Normalize(v)
	return v
}

func (e *HashingEmbedder) add(v []float32, feature string, weight float32) {
	h := xxhash.Sum64String(feature)
	idx := int(h % uint64(e.dim))
	if h>>63 == 1 {
		weight = -weight
	}
	v[idx] += weight
}
