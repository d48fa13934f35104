package embedder

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// ErrUnavailable is returned when no embedding backend could be brought up.
var ErrUnavailable = errors.New("embedder unavailable")

// Embedder turns texts into fixed-dimension vectors. The returned slice has
// the same length and order as the input.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
}

// EmbedOne embeds a single text and returns the embedding vector.
func EmbedOne(ctx context.Context, e Embedder, text string) ([]float32, error) {
	results, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(results) != 1 {
		return nil, fmt.Errorf("expected 1 embedding, got %d", len(results))
	}
	return results[0], nil
}

// EmbedBatched embeds texts in sub-batches of size and calls onProgress after
// each one. All vectors must share one dimension.
func EmbedBatched(ctx context.Context, e Embedder, texts []string, size int, onProgress func(done, total int)) ([][]float32, error) {
	if size <= 0 {
		size = len(texts)
	}
	all := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += size {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(i+size, len(texts))
		embs, err := e.Embed(ctx, texts[i:end])
		if err != nil {
			return nil, err
		}
		if len(embs) != end-i {
			return nil, fmt.Errorf("expected %d embeddings, got %d", end-i, len(embs))
		}
		for _, v := range embs {
			if len(all) > 0 && len(v) != len(all[0]) {
				return nil, fmt.Errorf("embedding dimension changed from %d to %d", len(all[0]), len(v))
			}
			all = append(all, v)
		}
		if onProgress != nil {
			onProgress(end, len(texts))
		}
	}
	return all, nil
}

// Normalize scales v to unit length in place. Zero vectors are left as is.
func Normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
}
