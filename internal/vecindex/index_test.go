package vecindex

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unit(v ...float32) []float32 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	n := float32(math.Sqrt(s))
	for i := range v {
		v[i] /= n
	}
	return v
}

func corpus() [][]float32 {
	return [][]float32{
		unit(1, 0, 0),
		unit(0, 1, 0),
		unit(1, 1, 0),
		unit(0, 0, 1),
		unit(1, 1, 1),
	}
}

func backends() []string { return []string{Flat, SQLiteVec} }

func newFilled(t *testing.T, backend string) Index {
	t.Helper()
	idx, err := New(backend, 3)
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })

	vecs := corpus()
	require.NoError(t, idx.Add(vecs[:2]))
	require.NoError(t, idx.Add(vecs[2:]))
	require.Equal(t, 5, idx.Len())
	return idx
}

func positions(hits []Hit) []int {
	out := make([]int, len(hits))
	for i, h := range hits {
		out[i] = h.Position
	}
	return out
}

func TestSearchOrdering(t *testing.T) {
	for _, backend := range backends() {
		t.Run(backend, func(t *testing.T) {
			idx := newFilled(t, backend)

			hits, err := idx.Search(unit(1, 0.1, 0), 3)
			require.NoError(t, err)
			require.Len(t, hits, 3)
			assert.Equal(t, []int{0, 2, 4}, positions(hits))
			for i := 1; i < len(hits); i++ {
				assert.GreaterOrEqual(t, hits[i-1].Score, hits[i].Score)
			}
			assert.InDelta(t, 0.995, hits[0].Score, 1e-3)
		})
	}
}

func TestSearchClampsK(t *testing.T) {
	for _, backend := range backends() {
		t.Run(backend, func(t *testing.T) {
			idx := newFilled(t, backend)

			hits, err := idx.Search(unit(0, 0, 1), 50)
			require.NoError(t, err)
			assert.Len(t, hits, 5)

			hits, err = idx.Search(unit(0, 0, 1), 0)
			require.NoError(t, err)
			assert.Empty(t, hits)

			hits, err = idx.Search(unit(0, 0, 1), -1)
			require.NoError(t, err)
			assert.Empty(t, hits)
		})
	}
}

func TestSearchEmptyIndex(t *testing.T) {
	for _, backend := range backends() {
		t.Run(backend, func(t *testing.T) {
			idx, err := New(backend, 3)
			require.NoError(t, err)
			defer idx.Close()

			hits, err := idx.Search(unit(1, 0, 0), 3)
			require.NoError(t, err)
			assert.Empty(t, hits)
		})
	}
}

func TestDimensionMismatch(t *testing.T) {
	for _, backend := range backends() {
		t.Run(backend, func(t *testing.T) {
			idx := newFilled(t, backend)

			err := idx.Add([][]float32{unit(1, 0, 0), {1, 0}})
			assert.ErrorIs(t, err, ErrDimensionMismatch)
			assert.Equal(t, 5, idx.Len(), "a rejected batch adds nothing")

			_, err = idx.Search([]float32{1}, 1)
			assert.ErrorIs(t, err, ErrDimensionMismatch)
		})
	}
}

func TestFlatTiesByPosition(t *testing.T) {
	idx := NewFlat(2)
	require.NoError(t, idx.Add([][]float32{{0, 1}, {1, 0}, {0, 1}, {1, 0}}))

	hits, err := idx.Search([]float32{1, 0}, 4)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3, 0, 2}, positions(hits))
}

func TestSaveOpenRoundTrip(t *testing.T) {
	for _, backend := range backends() {
		t.Run(backend, func(t *testing.T) {
			idx := newFilled(t, backend)
			path := filepath.Join(t.TempDir(), "nested", FileName(backend))
			require.NoError(t, idx.Save(path, "build-1"))

			_, err := os.Stat(path + ".tmp")
			assert.True(t, os.IsNotExist(err), "temp file must not survive")

			loaded, tag, err := Open(backend, path)
			require.NoError(t, err)
			defer loaded.Close()
			assert.Equal(t, "build-1", tag)
			assert.Equal(t, 3, loaded.Dim())
			assert.Equal(t, 5, loaded.Len())

			q := unit(0.3, 0.2, 0.9)
			want, err := idx.Search(q, 5)
			require.NoError(t, err)
			got, err := loaded.Search(q, 5)
			require.NoError(t, err)
			require.Equal(t, positions(want), positions(got))
			for i := range want {
				assert.InDelta(t, want[i].Score, got[i].Score, 1e-6)
			}

			// Positional alignment: each stored vector finds itself first.
			for i, v := range corpus() {
				hits, err := loaded.Search(v, 1)
				require.NoError(t, err)
				assert.Equal(t, i, hits[0].Position)
			}

			// Loaded indexes keep growing from the same positions.
			require.NoError(t, loaded.Add([][]float32{unit(-1, 0, 0)}))
			hits, err := loaded.Search(unit(-1, 0, 0), 1)
			require.NoError(t, err)
			assert.Equal(t, 5, hits[0].Position)
		})
	}
}

func TestSaveOverwrites(t *testing.T) {
	for _, backend := range backends() {
		t.Run(backend, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), FileName(backend))
			first := newFilled(t, backend)
			require.NoError(t, first.Save(path, "a"))

			second, err := New(backend, 3)
			require.NoError(t, err)
			defer second.Close()
			require.NoError(t, second.Add([][]float32{unit(0, 1, 0)}))
			require.NoError(t, second.Save(path, "b"))

			loaded, tag, err := Open(backend, path)
			require.NoError(t, err)
			defer loaded.Close()
			assert.Equal(t, "b", tag)
			assert.Equal(t, 1, loaded.Len())
		})
	}
}

func TestOpenMissing(t *testing.T) {
	for _, backend := range backends() {
		_, _, err := Open(backend, filepath.Join(t.TempDir(), "absent"))
		assert.ErrorIs(t, err, os.ErrNotExist, backend)
	}
}

func TestOpenFlatCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.gob")
	require.NoError(t, os.WriteFile(path, []byte("half-written"), 0o644))

	_, _, err := OpenFlat(path)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestUnknownBackend(t *testing.T) {
	_, err := New("faiss", 3)
	assert.Error(t, err)
	_, _, err = Open("faiss", "x")
	assert.Error(t, err)
}
