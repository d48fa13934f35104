package vecindex

import (
	"bufio"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
)

// FlatIndex keeps all vectors in one contiguous slice and scans it.
type FlatIndex struct {
	dim  int
	data []float32
}

// NewFlat creates an empty flat index.
func NewFlat(dim int) *FlatIndex {
	return &FlatIndex{dim: dim}
}

func (f *FlatIndex) Dim() int { return f.dim }

func (f *FlatIndex) Len() int {
	if f.dim == 0 {
		return 0
	}
	return len(f.data) / f.dim
}

func (f *FlatIndex) Add(vectors [][]float32) error {
	for _, v := range vectors {
		if err := checkDim(f.dim, v); err != nil {
			return err
		}
	}
	for _, v := range vectors {
		f.data = append(f.data, v...)
	}
	return nil
}

func (f *FlatIndex) Search(query []float32, k int) ([]Hit, error) {
	if err := checkDim(f.dim, query); err != nil {
		return nil, err
	}
	n := f.Len()
	k = clampK(k, n)
	if k == 0 {
		return []Hit{}, nil
	}

	hits := make([]Hit, n)
	for i := 0; i < n; i++ {
		row := f.data[i*f.dim : (i+1)*f.dim]
		var dot float32
		for j, x := range row {
			dot += x * query[j]
		}
		hits[i] = Hit{Position: i, Score: dot}
	}
	sortHits(hits)
	return hits[:k], nil
}

func (f *FlatIndex) Close() error { return nil }

// flatFile is the gob payload of a saved flat index.
type flatFile struct {
	Version int
	Tag     string
	Dim     int
	Count   int
	Data    []float32
}

const flatVersion = 1

// Save writes the index to path.tmp and renames it over path.
func (f *FlatIndex) Save(path, tag string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	tmp := path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}

	w := bufio.NewWriter(file)
	err = gob.NewEncoder(w).Encode(flatFile{
		Version: flatVersion,
		Tag:     tag,
		Dim:     f.dim,
		Count:   f.Len(),
		Data:    f.data,
	})
	if err == nil {
		err = w.Flush()
	}
	if err == nil {
		err = file.Sync()
	}
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write index: %w", err)
	}
	return replaceFile(tmp, path)
}

// OpenFlat reads an index written by Save.
func OpenFlat(path string) (*FlatIndex, string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer file.Close()

	var ff flatFile
	if err := gob.NewDecoder(bufio.NewReader(file)).Decode(&ff); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if ff.Version != flatVersion || ff.Dim <= 0 || len(ff.Data) != ff.Count*ff.Dim {
		return nil, "", fmt.Errorf("%w: version %d, dim %d, %d values for %d vectors",
			ErrCorrupt, ff.Version, ff.Dim, len(ff.Data), ff.Count)
	}
	return &FlatIndex{dim: ff.Dim, data: ff.Data}, ff.Tag, nil
}
