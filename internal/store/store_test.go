package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleChunks() []Chunk {
	return []Chunk{
		{Position: 0, Source: "civil.txt", Ordinal: 0, Total: 2, CharCount: 12, Text: "Статья 1. А."},
		{Position: 1, Source: "civil.txt", Ordinal: 1, Total: 2, CharCount: 12, Text: "Статья 2. Б."},
		{Position: 2, Source: "labor/code.md", Ordinal: 0, Total: 1, CharCount: 5, Text: "Труд."},
	}
}

func sampleMeta() Meta {
	return Meta{
		BuildID:   "b-1",
		Model:     "hashing/64",
		Dimension: 64,
		Count:     3,
		Backend:   "flat",
		ChunkSize: 1000,
		Overlap:   200,
		BuiltAt:   time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idx", "chunks.db")
	require.NoError(t, Write(path, sampleChunks(), sampleMeta()))

	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	chunks, meta, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, sampleChunks(), chunks)
	assert.Equal(t, sampleMeta(), meta)
}

func TestWriteReplacesPrevious(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chunks.db")
	require.NoError(t, Write(path, sampleChunks(), sampleMeta()))

	m := sampleMeta()
	m.BuildID, m.Count = "b-2", 1
	require.NoError(t, Write(path, sampleChunks()[:1], m))

	chunks, meta, err := Read(path)
	require.NoError(t, err)
	assert.Len(t, chunks, 1)
	assert.Equal(t, "b-2", meta.BuildID)
}

func TestReadDetectsCountMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chunks.db")
	m := sampleMeta()
	m.Count = 4
	require.NoError(t, Write(path, sampleChunks(), m))

	_, _, err := Read(path)
	assert.ErrorIs(t, err, ErrMismatch)
}

func TestReadDetectsPositionGap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chunks.db")
	chunks := sampleChunks()
	chunks[2].Position = 5
	require.NoError(t, Write(path, chunks, sampleMeta()))

	_, _, err := Read(path)
	assert.ErrorIs(t, err, ErrMismatch)
}

func TestReadWithoutMeta(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chunks.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.InsertChunks(sampleChunks()))
	require.NoError(t, s.Close())

	_, _, err = Read(path)
	assert.ErrorIs(t, err, ErrMismatch)
}

func TestReadMissing(t *testing.T) {
	_, _, err := Read(filepath.Join(t.TempDir(), "absent.db"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSourcesAndMeta(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "chunks.db"))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.InsertChunks(sampleChunks()))
	sources, err := s.Sources()
	require.NoError(t, err)
	assert.Equal(t, []SourceSummary{
		{Source: "civil.txt", Chunks: 2, Characters: 24},
		{Source: "labor/code.md", Chunks: 1, Characters: 5},
	}, sources)

	v, err := s.GetMeta("absent")
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, s.SetMeta("k", "1"))
	require.NoError(t, s.SetMeta("k", "2"))
	v, err = s.GetMeta("k")
	require.NoError(t, err)
	assert.Equal(t, "2", v)
}

func TestInsertDuplicatePositionFails(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "chunks.db"))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.InsertChunks(sampleChunks()[:1]))
	assert.Error(t, s.InsertChunks(sampleChunks()[:1]))
}
