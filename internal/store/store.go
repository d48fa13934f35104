package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ErrMismatch is returned when a chunk store does not agree with its meta
// record or with the index it was built alongside.
var ErrMismatch = errors.New("chunk store does not match index")

// Store provides persistence for chunk text and build metadata.
type Store interface {
	// InsertChunks appends chunks, keeping their positions.
	InsertChunks(chunks []Chunk) error
	// Chunks returns all chunks ordered by position.
	Chunks() ([]Chunk, error)
	// Sources summarizes stored chunks per document.
	Sources() ([]SourceSummary, error)
	// GetMeta returns a metadata value by key, or "" if not set.
	GetMeta(key string) (string, error)
	// SetMeta sets a metadata key-value pair.
	SetMeta(key, value string) error
	// Close closes the underlying database.
	Close() error
}

// SQLiteStore implements Store backed by SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at the given path and initializes the schema.
func Open(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := Init(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) InsertChunks(chunks []Chunk) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		"INSERT INTO chunks (position, source, ordinal, total, char_count, text) VALUES (?, ?, ?, ?, ?, ?)",
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range chunks {
		if _, err := stmt.Exec(c.Position, c.Source, c.Ordinal, c.Total, c.CharCount, c.Text); err != nil {
			return fmt.Errorf("insert chunk %d: %w", c.Position, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Chunks() ([]Chunk, error) {
	rows, err := s.db.Query(
		"SELECT position, source, ordinal, total, char_count, text FROM chunks ORDER BY position",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Chunk
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.Position, &c.Source, &c.Ordinal, &c.Total, &c.CharCount, &c.Text); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Sources() ([]SourceSummary, error) {
	rows, err := s.db.Query(`
		SELECT source, COUNT(*), COALESCE(SUM(char_count), 0)
		FROM chunks
		GROUP BY source
		ORDER BY source
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SourceSummary
	for rows.Next() {
		var ss SourceSummary
		if err := rows.Scan(&ss.Source, &ss.Chunks, &ss.Characters); err != nil {
			return nil, err
		}
		out = append(out, ss)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetMeta(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (s *SQLiteStore) SetMeta(key, value string) error {
	_, err := s.db.Exec(
		"INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const (
	metaBuildID   = "build_id"
	metaModel     = "embedding_model"
	metaDimension = "dimension"
	metaCount     = "chunk_count"
	metaBackend   = "index_backend"
	metaChunkSize = "chunk_size"
	metaOverlap   = "overlap"
	metaBuiltAt   = "built_at"
)

// SaveMeta writes every field of m.
func SaveMeta(s Store, m Meta) error {
	pairs := [][2]string{
		{metaBuildID, m.BuildID},
		{metaModel, m.Model},
		{metaDimension, strconv.Itoa(m.Dimension)},
		{metaCount, strconv.Itoa(m.Count)},
		{metaBackend, m.Backend},
		{metaChunkSize, strconv.Itoa(m.ChunkSize)},
		{metaOverlap, strconv.Itoa(m.Overlap)},
		{metaBuiltAt, m.BuiltAt.UTC().Format(time.RFC3339)},
	}
	for _, p := range pairs {
		if err := s.SetMeta(p[0], p[1]); err != nil {
			return fmt.Errorf("set meta %s: %w", p[0], err)
		}
	}
	return nil
}

// LoadMeta reads the build metadata back.
func LoadMeta(s Store) (Meta, error) {
	var m Meta
	get := func(key string) string {
		v, err := s.GetMeta(key)
		if err != nil {
			return ""
		}
		return v
	}
	atoi := func(key string) (int, error) {
		v := get(key)
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("%w: meta %s = %q", ErrMismatch, key, v)
		}
		return n, nil
	}

	m.BuildID = get(metaBuildID)
	if m.BuildID == "" {
		return m, fmt.Errorf("%w: no build id", ErrMismatch)
	}
	m.Model = get(metaModel)
	m.Backend = get(metaBackend)
	var err error
	if m.Dimension, err = atoi(metaDimension); err != nil {
		return m, err
	}
	if m.Count, err = atoi(metaCount); err != nil {
		return m, err
	}
	if m.ChunkSize, err = atoi(metaChunkSize); err != nil {
		return m, err
	}
	if m.Overlap, err = atoi(metaOverlap); err != nil {
		return m, err
	}
	if t, err := time.Parse(time.RFC3339, get(metaBuiltAt)); err == nil {
		m.BuiltAt = t
	}
	return m, nil
}

// Write stores chunks and meta as a fresh database at path. The database is
// built at path.tmp and renamed into place only once it is complete.
func Write(path string, chunks []Chunk, m Meta) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.Remove(tmp); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale %s: %w", tmp, err)
	}

	s, err := Open(tmp)
	if err != nil {
		return err
	}
	err = s.InsertChunks(chunks)
	if err == nil {
		err = SaveMeta(s, m)
	}
	if cerr := s.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write chunk store: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}

// Read loads every chunk and the build metadata from path, checking that
// positions are dense and agree with the recorded count.
func Read(path string) ([]Chunk, Meta, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, Meta{}, err
	}
	s, err := Open(path)
	if err != nil {
		return nil, Meta{}, err
	}
	defer s.Close()

	m, err := LoadMeta(s)
	if err != nil {
		return nil, Meta{}, err
	}
	chunks, err := s.Chunks()
	if err != nil {
		return nil, Meta{}, fmt.Errorf("read chunks: %w", err)
	}
	if len(chunks) != m.Count {
		return nil, Meta{}, fmt.Errorf("%w: %d chunks, meta says %d", ErrMismatch, len(chunks), m.Count)
	}
	for i, c := range chunks {
		if c.Position != i {
			return nil, Meta{}, fmt.Errorf("%w: chunk at slot %d has position %d", ErrMismatch, i, c.Position)
		}
	}
	return chunks, m, nil
}
