package vecindex

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	sqlite_vec.Auto()
}

// SQLiteVecIndex stages vectors in an in-memory sqlite-vec vec0 table and
// persists them as a standalone SQLite file. Row ids are position+1.
type SQLiteVecIndex struct {
	db    *sql.DB
	dim   int
	count int
}

const vecDDL = `
CREATE VIRTUAL TABLE IF NOT EXISTS vectors USING vec0(
    id INTEGER PRIMARY KEY,
    embedding float[%d] distance_metric=cosine
);

CREATE TABLE IF NOT EXISTS index_meta (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

func openMemory() (*sql.DB, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	return db, nil
}

// NewSQLiteVec creates an empty in-memory index.
func NewSQLiteVec(dim int) (*SQLiteVecIndex, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("%w: dimension %d", ErrDimensionMismatch, dim)
	}
	db, err := openMemory()
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(fmt.Sprintf(vecDDL, dim)); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	if _, err := db.Exec("INSERT INTO index_meta (key, value) VALUES ('dimension', ?)", strconv.Itoa(dim)); err != nil {
		db.Close()
		return nil, fmt.Errorf("init meta: %w", err)
	}
	return &SQLiteVecIndex{db: db, dim: dim}, nil
}

func (s *SQLiteVecIndex) Dim() int { return s.dim }
func (s *SQLiteVecIndex) Len() int { return s.count }

func (s *SQLiteVecIndex) Add(vectors [][]float32) error {
	for _, v := range vectors {
		if err := checkDim(s.dim, v); err != nil {
			return err
		}
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare("INSERT INTO vectors (id, embedding) VALUES (?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, v := range vectors {
		blob, err := sqlite_vec.SerializeFloat32(v)
		if err != nil {
			return fmt.Errorf("serialize vector %d: %w", s.count+i, err)
		}
		if _, err := stmt.Exec(s.count+i+1, blob); err != nil {
			return fmt.Errorf("insert vector %d: %w", s.count+i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.count += len(vectors)
	return nil
}

func (s *SQLiteVecIndex) Search(query []float32, k int) ([]Hit, error) {
	if err := checkDim(s.dim, query); err != nil {
		return nil, err
	}
	k = clampK(k, s.count)
	if k == 0 {
		return []Hit{}, nil
	}
	blob, err := sqlite_vec.SerializeFloat32(query)
	if err != nil {
		return nil, fmt.Errorf("serialize query: %w", err)
	}
	rows, err := s.db.Query(`
		SELECT id, distance
		FROM vectors
		WHERE embedding MATCH ? AND k = ?
		ORDER BY distance
	`, blob, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	hits := make([]Hit, 0, k)
	for rows.Next() {
		var id int
		var dist float64
		if err := rows.Scan(&id, &dist); err != nil {
			return nil, err
		}
		hits = append(hits, Hit{Position: id - 1, Score: float32(1 - dist)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sortHits(hits)
	return hits, nil
}

// Save snapshots the database into path.tmp with VACUUM INTO and renames it
// over path.
func (s *SQLiteVecIndex) Save(path, tag string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	_, err := s.db.Exec(
		"INSERT INTO index_meta (key, value) VALUES ('tag', ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		tag,
	)
	if err != nil {
		return fmt.Errorf("set tag: %w", err)
	}
	tmp := path + ".tmp"
	os.Remove(tmp)
	if _, err := s.db.Exec("VACUUM INTO ?", tmp); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write index: %w", err)
	}
	return replaceFile(tmp, path)
}

// OpenSQLiteVec copies a saved index into memory.
func OpenSQLiteVec(path string) (*SQLiteVecIndex, string, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, "", err
	}
	db, err := openMemory()
	if err != nil {
		return nil, "", err
	}
	idx, tag, err := restore(db, path)
	if err != nil {
		db.Close()
		return nil, "", err
	}
	return idx, tag, nil
}

func restore(db *sql.DB, path string) (*SQLiteVecIndex, string, error) {
	if _, err := db.Exec("ATTACH DATABASE ? AS disk", path); err != nil {
		return nil, "", fmt.Errorf("attach %s: %w", path, err)
	}
	defer db.Exec("DETACH DATABASE disk")

	var dimStr, tag string
	if err := db.QueryRow("SELECT value FROM disk.index_meta WHERE key = 'dimension'").Scan(&dimStr); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	err := db.QueryRow("SELECT value FROM disk.index_meta WHERE key = 'tag'").Scan(&tag)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, "", fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	dim, err := strconv.Atoi(dimStr)
	if err != nil || dim <= 0 {
		return nil, "", fmt.Errorf("%w: dimension %q", ErrCorrupt, dimStr)
	}

	if _, err := db.Exec(fmt.Sprintf(vecDDL, dim)); err != nil {
		return nil, "", fmt.Errorf("init schema: %w", err)
	}
	if _, err := db.Exec("INSERT INTO index_meta SELECT key, value FROM disk.index_meta"); err != nil {
		return nil, "", fmt.Errorf("copy meta: %w", err)
	}
	if _, err := db.Exec("INSERT INTO vectors (id, embedding) SELECT id, embedding FROM disk.vectors ORDER BY id"); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	// Positions must be dense: ids 1..n.
	var n, maxID int
	if err := db.QueryRow("SELECT count(*), coalesce(max(id), 0) FROM vectors").Scan(&n, &maxID); err != nil {
		return nil, "", err
	}
	if maxID != n {
		return nil, "", fmt.Errorf("%w: %d vectors with max id %d", ErrCorrupt, n, maxID)
	}
	return &SQLiteVecIndex{db: db, dim: dim, count: n}, tag, nil
}

func (s *SQLiteVecIndex) Close() error {
	return s.db.Close()
}
