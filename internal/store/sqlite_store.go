// Package store provides persistent storage for saved schemes using SQLite.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/scimaplab/server/pkg/colormap"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when no scheme is stored under a name.
var ErrNotFound = errors.New("scheme not found")

// SchemeRecord is a saved scheme definition. Samples hold the source
// colormap sampled at scheme.Resolution, enough to regenerate the scheme.
type SchemeRecord struct {
	Name       string
	Base       string
	NRotations int
	Samples    []colormap.RGBA
	CreatedAt  time.Time
}

// Store provides persistent storage for scheme definitions using SQLite.
type Store struct {
	db  *sql.DB
	mu  sync.Mutex
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// NewStore creates a new SQLite-based scheme store.
func NewStore(dbPath string) (*Store, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory for sqlite: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		db.Close()
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	s := &Store{db: db, enc: enc, dec: dec}
	if err := s.migrate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.dec.Close()
	s.enc.Close()
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schemes (
		name TEXT PRIMARY KEY,
		base TEXT NOT NULL,
		n_rotations INTEGER NOT NULL,
		samples BLOB NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_schemes_created ON schemes(created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Save inserts or replaces a scheme definition.
func (s *Store) Save(rec *SchemeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	blob, err := s.encodeSamples(rec.Samples)
	if err != nil {
		return err
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO schemes (name, base, n_rotations, samples, created_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		rec.Name,
		rec.Base,
		rec.NRotations,
		blob,
		rec.CreatedAt.Format(time.RFC3339Nano),
	)
	return err
}

// Get retrieves a scheme definition by name.
func (s *Store) Get(name string) (*SchemeRecord, error) {
	row := s.db.QueryRow(`
		SELECT name, base, n_rotations, samples, created_at
		FROM schemes WHERE name = ?
	`, name)

	rec, err := s.scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return rec, err
}

// List returns all scheme definitions, oldest first.
func (s *Store) List() ([]*SchemeRecord, error) {
	rows, err := s.db.Query(`
		SELECT name, base, n_rotations, samples, created_at
		FROM schemes ORDER BY created_at ASC, name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*SchemeRecord
	for rows.Next() {
		rec, err := s.scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Delete removes a scheme definition.
func (s *Store) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.Exec("DELETE FROM schemes WHERE name = ?", name)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanRecord(row scanner) (*SchemeRecord, error) {
	var rec SchemeRecord
	var blob []byte
	var createdAtStr string

	if err := row.Scan(&rec.Name, &rec.Base, &rec.NRotations, &blob, &createdAtStr); err != nil {
		return nil, err
	}

	samples, err := s.decodeSamples(blob)
	if err != nil {
		return nil, fmt.Errorf("scheme %q: %w", rec.Name, err)
	}
	rec.Samples = samples
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAtStr)

	return &rec, nil
}

// Samples are stored as zstd-compressed JSON arrays of [r, g, b, a].
func (s *Store) encodeSamples(samples []colormap.RGBA) ([]byte, error) {
	raw := make([][4]float64, len(samples))
	for i, c := range samples {
		raw[i] = [4]float64{c.R, c.G, c.B, c.A}
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal samples: %w", err)
	}
	return s.enc.EncodeAll(data, nil), nil
}

func (s *Store) decodeSamples(blob []byte) ([]colormap.RGBA, error) {
	data, err := s.dec.DecodeAll(blob, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress samples: %w", err)
	}
	var raw [][4]float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal samples: %w", err)
	}
	samples := make([]colormap.RGBA, len(raw))
	for i, c := range raw {
		samples[i] = colormap.RGBA{R: c[0], G: c[1], B: c[2], A: c[3]}
	}
	return samples, nil
}
