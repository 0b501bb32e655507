// Package metadata is the structured side of the engine: a sqlite row
// store keyed by canonical track id, plus execution of the restricted
// SQL dialect parsed by the query subpackage.
package metadata

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/quaverlab/quaver/internal/trackid"
)

// ErrNotFound reports a track id with no metadata row.
var ErrNotFound = errors.New("metadata row not found")

// Row is one track's structured metadata.
type Row struct {
	TrackID string `json:"track_id"`
	Title   string `json:"title"`
	Artist  string `json:"artist"`
	Genre   string `json:"genre"`
	Year    int    `json:"year"`
}

// Store wraps the metadata database. Writes happen only at ingest;
// query-time callers should use OpenReadOnly.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the metadata store at path and migrates the
// schema.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("metadata: mkdir: %w", err)
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("metadata: open db: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// OpenReadOnly opens an existing store for queries. Concurrent reads
// are safe; any write fails at the driver.
func OpenReadOnly(path string) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("metadata: %w", err)
	}
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("metadata: open db read-only: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS metadata (
			track_id TEXT PRIMARY KEY,
			title    TEXT NOT NULL DEFAULT '',
			artist   TEXT NOT NULL DEFAULT '',
			genre    TEXT NOT NULL DEFAULT '',
			year     INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_metadata_genre ON metadata(genre);
		CREATE INDEX IF NOT EXISTS idx_metadata_year ON metadata(year);
	`)
	if err != nil {
		return fmt.Errorf("metadata: migrate: %w", err)
	}
	return nil
}

// Insert upserts rows in one transaction, canonicalizing ids on the
// way in.
func (s *Store) Insert(rows []Row) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("metadata: begin: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO metadata (track_id, title, artist, genre, year) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("metadata: prepare: %w", err)
	}
	defer stmt.Close()
	for _, r := range rows {
		if _, err := stmt.Exec(trackid.Canonical(r.TrackID), r.Title, r.Artist, r.Genre, r.Year); err != nil {
			tx.Rollback()
			return fmt.Errorf("metadata: insert %s: %w", r.TrackID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("metadata: commit: %w", err)
	}
	log.Info().Int("rows", len(rows)).Msg("metadata rows stored")
	return nil
}

// Get fetches one row by track id, canonicalizing the id first.
func (s *Store) Get(id string) (*Row, error) {
	var r Row
	err := s.db.QueryRow(
		`SELECT track_id, title, artist, genre, year FROM metadata WHERE track_id = ?`,
		trackid.Canonical(id),
	).Scan(&r.TrackID, &r.Title, &r.Artist, &r.Genre, &r.Year)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("metadata: get %s: %w", id, err)
	}
	return &r, nil
}

// Select executes an already-translated parameterized query and
// returns row maps limited to cols ("*" columns arrive pre-expanded
// by the translator).
func (s *Store) Select(query string, params []any, cols []string) ([]map[string]any, error) {
	rows, err := s.db.Query(query, params...)
	if err != nil {
		return nil, fmt.Errorf("metadata: query: %w", err)
	}
	defer rows.Close()

	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("metadata: scan: %w", err)
		}
		m := make(map[string]any, len(cols))
		for i, c := range cols {
			m[c] = values[i]
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Count reports the number of stored rows.
func (s *Store) Count() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM metadata`).Scan(&n)
	return n, err
}

// Close shuts the store down.
func (s *Store) Close() error { return s.db.Close() }
