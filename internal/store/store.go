// Package store persists operation logs, scraped listings, and the
// geocode cache in SQLite.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// Store wraps the SQLite handle shared by the persistence types
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the SQLite database at path and runs
// the schema migration.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the database handle
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS operations (
			id TEXT PRIMARY KEY,
			trigger_kind TEXT NOT NULL,
			status TEXT NOT NULL,
			start_time DATETIME NOT NULL,
			end_time DATETIME,
			document TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_operations_status ON operations(status)`,
		`CREATE INDEX IF NOT EXISTS idx_operations_start_time ON operations(start_time)`,
		`CREATE TABLE IF NOT EXISTS geocode_cache (
			query_key TEXT PRIMARY KEY,
			resort_name TEXT NOT NULL,
			island TEXT NOT NULL,
			lon REAL NOT NULL,
			lat REAL NOT NULL,
			formatted_address TEXT NOT NULL DEFAULT '',
			quality_score INTEGER NOT NULL DEFAULT 0,
			method TEXT NOT NULL,
			is_verified INTEGER NOT NULL DEFAULT 0,
			last_updated DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS listings (
			source TEXT NOT NULL,
			destination TEXT NOT NULL,
			title TEXT NOT NULL,
			island TEXT NOT NULL DEFAULT '',
			resort TEXT NOT NULL DEFAULT '',
			price REAL NOT NULL DEFAULT 0,
			currency TEXT NOT NULL DEFAULT '',
			url TEXT NOT NULL DEFAULT '',
			duration TEXT NOT NULL DEFAULT '',
			inclusions TEXT NOT NULL DEFAULT '[]',
			exclusions TEXT NOT NULL DEFAULT '[]',
			first_seen DATETIME NOT NULL,
			last_seen DATETIME NOT NULL,
			PRIMARY KEY (source, destination, title)
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("running migration: %w", err)
		}
	}
	return nil
}
