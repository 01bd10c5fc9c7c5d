// Package store provides SQLite-based persistence for device IDs and login sessions.
package store

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/xonecas/nok/internal/config"
)

//go:embed schema.sql
var schema string

const currentSchemaVersion = 1

const memoryPath = ":memory:"

// Store provides access to the SQLite database.
type Store struct {
	db *sql.DB
}

// New opens ~/.nok/nok.db, creating the directory if needed.
func New() (*Store, error) {
	dir, err := config.EnsureDataDir()
	if err != nil {
		return nil, fmt.Errorf("ensure data dir: %w", err)
	}

	dbPath := filepath.Join(dir, "nok.db")
	return Open(dbPath)
}

// pragmas are applied to every database before migration.
var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA foreign_keys=ON",
}

// Open opens, configures and migrates the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Every pooled connection to :memory: would get its own empty database.
	if path == memoryPath {
		db.SetMaxOpenConns(1)
	}

	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate %s: %w", path, err)
	}
	return s, nil
}

// OpenMemory opens a private in-memory database, for tests.
func OpenMemory() (*Store, error) {
	return Open(memoryPath)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) schemaVersion() (int, error) {
	var version int
	err := s.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return 0, nil
	case err != nil && strings.Contains(err.Error(), "no such table"):
		return 0, nil
	case err != nil:
		return 0, err
	}
	return version, nil
}

// migrate brings the schema to currentSchemaVersion. The tables only cache
// server-issued IDs and login history, so an older schema is dropped rather
// than converted.
func (s *Store) migrate() error {
	version, err := s.schemaVersion()
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	switch {
	case version == currentSchemaVersion:
		return nil
	case version > currentSchemaVersion:
		return fmt.Errorf("database schema v%d is newer than supported v%d", version, currentSchemaVersion)
	default:
		if version > 0 {
			log.Info().Int("from", version).Int("to", currentSchemaVersion).Msg("Resetting local database")
		}
		if _, err := s.db.Exec(dropTables); err != nil {
			return fmt.Errorf("drop tables: %w", err)
		}
	}

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

const dropTables = `
	DROP TABLE IF EXISTS sessions;
	DROP TABLE IF EXISTS devices;
	DROP TABLE IF EXISTS schema_version;
`
