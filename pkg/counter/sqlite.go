package counter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS counters (
	name       TEXT PRIMARY KEY,
	value      INTEGER NOT NULL DEFAULT 0 CHECK (value >= 0),
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);`

// SQLiteStore keeps the counter in a single row of a SQLite table
type SQLiteStore struct {
	db   *sql.DB
	name string
}

// OpenSQLite opens (creating if needed) the database at path
func OpenSQLite(path, name string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("database path is required")
	}
	if name == "" {
		name = DefaultName
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if path == ":memory:" {
		// every pooled connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	} else if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	return &SQLiteStore{db: db, name: name}, nil
}

// Initialize creates the table and the counter row
func (s *SQLiteStore) Initialize(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize counter schema: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO counters (name, value) VALUES (?, 0)`, s.name); err != nil {
		return fmt.Errorf("failed to initialize counter %s: %w", s.name, err)
	}
	return nil
}

// Increment bumps the counter in one statement, so concurrent sessions
// never lose an update.
func (s *SQLiteStore) Increment(ctx context.Context) (int64, error) {
	var value int64
	err := s.db.QueryRowContext(ctx,
		`UPDATE counters SET value = value + 1, updated_at = CURRENT_TIMESTAMP
		 WHERE name = ? RETURNING value`, s.name).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotInitialized
	}
	if err != nil {
		return 0, fmt.Errorf("failed to increment counter %s: %w", s.name, err)
	}
	return value, nil
}

// Value reads the current count
func (s *SQLiteStore) Value(ctx context.Context) (int64, error) {
	var value int64
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM counters WHERE name = ?`, s.name).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotInitialized
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read counter %s: %w", s.name, err)
	}
	return value, nil
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
