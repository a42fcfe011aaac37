// Package database provides the key/value substrates underneath the history store.
//
// SQLiteDatabase reads and writes the chat engine's own database file, where every
// conversation lives in the conversations table keyed by directory path.
// MemoryDatabase is an ordered in-process substrate used by tests and dry runs.
package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"chathistory/pkg/historytypes"

	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

const schema = `CREATE TABLE IF NOT EXISTS conversations (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`

// SQLiteDatabase is a Substrate backed by a SQLite file.
type SQLiteDatabase struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens (creating if needed) the database file at path.
func OpenSQLite(path string) (*SQLiteDatabase, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: database path is empty", historytypes.ErrStoreIO)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("%w: create data dir: %w", historytypes.ErrStoreIO, err)
	}

	db, err := openDB("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open database: %w", historytypes.ErrStoreIO, err)
	}
	// One connection keeps PRAGMAs applied to every statement.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%w: %s: %w", historytypes.ErrStoreIO, p, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: create conversations table: %w", historytypes.ErrStoreIO, err)
	}

	return &SQLiteDatabase{db: db, path: path}, nil
}

// Path returns the database file location.
func (s *SQLiteDatabase) Path() string {
	return s.path
}

// Get returns the raw value stored under key.
func (s *SQLiteDatabase) Get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM conversations WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: read %q: %w", historytypes.ErrStoreIO, key, err)
	}
	return json.RawMessage(value), true, nil
}

// Set replaces the value stored under key.
func (s *SQLiteDatabase) Set(ctx context.Context, key string, value json.RawMessage) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO conversations (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, string(value))
	if err != nil {
		return fmt.Errorf("%w: write %q: %w", historytypes.ErrStoreIO, key, err)
	}
	return nil
}

// Enumerate returns every stored entry in table order.
func (s *SQLiteDatabase) Enumerate(ctx context.Context) ([]historytypes.RawEntry, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM conversations")
	if err != nil {
		return nil, fmt.Errorf("%w: list conversations: %w", historytypes.ErrStoreIO, err)
	}
	defer rows.Close()

	var entries []historytypes.RawEntry
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("%w: scan conversation: %w", historytypes.ErrStoreIO, err)
		}
		entries = append(entries, historytypes.RawEntry{Key: key, Value: json.RawMessage(value)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list conversations: %w", historytypes.ErrStoreIO, err)
	}
	return entries, nil
}

// Close releases the database handle.
func (s *SQLiteDatabase) Close() error {
	return s.db.Close()
}
