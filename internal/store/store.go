// Package store implements the path-keyed conversation store.
//
// Each working directory has at most one live entry, keyed by its cleaned absolute
// path. Before a live entry is replaced during restore or import the caller writes a
// backup entry under <path>.backup.<YYYYMMDD_HHMMSS>; backups are ordinary entries and
// are never deleted here.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"chathistory/internal/codec"
	"chathistory/internal/logger"
	"chathistory/pkg/historytypes"
)

// BackupInfix separates the original path from the timestamp in a backup key.
const BackupInfix = ".backup."

// BackupTimeFormat is the UTC, second precision timestamp layout of backup keys.
const BackupTimeFormat = "20060102_150405"

// maxBackupAttempts bounds the suffix search when several backups land in one second.
const maxBackupAttempts = 1000

// Store maps directory paths to session records over an opaque substrate.
type Store struct {
	db  historytypes.Substrate
	now func() time.Time
	log *log.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces the clock used for backup keys.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a Store over db.
func New(db historytypes.Substrate, options ...Option) *Store {
	s := &Store{
		db:  db,
		now: time.Now,
		log: logger.NewStyledLogger("Store"),
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// NormalizePath cleans a directory path for use as a key.
func NormalizePath(path string) string {
	if path == "" {
		return path
	}
	return filepath.Clean(path)
}

// EnumerateAll returns every stored entry, live and backup, in substrate order.
func (s *Store) EnumerateAll(ctx context.Context) ([]historytypes.RawEntry, error) {
	entries, err := s.db.Enumerate(ctx)
	if err != nil {
		return nil, err
	}
	s.log.Debug("Enumerated entries", "count", len(entries))
	return entries, nil
}

// Get returns the record stored at path, or nil when there is none.
// An undecodable value yields a *historytypes.DecodeError.
func (s *Store) Get(ctx context.Context, path string) (*historytypes.SessionRecord, error) {
	key := NormalizePath(path)
	raw, ok, err := s.db.Get(ctx, key)
	if err != nil || !ok {
		return nil, err
	}
	return codec.DecodeEntry(historytypes.RawEntry{Key: key, Value: raw})
}

// GetRaw returns the undecoded value stored at path.
func (s *Store) GetRaw(ctx context.Context, path string) (json.RawMessage, bool, error) {
	return s.db.Get(ctx, NormalizePath(path))
}

// Exists reports whether any entry, live or backup, is stored under path.
func (s *Store) Exists(ctx context.Context, path string) (bool, error) {
	_, ok, err := s.db.Get(ctx, NormalizePath(path))
	return ok, err
}

// Set writes record as the live entry for path, replacing any previous value.
// It never backs up; callers that need safety call Backup first.
func (s *Store) Set(ctx context.Context, path string, record *historytypes.SessionRecord) error {
	value, err := codec.Wrap(record)
	if err != nil {
		return err
	}
	key := NormalizePath(path)
	if err := s.db.Set(ctx, key, value); err != nil {
		return err
	}
	s.log.Debug("Stored conversation", "path", key, "id", record.ID)
	return nil
}

// Backup writes record under a fresh backup key derived from path and returns the key.
// The live entry at path is left untouched.
func (s *Store) Backup(ctx context.Context, path string, record *historytypes.SessionRecord) (string, error) {
	value, err := codec.Wrap(record)
	if err != nil {
		return "", err
	}
	return s.BackupRaw(ctx, path, value)
}

// BackupRaw writes an undecoded value under a fresh backup key. It preserves live
// entries whose record can no longer be decoded.
func (s *Store) BackupRaw(ctx context.Context, path string, value json.RawMessage) (string, error) {
	key, err := s.nextBackupKey(ctx, NormalizePath(path))
	if err != nil {
		return "", err
	}
	if err := s.db.Set(ctx, key, value); err != nil {
		return "", err
	}
	s.log.Info("Backed up conversation", "path", path, "key", key)
	return key, nil
}

// BackupKey returns the key a backup of path taken at t would use, before collision handling.
func BackupKey(path string, t time.Time) string {
	return path + BackupInfix + t.UTC().Format(BackupTimeFormat)
}

// nextBackupKey finds an unused backup key so two backups in the same second
// never overwrite each other.
func (s *Store) nextBackupKey(ctx context.Context, path string) (string, error) {
	base := BackupKey(path, s.now())
	key := base
	for attempt := 1; attempt <= maxBackupAttempts; attempt++ {
		taken, err := s.Exists(ctx, key)
		if err != nil {
			return "", err
		}
		if !taken {
			return key, nil
		}
		key = fmt.Sprintf("%s_%d", base, attempt)
	}
	return "", fmt.Errorf("%w: no free backup key for %q", historytypes.ErrStoreIO, path)
}
