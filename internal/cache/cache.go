// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cache persists tool results in a SQLite key/value table with a
// time-to-live. Expired entries are evicted lazily on lookup; Prune evicts
// all of them at once.
package cache

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/proposal-engine/pkg/types"
)

// DefaultTTL applies when the configuration leaves TTL unset.
const DefaultTTL = 7 * 24 * time.Hour

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("cache: store is closed")

// Store is a TTL cache backed by SQLite. It is safe for concurrent use.
type Store struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces the store's time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open opens or creates the cache database at cfg.Path and creates the
// schema if it does not exist.
func Open(cfg types.CacheConfig, opts ...Option) (*Store, error) {
	if dir := filepath.Dir(cfg.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}
	// One writer at a time keeps SQLite from returning SQLITE_BUSY under
	// concurrent sessions.
	db.SetMaxOpenConns(1)

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	s := &Store{db: db, ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS cache (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		timestamp INTEGER NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return ErrClosed
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// TTL returns the entry lifetime.
func (s *Store) TTL() time.Duration { return s.ttl }

// Get returns the value stored under key. An entry older than the TTL is
// deleted and reported as a miss.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	if s.db == nil {
		return "", false, ErrClosed
	}

	var value string
	var stamp int64
	err := s.db.QueryRowContext(ctx, `SELECT value, timestamp FROM cache WHERE key = ?`, key).Scan(&value, &stamp)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading cache key: %w", err)
	}

	if s.now().Sub(time.Unix(stamp, 0)) >= s.ttl {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM cache WHERE key = ?`, key); err != nil {
			return "", false, fmt.Errorf("evicting expired key: %w", err)
		}
		return "", false, nil
	}
	return value, true, nil
}

// Set stores value under key, replacing any existing entry and resetting its age.
func (s *Store) Set(ctx context.Context, key, value string) error {
	if s.db == nil {
		return ErrClosed
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cache (key, value, timestamp) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, timestamp = excluded.timestamp`,
		key, value, s.now().Unix())
	if err != nil {
		return fmt.Errorf("writing cache key: %w", err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if s.db == nil {
		return ErrClosed
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cache WHERE key = ?`, key); err != nil {
		return fmt.Errorf("deleting cache key: %w", err)
	}
	return nil
}

// Prune deletes every expired entry and returns how many were removed.
func (s *Store) Prune(ctx context.Context) (int64, error) {
	if s.db == nil {
		return 0, ErrClosed
	}
	cutoff := s.now().Add(-s.ttl).Unix()
	res, err := s.db.ExecContext(ctx, `DELETE FROM cache WHERE timestamp <= ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning cache: %w", err)
	}
	return res.RowsAffected()
}

// Len returns the number of stored entries, expired or not.
func (s *Store) Len(ctx context.Context) (int, error) {
	if s.db == nil {
		return 0, ErrClosed
	}
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cache`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting cache entries: %w", err)
	}
	return n, nil
}

// GetJSON decodes the value under key into v. It reports false on a miss.
func (s *Store) GetJSON(ctx context.Context, key string, v any) (bool, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false, fmt.Errorf("decoding cached value: %w", err)
	}
	return true, nil
}

// SetJSON encodes v and stores it under key.
func (s *Store) SetJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding cache value: %w", err)
	}
	return s.Set(ctx, key, string(data))
}

// Fingerprint derives a stable cache key from an action name and its
// parameters. encoding/json sorts map keys, so equal parameter sets hash
// equally regardless of insertion order.
func Fingerprint(action string, params map[string]any) string {
	data, err := json.Marshal(params)
	if err != nil {
		data = []byte(fmt.Sprintf("%v", params))
	}
	h := sha256.New()
	h.Write([]byte(action))
	h.Write([]byte{0})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}
