package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"time"

	_ "modernc.org/sqlite"
)

// Namespaces owned by the cache. Location and history are single-value
// namespaces (empty key); geocoding is keyed by rounded coordinate string.
const (
	NamespaceLocation = "current_location"
	NamespaceHistory  = "activity_history"
	NamespaceGeocode  = "geocoding"
)

// Store is a durable namespaced key-value cache with per-entry expiry.
// Reads are read-through: an expired or malformed entry is treated as
// absent and its backing row is deleted. Writes are best effort.
type Store struct {
	db *sql.DB

	// now is swappable in tests.
	now func() time.Time
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	s := &Store{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS cache_entries (
		namespace TEXT NOT NULL,
		key TEXT NOT NULL,
		value_json TEXT NOT NULL,
		stored_at INTEGER NOT NULL,
		expires_at INTEGER NOT NULL,
		PRIMARY KEY (namespace, key)
	);`)
	return err
}

// Put serializes value and stores it under (namespace, key) with the given
// TTL, replacing any previous entry. Caching is best effort: failures are
// logged and swallowed so a full disk or bad value never breaks the caller.
func (s *Store) Put(ctx context.Context, namespace, key string, value any, ttl time.Duration) {
	raw, err := json.Marshal(value)
	if err != nil {
		log.Printf("cache: failed to serialize %s/%s: %v", namespace, key, err)
		return
	}

	now := s.now()
	_, err = s.db.ExecContext(ctx, `INSERT INTO cache_entries(namespace, key, value_json, stored_at, expires_at)
		VALUES(?, ?, ?, ?, ?)
		ON CONFLICT(namespace, key) DO UPDATE SET
			value_json = excluded.value_json,
			stored_at = excluded.stored_at,
			expires_at = excluded.expires_at`,
		namespace, key, string(raw), now.UnixMilli(), now.Add(ttl).UnixMilli())
	if err != nil {
		log.Printf("cache: failed to store %s/%s: %v", namespace, key, err)
	}
}

// Get loads the entry under (namespace, key) into out and reports whether a
// live entry was found. Expired and undecodable entries are purged on read.
func (s *Store) Get(ctx context.Context, namespace, key string, out any) bool {
	var raw string
	var expiresAt int64

	row := s.db.QueryRowContext(ctx,
		`SELECT value_json, expires_at FROM cache_entries WHERE namespace = ? AND key = ?`,
		namespace, key)
	if err := row.Scan(&raw, &expiresAt); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			log.Printf("cache: failed to read %s/%s: %v", namespace, key, err)
		}
		return false
	}

	if s.now().UnixMilli() > expiresAt {
		s.delete(ctx, namespace, key)
		return false
	}

	if err := json.Unmarshal([]byte(raw), out); err != nil {
		log.Printf("cache: malformed entry %s/%s: %v", namespace, key, err)
		s.delete(ctx, namespace, key)
		return false
	}
	return true
}

// Clear removes all entries under the namespace.
func (s *Store) Clear(ctx context.Context, namespace string) {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE namespace = ?`, namespace); err != nil {
		log.Printf("cache: failed to clear %s: %v", namespace, err)
	}
}

func (s *Store) delete(ctx context.Context, namespace, key string) {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE namespace = ? AND key = ?`, namespace, key); err != nil {
		log.Printf("cache: failed to purge %s/%s: %v", namespace, key, err)
	}
}
