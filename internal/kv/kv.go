// Package kv is a persistent key-value store over SQLite. Values carry a
// version number so callers can do compare-and-swap writes instead of
// unconditional last-write-wins.
package kv

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by Get when no value exists for the key.
var ErrNotFound = errors.New("kv: key not found")

// ErrVersionConflict is returned by CompareAndSwap when the stored version
// no longer matches the expected one.
var ErrVersionConflict = errors.New("kv: version conflict")

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Get returns the value and its current version for key.
func (s *Store) Get(key string) (string, int64, error) {
	var value string
	var version int64
	err := s.db.QueryRow(`SELECT value, version FROM kv_entries WHERE key = ?`, key).Scan(&value, &version)
	if err == sql.ErrNoRows {
		return "", 0, ErrNotFound
	}
	if err != nil {
		return "", 0, fmt.Errorf("get %q: %w", key, err)
	}
	return value, version, nil
}

// Put writes the value unconditionally, bumping the version.
func (s *Store) Put(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO kv_entries (key, value, version, updated_at) VALUES (?, ?, 1, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, version = version + 1, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("put %q: %w", key, err)
	}
	return nil
}

// CompareAndSwap writes the value only if the stored version still equals
// expectedVersion. An expectedVersion of 0 means the key must not exist yet.
// Returns ErrVersionConflict if another writer got there first.
func (s *Store) CompareAndSwap(key, value string, expectedVersion int64) error {
	now := time.Now().UTC()

	if expectedVersion == 0 {
		_, err := s.db.Exec(
			`INSERT INTO kv_entries (key, value, version, updated_at) VALUES (?, ?, 1, ?)`,
			key, value, now,
		)
		if err != nil {
			// The unique constraint firing means someone created the key
			// between our read and this write.
			var exists int
			if scanErr := s.db.QueryRow(`SELECT COUNT(*) FROM kv_entries WHERE key = ?`, key).Scan(&exists); scanErr == nil && exists > 0 {
				return ErrVersionConflict
			}
			return fmt.Errorf("insert %q: %w", key, err)
		}
		return nil
	}

	res, err := s.db.Exec(
		`UPDATE kv_entries SET value = ?, version = version + 1, updated_at = ? WHERE key = ? AND version = ?`,
		value, now, key, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("swap %q: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrVersionConflict
	}
	return nil
}

// Delete removes the key. Deleting a missing key is not an error.
func (s *Store) Delete(key string) error {
	_, err := s.db.Exec(`DELETE FROM kv_entries WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

// Keys returns all keys with the given prefix, ordered lexically.
func (s *Store) Keys(prefix string) ([]string, error) {
	rows, err := s.db.Query(
		`SELECT key FROM kv_entries WHERE key LIKE ? ORDER BY key`,
		prefix+"%",
	)
	if err != nil {
		return nil, fmt.Errorf("list keys %q: %w", prefix, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
