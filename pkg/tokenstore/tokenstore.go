// Package tokenstore persists the opaque session token for the ACE auth
// client. The token lives in a single-slot SQLite table so it survives
// restarts; when the database cannot be opened or written (read-only state
// dir, quota, tests) the store degrades silently to an in-process variable
// with the same interface.
package tokenstore

import (
	"database/sql"
	"errors"
	"log/slog"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// slotKey is the fixed storage key for the session token. There is exactly
// one token at a time; writes overwrite the previous value.
const slotKey = "ace.auth.token"

const schema = `
CREATE TABLE IF NOT EXISTS auth_token (
	key        TEXT PRIMARY KEY,
	token      TEXT NOT NULL,
	updated_at TEXT NOT NULL
);`

// Store holds at most one session token. All methods are safe for concurrent
// use and never return errors to callers: persistence failures degrade the
// store to its in-memory fallback.
type Store struct {
	mu     sync.Mutex
	db     *sql.DB // nil when running on the in-memory fallback
	mem    string
	logger *slog.Logger
	subs   map[int]func(token string)
	nextID int
}

// Open returns a Store backed by the SQLite database at path. An empty path
// selects the in-memory fallback directly. Open never fails: if the database
// cannot be opened or a throwaway write does not stick, the fallback is used
// and the reason is logged once.
func Open(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{logger: logger, subs: make(map[int]func(string))}

	if path == "" {
		return s
	}

	db, err := sql.Open("sqlite", path)
	if err == nil {
		err = probe(db)
	}
	if err != nil {
		if db != nil {
			_ = db.Close()
		}
		logger.Warn("token store: persistent storage unavailable, using in-memory fallback",
			slog.String("path", path), slog.String("error", err.Error()))
		return s
	}

	s.db = db
	return s
}

// probe verifies the database is actually writable, not just openable, by
// performing a throwaway insert and delete.
func probe(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return err
	}
	if _, err := db.Exec(`INSERT OR REPLACE INTO auth_token (key, token, updated_at) VALUES (?, ?, ?)`,
		"__probe__", "probe", time.Now().UTC().Format(time.RFC3339)); err != nil {
		return err
	}
	if _, err := db.Exec(`DELETE FROM auth_token WHERE key = ?`, "__probe__"); err != nil {
		return err
	}
	return nil
}

// Token returns the stored session token, or "" when none is stored.
func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return s.mem
	}

	var token string
	err := s.db.QueryRow(`SELECT token FROM auth_token WHERE key = ?`, slotKey).Scan(&token)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return ""
	case err != nil:
		s.degradeLocked(err)
		return s.mem
	}
	return token
}

// SetToken stores the session token, overwriting any previous value. Storing
// an empty token is a no-op.
func (s *Store) SetToken(token string) {
	if token == "" {
		return
	}

	s.mu.Lock()
	changed := s.writeLocked(token)
	subs := s.subscribersLocked()
	s.mu.Unlock()

	if changed {
		notify(subs, token)
	}
}

// Clear removes the stored token.
func (s *Store) Clear() {
	s.mu.Lock()
	changed := s.writeLocked("")
	subs := s.subscribersLocked()
	s.mu.Unlock()

	if changed {
		notify(subs, "")
	}
}

// OnChange registers fn to be called with the new token value whenever the
// stored token changes (including clears, which deliver ""). It returns a
// cancel function that removes the subscription.
func (s *Store) OnChange(fn func(token string)) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Close releases the underlying database, if any.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// writeLocked stores token ("" deletes) and reports whether the visible value
// changed. Persistence errors degrade to the in-memory fallback.
func (s *Store) writeLocked(token string) bool {
	prev := s.currentLocked()

	if s.db != nil {
		var err error
		if token == "" {
			_, err = s.db.Exec(`DELETE FROM auth_token WHERE key = ?`, slotKey)
		} else {
			_, err = s.db.Exec(`INSERT OR REPLACE INTO auth_token (key, token, updated_at) VALUES (?, ?, ?)`,
				slotKey, token, time.Now().UTC().Format(time.RFC3339))
		}
		if err != nil {
			s.degradeLocked(err)
		}
	}
	s.mem = token

	return prev != token
}

func (s *Store) currentLocked() string {
	if s.db == nil {
		return s.mem
	}
	var token string
	err := s.db.QueryRow(`SELECT token FROM auth_token WHERE key = ?`, slotKey).Scan(&token)
	if err != nil {
		return s.mem
	}
	return token
}

// degradeLocked permanently switches to the in-memory fallback after a
// persistence failure mid-flight.
func (s *Store) degradeLocked(err error) {
	s.logger.Warn("token store: persistent write failed, degrading to in-memory fallback",
		slog.String("error", err.Error()))
	_ = s.db.Close()
	s.db = nil
}

func (s *Store) subscribersLocked() []func(string) {
	subs := make([]func(string), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	return subs
}

func notify(subs []func(string), token string) {
	for _, fn := range subs {
		fn(token)
	}
}
