package sessioncache

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

// SQLite is a Cache backed by modernc.org/sqlite, a pure-Go cgo-free driver,
// for single-process deployments that want the cache to survive a restart
// despite the gateway itself carrying no other persistent state.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if absent) the cache database at path and
// ensures its schema exists.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS session_cache (
			key        TEXT PRIMARY KEY,
			value      BLOB NOT NULL,
			updated_at INTEGER NOT NULL,
			expires_at INTEGER NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, err
	}
	// thought_sig_order tracks unhashed (session_key, call_id) pairs so the
	// 100-entry LRU cap can be enforced per session; session_cache's keys
	// are hashed and can't be queried by session.
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS thought_sig_order (
			session_key TEXT NOT NULL,
			call_id     TEXT NOT NULL,
			updated_at  INTEGER NOT NULL,
			PRIMARY KEY (session_key, call_id)
		)
	`); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

// Get treats any query error as a miss: cache I/O never surfaces as a
// request error.
func (s *SQLite) Get(ctx context.Context, sessionKey string, ns Namespace) ([]byte, bool) {
	key := StorageKey(ns, sessionKey)
	var value []byte
	var expiresAt int64
	row := s.db.QueryRowContext(ctx, `SELECT value, expires_at FROM session_cache WHERE key = ?`, key)
	if err := row.Scan(&value, &expiresAt); err != nil {
		return nil, false
	}
	if time.Now().Unix() > expiresAt {
		return nil, false
	}
	return value, true
}

func (s *SQLite) Put(ctx context.Context, sessionKey string, ns Namespace, value []byte) error {
	key := StorageKey(ns, sessionKey)
	now := time.Now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session_cache (key, value, updated_at, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at, expires_at=excluded.expires_at
	`, key, value, now.Unix(), now.Add(retention).Unix())
	return err
}

// GetThoughtSignature returns the signature recorded for callID within
// sessionKey, or false if absent or expired.
func (s *SQLite) GetThoughtSignature(ctx context.Context, sessionKey, callID string) (string, bool) {
	value, ok := s.Get(ctx, sessionKey+"\x00"+callID, NamespaceThoughtSignature)
	if !ok {
		return "", false
	}
	return string(value), true
}

// PutThoughtSignature records one call_id's thought signature for a
// session, then evicts the oldest entry if the session's map has grown
// past thoughtSigCap.
func (s *SQLite) PutThoughtSignature(ctx context.Context, sessionKey, callID, signature string) error {
	if err := s.Put(ctx, sessionKey+"\x00"+callID, NamespaceThoughtSignature, []byte(signature)); err != nil {
		return err
	}
	now := time.Now().Unix()
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO thought_sig_order (session_key, call_id, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(session_key, call_id) DO UPDATE SET updated_at=excluded.updated_at
	`, sessionKey, callID, now); err != nil {
		return err
	}
	return s.evictOldestThoughtSig(ctx, sessionKey)
}

func (s *SQLite) evictOldestThoughtSig(ctx context.Context, sessionKey string) error {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM thought_sig_order WHERE session_key = ?`, sessionKey).Scan(&count); err != nil {
		return err
	}
	if count <= thoughtSigCap {
		return nil
	}
	var callID string
	if err := s.db.QueryRowContext(ctx, `SELECT call_id FROM thought_sig_order WHERE session_key = ? ORDER BY updated_at ASC LIMIT 1`, sessionKey).Scan(&callID); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM session_cache WHERE key = ?`, StorageKey(NamespaceThoughtSignature, sessionKey+"\x00"+callID)); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM thought_sig_order WHERE session_key = ? AND call_id = ?`, sessionKey, callID)
	return err
}

// Sweep deletes every row past its expiry, returning the count removed.
func (s *SQLite) Sweep(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM session_cache WHERE expires_at < ?`, time.Now().Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// LogSweepResult is a small slog helper so the sweeper (gronx.go) and
// direct callers share one log line shape.
func LogSweepResult(logger *slog.Logger, removed int64, err error) {
	if err != nil {
		logger.Warn("session cache sweep failed", "error", err)
		return
	}
	logger.Debug("session cache swept", "removed", removed)
}
