package dedup

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/amishk599/gigradar/internal/model"
)

var _ model.DedupStore = (*SQLiteStore)(nil)

// SQLiteStore keeps dedup keys with expiry times in a SQLite database, so
// suppression survives a process restart on a single host.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and ensures the
// dedup_keys table exists.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Verify the connection is alive.
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	// Concurrent workers share one handle; a single connection avoids
	// SQLITE_BUSY between them.
	db.SetMaxOpenConns(1)

	createTable := `CREATE TABLE IF NOT EXISTS dedup_keys (
		key        TEXT PRIMARY KEY,
		expires_at INTEGER NOT NULL
	)`
	if _, err := db.Exec(createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating dedup_keys table: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Exists returns true if key was marked and has not expired yet.
func (s *SQLiteStore) Exists(ctx context.Context, key string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM dedup_keys WHERE key = ? AND expires_at > ?",
		key, s.now().UnixNano(),
	).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking dedup key %s: %w", key, err)
	}
	return true, nil
}

// Mark records key until ttl elapses. Re-marking extends the expiry.
func (s *SQLiteStore) Mark(ctx context.Context, key string, ttl time.Duration) error {
	expiresAt := s.now().Add(ttl).UnixNano()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO dedup_keys (key, expires_at) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET expires_at = excluded.expires_at`,
		key, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("marking dedup key %s: %w", key, err)
	}
	return nil
}

// Sweep deletes expired keys and returns how many were removed.
func (s *SQLiteStore) Sweep(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM dedup_keys WHERE expires_at <= ?", s.now().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("sweeping expired dedup keys: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
