package registry

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteRegistry persists reservations so identifiers stay unique across restarts.
type SQLiteRegistry struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRegistry opens (or creates) the registry database.
// Use ":memory:" for an in-memory database.
func NewSQLiteRegistry(dbPath string) (*SQLiteRegistry, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)

	r := &SQLiteRegistry{db: db}
	if err := r.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return r, nil
}

func (r *SQLiteRegistry) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		reserved_at INTEGER NOT NULL
	);
	`
	_, err := r.db.Exec(schema)
	return err
}

func (r *SQLiteRegistry) Reserve(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO projects (id, reserved_at) VALUES (?, ?)",
		id, time.Now().Unix(),
	)
	if err != nil {
		return false, fmt.Errorf("insert project: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// Count returns the number of reserved identifiers.
func (r *SQLiteRegistry) Count(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM projects").Scan(&n); err != nil {
		return 0, fmt.Errorf("count projects: %w", err)
	}
	return n, nil
}

func (r *SQLiteRegistry) Close() error {
	return r.db.Close()
}
