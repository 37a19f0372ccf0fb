package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// MemoDBName is the memo database filename inside the cache root.
const MemoDBName = "memo.db"

// Memo is the persisted memo table mapping argument-tuple keys to run
// results.
type Memo struct {
	db *sql.DB
}

// OpenMemo creates or opens the memo database at the given path.
// Idempotent; safe to call on an existing database.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode
//   - 5-second busy timeout for lock contention
func OpenMemo(path string) (*Memo, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("memo: open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("memo: connect: %w", err)
	}

	// SQLite supports one writer at a time; a single connection avoids
	// SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("memo: %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("memo: apply schema: %w", err)
	}
	return &Memo{db: db}, nil
}

// Close closes the database connection.
func (m *Memo) Close() error {
	if m.db == nil {
		return nil
	}
	return m.db.Close()
}

// Get returns the stored result for key, or ok=false on a miss.
func (m *Memo) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var result []byte
	err := m.db.QueryRowContext(ctx, `SELECT result FROM runs WHERE key = ?`, key).Scan(&result)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("memo: get: %w", err)
	}
	return result, true, nil
}

// Put records a result for key. A duplicate key is silently ignored: memo
// entries are write-once and the first result wins.
func (m *Memo) Put(ctx context.Context, key string, result []byte) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO runs (key, result) VALUES (?, ?)
		ON CONFLICT(key) DO NOTHING
	`, key, result)
	if err != nil {
		return fmt.Errorf("memo: put: %w", err)
	}
	return nil
}

// Len reports the number of memo entries.
func (m *Memo) Len(ctx context.Context) (int, error) {
	var n int
	if err := m.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("memo: count: %w", err)
	}
	return n, nil
}

// ClearAll deletes every memo entry.
func (m *Memo) ClearAll(ctx context.Context) error {
	if _, err := m.db.ExecContext(ctx, `DELETE FROM runs`); err != nil {
		return fmt.Errorf("memo: clear: %w", err)
	}
	return nil
}
