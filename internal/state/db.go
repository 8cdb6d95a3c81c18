// Package state provides SQLite-based persistence for taskhunter.
// It stores tasks, their micro-units, and the append-only execution log
// (~/.local/share/taskhunter/taskhunter.db by default).
package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// ErrStore marks a failure of the underlying database. Operations that fail
// with ErrStore have been rolled back.
var ErrStore = errors.New("store failure")

// Querier is satisfied by both *sql.DB and *sql.Tx so the same queries can
// run inside or outside a transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DB wraps an SQLite database connection with taskhunter-specific operations.
type DB struct {
	conn *sql.DB
	path string
	mu   sync.RWMutex
}

// Open opens an SQLite database at the given path.
// It creates the parent directories if they don't exist.
// Foreign keys are enforced on every connection; WAL mode is enabled.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Single writer: one connection serializes every statement.
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	return &DB{
		conn: conn,
		path: path,
	}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.conn.Close()
}

// Path returns the path to the database file.
func (db *DB) Path() string {
	return db.path
}

// Migrate applies all pending schema migrations.
func (db *DB) Migrate() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var currentVersion int
	row := db.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migrationV1Tasks},
		{2, migrationV2Units},
		{3, migrationV3Executions},
		{4, migrationV4TaskSearch},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}

		tx, err := db.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}

		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration v%d: %w", m.version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration v%d: %w", m.version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// Migration SQL statements
const migrationV1Tasks = `
CREATE TABLE IF NOT EXISTS tasks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	content TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending',
	priority INTEGER NOT NULL DEFAULT 50,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	metadata TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
CREATE INDEX IF NOT EXISTS idx_tasks_priority ON tasks(priority DESC);
`

const migrationV2Units = `
CREATE TABLE IF NOT EXISTS micro_units (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	task_id INTEGER NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
	description TEXT NOT NULL,
	sequence_order INTEGER NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending',
	estimated_minutes INTEGER,
	actual_minutes INTEGER,
	completed_at DATETIME,
	metadata TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_micro_units_task_id ON micro_units(task_id);
CREATE INDEX IF NOT EXISTS idx_micro_units_status ON micro_units(status);
`

const migrationV3Executions = `
CREATE TABLE IF NOT EXISTS executions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	micro_unit_id INTEGER NOT NULL REFERENCES micro_units(id) ON DELETE CASCADE,
	started_at DATETIME NOT NULL,
	completed_at DATETIME,
	success INTEGER NOT NULL DEFAULT 0,
	notes TEXT
);

CREATE INDEX IF NOT EXISTS idx_executions_unit ON executions(micro_unit_id);
CREATE INDEX IF NOT EXISTS idx_executions_completed_at ON executions(completed_at);
`

const migrationV4TaskSearch = `
CREATE VIRTUAL TABLE IF NOT EXISTS tasks_fts USING fts5(
	content,
	content='tasks',
	content_rowid='id'
);

INSERT INTO tasks_fts(rowid, content) SELECT id, content FROM tasks;

CREATE TRIGGER IF NOT EXISTS tasks_ai AFTER INSERT ON tasks BEGIN
	INSERT INTO tasks_fts(rowid, content) VALUES (NEW.id, NEW.content);
END;

CREATE TRIGGER IF NOT EXISTS tasks_ad AFTER DELETE ON tasks BEGIN
	INSERT INTO tasks_fts(tasks_fts, rowid, content) VALUES ('delete', OLD.id, OLD.content);
END;

CREATE TRIGGER IF NOT EXISTS tasks_au AFTER UPDATE OF content ON tasks BEGIN
	INSERT INTO tasks_fts(tasks_fts, rowid, content) VALUES ('delete', OLD.id, OLD.content);
	INSERT INTO tasks_fts(rowid, content) VALUES (NEW.id, NEW.content);
END;
`

// Transaction runs fn within a transaction. The transaction is rolled back
// if fn returns an error or panics, and committed otherwise. fn must use tx
// for every statement; calling other DB methods from inside fn deadlocks.
func (db *DB) Transaction(ctx context.Context, fn func(tx *sql.Tx) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w: %w", ErrStore, err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w: %w", ErrStore, err)
	}
	return nil
}

// View runs fn against the connection for read-only work.
func (db *DB) View(ctx context.Context, fn func(q Querier) error) error {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return fn(db.conn)
}

// Exec executes a query that doesn't return rows.
func (db *DB) Exec(query string, args ...any) (sql.Result, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.conn.Exec(query, args...)
}

// QueryRow executes a query that returns at most one row.
func (db *DB) QueryRow(query string, args ...any) *sql.Row {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.conn.QueryRow(query, args...)
}

// storeErr wraps a database error so callers can match ErrStore.
func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStore, err)
}

// formatTime formats a time.Time for SQLite storage.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// parseTime parses a time string from SQLite.
func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

// parseNullableTime parses a nullable time string from SQLite.
func parseNullableTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil
	}
	return &t
}

// nullableTime converts an optional time to an SQLite value.
func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

// nullableInt converts an optional int to an SQLite value.
func nullableInt(n *int) any {
	if n == nil {
		return nil
	}
	return *n
}

// intPtr converts a nullable SQLite integer to an optional int.
func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

// PurgeCompleted deletes complete and archived tasks last updated before the
// cutoff, together with their units and executions.
// Returns the number of tasks deleted.
func (db *DB) PurgeCompleted(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := formatTime(time.Now().Add(-olderThan))

	var count int64
	err := db.Transaction(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			DELETE FROM tasks WHERE status IN ('complete', 'archived') AND updated_at < ?
		`, cutoff)
		if err != nil {
			return storeErr("purge completed tasks", err)
		}
		count, err = result.RowsAffected()
		if err != nil {
			return storeErr("get rows affected", err)
		}
		return nil
	})
	return count, err
}
