package storage

import (
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("storage: not found")

// ErrConflict is returned when a conditional write matched no rows, meaning
// the record was concurrently moved out of the expected state.
var ErrConflict = errors.New("storage: conflicting state")

// DB wraps a sql.DB connection to a SQLite database.
type DB struct {
	db *sql.DB
}

// NewDB opens (or creates) a SQLite database at path and runs schema migrations.
func NewDB(path string) (*DB, error) {
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	// Enable foreign keys.
	if _, err := sqlDB.Exec("PRAGMA foreign_keys = ON"); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	d := &DB{db: sqlDB}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return d, nil
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// migrate creates all required tables if they do not already exist.
func (d *DB) migrate() error {
	schema := `
CREATE TABLE IF NOT EXISTS agents (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    owner_address TEXT NOT NULL UNIQUE,
    did TEXT NOT NULL,
    model_type TEXT NOT NULL,
    model_version TEXT NOT NULL,
    specializations TEXT NOT NULL,
    registered_at INTEGER NOT NULL,
    active INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS attestations (
    id TEXT PRIMARY KEY,
    content_hash TEXT NOT NULL,
    reasoning_hash TEXT NOT NULL,
    agent_address TEXT NOT NULL,
    model_version TEXT NOT NULL,
    category TEXT NOT NULL,
    submitted_at INTEGER NOT NULL,
    status TEXT NOT NULL,
    consistency_score INTEGER NOT NULL DEFAULT 0,
    verifier TEXT NOT NULL DEFAULT '',
    verified_at INTEGER NOT NULL DEFAULT 0,
    challenger TEXT NOT NULL DEFAULT '',
    challenge_reason TEXT NOT NULL DEFAULT '',
    challenged_at INTEGER NOT NULL DEFAULT 0,
    reputation_applied INTEGER NOT NULL DEFAULT 0,
    FOREIGN KEY (agent_address) REFERENCES agents(owner_address)
);

CREATE INDEX IF NOT EXISTS idx_attestations_status ON attestations(status);
CREATE INDEX IF NOT EXISTS idx_attestations_agent ON attestations(agent_address);

CREATE TABLE IF NOT EXISTS reputation (
    agent_address TEXT PRIMARY KEY,
    total_attestations INTEGER NOT NULL DEFAULT 0,
    verified_attestations INTEGER NOT NULL DEFAULT 0,
    rejected_attestations INTEGER NOT NULL DEFAULT 0,
    average_consistency_score INTEGER NOT NULL DEFAULT 0,
    registered_at INTEGER NOT NULL,
    last_updated_at INTEGER NOT NULL,
    score INTEGER NOT NULL DEFAULT 0,
    FOREIGN KEY (agent_address) REFERENCES agents(owner_address)
);

CREATE TABLE IF NOT EXISTS verifiers (
    address TEXT PRIMARY KEY,
    added_at INTEGER NOT NULL
);
`
	if _, err := d.db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// boolToInt converts a bool to the 0/1 integer SQLite stores.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
