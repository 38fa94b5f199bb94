// Package journal records every run that rewrote notes, together with the
// previous file contents, in a SQLite database so runs can be listed and undone.
package journal

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/fme/internal/models"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	operation   TEXT NOT NULL,
	args        TEXT NOT NULL DEFAULT '[]',
	dir         TEXT NOT NULL,
	recursive   INTEGER NOT NULL DEFAULT 0,
	started_at  DATETIME NOT NULL,
	finished_at DATETIME,
	updated     INTEGER NOT NULL DEFAULT 0,
	failed      INTEGER NOT NULL DEFAULT 0,
	undone_at   DATETIME
);

CREATE TABLE IF NOT EXISTS changes (
	run_id          TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	path            TEXT NOT NULL,
	before_checksum TEXT NOT NULL,
	after_checksum  TEXT NOT NULL,
	before_content  BLOB NOT NULL,
	UNIQUE(run_id, path)
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
CREATE INDEX IF NOT EXISTS idx_changes_run ON changes(run_id);
`

// Journal defines the run log operations. Consumers depend on this interface
// rather than the concrete *DB type.
type Journal interface {
	BeginRun(r models.Run) (string, error)
	RecordChange(c models.Change) error
	FinishRun(id string, updated, failed int) error
	Run(id string) (*models.Run, error)
	LatestRun() (*models.Run, error)
	Runs(limit int) ([]models.Run, error)
	Changes(runID string) ([]models.Change, error)
	MarkUndone(id string) error
	Close() error
}

// Verify *DB satisfies Journal at compile time.
var _ Journal = (*DB)(nil)

// DB wraps a sql.DB with journal-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("journal: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("journal: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("journal: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
