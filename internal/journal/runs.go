package journal

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/starford/fme/internal/apperr"
	"github.com/starford/fme/internal/models"
)

const runColumns = `id, operation, args, dir, recursive, started_at, finished_at, updated, failed, undone_at`

// BeginRun stores a new run and returns its generated ID. r.ID and
// r.StartedAt are filled in when empty.
func (db *DB) BeginRun(r models.Run) (string, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now().UTC()
	}
	args := r.Args
	if args == nil {
		args = []string{}
	}
	argsJSON, _ := json.Marshal(args)

	_, err := db.conn.Exec(`
		INSERT INTO runs (id, operation, args, dir, recursive, started_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, r.ID, r.Operation, string(argsJSON), r.Dir, r.Recursive, r.StartedAt)
	if err != nil {
		return "", fmt.Errorf("journal: begin run: %w", err)
	}
	return r.ID, nil
}

// RecordChange stores the content a file had before the run rewrote it.
// A second change for the same path in a run keeps the first before-state.
func (db *DB) RecordChange(c models.Change) error {
	before := c.Before
	if before == nil {
		before = []byte{}
	}
	_, err := db.conn.Exec(`
		INSERT INTO changes (run_id, path, before_checksum, after_checksum, before_content)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(run_id, path) DO UPDATE SET
			after_checksum = excluded.after_checksum
	`, c.RunID, c.Path, c.BeforeChecksum, c.AfterChecksum, before)
	if err != nil {
		return fmt.Errorf("journal: record change: %w", err)
	}
	return nil
}

// FinishRun stores the final counters of a run.
func (db *DB) FinishRun(id string, updated, failed int) error {
	res, err := db.conn.Exec(`
		UPDATE runs SET finished_at = ?, updated = ?, failed = ? WHERE id = ?
	`, time.Now().UTC(), updated, failed, id)
	if err != nil {
		return fmt.Errorf("journal: finish run: %w", err)
	}
	return expectRow(res, id)
}

// MarkUndone flags a run as reverted.
func (db *DB) MarkUndone(id string) error {
	res, err := db.conn.Exec(`UPDATE runs SET undone_at = ? WHERE id = ?`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("journal: mark undone: %w", err)
	}
	return expectRow(res, id)
}

// Run returns the run with the given ID, or apperr.ErrNotFound.
func (db *DB) Run(id string) (*models.Run, error) {
	row := db.conn.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("journal: run %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("journal: run %s: %w", id, err)
	}
	return r, nil
}

// LatestRun returns the most recent run that changed files and was not undone.
func (db *DB) LatestRun() (*models.Run, error) {
	row := db.conn.QueryRow(`
		SELECT ` + runColumns + ` FROM runs
		WHERE undone_at IS NULL AND updated > 0
		ORDER BY started_at DESC, rowid DESC
		LIMIT 1
	`)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("journal: latest run: %w", apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("journal: latest run: %w", err)
	}
	return r, nil
}

// Runs returns up to limit runs, newest first.
func (db *DB) Runs(limit int) ([]models.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT `+runColumns+` FROM runs
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: runs: %w", err)
	}
	defer rows.Close()

	var out []models.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// Changes returns the files rewritten by a run, ordered by path.
func (db *DB) Changes(runID string) ([]models.Change, error) {
	rows, err := db.conn.Query(`
		SELECT run_id, path, before_checksum, after_checksum, before_content
		FROM changes WHERE run_id = ?
		ORDER BY path
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("journal: changes: %w", err)
	}
	defer rows.Close()

	var out []models.Change
	for rows.Next() {
		var c models.Change
		if err := rows.Scan(&c.RunID, &c.Path, &c.BeforeChecksum, &c.AfterChecksum, &c.Before); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*models.Run, error) {
	var (
		r        models.Run
		args     string
		finished sql.NullTime
		undone   sql.NullTime
	)
	if err := s.Scan(&r.ID, &r.Operation, &args, &r.Dir, &r.Recursive, &r.StartedAt,
		&finished, &r.Updated, &r.Failed, &undone); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(args), &r.Args); err != nil {
		return nil, fmt.Errorf("journal: decode args of run %s: %w", r.ID, err)
	}
	if finished.Valid {
		r.FinishedAt = &finished.Time
	}
	if undone.Valid {
		r.UndoneAt = &undone.Time
	}
	return &r, nil
}

func expectRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("journal: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("journal: run %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}
