// Package catalog records import runs in a SQLite manifest: one row per
// run plus one row per written file with its checksum.
package catalog

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS runs (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	source        TEXT NOT NULL,
	output        TEXT NOT NULL,
	format        TEXT NOT NULL,
	mode          TEXT NOT NULL,
	files_written INTEGER NOT NULL DEFAULT 0,
	dirs_created  INTEGER NOT NULL DEFAULT 0,
	error_count   INTEGER NOT NULL DEFAULT 0,
	started_at    DATETIME NOT NULL,
	finished_at   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS files (
	run_id   INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	path     TEXT NOT NULL,
	checksum TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_files_run ON files(run_id);
`

// DB wraps a sql.DB with catalog operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the catalog database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("catalog: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("catalog: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("catalog: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Run is one import run.
type Run struct {
	ID           int64
	Source       string
	Output       string
	Format       string
	Mode         string
	FilesWritten int
	DirsCreated  int
	ErrorCount   int
	StartedAt    time.Time
	FinishedAt   time.Time
}

// File is one written output file.
type File struct {
	Path     string
	Checksum string
}

// RecordRun inserts the run and its files in one transaction and returns
// the run id.
func (db *DB) RecordRun(run Run, files []File) (int64, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("catalog: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	res, err := tx.Exec(`
		INSERT INTO runs (source, output, format, mode, files_written, dirs_created, error_count, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.Source, run.Output, run.Format, run.Mode, run.FilesWritten, run.DirsCreated, run.ErrorCount, run.StartedAt, run.FinishedAt)
	if err != nil {
		return 0, fmt.Errorf("catalog: insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("catalog: run id: %w", err)
	}

	if len(files) > 0 {
		stmt, err := tx.Prepare(`INSERT INTO files (run_id, path, checksum) VALUES (?, ?, ?)`)
		if err != nil {
			return 0, fmt.Errorf("catalog: prepare file insert: %w", err)
		}
		defer stmt.Close()
		for _, f := range files {
			if _, err := stmt.Exec(id, f.Path, f.Checksum); err != nil {
				return 0, fmt.Errorf("catalog: insert file: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("catalog: commit: %w", err)
	}
	return id, nil
}

// LastRun returns the most recent run, or nil when the catalog is empty.
func (db *DB) LastRun() (*Run, error) {
	row := db.conn.QueryRow(`
		SELECT id, source, output, format, mode, files_written, dirs_created, error_count, started_at, finished_at
		FROM runs ORDER BY id DESC LIMIT 1
	`)
	var r Run
	err := row.Scan(&r.ID, &r.Source, &r.Output, &r.Format, &r.Mode, &r.FilesWritten, &r.DirsCreated, &r.ErrorCount, &r.StartedAt, &r.FinishedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: last run: %w", err)
	}
	return &r, nil
}

// FilesForRun returns the files recorded for a run, in insertion order.
func (db *DB) FilesForRun(runID int64) ([]File, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM files WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("catalog: files for run: %w", err)
	}
	defer rows.Close()

	var out []File
	for rows.Next() {
		var f File
		if err := rows.Scan(&f.Path, &f.Checksum); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
