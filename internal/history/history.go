// Package history implements the audit-only run history store: a small
// SQLite table of past rrdpd invocations, independent of the RRDP state
// itself. The table has no directory/file/snapshot graph behind it, just
// one flat row per run, so its queries are hand-written rather than
// generated.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"rrdpd/internal/rrdp"
)

var errMigrate = errors.New("history: migration error")

// Recorder implements rrdp.HistoryRecorder against a SQLite database.
type Recorder struct {
	db   *sql.DB
	path string
}

// Open opens (creating if necessary) the run-history database at path
// and brings its schema up to date. path may be ":memory:" for tests.
func Open(path string) (*Recorder, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening history database: %v", rrdp.ErrIO, err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: enabling foreign keys: %v", rrdp.ErrIO, err)
	}
	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Recorder{db: db, path: path}, nil
}

// CheckMigrations verifies the database schema is up to date without
// modifying it.
func (r *Recorder) CheckMigrations() error {
	return checkDBMigrationStatus(r.db)
}

func (r *Recorder) Close() error {
	return r.db.Close()
}

var _ rrdp.HistoryRecorder = (*Recorder)(nil)

// Record inserts one publication run row. Runs are never updated or
// deleted; the table is an append-only audit log.
func (r *Recorder) Record(ctx context.Context, run rrdp.PublicationRun) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO publication_runs
			(id, started_at, finished_at, action, session_id, serial,
			 published_n, updated_n, withdrawn_n, cleaned_dirs, status, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID,
		run.StartedAt.UTC(),
		run.FinishedAt.UTC(),
		run.Kind.String(),
		run.SessionID,
		run.Serial,
		run.PublishedN,
		run.UpdatedN,
		run.WithdrawnN,
		run.CleanedDirs,
		status(run.Err),
		run.Err,
	)
	if err != nil {
		return fmt.Errorf("%w: inserting run history row: %v", rrdp.ErrIO, err)
	}
	return nil
}

func status(runErr string) string {
	if runErr == "" {
		return "success"
	}
	return "error"
}

// Run is one row read back from the history table, for `rrdpd history`.
type Run struct {
	RunID       string
	StartedAt   time.Time
	FinishedAt  time.Time
	Action      string
	SessionID   string
	Serial      uint64
	PublishedN  int
	UpdatedN    int
	WithdrawnN  int
	CleanedDirs int
	Status      string
	Detail      string
}

// List returns the most recent limit runs, newest first.
func (r *Recorder) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, action, session_id, serial,
		       published_n, updated_n, withdrawn_n, cleaned_dirs, status, detail
		FROM publication_runs
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: listing run history: %v", rrdp.ErrIO, err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var run Run
		if err := rows.Scan(&run.RunID, &run.StartedAt, &run.FinishedAt, &run.Action,
			&run.SessionID, &run.Serial, &run.PublishedN, &run.UpdatedN, &run.WithdrawnN,
			&run.CleanedDirs, &run.Status, &run.Detail); err != nil {
			return nil, fmt.Errorf("%w: scanning run history row: %v", rrdp.ErrIO, err)
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading run history: %v", rrdp.ErrIO, err)
	}
	return out, nil
}
