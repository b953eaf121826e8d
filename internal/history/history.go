// Package history records backup run summaries in SQLite so operators can
// answer "when did this user's jobs last succeed" without scraping logs.
package history

import (
	"database/sql"
	"fmt"

	"maxbackup/internal/backup"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Store persists runs in a SQLite database.
type Store struct {
	db *sql.DB
}

// NewStore opens (creating and migrating as needed) the run database at
// path. path can be ":memory:" for tests.
func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("configuring history database: %w", err)
	}

	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating history database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordRun inserts one finished run.
func (s *Store) RecordRun(run backup.Run) error {
	_, err := s.db.Exec(`
		INSERT INTO backup_runs
		    (id, sid, job, started_at, finished_at,
		     backup_count, up_to_date_count, error_count, missing_count, byte_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.SID, run.Job, run.StartedAt.UTC(), run.FinishedAt.UTC(),
		run.Stats.BackupCount, run.Stats.UpToDateCount,
		run.Stats.ErrorCount, run.Stats.MissingCount, run.Stats.ByteCount,
	)
	if err != nil {
		return fmt.Errorf("recording run: %w", err)
	}
	return nil
}

// RecentRuns returns up to limit runs for sid, newest first.
func (s *Store) RecentRuns(sid string, limit int) ([]backup.Run, error) {
	rows, err := s.db.Query(`
		SELECT id, sid, job, started_at, finished_at,
		       backup_count, up_to_date_count, error_count, missing_count, byte_count
		FROM backup_runs
		WHERE sid = ?
		ORDER BY started_at DESC
		LIMIT ?`,
		sid, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []backup.Run
	for rows.Next() {
		var run backup.Run
		if err := rows.Scan(
			&run.ID, &run.SID, &run.Job, &run.StartedAt, &run.FinishedAt,
			&run.Stats.BackupCount, &run.Stats.UpToDateCount,
			&run.Stats.ErrorCount, &run.Stats.MissingCount, &run.Stats.ByteCount,
		); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading runs: %w", err)
	}
	return runs, nil
}

// Compile-time check that Store implements backup.RunRecorder.
var _ backup.RunRecorder = (*Store)(nil)
