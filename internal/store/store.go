// Package store persists job rows, per-row extraction results, and user
// feedback in SQLite. Payloads are stored as JSON so the schema tracks
// the domain types without migrations for every field change.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/siftlabs/sift/internal/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS rows (
	job_id   TEXT NOT NULL,
	row_id   TEXT NOT NULL,
	position INTEGER NOT NULL,
	payload  TEXT NOT NULL,
	PRIMARY KEY (job_id, row_id)
);

CREATE TABLE IF NOT EXISTS results (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	job_id   TEXT NOT NULL,
	row_id   TEXT NOT NULL,
	payload  TEXT NOT NULL,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_results_job ON results(job_id);

CREATE TABLE IF NOT EXISTS feedback (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	job_id   TEXT NOT NULL,
	row_id   TEXT NOT NULL,
	category TEXT NOT NULL,
	payload  TEXT NOT NULL,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_feedback_job ON feedback(job_id);
CREATE INDEX IF NOT EXISTS idx_feedback_category ON feedback(category);
`

// Store is the SQLite-backed persistence layer. One Store serves the
// row, result, and feedback contracts.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (or creates) the database under dataDir. If dataDir is
// empty, defaults to ~/.sift/data/sift.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".sift", "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "sift.db")

	// WAL mode for concurrent readers during job runs
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &Store{db: db, path: dbPath}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// PutRows stores the input rows for a job, replacing any prior set.
func (s *Store) PutRows(ctx context.Context, jobID string, rows []types.Row) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM rows WHERE job_id = ?", jobID); err != nil {
		return fmt.Errorf("clearing rows: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO rows (job_id, row_id, position, payload)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for i, row := range rows {
		payload, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("marshalling row %s: %w", row.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, jobID, row.ID, i, string(payload)); err != nil {
			return fmt.Errorf("saving row %s: %w", row.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// GetRows returns the input rows for a job in submission order.
func (s *Store) GetRows(ctx context.Context, jobID string) ([]types.Row, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload FROM rows WHERE job_id = ? ORDER BY position
	`, jobID)
	if err != nil {
		return nil, fmt.Errorf("querying rows: %w", err)
	}
	defer rows.Close()

	var out []types.Row //nolint:prealloc // size unknown from query
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		var r types.Row
		if err := json.Unmarshal([]byte(payload), &r); err != nil {
			return nil, fmt.Errorf("unmarshaling row: %w", err)
		}
		out = append(out, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	return out, nil
}

// AppendResult stores one per-row result.
func (s *Store) AppendResult(ctx context.Context, jobID string, result types.RowResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshalling result: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO results (job_id, row_id, payload)
		VALUES (?, ?, ?)
	`, jobID, result.RowID, string(payload))
	if err != nil {
		return fmt.Errorf("saving result: %w", err)
	}
	return nil
}

// GetResults returns the results for a job in processing order.
func (s *Store) GetResults(ctx context.Context, jobID string) ([]types.RowResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload FROM results WHERE job_id = ? ORDER BY id
	`, jobID)
	if err != nil {
		return nil, fmt.Errorf("querying results: %w", err)
	}
	defer rows.Close()

	var out []types.RowResult //nolint:prealloc // size unknown from query
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scanning result: %w", err)
		}
		var r types.RowResult
		if err := json.Unmarshal([]byte(payload), &r); err != nil {
			return nil, fmt.Errorf("unmarshaling result: %w", err)
		}
		out = append(out, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating results: %w", err)
	}
	return out, nil
}

// SaveFeedback stores a batch of feedback items.
func (s *Store) SaveFeedback(ctx context.Context, items []types.Feedback) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO feedback (job_id, row_id, category, payload, created_at)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, fb := range items {
		payload, err := json.Marshal(fb)
		if err != nil {
			return fmt.Errorf("marshalling feedback: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, fb.JobID, fb.RowID, fb.Category, string(payload), fb.CreatedAt); err != nil {
			return fmt.Errorf("saving feedback: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// FeedbackByJob returns all feedback recorded against a job.
func (s *Store) FeedbackByJob(ctx context.Context, jobID string) ([]types.Feedback, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload FROM feedback WHERE job_id = ? ORDER BY id
	`, jobID)
	if err != nil {
		return nil, fmt.Errorf("querying feedback: %w", err)
	}
	defer rows.Close()

	return scanFeedback(rows)
}

// RecentFeedbackByCategory returns the newest feedback for a category,
// across jobs, up to limit items.
func (s *Store) RecentFeedbackByCategory(ctx context.Context, category string, limit int) ([]types.Feedback, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload FROM feedback
		WHERE category = ?
		ORDER BY id DESC
		LIMIT ?
	`, category, limit)
	if err != nil {
		return nil, fmt.Errorf("querying feedback: %w", err)
	}
	defer rows.Close()

	return scanFeedback(rows)
}

func scanFeedback(rows *sql.Rows) ([]types.Feedback, error) {
	var out []types.Feedback //nolint:prealloc // size unknown from query
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scanning feedback: %w", err)
		}
		var fb types.Feedback
		if err := json.Unmarshal([]byte(payload), &fb); err != nil {
			return nil, fmt.Errorf("unmarshaling feedback: %w", err)
		}
		out = append(out, fb)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating feedback: %w", err)
	}
	return out, nil
}
