package database

import (
	"database/sql"
	"errors"
)

const runColumns = "id, started_at, finished_at, status, pages, record_count, summary"

// CreateRun records the start of a pipeline run and returns its ID.
func (db *DB) CreateRun() (int64, error) {
	result, err := db.conn.Exec("INSERT INTO runs (status) VALUES (?)", StatusRunning)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// FinishRun stamps a run with its outcome.
func (db *DB) FinishRun(runID int64, status string, pages, records int, summary string) error {
	var s *string
	if summary != "" {
		s = &summary
	}
	_, err := db.conn.Exec(
		`UPDATE runs SET finished_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now'),
		status = ?, pages = ?, record_count = ?, summary = ?
		WHERE id = ?`,
		status, pages, records, s, runID,
	)
	return err
}

// GetRun returns a run by ID, or nil if it does not exist.
func (db *DB) GetRun(runID int64) (*Run, error) {
	row := db.conn.QueryRow("SELECT "+runColumns+" FROM runs WHERE id = ?", runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

// GetLatestRun returns the most recent finished run that produced data,
// or nil if there is none.
func (db *DB) GetLatestRun() (*Run, error) {
	row := db.conn.QueryRow(
		"SELECT " + runColumns + ` FROM runs
		WHERE status IN ('success', 'partial')
		ORDER BY id DESC LIMIT 1`,
	)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

// GetAllRuns returns all runs, newest first.
func (db *DB) GetAllRuns() ([]Run, error) {
	rows, err := db.conn.Query("SELECT " + runColumns + " FROM runs ORDER BY id DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// PruneRuns deletes all but the newest keep runs together with their
// events and reports. It returns the number of runs removed.
func (db *DB) PruneRuns(keep int) (int64, error) {
	result, err := db.conn.Exec(
		`DELETE FROM runs WHERE id NOT IN (SELECT id FROM runs ORDER BY id DESC LIMIT ?)`,
		keep,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// SavePageToken records the pagination state a category ended on.
func (db *DB) SavePageToken(runID int64, category, token string, pages int) error {
	_, err := db.conn.Exec(
		`INSERT OR REPLACE INTO page_tokens (run_id, category, token, pages) VALUES (?, ?, ?, ?)`,
		runID, category, token, pages,
	)
	return err
}

// GetPageTokens returns the pagination state of every category of a run.
func (db *DB) GetPageTokens(runID int64) ([]PageToken, error) {
	rows, err := db.conn.Query(
		"SELECT run_id, category, token, pages FROM page_tokens WHERE run_id = ? ORDER BY category", runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []PageToken
	for rows.Next() {
		var t PageToken
		if err := rows.Scan(&t.RunID, &t.Category, &t.Token, &t.Pages); err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var r Run
	if err := s.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Status, &r.Pages, &r.RecordCount, &r.Summary); err != nil {
		return nil, err
	}
	return &r, nil
}
