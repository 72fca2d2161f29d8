package database

import (
	"database/sql"
	"errors"
)

// InsertReport inserts or replaces the report of a run.
func (db *DB) InsertReport(runID int64, bodyMarkdown string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO reports (run_id, body_markdown) VALUES (?, ?)",
		runID, bodyMarkdown,
	)
	return err
}

// GetReport returns the report of a run, or nil if none was composed.
func (db *DB) GetReport(runID int64) (*Report, error) {
	row := db.conn.QueryRow(
		"SELECT run_id, body_markdown, generated_at FROM reports WHERE run_id = ?", runID,
	)

	var r Report
	if err := row.Scan(&r.RunID, &r.BodyMarkdown, &r.GeneratedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &r, nil
}

// GetStats returns aggregate database statistics.
func (db *DB) GetStats() (*Stats, error) {
	s := &Stats{}

	queries := []struct {
		sql  string
		dest *int
	}{
		{"SELECT COUNT(*) FROM runs", &s.Runs},
		{"SELECT COUNT(*) FROM runs WHERE status = 'success'", &s.SuccessfulRuns},
		{"SELECT COUNT(*) FROM events", &s.Events},
		{"SELECT COUNT(DISTINCT category) FROM events", &s.Categories},
		{"SELECT COUNT(*) FROM events WHERE image_saved = 1", &s.ImagesSaved},
		{"SELECT COUNT(*) FROM reports", &s.Reports},
	}

	for _, q := range queries {
		if err := db.conn.QueryRow(q.sql).Scan(q.dest); err != nil {
			return nil, err
		}
	}

	return s, nil
}
