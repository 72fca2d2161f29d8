package database

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "runs, ranked events and reports",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    started_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
    finished_at TEXT,
    status TEXT NOT NULL DEFAULT 'running'
        CHECK(status IN ('running', 'success', 'partial', 'failed')),
    pages INTEGER DEFAULT 0,
    record_count INTEGER DEFAULT 0,
    summary TEXT
);

CREATE TABLE IF NOT EXISTS events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    category TEXT NOT NULL,
    position INTEGER NOT NULL,
    record_id TEXT,
    detail_url TEXT NOT NULL,
    fields TEXT NOT NULL,
    pass_events TEXT,
    image_url TEXT,
    image_saved INTEGER DEFAULT 0,
    enriched INTEGER DEFAULT 0,
    detail_error TEXT,
    score_data TEXT NOT NULL,
    exist REAL DEFAULT 0,
    score INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS reports (
    run_id INTEGER PRIMARY KEY REFERENCES runs(id) ON DELETE CASCADE,
    body_markdown TEXT NOT NULL,
    generated_at TEXT DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
);

CREATE INDEX IF NOT EXISTS idx_events_run ON events(run_id, category, position);
`)
			return err
		},
	},
	{
		Version:     2,
		Description: "pagination tokens per run and category",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS page_tokens (
    run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    category TEXT NOT NULL,
    token TEXT NOT NULL,
    pages INTEGER NOT NULL,
    PRIMARY KEY (run_id, category)
);
`)
			return err
		},
	},
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
