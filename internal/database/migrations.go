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
		Description: "run history",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    input_path TEXT NOT NULL,
    started_at TEXT NOT NULL,
    finished_at TEXT,
    input_rows INTEGER DEFAULT 0,
    resolved INTEGER DEFAULT 0,
    unresolved INTEGER DEFAULT 0,
    enriched INTEGER DEFAULT 0,
    hijack INTEGER DEFAULT 0,
    alternative INTEGER DEFAULT 0,
    error TEXT
);

CREATE TABLE IF NOT EXISTS opportunities (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL REFERENCES runs(id),
    thread_id TEXT NOT NULL,
    keyword TEXT,
    subreddit TEXT,
    title TEXT,
    reddit_url TEXT,
    score INTEGER DEFAULT 0,
    num_comments INTEGER DEFAULT 0,
    age_days INTEGER DEFAULT 0,
    recent_comments_72h INTEGER DEFAULT 0,
    avg_comment_len_words REAL DEFAULT 0,
    top_comment_score INTEGER DEFAULT 0,
    path_reco TEXT NOT NULL,
    reason TEXT NOT NULL,
    UNIQUE (run_id, thread_id)
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
CREATE INDEX IF NOT EXISTS idx_opportunities_run ON opportunities(run_id);
`)
			return err
		},
	},
	{
		Version:     2,
		Description: "community baseline cache",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS baselines (
    community TEXT PRIMARY KEY COLLATE NOCASE,
    median REAL NOT NULL,
    sample_size INTEGER NOT NULL,
    sampled_at TEXT NOT NULL
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
