package database

import (
	"crypto/rand"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

func newRunID(t time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// StartRun records a new run and returns its id.
func (db *DB) StartRun(inputPath string, startedAt time.Time) (string, error) {
	id := newRunID(startedAt)
	_, err := db.conn.Exec(
		"INSERT INTO runs (id, input_path, started_at) VALUES (?, ?, ?)",
		id, inputPath, formatTime(startedAt),
	)
	if err != nil {
		return "", fmt.Errorf("recording run: %w", err)
	}
	return id, nil
}

// FinishRun stores the run's counts and completion time. A non-nil runErr
// marks the run as failed.
func (db *DB) FinishRun(id string, counts RunCounts, finishedAt time.Time, runErr error) error {
	var errText *string
	if runErr != nil {
		s := runErr.Error()
		errText = &s
	}
	res, err := db.conn.Exec(
		`UPDATE runs SET finished_at = ?, input_rows = ?, resolved = ?, unresolved = ?,
		enriched = ?, hijack = ?, alternative = ?, error = ? WHERE id = ?`,
		formatTime(finishedAt), counts.InputRows, counts.Resolved, counts.Unresolved,
		counts.Enriched, counts.Hijack, counts.Alternative, errText, id,
	)
	if err != nil {
		return fmt.Errorf("finishing run %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finishing run %s: no such run", id)
	}
	return nil
}

const runColumns = `id, input_path, started_at, finished_at, input_rows, resolved,
	unresolved, enriched, hijack, alternative, error`

// GetRun returns a run by id, or nil if it does not exist.
func (db *DB) GetRun(id string) (*Run, error) {
	row := db.conn.QueryRow("SELECT "+runColumns+" FROM runs WHERE id = ?", id)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// GetRecentRuns returns up to limit runs, newest first.
func (db *DB) GetRecentRuns(limit int) ([]Run, error) {
	rows, err := db.conn.Query("SELECT "+runColumns+" FROM runs ORDER BY id DESC LIMIT ?", limit)
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

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var (
		r                 Run
		started, finished sql.NullString
		errText           sql.NullString
	)
	if err := s.Scan(&r.ID, &r.InputPath, &started, &finished,
		&r.Counts.InputRows, &r.Counts.Resolved, &r.Counts.Unresolved,
		&r.Counts.Enriched, &r.Counts.Hijack, &r.Counts.Alternative, &errText); err != nil {
		return nil, err
	}
	r.StartedAt = parseTime(started)
	r.FinishedAt = parseTime(finished)
	r.Error = errText.String
	return &r, nil
}

// GetStats returns aggregate database statistics.
func (db *DB) GetStats() (*Stats, error) {
	var s Stats
	queries := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM runs", &s.Runs},
		{"SELECT COUNT(*) FROM opportunities", &s.Opportunities},
		{"SELECT COUNT(*) FROM opportunities WHERE path_reco = 'Hijack'", &s.Hijack},
		{"SELECT COUNT(*) FROM baselines", &s.Baselines},
	}
	for _, q := range queries {
		if err := db.conn.QueryRow(q.query).Scan(q.dest); err != nil {
			return nil, err
		}
	}
	return &s, nil
}
