package database

import (
	"database/sql"
	"time"
)

// GetBaseline returns the cached baseline for a community, or nil if none
// has been sampled since notBefore.
func (db *DB) GetBaseline(community string, notBefore time.Time) (*Baseline, error) {
	row := db.conn.QueryRow(
		"SELECT community, median, sample_size, sampled_at FROM baselines WHERE community = ?",
		community,
	)

	var (
		b       Baseline
		sampled sql.NullString
	)
	if err := row.Scan(&b.Community, &b.Median, &b.SampleSize, &sampled); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	b.SampledAt = parseTime(sampled)
	if b.SampledAt.Before(notBefore) {
		return nil, nil
	}
	return &b, nil
}

// SaveBaseline inserts or replaces the cached baseline for a community.
func (db *DB) SaveBaseline(b Baseline) error {
	_, err := db.conn.Exec(
		`INSERT OR REPLACE INTO baselines (community, median, sample_size, sampled_at)
		VALUES (?, ?, ?, ?)`,
		b.Community, b.Median, b.SampleSize, formatTime(b.SampledAt),
	)
	return err
}

// PruneBaselines deletes baselines sampled before cutoff.
func (db *DB) PruneBaselines(cutoff time.Time) (int64, error) {
	res, err := db.conn.Exec("DELETE FROM baselines WHERE sampled_at < ?", formatTime(cutoff))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
