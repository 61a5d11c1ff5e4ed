package database

import (
	"fmt"

	"github.com/TobiSchelling/threadscout/internal/model"
)

// InsertOpportunities stores a run's opportunity rows in one transaction.
func (db *DB) InsertOpportunities(runID string, opps []model.Opportunity) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO opportunities
		(run_id, thread_id, keyword, subreddit, title, reddit_url, score, num_comments,
		age_days, recent_comments_72h, avg_comment_len_words, top_comment_score, path_reco, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, o := range opps {
		t := o.Thread
		if _, err := stmt.Exec(runID, t.ID, t.Keyword, t.Subreddit, t.Title, t.URL,
			t.Score, t.NumComments, t.AgeDays, t.RecentComments72h,
			o.Comments.AvgLenWords, o.Comments.TopCommentScore,
			string(o.Recommendation), o.Reason); err != nil {
			return fmt.Errorf("storing opportunity %s: %w", t.ID, err)
		}
	}
	return tx.Commit()
}

// GetOpportunities returns a run's opportunities in insertion order.
func (db *DB) GetOpportunities(runID string) ([]model.Opportunity, error) {
	rows, err := db.conn.Query(`SELECT thread_id, keyword, subreddit, title, reddit_url,
		score, num_comments, age_days, recent_comments_72h, avg_comment_len_words,
		top_comment_score, path_reco, reason
		FROM opportunities WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var opps []model.Opportunity
	for rows.Next() {
		var (
			o    model.Opportunity
			reco string
		)
		if err := rows.Scan(&o.Thread.ID, &o.Thread.Keyword, &o.Thread.Subreddit, &o.Thread.Title,
			&o.Thread.URL, &o.Thread.Score, &o.Thread.NumComments, &o.Thread.AgeDays,
			&o.Thread.RecentComments72h, &o.Comments.AvgLenWords, &o.Comments.TopCommentScore,
			&reco, &o.Reason); err != nil {
			return nil, err
		}
		o.Comments.ID = o.Thread.ID
		o.Comments.URL = o.Thread.URL
		o.Recommendation = model.Recommendation(reco)
		opps = append(opps, o)
	}
	return opps, rows.Err()
}
