// Package model holds the row and table types shared by the pipeline stages.
package model

import "time"

// NoResult is the reference value persisted for rows whose citation could
// not be resolved to a thread.
const NoResult = "no relevant result"

// Thread summary statuses.
const (
	StatusOK          = "ok"
	StatusUnresolved  = "unresolved"
	StatusFetchFailed = "fetch_failed"
)

// InputRow is one keyword search target from the citation tracker.
type InputRow struct {
	Row       int // 1-based data row in the input file
	Keyword   string
	Title     string
	Permalink string // empty when missing; NoResult after a failed resolution
}

// Window holds the time boundaries fixed once at run start.
type Window struct {
	Start    time.Time
	Since24h time.Time
	Since72h time.Time
}

// NewWindow builds the lookback boundaries relative to start.
func NewWindow(start time.Time) Window {
	start = start.UTC()
	return Window{
		Start:    start,
		Since24h: start.Add(-24 * time.Hour),
		Since72h: start.Add(-72 * time.Hour),
	}
}

// AgeDays returns the number of whole days between created and the run start.
func (w Window) AgeDays(created time.Time) int {
	d := w.Start.Sub(created)
	if d < 0 {
		return 0
	}
	return int(d / (24 * time.Hour))
}

// ThreadSummary is one row of threads.csv.
type ThreadSummary struct {
	ID                string
	Keyword           string
	URL               string
	Subreddit         string
	Title             string
	AuthorHash        string
	CreatedAt         time.Time
	Score             int
	NumComments       int
	UpvoteRatio       float64
	Awards            int
	NSFW              bool
	Locked            bool
	LastActivityAt    time.Time
	AgeDays           int
	RecentComments24h int
	RecentComments72h int
	IsActiveRecently  bool
	SkippedComments   int
	Status            string
}

// Resolved reports whether the summary carries fetched thread data.
func (t ThreadSummary) Resolved() bool {
	return t.Status == StatusOK
}

// CommentSummary is one row of comments_summary.csv.
type CommentSummary struct {
	ID                  string
	URL                 string
	TotalComments       int
	AvgLenWords         float64
	MedianLenWords      float64
	CommentsGE40Words   int
	PctLenGE40Words     float64
	TopCommentScore     int
	UniqueCommenters    int
	RemovedOrDeletedPct float64
	LastCommentAt       time.Time // zero when the thread has no comments
	SkippedComments     int
}

// Recommendation is the participation path for a thread.
type Recommendation string

const (
	Hijack      Recommendation = "Hijack"
	Alternative Recommendation = "Alternative"
)

// Opportunity is a joined thread + comment summary with its classification.
type Opportunity struct {
	Thread         ThreadSummary
	Comments       CommentSummary
	Recommendation Recommendation
	Reason         string
}
