// Package tabular reads and writes the pipeline's CSV tables.
package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/TobiSchelling/threadscout/internal/model"
)

// Output file names.
const (
	ThreadsFile       = "threads.csv"
	CommentsFile      = "comments_summary.csv"
	OpportunitiesFile = "opportunities.csv"
)

// ErrMissingColumn is returned when a required header is absent.
var ErrMissingColumn = errors.New("missing column")

var threadColumns = []string{
	"id", "keyword", "reddit_url", "subreddit", "title", "author_hash",
	"created_utc", "score", "num_comments", "upvote_ratio", "awards_count",
	"locked", "over_18", "last_activity_utc", "age_days",
	"recent_comments_24h", "recent_comments_72h", "is_active_recently",
	"skipped_comments", "status",
}

var commentColumns = []string{
	"id", "reddit_url", "total_comments", "avg_comment_len_words",
	"median_comment_len_words", "comments_ge_40w", "pct_comments_ge_40w",
	"top_comment_score", "unique_commenters", "removed_or_deleted_pct",
	"last_comment_utc", "skipped_comments",
}

var opportunityColumns = []string{
	"keyword", "subreddit", "title", "reddit_url", "score", "num_comments",
	"age_days", "recent_comments_72h", "avg_comment_len_words",
	"top_comment_score", "path_reco", "reason",
}

// ReadInput reads the citation tracker. keyword and title columns are
// required; permalink may be absent or blank per row.
func ReadInput(path string) ([]model.InputRow, error) {
	t, err := readTable(path)
	if err != nil {
		return nil, err
	}
	if err := t.require("keyword", "title"); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	rows := make([]model.InputRow, 0, len(t.records))
	for i, rec := range t.records {
		rows = append(rows, model.InputRow{
			Row:       i + 1,
			Keyword:   strings.TrimSpace(t.get(rec, "keyword")),
			Title:     strings.TrimSpace(t.get(rec, "title")),
			Permalink: blankNaN(t.get(rec, "permalink")),
		})
	}
	return rows, nil
}

// WriteThreads writes threads.csv.
func WriteThreads(path string, threads []model.ThreadSummary) error {
	records := make([][]string, 0, len(threads))
	for _, th := range threads {
		ok := th.Resolved()
		records = append(records, []string{
			th.ID, th.Keyword, th.URL, th.Subreddit, th.Title, th.AuthorHash,
			formatTime(th.CreatedAt), intCell(ok, th.Score), intCell(ok, th.NumComments),
			floatCell(ok, th.UpvoteRatio), intCell(ok, th.Awards),
			boolCell(ok, th.Locked), boolCell(ok, th.NSFW),
			formatTime(th.LastActivityAt), intCell(ok, th.AgeDays),
			intCell(ok, th.RecentComments24h), intCell(ok, th.RecentComments72h),
			boolCell(ok, th.IsActiveRecently), strconv.Itoa(th.SkippedComments),
			th.Status,
		})
	}
	return writeTable(path, threadColumns, records)
}

// ReadThreads reads threads.csv.
func ReadThreads(path string) ([]model.ThreadSummary, error) {
	t, err := readTable(path)
	if err != nil {
		return nil, err
	}
	if err := t.require(threadColumns...); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	threads := make([]model.ThreadSummary, 0, len(t.records))
	for i, rec := range t.records {
		p := &fieldParser{t: t, rec: rec}
		th := model.ThreadSummary{
			ID:                p.str("id"),
			Keyword:           p.str("keyword"),
			URL:               p.str("reddit_url"),
			Subreddit:         p.str("subreddit"),
			Title:             p.str("title"),
			AuthorHash:        p.str("author_hash"),
			CreatedAt:         p.time("created_utc"),
			Score:             p.int("score"),
			NumComments:       p.int("num_comments"),
			UpvoteRatio:       p.float("upvote_ratio"),
			Awards:            p.int("awards_count"),
			Locked:            p.bool("locked"),
			NSFW:              p.bool("over_18"),
			LastActivityAt:    p.time("last_activity_utc"),
			AgeDays:           p.int("age_days"),
			RecentComments24h: p.int("recent_comments_24h"),
			RecentComments72h: p.int("recent_comments_72h"),
			IsActiveRecently:  p.bool("is_active_recently"),
			SkippedComments:   p.int("skipped_comments"),
			Status:            p.str("status"),
		}
		if p.err != nil {
			return nil, fmt.Errorf("%s row %d: %w", path, i+1, p.err)
		}
		threads = append(threads, th)
	}
	return threads, nil
}

// WriteComments writes comments_summary.csv.
func WriteComments(path string, comments []model.CommentSummary) error {
	records := make([][]string, 0, len(comments))
	for _, c := range comments {
		records = append(records, []string{
			c.ID, c.URL, strconv.Itoa(c.TotalComments),
			formatFloat(c.AvgLenWords), formatFloat(c.MedianLenWords),
			strconv.Itoa(c.CommentsGE40Words), formatFloat(c.PctLenGE40Words),
			strconv.Itoa(c.TopCommentScore), strconv.Itoa(c.UniqueCommenters),
			formatFloat(c.RemovedOrDeletedPct), formatTime(c.LastCommentAt),
			strconv.Itoa(c.SkippedComments),
		})
	}
	return writeTable(path, commentColumns, records)
}

// ReadComments reads comments_summary.csv.
func ReadComments(path string) ([]model.CommentSummary, error) {
	t, err := readTable(path)
	if err != nil {
		return nil, err
	}
	if err := t.require(commentColumns...); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	comments := make([]model.CommentSummary, 0, len(t.records))
	for i, rec := range t.records {
		p := &fieldParser{t: t, rec: rec}
		c := model.CommentSummary{
			ID:                  p.str("id"),
			URL:                 p.str("reddit_url"),
			TotalComments:       p.int("total_comments"),
			AvgLenWords:         p.float("avg_comment_len_words"),
			MedianLenWords:      p.float("median_comment_len_words"),
			CommentsGE40Words:   p.int("comments_ge_40w"),
			PctLenGE40Words:     p.float("pct_comments_ge_40w"),
			TopCommentScore:     p.int("top_comment_score"),
			UniqueCommenters:    p.int("unique_commenters"),
			RemovedOrDeletedPct: p.float("removed_or_deleted_pct"),
			LastCommentAt:       p.time("last_comment_utc"),
			SkippedComments:     p.int("skipped_comments"),
		}
		if p.err != nil {
			return nil, fmt.Errorf("%s row %d: %w", path, i+1, p.err)
		}
		comments = append(comments, c)
	}
	return comments, nil
}

// WriteOpportunities writes opportunities.csv.
func WriteOpportunities(path string, opps []model.Opportunity) error {
	records := make([][]string, 0, len(opps))
	for _, o := range opps {
		ok := o.Thread.Resolved()
		records = append(records, []string{
			o.Thread.Keyword, o.Thread.Subreddit, o.Thread.Title, o.Thread.URL,
			intCell(ok, o.Thread.Score), intCell(ok, o.Thread.NumComments),
			intCell(ok, o.Thread.AgeDays), intCell(ok, o.Thread.RecentComments72h),
			floatCell(ok, o.Comments.AvgLenWords), intCell(ok, o.Comments.TopCommentScore),
			string(o.Recommendation), o.Reason,
		})
	}
	return writeTable(path, opportunityColumns, records)
}

type table struct {
	index   map[string]int
	records [][]string
}

func readTable(path string) (*table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%s: empty file", path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	t := &table{index: make(map[string]int, len(header))}
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\uFEFF"))
		t.index[name] = i
	}

	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		t.records = append(t.records, rec)
	}
	return t, nil
}

func (t *table) require(cols ...string) error {
	for _, c := range cols {
		if _, ok := t.index[c]; !ok {
			return fmt.Errorf("%w: %s", ErrMissingColumn, c)
		}
	}
	return nil
}

func (t *table) get(rec []string, col string) string {
	i, ok := t.index[col]
	if !ok || i >= len(rec) {
		return ""
	}
	return rec[i]
}

func writeTable(path string, header []string, records [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := w.WriteAll(records); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

// fieldParser converts cells, keeping the first conversion error.
type fieldParser struct {
	t   *table
	rec []string
	err error
}

func (p *fieldParser) str(col string) string {
	return p.t.get(p.rec, col)
}

func (p *fieldParser) int(col string) int {
	s := strings.TrimSpace(p.str(col))
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("column %s: %w", col, err)
	}
	return n
}

func (p *fieldParser) float(col string) float64 {
	s := strings.TrimSpace(p.str(col))
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("column %s: %w", col, err)
	}
	return f
}

func (p *fieldParser) bool(col string) bool {
	s := strings.TrimSpace(p.str(col))
	if s == "" {
		return false
	}
	b, err := strconv.ParseBool(s)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("column %s: %w", col, err)
	}
	return b
}

func (p *fieldParser) time(col string) time.Time {
	s := strings.TrimSpace(p.str(col))
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("column %s: %w", col, err)
	}
	return t
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// blankNaN maps empty and NaN cells, as written by spreadsheet exports,
// to the empty string.
func blankNaN(s string) string {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "nan") {
		return ""
	}
	return s
}

// Thread metrics are left blank for rows without fetched thread data, so
// they cannot be mistaken for a new, quiet thread.

func intCell(ok bool, n int) string {
	if !ok {
		return ""
	}
	return strconv.Itoa(n)
}

func floatCell(ok bool, f float64) string {
	if !ok {
		return ""
	}
	return formatFloat(f)
}

func boolCell(ok bool, b bool) string {
	if !ok {
		return ""
	}
	return strconv.FormatBool(b)
}
