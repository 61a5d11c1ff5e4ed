// Package enrich fetches resolved threads and summarises their engagement.
package enrich

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/TobiSchelling/threadscout/internal/model"
	"github.com/TobiSchelling/threadscout/internal/reddit"
	"github.com/TobiSchelling/threadscout/internal/stats"
)

// DeletedAuthor replaces any author identity that is unavailable.
const DeletedAuthor = "deleted"

// LongCommentWords is the word count at which a comment counts as long.
const LongCommentWords = 40

// Source fetches a thread and its flattened comments.
type Source interface {
	Thread(ctx context.Context, threadURL string) (*reddit.Thread, error)
	Comments(ctx context.Context, t *reddit.Thread) ([]reddit.Comment, error)
}

// Result holds the results of an enrichment run.
type Result struct {
	Enriched        int
	Unresolved      int
	FetchFailed     int
	Merged          int // rows folded into another row's thread
	SkippedComments int
}

// Enricher builds thread and comment summaries for resolved rows.
type Enricher struct {
	source      Source
	window      model.Window
	concurrency int
}

// New creates an enricher. All age and recency figures are relative to
// window, which is fixed for the whole batch.
func New(source Source, window model.Window, concurrency int) *Enricher {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Enricher{source: source, window: window, concurrency: concurrency}
}

type job struct {
	id       string
	url      string
	keywords []string
	title    string // input title, kept for rows that are never fetched
	status   string // preset for rows that are never fetched
	row      int
}

type summary struct {
	thread   model.ThreadSummary
	comments model.CommentSummary
}

// Enrich returns one thread summary and one comment summary per distinct
// thread, in input order. Unresolved rows are kept with a non-ok status.
func (e *Enricher) Enrich(ctx context.Context, rows []model.InputRow) ([]model.ThreadSummary, []model.CommentSummary, *Result) {
	jobs, merged := plan(rows)
	result := &Result{Merged: merged}

	out := make([]summary, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, j := range jobs {
		g.Go(func() error {
			out[i] = e.enrichOne(gctx, j)
			return nil
		})
	}
	_ = g.Wait()

	threads := make([]model.ThreadSummary, 0, len(out))
	comments := make([]model.CommentSummary, 0, len(out))
	for _, s := range out {
		switch s.thread.Status {
		case model.StatusOK:
			result.Enriched++
		case model.StatusUnresolved:
			result.Unresolved++
		default:
			result.FetchFailed++
		}
		result.SkippedComments += s.thread.SkippedComments
		threads = append(threads, s.thread)
		comments = append(comments, s.comments)
	}

	log.Printf("Enrichment complete: %d enriched, %d unresolved, %d fetch failures, %d skipped comments",
		result.Enriched, result.Unresolved, result.FetchFailed, result.SkippedComments)
	return threads, comments, result
}

// plan groups rows by thread id. Rows without a usable id get their own
// placeholder job.
func plan(rows []model.InputRow) ([]job, int) {
	var jobs []job
	byID := make(map[string]int)
	merged := 0

	for _, row := range rows {
		if row.Permalink == model.NoResult || row.Permalink == "" {
			jobs = append(jobs, job{
				id:       placeholderID(row.Row),
				url:      model.NoResult,
				keywords: []string{row.Keyword},
				title:    row.Title,
				status:   model.StatusUnresolved,
				row:      row.Row,
			})
			continue
		}

		id := reddit.ThreadID(row.Permalink)
		if id == reddit.NotApplicable {
			log.Printf("Warning: row %d: no thread id in %q", row.Row, row.Permalink)
			jobs = append(jobs, job{
				id:       placeholderID(row.Row),
				url:      row.Permalink,
				keywords: []string{row.Keyword},
				title:    row.Title,
				status:   model.StatusFetchFailed,
				row:      row.Row,
			})
			continue
		}

		if i, ok := byID[id]; ok {
			jobs[i].keywords = appendUnique(jobs[i].keywords, row.Keyword)
			merged++
			continue
		}
		byID[id] = len(jobs)
		jobs = append(jobs, job{id: id, url: row.Permalink, keywords: []string{row.Keyword}, title: row.Title, row: row.Row})
	}
	return jobs, merged
}

func (e *Enricher) enrichOne(ctx context.Context, j job) summary {
	keyword := strings.Join(j.keywords, "; ")
	if j.status != "" {
		return placeholder(j, keyword, j.status)
	}

	thread, err := e.source.Thread(ctx, j.url)
	if err != nil {
		log.Printf("Warning: row %d: fetching thread %s: %v", j.row, j.id, err)
		return placeholder(j, keyword, model.StatusFetchFailed)
	}
	raw, err := e.source.Comments(ctx, thread)
	if err != nil {
		if len(raw) == 0 {
			log.Printf("Warning: row %d: fetching comments for %s: %v", j.row, j.id, err)
			return placeholder(j, keyword, model.StatusFetchFailed)
		}
		// Expansion failed part way; summarise what was read.
		log.Printf("Warning: row %d: comments for %s incomplete (%d read): %v", j.row, j.id, len(raw), err)
	}

	records := make([]commentRecord, 0, len(raw))
	skipped := 0
	for _, c := range raw {
		rec, ok := parseComment(c)
		if !ok {
			skipped++
			continue
		}
		records = append(records, rec)
	}
	if skipped > 0 {
		log.Printf("Warning: thread %s: skipped %d unreadable comments", j.id, skipped)
	}

	return summary{
		thread:   e.summarizeThread(thread.Submission, keyword, records, skipped),
		comments: summarizeComments(thread.Submission, records, skipped),
	}
}

func (e *Enricher) summarizeThread(sub reddit.Submission, keyword string, records []commentRecord, skipped int) model.ThreadSummary {
	created := sub.Created()
	ts := model.ThreadSummary{
		ID:              sub.ID,
		Keyword:         keyword,
		URL:             sub.URL(),
		Subreddit:       sub.Subreddit,
		Title:           sub.Title,
		AuthorHash:      Anonymize(sub.Author),
		CreatedAt:       created,
		Score:           sub.Score,
		NumComments:     sub.NumComments,
		UpvoteRatio:     sub.UpvoteRatio,
		Awards:          sub.Awards,
		NSFW:            sub.Over18,
		Locked:          sub.Locked,
		LastActivityAt:  created,
		AgeDays:         e.window.AgeDays(created),
		SkippedComments: skipped,
		Status:          model.StatusOK,
	}

	for _, r := range records {
		if r.created.After(ts.LastActivityAt) {
			ts.LastActivityAt = r.created
		}
		if !r.created.Before(e.window.Since24h) {
			ts.RecentComments24h++
		}
		if !r.created.Before(e.window.Since72h) {
			ts.RecentComments72h++
		}
	}
	ts.IsActiveRecently = ts.LastActivityAt.After(e.window.Since24h)
	return ts
}

func summarizeComments(sub reddit.Submission, records []commentRecord, skipped int) model.CommentSummary {
	cs := model.CommentSummary{
		ID:              sub.ID,
		URL:             sub.URL(),
		TotalComments:   len(records),
		SkippedComments: skipped,
	}
	if len(records) == 0 {
		return cs
	}

	lengths := make([]float64, 0, len(records))
	authors := make(map[string]struct{})
	deleted := 0
	cs.TopCommentScore = records[0].score
	for _, r := range records {
		lengths = append(lengths, float64(r.words))
		if r.words >= LongCommentWords {
			cs.CommentsGE40Words++
		}
		if r.score > cs.TopCommentScore {
			cs.TopCommentScore = r.score
		}
		if r.deleted {
			deleted++
		} else {
			authors[r.author] = struct{}{}
		}
		if r.created.After(cs.LastCommentAt) {
			cs.LastCommentAt = r.created
		}
	}

	cs.AvgLenWords = stats.Mean(lengths)
	cs.MedianLenWords, _ = stats.Median(lengths)
	cs.PctLenGE40Words = stats.Ratio(cs.CommentsGE40Words, len(records))
	cs.UniqueCommenters = len(authors)
	cs.RemovedOrDeletedPct = stats.Ratio(deleted, len(records))
	return cs
}

func placeholder(j job, keyword, status string) summary {
	subreddit := reddit.Community(j.url)
	return summary{
		thread: model.ThreadSummary{
			ID:        j.id,
			Keyword:   keyword,
			URL:       j.url,
			Subreddit: subreddit,
			Title:     j.title,
			Status:    status,
		},
		comments: model.CommentSummary{ID: j.id, URL: j.url},
	}
}

// Anonymize returns the hex SHA-256 of an author handle, or DeletedAuthor
// when the identity is unavailable.
func Anonymize(author string) string {
	if isDeleted(author) {
		return DeletedAuthor
	}
	sum := sha256.Sum256([]byte(author))
	return hex.EncodeToString(sum[:])
}

func isDeleted(author string) bool {
	switch strings.TrimSpace(author) {
	case "", "[deleted]", "[removed]":
		return true
	}
	return false
}

func placeholderID(row int) string {
	return fmt.Sprintf("%s:%d", reddit.NotApplicable, row)
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}
