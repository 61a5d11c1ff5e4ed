package enrich

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/TobiSchelling/threadscout/internal/model"
	"github.com/TobiSchelling/threadscout/internal/reddit"
)

var runStart = time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

type fakeSource struct {
	mu       sync.Mutex
	threads  map[string]reddit.Submission
	comments map[string][]reddit.Comment
	fetched  []string
}

func (f *fakeSource) Thread(_ context.Context, threadURL string) (*reddit.Thread, error) {
	id := reddit.ThreadID(threadURL)
	f.mu.Lock()
	f.fetched = append(f.fetched, id)
	f.mu.Unlock()
	sub, ok := f.threads[id]
	if !ok {
		return nil, reddit.ErrNotFound
	}
	return &reddit.Thread{Submission: sub}, nil
}

func (f *fakeSource) Comments(_ context.Context, t *reddit.Thread) ([]reddit.Comment, error) {
	switch t.Submission.ID {
	case "broken":
		return nil, errors.New("connection reset")
	case "partial":
		return f.comments["partial"], errors.New("expanding comments of partial: 502")
	}
	return f.comments[t.Submission.ID], nil
}

func body(s string) *string { return &s }

func at(d time.Duration) float64 {
	return float64(runStart.Add(-d).Unix())
}

func comment(author, text string, score int, ago time.Duration) reddit.Comment {
	return reddit.Comment{Author: author, Body: body(text), Score: score, CreatedUTC: at(ago)}
}

func submission(id string, ago time.Duration) reddit.Submission {
	return reddit.Submission{
		ID:          id,
		Subreddit:   "gambling",
		Title:       "Thread " + id,
		Author:      "promo_fan",
		Permalink:   "/r/gambling/comments/" + id + "/x/",
		CreatedUTC:  at(ago),
		Score:       42,
		NumComments: 5,
		UpvoteRatio: 0.9,
		Awards:      2,
		Over18:      true,
	}
}

func rowFor(n int, keyword, id string) model.InputRow {
	return model.InputRow{Row: n, Keyword: keyword, Permalink: "https://www.reddit.com/r/gambling/comments/" + id + "/x/"}
}

func TestEnrichThread(t *testing.T) {
	long := ""
	for i := 0; i < LongCommentWords; i++ {
		long += "word "
	}
	src := &fakeSource{
		threads: map[string]reddit.Submission{"abc": submission("abc", 50*time.Hour)},
		comments: map[string][]reddit.Comment{"abc": {
			comment("alice", "short reply here", 3, 30*time.Hour),
			comment("bob", long, 12, 10*time.Hour),
			comment("alice", "again", 1, 80*time.Hour),
			comment("[deleted]", "[deleted]", 0, 2*time.Hour),
			{Author: "carol", Score: 99, CreatedUTC: at(time.Hour)}, // no body
		}},
	}

	threads, comments, res := New(src, model.NewWindow(runStart), 2).Enrich(context.Background(),
		[]model.InputRow{rowFor(1, "slots bonus", "abc")})

	if len(threads) != 1 || len(comments) != 1 {
		t.Fatalf("expected one summary each, got %d/%d", len(threads), len(comments))
	}
	th, cs := threads[0], comments[0]

	wantThread := model.ThreadSummary{
		ID:                "abc",
		Keyword:           "slots bonus",
		URL:               "https://www.reddit.com/r/gambling/comments/abc/x/",
		Subreddit:         "gambling",
		Title:             "Thread abc",
		AuthorHash:        Anonymize("promo_fan"),
		CreatedAt:         runStart.Add(-50 * time.Hour),
		Score:             42,
		NumComments:       5,
		UpvoteRatio:       0.9,
		Awards:            2,
		NSFW:              true,
		LastActivityAt:    runStart.Add(-2 * time.Hour),
		AgeDays:           2,
		RecentComments24h: 2,
		RecentComments72h: 3,
		IsActiveRecently:  true,
		SkippedComments:   1,
		Status:            model.StatusOK,
	}
	if diff := cmp.Diff(wantThread, th); diff != "" {
		t.Errorf("thread summary mismatch (-want +got):\n%s", diff)
	}

	wantComments := model.CommentSummary{
		ID:                  "abc",
		URL:                 wantThread.URL,
		TotalComments:       4,
		AvgLenWords:         (3 + 40 + 1 + 1) / 4.0,
		MedianLenWords:      2,
		CommentsGE40Words:   1,
		PctLenGE40Words:     0.25,
		TopCommentScore:     12,
		UniqueCommenters:    2,
		RemovedOrDeletedPct: 0.25,
		LastCommentAt:       runStart.Add(-2 * time.Hour),
		SkippedComments:     1,
	}
	if diff := cmp.Diff(wantComments, cs); diff != "" {
		t.Errorf("comment summary mismatch (-want +got):\n%s", diff)
	}

	if res.Enriched != 1 || res.SkippedComments != 1 {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestEnrichNoComments(t *testing.T) {
	src := &fakeSource{
		threads:  map[string]reddit.Submission{"quiet": submission("quiet", 30*time.Hour)},
		comments: map[string][]reddit.Comment{},
	}

	threads, comments, _ := New(src, model.NewWindow(runStart), 1).Enrich(context.Background(),
		[]model.InputRow{rowFor(1, "k", "quiet")})

	cs := comments[0]
	if cs.TotalComments != 0 || cs.RemovedOrDeletedPct != 0 || cs.PctLenGE40Words != 0 {
		t.Errorf("expected zeroed summary, got %+v", cs)
	}
	if !cs.LastCommentAt.IsZero() {
		t.Errorf("expected zero last comment time, got %v", cs.LastCommentAt)
	}
	th := threads[0]
	if !th.LastActivityAt.Equal(th.CreatedAt) {
		t.Errorf("last activity should fall back to creation time")
	}
	if th.IsActiveRecently {
		t.Error("thread created 30h ago with no comments is not recently active")
	}
	if th.AgeDays != 1 {
		t.Errorf("AgeDays = %d, want 1", th.AgeDays)
	}
}

func TestEnrichActivityBoundary(t *testing.T) {
	src := &fakeSource{
		threads: map[string]reddit.Submission{"edge": submission("edge", 40*time.Hour)},
		comments: map[string][]reddit.Comment{"edge": {
			comment("alice", "exactly on the boundary", 1, 24*time.Hour),
		}},
	}

	threads, _, _ := New(src, model.NewWindow(runStart), 1).Enrich(context.Background(),
		[]model.InputRow{rowFor(1, "k", "edge")})

	th := threads[0]
	if th.IsActiveRecently {
		t.Error("activity exactly at the 24h boundary is not recent")
	}
	if th.RecentComments24h != 1 {
		t.Errorf("RecentComments24h = %d, want 1", th.RecentComments24h)
	}
}

func TestEnrichUnresolvedAndFailures(t *testing.T) {
	src := &fakeSource{
		threads:  map[string]reddit.Submission{"broken": submission("broken", time.Hour)},
		comments: map[string][]reddit.Comment{},
	}
	rows := []model.InputRow{
		{Row: 1, Keyword: "lost", Title: "Nobody posted this", Permalink: model.NoResult},
		rowFor(2, "gone", "missing"),
		rowFor(3, "flaky", "broken"),
	}

	threads, comments, res := New(src, model.NewWindow(runStart), 3).Enrich(context.Background(), rows)

	if len(threads) != 3 || len(comments) != 3 {
		t.Fatalf("rows must not be dropped: got %d threads", len(threads))
	}
	if threads[0].ID != "n/a:1" || threads[0].Status != model.StatusUnresolved || threads[0].URL != model.NoResult {
		t.Errorf("unexpected unresolved summary %+v", threads[0])
	}
	if threads[0].Title != "Nobody posted this" {
		t.Errorf("unresolved summary should keep the searched title, got %q", threads[0].Title)
	}
	if threads[1].ID != "missing" || threads[1].Status != model.StatusFetchFailed || threads[1].Subreddit != "gambling" {
		t.Errorf("unexpected fetch failure summary %+v", threads[1])
	}
	if threads[2].Status != model.StatusFetchFailed {
		t.Errorf("comment fetch failure should mark the thread, got %q", threads[2].Status)
	}
	for i := range threads {
		if threads[i].ID != comments[i].ID {
			t.Errorf("summary %d ids differ: %q vs %q", i, threads[i].ID, comments[i].ID)
		}
	}
	if res.Unresolved != 1 || res.FetchFailed != 2 || res.Enriched != 0 {
		t.Errorf("unexpected result %+v", res)
	}
	for _, id := range src.fetched {
		if id == reddit.NotApplicable {
			t.Error("sentinel rows must not be fetched")
		}
	}
}

func TestEnrichKeepsPartialComments(t *testing.T) {
	src := &fakeSource{
		threads: map[string]reddit.Submission{"partial": submission("partial", 30*time.Hour)},
		comments: map[string][]reddit.Comment{"partial": {
			comment("alice", "first page of replies", 3, 2*time.Hour),
			comment("bob", "still readable", 1, 5*time.Hour),
		}},
	}

	threads, comments, res := New(src, model.NewWindow(runStart), 1).Enrich(context.Background(), []model.InputRow{rowFor(1, "slots", "partial")})

	if threads[0].Status != model.StatusOK {
		t.Fatalf("partial comments should keep the thread, got status %q", threads[0].Status)
	}
	if comments[0].TotalComments != 2 || threads[0].RecentComments24h != 2 {
		t.Errorf("expected both read comments counted, got total %d, 24h %d",
			comments[0].TotalComments, threads[0].RecentComments24h)
	}
	if res.Enriched != 1 || res.FetchFailed != 0 {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestEnrichMergesDuplicateThreads(t *testing.T) {
	src := &fakeSource{
		threads:  map[string]reddit.Submission{"abc": submission("abc", time.Hour), "def": submission("def", time.Hour)},
		comments: map[string][]reddit.Comment{},
	}
	rows := []model.InputRow{
		rowFor(1, "slots", "abc"),
		rowFor(2, "poker", "def"),
		rowFor(3, "bonus", "abc"),
		rowFor(4, "slots", "abc"),
	}

	threads, _, res := New(src, model.NewWindow(runStart), 2).Enrich(context.Background(), rows)

	if len(threads) != 2 {
		t.Fatalf("expected 2 threads, got %d", len(threads))
	}
	if threads[0].ID != "abc" || threads[0].Keyword != "slots; bonus" {
		t.Errorf("unexpected merged thread %+v", threads[0])
	}
	if threads[1].ID != "def" {
		t.Errorf("expected input order, got %q second", threads[1].ID)
	}
	if res.Merged != 2 || len(src.fetched) != 2 {
		t.Errorf("expected 2 merged rows and 2 fetches, got %d and %d", res.Merged, len(src.fetched))
	}
}

func TestAnonymize(t *testing.T) {
	for _, a := range []string{"", "[deleted]", "[removed]"} {
		if got := Anonymize(a); got != DeletedAuthor {
			t.Errorf("Anonymize(%q) = %q, want deleted", a, got)
		}
	}
	h := Anonymize("alice")
	if len(h) != 64 || h == "alice" {
		t.Errorf("unexpected hash %q", h)
	}
	if Anonymize("alice") != h {
		t.Error("hash must be stable")
	}
}

func TestParseComment(t *testing.T) {
	if _, ok := parseComment(reddit.Comment{Author: "a", CreatedUTC: at(time.Hour)}); ok {
		t.Error("comment without body should be skipped")
	}
	if _, ok := parseComment(reddit.Comment{Author: "a", Body: body("hi")}); ok {
		t.Error("comment without creation time should be skipped")
	}
	rec, ok := parseComment(comment("[deleted]", "two words", 4, time.Hour))
	if !ok || !rec.deleted || rec.author != DeletedAuthor || rec.words != 2 || rec.score != 4 {
		t.Errorf("unexpected record %+v (ok=%v)", rec, ok)
	}
}
