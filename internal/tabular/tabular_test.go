package tabular

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/TobiSchelling/threadscout/internal/model"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestReadInput(t *testing.T) {
	path := writeFile(t, "input.csv", "keyword,title,permalink\n"+
		"slots bonus,Free Spins Mega Promo,NaN\n"+
		"poker,  Best poker sites  ,https://www.reddit.com/r/poker/comments/p1/best/\n"+
		"bingo,Bingo night,\n")

	rows, err := ReadInput(path)
	if err != nil {
		t.Fatalf("ReadInput() error = %v", err)
	}

	want := []model.InputRow{
		{Row: 1, Keyword: "slots bonus", Title: "Free Spins Mega Promo"},
		{Row: 2, Keyword: "poker", Title: "Best poker sites", Permalink: "https://www.reddit.com/r/poker/comments/p1/best/"},
		{Row: 3, Keyword: "bingo", Title: "Bingo night"},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestReadInputWithoutPermalinkColumn(t *testing.T) {
	path := writeFile(t, "input.csv", "title,keyword\nFree Spins,slots\n")

	rows, err := ReadInput(path)
	if err != nil {
		t.Fatalf("ReadInput() error = %v", err)
	}
	if len(rows) != 1 || rows[0].Permalink != "" || rows[0].Keyword != "slots" {
		t.Errorf("unexpected rows %+v", rows)
	}
}

func TestReadInputMissingColumn(t *testing.T) {
	path := writeFile(t, "input.csv", "keyword,permalink\nslots,\n")

	_, err := ReadInput(path)
	if !errors.Is(err, ErrMissingColumn) {
		t.Fatalf("expected ErrMissingColumn, got %v", err)
	}
	if !strings.Contains(err.Error(), "title") {
		t.Errorf("error should name the column: %v", err)
	}
}

func TestThreadsAndCommentsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	created := time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC)

	threads := []model.ThreadSummary{
		{
			ID: "abc123", Keyword: "slots bonus", URL: "https://www.reddit.com/r/gambling/comments/abc123/x/",
			Subreddit: "gambling", Title: "Free Spins, \"Mega\" Promo", AuthorHash: "f00d",
			CreatedAt: created, Score: 42, NumComments: 3, UpvoteRatio: 0.93, Awards: 1,
			LastActivityAt: created.Add(5 * time.Hour), AgeDays: 1, RecentComments24h: 2,
			RecentComments72h: 3, IsActiveRecently: true, SkippedComments: 1, Status: model.StatusOK,
		},
		{ID: "n/a:2", Keyword: "poker", URL: model.NoResult, Subreddit: "n/a", Status: model.StatusUnresolved},
	}
	comments := []model.CommentSummary{
		{
			ID: "abc123", URL: threads[0].URL, TotalComments: 3, AvgLenWords: 12.5,
			MedianLenWords: 10, CommentsGE40Words: 1, PctLenGE40Words: 1.0 / 3,
			TopCommentScore: 7, UniqueCommenters: 2, RemovedOrDeletedPct: 0.25,
			LastCommentAt: created.Add(5 * time.Hour), SkippedComments: 1,
		},
		{ID: "n/a:2", URL: model.NoResult},
	}

	threadsPath := filepath.Join(dir, ThreadsFile)
	commentsPath := filepath.Join(dir, CommentsFile)
	if err := WriteThreads(threadsPath, threads); err != nil {
		t.Fatalf("WriteThreads() error = %v", err)
	}
	if err := WriteComments(commentsPath, comments); err != nil {
		t.Fatalf("WriteComments() error = %v", err)
	}

	gotThreads, err := ReadThreads(threadsPath)
	if err != nil {
		t.Fatalf("ReadThreads() error = %v", err)
	}
	gotComments, err := ReadComments(commentsPath)
	if err != nil {
		t.Fatalf("ReadComments() error = %v", err)
	}

	if diff := cmp.Diff(threads, gotThreads); diff != "" {
		t.Errorf("threads mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(comments, gotComments); diff != "" {
		t.Errorf("comments mismatch (-want +got):\n%s", diff)
	}
}

func TestReadThreadsBadValue(t *testing.T) {
	header := strings.Join(threadColumns, ",")
	row := "abc,kw,url,sub,title,h,,notanumber,0,0,0,false,false,,0,0,0,false,0,ok"
	path := writeFile(t, ThreadsFile, header+"\n"+row+"\n")

	if _, err := ReadThreads(path); err == nil || !strings.Contains(err.Error(), "score") {
		t.Errorf("expected score parse error, got %v", err)
	}
}

func TestWriteOpportunities(t *testing.T) {
	path := filepath.Join(t.TempDir(), OpportunitiesFile)
	opps := []model.Opportunity{{
		Thread: model.ThreadSummary{
			Keyword: "slots bonus", Subreddit: "gambling", Title: "Free Spins Mega Promo",
			URL: "https://www.reddit.com/r/gambling/comments/abc123/x/", Score: 42,
			NumComments: 3, AgeDays: 1, RecentComments72h: 3, Status: model.StatusOK,
		},
		Comments:       model.CommentSummary{AvgLenWords: 12.5, TopCommentScore: 7},
		Recommendation: model.Hijack,
		Reason:         "1: Age <= 3 days with recent comments",
	}}

	if err := WriteOpportunities(path, opps); err != nil {
		t.Fatalf("WriteOpportunities() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := "keyword,subreddit,title,reddit_url,score,num_comments,age_days,recent_comments_72h,avg_comment_len_words,top_comment_score,path_reco,reason\n" +
		"slots bonus,gambling,Free Spins Mega Promo,https://www.reddit.com/r/gambling/comments/abc123/x/,42,3,1,3,12.5,7,Hijack,1: Age <= 3 days with recent comments\n"
	if diff := cmp.Diff(want, string(data)); diff != "" {
		t.Errorf("opportunities.csv mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteUnresolvedLeavesMetricsBlank(t *testing.T) {
	dir := t.TempDir()
	thread := model.ThreadSummary{
		ID: "n/a:1", Keyword: "lost", URL: model.NoResult, Subreddit: "n/a",
		Title: "Nobody posted this", Status: model.StatusUnresolved,
	}

	oppsPath := filepath.Join(dir, OpportunitiesFile)
	opps := []model.Opportunity{{
		Thread:         thread,
		Comments:       model.CommentSummary{ID: thread.ID, URL: thread.URL},
		Recommendation: model.Alternative,
		Reason:         "insufficient data: thread unresolved",
	}}
	if err := WriteOpportunities(oppsPath, opps); err != nil {
		t.Fatalf("WriteOpportunities() error = %v", err)
	}
	data, err := os.ReadFile(oppsPath)
	if err != nil {
		t.Fatal(err)
	}
	wantRow := "lost,n/a,Nobody posted this,no relevant result,,,,,,,Alternative,insufficient data: thread unresolved\n"
	if !strings.HasSuffix(string(data), wantRow) {
		t.Errorf("unresolved opportunity row should have blank metrics, got:\n%s", data)
	}

	threadsPath := filepath.Join(dir, ThreadsFile)
	if err := WriteThreads(threadsPath, []model.ThreadSummary{thread}); err != nil {
		t.Fatalf("WriteThreads() error = %v", err)
	}
	tbl, err := readTable(threadsPath)
	if err != nil {
		t.Fatal(err)
	}
	for _, col := range []string{"score", "num_comments", "age_days", "recent_comments_72h", "is_active_recently"} {
		if got := tbl.get(tbl.records[0], col); got != "" {
			t.Errorf("%s = %q for unresolved row, want blank", col, got)
		}
	}
	if got := tbl.get(tbl.records[0], "status"); got != model.StatusUnresolved {
		t.Errorf("status = %q, want %q", got, model.StatusUnresolved)
	}
}
