package report

import (
	"strings"
	"testing"
	"time"

	"github.com/TobiSchelling/threadscout/internal/assess"
	"github.com/TobiSchelling/threadscout/internal/database"
	"github.com/TobiSchelling/threadscout/internal/model"
)

func testRun() *database.Run {
	return &database.Run{
		ID:        "01JTESTRUN",
		InputPath: "citations.csv",
		StartedAt: time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC),
		Counts:    database.RunCounts{InputRows: 3, Resolved: 2, Unresolved: 1},
	}
}

func TestMarkdown(t *testing.T) {
	opps := []model.Opportunity{
		{
			Thread: model.ThreadSummary{
				Keyword: "slots bonus", Subreddit: "gambling", Title: "Free Spins Mega Promo",
				URL: "https://www.reddit.com/r/gambling/comments/abc123/free_spins_mega_promo/", Score: 3, NumComments: 1, AgeDays: 1,
			},
			Recommendation: model.Hijack,
			Reason:         assess.ReasonRecentComment,
		},
		{
			Thread:         model.ThreadSummary{Keyword: "poker", Subreddit: "poker", Title: "Ancient thread", URL: "https://www.reddit.com/r/poker/comments/old1/ancient/", AgeDays: 5},
			Recommendation: model.Alternative,
			Reason:         assess.ReasonTooOld,
		},
		{
			Thread:         model.ThreadSummary{Keyword: "bingo", Title: "Nobody posted this", URL: model.NoResult},
			Recommendation: model.Alternative,
			Reason:         assess.ReasonUnresolved,
		},
	}

	md := Markdown(testRun(), opps)

	for _, want := range []string{
		"# Run 01JTESTRUN",
		"- Rows: 3 (2 resolved, 1 unresolved)",
		"## Hijack (1)",
		"## Alternative (1)",
		"## Insufficient Data (1)",
		"[Free Spins Mega Promo](https://www.reddit.com/r/gambling/comments/abc123/free_spins_mega_promo/) in r/gambling, score 3, 1 comments, 1 days old",
		"- **bingo** Nobody posted this\n  " + assess.ReasonUnresolved,
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}

	if strings.Index(md, "## Hijack") > strings.Index(md, "## Alternative") {
		t.Error("hijack section should come first")
	}
}

func TestMarkdownEscapesTitles(t *testing.T) {
	opps := []model.Opportunity{{
		Thread:         model.ThreadSummary{Keyword: "k", Subreddit: "free_bets", Title: "[PSA] *huge* bonus", URL: "https://www.reddit.com/r/free_bets/comments/x1/psa/"},
		Recommendation: model.Alternative,
		Reason:         assess.ReasonPoor,
	}}

	md := Markdown(testRun(), opps)
	if !strings.Contains(md, `[\[PSA\] \*huge\* bonus](https://`) {
		t.Errorf("title not escaped:\n%s", md)
	}
	if !strings.Contains(md, `r/free\_bets`) {
		t.Errorf("subreddit not escaped:\n%s", md)
	}
}

func TestMarkdownEmptyRun(t *testing.T) {
	run := testRun()
	run.Error = "Load: missing column: title"

	md := Markdown(run, nil)
	if !strings.Contains(md, "No opportunities recorded") {
		t.Errorf("expected empty notice:\n%s", md)
	}
	if !strings.Contains(md, "- Error: Load: missing column: title") {
		t.Errorf("expected run error:\n%s", md)
	}
}
