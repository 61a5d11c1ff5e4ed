// Package report renders a run's opportunities as a markdown digest.
package report

import (
	"fmt"
	"strings"

	"github.com/TobiSchelling/threadscout/internal/assess"
	"github.com/TobiSchelling/threadscout/internal/database"
	"github.com/TobiSchelling/threadscout/internal/model"
)

const insufficientDataLabel = "Insufficient Data"

// Markdown composes the digest for one run: a counts summary followed by
// one section per recommendation. Threads scored without enough data get
// their own trailing section instead of being listed as alternatives.
func Markdown(run *database.Run, opps []model.Opportunity) string {
	var hijack, alternative, unknown []model.Opportunity
	for _, o := range opps {
		switch {
		case o.Recommendation == model.Hijack:
			hijack = append(hijack, o)
		case assess.IsInsufficientData(o.Reason):
			unknown = append(unknown, o)
		default:
			alternative = append(alternative, o)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Run %s\n\n", run.ID)
	fmt.Fprintf(&b, "- Input: `%s`\n", run.InputPath)
	fmt.Fprintf(&b, "- Started: %s\n", run.StartedAt.UTC().Format("2006-01-02 15:04 UTC"))
	fmt.Fprintf(&b, "- Rows: %d (%d resolved, %d unresolved)\n",
		run.Counts.InputRows, run.Counts.Resolved, run.Counts.Unresolved)
	if run.Error != "" {
		fmt.Fprintf(&b, "- Error: %s\n", run.Error)
	}

	sections := []struct {
		title string
		opps  []model.Opportunity
	}{
		{string(model.Hijack), hijack},
		{string(model.Alternative), alternative},
		{insufficientDataLabel, unknown},
	}
	for _, s := range sections {
		if len(s.opps) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n## %s (%d)\n\n", s.title, len(s.opps))
		for _, o := range s.opps {
			b.WriteString(item(o))
		}
	}
	if len(opps) == 0 {
		b.WriteString("\nNo opportunities recorded for this run.\n")
	}
	return b.String()
}

func item(o model.Opportunity) string {
	t := o.Thread
	title := escape(t.Title)
	if title == "" {
		title = "(untitled)"
	}
	if strings.HasPrefix(t.URL, "http") {
		title = fmt.Sprintf("[%s](%s)", title, t.URL)
	}

	line := fmt.Sprintf("- **%s** %s", escape(t.Keyword), title)
	if t.Subreddit != "" {
		line += " in r/" + escape(t.Subreddit)
	}
	if !assess.IsInsufficientData(o.Reason) {
		line += fmt.Sprintf(", score %d, %d comments, %d days old", t.Score, t.NumComments, t.AgeDays)
	}
	return line + "\n  " + o.Reason + "\n"
}

var escaper = strings.NewReplacer(`[`, `\[`, `]`, `\]`, `*`, `\*`, `_`, `\_`, "`", "\\`")

func escape(s string) string {
	return escaper.Replace(s)
}
