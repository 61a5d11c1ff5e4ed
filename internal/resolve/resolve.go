// Package resolve rewrites citation rows so every row carries either a
// canonical thread URL or the NoResult sentinel.
package resolve

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/TobiSchelling/threadscout/internal/model"
	"github.com/TobiSchelling/threadscout/internal/reddit"
)

// AllScope is the site-wide search scope.
const AllScope = "all"

// Searcher finds candidate threads. Implemented by *reddit.Client and
// *reddit.FeedSearcher.
type Searcher interface {
	Search(ctx context.Context, scope, query string, mode reddit.SearchMode, limit int) ([]reddit.Submission, error)
}

// TitleSource recovers a title from a cited non-thread page.
type TitleSource interface {
	Title(ctx context.Context, pageURL string) (string, error)
}

// Options tune the resolver.
type Options struct {
	Limit          int // search results per query
	MaxCommunities int // cap on the derived phase-2 scope
	Concurrency    int
}

// DefaultOptions returns the production search settings.
func DefaultOptions() Options {
	return Options{Limit: 10, MaxCommunities: 100, Concurrency: 1}
}

// Result holds the results of a resolution run.
type Result struct {
	Direct          int // rows that already had a thread URL
	Phase1          int
	Phase2          int
	Unresolved      int
	TitlesRecovered int
	Scope           string
}

// Resolver runs the two-phase citation search.
type Resolver struct {
	searcher Searcher
	titles   TitleSource
	opts     Options
}

// New creates a resolver. titles may be nil, which disables title
// recovery for rows with a blank title.
func New(searcher Searcher, titles TitleSource, opts Options) *Resolver {
	def := DefaultOptions()
	if opts.Limit <= 0 {
		opts.Limit = def.Limit
	}
	if opts.MaxCommunities <= 0 {
		opts.MaxCommunities = def.MaxCommunities
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = def.Concurrency
	}
	return &Resolver{searcher: searcher, titles: titles, opts: opts}
}

// Resolve returns a copy of rows with every Permalink set to a canonical
// thread URL or model.NoResult. Rows are never dropped.
func (r *Resolver) Resolve(ctx context.Context, rows []model.InputRow) ([]model.InputRow, *Result) {
	out := make([]model.InputRow, len(rows))
	copy(out, rows)
	result := &Result{}

	var pending []int
	for i := range out {
		canonical := reddit.Canonical(out[i].Permalink)
		if reddit.IsThreadURL(canonical) {
			out[i].Permalink = canonical
			result.Direct++
			continue
		}
		pending = append(pending, i)
	}

	if r.titles != nil {
		result.TitlesRecovered = r.recoverTitles(ctx, out, pending)
	}

	// Phase 1: exact phrase, site-wide.
	for _, i := range pending {
		out[i].Permalink = model.NoResult
	}
	result.Phase1 = r.searchAll(ctx, out, pending, AllScope, reddit.Phrase)

	result.Scope = DeriveScope(out, r.opts.MaxCommunities)

	// Phase 2: relaxed keywords, restricted to the communities seen so far.
	var unmatched []int
	for _, i := range pending {
		if out[i].Permalink == model.NoResult {
			unmatched = append(unmatched, i)
		}
	}
	if len(unmatched) > 0 {
		log.Printf("Phase 2: %d unresolved rows, scope %s", len(unmatched), scopeLabel(result.Scope))
	}
	result.Phase2 = r.searchAll(ctx, out, unmatched, result.Scope, reddit.Keyword)

	for _, i := range unmatched {
		if out[i].Permalink == model.NoResult {
			result.Unresolved++
			log.Printf("Warning: row %d (%q) unresolved after both search phases", out[i].Row, out[i].Title)
		}
	}

	log.Printf("Resolution complete: %d direct, %d phase 1, %d phase 2, %d unresolved",
		result.Direct, result.Phase1, result.Phase2, result.Unresolved)
	return out, result
}

// searchAll searches for each indexed row with bounded concurrency and
// writes matches back into rows. Returns the number of matches.
func (r *Resolver) searchAll(ctx context.Context, rows []model.InputRow, idx []int, scope string, mode reddit.SearchMode) int {
	var (
		mu      sync.Mutex
		matched int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Concurrency)

	for _, i := range idx {
		title := rows[i].Title
		g.Go(func() error {
			m := r.search(gctx, scope, title, mode)
			if !m.Matched {
				return nil
			}
			mu.Lock()
			rows[i].Permalink = m.Thread.URL()
			matched++
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return matched
}

func (r *Resolver) search(ctx context.Context, scope, title string, mode reddit.SearchMode) Match {
	query := buildQuery(title, mode)
	if query == "" {
		return Match{}
	}
	candidates, err := r.searcher.Search(ctx, scope, query, mode, r.opts.Limit)
	if err != nil {
		log.Printf("Warning: %s search for %q failed: %v", mode, title, err)
		return Match{}
	}
	return SelectMatch(title, candidates)
}

func (r *Resolver) recoverTitles(ctx context.Context, rows []model.InputRow, pending []int) int {
	recovered := 0
	for _, i := range pending {
		if rows[i].Title != "" || !isWebURL(rows[i].Permalink) {
			continue
		}
		title, err := r.titles.Title(ctx, rows[i].Permalink)
		if err != nil {
			log.Printf("Warning: row %d: could not fetch cited page %s: %v", rows[i].Row, rows[i].Permalink, err)
			continue
		}
		if title == "" {
			continue
		}
		rows[i].Title = title
		recovered++
		log.Printf("Recovered title for row %d: %s", rows[i].Row, title)
	}
	return recovered
}

// Match is the outcome of one search: a selected thread, or nothing when
// Matched is false.
type Match struct {
	Thread  reddit.Submission
	Matched bool
}

// SelectMatch returns the first candidate whose title equals title,
// ignoring case and surrounding whitespace.
func SelectMatch(title string, candidates []reddit.Submission) Match {
	want := strings.TrimSpace(title)
	for _, c := range candidates {
		if strings.EqualFold(strings.TrimSpace(c.Title), want) {
			return Match{Thread: c, Matched: true}
		}
	}
	return Match{}
}

// DeriveScope counts communities across rows' thread URLs and joins the
// most frequent (at most limit) with "+". Ties keep first-seen order.
// Returns AllScope when no row names a community.
func DeriveScope(rows []model.InputRow, limit int) string {
	counts := make(map[string]int)
	var order []string
	for _, row := range rows {
		name := reddit.Community(row.Permalink)
		if name == reddit.NotApplicable {
			continue
		}
		if _, seen := counts[name]; !seen {
			order = append(order, name)
		}
		counts[name]++
	}
	if len(order) == 0 {
		return AllScope
	}

	sort.SliceStable(order, func(a, b int) bool {
		return counts[order[a]] > counts[order[b]]
	})
	if limit > 0 && len(order) > limit {
		order = order[:limit]
	}
	return strings.Join(order, "+")
}

func isWebURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func scopeLabel(scope string) string {
	if scope == AllScope {
		return scope
	}
	return fmt.Sprintf("%d communities", strings.Count(scope, "+")+1)
}
