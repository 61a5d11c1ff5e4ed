package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/TobiSchelling/threadscout/internal/assess"
	"github.com/TobiSchelling/threadscout/internal/config"
	"github.com/TobiSchelling/threadscout/internal/database"
	"github.com/TobiSchelling/threadscout/internal/enrich"
	"github.com/TobiSchelling/threadscout/internal/model"
	"github.com/TobiSchelling/threadscout/internal/resolve"
	"github.com/TobiSchelling/threadscout/internal/tabular"
)

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name    string
	Summary string
	Err     error
}

// Result holds the results of a full pipeline run.
type Result struct {
	RunID         string
	Window        model.Window
	Steps         []StepResult
	Opportunities []model.Opportunity
}

// Err returns the first step error, if any.
func (r *Result) Err() error {
	for _, s := range r.Steps {
		if s.Err != nil {
			return fmt.Errorf("%s: %w", s.Name, s.Err)
		}
	}
	return nil
}

// Pipeline orchestrates resolve -> enrich -> assess over one input file.
type Pipeline struct {
	cfg  *config.Config
	db   *database.DB // nil disables run history
	deps Deps
	now  func() time.Time
}

// New creates a new pipeline.
func New(cfg *config.Config, db *database.DB, deps Deps) *Pipeline {
	return &Pipeline{cfg: cfg, db: db, deps: deps, now: time.Now}
}

// run carries one invocation's intermediate tables between steps.
type run struct {
	result   *Result
	counts   database.RunCounts
	rows     []model.InputRow
	threads  []model.ThreadSummary
	comments []model.CommentSummary
}

func (r *run) add(step StepResult) bool {
	r.result.Steps = append(r.result.Steps, step)
	return step.Err == nil
}

// Run executes the full pipeline. With debug set only the first
// cfg.DebugLimit input rows are processed.
func (p *Pipeline) Run(ctx context.Context, debug bool) *Result {
	r := p.start(p.cfg.Input)

	if r.add(p.runLoad(r, debug)) &&
		r.add(p.runResolve(ctx, r)) &&
		r.add(p.runEnrich(ctx, r)) &&
		r.add(p.runWriteTables(r)) {
		p.assessAndWrite(ctx, r, "Step 5/6", "Step 6/6")
	}

	p.finish(r)
	return r.result
}

// Assess re-scores the thread and comment tables already on disk with a
// fresh run window.
func (p *Pipeline) Assess(ctx context.Context) *Result {
	r := p.start(p.cfg.OutputPath(tabular.ThreadsFile))

	if r.add(p.runReadTables(r)) {
		p.assessAndWrite(ctx, r, "Step 2/3", "Step 3/3")
	}

	p.finish(r)
	return r.result
}

func (p *Pipeline) assessAndWrite(ctx context.Context, r *run, assessLabel, writeLabel string) {
	opps, step := p.runAssess(ctx, r, assessLabel)
	if !r.add(step) {
		return
	}
	r.result.Opportunities = opps
	r.add(p.runWriteOpportunities(r, opps, writeLabel))
}

func (p *Pipeline) start(inputPath string) *run {
	window := model.NewWindow(p.now())
	r := &run{result: &Result{Window: window}}

	if p.db != nil {
		id, err := p.db.StartRun(inputPath, window.Start)
		if err != nil {
			log.Printf("Warning: run history unavailable: %v", err)
		} else {
			r.result.RunID = id
			log.Printf("Run %s started", id)
		}
	}
	return r
}

func (p *Pipeline) finish(r *run) {
	if p.db == nil || r.result.RunID == "" {
		return
	}
	if err := p.db.FinishRun(r.result.RunID, r.counts, p.now(), r.result.Err()); err != nil {
		log.Printf("Warning: recording run: %v", err)
	}
}

func (p *Pipeline) runLoad(r *run, debug bool) StepResult {
	log.Println("Step 1/6: Loading citations...")
	rows, err := tabular.ReadInput(p.cfg.Input)
	if err != nil {
		return StepResult{Name: "Load", Err: err}
	}

	total := len(rows)
	if debug && p.cfg.DebugLimit > 0 && len(rows) > p.cfg.DebugLimit {
		rows = rows[:p.cfg.DebugLimit]
	}
	r.rows = rows
	r.counts.InputRows = len(rows)

	summary := fmt.Sprintf("Loaded %d rows from %s", total, p.cfg.Input)
	if len(rows) < total {
		summary += fmt.Sprintf(" (debug: first %d)", len(rows))
	}
	return StepResult{Name: "Load", Summary: summary}
}

func (p *Pipeline) runResolve(ctx context.Context, r *run) StepResult {
	log.Println("Step 2/6: Resolving citations...")
	resolver := resolve.New(p.deps.Searcher, p.deps.Titles, resolve.Options{
		Limit:          p.cfg.Search.Limit,
		MaxCommunities: p.cfg.Search.MaxCommunities,
		Concurrency:    p.cfg.Enrich.Concurrency,
	})
	rows, result := resolver.Resolve(ctx, r.rows)
	if err := ctx.Err(); err != nil {
		return StepResult{Name: "Resolve", Err: err}
	}
	r.rows = rows
	r.counts.Resolved = result.Direct + result.Phase1 + result.Phase2
	r.counts.Unresolved = result.Unresolved
	return StepResult{
		Name: "Resolve",
		Summary: fmt.Sprintf("%d direct, %d by phrase, %d by keyword, %d unresolved",
			result.Direct, result.Phase1, result.Phase2, result.Unresolved),
	}
}

func (p *Pipeline) runEnrich(ctx context.Context, r *run) StepResult {
	log.Println("Step 3/6: Enriching threads...")
	enricher := enrich.New(p.deps.Source, r.result.Window, p.cfg.Enrich.Concurrency)
	threads, comments, result := enricher.Enrich(ctx, r.rows)
	if err := ctx.Err(); err != nil {
		return StepResult{Name: "Enrich", Err: err}
	}
	r.threads, r.comments = threads, comments
	r.counts.Enriched = result.Enriched
	return StepResult{
		Name: "Enrich",
		Summary: fmt.Sprintf("Enriched %d threads (%d unresolved, %d failed, %d duplicate rows merged, %d comments skipped)",
			result.Enriched, result.Unresolved, result.FetchFailed, result.Merged, result.SkippedComments),
	}
}

func (p *Pipeline) runWriteTables(r *run) StepResult {
	log.Println("Step 4/6: Writing thread tables...")
	threadsPath := p.cfg.OutputPath(tabular.ThreadsFile)
	commentsPath := p.cfg.OutputPath(tabular.CommentsFile)
	if err := tabular.WriteThreads(threadsPath, r.threads); err != nil {
		return StepResult{Name: "Write tables", Err: err}
	}
	if err := tabular.WriteComments(commentsPath, r.comments); err != nil {
		return StepResult{Name: "Write tables", Err: err}
	}
	return StepResult{
		Name:    "Write tables",
		Summary: fmt.Sprintf("Wrote %d rows to %s and %s", len(r.threads), threadsPath, commentsPath),
	}
}

func (p *Pipeline) runReadTables(r *run) StepResult {
	log.Println("Step 1/3: Reading thread tables...")
	threads, err := tabular.ReadThreads(p.cfg.OutputPath(tabular.ThreadsFile))
	if err != nil {
		return StepResult{Name: "Read tables", Err: err}
	}
	comments, err := tabular.ReadComments(p.cfg.OutputPath(tabular.CommentsFile))
	if err != nil {
		return StepResult{Name: "Read tables", Err: err}
	}
	r.threads, r.comments = threads, comments
	r.counts.InputRows = len(threads)
	for _, t := range threads {
		if t.Resolved() {
			r.counts.Enriched++
		}
	}
	return StepResult{Name: "Read tables", Summary: fmt.Sprintf("Read %d threads", len(threads))}
}

func (p *Pipeline) runAssess(ctx context.Context, r *run, label string) ([]model.Opportunity, StepResult) {
	log.Printf("%s: Assessing opportunities...", label)
	scorer := assess.NewScorer(p.deps.Baseline, r.result.Window, p.cfg.Enrich.Concurrency)
	opps, result, err := scorer.Assess(ctx, r.threads, r.comments)
	if err != nil {
		return nil, StepResult{Name: "Assess", Err: err}
	}
	r.counts.Hijack = result.Hijack
	r.counts.Alternative = result.Alternative + result.InsufficientData
	return opps, StepResult{
		Name: "Assess",
		Summary: fmt.Sprintf("%d hijack, %d alternative, %d insufficient data",
			result.Hijack, result.Alternative, result.InsufficientData),
	}
}

func (p *Pipeline) runWriteOpportunities(r *run, opps []model.Opportunity, label string) StepResult {
	log.Printf("%s: Writing opportunities...", label)
	path := p.cfg.OutputPath(tabular.OpportunitiesFile)
	if err := tabular.WriteOpportunities(path, opps); err != nil {
		return StepResult{Name: "Write opportunities", Err: err}
	}
	if p.db != nil && r.result.RunID != "" {
		if err := p.db.InsertOpportunities(r.result.RunID, opps); err != nil {
			log.Printf("Warning: storing opportunities: %v", err)
		}
	}
	return StepResult{
		Name:    "Write opportunities",
		Summary: fmt.Sprintf("Wrote %d rows to %s", len(opps), path),
	}
}
