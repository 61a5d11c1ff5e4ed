// Package assess classifies enriched threads as participation opportunities.
package assess

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/TobiSchelling/threadscout/internal/model"
)

// MaxAgeDays is the oldest a thread can be and still be worth joining.
const MaxAgeDays = 3

// Classification reasons.
const (
	ReasonTooOld        = "post older than 3 days"
	ReasonRecentComment = "1: Age <= 3 days with recent comments"
	ReasonAboveMedian   = "2: Age <= 3 days with above-median score"
	ReasonPoor          = "0: Age <= 3 days but poor comment recency or score"

	ReasonUnresolved     = "insufficient data: thread unresolved"
	ReasonNotFetched     = "insufficient data: thread not fetched"
	ReasonEmptyBaseline  = "insufficient data: empty community baseline"
	ReasonBaselineFailed = "insufficient data: baseline unavailable"
)

const insufficientDataPrefix = "insufficient data"

// ErrJoinMismatch is returned when thread and comment summaries do not
// pair up one-to-one on id.
var ErrJoinMismatch = errors.New("thread and comment summaries do not match")

// Result holds the results of an assessment run.
type Result struct {
	Hijack           int
	Alternative      int
	InsufficientData int
}

// Scorer applies the opportunity decision tree.
type Scorer struct {
	baseline    BaselineProvider
	window      model.Window
	concurrency int
}

// NewScorer creates a scorer. Recency is judged against window.
func NewScorer(baseline BaselineProvider, window model.Window, concurrency int) *Scorer {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Scorer{baseline: baseline, window: window, concurrency: concurrency}
}

// Classify returns the recommendation and reason for one joined thread.
// The community baseline is only consulted when age and comment recency
// do not decide the outcome.
func (s *Scorer) Classify(ctx context.Context, t model.ThreadSummary, c model.CommentSummary) (model.Recommendation, string) {
	switch t.Status {
	case model.StatusOK:
	case model.StatusUnresolved:
		return model.Alternative, ReasonUnresolved
	default:
		return model.Alternative, ReasonNotFetched
	}

	if t.AgeDays > MaxAgeDays {
		return model.Alternative, ReasonTooOld
	}
	if !c.LastCommentAt.IsZero() && !c.LastCommentAt.Before(s.window.Since72h) {
		return model.Hijack, ReasonRecentComment
	}

	bl, err := s.baseline.Baseline(ctx, t.Subreddit)
	switch {
	case errors.Is(err, ErrEmptyBaseline):
		log.Printf("Warning: %s: %v", t.ID, err)
		return model.Alternative, ReasonEmptyBaseline
	case err != nil:
		log.Printf("Warning: %s: baseline for r/%s: %v", t.ID, t.Subreddit, err)
		return model.Alternative, ReasonBaselineFailed
	}

	if float64(t.Score) >= bl.Median {
		return model.Hijack, ReasonAboveMedian
	}
	return model.Alternative, ReasonPoor
}

// Assess joins the two summary tables and classifies every thread. Output
// order follows threads.
func (s *Scorer) Assess(ctx context.Context, threads []model.ThreadSummary, comments []model.CommentSummary) ([]model.Opportunity, *Result, error) {
	opps, err := Join(threads, comments)
	if err != nil {
		return nil, nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i := range opps {
		g.Go(func() error {
			opps[i].Recommendation, opps[i].Reason = s.Classify(gctx, opps[i].Thread, opps[i].Comments)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	result := &Result{}
	for _, o := range opps {
		switch {
		case IsInsufficientData(o.Reason):
			result.InsufficientData++
		case o.Recommendation == model.Hijack:
			result.Hijack++
		default:
			result.Alternative++
		}
	}

	log.Printf("Assessment complete: %d hijack, %d alternative, %d insufficient data",
		result.Hijack, result.Alternative, result.InsufficientData)
	return opps, result, nil
}

// Join pairs thread and comment summaries by id. Every id must appear
// exactly once in each table.
func Join(threads []model.ThreadSummary, comments []model.CommentSummary) ([]model.Opportunity, error) {
	if len(threads) != len(comments) {
		return nil, fmt.Errorf("%w: %d threads, %d comment summaries", ErrJoinMismatch, len(threads), len(comments))
	}

	byID := make(map[string]model.CommentSummary, len(comments))
	for _, c := range comments {
		if _, dup := byID[c.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate comment summary %s", ErrJoinMismatch, c.ID)
		}
		byID[c.ID] = c
	}

	opps := make([]model.Opportunity, 0, len(threads))
	seen := make(map[string]struct{}, len(threads))
	for _, t := range threads {
		if _, dup := seen[t.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate thread %s", ErrJoinMismatch, t.ID)
		}
		seen[t.ID] = struct{}{}

		c, ok := byID[t.ID]
		if !ok {
			return nil, fmt.Errorf("%w: no comment summary for %s", ErrJoinMismatch, t.ID)
		}
		opps = append(opps, model.Opportunity{Thread: t, Comments: c})
	}
	return opps, nil
}

// IsInsufficientData reports whether reason marks an unclassifiable thread.
func IsInsufficientData(reason string) bool {
	return strings.HasPrefix(reason, insufficientDataPrefix)
}
