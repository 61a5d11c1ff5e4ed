package assess

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/TobiSchelling/threadscout/internal/database"
	"github.com/TobiSchelling/threadscout/internal/reddit"
	"github.com/TobiSchelling/threadscout/internal/stats"
)

// ErrEmptyBaseline is returned when a community sample has no submissions.
var ErrEmptyBaseline = errors.New("empty community baseline")

// Baseline is the median score of a community's recent submissions.
type Baseline struct {
	Community  string
	Median     float64
	SampleSize int
	SampledAt  time.Time
}

// BaselineProvider supplies the popularity yardstick for a community.
type BaselineProvider interface {
	Baseline(ctx context.Context, community string) (Baseline, error)
}

// Sampler lists a community's most recent submissions.
type Sampler interface {
	SampleRecent(ctx context.Context, community string, limit int) ([]reddit.Submission, error)
}

// RefetchBaseline samples the live community on every call.
type RefetchBaseline struct {
	sampler Sampler
	size    int
	now     func() time.Time
}

// NewRefetchBaseline creates a provider sampling up to size submissions.
func NewRefetchBaseline(sampler Sampler, size int) *RefetchBaseline {
	if size <= 0 {
		size = 100
	}
	return &RefetchBaseline{sampler: sampler, size: size, now: time.Now}
}

// Baseline implements BaselineProvider.
func (b *RefetchBaseline) Baseline(ctx context.Context, community string) (Baseline, error) {
	subs, err := b.sampler.SampleRecent(ctx, community, b.size)
	if err != nil {
		return Baseline{}, fmt.Errorf("sampling %s: %w", community, err)
	}

	scores := make([]float64, 0, len(subs))
	for _, s := range subs {
		scores = append(scores, float64(s.Score))
	}
	median, ok := stats.Median(scores)
	if !ok {
		return Baseline{}, fmt.Errorf("%s: %w", community, ErrEmptyBaseline)
	}
	return Baseline{Community: community, Median: median, SampleSize: len(scores), SampledAt: b.now().UTC()}, nil
}

// RunBaseline memoises another provider per community for the lifetime of
// the value, so each community is sampled at most once per run. Sampling
// errors other than ErrEmptyBaseline are not remembered.
type RunBaseline struct {
	inner BaselineProvider
	group singleflight.Group

	mu   sync.Mutex
	memo map[string]memoEntry
}

type memoEntry struct {
	baseline Baseline
	err      error
}

// NewRunBaseline wraps inner with a per-run memo.
func NewRunBaseline(inner BaselineProvider) *RunBaseline {
	return &RunBaseline{inner: inner, memo: make(map[string]memoEntry)}
}

// Baseline implements BaselineProvider.
func (b *RunBaseline) Baseline(ctx context.Context, community string) (Baseline, error) {
	b.mu.Lock()
	e, ok := b.memo[community]
	b.mu.Unlock()
	if ok {
		return e.baseline, e.err
	}

	v, err, _ := b.group.Do(community, func() (any, error) {
		b.mu.Lock()
		e, ok := b.memo[community]
		b.mu.Unlock()
		if ok {
			return e.baseline, e.err
		}

		bl, err := b.inner.Baseline(ctx, community)
		if err == nil || errors.Is(err, ErrEmptyBaseline) {
			b.mu.Lock()
			b.memo[community] = memoEntry{baseline: bl, err: err}
			b.mu.Unlock()
		}
		return bl, err
	})
	return v.(Baseline), err
}

// PersistentBaseline caches another provider's baselines in the database
// and reuses them until they are older than ttl.
type PersistentBaseline struct {
	inner BaselineProvider
	db    *database.DB
	ttl   time.Duration
	now   func() time.Time
}

// NewPersistentBaseline wraps inner with a SQLite cache.
func NewPersistentBaseline(inner BaselineProvider, db *database.DB, ttl time.Duration) *PersistentBaseline {
	return &PersistentBaseline{inner: inner, db: db, ttl: ttl, now: time.Now}
}

// Baseline implements BaselineProvider.
func (b *PersistentBaseline) Baseline(ctx context.Context, community string) (Baseline, error) {
	cached, err := b.db.GetBaseline(community, b.now().Add(-b.ttl))
	if err != nil {
		log.Printf("Warning: reading cached baseline for %s: %v", community, err)
	} else if cached != nil {
		return Baseline{
			Community:  cached.Community,
			Median:     cached.Median,
			SampleSize: cached.SampleSize,
			SampledAt:  cached.SampledAt,
		}, nil
	}

	bl, err := b.inner.Baseline(ctx, community)
	if err != nil {
		return bl, err
	}
	if err := b.db.SaveBaseline(database.Baseline{
		Community:  bl.Community,
		Median:     bl.Median,
		SampleSize: bl.SampleSize,
		SampledAt:  bl.SampledAt,
	}); err != nil {
		log.Printf("Warning: caching baseline for %s: %v", community, err)
	}
	return bl, nil
}
