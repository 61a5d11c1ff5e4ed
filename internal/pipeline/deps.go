package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/TobiSchelling/threadscout/internal/assess"
	"github.com/TobiSchelling/threadscout/internal/config"
	"github.com/TobiSchelling/threadscout/internal/database"
	"github.com/TobiSchelling/threadscout/internal/enrich"
	"github.com/TobiSchelling/threadscout/internal/fetch"
	"github.com/TobiSchelling/threadscout/internal/reddit"
	"github.com/TobiSchelling/threadscout/internal/resolve"
)

// Deps are the external collaborators of each stage.
type Deps struct {
	Searcher resolve.Searcher
	Titles   resolve.TitleSource // nil disables cited-page title recovery
	Source   enrich.Source
	Baseline assess.BaselineProvider
}

// NewDeps builds the Reddit-backed collaborators described by cfg. db is
// required only for the persistent baseline policy.
func NewDeps(ctx context.Context, cfg *config.Config, db *database.DB) (Deps, error) {
	clientID, clientSecret := cfg.Credentials()
	client, err := reddit.New(ctx,
		reddit.Credentials{ClientID: clientID, ClientSecret: clientSecret},
		reddit.WithUserAgent(cfg.Reddit.UserAgent),
		reddit.WithTimeout(cfg.Reddit.Timeout),
		reddit.WithRateLimit(cfg.Reddit.RequestsPerMinute),
		reddit.WithExpandMore(cfg.Reddit.ExpandMore),
	)
	if err != nil {
		return Deps{}, fmt.Errorf("%w (set %s and %s)", err, cfg.Reddit.ClientIDEnv, cfg.Reddit.ClientSecretEnv)
	}

	deps := Deps{Searcher: client, Source: client}
	if cfg.Search.Backend == config.SearchFeed {
		deps.Searcher = reddit.NewFeedSearcher(cfg.Reddit.UserAgent, nil, client.Limiter())
	}
	if cfg.Citations.FetchTitles {
		deps.Titles = fetch.NewTitleFetcher(cfg.Reddit.UserAgent, cfg.Citations.Timeout)
	}

	deps.Baseline, err = NewBaseline(cfg.Baseline, client, db)
	if err != nil {
		return Deps{}, err
	}
	return deps, nil
}

// NewBaseline builds the baseline provider for a policy.
func NewBaseline(cfg config.Baseline, sampler assess.Sampler, db *database.DB) (assess.BaselineProvider, error) {
	refetch := assess.NewRefetchBaseline(sampler, cfg.SampleSize)
	switch cfg.Policy {
	case config.BaselineRefetch, "":
		return refetch, nil
	case config.BaselineRun:
		return assess.NewRunBaseline(refetch), nil
	case config.BaselinePersistent:
		if db == nil {
			return nil, errors.New("persistent baseline policy needs the database")
		}
		return assess.NewRunBaseline(assess.NewPersistentBaseline(refetch, db, cfg.TTL)), nil
	default:
		return nil, fmt.Errorf("unknown baseline policy: %q", cfg.Policy)
	}
}
