package reddit

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/mmcdole/gofeed"
	"golang.org/x/time/rate"
)

// FeedSearcher serves Search from the public search feed. Feed entries
// carry only title, link, author and publish time, which is all citation
// resolution needs, and no credentials are required.
type FeedSearcher struct {
	baseURL string
	parser  *gofeed.Parser
	limiter *rate.Limiter
}

// NewFeedSearcher creates a feed-backed searcher.
func NewFeedSearcher(userAgent string, client *http.Client, limiter *rate.Limiter) *FeedSearcher {
	parser := gofeed.NewParser()
	parser.UserAgent = userAgent
	if client != nil {
		parser.Client = client
	}
	if limiter == nil {
		limiter = NewLimiter(0)
	}
	return &FeedSearcher{baseURL: WebURL, parser: parser, limiter: limiter}
}

// Limiter returns the rate limiter searches wait on.
func (f *FeedSearcher) Limiter() *rate.Limiter {
	return f.limiter
}

// Search has the same contract as Client.Search.
func (f *FeedSearcher) Search(ctx context.Context, scope, query string, mode SearchMode, limit int) ([]Submission, error) {
	if scope == "" {
		scope = "all"
	}
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{
		"q":           {query},
		"sort":        {"relevance"},
		"syntax":      {mode.syntax()},
		"restrict_sr": {"on"},
		"limit":       {strconv.Itoa(limit)},
	}
	feedURL := fmt.Sprintf("%s/r/%s/search.rss?%s", f.baseURL, scope, params.Encode())

	feed, err := f.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("searching feed %s: %w", scope, err)
	}

	var subs []Submission
	for _, item := range feed.Items {
		if len(subs) >= limit {
			break
		}
		if sub, ok := parseFeedItem(item); ok {
			subs = append(subs, sub)
		}
	}
	return subs, nil
}

func parseFeedItem(item *gofeed.Item) (Submission, bool) {
	link := Canonical(item.Link)
	id := ThreadID(link)
	if id == NotApplicable {
		return Submission{}, false
	}

	u, err := url.Parse(link)
	if err != nil {
		return Submission{}, false
	}

	sub := Submission{
		ID:        id,
		Subreddit: Community(link),
		Title:     strings.TrimSpace(item.Title),
		Permalink: u.Path,
	}
	if item.Author != nil {
		sub.Author = strings.TrimPrefix(item.Author.Name, "/u/")
	}
	if item.PublishedParsed != nil {
		sub.CreatedUTC = float64(item.PublishedParsed.Unix())
	}
	return sub, true
}
