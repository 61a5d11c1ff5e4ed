// Package reddit reads threads, comments and search results from the Reddit API.
package reddit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the OAuth API host.
	DefaultBaseURL = "https://oauth.reddit.com"
	// TokenURL issues application-only access tokens.
	TokenURL = "https://www.reddit.com/api/v1/access_token"
	// WebURL prefixes permalinks.
	WebURL = "https://www.reddit.com"

	defaultUserAgent = "threadscout/1.0"
	maxCommentLimit  = 500
	moreBatchSize    = 100
)

// ErrNotFound is returned when a thread or listing does not exist.
var ErrNotFound = errors.New("not found")

// SearchMode selects the query syntax used by Search.
type SearchMode int

const (
	// Phrase matches the quoted query strictly.
	Phrase SearchMode = iota
	// Keyword matches the loose, unquoted terms.
	Keyword
)

func (m SearchMode) String() string {
	if m == Phrase {
		return "phrase"
	}
	return "keyword"
}

func (m SearchMode) syntax() string {
	if m == Phrase {
		return "cloudsearch"
	}
	return "lucene"
}

// Submission is a top-level post.
type Submission struct {
	ID          string  `json:"id"`
	Subreddit   string  `json:"subreddit"`
	Title       string  `json:"title"`
	Author      string  `json:"author"`
	Permalink   string  `json:"permalink"`
	CreatedUTC  float64 `json:"created_utc"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
	UpvoteRatio float64 `json:"upvote_ratio"`
	Awards      int     `json:"total_awards_received"`
	Over18      bool    `json:"over_18"`
	Locked      bool    `json:"locked"`
}

// URL returns the absolute thread URL.
func (s Submission) URL() string {
	return WebURL + s.Permalink
}

// Created returns the creation time in UTC.
func (s Submission) Created() time.Time {
	return unixTime(s.CreatedUTC)
}

// Comment is a single comment as returned by the API. Body is nil when
// the record carried no readable body.
type Comment struct {
	ID         string  `json:"id"`
	ParentID   string  `json:"parent_id"`
	Author     string  `json:"author"`
	Body       *string `json:"body"`
	Score      int     `json:"score"`
	CreatedUTC float64 `json:"created_utc"`
}

// Created returns the creation time in UTC, zero when unknown.
func (c Comment) Created() time.Time {
	if c.CreatedUTC == 0 {
		return time.Time{}
	}
	return unixTime(c.CreatedUTC)
}

// Thread is a submission and its unflattened comment tree.
type Thread struct {
	Submission Submission
	tree       []thing
}

// HTTPError represents a non-200 API response.
type HTTPError struct {
	URL        string
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d fetching %s", e.StatusCode, e.URL)
}

// Credentials authenticate an application-only OAuth client.
type Credentials struct {
	ClientID     string
	ClientSecret string
}

// Client handles Reddit API requests. It is safe for concurrent use; all
// requests share one rate limiter.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	timeout    time.Duration
	limiter    *rate.Limiter
	expandMore bool
	maxMore    int
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the OAuth client, e.g. for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBaseURL overrides the API host.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithUserAgent sets the User-Agent sent with every request.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithTimeout sets the per-request timeout of the OAuth client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRateLimit caps requests per minute. Zero or negative disables the cap.
func WithRateLimit(perMinute int) Option {
	return func(c *Client) { c.limiter = NewLimiter(perMinute) }
}

// WithExpandMore controls whether "more comments" stubs are expanded.
func WithExpandMore(expand bool) Option {
	return func(c *Client) { c.expandMore = expand }
}

// NewLimiter builds a limiter allowing perMinute requests per minute.
func NewLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
}

// New creates a Reddit client. Without WithHTTPClient it authenticates
// with the application-only client credentials flow.
func New(ctx context.Context, creds Credentials, opts ...Option) (*Client, error) {
	c := &Client{
		baseURL:    DefaultBaseURL,
		userAgent:  defaultUserAgent,
		timeout:    30 * time.Second,
		limiter:    NewLimiter(60),
		expandMore: true,
		maxMore:    10,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		if creds.ClientID == "" || creds.ClientSecret == "" {
			return nil, errors.New("reddit credentials not configured")
		}
		base := &http.Client{
			Timeout:   c.timeout,
			Transport: &userAgentTransport{userAgent: c.userAgent, base: http.DefaultTransport},
		}
		cc := &clientcredentials.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			TokenURL:     TokenURL,
			AuthStyle:    oauth2.AuthStyleInHeader,
		}
		c.httpClient = cc.Client(context.WithValue(ctx, oauth2.HTTPClient, base))
		c.httpClient.Timeout = c.timeout
	}

	return c, nil
}

// Limiter returns the rate limiter every client request waits on.
func (c *Client) Limiter() *rate.Limiter {
	return c.limiter
}

// Thread fetches a submission and its comment tree by thread URL.
func (c *Client) Thread(ctx context.Context, threadURL string) (*Thread, error) {
	id := ThreadID(Canonical(threadURL))
	if id == NotApplicable {
		return nil, fmt.Errorf("no thread id in %q", threadURL)
	}

	var listings []listing
	params := url.Values{
		"raw_json": {"1"},
		"limit":    {strconv.Itoa(maxCommentLimit)},
	}
	if err := c.get(ctx, "/comments/"+id, params, &listings); err != nil {
		return nil, err
	}
	if len(listings) == 0 {
		return nil, fmt.Errorf("thread %s: %w", id, ErrNotFound)
	}
	subs := submissions(listings[0])
	if len(subs) == 0 {
		return nil, fmt.Errorf("thread %s: %w", id, ErrNotFound)
	}

	t := &Thread{Submission: subs[0]}
	if len(listings) > 1 {
		t.tree = listings[1].Data.Children
	}
	return t, nil
}

// Search runs a relevance-ranked search restricted to scope, which is a
// community name, several joined with "+", or "all".
func (c *Client) Search(ctx context.Context, scope, query string, mode SearchMode, limit int) ([]Submission, error) {
	if scope == "" {
		scope = "all"
	}
	params := url.Values{
		"q":           {query},
		"sort":        {"relevance"},
		"syntax":      {mode.syntax()},
		"restrict_sr": {"on"},
		"type":        {"link"},
		"limit":       {strconv.Itoa(limit)},
		"raw_json":    {"1"},
	}

	var l listing
	if err := c.get(ctx, "/r/"+scope+"/search", params, &l); err != nil {
		return nil, err
	}
	return submissions(l), nil
}

// SampleRecent returns up to limit of the newest submissions in community.
func (c *Client) SampleRecent(ctx context.Context, community string, limit int) ([]Submission, error) {
	params := url.Values{
		"limit":    {strconv.Itoa(limit)},
		"raw_json": {"1"},
	}

	var l listing
	if err := c.get(ctx, "/r/"+community+"/new", params, &l); err != nil {
		return nil, err
	}
	return submissions(l), nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, v any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("requesting %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return &HTTPError{URL: path, StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}

type userAgentTransport struct {
	userAgent string
	base      http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.Header.Set("User-Agent", t.userAgent)
	return t.base.RoundTrip(r)
}

func unixTime(sec float64) time.Time {
	return time.Unix(int64(sec), 0).UTC()
}
