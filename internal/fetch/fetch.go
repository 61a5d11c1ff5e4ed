package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
)

const maxBodyBytes = 4 << 20

// TitleFetcher recovers the headline of a cited page via HTTP + readability
// extraction.
type TitleFetcher struct {
	client    *http.Client
	userAgent string
}

// NewTitleFetcher creates a new title fetcher.
func NewTitleFetcher(userAgent string, timeout time.Duration) *TitleFetcher {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &TitleFetcher{
		userAgent: userAgent,
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
	}
}

// Title returns the readability title of the page at pageURL. An empty
// title with a nil error means the page had nothing extractable.
func (f *TitleFetcher) Title(ctx context.Context, pageURL string) (string, error) {
	parsedURL, err := url.Parse(pageURL)
	if err != nil || (parsedURL.Scheme != "http" && parsedURL.Scheme != "https") {
		return "", fmt.Errorf("not a web page: %q", pageURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", &httpError{code: resp.StatusCode}
	}

	article, err := readability.FromReader(io.LimitReader(resp.Body, maxBodyBytes), parsedURL)
	if err != nil {
		return "", nil
	}
	return strings.Join(strings.Fields(article.Title), " "), nil
}

type httpError struct {
	code int
}

func (e *httpError) Error() string {
	return http.StatusText(e.code)
}
