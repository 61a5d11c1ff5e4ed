package reddit

import (
	"net/url"
	"strings"
)

// NotApplicable is returned by the URL parsers for malformed references.
const NotApplicable = "n/a"

// Thread URLs have the fixed layout
//
//	https://www.reddit.com/r/{community}/comments/{id}/{slug}/
//
// so split on "/" the community is segment 4 and the id segment 6.
const (
	segCommunityMarker = 3
	segCommunity       = 4
	segCommentsMarker  = 5
	segThreadID        = 6
)

// Community extracts the community name from a thread URL.
func Community(link string) string {
	parts := segments(link)
	if len(parts) <= segCommunity || parts[segCommunityMarker] != "r" || parts[segCommunity] == "" {
		return NotApplicable
	}
	return parts[segCommunity]
}

// ThreadID extracts the post id from a thread URL.
func ThreadID(link string) string {
	parts := segments(link)
	if len(parts) <= segThreadID || parts[segCommentsMarker] != "comments" || parts[segThreadID] == "" {
		return NotApplicable
	}
	return parts[segThreadID]
}

// IsThreadURL reports whether link names a thread.
func IsThreadURL(link string) bool {
	return ThreadID(link) != NotApplicable
}

// Canonical rewrites Reddit links to absolute https://www.reddit.com form
// without query or fragment. Other links are returned trimmed.
func Canonical(link string) string {
	link = strings.TrimSpace(link)
	if strings.HasPrefix(link, "/r/") || strings.HasPrefix(link, "/u/") || strings.HasPrefix(link, "/user/") {
		link = WebURL + link
	}

	u, err := url.Parse(link)
	if err != nil || !isRedditHost(u.Host) {
		return link
	}
	u.Scheme = "https"
	u.Host = "www.reddit.com"
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

func segments(link string) []string {
	link = strings.TrimSpace(link)
	if i := strings.IndexAny(link, "?#"); i >= 0 {
		link = link[:i]
	}
	parts := strings.Split(link, "/")
	if len(parts) < 3 || (parts[0] != "https:" && parts[0] != "http:") || parts[1] != "" || !isRedditHost(parts[2]) {
		return nil
	}
	return parts
}

func isRedditHost(host string) bool {
	host = strings.ToLower(host)
	return host == "reddit.com" || strings.HasSuffix(host, ".reddit.com")
}
