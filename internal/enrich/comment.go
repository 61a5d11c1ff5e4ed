package enrich

import (
	"time"

	"github.com/TobiSchelling/threadscout/internal/reddit"
)

type commentRecord struct {
	words   int
	score   int
	deleted bool
	author  string // anonymized
	created time.Time
}

// parseComment converts a raw comment. ok is false when the body or the
// creation time is unreadable, in which case the comment is left out of
// every aggregate.
func parseComment(c reddit.Comment) (commentRecord, bool) {
	if c.Body == nil {
		return commentRecord{}, false
	}
	created := c.Created()
	if created.IsZero() {
		return commentRecord{}, false
	}
	return commentRecord{
		words:   WordCount(*c.Body),
		score:   c.Score,
		deleted: isDeleted(c.Author),
		author:  Anonymize(c.Author),
		created: created,
	}, true
}
