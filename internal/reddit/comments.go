package reddit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"strings"
)

const (
	kindComment    = "t1"
	kindSubmission = "t3"
	kindMore       = "more"
)

type listing struct {
	Kind string `json:"kind"`
	Data struct {
		After    string  `json:"after"`
		Children []thing `json:"children"`
	} `json:"data"`
}

type thing struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// commentData is the wire form of a t1 or more item.
type commentData struct {
	Comment
	Replies  json.RawMessage `json:"replies"`
	Children []string        `json:"children"`
}

func (d commentData) replies() []thing {
	raw := bytes.TrimSpace(d.Replies)
	if len(raw) == 0 || raw[0] != '{' {
		return nil
	}
	var l listing
	if err := json.Unmarshal(raw, &l); err != nil {
		return nil
	}
	return l.Data.Children
}

func submissions(l listing) []Submission {
	var subs []Submission
	for _, th := range l.Data.Children {
		if th.Kind != kindSubmission {
			continue
		}
		var s Submission
		if err := json.Unmarshal(th.Data, &s); err != nil {
			continue
		}
		subs = append(subs, s)
	}
	return subs
}

// Comments flattens the thread's comment tree, replies included. With
// expand-more enabled, "load more" stubs are fetched in batches until
// none remain or the per-thread request cap is reached. If an expansion
// request fails, the comments read so far are returned with the error.
func (c *Client) Comments(ctx context.Context, t *Thread) ([]Comment, error) {
	var out []Comment
	var pending []string
	flatten(t.tree, &out, &pending)

	if !c.expandMore {
		return out, nil
	}

	for requests := 0; len(pending) > 0; requests++ {
		if requests >= c.maxMore {
			log.Printf("Thread %s: %d comments left unexpanded", t.Submission.ID, len(pending))
			break
		}
		n := min(moreBatchSize, len(pending))
		batch := pending[:n]
		pending = pending[n:]

		things, err := c.moreChildren(ctx, t.Submission.ID, batch)
		if err != nil {
			return out, fmt.Errorf("expanding comments of %s: %w", t.Submission.ID, err)
		}
		flatten(things, &out, &pending)
	}
	return out, nil
}

func (c *Client) moreChildren(ctx context.Context, linkID string, children []string) ([]thing, error) {
	params := url.Values{
		"api_type":       {"json"},
		"link_id":        {"t3_" + linkID},
		"children":       {strings.Join(children, ",")},
		"limit_children": {"false"},
		"raw_json":       {"1"},
	}

	var resp struct {
		JSON struct {
			Data struct {
				Things []thing `json:"things"`
			} `json:"data"`
		} `json:"json"`
	}
	if err := c.get(ctx, "/api/morechildren", params, &resp); err != nil {
		return nil, err
	}
	return resp.JSON.Data.Things, nil
}

// flatten walks things depth-first, appending comments to out and the
// ids of unexpanded stubs to more.
func flatten(things []thing, out *[]Comment, more *[]string) {
	for _, th := range things {
		switch th.Kind {
		case kindComment:
			var d commentData
			if err := json.Unmarshal(th.Data, &d); err != nil {
				// Undecodable records are kept bodiless so they count as skipped.
				*out = append(*out, Comment{})
				continue
			}
			*out = append(*out, d.Comment)
			flatten(d.replies(), out, more)
		case kindMore:
			var d commentData
			if err := json.Unmarshal(th.Data, &d); err != nil {
				continue
			}
			*more = append(*more, d.Children...)
		}
	}
}
