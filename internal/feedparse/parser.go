// Package feedparse turns raw feed bytes into servare's normalized
// ParsedFeed/ParsedEntry shapes, independent of whether the source was
// RSS, Atom or RDF.
package feedparse

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed"
	"github.com/mmcdole/gofeed/atom"
)

// ParsedFeed is the normalized feed-level metadata extracted from a
// source. SiteLink may be empty — callers treat that as "no site link".
type ParsedFeed struct {
	URL         string
	Title       string
	SiteLink    string
	Description string
}

// ParsedEntry is a normalized feed item. Authors is never nil.
type ParsedEntry struct {
	ExternalID string
	URL        string
	Title      string
	Summary    string
	Authors    []string
}

// ErrNotAFeed is wrapped into the error Parse returns when body does
// not parse as RSS/Atom/RDF.
type ErrNotAFeed struct {
	Cause error
}

func (e *ErrNotAFeed) Error() string { return fmt.Sprintf("not a feed: %v", e.Cause) }
func (e *ErrNotAFeed) Unwrap() error  { return e.Cause }

// Parse decodes body (sourced from sourceURL) into a ParsedFeed and its
// entries. The relative order of <title>, <description> and <link> in
// the source never affects the result.
func Parse(sourceURL string, body []byte) (*ParsedFeed, []ParsedEntry, error) {
	fp := gofeed.NewParser()
	feed, err := fp.ParseString(string(body))
	if err != nil {
		return nil, nil, &ErrNotAFeed{Cause: err}
	}

	pf := &ParsedFeed{
		URL:         sourceURL,
		Title:       feed.Title,
		SiteLink:    extractSiteLink(feed, body),
		Description: feed.Description,
	}

	entries := make([]ParsedEntry, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		entries = append(entries, ParsedEntry{
			ExternalID: externalID(item),
			URL:        item.Link,
			Title:      item.Title,
			Summary:    item.Description,
			Authors:    authorsOf(item),
		})
	}

	return pf, entries, nil
}

// externalID prefers the feed-reported GUID, falling back to the entry
// link when a source omits GUIDs entirely.
func externalID(item *gofeed.Item) string {
	if item.GUID != "" {
		return item.GUID
	}
	return item.Link
}

// authorsOf normalizes an item's author list: email if present, else
// name, per author. Missing authors yield an empty (non-nil) slice.
func authorsOf(item *gofeed.Item) []string {
	out := make([]string, 0, len(item.Authors))
	for _, a := range item.Authors {
		if a == nil {
			continue
		}
		if a.Email != "" {
			out = append(out, a.Email)
		} else if a.Name != "" {
			out = append(out, a.Name)
		}
	}
	if len(out) == 0 && item.Author != nil {
		if item.Author.Email != "" {
			out = append(out, item.Author.Email)
		} else if item.Author.Name != "" {
			out = append(out, item.Author.Name)
		}
	}
	return out
}

// extractSiteLink implements the canonical site-link rule: discard every
// link whose rel attribute is set (these are self/alternate pointers),
// keep document order, and return the first remaining link's href. If
// every link carries a rel, the result is empty.
//
// RSS/RDF feeds have a single, rel-less <link> element, so gofeed's
// translated Feed.Link already satisfies the rule directly. Atom feeds
// carry a <link> list with rel attributes that gofeed's translated Feed
// does not retain, so for those we re-parse the raw bytes with the atom
// subpackage to inspect Rel directly.
func extractSiteLink(feed *gofeed.Feed, raw []byte) string {
	if strings.ToLower(feed.FeedType) != "atom" {
		return feed.Link
	}

	af, err := atom.Parse(bytes.NewReader(raw))
	if err != nil || af == nil {
		return feed.Link
	}
	for _, l := range af.Links {
		if l == nil {
			continue
		}
		if l.Rel == "" {
			return l.Href
		}
	}
	return ""
}
