// Package feedfinder discovers a feed URL from an arbitrary input URL:
// if the fetched body already parses as a feed, that URL is the answer;
// otherwise the body is scanned as HTML for an alternate-feed <link>.
package feedfinder

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/vrischmann/servare/internal/feedparse"
)

// ErrNoFeedFound is returned when neither a direct feed parse nor an
// HTML <link> scan turns up a candidate.
var ErrNoFeedFound = errors.New("no feed found at source")

// FoundFeed is the result of a successful discovery.
type FoundFeed struct {
	FeedURL string
	Feed    *feedparse.ParsedFeed
	Entries []feedparse.ParsedEntry
}

// Find tries sourceURL's body as a feed directly; on failure it scans
// the body as HTML looking for a <link
// type="application/rss+xml|atom+xml"> pointing at a feed, in document
// order, and reports the first one found.
func Find(sourceURL string, body []byte) (*FoundFeed, error) {
	if feed, entries, err := feedparse.Parse(sourceURL, body); err == nil {
		return &FoundFeed{FeedURL: sourceURL, Feed: feed, Entries: entries}, nil
	}

	candidate, err := scanHTMLForFeedLink(sourceURL, body)
	if err != nil {
		return nil, err
	}
	return &FoundFeed{FeedURL: candidate}, nil
}

var feedLinkTypes = map[string]bool{
	"application/rss+xml":  true,
	"application/atom+xml": true,
}

// scanHTMLForFeedLink walks body's <head> looking for the first feed
// <link> by type attribute, resolving its href against base.
func scanHTMLForFeedLink(base string, body []byte) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url %q: %w", base, err)
	}

	z := html.NewTokenizer(bytes.NewReader(body))
	inHead := false
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return "", ErrNoFeedFound
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			tag := string(name)
			if tag == "head" {
				inHead = true
			}
			if tag == "body" {
				return "", ErrNoFeedFound
			}
			if tag != "link" || !inHead || !hasAttr {
				continue
			}
			typ, href := linkAttrs(z)
			if !feedLinkTypes[strings.ToLower(typ)] {
				continue
			}
			if href == "" {
				continue
			}
			resolved, err := baseURL.Parse(href)
			if err != nil {
				continue
			}
			return resolved.String(), nil
		case html.EndTagToken:
			name, _ := z.TagName()
			if string(name) == "head" {
				inHead = false
			}
		}
	}
}

func linkAttrs(z *html.Tokenizer) (typ, href string) {
	for {
		key, val, more := z.TagAttr()
		switch string(key) {
		case "type":
			typ = string(val)
		case "href":
			href = string(val)
		}
		if !more {
			return
		}
	}
}
