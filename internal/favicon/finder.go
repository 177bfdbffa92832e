// Package favicon locates a site's favicon URL from its homepage HTML,
// following the same <link> priority a browser does, and fetches the
// bytes once a URL is known.
package favicon

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

const (
	maxFaviconSize = 2 << 20 // 2MB
	defaultPath    = "/favicon.ico"
)

// typePriority ranks candidate <link> elements by their type attribute;
// lower wins. Checked before falling back to a rel="icon" match.
var typePriority = map[string]int{
	"image/x-icon": 0,
	"image/icon":   1,
}

// relIconRank is the priority given to a <link rel="icon"> when no
// recognized type attribute is present, below both type tiers.
const relIconRank = 2

// Fetcher retrieves favicon bytes over a caller-supplied HTTP client.
type Fetcher struct {
	hc *http.Client
}

// NewFetcher builds a Fetcher using hc for requests. hc is expected to
// already carry SSRF guarding and a sane timeout.
func NewFetcher(hc *http.Client) *Fetcher {
	return &Fetcher{hc: hc}
}

// FindURL scans homepage HTML for the best favicon <link>, resolved
// against siteURL. It never returns an error for "not found" — callers
// fall back to DefaultURL.
func FindURL(siteURL string, body []byte) (string, bool) {
	base, err := url.Parse(siteURL)
	if err != nil {
		return "", false
	}

	best := ""
	bestRank := -1
	z := html.NewTokenizer(bytes.NewReader(body))
	inHead := false
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return best, best != ""
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			tag := string(name)
			if tag == "head" {
				inHead = true
			}
			if tag == "body" {
				return best, best != ""
			}
			if tag != "link" || !inHead || !hasAttr {
				continue
			}
			rel, linkType, href := linkAttrs(z)
			if href == "" {
				continue
			}
			rank, ok := typePriority[strings.ToLower(strings.TrimSpace(linkType))]
			if !ok {
				if strings.ToLower(strings.TrimSpace(rel)) != "icon" {
					continue
				}
				rank = relIconRank
			}
			if bestRank == -1 || rank < bestRank {
				resolved, err := base.Parse(href)
				if err != nil {
					continue
				}
				best = resolved.String()
				bestRank = rank
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if string(name) == "head" {
				inHead = false
			}
		}
	}
}

func linkAttrs(z *html.Tokenizer) (rel, linkType, href string) {
	for {
		key, val, more := z.TagAttr()
		switch string(key) {
		case "rel":
			rel = string(val)
		case "type":
			linkType = string(val)
		case "href":
			href = string(val)
		}
		if !more {
			return
		}
	}
}

// DefaultURL returns siteURL's conventional /favicon.ico location.
func DefaultURL(siteURL string) (string, error) {
	u, err := url.Parse(siteURL)
	if err != nil {
		return "", fmt.Errorf("parse site url %q: %w", siteURL, err)
	}
	u.Path = defaultPath
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

// Fetch retrieves faviconURL's bytes and content type. It returns
// (nil, "", nil) on any soft failure (non-2xx, oversized, not an
// image) — a feed's favicon is advisory, never worth failing a job
// over.
func (f *Fetcher) Fetch(ctx context.Context, faviconURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, faviconURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build favicon request for %s: %w", faviconURL, err)
	}

	resp, err := f.hc.Do(req)
	if err != nil {
		return nil, "", nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", nil
	}
	if resp.ContentLength > maxFaviconSize {
		return nil, "", nil
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFaviconSize+1))
	if err != nil {
		return nil, "", nil
	}
	if len(data) > maxFaviconSize {
		return nil, "", nil
	}

	mimeType := resp.Header.Get("Content-Type")
	if idx := strings.Index(mimeType, ";"); idx >= 0 {
		mimeType = mimeType[:idx]
	}
	mimeType = strings.TrimSpace(mimeType)
	if !isImageMime(mimeType) {
		return nil, "", nil
	}

	return data, mimeType, nil
}

func isImageMime(mimeType string) bool {
	switch mimeType {
	case "image/x-icon", "image/vnd.microsoft.icon", "image/png", "image/gif", "image/jpeg", "image/svg+xml", "image/webp":
		return true
	}
	return strings.HasPrefix(mimeType, "image/")
}
