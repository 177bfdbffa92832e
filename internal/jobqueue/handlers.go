package jobqueue

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vrischmann/servare/internal/favicon"
	"github.com/vrischmann/servare/internal/feedparse"
	"github.com/vrischmann/servare/internal/feedstore"
	"github.com/vrischmann/servare/internal/httpfetch"
	"github.com/vrischmann/servare/internal/model"
	"github.com/vrischmann/servare/internal/security"
)

// Handler executes one job's payload within the transaction its row
// was claimed under. Returning an error fails the attempt; the Runner
// decides whether to retry or give up based on the row's attempt
// count.
type Handler interface {
	Handle(ctx context.Context, tx *sql.Tx, payload Payload) error
}

// Registry dispatches a claimed job's tag to its Handler. New job
// types register here rather than the Runner growing a switch
// statement.
type Registry struct {
	handlers map[Tag]Handler
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[Tag]Handler)}
}

// Register associates tag with h, overwriting any previous handler
// for that tag.
func (r *Registry) Register(tag Tag, h Handler) {
	r.handlers[tag] = h
}

// HandlerFor looks up the handler registered for tag.
func (r *Registry) HandlerFor(tag Tag) (Handler, bool) {
	h, ok := r.handlers[tag]
	return h, ok
}

// RefreshFeedHandler fetches a feed's current content and ingests any
// entries not already known for it, deduplicated by external id.
type RefreshFeedHandler struct {
	Fetcher   *httpfetch.Client
	Feeds     *feedstore.Store
	Sanitizer security.ContentSanitizerService
}

func (h *RefreshFeedHandler) Handle(ctx context.Context, tx *sql.Tx, payload Payload) error {
	p := payload.RefreshFeed
	if p == nil {
		return fmt.Errorf("refresh_feed handler invoked with a nil payload")
	}

	body, err := h.Fetcher.Fetch(ctx, p.FeedURL)
	if err != nil {
		return fmt.Errorf("fetch feed %s: %w", p.FeedURL, err)
	}

	_, entries, err := feedparse.Parse(p.FeedURL, body)
	if err != nil {
		return fmt.Errorf("parse feed %s: %w", p.FeedURL, err)
	}

	for _, e := range entries {
		if e.ExternalID == "" {
			continue
		}
		summary := e.Summary
		if h.Sanitizer != nil {
			summary = h.Sanitizer.Sanitize(summary)
		}
		if _, _, err := h.Feeds.InsertEntry(ctx, tx, p.FeedID, e.ExternalID, e.Title, summary, e.URL, e.Authors); err != nil {
			return fmt.Errorf("ingest entry %q for feed %d: %w", e.ExternalID, p.FeedID, err)
		}
	}

	return nil
}

var _ Handler = (*RefreshFeedHandler)(nil)

// FetchFaviconHandler probes a feed's site for a favicon and persists
// the result on the feed row — bytes on success, explicit absence
// otherwise — so the Manage phase stops scheduling this job once it
// resolves either way.
type FetchFaviconHandler struct {
	HomepageFetcher *httpfetch.Client
	FaviconFetcher  *favicon.Fetcher
	Feeds           *feedstore.Store
}

func (h *FetchFaviconHandler) Handle(ctx context.Context, tx *sql.Tx, payload Payload) error {
	p := payload.FetchFavicon
	if p == nil {
		return fmt.Errorf("fetch_favicon handler invoked with a nil payload")
	}
	if p.SiteLink == "" {
		return h.Feeds.SetFavicon(ctx, tx, p.FeedID, nil, model.FaviconAbsent)
	}

	faviconURL, found := "", false
	if homepage, err := h.HomepageFetcher.Fetch(ctx, p.SiteLink); err == nil {
		faviconURL, found = favicon.FindURL(p.SiteLink, homepage)
	}
	if !found {
		var err error
		faviconURL, err = favicon.DefaultURL(p.SiteLink)
		if err != nil {
			return h.Feeds.SetFavicon(ctx, tx, p.FeedID, nil, model.FaviconAbsent)
		}
	}

	data, _, err := h.FaviconFetcher.Fetch(ctx, faviconURL)
	if err != nil {
		return fmt.Errorf("fetch favicon for feed %d: %w", p.FeedID, err)
	}
	if data == nil {
		return h.Feeds.SetFavicon(ctx, tx, p.FeedID, nil, model.FaviconAbsent)
	}
	return h.Feeds.SetFavicon(ctx, tx, p.FeedID, data, model.FaviconPresent)
}

var _ Handler = (*FetchFaviconHandler)(nil)
