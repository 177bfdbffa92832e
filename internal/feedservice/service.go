// Package feedservice is the application-layer glue for adding a feed:
// fetch the input URL, discover its feed, persist it, and enqueue the
// jobs that populate its entries and favicon.
package feedservice

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vrischmann/servare/internal/feedfinder"
	"github.com/vrischmann/servare/internal/feedparse"
	"github.com/vrischmann/servare/internal/feedstore"
	"github.com/vrischmann/servare/internal/httpfetch"
	"github.com/vrischmann/servare/internal/jobqueue"
	"github.com/vrischmann/servare/internal/model"
	"github.com/vrischmann/servare/internal/workpool"
)

// Service implements the feed-registration flow the HTTP handler
// calls into.
type Service struct {
	Fetcher *httpfetch.Client
	Feeds   *feedstore.Store
	Jobs    *jobqueue.Store
	Pool    *workpool.Pool
}

// New builds a Service. pool runs the CPU-bound feed/HTML discovery
// parse off the calling request's goroutine.
func New(fetcher *httpfetch.Client, feeds *feedstore.Store, jobs *jobqueue.Store, pool *workpool.Pool) *Service {
	return &Service{Fetcher: fetcher, Feeds: feeds, Jobs: jobs, Pool: pool}
}

// RegisterFeed fetches inputURL, discovers its feed (directly or via
// an HTML <link>), persists a new Feed row for userID, and enqueues
// the RefreshFeed and, if a site link was found, FetchFavicon jobs.
// Job enqueue failures are logged here and never fail registration —
// the Manage phase will pick the feed up on its next tick regardless.
func (s *Service) RegisterFeed(ctx context.Context, userID, inputURL string) (*model.Feed, error) {
	exists, err := s.Feeds.FeedWithURLExists(ctx, s.Feeds.DB(), userID, inputURL)
	if err != nil {
		return nil, fmt.Errorf("check existing feed: %w", err)
	}
	if exists {
		return nil, model.NewFeedAlreadyExistsError(inputURL)
	}

	body, err := s.Fetcher.Fetch(ctx, inputURL)
	if err != nil {
		return nil, model.NewFetchFailedError(err.Error())
	}

	found, err := s.findFeed(ctx, inputURL, body)
	if err != nil {
		return nil, model.NewFeedNotDetectedError(inputURL)
	}

	// HTML discovery only yields a feed URL, not a parsed feed — fetch
	// and parse it before persisting so title/site link/description
	// (and the favicon job, gated on site link) aren't left empty.
	if found.Feed == nil {
		feedBody, err := s.Fetcher.Fetch(ctx, found.FeedURL)
		if err != nil {
			return nil, model.NewFetchFailedError(err.Error())
		}
		parsedFeed, entries, err := feedparse.Parse(found.FeedURL, feedBody)
		if err != nil {
			return nil, model.NewFeedNotDetectedError(found.FeedURL)
		}
		found.Feed = parsedFeed
		found.Entries = entries
	}

	title, siteLink, description := found.Feed.Title, found.Feed.SiteLink, found.Feed.Description

	id, err := s.Feeds.InsertFeed(ctx, s.Feeds.DB(), userID, found.FeedURL, title, siteLink, description)
	if err != nil {
		return nil, fmt.Errorf("insert feed: %w", err)
	}

	feed, err := s.Feeds.GetFeed(ctx, s.Feeds.DB(), userID, id)
	if err != nil {
		return nil, fmt.Errorf("load newly inserted feed: %w", err)
	}

	if err := s.enqueueInitialJobs(ctx, userID, feed); err != nil {
		slog.Error("enqueue initial jobs failed", slog.Int64("feed_id", feed.ID), slog.String("error", err.Error()))
	}
	return feed, nil
}

// findFeed runs feedfinder.Find on the Pool when one is configured,
// keeping the XML/HTML parse off the request goroutine; with no Pool
// it runs inline (the zero-value Service is still usable in tests).
func (s *Service) findFeed(ctx context.Context, inputURL string, body []byte) (*feedfinder.FoundFeed, error) {
	if s.Pool == nil {
		return feedfinder.Find(inputURL, body)
	}

	type result struct {
		found *feedfinder.FoundFeed
		err   error
	}
	done := make(chan result, 1)
	err := s.Pool.Submit(ctx, func() {
		found, err := feedfinder.Find(inputURL, body)
		done <- result{found: found, err: err}
	})
	if err != nil {
		return nil, err
	}

	select {
	case r := <-done:
		return r.found, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Service) enqueueInitialJobs(ctx context.Context, userID string, feed *model.Feed) error {
	if _, _, err := s.Jobs.Enqueue(ctx, jobqueue.NewRefreshFeedPayload(userID, feed.ID, feed.URL)); err != nil {
		return fmt.Errorf("enqueue refresh_feed: %w", err)
	}
	if feed.SiteLink != "" {
		if _, _, err := s.Jobs.Enqueue(ctx, jobqueue.NewFetchFaviconPayload(userID, feed.ID, feed.SiteLink)); err != nil {
			return fmt.Errorf("enqueue fetch_favicon: %w", err)
		}
	}
	return nil
}

// GetFeed fetches a single feed owned by userID.
func (s *Service) GetFeed(ctx context.Context, userID string, feedID int64) (*model.Feed, error) {
	feed, err := s.Feeds.GetFeed(ctx, s.Feeds.DB(), userID, feedID)
	if err != nil {
		if err == feedstore.ErrNotFound {
			return nil, model.NewFeedNotFoundError()
		}
		return nil, err
	}
	return feed, nil
}

// ListFeeds returns every feed owned by userID, newest first.
func (s *Service) ListFeeds(ctx context.Context, userID string) ([]model.Feed, error) {
	return s.Feeds.GetAllFeeds(ctx, s.Feeds.DB(), userID)
}
