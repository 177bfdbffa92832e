// Package jobqueue implements the durable, database-backed job queue:
// idempotent enqueue by fingerprint, concurrent-worker-safe claiming via
// row locks, bounded retries, and per-job-type handlers. It is the core
// of servare — everything else (HTTP routing, auth, templates) is glue
// around it.
package jobqueue

import (
	"encoding/json"
	"fmt"
)

// Tag identifies a job's type. It is part of the fingerprint's domain
// separation and the dispatch key the Runner uses to find a Handler.
type Tag string

const (
	TagRefreshFeed   Tag = "refresh_feed"
	TagFetchFavicon  Tag = "fetch_favicon"
)

// RefreshFeedPayload fetches a feed's current content and ingests any
// entries not already known for that feed.
type RefreshFeedPayload struct {
	UserID  string `json:"user_id"`
	FeedID  int64  `json:"feed_id"`
	FeedURL string `json:"feed_url"`
}

// FetchFaviconPayload probes a feed's site for a favicon and persists
// the result (bytes, or explicit absence) on the feed row.
type FetchFaviconPayload struct {
	UserID   string `json:"user_id"`
	FeedID   int64  `json:"feed_id"`
	SiteLink string `json:"site_link"`
}

// Payload is the tagged union persisted in the jobs table. Exactly one
// of the typed fields is set, matching Tag. New job types are added by
// adding a tag constant, a typed field here, and a Handler registration
// — never by duck-typing on field presence.
type Payload struct {
	Tag           Tag                  `json:"tag"`
	RefreshFeed   *RefreshFeedPayload  `json:"refresh_feed,omitempty"`
	FetchFavicon  *FetchFaviconPayload `json:"fetch_favicon,omitempty"`
}

// NewRefreshFeedPayload builds a well-formed RefreshFeed payload.
func NewRefreshFeedPayload(userID string, feedID int64, feedURL string) Payload {
	return Payload{
		Tag:         TagRefreshFeed,
		RefreshFeed: &RefreshFeedPayload{UserID: userID, FeedID: feedID, FeedURL: feedURL},
	}
}

// NewFetchFaviconPayload builds a well-formed FetchFavicon payload.
func NewFetchFaviconPayload(userID string, feedID int64, siteLink string) Payload {
	return Payload{
		Tag:          TagFetchFavicon,
		FetchFavicon: &FetchFaviconPayload{UserID: userID, FeedID: feedID, SiteLink: siteLink},
	}
}

// Marshal encodes the payload as its persisted JSON form.
func (p Payload) Marshal() ([]byte, error) {
	return json.Marshal(p)
}

// Unmarshal decodes a persisted payload and checks tag/field consistency.
func Unmarshal(data []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return Payload{}, fmt.Errorf("decode job payload: %w", err)
	}
	switch p.Tag {
	case TagRefreshFeed:
		if p.RefreshFeed == nil {
			return Payload{}, fmt.Errorf("job payload tagged %q missing refresh_feed fields", p.Tag)
		}
	case TagFetchFavicon:
		if p.FetchFavicon == nil {
			return Payload{}, fmt.Errorf("job payload tagged %q missing fetch_favicon fields", p.Tag)
		}
	default:
		return Payload{}, fmt.Errorf("unknown job payload tag %q", p.Tag)
	}
	return p, nil
}
