package model

import "time"

// FaviconState is the tri-state flag that drives favicon job scheduling.
// It starts Unknown, and the Manage phase keeps enqueuing FetchFavicon
// jobs for a feed until it leaves Unknown (Present or Absent).
type FaviconState int

const (
	FaviconUnknown FaviconState = iota
	FaviconPresent
	FaviconAbsent
)

// Feed is a user's subscription to a feed endpoint. (user_id, url) is
// unique — the same feed URL may be registered independently by several
// users, each getting its own row, its own entries and its own jobs.
type Feed struct {
	ID          int64
	UserID      string
	URL         string
	Title       string
	SiteLink    string
	Description string
	FaviconData []byte
	HasFavicon  FaviconState
	CreatedAt   time.Time
}

// FeedEntry is a single item belonging to a Feed. (feed_id, external_id)
// is unique and is the deduplication key applied on every refresh.
type FeedEntry struct {
	ID         int64
	FeedID     int64
	ExternalID string
	Title      string
	Summary    string
	URL        string
	Authors    []string
	CreatedAt  time.Time
	ReadAt     *time.Time
}
