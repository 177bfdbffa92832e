// Package feedstore is the Postgres-backed persistence layer for Feed
// and FeedEntry rows, scoped per user. The reads and writes that serve a
// user's requests are parameterized by user id so one user's feeds are
// never visible to, or mutable by, another; the methods the Job Runner
// and its handlers use address feeds and entries by id alone.
package feedstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/vrischmann/servare/internal/model"
)

// ErrNotFound is returned when a lookup by id/url finds no matching
// row (or finds one owned by a different user).
var ErrNotFound = errors.New("feedstore: not found")

// Querier is satisfied by both *sql.DB and *sql.Tx, letting callers
// run store operations either standalone or inside an existing
// transaction (the Job Runner uses the latter).
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is the Feed Store. Its methods take a Querier argument so
// callers running inside a job-claim transaction can pass the *sql.Tx
// instead of the pooled *sql.DB.
type Store struct {
	db *sql.DB
}

// NewStore wraps an open database handle as a Store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying pooled handle, satisfying Querier for
// callers that don't need a transaction.
func (s *Store) DB() *sql.DB { return s.db }

// InsertFeed creates a new feed row for userID and returns its
// assigned id. Callers are expected to have already checked
// FeedWithURLExists when uniqueness matters to the caller's flow.
func (s *Store) InsertFeed(ctx context.Context, q Querier, userID, url, title, siteLink, description string) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx, `
		INSERT INTO feeds (user_id, url, title, site_link, description, has_favicon, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		RETURNING id`,
		userID, url, title, siteLink, description, int(model.FaviconUnknown),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert feed: %w", err)
	}
	return id, nil
}

// FeedWithURLExists reports whether userID already has a feed row for
// url, the uniqueness servare enforces on (user_id, url).
func (s *Store) FeedWithURLExists(ctx context.Context, q Querier, userID, url string) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM feeds WHERE user_id = $1 AND url = $2)`,
		userID, url,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check feed exists: %w", err)
	}
	return exists, nil
}

// GetFeed fetches a single feed owned by userID.
func (s *Store) GetFeed(ctx context.Context, q Querier, userID string, feedID int64) (*model.Feed, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, user_id, url, title, site_link, description, favicon_data, has_favicon, created_at
		FROM feeds
		WHERE user_id = $1 AND id = $2`,
		userID, feedID,
	)
	return scanFeed(row)
}

// GetAllFeeds returns every feed owned by userID, newest first.
func (s *Store) GetAllFeeds(ctx context.Context, q Querier, userID string) ([]model.Feed, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, user_id, url, title, site_link, description, favicon_data, has_favicon, created_at
		FROM feeds
		WHERE user_id = $1
		ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list feeds: %w", err)
	}
	defer rows.Close()

	var feeds []model.Feed
	for rows.Next() {
		f, err := scanFeedRow(rows)
		if err != nil {
			return nil, err
		}
		feeds = append(feeds, *f)
	}
	return feeds, rows.Err()
}

// ListFeedsForRefresh returns every feed in the system, across all
// users, for the Job Runner's Manage phase to consider enqueuing work
// against. Unlike the user-facing reads above this is intentionally
// not scoped by user id.
func (s *Store) ListFeedsForRefresh(ctx context.Context, q Querier) ([]model.Feed, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, user_id, url, title, site_link, description, favicon_data, has_favicon, created_at
		FROM feeds
		ORDER BY id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list feeds for refresh: %w", err)
	}
	defer rows.Close()

	var feeds []model.Feed
	for rows.Next() {
		f, err := scanFeedRow(rows)
		if err != nil {
			return nil, err
		}
		feeds = append(feeds, *f)
	}
	return feeds, rows.Err()
}

// SetFavicon persists favicon bytes (or explicit absence) on a feed.
func (s *Store) SetFavicon(ctx context.Context, q Querier, feedID int64, data []byte, state model.FaviconState) error {
	_, err := q.ExecContext(ctx,
		`UPDATE feeds SET favicon_data = $2, has_favicon = $3 WHERE id = $1`,
		feedID, data, int(state),
	)
	if err != nil {
		return fmt.Errorf("set favicon for feed %d: %w", feedID, err)
	}
	return nil
}

func scanFeed(row *sql.Row) (*model.Feed, error) {
	var (
		f           model.Feed
		faviconData []byte
		hasFavicon  int
	)
	err := row.Scan(&f.ID, &f.UserID, &f.URL, &f.Title, &f.SiteLink, &f.Description, &faviconData, &hasFavicon, &f.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan feed: %w", err)
	}
	f.FaviconData = faviconData
	f.HasFavicon = model.FaviconState(hasFavicon)
	return &f, nil
}

func scanFeedRow(rows *sql.Rows) (*model.Feed, error) {
	var (
		f           model.Feed
		faviconData []byte
		hasFavicon  int
	)
	if err := rows.Scan(&f.ID, &f.UserID, &f.URL, &f.Title, &f.SiteLink, &f.Description, &faviconData, &hasFavicon, &f.CreatedAt); err != nil {
		return nil, fmt.Errorf("scan feed row: %w", err)
	}
	f.FaviconData = faviconData
	f.HasFavicon = model.FaviconState(hasFavicon)
	return &f, nil
}

// InsertEntry inserts a new entry under feedID, deduplicated on
// (feed_id, external_id). The bool return reports whether a new row
// was actually inserted — false means the entry was already known and
// the refresh should skip it.
func (s *Store) InsertEntry(ctx context.Context, q Querier, feedID int64, externalID, title, summary, url string, authors []string) (int64, bool, error) {
	var id int64
	err := q.QueryRowContext(ctx, `
		INSERT INTO feed_entries (feed_id, external_id, title, summary, url, authors, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (feed_id, external_id) DO NOTHING
		RETURNING id`,
		feedID, externalID, title, summary, url, pq.Array(authors),
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("insert entry for feed %d: %w", feedID, err)
	}
	return id, true, nil
}

// EntryWithExternalIDExists reports whether feedID already has an
// entry with externalID.
func (s *Store) EntryWithExternalIDExists(ctx context.Context, q Querier, feedID int64, externalID string) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM feed_entries WHERE feed_id = $1 AND external_id = $2)`,
		feedID, externalID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check entry exists: %w", err)
	}
	return exists, nil
}

// GetEntries returns feedID's entries, newest first. Ownership is
// enforced by joining on the feed's user_id.
func (s *Store) GetEntries(ctx context.Context, q Querier, userID string, feedID int64) ([]model.FeedEntry, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT e.id, e.feed_id, e.external_id, e.title, e.summary, e.url, e.authors, e.created_at, e.read_at
		FROM feed_entries e
		INNER JOIN feeds f ON f.id = e.feed_id
		WHERE f.user_id = $1 AND e.feed_id = $2
		ORDER BY e.created_at DESC`,
		userID, feedID,
	)
	if err != nil {
		return nil, fmt.Errorf("list entries for feed %d: %w", feedID, err)
	}
	defer rows.Close()

	var entries []model.FeedEntry
	for rows.Next() {
		e, err := scanEntryRow(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// GetUnreadEntries returns feedID's unread entries, newest first.
func (s *Store) GetUnreadEntries(ctx context.Context, q Querier, userID string, feedID int64) ([]model.FeedEntry, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT e.id, e.feed_id, e.external_id, e.title, e.summary, e.url, e.authors, e.created_at, e.read_at
		FROM feed_entries e
		INNER JOIN feeds f ON f.id = e.feed_id
		WHERE f.user_id = $1 AND e.feed_id = $2 AND e.read_at IS NULL
		ORDER BY e.created_at DESC`,
		userID, feedID,
	)
	if err != nil {
		return nil, fmt.Errorf("list unread entries for feed %d: %w", feedID, err)
	}
	defer rows.Close()

	var entries []model.FeedEntry
	for rows.Next() {
		e, err := scanEntryRow(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// GetEntry fetches a single entry owned (via its feed) by userID.
func (s *Store) GetEntry(ctx context.Context, q Querier, userID string, entryID int64) (*model.FeedEntry, error) {
	row := q.QueryRowContext(ctx, `
		SELECT e.id, e.feed_id, e.external_id, e.title, e.summary, e.url, e.authors, e.created_at, e.read_at
		FROM feed_entries e
		INNER JOIN feeds f ON f.id = e.feed_id
		WHERE f.user_id = $1 AND e.id = $2`,
		userID, entryID,
	)
	var (
		e       model.FeedEntry
		authors []string
		readAt  sql.NullTime
	)
	err := row.Scan(&e.ID, &e.FeedID, &e.ExternalID, &e.Title, &e.Summary, &e.URL, pq.Array(&authors), &e.CreatedAt, &readAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan entry: %w", err)
	}
	e.Authors = authors
	if readAt.Valid {
		e.ReadAt = &readAt.Time
	}
	return &e, nil
}

// MarkEntryRead sets entryID's read_at to now, scoped to userID's
// ownership of the parent feed.
func (s *Store) MarkEntryRead(ctx context.Context, q Querier, userID string, entryID int64) error {
	res, err := q.ExecContext(ctx, `
		UPDATE feed_entries e
		SET read_at = now()
		FROM feeds f
		WHERE f.id = e.feed_id AND f.user_id = $1 AND e.id = $2 AND e.read_at IS NULL`,
		userID, entryID,
	)
	if err != nil {
		return fmt.Errorf("mark entry %d read: %w", entryID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark entry %d read: %w", entryID, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanEntryRow(rows *sql.Rows) (*model.FeedEntry, error) {
	var (
		e       model.FeedEntry
		authors []string
		readAt  sql.NullTime
	)
	if err := rows.Scan(&e.ID, &e.FeedID, &e.ExternalID, &e.Title, &e.Summary, &e.URL, pq.Array(&authors), &e.CreatedAt, &readAt); err != nil {
		return nil, fmt.Errorf("scan entry row: %w", err)
	}
	e.Authors = authors
	if readAt.Valid {
		e.ReadAt = &readAt.Time
	}
	return &e, nil
}
