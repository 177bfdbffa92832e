package feedservice

import (
	"context"

	"github.com/vrischmann/servare/internal/feedstore"
	"github.com/vrischmann/servare/internal/model"
)

// EntryService adapts feedstore.Store's Querier-parameterized entry
// methods to the no-transaction signature the HTTP handler expects,
// always reading and writing against the pooled *sql.DB.
type EntryService struct {
	Feeds *feedstore.Store
}

// NewEntryService builds an EntryService.
func NewEntryService(feeds *feedstore.Store) *EntryService {
	return &EntryService{Feeds: feeds}
}

func (s *EntryService) GetEntries(ctx context.Context, userID string, feedID int64) ([]model.FeedEntry, error) {
	return s.Feeds.GetEntries(ctx, s.Feeds.DB(), userID, feedID)
}

func (s *EntryService) GetUnreadEntries(ctx context.Context, userID string, feedID int64) ([]model.FeedEntry, error) {
	return s.Feeds.GetUnreadEntries(ctx, s.Feeds.DB(), userID, feedID)
}

func (s *EntryService) GetEntry(ctx context.Context, userID string, entryID int64) (*model.FeedEntry, error) {
	entry, err := s.Feeds.GetEntry(ctx, s.Feeds.DB(), userID, entryID)
	if err != nil {
		if err == feedstore.ErrNotFound {
			return nil, model.NewEntryNotFoundError()
		}
		return nil, err
	}
	return entry, nil
}

func (s *EntryService) MarkEntryRead(ctx context.Context, userID string, entryID int64) error {
	err := s.Feeds.MarkEntryRead(ctx, s.Feeds.DB(), userID, entryID)
	if err == feedstore.ErrNotFound {
		return model.NewEntryNotFoundError()
	}
	return err
}
