package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vrischmann/servare/internal/middleware"
	"github.com/vrischmann/servare/internal/model"
)

// EntryServiceInterface is the subset of feedservice.EntryService the entry
// handler depends on, scoped to read/mark-read operations.
type EntryServiceInterface interface {
	GetEntries(ctx context.Context, userID string, feedID int64) ([]model.FeedEntry, error)
	GetUnreadEntries(ctx context.Context, userID string, feedID int64) ([]model.FeedEntry, error)
	GetEntry(ctx context.Context, userID string, entryID int64) (*model.FeedEntry, error)
	MarkEntryRead(ctx context.Context, userID string, entryID int64) error
}

// EntryHandler is the HTTP handler for feed entries.
type EntryHandler struct {
	service EntryServiceInterface
}

// NewEntryHandler builds an EntryHandler.
func NewEntryHandler(service EntryServiceInterface) *EntryHandler {
	return &EntryHandler{service: service}
}

type entryResponse struct {
	ID         int64      `json:"id"`
	FeedID     int64      `json:"feed_id"`
	ExternalID string     `json:"external_id"`
	Title      string     `json:"title"`
	Summary    string     `json:"summary"`
	URL        string     `json:"url"`
	Authors    []string   `json:"authors"`
	CreatedAt  time.Time  `json:"created_at"`
	ReadAt     *time.Time `json:"read_at,omitempty"`
}

// ListEntries handles GET /api/feeds/{id}/entries, optionally
// filtered to unread-only via ?unread=true.
func (h *EntryHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
		return
	}

	feedID, err := parseFeedID(r)
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewFeedNotFoundError())
		return
	}

	var entries []model.FeedEntry
	if r.URL.Query().Get("unread") == "true" {
		entries, err = h.service.GetUnreadEntries(r.Context(), userID, feedID)
	} else {
		entries, err = h.service.GetEntries(r.Context(), userID, feedID)
	}
	if err != nil {
		handleServiceError(w, err)
		return
	}

	responses := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		responses = append(responses, toEntryResponse(&e))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(responses)
}

// GetEntry handles GET /api/entries/{id}.
func (h *EntryHandler) GetEntry(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
		return
	}

	entryID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewEntryNotFoundError())
		return
	}

	entry, err := h.service.GetEntry(r.Context(), userID, entryID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toEntryResponse(entry))
}

// MarkRead handles POST /api/entries/{id}/read.
func (h *EntryHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
		return
	}

	entryID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewEntryNotFoundError())
		return
	}

	if err := h.service.MarkEntryRead(r.Context(), userID, entryID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func toEntryResponse(e *model.FeedEntry) entryResponse {
	return entryResponse{
		ID:         e.ID,
		FeedID:     e.FeedID,
		ExternalID: e.ExternalID,
		Title:      e.Title,
		Summary:    e.Summary,
		URL:        e.URL,
		Authors:    e.Authors,
		CreatedAt:  e.CreatedAt,
		ReadAt:     e.ReadAt,
	}
}
