// Package handler is the thin HTTP collaborator around the job queue
// core: request parsing, session enforcement, and translating
// model.APIError into the uniform JSON error response.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/vrischmann/servare/internal/middleware"
	"github.com/vrischmann/servare/internal/model"
)

// FeedServiceInterface is the subset of feedservice.Service the
// handler depends on.
type FeedServiceInterface interface {
	RegisterFeed(ctx context.Context, userID, inputURL string) (*model.Feed, error)
	GetFeed(ctx context.Context, userID string, feedID int64) (*model.Feed, error)
	ListFeeds(ctx context.Context, userID string) ([]model.Feed, error)
}

// FeedHandler is the HTTP handler for feed management.
type FeedHandler struct {
	service FeedServiceInterface
}

// NewFeedHandler builds a FeedHandler.
func NewFeedHandler(service FeedServiceInterface) *FeedHandler {
	return &FeedHandler{service: service}
}

type registerFeedRequest struct {
	URL string `json:"url"`
}

type feedResponse struct {
	ID          int64  `json:"id"`
	URL         string `json:"url"`
	Title       string `json:"title"`
	SiteLink    string `json:"site_link"`
	Description string `json:"description"`
	HasFavicon  string `json:"favicon_status"`
}

// RegisterFeed handles POST /api/feeds.
func (h *FeedHandler) RegisterFeed(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
		return
	}

	var req registerFeedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidURLError("request body is not valid JSON"))
		return
	}
	if req.URL == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidURLError("url is required"))
		return
	}

	feed, err := h.service.RegisterFeed(r.Context(), userID, req.URL)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toFeedResponse(feed))
}

// GetFeed handles GET /api/feeds/{id}.
func (h *FeedHandler) GetFeed(w http.ResponseWriter, r *http.Request) {
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

	feed, err := h.service.GetFeed(r.Context(), userID, feedID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toFeedResponse(feed))
}

// ListFeeds handles GET /api/feeds.
func (h *FeedHandler) ListFeeds(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
		return
	}

	feeds, err := h.service.ListFeeds(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	responses := make([]feedResponse, 0, len(feeds))
	for _, f := range feeds {
		responses = append(responses, toFeedResponse(&f))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(responses)
}

func parseFeedID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func toFeedResponse(feed *model.Feed) feedResponse {
	status := "unknown"
	switch feed.HasFavicon {
	case model.FaviconPresent:
		status = "present"
	case model.FaviconAbsent:
		status = "absent"
	}
	return feedResponse{
		ID:          feed.ID,
		URL:         feed.URL,
		Title:       feed.Title,
		SiteLink:    feed.SiteLink,
		Description: feed.Description,
		HasFavicon:  status,
	}
}

// handleServiceError translates a service-layer error into the
// uniform JSON error response, mapping model.APIError codes to HTTP
// status codes and treating anything else as an internal error.
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeFeedNotDetected, model.ErrCodeParseFailed:
		return http.StatusUnprocessableEntity
	case model.ErrCodeInvalidURL:
		return http.StatusBadRequest
	case model.ErrCodeSSRFBlocked:
		return http.StatusForbidden
	case model.ErrCodeFetchFailed:
		return http.StatusBadGateway
	case model.ErrCodeFeedAlreadyExists:
		return http.StatusConflict
	case model.ErrCodeFeedNotFound, model.ErrCodeEntryNotFound:
		return http.StatusNotFound
	case model.ErrCodeUnauthenticated, "INVALID_CREDENTIALS":
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
