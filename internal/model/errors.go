// Package model defines the domain types shared across servare's packages.
package model

import "fmt"

// APIError is the uniform error shape surfaced to API/form consumers.
// It carries a cause category and a suggested action alongside the message.
type APIError struct {
	Code     string
	Message  string
	Category string // auth, validation, feed, system
	Action   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

const (
	ErrCodeFeedNotDetected   = "FEED_NOT_DETECTED"
	ErrCodeInvalidURL        = "INVALID_URL"
	ErrCodeSSRFBlocked       = "SSRF_BLOCKED"
	ErrCodeFetchFailed       = "FETCH_FAILED"
	ErrCodeParseFailed       = "PARSE_FAILED"
	ErrCodeFeedAlreadyExists = "FEED_ALREADY_EXISTS"
	ErrCodeEntryNotFound     = "ENTRY_NOT_FOUND"
	ErrCodeFeedNotFound      = "FEED_NOT_FOUND"
	ErrCodeUnauthenticated   = "UNAUTHENTICATED"
)

func NewFeedNotDetectedError(url string) *APIError {
	return &APIError{
		Code:     ErrCodeFeedNotDetected,
		Message:  fmt.Sprintf("could not find an RSS/Atom feed at %s", url),
		Category: "feed",
		Action:   "enter the feed URL directly, or a page that links to one.",
	}
}

func NewInvalidURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidURL,
		Message:  fmt.Sprintf("invalid URL: %s", reason),
		Category: "validation",
		Action:   "enter a URL starting with http:// or https://.",
	}
}

func NewSSRFBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeSSRFBlocked,
		Message:  "the requested address is blocked by security policy.",
		Category: "validation",
		Action:   "enter the URL of a public website.",
	}
}

func NewFetchFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeFetchFailed,
		Message:  fmt.Sprintf("failed to fetch: %s", reason),
		Category: "feed",
		Action:   "try again later.",
	}
}

func NewFeedAlreadyExistsError(url string) *APIError {
	return &APIError{
		Code:     ErrCodeFeedAlreadyExists,
		Message:  fmt.Sprintf("you already subscribe to %s", url),
		Category: "feed",
		Action:   "check your feed list.",
	}
}

func NewFeedNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeFeedNotFound,
		Message:  "the requested feed could not be found.",
		Category: "feed",
		Action:   "check the feed id.",
	}
}

func NewEntryNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeEntryNotFound,
		Message:  "the requested entry could not be found.",
		Category: "feed",
		Action:   "check the entry id.",
	}
}

func NewUnauthenticatedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthenticated,
		Message:  "authentication is required.",
		Category: "auth",
		Action:   "log in and try again.",
	}
}

func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     "INVALID_CREDENTIALS",
		Message:  "incorrect email or password.",
		Category: "auth",
		Action:   "check your email and password and try again.",
	}
}
