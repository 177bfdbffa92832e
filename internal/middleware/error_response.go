package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/vrischmann/servare/internal/model"
)

// ErrorResponseBody is the uniform API error response shape: the
// cause category and a suggested action travel alongside the message.
type ErrorResponseBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// WriteErrorResponse writes an HTTP error response in the uniform
// format, used consistently across every API endpoint.
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// WriteInternalServerError writes the uniform response for an
// unclassified internal error. Details belong in the log only; the
// client gets a generic message.
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "An internal error occurred.",
		Category: "system",
		Action:   "Please try again shortly.",
	})
}
