// Package middleware provides the HTTP middleware chain servare's
// router installs ahead of its handlers.
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/vrischmann/servare/internal/model"
)

const sessionCookieName = "session_id"

// contextKey is a type-safe key for values stored on a request context.
type contextKey string

var userIDContextKey = contextKey("user_id")

// SessionFinder is the lookup auth session verification needs — a
// subset of auth's session store.
type SessionFinder interface {
	FindByID(ctx context.Context, id string) (*model.Session, error)
}

// NewSessionMiddleware reads the session cookie, validates it against
// sessionFinder, and injects the authenticated user id into the
// request context. Unauthenticated requests get 401 Unauthorized.
func NewSessionMiddleware(sessionFinder SessionFinder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(sessionCookieName)
			if err != nil || cookie.Value == "" {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
				return
			}

			session, err := sessionFinder.FindByID(r.Context(), cookie.Value)
			if err != nil {
				slog.Error("failed to find session", slog.String("error", err.Error()))
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
				return
			}
			if session == nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
				return
			}

			ctx := context.WithValue(r.Context(), userIDContextKey, session.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFromContext retrieves the authenticated user id. It only
// succeeds on a request that passed through the session middleware.
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// ContextWithUserID injects a user id into ctx, for tests and
// non-middleware context construction.
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}
