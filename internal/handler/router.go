package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vrischmann/servare/internal/middleware"
)

// RouterDeps bundles the dependencies NewRouter needs to wire the
// full route tree and middleware stack.
type RouterDeps struct {
	Logger *slog.Logger

	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRFConfig        middleware.CSRFConfig

	// HealthChecker backs GET /health. Nil is treated as always-healthy,
	// so router_test.go doesn't need a real database handle.
	HealthChecker Pinger

	AuthService  AuthServiceInterface
	AuthConfig   AuthHandlerConfig
	FeedService  FeedServiceInterface
	EntryService EntryServiceInterface
}

// Pinger is satisfied by *sql.DB. Kept minimal so the health route
// doesn't pull a database dependency into the handler package.
type Pinger interface {
	Ping() error
}

// NewRouter builds the full API router and middleware chain.
//
// Middleware order: Recovery -> SecurityHeaders -> Logging -> CORS ->
// CSRF, applied to every route. Authenticated routes additionally run
// Session and the general rate limiter; feed registration adds its
// own stricter limiter on top.
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	feedHandler := NewFeedHandler(deps.FeedService)
	entryHandler := NewEntryHandler(deps.EntryService)

	r.Get("/health", newHealthHandler(deps.HealthChecker))

	r.Get("/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig).ServeHTTP)

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/signup", authHandler.Signup)
		r.Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/api/auth/me", authHandler.Me)

		r.Route("/api/feeds", func(r chi.Router) {
			r.With(deps.RateLimiter.FeedRegistrationMiddleware()).Post("/", feedHandler.RegisterFeed)
			r.Get("/", feedHandler.ListFeeds)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", feedHandler.GetFeed)
				r.Get("/entries", entryHandler.ListEntries)
			})
		})

		r.Route("/api/entries/{id}", func(r chi.Router) {
			r.Get("/", entryHandler.GetEntry)
			r.Post("/read", entryHandler.MarkRead)
		})
	})

	return r
}

// newHealthHandler reports 200 as long as the database is reachable,
// for a container's HEALTHCHECK instruction and load balancer probes.
func newHealthHandler(checker Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			if err := checker.Ping(); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte("db unreachable"))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}
}
