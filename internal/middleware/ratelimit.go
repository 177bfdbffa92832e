package middleware

import (
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterConfig holds the per-user rate limits.
type RateLimiterConfig struct {
	GeneralRate     rate.Limit    // general API rate, req/sec (120/min = 2/sec)
	GeneralBurst    int           // general API burst size
	FeedRegRate     rate.Limit    // feed registration rate, req/sec (10/min)
	FeedRegBurst    int           // feed registration burst size
	CleanupInterval time.Duration // how often to sweep expired limiter entries
}

// DefaultRateLimiterConfig returns the default limits: 120 req/min/user
// general, 10 req/min/user for feed registration.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:     rate.Limit(120.0 / 60.0),
		GeneralBurst:    120,
		FeedRegRate:     rate.Limit(10.0 / 60.0),
		FeedRegBurst:    10,
		CleanupInterval: 5 * time.Minute,
	}
}

// userLimiter pairs a per-user limiter with its last access time.
type userLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter manages per-user rate limiting across two independent
// buckets: general API traffic and feed registration.
type RateLimiter struct {
	config RateLimiterConfig

	generalMu       sync.RWMutex
	generalLimiters map[string]*userLimiter

	feedRegMu       sync.RWMutex
	feedRegLimiters map[string]*userLimiter

	stopCh chan struct{}
}

// NewRateLimiter builds a RateLimiter and starts its background
// cleanup of expired entries.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		config:          config,
		generalLimiters: make(map[string]*userLimiter),
		feedRegLimiters: make(map[string]*userLimiter),
		stopCh:          make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop ends the background cleanup goroutine.
func (rl *RateLimiter) Stop() {
	close(rl.stopCh)
}

// GeneralMiddleware rate-limits general API traffic. Requires the
// request context to carry a user id (place after the session
// middleware).
func (rl *RateLimiter) GeneralMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := UserIDFromContext(r.Context())
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			limiter := rl.getOrCreateGeneralLimiter(userID)

			if !limiter.Allow() {
				writeRateLimitResponse(w, rl.config.GeneralRate)
				slog.Warn("rate limit exceeded",
					slog.String("user_id", userID),
					slog.String("limit_type", "general"),
				)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// FeedRegistrationMiddleware rate-limits feed registration
// independently of the general limit.
func (rl *RateLimiter) FeedRegistrationMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := UserIDFromContext(r.Context())
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			limiter := rl.getOrCreateFeedRegLimiter(userID)

			if !limiter.Allow() {
				writeRateLimitResponse(w, rl.config.FeedRegRate)
				slog.Warn("rate limit exceeded",
					slog.String("user_id", userID),
					slog.String("limit_type", "feed_registration"),
				)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GeneralLimiterCount returns the number of tracked general limiters.
// For tests and metrics.
func (rl *RateLimiter) GeneralLimiterCount() int {
	rl.generalMu.RLock()
	defer rl.generalMu.RUnlock()
	return len(rl.generalLimiters)
}

// FeedRegLimiterCount returns the number of tracked feed-registration
// limiters. For tests and metrics.
func (rl *RateLimiter) FeedRegLimiterCount() int {
	rl.feedRegMu.RLock()
	defer rl.feedRegMu.RUnlock()
	return len(rl.feedRegLimiters)
}

func (rl *RateLimiter) getOrCreateGeneralLimiter(userID string) *rate.Limiter {
	rl.generalMu.RLock()
	ul, exists := rl.generalLimiters[userID]
	rl.generalMu.RUnlock()

	if exists {
		rl.generalMu.Lock()
		ul.lastAccess = time.Now()
		rl.generalMu.Unlock()
		return ul.limiter
	}

	rl.generalMu.Lock()
	defer rl.generalMu.Unlock()

	if ul, exists := rl.generalLimiters[userID]; exists {
		ul.lastAccess = time.Now()
		return ul.limiter
	}

	limiter := rate.NewLimiter(rl.config.GeneralRate, rl.config.GeneralBurst)
	rl.generalLimiters[userID] = &userLimiter{
		limiter:    limiter,
		lastAccess: time.Now(),
	}

	return limiter
}

func (rl *RateLimiter) getOrCreateFeedRegLimiter(userID string) *rate.Limiter {
	rl.feedRegMu.RLock()
	ul, exists := rl.feedRegLimiters[userID]
	rl.feedRegMu.RUnlock()

	if exists {
		rl.feedRegMu.Lock()
		ul.lastAccess = time.Now()
		rl.feedRegMu.Unlock()
		return ul.limiter
	}

	rl.feedRegMu.Lock()
	defer rl.feedRegMu.Unlock()

	if ul, exists := rl.feedRegLimiters[userID]; exists {
		ul.lastAccess = time.Now()
		return ul.limiter
	}

	limiter := rate.NewLimiter(rl.config.FeedRegRate, rl.config.FeedRegBurst)
	rl.feedRegLimiters[userID] = &userLimiter{
		limiter:    limiter,
		lastAccess: time.Now(),
	}

	return limiter
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup evicts entries that haven't been accessed in over twice the
// cleanup interval.
func (rl *RateLimiter) cleanup() {
	ttl := rl.config.CleanupInterval * 2

	now := time.Now()

	rl.generalMu.Lock()
	for userID, ul := range rl.generalLimiters {
		if now.Sub(ul.lastAccess) > ttl {
			delete(rl.generalLimiters, userID)
		}
	}
	rl.generalMu.Unlock()

	rl.feedRegMu.Lock()
	for userID, ul := range rl.feedRegLimiters {
		if now.Sub(ul.lastAccess) > ttl {
			delete(rl.feedRegLimiters, userID)
		}
	}
	rl.feedRegMu.Unlock()
}

// writeRateLimitResponse writes a 429 with a Retry-After estimate for
// when the next token becomes available.
func writeRateLimitResponse(w http.ResponseWriter, r rate.Limit) {
	retryAfterSec := int(math.Ceil(1.0 / float64(r)))
	if retryAfterSec < 1 {
		retryAfterSec = 1
	}

	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)

	json.NewEncoder(w).Encode(map[string]string{
		"code":     "rate_limit_exceeded",
		"message":  "Too many requests. Please try again later.",
		"category": "system",
		"action":   "Please wait and retry after the specified time.",
	})
}
