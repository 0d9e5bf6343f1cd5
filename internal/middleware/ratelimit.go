package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/momoso/api/internal/cache"
	"github.com/momoso/api/internal/model"
)

// RateLimiter counts requests per subject in fixed windows stored in
// Redis, so the limit holds across API instances
type RateLimiter struct {
	store  cache.Store
	scope  string
	rate   int           // Requests per window
	window time.Duration // Time window
}

// RateLimitConfig holds rate limiter configuration
type RateLimitConfig struct {
	Store  cache.Store
	Scope  string        // Key namespace, e.g. "api" or "otp" (default "api")
	Rate   int           // Requests per window (default 100)
	Window time.Duration // Time window (default 1 minute)
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.Scope == "" {
		cfg.Scope = "api"
	}
	if cfg.Rate == 0 {
		cfg.Rate = 100
	}
	if cfg.Window == 0 {
		cfg.Window = time.Minute
	}

	return &RateLimiter{
		store:  cfg.Store,
		scope:  cfg.Scope,
		rate:   cfg.Rate,
		window: cfg.Window,
	}
}

// Allow records a hit for key and reports whether it is within the limit
func (rl *RateLimiter) Allow(r *http.Request, key string) (allowed bool, remaining int, resetTime time.Time, err error) {
	count, ttl, err := rl.store.Incr(r.Context(), cache.RateLimitKey(rl.scope, key), rl.window)
	if err != nil {
		return true, rl.rate, time.Now().Add(rl.window), err
	}
	if ttl <= 0 {
		ttl = rl.window
	}
	resetTime = time.Now().Add(ttl)

	remaining = rl.rate - int(count)
	if remaining < 0 {
		return false, 0, resetTime, nil
	}
	return true, remaining, resetTime, nil
}

// RateLimit returns a middleware that applies rate limiting. The store
// being unreachable lets requests through.
func RateLimit(limiter *RateLimiter) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Get rate limit key (user ID if authenticated, otherwise IP)
			key := GetUserID(r.Context())
			if key == "" {
				key = clientIP(r)
			}

			allowed, remaining, resetTime, err := limiter.Allow(r, key)
			if err != nil {
				slog.WarnContext(r.Context(), "rate limit store unavailable",
					slog.String("scope", limiter.scope),
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limiter.rate))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetTime.Unix(), 10))

			if !allowed {
				retryAfter := int(time.Until(resetTime).Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))

				model.NewRateLimitError(retryAfter).WriteJSON(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
