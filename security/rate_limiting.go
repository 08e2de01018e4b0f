package security

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pocketbase/pocketbase/core"
	"github.com/redis/go-redis/v9"

	"volunteer-hub/internal/lib/logger/sl"
)

// RateLimiter counts requests per caller in fixed Redis windows.
type RateLimiter struct {
	redis  *redis.Client
	log    *slog.Logger
	limit  int64
	window time.Duration
}

func NewRateLimiter(redisClient *redis.Client, limit int, window time.Duration, log *slog.Logger) *RateLimiter {
	return &RateLimiter{
		redis:  redisClient,
		log:    log.With(slog.String("component", "rate_limiter")),
		limit:  int64(limit),
		window: window,
	}
}

// Allow records one request for id under scope and reports whether it
// stays within the limit.
func (r *RateLimiter) Allow(ctx context.Context, scope, id string) (bool, error) {
	key := fmt.Sprintf("ratelimit:%s:%s", scope, id)

	count, err := r.redis.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("rate limit incr %s: %w", key, err)
	}
	if count == 1 {
		if err := r.redis.Expire(ctx, key, r.window).Err(); err != nil {
			return false, fmt.Errorf("rate limit expire %s: %w", key, err)
		}
	}
	return count <= r.limit, nil
}

// SignupRateLimit limits signup and cancel requests per authenticated user,
// or per IP for anonymous callers. Redis failures let the request through.
func (r *RateLimiter) SignupRateLimit() func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		allowed, err := r.Allow(e.Request.Context(), "signup", identifier(e))
		if err != nil {
			r.log.Warn("rate limiter unavailable, allowing request", sl.Err(err))
			return e.Next()
		}
		if !allowed {
			return e.JSON(http.StatusTooManyRequests, map[string]string{
				"error": "Rate limit exceeded. Please try again later.",
			})
		}
		return e.Next()
	}
}

// AntiBotMiddleware rejects crawler user agents.
func (r *RateLimiter) AntiBotMiddleware() func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		if isSuspiciousUserAgent(e.Request.UserAgent()) {
			return e.JSON(http.StatusForbidden, map[string]string{
				"error": "Access denied",
			})
		}
		return e.Next()
	}
}

func identifier(e *core.RequestEvent) string {
	if e.Auth != nil && e.Auth.Id != "" {
		return "user:" + e.Auth.Id
	}
	// RealIP consults the app's trusted proxy settings
	if e.App != nil {
		return "ip:" + e.RealIP()
	}
	return "ip:" + e.RemoteIP()
}

func isSuspiciousUserAgent(ua string) bool {
	ua = strings.ToLower(ua)
	for _, pattern := range []string{"bot", "crawler", "spider", "scraper"} {
		if strings.Contains(ua, pattern) {
			return true
		}
	}
	return false
}
