// Package ratelimit throttles abusable routes (login and recovery) per
// client with a Redis fixed-window counter.
package ratelimit

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrijs2005/accountkeeper/internal/logging"
	"github.com/go-chi/render"
	"github.com/redis/go-redis/v9"
)

// Limiter allows Limit requests per Window for each client key.
type Limiter struct {
	rdb    redis.Cmdable
	limit  int
	window time.Duration
	prefix string
	logger logging.Logger
}

func New(rdb redis.Cmdable, limit int, window time.Duration, prefix string, logger logging.Logger) *Limiter {
	return &Limiter{
		rdb:    rdb,
		limit:  limit,
		window: window,
		prefix: prefix,
		logger: logger.With("module", "ratelimit"),
	}
}

// Allow counts one hit for clientID. It returns whether the hit is within
// the limit, the hits left and the time until the window resets.
func (l *Limiter) Allow(ctx context.Context, clientID string) (bool, int, time.Duration, error) {
	key := l.prefix + ":" + clientID

	count, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		return true, l.limit, 0, err
	}

	// A key without a TTL would never reset, so the expiry is set whenever
	// it is missing rather than only on the first hit.
	ttl, err := l.rdb.TTL(ctx, key).Result()
	if err != nil {
		ttl = l.window
	} else if ttl < 0 {
		if err := l.rdb.Expire(ctx, key, l.window).Err(); err != nil {
			return true, l.limit, 0, err
		}
		ttl = l.window
	}

	remaining := l.limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return count <= int64(l.limit), remaining, ttl, nil
}

// Middleware rejects over-limit clients with 429 and Retry-After. Redis
// errors let the request through.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		ok, remaining, reset, err := l.Allow(ctx, clientIP(r))
		if err != nil {
			l.logger.Warn(ctx, "rate limiter unavailable, allowing request", "error", err)
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.Itoa(seconds(reset)))

		if !ok {
			w.Header().Set("Retry-After", strconv.Itoa(seconds(reset)))
			render.Status(r, http.StatusTooManyRequests)
			render.JSON(w, r, map[string]any{
				"detail": map[string]string{"message": "Too many requests. Please try again later."},
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientIP expects chi's RealIP middleware to have normalised RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "ip:" + r.RemoteAddr
	}
	return "ip:" + host
}

func seconds(d time.Duration) int {
	s := int((d + time.Second - 1) / time.Second)
	if s < 1 {
		s = 1
	}
	return s
}
