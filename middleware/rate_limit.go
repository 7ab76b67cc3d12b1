package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	apperrors "github.com/HydroTrack/hydrotrack-backend/errors"
	"github.com/HydroTrack/hydrotrack-backend/logger"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// CodeRateLimited is returned when a client exceeds its request budget.
const CodeRateLimited = "rate-limited"

// DiagnosticsRateLimiter limits requests per client IP to limit per window using a
// fixed window counter in Redis. Redis failures let the request through.
func DiagnosticsRateLimiter(client redis.Cmdable, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		key := fmt.Sprintf("ratelimit:diagnostics:%s", c.ClientIP())

		count, err := client.Incr(ctx, key).Result()
		if err != nil {
			logger.GetLogger().Warnw("Rate limit check failed, allowing request", "key", key, "error", err)
			c.Next()
			return
		}
		if count == 1 {
			if err := client.Expire(ctx, key, window).Err(); err != nil {
				logger.GetLogger().Warnw("Failed to set rate limit window", "key", key, "error", err)
			}
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))

		if count > int64(limit) {
			ttl, err := client.TTL(ctx, key).Result()
			if err != nil || ttl <= 0 {
				ttl = window
			}
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("Retry-After", strconv.Itoa(int(ttl.Seconds())))

			rejectRateLimited(c)
			return
		}

		c.Header("X-RateLimit-Remaining", strconv.FormatInt(int64(limit)-count, 10))
		c.Next()
	}
}

// LocalDiagnosticsRateLimiter is the in-process counterpart of DiagnosticsRateLimiter,
// used when no Redis client is configured. Each client IP gets a token bucket that
// refills limit tokens per window.
func LocalDiagnosticsRateLimiter(limit int, window time.Duration) gin.HandlerFunc {
	return newLocalLimiter(limit, window, time.Now).handle
}

type localBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// localLimiter keeps one bucket per client IP. A bucket idle for a whole window is
// full again, so it is dropped on the next sweep.
type localLimiter struct {
	limit  int
	window time.Duration
	every  rate.Limit
	now    func() time.Time

	mu        sync.Mutex
	buckets   map[string]*localBucket
	lastSweep time.Time
}

func newLocalLimiter(limit int, window time.Duration, now func() time.Time) *localLimiter {
	if limit <= 0 {
		limit = 1
	}
	return &localLimiter{
		limit:     limit,
		window:    window,
		every:     rate.Every(window / time.Duration(limit)),
		now:       now,
		buckets:   make(map[string]*localBucket),
		lastSweep: now(),
	}
}

// take consumes a token for ip and returns whether it was available and how many remain.
func (l *localLimiter) take(ip string) (bool, int) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) >= l.window {
		for key, b := range l.buckets {
			if now.Sub(b.lastSeen) >= l.window {
				delete(l.buckets, key)
			}
		}
		l.lastSweep = now
	}

	b, ok := l.buckets[ip]
	if !ok {
		b = &localBucket{limiter: rate.NewLimiter(l.every, l.limit)}
		l.buckets[ip] = b
	}
	b.lastSeen = now
	allowed := b.limiter.AllowN(now, 1)
	return allowed, int(b.limiter.TokensAt(now))
}

func (l *localLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *localLimiter) handle(c *gin.Context) {
	allowed, remaining := l.take(c.ClientIP())

	c.Header("X-RateLimit-Limit", strconv.Itoa(l.limit))
	if !allowed {
		c.Header("X-RateLimit-Remaining", "0")
		c.Header("Retry-After", strconv.Itoa(int(l.window.Seconds())))
		rejectRateLimited(c)
		return
	}
	c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
	c.Next()
}

func rejectRateLimited(c *gin.Context) {
	appErr := apperrors.New(apperrors.KindValidation, CodeRateLimited,
		fmt.Sprintf("diagnostics rate limit exceeded for %s", c.ClientIP()),
		"Too many requests. Please try again later.")
	RespondWithError(c, http.StatusTooManyRequests, appErr)
}
