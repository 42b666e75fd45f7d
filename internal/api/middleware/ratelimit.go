package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	redis_rate "github.com/go-redis/redis_rate/v10"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/branchdesk/opshub/internal/api/metrics"
	"github.com/branchdesk/opshub/internal/core/service"
)

// ThrottleConfig configures the global per-client request throttle.
type ThrottleConfig struct {
	Limit    redis_rate.Limit
	FailOpen bool
	Skipper  func(echo.Context) bool
}

// PerMinute builds a limit of rpm requests per minute with the given burst.
func PerMinute(rpm, burst int) redis_rate.Limit {
	return redis_rate.Limit{Rate: rpm, Burst: burst, Period: time.Minute}
}

type throttle struct {
	limiter  *redis_rate.Limiter
	fallback *localLimiter
	cfg      ThrottleConfig
	log      zerolog.Logger
}

// Throttle limits requests per client IP through Redis. When Redis errors
// the in-process limiter takes over.
func Throttle(rdb *redis.Client, cfg ThrottleConfig, log zerolog.Logger) echo.MiddlewareFunc {
	t := &throttle{
		limiter:  redis_rate.NewLimiter(rdb),
		fallback: newLocalLimiter(),
		cfg:      cfg,
		log:      log,
	}
	return t.middleware
}

func (t *throttle) middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if t.cfg.Skipper != nil && t.cfg.Skipper(c) {
			return next(c)
		}

		key := "ratelimit:ip:" + service.NormalizeIP(c.RealIP())
		res, err := t.allow(c.Request().Context(), key)
		if err != nil {
			if t.cfg.FailOpen {
				t.log.Warn().Err(err).Str("key", key).Msg("rate limiter error, failing open")
				return next(c)
			}
			return echo.NewHTTPError(http.StatusServiceUnavailable, "service unavailable")
		}

		h := c.Response().Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(t.cfg.Limit.Rate))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))

		if res.Allowed == 0 {
			metrics.ThrottledRequestsTotal.Inc()
			retryAfter := int(res.RetryAfter.Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			h.Set("Retry-After", strconv.Itoa(retryAfter))
			return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
		}
		return next(c)
	}
}

func (t *throttle) allow(ctx context.Context, key string) (*redis_rate.Result, error) {
	res, err := t.limiter.Allow(ctx, key, t.cfg.Limit)
	if err != nil {
		return t.fallback.allow(key, t.cfg.Limit)
	}
	return res, nil
}

type limiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// localLimiter is a token bucket per key, used while Redis is unreachable.
type localLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*limiterEntry
	now       func() time.Time
	lastSweep time.Time
}

const (
	entryTTL      = 10 * time.Minute
	sweepInterval = time.Minute
)

func newLocalLimiter() *localLimiter {
	return &localLimiter{limiters: make(map[string]*limiterEntry), now: time.Now}
}

func (l *localLimiter) allow(key string, limit redis_rate.Limit) (*redis_rate.Result, error) {
	if limit.Rate <= 0 || limit.Period <= 0 {
		return nil, fmt.Errorf("invalid limit %v", limit)
	}
	ratePerSec := float64(limit.Rate) / limit.Period.Seconds()
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) >= sweepInterval {
		l.evict(now)
		l.lastSweep = now
	}
	entry, ok := l.limiters[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(rate.Limit(ratePerSec), limit.Burst)}
		l.limiters[key] = entry
	}
	entry.lastAccess = now

	allowed := entry.limiter.AllowN(now, 1)
	remaining := int(entry.limiter.TokensAt(now))
	if remaining < 0 {
		remaining = 0
	}

	res := &redis_rate.Result{
		Limit:      limit,
		Remaining:  remaining,
		RetryAfter: -1,
		ResetAfter: time.Duration(float64(time.Second) / ratePerSec),
	}
	if allowed {
		res.Allowed = 1
	} else {
		res.RetryAfter = time.Duration(float64(time.Second) / ratePerSec)
	}
	return res, nil
}

// evict drops idle entries. Callers hold l.mu.
func (l *localLimiter) evict(now time.Time) {
	cutoff := now.Add(-entryTTL)
	for k, e := range l.limiters {
		if e.lastAccess.Before(cutoff) {
			delete(l.limiters, k)
		}
	}
}
