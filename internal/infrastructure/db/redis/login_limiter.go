package redis

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// slidingWindow drops entries older than the window, then adds the attempt
// only if the key is still below the limit. Returns 1 when allowed.
var slidingWindow = redis.NewScript(`
local key    = KEYS[1]
local now    = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit  = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
if redis.call('ZCARD', key) >= limit then
  redis.call('PEXPIRE', key, window)
  return 0
end
redis.call('ZADD', key, now, ARGV[4])
redis.call('PEXPIRE', key, window)
return 1
`)

// LoginLimiter bounds login attempts per key in a sliding window stored as a
// sorted set. When Redis is unreachable it keeps counting in process so the
// limit still holds on this instance.
type LoginLimiter struct {
	client   *redis.Client
	max      int
	window   time.Duration
	fallback *localWindow
	log      zerolog.Logger
}

// NewLoginLimiter allows max attempts per window for each key.
func NewLoginLimiter(client *redis.Client, max int, window time.Duration, log zerolog.Logger) *LoginLimiter {
	return &LoginLimiter{
		client:   client,
		max:      max,
		window:   window,
		fallback: newLocalWindow(max, window, time.Now),
		log:      log,
	}
}

// Allow consumes one attempt for key and reports whether it was within the
// limit.
func (l *LoginLimiter) Allow(ctx context.Context, key string) (bool, error) {
	now := time.Now()
	res, err := slidingWindow.Run(ctx, l.client, []string{key},
		now.UnixMilli(), l.window.Milliseconds(), l.max, uuid.NewString(),
	).Int()
	if err != nil {
		l.log.Warn().Err(err).Str("key", key).Msg("login limiter unavailable, using local window")
		return l.fallback.allow(key), nil
	}
	return res == 1, nil
}

// Reset clears the attempts recorded for key.
func (l *LoginLimiter) Reset(ctx context.Context, key string) error {
	l.fallback.reset(key)
	return l.client.Del(ctx, key).Err()
}

// localWindow is the in-process sliding window used while Redis is down.
type localWindow struct {
	mu        sync.Mutex
	max       int
	window    time.Duration
	now       func() time.Time
	attempts  map[string][]time.Time
	lastSweep time.Time
}

func newLocalWindow(max int, window time.Duration, now func() time.Time) *localWindow {
	return &localWindow{
		max:      max,
		window:   window,
		now:      now,
		attempts: make(map[string][]time.Time),
	}
}

func (w *localWindow) allow(key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	cutoff := now.Add(-w.window)
	if now.Sub(w.lastSweep) >= w.window {
		w.sweep(cutoff)
		w.lastSweep = now
	}
	kept := w.attempts[key][:0]
	for _, at := range w.attempts[key] {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	if len(kept) >= w.max {
		w.attempts[key] = kept
		return false
	}
	w.attempts[key] = append(kept, now)
	return true
}

// sweep drops keys with no attempt after cutoff. Callers hold w.mu.
func (w *localWindow) sweep(cutoff time.Time) {
	for k, ts := range w.attempts {
		if len(ts) == 0 || !ts[len(ts)-1].After(cutoff) {
			delete(w.attempts, k)
		}
	}
}

func (w *localWindow) reset(key string) {
	w.mu.Lock()
	delete(w.attempts, key)
	w.mu.Unlock()
}
