package rate

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryLimiter is the single-process fallback used when Redis is not
// configured. Same fixed-window semantics as RedisLimiter.
type MemoryLimiter struct {
	cache  *gocache.Cache
	Max    int64
	Window time.Duration
}

func NewMemoryLimiter(max int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		cache:  gocache.New(window, 2*window),
		Max:    int64(max),
		Window: window,
	}
}

func (l *MemoryLimiter) Allow(ctx context.Context, key string) (Result, error) {
	winStart := time.Now().UTC().Truncate(l.Window)
	k := fmt.Sprintf("%s:%d", key, winStart.Unix())

	_ = l.cache.Add(k, int64(0), l.Window)
	hits, err := l.cache.IncrementInt64(k, 1)
	if err != nil {
		// entry evicted between Add and Increment, start a fresh window
		l.cache.Set(k, int64(1), l.Window)
		hits = 1
	}

	allowed := hits <= l.Max
	remaining := l.Max - hits
	if remaining < 0 {
		remaining = 0
	}
	res := Result{
		Allowed:     allowed,
		Remaining:   remaining,
		CurrentHits: hits,
		WindowTTL:   l.Window,
	}
	if !allowed {
		res.RetryAfter = winStart.Add(l.Window).Sub(time.Now().UTC())
		if res.RetryAfter < 0 {
			res.RetryAfter = 0
		}
	}
	return res, nil
}
