package scanner

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Throttler spaces attempts against the same proxy endpoint. Each proxy
// gets its own token bucket, so a list with many distinct proxies still
// runs at full worker width.
type Throttler struct {
	mu       sync.Mutex
	interval time.Duration
	burst    int
	limiters map[string]*rate.Limiter
}

// NewThrottler allows burst attempts per proxy, then one per interval.
// An interval of zero disables throttling.
func NewThrottler(interval time.Duration, burst int) *Throttler {
	if burst < 1 {
		burst = 1
	}
	return &Throttler{
		interval: interval,
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Wait blocks until key (a proxy address) may be used again. A nil or
// disabled Throttler never blocks.
func (t *Throttler) Wait(ctx context.Context, key string) error {
	if t == nil || t.interval <= 0 {
		return nil
	}
	return t.limiter(key).Wait(ctx)
}

func (t *Throttler) limiter(key string) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()
	lim, ok := t.limiters[key]
	if !ok {
		lim = rate.NewLimiter(rate.Every(t.interval), t.burst)
		t.limiters[key] = lim
	}
	return lim
}
