package fetch

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter combines a global request-rate ceiling with a per-domain
// politeness delay. It is safe for concurrent use and is meant to be shared
// by every fetcher in the process.
type Limiter struct {
	bucket *rate.Limiter
	delay  time.Duration

	mu         sync.Mutex
	lastAccess map[string]time.Time
}

// NewLimiter creates a Limiter allowing reqPerSec requests per second
// system-wide and at least domainDelay between requests to the same domain.
func NewLimiter(reqPerSec float64, domainDelay time.Duration) *Limiter {
	return &Limiter{
		bucket:     rate.NewLimiter(rate.Limit(reqPerSec), 1),
		delay:      domainDelay,
		lastAccess: make(map[string]time.Time),
	}
}

// Wait blocks until a request to domain is allowed: first on the global
// token bucket, then on the domain's politeness window. The domain slot is
// reserved before sleeping so concurrent callers queue up behind each other
// instead of racing for the same window.
func (l *Limiter) Wait(ctx context.Context, domain string) error {
	if err := l.bucket.Wait(ctx); err != nil {
		return err
	}

	l.mu.Lock()
	now := time.Now()
	ready := now
	if last, ok := l.lastAccess[domain]; ok {
		if next := last.Add(l.delay); next.After(now) {
			ready = next
		}
	}
	l.lastAccess[domain] = ready
	l.mu.Unlock()

	if wait := time.Until(ready); wait > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil
}
