package ratelimit

import (
	"sync"
	"time"
)

// Limiter owns one Bucket per client key, created lazily on first use and
// reclaimed by a background sweep once idle past idleTimeout.
type Limiter struct {
	rate  float64
	burst float64

	idleTimeout time.Duration

	mu      sync.RWMutex
	buckets map[string]*trackedBucket

	stopCleanup chan struct{}
	cleanupOnce sync.Once
}

type trackedBucket struct {
	bucket     *Bucket
	lastAccess time.Time
	mu         sync.Mutex
}

// NewLimiter constructs a per-client Limiter. idleTimeout of 0 disables the
// background sweep (buckets live for the process lifetime — fine for tests
// and small deployments).
func NewLimiter(rate, burst float64, idleTimeout time.Duration) *Limiter {
	l := &Limiter{
		rate:        rate,
		burst:       burst,
		idleTimeout: idleTimeout,
		buckets:     make(map[string]*trackedBucket),
		stopCleanup: make(chan struct{}),
	}
	if idleTimeout > 0 {
		go l.sweep()
	}
	return l
}

// Allow admits or rejects one request for key, creating that client's
// bucket on first use.
func (l *Limiter) Allow(key string) bool {
	tb := l.getOrCreate(key)
	tb.mu.Lock()
	tb.lastAccess = time.Now()
	tb.mu.Unlock()
	return tb.bucket.Allow()
}

// Remaining reports the current token count for key without consuming one,
// creating that client's bucket on first use. Callers use this to populate
// rate-limit response headers alongside Allow.
func (l *Limiter) Remaining(key string) float64 {
	tb := l.getOrCreate(key)
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.bucket.Remaining()
}

// Burst returns the configured burst capacity, the limit reported to
// clients in the X-RateLimit-Limit header.
func (l *Limiter) Burst() float64 {
	return l.burst
}

func (l *Limiter) getOrCreate(key string) *trackedBucket {
	l.mu.RLock()
	tb, ok := l.buckets[key]
	l.mu.RUnlock()
	if ok {
		return tb
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if tb, ok := l.buckets[key]; ok {
		return tb
	}
	tb = &trackedBucket{bucket: NewBucket(l.rate, l.burst), lastAccess: time.Now()}
	l.buckets[key] = tb
	return tb
}

func (l *Limiter) sweep() {
	ticker := time.NewTicker(l.idleTimeout)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.evictIdle()
		case <-l.stopCleanup:
			return
		}
	}
}

func (l *Limiter) evictIdle() {
	now := time.Now()
	var stale []string
	l.mu.RLock()
	for key, tb := range l.buckets {
		tb.mu.Lock()
		idle := now.Sub(tb.lastAccess) > l.idleTimeout
		tb.mu.Unlock()
		if idle {
			stale = append(stale, key)
		}
	}
	l.mu.RUnlock()

	if len(stale) == 0 {
		return
	}
	l.mu.Lock()
	for _, key := range stale {
		delete(l.buckets, key)
	}
	l.mu.Unlock()
}

// Stop ends the background sweep goroutine, if one was started.
func (l *Limiter) Stop() {
	l.cleanupOnce.Do(func() {
		close(l.stopCleanup)
	})
}
