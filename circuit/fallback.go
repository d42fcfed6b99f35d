package circuit

import (
	"context"
	"fmt"
	"time"

	"github.com/kevin-toles/llm-gateway/gwerrors"
	"github.com/kevin-toles/llm-gateway/gwlog"
)

// Attempt is one backend's outcome within a Chain.Execute call, used to
// build a diagnostic trail.
type Attempt struct {
	Backend string
	Skipped bool // true if the circuit breaker was open
	Err     error
}

// FallbackMetrics is the narrow recording surface Chain.Execute reports
// per-backend attempts to. metrics.Collector satisfies it via duck typing.
type FallbackMetrics interface {
	RecordFallbackAttempt(backend string, success bool)
}

// Chain runs an ordered list of named backend calls, skipping any whose
// breaker is open, and falls through to a LocalCache keyed by cacheKey once
// every backend has failed or been skipped.
type Chain struct {
	breakers *Registry
	cache    LocalCache
	cacheTTL time.Duration
	log      gwlog.Logger
	metrics  FallbackMetrics
}

// NewChain constructs a Chain. cache may be nil, in which case the chain
// has no terminal fallback and returns gwerrors.ErrFallbackExhausted once
// every backend is exhausted.
func NewChain(breakers *Registry, cache LocalCache, cacheTTL time.Duration, log gwlog.Logger) *Chain {
	if log == nil {
		log = gwlog.NoopLogger{}
	}
	return &Chain{breakers: breakers, cache: cache, cacheTTL: cacheTTL, log: log}
}

// SetMetrics installs the recorder Execute reports per-backend attempts
// and successes to.
func (c *Chain) SetMetrics(m FallbackMetrics) {
	c.metrics = m
}

// Backend is one named, ordered link in the chain: a name plus the call to
// make. The cache key used once every backend has failed is passed to
// Execute, not carried by a Backend.
type Backend struct {
	Name string
	Call func(ctx context.Context) (string, error)
}

// Execute tries each backend in order, skipping any whose breaker is open,
// recording success/failure against that backend's breaker, and falling
// through to the local cache on total exhaustion. cacheKey identifies the
// request for both a cache read (on exhaustion) and a cache write (on the
// first backend success).
func (c *Chain) Execute(ctx context.Context, cacheKey string, backends []Backend) (string, []Attempt, error) {
	var trail []Attempt

	for _, backend := range backends {
		breaker := c.breakers.Get(backend.Name)
		if !breaker.Allow() {
			trail = append(trail, Attempt{Backend: backend.Name, Skipped: true})
			c.log.Info(ctx, "circuit open, skipping backend", gwlog.F("backend", backend.Name))
			continue
		}

		result, err := backend.Call(ctx)
		if err == nil {
			breaker.RecordSuccess()
			if c.metrics != nil {
				c.metrics.RecordFallbackAttempt(backend.Name, true)
			}
			trail = append(trail, Attempt{Backend: backend.Name})
			if c.cache != nil && cacheKey != "" {
				c.cache.Set(ctx, cacheKey, result, c.cacheTTL)
			}
			return result, trail, nil
		}

		breaker.RecordFailure()
		if c.metrics != nil {
			c.metrics.RecordFallbackAttempt(backend.Name, false)
		}
		trail = append(trail, Attempt{Backend: backend.Name, Err: err})
		c.log.Warn(ctx, "backend failed, trying next",
			gwlog.F("backend", backend.Name), gwlog.F("error", err.Error()))

		if ctx.Err() != nil {
			return "", trail, fmt.Errorf("fallback chain cancelled: %w", ctx.Err())
		}
	}

	if c.cache != nil && cacheKey != "" {
		if cached, ok := c.cache.Get(ctx, cacheKey); ok {
			trail = append(trail, Attempt{Backend: "local_cache"})
			return cached, trail, nil
		}
		trail = append(trail, Attempt{Backend: "local_cache", Err: gwerrors.ErrFallbackExhausted})
	}

	return "", trail, gwerrors.Wrap(gwerrors.KindFallback, "all backends failed and no cached response is available", gwerrors.ErrFallbackExhausted)
}
