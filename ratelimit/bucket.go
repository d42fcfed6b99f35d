// Package ratelimit implements per-client token-bucket rate limiting for
// the chat completion endpoint.
package ratelimit

import (
	"golang.org/x/time/rate"
)

// Bucket is a single client's token bucket, backed by
// golang.org/x/time/rate.Limiter: tokens refill continuously at rate
// tokens/sec up to a burst capacity, and Allow admits a request by
// deducting exactly one token.
type Bucket struct {
	limiter *rate.Limiter
}

// NewBucket constructs a Bucket starting full, with the given refill rate
// (tokens/sec) and burst capacity. rate.Limiter's burst is an integer
// token count, so burst is truncated to the nearest whole token (raised
// to 1 if that would otherwise be 0, so the bucket can admit at least one
// request).
func NewBucket(refillRate, burst float64) *Bucket {
	b := int(burst)
	if b < 1 {
		b = 1
	}
	return &Bucket{limiter: rate.NewLimiter(rate.Limit(refillRate), b)}
}

// Allow refills the bucket for elapsed time, then admits the request if a
// token is available, deducting exactly one. It returns false without
// deducting anything if the bucket is empty.
func (b *Bucket) Allow() bool {
	return b.limiter.Allow()
}

// Remaining reports the current token count after refilling, without
// consuming one. Used for the X-RateLimit-Remaining header, not for the
// admission decision itself.
func (b *Bucket) Remaining() float64 {
	return b.limiter.Tokens()
}
