package k8s

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter throttles Kubernetes API list calls. A nil limiter never blocks.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter allows rps list calls per second with a burst of 2×rps;
// rps <= 0 returns nil (unlimited)
func NewRateLimiter(rps int) *RateLimiter {
	if rps <= 0 {
		return nil
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(rps), rps*2),
	}
}

// Wait blocks until the limiter admits one call or ctx is done
func (r *RateLimiter) Wait(ctx context.Context) error {
	if r == nil {
		return ctx.Err()
	}
	return r.limiter.Wait(ctx)
}
