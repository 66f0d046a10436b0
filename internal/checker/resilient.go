package checker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ppiankov/compatspectre/internal/models"
	"github.com/ppiankov/compatspectre/internal/registry"
	"github.com/ppiankov/compatspectre/internal/retry"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// ErrCircuitOpen is returned while the breaker rejects calls to the wrapped checker
var ErrCircuitOpen = errors.New("compatibility checker circuit is open")

// ResilientOptions configures the Resilient wrapper
type ResilientOptions struct {
	// RateLimit is calls per second; zero disables limiting.
	RateLimit int
	// Retries is the maximum number of attempts per check.
	Retries int
	// BreakerThreshold is the number of consecutive failures that opens the circuit.
	BreakerThreshold uint32
	// BreakerCooldown is how long the circuit stays open before probing again.
	BreakerCooldown time.Duration
	// OnStateChange is notified on breaker transitions.
	OnStateChange func(from, to string)
	// Sleep overrides the retry backoff sleep (tests).
	Sleep func(context.Context, time.Duration) error
}

// Resilient wraps a Checker with rate limiting, retries and a circuit breaker
type Resilient struct {
	next    Checker
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	policy  retry.Policy
}

// NewResilient wraps next
func NewResilient(next Checker, opts ResilientOptions) *Resilient {
	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), opts.RateLimit)
	}

	threshold := opts.BreakerThreshold
	if threshold == 0 {
		threshold = 5
	}

	settings := gobreaker.Settings{
		Name:        "compatibility-checker",
		MaxRequests: 1,
		Timeout:     opts.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			// A missing registry entry or a canceled caller says nothing about checker health.
			return err == nil || errors.Is(err, registry.ErrNotFound) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			if opts.OnStateChange != nil {
				opts.OnStateChange(from.String(), to.String())
			}
		},
	}

	policy := retry.DefaultPolicy()
	if opts.Retries > 0 {
		policy.MaxAttempts = opts.Retries
	}
	if opts.Sleep != nil {
		policy.Sleep = opts.Sleep
	}
	policy.Permanent = func(err error) bool {
		return errors.Is(err, ErrCircuitOpen) || errors.Is(err, registry.ErrNotFound)
	}

	return &Resilient{
		next:    next,
		limiter: limiter,
		breaker: gobreaker.NewCircuitBreaker(settings),
		policy:  policy,
	}
}

// Check implements Checker
func (r *Resilient) Check(ctx context.Context, name string, version models.ServiceVersion, reg registry.Accessor) (*models.CompatibilityResult, error) {
	var result *models.CompatibilityResult

	err := retry.Do(ctx, r.policy, func() error {
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		out, err := r.breaker.Execute(func() (interface{}, error) {
			return r.next.Check(ctx, name, version, reg)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return fmt.Errorf("%w: %v", ErrCircuitOpen, err)
			}
			return err
		}

		checked, ok := out.(*models.CompatibilityResult)
		if !ok || checked == nil {
			return fmt.Errorf("checker returned no result for %s", name)
		}
		result = checked
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// State reports the breaker state ("closed", "half-open", "open")
func (r *Resilient) State() string {
	return r.breaker.State().String()
}
