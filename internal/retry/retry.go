// Package retry holds the single backoff policy applied to transient
// failures across framecast: stage invocations, context store backends, and
// the SQLite index all route through Do.
package retry

import (
	"context"
	"math/rand/v2"
	"time"

	"framecast/internal/config"
	"framecast/internal/services"
)

// Policy describes how many times and how quickly a transient failure is retried.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Jitter is the fractional spread applied to each delay, in [0, 1).
	Jitter float64

	// sleep is swapped in tests.
	sleep func(context.Context, time.Duration) error
}

// FromConfig builds the policy from the [retry] section.
func FromConfig(cfg *config.Config) Policy {
	if cfg == nil {
		return Default()
	}
	return Policy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   time.Duration(cfg.Retry.BaseDelayMS) * time.Millisecond,
		MaxDelay:    time.Duration(cfg.Retry.MaxDelayMS) * time.Millisecond,
		Jitter:      cfg.Retry.Jitter,
	}
}

// Default mirrors the configuration defaults.
func Default() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   200 * time.Millisecond,
		MaxDelay:    5 * time.Second,
		Jitter:      0.2,
	}
}

// None performs exactly one attempt.
func None() Policy {
	return Policy{MaxAttempts: 1}
}

// WithSleeper returns a copy of p that waits using fn. Tests use it to avoid
// real delays.
func (p Policy) WithSleeper(fn func(context.Context, time.Duration) error) Policy {
	p.sleep = fn
	return p
}

// Delay returns the un-jittered backoff before the given retry (1-based).
func (p Policy) Delay(retry int) time.Duration {
	if retry < 1 || p.BaseDelay <= 0 {
		return 0
	}
	delay := p.BaseDelay
	for i := 1; i < retry; i++ {
		delay *= 2
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

func (p Policy) jittered(retry int) time.Duration {
	delay := p.Delay(retry)
	if delay <= 0 || p.Jitter <= 0 {
		return delay
	}
	spread := float64(delay) * p.Jitter
	return delay + time.Duration((rand.Float64()*2-1)*spread)
}

// Do runs op until it succeeds, returns a non-transient error, or the policy
// is exhausted. The last error is returned unchanged so its classification
// survives.
func (p Policy) Do(ctx context.Context, op func(context.Context) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if !services.Retryable(lastErr) || attempt == attempts {
			break
		}
		if err := sleep(ctx, p.jittered(attempt)); err != nil {
			return err
		}
	}
	return lastErr
}

// Do is shorthand for policy.Do.
func Do(ctx context.Context, policy Policy, op func(context.Context) error) error {
	return policy.Do(ctx, op)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
