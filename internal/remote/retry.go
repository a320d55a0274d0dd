package remote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"plansync/internal/clock"
)

// Policy configures retries. Attempts = MaxRetries + 1.
type Policy struct {
	MaxRetries     int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	Multiplier     float64
	PerCallTimeout time.Duration

	// IsTransient decides which errors are retried. Defaults to
	// remote.IsTransient.
	IsTransient func(error) bool
}

// DefaultPolicy returns the production retry policy
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:     4,
		BaseDelay:      500 * time.Millisecond,
		MaxDelay:       8 * time.Second,
		Multiplier:     2,
		PerCallTimeout: 30 * time.Second,
		IsTransient:    IsTransient,
	}
}

func (p Policy) withDefaults() Policy {
	def := DefaultPolicy()
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = def.BaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = def.MaxDelay
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	if p.Multiplier < 1 {
		p.Multiplier = def.Multiplier
	}
	if p.PerCallTimeout <= 0 {
		p.PerCallTimeout = def.PerCallTimeout
	}
	if p.IsTransient == nil {
		p.IsTransient = IsTransient
	}
	return p
}

// Backoff returns the computed delay before retry n (1-based)
func (p Policy) Backoff(n int) time.Duration {
	p = p.withDefaults()
	delay := float64(p.BaseDelay)
	for i := 1; i < n; i++ {
		delay *= p.Multiplier
		if delay >= float64(p.MaxDelay) {
			return p.MaxDelay
		}
	}
	return time.Duration(delay)
}

// Delay returns the wait before retry n after err. A server-provided
// Retry-After replaces the computed backoff; both are capped at MaxDelay.
func (p Policy) Delay(n int, err error) time.Duration {
	p = p.withDefaults()
	if retryAfter, ok := RetryAfterOf(err); ok {
		return min(retryAfter, p.MaxDelay)
	}
	return p.Backoff(n)
}

// Caller runs remote calls under a retry Policy. Every attempt gets its
// own PerCallTimeout; waits block the calling goroutine.
type Caller struct {
	policy Policy
	clock  clock.Clock
	logger zerolog.Logger
}

// NewCaller creates a Caller
func NewCaller(policy Policy, clk clock.Clock, logger zerolog.Logger) *Caller {
	return &Caller{
		policy: policy.withDefaults(),
		clock:  clk,
		logger: logger,
	}
}

// Policy returns the effective policy
func (c *Caller) Policy() Policy {
	return c.policy
}

// Do invokes fn until it succeeds, fails permanently, or exhausts the
// retry budget.
func (c *Caller) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	start := c.clock.Now()

	for attempt := 1; ; attempt++ {
		err := c.attempt(ctx, op, fn)
		if err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%s: %w", op, errors.Join(ctxErr, err))
		}
		if !c.policy.IsTransient(err) {
			return err
		}
		if attempt > c.policy.MaxRetries {
			return &RetryExhaustedError{
				Op:       op,
				Attempts: attempt,
				Elapsed:  c.clock.Now().Sub(start),
				Last:     err,
			}
		}

		delay := c.policy.Delay(attempt, err)
		c.logger.Warn().
			Str("op", op).
			Int("attempt", attempt).
			Dur("delay", delay).
			Err(err).
			Msg("transient remote failure, retrying")

		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", op, errors.Join(ctx.Err(), err))
		case <-c.clock.After(delay):
		}
	}
}

func (c *Caller) attempt(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, c.policy.PerCallTimeout)
	defer cancel()

	err := fn(callCtx)
	if err == nil {
		return nil
	}
	var remoteErr *Error
	if ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) && !errors.As(err, &remoteErr) {
		return &Error{Op: op, Reason: ReasonTimeout, Message: "per-call timeout exceeded", Err: err}
	}
	return err
}

// Call is Do for functions that return a value
func Call[T any](ctx context.Context, c *Caller, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := c.Do(ctx, op, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
