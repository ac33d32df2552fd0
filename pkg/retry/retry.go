// Package retry repeats an operation with exponential backoff and jitter.
// Processes use it while waiting for their backing services at start-up;
// engine operations never retry internally.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"

	"github.com/devpath/progression-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MARKERS
// ══════════════════════════════════════════════════════════════════════════════

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth another attempt. Do returns the
// unwrapped error immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// ══════════════════════════════════════════════════════════════════════════════
// POLICY
// ══════════════════════════════════════════════════════════════════════════════

// Attempt describes a failed try that is about to be repeated.
type Attempt struct {
	N    int // 1-based number of the failed try
	Err  error
	Wait time.Duration
}

// Policy decides how often and how patiently an operation is retried.
type Policy struct {
	// MaxAttempts counts the first try (default 3).
	MaxAttempts int

	// InitialDelay is the wait after the first failure (default 100ms);
	// every following wait grows by Multiplier up to MaxDelay (default 30s).
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64

	// Jitter spreads each wait by up to ±Jitter of itself (0..1).
	Jitter float64

	// ShouldRetry filters errors. Nil retries everything except context
	// cancellation and deadline errors.
	ShouldRetry func(error) bool

	OnRetry func(Attempt)
}

// DefaultPolicy returns the policy New starts from.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		Multiplier:   2,
		Jitter:       0.1,
	}
}

// Backoff returns the wait after failed try n, before jitter.
func (p Policy) Backoff(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	d := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(n-1))
	if d > float64(p.MaxDelay) || math.IsInf(d, 1) {
		d = float64(p.MaxDelay)
	}
	return time.Duration(d)
}

func (p Policy) wait(n int) time.Duration {
	d := float64(p.Backoff(n))
	if p.Jitter > 0 {
		d += d * p.Jitter * (rand.Float64()*2 - 1)
	}
	return time.Duration(max(d, 0))
}

func (p Policy) retryable(err error) bool {
	if IsPermanent(err) {
		return false
	}
	if p.ShouldRetry != nil {
		return p.ShouldRetry(err)
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// Option adjusts a Policy.
type Option func(*Policy)

func WithMaxAttempts(n int) Option {
	return func(p *Policy) {
		if n > 0 {
			p.MaxAttempts = n
		}
	}
}

// WithDelays sets the first wait and the cap on every wait.
func WithDelays(initial, maxDelay time.Duration) Option {
	return func(p *Policy) {
		if initial > 0 {
			p.InitialDelay = initial
		}
		if maxDelay >= p.InitialDelay {
			p.MaxDelay = maxDelay
		}
	}
}

func WithMultiplier(m float64) Option {
	return func(p *Policy) {
		if m >= 1 {
			p.Multiplier = m
		}
	}
}

func WithJitter(j float64) Option {
	return func(p *Policy) {
		if j >= 0 && j <= 1 {
			p.Jitter = j
		}
	}
}

func WithRetryIf(fn func(error) bool) Option {
	return func(p *Policy) { p.ShouldRetry = fn }
}

func WithOnRetry(fn func(Attempt)) Option {
	return func(p *Policy) { p.OnRetry = fn }
}

// ══════════════════════════════════════════════════════════════════════════════
// RETRIER
// ══════════════════════════════════════════════════════════════════════════════

// Retrier runs operations under one Policy.
type Retrier struct {
	policy Policy
}

// New builds a Retrier from DefaultPolicy and opts.
func New(opts ...Option) *Retrier {
	p := DefaultPolicy()
	for _, opt := range opts {
		opt(&p)
	}
	return &Retrier{policy: p}
}

// Policy returns the effective policy.
func (r *Retrier) Policy() Policy { return r.policy }

// Do calls op until it succeeds, returns a non-retryable error, the
// attempts run out or ctx ends. The last operation error wins over the
// context error once op has run at least once.
func (r *Retrier) Do(ctx context.Context, op func(context.Context) error) error {
	var last error
	for n := 1; n <= r.policy.MaxAttempts; n++ {
		if err := ctx.Err(); err != nil {
			if last != nil {
				return last
			}
			return err
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		if IsPermanent(err) {
			return errors.Unwrap(err)
		}
		last = err
		if !r.policy.retryable(err) || n == r.policy.MaxAttempts {
			break
		}

		wait := r.policy.wait(n)
		if r.policy.OnRetry != nil {
			r.policy.OnRetry(Attempt{N: n, Err: err, Wait: wait})
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return last
		case <-timer.C:
		}
	}
	return last
}

// Do runs op under a one-off Retrier.
func Do(ctx context.Context, op func(context.Context) error, opts ...Option) error {
	return New(opts...).Do(ctx, op)
}

// StartupRetrier waits for a backing service to come up: six tries over
// roughly half a minute, each failure logged at Warn. opts override the
// preset.
func StartupRetrier(log *logger.Logger, service string, opts ...Option) *Retrier {
	if log == nil {
		log = logger.Nop()
	}
	preset := []Option{
		WithMaxAttempts(6),
		WithDelays(500*time.Millisecond, 10*time.Second),
		WithMultiplier(2),
		WithJitter(0.2),
		WithOnRetry(func(a Attempt) {
			log.Warn("backing service not ready",
				logger.String("service", service),
				logger.Int("attempt", a.N),
				logger.Duration("retry_in", a.Wait),
				logger.Err(a.Err),
			)
		}),
	}
	return New(append(preset, opts...)...)
}
