package llm

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Compile-time check that Throttled satisfies the client contract.
var _ Client = (*Throttled)(nil)

// ThrottledOptions contains configuration options for the throttled client.
type ThrottledOptions struct {
	// RequestsPerSecond limits the sustained call rate across both Invoke
	// and Embed. Zero or negative means unlimited.
	RequestsPerSecond float64

	// MaxConcurrency caps in-flight calls to the wrapped client.
	MaxConcurrency int64

	// Timeout bounds each individual attempt. An attempt that exceeds it
	// fails as a ModelError and is retried like any other model fault.
	Timeout time.Duration

	// MaxRetries is the number of additional attempts after the first.
	MaxRetries int

	// BaseBackoff and MaxBackoff bound the jittered exponential delay
	// between attempts.
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// DefaultThrottledOptions contains the default configuration options.
var DefaultThrottledOptions = ThrottledOptions{
	RequestsPerSecond: 10,
	MaxConcurrency:    8,
	Timeout:           30 * time.Second,
	MaxRetries:        3,
	BaseBackoff:       500 * time.Millisecond,
	MaxBackoff:        8 * time.Second,
}

// Throttled wraps a Client with rate limiting, a concurrency cap, per-attempt
// timeouts and retries with jittered exponential backoff.
//
// Cancellation of the caller's context passes through unwrapped; every other
// failure surfaces as a ModelError once retries are exhausted.
type Throttled struct {
	client  Client
	limiter *rate.Limiter
	sem     *semaphore.Weighted
	opts    ThrottledOptions
}

// NewThrottled wraps client with the configured throttling policy.
func NewThrottled(client Client, optFns ...func(o *ThrottledOptions)) *Throttled {
	opts := DefaultThrottledOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.MaxConcurrency < 1 {
		opts.MaxConcurrency = 1
	}

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}

	return &Throttled{
		client:  client,
		limiter: limiter,
		sem:     semaphore.NewWeighted(opts.MaxConcurrency),
		opts:    opts,
	}
}

// Invoke generates text through the wrapped client under the throttle.
func (t *Throttled) Invoke(ctx context.Context, prompt string) (string, error) {
	var result string
	err := t.do(ctx, func(ctx context.Context) error {
		var err error
		result, err = t.client.Invoke(ctx, prompt)
		return err
	})
	return result, err
}

// Embed embeds text through the wrapped client under the throttle.
func (t *Throttled) Embed(ctx context.Context, text string) ([]float32, error) {
	var result []float32
	err := t.do(ctx, func(ctx context.Context) error {
		var err error
		result, err = t.client.Embed(ctx, text)
		return err
	})
	return result, err
}

func (t *Throttled) do(ctx context.Context, call func(ctx context.Context) error) error {
	if err := t.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer t.sem.Release(1)

	var lastErr error
	for attempt := 0; attempt <= t.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := t.sleep(ctx, t.backoff(attempt)); err != nil {
				return err
			}
		}

		if t.limiter != nil {
			if err := t.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		lastErr = t.attempt(ctx, call)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	var me *ModelError
	if errors.As(lastErr, &me) {
		return lastErr
	}
	return &ModelError{Cause: lastErr}
}

// attempt runs one call under the per-attempt timeout. A deadline hit is
// reported as a ModelError so it participates in retries.
func (t *Throttled) attempt(ctx context.Context, call func(ctx context.Context) error) error {
	attemptCtx := ctx
	var cancel context.CancelFunc
	if t.opts.Timeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, t.opts.Timeout)
		defer cancel()
	}

	err := call(attemptCtx)
	if err != nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return &ModelError{Cause: context.DeadlineExceeded}
	}
	return err
}

// backoff returns the delay before the given attempt (1-based), exponential
// with full jitter.
func (t *Throttled) backoff(attempt int) time.Duration {
	ceil := t.opts.BaseBackoff << (attempt - 1)
	if ceil > t.opts.MaxBackoff || ceil <= 0 {
		ceil = t.opts.MaxBackoff
	}
	if ceil <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(ceil)))
}

func (t *Throttled) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
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
