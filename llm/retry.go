package llm

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// RetryPolicy configures transport-level retry with exponential backoff.
type RetryPolicy struct {
	MaxRetries int           // retry attempts after the initial call
	BaseDelay  time.Duration // delay before the first retry
	MaxDelay   time.Duration // upper bound for any computed delay
	Multiplier float64       // backoff factor applied per attempt
	Jitter     bool          // randomize each delay within [50%, 150%)
	OnRetry    func(err error, attempt int, delay time.Duration)
}

// DefaultRetryPolicy returns the policy the client installs via WithRetry:
// two retries, starting at one second and doubling, jittered.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 2,
		BaseDelay:  time.Second,
		MaxDelay:   time.Minute,
		Multiplier: 2,
		Jitter:     true,
	}
}

// Delay returns the backoff delay before retry attempt n (0-indexed).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	d := time.Duration(float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(attempt)))
	if d > p.MaxDelay {
		d = p.MaxDelay
	}
	if p.Jitter {
		d = time.Duration(float64(d) * (0.5 + rand.Float64()))
	}
	return d
}

// Retry runs fn until it succeeds, fails with a non-retryable error, or the
// retry budget is spent. A rate-limit error carrying a Retry-After hint
// sleeps for the hint instead of the computed backoff; a hint beyond
// MaxDelay fails immediately rather than stalling the caller.
func Retry[T any](ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	for attempt := 0; ; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		if attempt >= policy.MaxRetries || !IsRetryable(err) {
			return zero, err
		}

		delay := policy.Delay(attempt)
		var rl *RateLimitError
		if errors.As(err, &rl) && rl.RetryAfter != nil {
			hint := time.Duration(*rl.RetryAfter * float64(time.Second))
			if hint > policy.MaxDelay {
				return zero, err
			}
			delay = hint
		}

		if policy.OnRetry != nil {
			policy.OnRetry(err, attempt+1, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, &AbortError{ClientError: ClientError{
				Message: "request cancelled during retry",
				Cause:   ctx.Err(),
			}}
		case <-timer.C:
		}
	}
}
