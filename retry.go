package llmrt

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"time"
)

// RetryOptions configures Retry (§4.E).
type RetryOptions struct {
	// MaxAttempts is the number of attempts including the first; default 3.
	MaxAttempts int

	// BaseDelay is the initial backoff delay; default 500ms.
	BaseDelay time.Duration

	// MaxDelay caps the exponential backoff; default 30s.
	MaxDelay time.Duration

	// ShouldRetry classifies an error. If nil, DefaultShouldRetry is used.
	ShouldRetry func(err error) bool

	Logger Logger
}

func (o RetryOptions) withDefaults() RetryOptions {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = 500 * time.Millisecond
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = 30 * time.Second
	}
	if o.ShouldRetry == nil {
		o.ShouldRetry = DefaultShouldRetry
	}
	if o.Logger == nil {
		o.Logger = &NoopLogger{}
	}
	return o
}

// DefaultShouldRetry implements the classification table of §4.E:
// 429 and 5xx and network-transient errors retry; 400 does not. Any other
// APIError retries exactly when IsRetryableKind reports its kind as
// retryable; any other error does not retry.
func DefaultShouldRetry(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 429:
			return true
		case 400:
			return false
		}
		if apiErr.StatusCode >= 500 && apiErr.StatusCode < 600 {
			return true
		}
		return IsRetryableKind(apiErr.Kind)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout() || isConnReset(err)
	}

	return isConnReset(err)
}

func isConnReset(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// Attempt carries the current attempt number (1-based) into the function
// under retry, so callers can surface re-yield risk per the spec's open
// question on stream-restart deduplication.
type Attempt struct {
	Number int
}

type attemptKey struct{}

// WithAttempt returns a context carrying the current Attempt.
func WithAttempt(ctx context.Context, a Attempt) context.Context {
	return context.WithValue(ctx, attemptKey{}, a)
}

// AttemptFromContext extracts the Attempt set by Retry, defaulting to
// attempt 1 if none is present.
func AttemptFromContext(ctx context.Context) Attempt {
	if a, ok := ctx.Value(attemptKey{}).(Attempt); ok {
		return a
	}
	return Attempt{Number: 1}
}

// Retry runs fn under exponential backoff with jitter, making up to
// opts.MaxAttempts attempts in total while opts.ShouldRetry(err) is true. Each
// invocation of fn receives a context carrying the current Attempt.
func Retry[T any](ctx context.Context, opts RetryOptions, fn func(ctx context.Context) (T, error)) (T, error) {
	opts = opts.withDefaults()

	var zero T
	var lastErr error
	delay := opts.BaseDelay

	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return zero, NewCancelled("")
		default:
		}

		callCtx := WithAttempt(ctx, Attempt{Number: attempt})
		result, err := fn(callCtx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !opts.ShouldRetry(err) || attempt == opts.MaxAttempts {
			break
		}

		opts.Logger.Warn(ctx, "retrying after error", F("attempt", attempt), F("error", err.Error()))

		wait := delay + jitter(delay)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, NewCancelled("")
		case <-timer.C:
		}

		delay *= 2
		if delay > opts.MaxDelay {
			delay = opts.MaxDelay
		}
	}

	return zero, lastErr
}

func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(d) / 2))
}

// RetryWithFailover layers the bucket-failover escalation of §4.E on top of
// Retry: when the inner retry loop exhausts its budget on a persistent
// RateLimited error and call carries an enabled BucketFailoverHandler, it
// rotates to the next bucket, refreshes the call's auth token if the
// orchestrator supplied a refresher, and re-attempts fn from scratch under
// a fresh retry budget. When TryFailover reports no bucket left to rotate
// to, the last error is surfaced and the loop stops. A disabled or absent
// handler falls back to plain retry-exhaustion behavior.
func RetryWithFailover[T any](ctx context.Context, call *ResolvedCall, opts RetryOptions, fn func(ctx context.Context) (T, error)) (T, error) {
	opts = opts.withDefaults()

	for {
		result, err := Retry(ctx, opts, fn)
		if err == nil || !IsKind(err, KindRateLimited) {
			return result, err
		}
		if call == nil || call.Failover == nil || !call.Failover.IsEnabled() {
			return result, err
		}

		opts.Logger.Warn(ctx, "persistent rate limiting, attempting bucket failover",
			F("provider", call.Provider), F("bucket", call.Failover.GetCurrentBucket()))

		if !call.Failover.TryFailover() {
			return result, err
		}

		if call.RefreshAuth != nil {
			if token, rerr := call.RefreshAuth(); rerr == nil {
				call.AuthToken = token
			}
		}
	}
}
