package llmrt

import (
	"sync"
	"time"
)

// BucketFailoverHandler is the optional collaborator described in §4.E: an
// auth/routing bucket rotator consulted when persistent 429s are observed.
type BucketFailoverHandler interface {
	IsEnabled() bool
	TryFailover() bool
	GetCurrentBucket() string
}

// NoopBucketFailover never rotates; IsEnabled returns false.
type NoopBucketFailover struct{}

func (NoopBucketFailover) IsEnabled() bool       { return false }
func (NoopBucketFailover) TryFailover() bool     { return false }
func (NoopBucketFailover) GetCurrentBucket() string { return "" }

// CircuitBreakerState is the three-state machine of the teacher's fallback
// circuit breaker. MultiProvider keeps one breaker per registered provider;
// BucketCircuitRegistry keeps one per bucket ID.
type CircuitBreakerState int

const (
	CircuitClosed CircuitBreakerState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitBreakerState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreaker trips open after Threshold consecutive failures and stays
// open for Timeout, then moves to half-open. Half-open does not limit the
// number of probes: every request is allowed until RecordSuccess closes the
// circuit or RecordFailure reopens it.
type CircuitBreaker struct {
	name      string
	threshold int
	timeout   time.Duration

	mu              sync.Mutex
	state           CircuitBreakerState
	failureCount    int
	lastFailureTime time.Time
	requests        int64
	successes       int64
	failures        int64
}

func NewCircuitBreaker(name string, threshold int, timeout time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 5
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &CircuitBreaker{name: name, threshold: threshold, timeout: timeout}
}

// ShouldAllowRequest reports whether a call through this bucket/provider
// should be attempted right now.
func (cb *CircuitBreaker) ShouldAllowRequest() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		return true
	case CircuitOpen:
		if time.Since(cb.lastFailureTime) >= cb.timeout {
			cb.state = CircuitHalfOpen
			return true
		}
		return false
	case CircuitHalfOpen:
		return true
	default:
		return true
	}
}

func (cb *CircuitBreaker) IsOpen() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state == CircuitOpen
}

func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.requests++
	cb.successes++
	cb.failureCount = 0
	cb.state = CircuitClosed
}

func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.requests++
	cb.failures++
	cb.failureCount++
	cb.lastFailureTime = time.Now()
	if cb.failureCount >= cb.threshold {
		cb.state = CircuitOpen
	}
}

func (cb *CircuitBreaker) State() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = CircuitClosed
	cb.failureCount = 0
}

// CircuitBreakerStatus is a point-in-time snapshot for monitoring.
type CircuitBreakerStatus struct {
	Name       string
	State      string
	Requests   int64
	Successes  int64
	Failures   int64
}

func (cb *CircuitBreaker) GetStatus() CircuitBreakerStatus {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return CircuitBreakerStatus{
		Name:      cb.name,
		State:     cb.state.String(),
		Requests:  cb.requests,
		Successes: cb.successes,
		Failures:  cb.failures,
	}
}

// BucketCircuitRegistry keeps one CircuitBreaker per bucket ID, so a bucket
// whose failover options are exhausted stops being retried for a cooldown
// window instead of being re-attempted on every call.
type BucketCircuitRegistry struct {
	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
	threshold int
	timeout   time.Duration
}

func NewBucketCircuitRegistry(threshold int, timeout time.Duration) *BucketCircuitRegistry {
	return &BucketCircuitRegistry{
		breakers:  make(map[string]*CircuitBreaker),
		threshold: threshold,
		timeout:   timeout,
	}
}

func (r *BucketCircuitRegistry) For(bucket string) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	cb, ok := r.breakers[bucket]
	if !ok {
		cb = NewCircuitBreaker(bucket, r.threshold, r.timeout)
		r.breakers[bucket] = cb
	}
	return cb
}
