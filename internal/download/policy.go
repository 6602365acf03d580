// Package download fetches press-release documents with a bounded worker
// pool, retrying transient failures with exponential backoff.
package download

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"sync"
	"time"
)

// Policy controls retry behavior for a single document.
type Policy struct {
	MaxAttempts int
	BackoffBase time.Duration
	BackoffCap  time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

// DefaultPolicy matches the production tuning: three attempts with a 2s
// base doubling up to a 30s ceiling.
func DefaultPolicy() *Policy {
	return NewPolicy(3, 2*time.Second, 30*time.Second)
}

// NewPolicy creates a retry policy. Attempts below 1 are clamped to 1.
func NewPolicy(maxAttempts int, base, cap time.Duration) *Policy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Policy{
		MaxAttempts: maxAttempts,
		BackoffBase: base,
		BackoffCap:  cap,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Delay returns the backoff before retry number attempt (1-based: the delay
// after the attempt-th failure). Exponential doubling capped at BackoffCap,
// plus up to 25% jitter so a burst of failures does not retry in lockstep.
func (p *Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := p.BackoffBase << (attempt - 1)
	if delay > p.BackoffCap || delay <= 0 {
		delay = p.BackoffCap
	}

	p.mu.Lock()
	jitter := time.Duration(p.rng.Int63n(int64(delay)/4 + 1))
	p.mu.Unlock()

	return delay + jitter
}

// FetchError describes a failed download attempt. Transient errors are
// eligible for retry; permanent ones are not.
type FetchError struct {
	URL        string
	StatusCode int
	Transient  bool
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsTransient reports whether err is a retryable fetch failure.
func IsTransient(err error) bool {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Transient
	}
	return false
}

// classifyStatus decides retry eligibility for an HTTP status code.
// 5xx and 429 are transient; every other non-2xx status is permanent.
func classifyStatus(code int) bool {
	return code >= 500 || code == http.StatusTooManyRequests
}

// classifyNetErr decides retry eligibility for a transport-level error.
// Timeouts and dropped connections are transient. Context cancellation is
// neither: it propagates as-is.
func classifyNetErr(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	// Connection resets and similar transport failures surface as OpError.
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	// url.Error wrapping anything else network-shaped: retry once rather
	// than fail the whole period on a blip.
	return true
}
