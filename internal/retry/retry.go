// Package retry implements C5: retry classification with exponential
// backoff plus a per-host circuit breaker, adapted from the teacher's
// internal/services/crawler/retry.go.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/quaero-labs/corequaero/internal/model"
)

// Policy defines retry behavior with exponential backoff, per spec.md §4.5.
type Policy struct {
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
}

// NewPolicy returns the spec default policy: 3 attempts, 1s base, factor
// 2, cap 30s, ±20% jitter.
func NewPolicy() Policy {
	return Policy{
		MaxAttempts:       3,
		InitialBackoff:    time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2,
	}
}

var retryableStatus = map[int]bool{429: true, 502: true, 503: true, 504: true}

// ShouldRetry classifies a (statusCode, err) outcome. Non-retryable: 4xx
// other than 429, BlockedByGuard, ResponseTooLarge.
func ShouldRetry(statusCode int, err error) bool {
	if err != nil {
		var e *model.Error
		if errors.As(err, &e) {
			switch e.Kind {
			case model.KindBlockedByGuard, model.KindResponseTooLarge:
				return false
			case model.KindTimeout, model.KindConnectError, model.KindDNSError:
				return true
			case model.KindHTTPStatus:
				return retryableStatus[e.StatusCode]
			}
		}
		return isRetryableNetErr(err)
	}
	if statusCode > 0 {
		return retryableStatus[statusCode]
	}
	return false
}

// IsHostFailure reports whether (statusCode, err) should count against a
// host's circuit breaker: any transport error, or a retryable status code
// that was still present once the retry budget was exhausted.
func IsHostFailure(statusCode int, err error) bool {
	if err != nil {
		return true
	}
	return retryableStatus[statusCode]
}

func isRetryableNetErr(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// Backoff computes the exponential backoff for the given zero-based
// attempt index, with ±20% jitter, capped at MaxBackoff.
func (p Policy) Backoff(attempt int) time.Duration {
	b := float64(p.InitialBackoff) * intPow(p.BackoffMultiplier, attempt)
	if b > float64(p.MaxBackoff) {
		b = float64(p.MaxBackoff)
	}
	jitter := b * 0.20 * (rand.Float64()*2 - 1)
	b += jitter
	if b < 0 {
		b = float64(p.InitialBackoff)
	}
	return time.Duration(b)
}

func intPow(base float64, exp int) float64 {
	result := 1.0
	for i := 0; i < exp; i++ {
		result *= base
	}
	return result
}

// RetryAfter honors an HTTP Retry-After header (seconds or HTTP-date),
// returning 0 if the value couldn't be parsed.
func RetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if secs, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Duration(secs) * time.Second
	}
	if t, err := time.Parse(time.RFC1123, value); err == nil {
		d := time.Until(t)
		if d > 0 {
			return d
		}
	}
	return 0
}

// Do runs fn up to p.MaxAttempts times, honoring ctx cancellation and
// classifying each outcome with ShouldRetry. fn should return the HTTP
// status code (0 if no response was obtained), a Retry-After override (0
// to fall back to exponential backoff), and any transport error. Do
// returns the last status/error observed plus the number of attempts made.
func (p Policy) Do(ctx context.Context, fn func(attempt int) (statusCode int, retryAfter time.Duration, err error)) (int, error, int) {
	var status int
	var err error
	attempts := 0
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		attempts++
		var retryAfter time.Duration
		status, retryAfter, err = fn(attempt)
		if err == nil && !retryableStatus[status] {
			return status, nil, attempts
		}
		if !ShouldRetry(status, err) {
			return status, err, attempts
		}
		if attempt == p.MaxAttempts-1 {
			break
		}
		wait := retryAfter
		if wait <= 0 {
			wait = p.Backoff(attempt)
		}
		select {
		case <-ctx.Done():
			return status, ctx.Err(), attempts
		case <-time.After(wait):
		}
	}
	return status, err, attempts
}

// breakerState is one host's position in the {closed, open, half-open}
// state machine, per spec.md §4.5.
type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

type hostState struct {
	state               breakerState
	consecutiveFailures int
	openedAt            time.Time
	halfOpenProbes      int
}

// Breaker is a per-host circuit breaker: opens after a run of consecutive
// failures, short-circuiting further calls to that host until
// resetTimeout has passed, then admits a bounded number of half-open
// probes before fully closing or reopening.
type Breaker struct {
	mu                sync.Mutex
	hosts             map[string]*hostState
	failureThreshold  int
	resetTimeout      time.Duration
	maxHalfOpenProbes int
}

// NewBreaker returns the spec default breaker: opens after 5 consecutive
// failures, half-opens after a 60s reset timeout, allows 3 half-open
// probes before deciding.
func NewBreaker() *Breaker {
	return &Breaker{
		hosts:             make(map[string]*hostState),
		failureThreshold:  5,
		resetTimeout:      60 * time.Second,
		maxHalfOpenProbes: 3,
	}
}

// Allow reports whether a call to host may proceed. A breaker that has
// been open for longer than resetTimeout transitions to half-open and
// admits up to maxHalfOpenProbes probe calls; otherwise it returns a
// model.KindCircuitOpen error short-circuiting the call.
func (b *Breaker) Allow(host string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	h := b.hostState(host)

	switch h.state {
	case stateOpen:
		if time.Since(h.openedAt) < b.resetTimeout {
			return model.New(model.KindCircuitOpen, "circuit open for host %s", host)
		}
		h.state = stateHalfOpen
		h.halfOpenProbes = 0
		fallthrough
	case stateHalfOpen:
		if h.halfOpenProbes >= b.maxHalfOpenProbes {
			return model.New(model.KindCircuitOpen, "circuit half-open probe budget exhausted for host %s", host)
		}
		h.halfOpenProbes++
		return nil
	default:
		return nil
	}
}

// RecordResult reports the outcome of a call previously admitted by
// Allow, advancing the breaker's state machine: a success closes the
// circuit; a failure increments the consecutive-failure count and opens
// the circuit once the threshold is reached (or immediately, if the
// failing call was a half-open probe).
func (b *Breaker) RecordResult(host string, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	h := b.hostState(host)

	if success {
		h.state = stateClosed
		h.consecutiveFailures = 0
		h.halfOpenProbes = 0
		return
	}

	h.consecutiveFailures++
	if h.state == stateHalfOpen || h.consecutiveFailures >= b.failureThreshold {
		h.state = stateOpen
		h.openedAt = time.Now()
		h.halfOpenProbes = 0
	}
}

func (b *Breaker) hostState(host string) *hostState {
	h, ok := b.hosts[host]
	if !ok {
		h = &hostState{}
		b.hosts[host] = h
	}
	return h
}
