// Package ratelimit implements C3: a per-host token bucket (backed by
// golang.org/x/time/rate, in the spirit of FranksOps-burr's
// pkg/ratelimit.Limiter) plus a global in-flight semaphore, with support
// for a robots.txt crawl-delay override per host.
package ratelimit

import (
	"context"
	"net/url"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter bounds global concurrency and per-host request rate.
type Limiter struct {
	mu          sync.Mutex
	buckets     map[string]*rate.Limiter
	overrides   map[string]rate.Limit // crawl-delay derived limits, keyed by host
	defaultRPS  float64
	defaultBurst int
	global      chan struct{}
}

// New builds a Limiter with the given default per-host rate/burst and
// global in-flight cap.
func New(rps float64, burst, globalInflight int) *Limiter {
	if rps <= 0 {
		rps = 10
	}
	if burst <= 0 {
		burst = 20
	}
	if globalInflight <= 0 {
		globalInflight = 100
	}
	return &Limiter{
		buckets:      make(map[string]*rate.Limiter),
		overrides:    make(map[string]rate.Limit),
		defaultRPS:   rps,
		defaultBurst: burst,
		global:       make(chan struct{}, globalInflight),
	}
}

// Acquire blocks until a global slot and a per-host token are both
// available, or ctx is cancelled. The returned release function must be
// called exactly once to free the global slot.
func (l *Limiter) Acquire(ctx context.Context, host string) (release func(), err error) {
	select {
	case l.global <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	bucket := l.bucketFor(host)
	if err := bucket.Wait(ctx); err != nil {
		<-l.global
		return nil, err
	}

	released := false
	return func() {
		if !released {
			released = true
			<-l.global
		}
	}, nil
}

// SetCrawlDelay overrides a host's refill rate to match a robots.txt
// Crawl-delay directive (one request per delay interval).
func (l *Limiter) SetCrawlDelay(host string, requestsPerSecond float64) {
	if requestsPerSecond <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.overrides[host] = rate.Limit(requestsPerSecond)
	if b, ok := l.buckets[host]; ok {
		b.SetLimit(rate.Limit(requestsPerSecond))
	}
}

func (l *Limiter) bucketFor(host string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if b, ok := l.buckets[host]; ok {
		return b
	}
	limit := rate.Limit(l.defaultRPS)
	if override, ok := l.overrides[host]; ok {
		limit = override
	}
	b := rate.NewLimiter(limit, l.defaultBurst)
	l.buckets[host] = b
	return b
}

// HostOf extracts the host component used as the rate-limit bucket key.
func HostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}
