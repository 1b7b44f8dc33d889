package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quaero-labs/corequaero/internal/config"
	"github.com/quaero-labs/corequaero/internal/logging"
	"github.com/quaero-labs/corequaero/internal/model"
	"github.com/quaero-labs/corequaero/internal/ratelimit"
	"github.com/quaero-labs/corequaero/internal/urlguard"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	cfg := &config.Config{}
	cfg.ApplyDefaults()
	cfg.SSRF.BlockPrivate = false // httptest servers bind to 127.0.0.1
	guard := urlguard.New(cfg.SSRF, nil)
	limiter := ratelimit.New(cfg.RateLimit.RPS, cfg.RateLimit.Burst, cfg.RateLimit.GlobalInflight)
	logger := logging.NewStdioLogger("error")
	return New(cfg, guard, limiter, logger)
}

func TestFetchReturnsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("hello world"))
	}))
	defer srv.Close()

	c := newTestClient(t)
	resp, err := c.Fetch(context.Background(), Request{Method: http.MethodGet, URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, 200, resp.Status)
	assert.Equal(t, "hello world", string(resp.Body))
	assert.Equal(t, "text/plain", resp.ContentType())
}

func TestFetchEnforcesMaxBytes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("a", 1024)))
	}))
	defer srv.Close()

	cfg := &config.Config{}
	cfg.ApplyDefaults()
	cfg.SSRF.BlockPrivate = false
	cfg.Fetch.MaxBytes = 16
	guard := urlguard.New(cfg.SSRF, nil)
	limiter := ratelimit.New(cfg.RateLimit.RPS, cfg.RateLimit.Burst, cfg.RateLimit.GlobalInflight)
	c := New(cfg, guard, limiter, logging.NewStdioLogger("error"))

	_, err := c.Fetch(context.Background(), Request{Method: http.MethodGet, URL: srv.URL})
	require.Error(t, err)
	var e *model.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, model.KindResponseTooLarge, e.Kind)
}

func TestFetchBlocksPrivateAddressByDefault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	cfg := &config.Config{}
	cfg.ApplyDefaults() // BlockPrivate stays false by zero-value here; guard constructed directly below instead
	guard := urlguard.New(config.SSRFConfig{BlockPrivate: true}, nil)
	limiter := ratelimit.New(cfg.RateLimit.RPS, cfg.RateLimit.Burst, cfg.RateLimit.GlobalInflight)
	c := New(cfg, guard, limiter, logging.NewStdioLogger("error"))

	_, err := c.Fetch(context.Background(), Request{Method: http.MethodGet, URL: srv.URL})
	require.Error(t, err)
	var e *model.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, model.KindBlockedByGuard, e.Kind)
}

func TestFetchRetriesOn503ThenSucceeds(t *testing.T) {
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt64(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := newTestClient(t)
	c.policy.InitialBackoff = time.Millisecond
	c.policy.MaxBackoff = 5 * time.Millisecond

	resp, err := c.Fetch(context.Background(), Request{Method: http.MethodGet, URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, 200, resp.Status)
	assert.Equal(t, int64(3), atomic.LoadInt64(&calls))
}

func TestFetchReturnsLastStatusAfterRetryBudgetExhausted(t *testing.T) {
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newTestClient(t)
	c.policy.InitialBackoff = time.Millisecond
	c.policy.MaxBackoff = 5 * time.Millisecond

	resp, err := c.Fetch(context.Background(), Request{Method: http.MethodGet, URL: srv.URL})
	require.NoError(t, err) // a completed 503 response is not a transport error
	assert.Equal(t, 503, resp.Status)
	assert.Equal(t, int64(c.policy.MaxAttempts), atomic.LoadInt64(&calls))
}

func TestFetchHonorsRetryAfterOn429(t *testing.T) {
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt64(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := newTestClient(t)
	c.policy.InitialBackoff = time.Hour // would hang the test if the override were ignored

	resp, err := c.Fetch(context.Background(), Request{Method: http.MethodGet, URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, 200, resp.Status)
}

func TestFetchShortCircuitsWhenBreakerOpen(t *testing.T) {
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newTestClient(t)
	c.policy.MaxAttempts = 1

	const failureThreshold = 5
	for i := 0; i < failureThreshold; i++ {
		_, err := c.Fetch(context.Background(), Request{Method: http.MethodGet, URL: srv.URL})
		require.NoError(t, err) // each call: 503 is not a Go error, just a bad status
	}
	require.Equal(t, int64(failureThreshold), atomic.LoadInt64(&calls))

	_, err := c.Fetch(context.Background(), Request{Method: http.MethodGet, URL: srv.URL})
	require.Error(t, err)
	var e *model.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, model.KindCircuitOpen, e.Kind)
	assert.Equal(t, int64(failureThreshold), atomic.LoadInt64(&calls)) // breaker short-circuited, no new call
}
