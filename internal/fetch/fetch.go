// Package fetch implements C4: the pooled HTTP client that every other
// component in the pipeline issues requests through. It re-validates SSRF
// policy on every redirect hop, enforces a response byte cap, and
// classifies failures into the model.Kind taxonomy.
package fetch

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/ternarybob/arbor"

	"github.com/quaero-labs/corequaero/internal/config"
	"github.com/quaero-labs/corequaero/internal/model"
	"github.com/quaero-labs/corequaero/internal/ratelimit"
	"github.com/quaero-labs/corequaero/internal/retry"
	"github.com/quaero-labs/corequaero/internal/urlguard"
)

// Request describes a single fetch operation, per spec.md §4.4.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
}

// Client is the pooled, guarded, rate-limited HTTP fetcher shared by the
// crawler, robots cache, and every MCP tool that needs raw bytes.
type Client struct {
	http    *http.Client
	guard   *urlguard.Guard
	limiter *ratelimit.Limiter
	logger  arbor.ILogger

	policy  retry.Policy
	breaker *retry.Breaker

	userAgent    string
	maxBytes     int64
	maxRedirects int
}

// New builds a Client whose transport is configured for connection
// keep-alive pooling per spec.md §4.4 (MaxIdlePerHost/MaxIdleGlobal).
func New(cfg *config.Config, guard *urlguard.Guard, limiter *ratelimit.Limiter, logger arbor.ILogger) *Client {
	transport := &http.Transport{
		MaxIdleConns:        cfg.Fetch.MaxIdleGlobal,
		MaxIdleConnsPerHost: cfg.Fetch.MaxIdlePerHost,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2: true,
	}

	c := &Client{
		guard:        guard,
		limiter:      limiter,
		logger:       logger,
		policy:       retry.NewPolicy(),
		breaker:      retry.NewBreaker(),
		userAgent:    cfg.Fetch.UserAgent,
		maxBytes:     cfg.Fetch.MaxBytes,
		maxRedirects: cfg.Fetch.MaxRedirects,
	}

	c.http = &http.Client{
		Transport: transport,
		Timeout:   cfg.FetchTimeout(),
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= c.maxRedirects {
				return model.New(model.KindInvalidRedirect, "exceeded %d redirects", c.maxRedirects)
			}
			if _, err := c.guard.CanonicalizeAndValidate(req.Context(), req.URL.String()); err != nil {
				return err
			}
			return nil
		},
	}
	return c
}

// Fetch performs req, returning a model.Response with decompressed,
// size-capped body bytes, or a classified *model.Error on failure. The
// request is retried per internal/retry's classification (timeouts,
// connect/DNS errors, and HTTP 429/502/503/504, honoring Retry-After) up
// to the policy's attempt budget, and is gated by a per-host circuit
// breaker that short-circuits calls to a host that has failed too many
// times in a row.
func (c *Client) Fetch(ctx context.Context, req Request) (*model.Response, error) {
	canonical, err := c.guard.CanonicalizeAndValidate(ctx, req.URL)
	if err != nil {
		return nil, err
	}
	host := canonical.Host

	if err := c.breaker.Allow(host); err != nil {
		return nil, err
	}

	release, err := c.limiter.Acquire(ctx, host)
	if err != nil {
		c.breaker.RecordResult(host, false)
		return nil, model.Wrap(model.KindTimeout, err, "rate limiter wait for %s", host)
	}
	defer release()

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var result *model.Response
	status, doErr, attempts := c.policy.Do(ctx, func(attempt int) (int, time.Duration, error) {
		resp, retryAfter, fetchErr := c.doOnce(ctx, method, canonical.String(), req)
		if fetchErr != nil {
			return statusOf(fetchErr), 0, fetchErr
		}
		result = resp
		return resp.Status, retryAfter, nil
	})

	c.breaker.RecordResult(host, !retry.IsHostFailure(status, doErr))

	if doErr != nil {
		if e, ok := doErr.(*model.Error); ok {
			e.Attempts = attempts
			return nil, e
		}
		return nil, model.Wrap(model.KindInternal, doErr, "fetch %s failed after %d attempts", req.URL, attempts)
	}
	return result, nil
}

// doOnce performs a single HTTP attempt and returns the decoded response,
// the Retry-After wait (if the server sent one on a 429), or a classified
// error.
func (c *Client) doOnce(ctx context.Context, method, url string, req Request) (*model.Response, time.Duration, error) {
	var bodyReader io.Reader
	if len(req.Body) > 0 {
		bodyReader = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, 0, model.Wrap(model.KindInvalidArgument, err, "build request for %s", req.URL)
	}
	httpReq.Header.Set("User-Agent", c.userAgent)
	httpReq.Header.Set("Accept-Encoding", "gzip, deflate, br")
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, 0, classifyTransportError(err, url)
	}
	defer resp.Body.Close()

	var retryAfter time.Duration
	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter = retry.RetryAfter(resp.Header.Get("Retry-After"))
	}

	body, err := readCapped(resp.Body, c.maxBytes)
	if err != nil {
		return nil, 0, err
	}
	body, err = decompress(body, resp.Header.Get("Content-Encoding"))
	if err != nil {
		return nil, 0, model.Wrap(model.KindCorruptArtifact, err, "decompress response from %s", req.URL)
	}

	headers := make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}

	c.logger.Debug().Str("url", url).Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).Int("bytes", len(body)).Msg("fetch complete")

	return &model.Response{
		FinalURL:      url,
		Status:        resp.StatusCode,
		Headers:       headers,
		Body:          body,
		FetchedAt:     time.Now(),
		FetchDuration: time.Since(start),
	}, retryAfter, nil
}

// statusOf extracts the HTTP status carried by a classified error, or 0
// if the failure happened before any response was obtained.
func statusOf(err error) int {
	var e *model.Error
	if errors.As(err, &e) {
		return e.StatusCode
	}
	return 0
}

// FetchBytes satisfies the robots.Fetcher interface: a minimal
// (status, body, err) view over Fetch for robots.txt retrieval.
func (c *Client) FetchBytes(ctx context.Context, rawURL string) (int, []byte, error) {
	resp, err := c.Fetch(ctx, Request{Method: http.MethodGet, URL: rawURL})
	if err != nil {
		return 0, nil, err
	}
	return resp.Status, resp.Body, nil
}

func readCapped(r io.Reader, maxBytes int64) ([]byte, error) {
	limited := io.LimitReader(r, maxBytes+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, model.Wrap(model.KindConnectError, err, "read response body")
	}
	if int64(len(body)) > maxBytes {
		return nil, model.New(model.KindResponseTooLarge, "response exceeded %d bytes", maxBytes)
	}
	return body, nil
}

func decompress(body []byte, encoding string) ([]byte, error) {
	switch encoding {
	case "gzip":
		r, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)
	case "deflate":
		r, err := zlib.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)
	case "br":
		r := brotli.NewReader(bytes.NewReader(body))
		return io.ReadAll(r)
	default:
		return body, nil
	}
}

func classifyTransportError(err error, url string) error {
	if netErr, ok := err.(interface{ Timeout() bool }); ok && netErr.Timeout() {
		return model.Wrap(model.KindTimeout, err, "fetch %s timed out", url)
	}
	if dnsErr, ok := asDNSError(err); ok {
		return model.Wrap(model.KindDNSError, dnsErr, "resolve host for %s", url)
	}
	if tlsErr, ok := asTLSError(err); ok {
		return model.Wrap(model.KindTLSError, tlsErr, "tls handshake for %s", url)
	}
	if guardErr, ok := err.(*model.Error); ok && guardErr.Kind == model.KindBlockedByGuard {
		return guardErr
	}
	return model.Wrap(model.KindConnectError, err, "connect to %s", url)
}

func asDNSError(err error) (*net.DNSError, bool) {
	var dnsErr *net.DNSError
	if e, ok := unwrapAs[*net.DNSError](err); ok {
		dnsErr = e
	}
	return dnsErr, dnsErr != nil
}

func asTLSError(err error) (*tls.CertificateVerificationError, bool) {
	if e, ok := unwrapAs[*tls.CertificateVerificationError](err); ok {
		return e, true
	}
	return nil, false
}

func unwrapAs[T error](err error) (T, bool) {
	var zero T
	for err != nil {
		if t, ok := err.(T); ok {
			return t, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return zero, false
}
