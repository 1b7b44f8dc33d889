package crawler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quaero-labs/corequaero/internal/config"
	"github.com/quaero-labs/corequaero/internal/extract"
	"github.com/quaero-labs/corequaero/internal/fetch"
	"github.com/quaero-labs/corequaero/internal/logging"
	"github.com/quaero-labs/corequaero/internal/ratelimit"
	"github.com/quaero-labs/corequaero/internal/robots"
	"github.com/quaero-labs/corequaero/internal/urlguard"
)

// newTestSite serves a tiny in-memory site: a root page linking to two children,
// each with no further outbound links.
func newTestSite() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><a href="/a">a</a><a href="/b">b</a></body></html>`)
	})
	mux.HandleFunc("/a", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>leaf a</body></html>`)
	})
	mux.HandleFunc("/b", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>leaf b</body></html>`)
	})
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	return httptest.NewServer(mux)
}

func newTestSession(t *testing.T, opts Options) *Session {
	t.Helper()
	cfg := &config.Config{}
	cfg.ApplyDefaults()
	cfg.SSRF.BlockPrivate = false
	guard := urlguard.New(cfg.SSRF, nil)
	limiter := ratelimit.New(100, 100, 100)
	logger := logging.NewStdioLogger("error")
	fetcher := fetch.New(cfg, guard, limiter, logger)
	robotsCache := robots.New(fetcher, logger, time.Hour)
	return New(fetcher, guard, robotsCache, limiter, extract.New(), logger, opts)
}

func TestCrawlVisitsAllReachablePages(t *testing.T) {
	srv := newTestSite()
	defer srv.Close()

	s := newTestSession(t, Options{MaxDepth: 2, MaxPages: 10, Concurrency: 2})
	pages, errs, err := s.Run(context.Background(), srv.URL+"/")
	require.NoError(t, err)
	assert.Empty(t, errs)
	assert.Len(t, pages, 3)
}

func TestCrawlRespectsMaxDepth(t *testing.T) {
	srv := newTestSite()
	defer srv.Close()

	s := newTestSession(t, Options{MaxDepth: 1, MaxPages: 10, Concurrency: 2})
	pages, _, err := s.Run(context.Background(), srv.URL+"/")
	require.NoError(t, err)
	assert.Len(t, pages, 1) // only the seed, depth-0 links not followed
}

func TestCrawlRespectsMaxPages(t *testing.T) {
	srv := newTestSite()
	defer srv.Close()

	s := newTestSession(t, Options{MaxDepth: 2, MaxPages: 1, Concurrency: 1})
	pages, _, err := s.Run(context.Background(), srv.URL+"/")
	require.NoError(t, err)
	assert.Len(t, pages, 1)
}

func TestCrawlDedupesRepeatedLinks(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><a href="/a">a</a><a href="/a">a again</a></body></html>`)
	})
	mux.HandleFunc("/a", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>leaf</body></html>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	s := newTestSession(t, Options{MaxDepth: 2, MaxPages: 10, Concurrency: 2})
	pages, _, err := s.Run(context.Background(), srv.URL+"/")
	require.NoError(t, err)
	assert.Len(t, pages, 2)
}
