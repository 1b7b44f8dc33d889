// Package metrics exposes C17: Prometheus counters and histograms for the
// extraction pipeline, plus the /metrics and /healthz HTTP server that
// serves them — grounded on the teacher pack's own Prometheus wiring
// (FranksOps-burr/internal/metrics/metrics.go), generalized from a single
// scrape counter to the full set of components this pipeline runs.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FetchRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quaero_fetch_requests_total",
		Help: "Total fetch attempts, labeled by host and outcome.",
	}, []string{"host", "outcome"})

	FetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "quaero_fetch_duration_seconds",
		Help:    "Fetch round-trip duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"host"})

	FetchBytesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quaero_fetch_bytes_total",
		Help: "Total response bytes read, labeled by host.",
	}, []string{"host"})

	CacheRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quaero_cache_requests_total",
		Help: "Cache lookups, labeled by tier (l1/l2) and result (hit/miss).",
	}, []string{"tier", "result"})

	CrawlPagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quaero_crawl_pages_total",
		Help: "Pages visited by the crawler, labeled by outcome.",
	}, []string{"outcome"})

	JobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quaero_jobs_total",
		Help: "Jobs transitioning to a terminal or running state, labeled by type and status.",
	}, []string{"type", "status"})

	JobsInFlight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "quaero_jobs_in_flight",
		Help: "Jobs currently running, labeled by type.",
	}, []string{"type"})

	WebhookDeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quaero_webhook_deliveries_total",
		Help: "Webhook delivery attempts, labeled by outcome (delivered/retried/dead_lettered).",
	}, []string{"outcome"})

	WebhookQueueOverflowTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quaero_webhook_queue_overflow_total",
		Help: "Deliveries dropped because the bounded webhook queue was full.",
	})

	ChangeChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quaero_change_checks_total",
		Help: "Monitor checks performed, labeled by significance.",
	}, []string{"significance"})

	GuardBlocksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quaero_guard_blocks_total",
		Help: "Requests blocked by the URL guard, labeled by reason.",
	}, []string{"reason"})

	ToolInvocationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quaero_tool_invocations_total",
		Help: "MCP tool invocations, labeled by tool name and outcome.",
	}, []string{"tool", "outcome"})

	ToolDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "quaero_tool_duration_seconds",
		Help:    "Tool invocation duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"tool"})
)

// RecordFetch records the outcome of one fetch attempt against host.
func RecordFetch(host, outcome string, dur time.Duration, bytes int) {
	FetchRequestsTotal.WithLabelValues(host, outcome).Inc()
	FetchDuration.WithLabelValues(host).Observe(dur.Seconds())
	if bytes > 0 {
		FetchBytesTotal.WithLabelValues(host).Add(float64(bytes))
	}
}

// RecordCache records a cache lookup against the given tier ("l1" or "l2").
func RecordCache(tier string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheRequestsTotal.WithLabelValues(tier, result).Inc()
}

// Server serves /metrics and /healthz on its own listener, independent of
// any MCP stdio transport, following the teacher's Start/Stop lifecycle.
type Server struct {
	srv *http.Server
}

// Start begins serving on addr (e.g. ":9090") in a background goroutine.
func Start(addr string) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	s := &Server{srv: &http.Server{Addr: addr, Handler: mux}}
	go s.srv.ListenAndServe()
	return s
}

// Stop gracefully shuts the metrics server down within 5 seconds.
func (s *Server) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(shutdownCtx)
}
