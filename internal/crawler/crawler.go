package crawler

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/ternarybob/arbor"

	"github.com/quaero-labs/corequaero/internal/extract"
	"github.com/quaero-labs/corequaero/internal/fetch"
	"github.com/quaero-labs/corequaero/internal/model"
	"github.com/quaero-labs/corequaero/internal/ratelimit"
	"github.com/quaero-labs/corequaero/internal/robots"
	"github.com/quaero-labs/corequaero/internal/urlguard"
)

// Page is one successfully crawled and extracted result.
type Page struct {
	URL   string
	Depth int
	*extract.Page
	Response *model.Response
}

// Options configures a crawl session, per spec.md §4.9.
type Options struct {
	// MaxDepth counts levels including the seed: 1 fetches only the seed.
	MaxDepth      int
	MaxPages      int
	RespectRobots bool
	Concurrency   int
	UserAgent     string
	// AllowHosts, when non-empty, restricts traversal to the given hosts
	// (the common "stay on this domain" crawl policy).
	AllowHosts map[string]bool
}

// Session runs one bounded BFS crawl from a seed URL.
type Session struct {
	fetcher   *fetch.Client
	guard     *urlguard.Guard
	robots    *robots.Cache
	limiter   *ratelimit.Limiter
	extractor extract.Extractor
	logger    arbor.ILogger
	opts      Options

	frontier     *frontier
	pagesCrawled int64

	mu      sync.Mutex
	results []Page
	errors  []error
}

// New builds a crawl Session.
func New(fetcher *fetch.Client, guard *urlguard.Guard, robotsCache *robots.Cache, limiter *ratelimit.Limiter, extractor extract.Extractor, logger arbor.ILogger, opts Options) *Session {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = 5
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = 100
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 5
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "quaero-core/1.0"
	}
	return &Session{
		fetcher:   fetcher,
		guard:     guard,
		robots:    robotsCache,
		limiter:   limiter,
		extractor: extractor,
		logger:    logger,
		opts:      opts,
		frontier:  newFrontier(),
	}
}

// Run crawls starting from seed until the frontier drains, the page
// budget is exhausted, or ctx is cancelled. It returns every successfully
// extracted Page, in the order workers completed them (not traversal
// order — order is not part of the BFS guarantee, only the per-hop depth
// numbering is).
func (s *Session) Run(ctx context.Context, seed string) ([]Page, []error, error) {
	canonical, err := s.guard.CanonicalizeAndValidate(ctx, seed)
	if err != nil {
		return nil, nil, err
	}
	s.frontier.push(canonical.String(), 0)

	var wg sync.WaitGroup
	for i := 0; i < s.opts.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.drainLoop(ctx)
		}()
	}
	wg.Wait()
	s.frontier.close()

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.results, s.errors, nil
}

// drainLoop pops frontier items and processes each in turn, until the
// frontier fully drains (no items queued, nothing still being processed
// anywhere), the page budget is hit, or ctx is done.
func (s *Session) drainLoop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if atomic.LoadInt64(&s.pagesCrawled) >= int64(s.opts.MaxPages) {
			s.frontier.close()
			return
		}
		item, ok := s.frontier.pop(ctx)
		if !ok {
			return
		}
		s.processOne(ctx, item)
		s.frontier.release()
	}
}

func (s *Session) processOne(ctx context.Context, item *frontierItem) {
	if item.Depth >= s.opts.MaxDepth {
		return
	}
	if atomic.AddInt64(&s.pagesCrawled, 1) > int64(s.opts.MaxPages) {
		atomic.AddInt64(&s.pagesCrawled, -1)
		return
	}

	if s.opts.RespectRobots && !s.robots.Allowed(ctx, item.URL, s.opts.UserAgent) {
		s.recordError(model.Guard(model.ReasonBlockedHost, "robots.txt disallows %s", item.URL))
		atomic.AddInt64(&s.pagesCrawled, -1)
		return
	}

	resp, err := s.fetcher.Fetch(ctx, fetch.Request{Method: "GET", URL: item.URL})
	if err != nil {
		s.recordError(err)
		return
	}
	if resp.Status >= 400 {
		s.recordError(model.New(model.KindHTTPStatus, "status %d for %s", resp.Status, item.URL))
		return
	}

	page, err := s.extractor.Extract(resp.Body, item.URL)
	if err != nil {
		s.recordError(err)
		return
	}

	s.mu.Lock()
	s.results = append(s.results, Page{URL: item.URL, Depth: item.Depth, Page: page, Response: resp})
	s.mu.Unlock()

	if item.Depth+1 < s.opts.MaxDepth {
		for _, link := range page.Links {
			if !s.hostAllowed(link) {
				continue
			}
			canonical, err := s.guard.CanonicalizeAndValidate(ctx, link)
			if err != nil {
				continue // silently drop blocked/invalid links, not a crawl error
			}
			s.frontier.push(canonical.String(), item.Depth+1)
		}
	}
}

func (s *Session) hostAllowed(rawURL string) bool {
	if len(s.opts.AllowHosts) == 0 {
		return true
	}
	host := ratelimit.HostOf(rawURL)
	return s.opts.AllowHosts[host]
}

func (s *Session) recordError(err error) {
	s.logger.Debug().Err(err).Msg("crawl step failed")
	s.mu.Lock()
	s.errors = append(s.errors, err)
	s.mu.Unlock()
}

// Stats reports the session's progress, for job-progress reporting.
func (s *Session) Stats() (crawled int, frontierSize int) {
	return int(atomic.LoadInt64(&s.pagesCrawled)), s.frontier.len()
}
