// Package robots implements C2: a TTL'd cache of robots.txt decisions,
// adapted from the teacher pack's temoto/robotstxt usage
// (FranksOps-burr's internal/scraper/robots.go) into the shared pipeline's
// fetch+arbor idiom.
package robots

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"github.com/ternarybob/arbor"
)

// Fetcher is the minimal fetch capability the robots cache needs; the
// concrete implementation is internal/fetch.Client.
type Fetcher interface {
	FetchBytes(ctx context.Context, rawURL string) (status int, body []byte, err error)
}

type entry struct {
	data      *robotstxt.RobotsData
	fetchedAt time.Time
	err       error
}

// Cache answers Allowed/CrawlDelay/Sitemaps queries, memoizing robots.txt
// per host for ttl.
type Cache struct {
	fetcher Fetcher
	logger  arbor.ILogger
	ttl     time.Duration

	mu      sync.RWMutex
	entries map[string]*entry
}

// New builds a robots Cache with the default 1h TTL from spec.md §4.2.
func New(fetcher Fetcher, logger arbor.ILogger, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cache{
		fetcher: fetcher,
		logger:  logger,
		ttl:     ttl,
		entries: make(map[string]*entry),
	}
}

// Allowed reports whether userAgent may fetch rawURL per the host's
// robots.txt. Fetch failures default to allow, per spec.md §4.2.
func (c *Cache) Allowed(ctx context.Context, rawURL, userAgent string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	data := c.getOrFetch(ctx, u.Scheme+"://"+u.Host)
	if data == nil {
		return true
	}
	group := data.FindGroup(userAgent)
	return group.Test(u.Path)
}

// CrawlDelay returns the crawl-delay directive for host/userAgent, or 0 if
// none was declared.
func (c *Cache) CrawlDelay(ctx context.Context, host, userAgent string) time.Duration {
	data := c.getOrFetch(ctx, normalizeHost(host))
	if data == nil {
		return 0
	}
	group := data.FindGroup(userAgent)
	return group.CrawlDelay
}

// Sitemaps returns the sitemap URLs declared in the host's robots.txt.
func (c *Cache) Sitemaps(ctx context.Context, host string) []string {
	data := c.getOrFetch(ctx, normalizeHost(host))
	if data == nil {
		return nil
	}
	return data.Sitemaps
}

func normalizeHost(host string) string {
	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		return host
	}
	return "http://" + host
}

func (c *Cache) getOrFetch(ctx context.Context, origin string) *robotstxt.RobotsData {
	c.mu.RLock()
	e, ok := c.entries[origin]
	c.mu.RUnlock()
	if ok && time.Since(e.fetchedAt) < c.ttl {
		return e.data
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// Re-check under write lock in case another goroutine refreshed it.
	if e, ok := c.entries[origin]; ok && time.Since(e.fetchedAt) < c.ttl {
		return e.data
	}

	data, err := c.fetch(ctx, origin)
	c.entries[origin] = &entry{data: data, fetchedAt: time.Now(), err: err}
	if err != nil {
		c.logger.Debug().Err(err).Str("origin", origin).Msg("robots.txt fetch failed, defaulting to allow")
	}
	return data
}

func (c *Cache) fetch(ctx context.Context, origin string) (*robotstxt.RobotsData, error) {
	status, body, err := c.fetcher.FetchBytes(ctx, origin+"/robots.txt")
	if err != nil {
		return nil, fmt.Errorf("fetch robots.txt for %s: %w", origin, err)
	}
	if status >= 400 {
		return nil, nil // no robots.txt published: treat as allow-all
	}
	data, err := robotstxt.FromBytes(body)
	if err != nil {
		return nil, fmt.Errorf("parse robots.txt for %s: %w", origin, err)
	}
	return data, nil
}
