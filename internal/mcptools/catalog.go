package mcptools

import (
	"bytes"
	"context"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"

	"github.com/quaero-labs/corequaero/internal/cache"
	"github.com/quaero-labs/corequaero/internal/changetrack"
	"github.com/quaero-labs/corequaero/internal/crawler"
	"github.com/quaero-labs/corequaero/internal/extract"
	"github.com/quaero-labs/corequaero/internal/fetch"
	"github.com/quaero-labs/corequaero/internal/jobs"
	"github.com/quaero-labs/corequaero/internal/model"
	"github.com/quaero-labs/corequaero/internal/rank"
	"github.com/quaero-labs/corequaero/internal/research"
	"github.com/quaero-labs/corequaero/internal/robots"
	"github.com/quaero-labs/corequaero/internal/urlguard"
)

// Pipeline bundles every core component the tool catalog dispatches into.
// Tools hold only opaque references to these — no back-pointers between
// components, per spec.md §9's arena-like-registry design note.
type Pipeline struct {
	Fetcher   *fetch.Client
	Cache     *cache.Cache
	Extractor extract.Extractor
	Guard     *urlguard.Guard
	Robots    *robots.Cache
	Jobs      *jobs.Manager
	Research  *research.Orchestrator
	Changes   *changetrack.Tracker
	Search    research.SearchProvider
	Logger    arbor.ILogger
}

// RegisterCatalog registers the minimum-required tool subset from
// spec.md §6.2 against d, backed by p's real components.
func RegisterCatalog(d *Dispatcher, p *Pipeline) {
	d.Register(fetchURLTool(p))
	d.Register(extractTextTool(p))
	d.Register(extractLinksTool(p))
	d.Register(extractMetadataTool(p))
	d.Register(extractContentTool(p))
	d.Register(scrapeStructuredTool(p))
	d.Register(crawlDeepTool(p))
	d.Register(mapSiteTool(p))
	d.Register(batchScrapeTool(p))
	d.Register(deepResearchTool(p))
	d.Register(trackChangesTool(p))
	d.Register(searchWebTool(p))
}

func fetchURLTool(p *Pipeline) ToolDef {
	return ToolDef{
		Name:        "fetch_url",
		Description: "Fetch a URL, using the two-tier cache.",
		Schema:      Schema{Params: []ParamSpec{{Name: "url", Type: ParamString, Required: true}}},
		Handler: func(ctx context.Context, args map[string]any) (Envelope, error) {
			rawURL := StringArg(args, "url", "")
			resp, fromCache, err := fetchWithCache(ctx, p, rawURL)
			if err != nil {
				return Fail(err), nil
			}
			return Ok(map[string]any{
				"url":    resp.FinalURL,
				"status": resp.Status,
				"body":   string(resp.Body),
				"cache":  cacheLabel(fromCache),
			}), nil
		},
	}
}

func cacheLabel(hit bool) string {
	if hit {
		return "hit"
	}
	return "miss"
}

// fetchWithCache is the shared fetch-through-cache path every content tool
// uses, per S1's cache contract (fetched_at unchanged on a hit).
func fetchWithCache(ctx context.Context, p *Pipeline, rawURL string) (*model.Response, bool, error) {
	canon, err := model.Canonicalize(rawURL)
	if err != nil {
		return nil, false, err
	}
	fp := model.NewFingerprint("GET", canon, "", nil)

	if p.Cache != nil {
		if resp, ok := p.Cache.Get(ctx, fp); ok {
			return resp, true, nil
		}
	}

	resp, err := p.Fetcher.Fetch(ctx, fetch.Request{Method: "GET", URL: rawURL})
	if err != nil {
		return nil, false, err
	}
	if p.Cache != nil {
		_ = p.Cache.Put(ctx, fp, *resp)
	}
	return resp, false, nil
}

func extractTextTool(p *Pipeline) ToolDef {
	return ToolDef{
		Name:        "extract_text",
		Description: "Fetch a URL and extract its plain text.",
		Schema:      Schema{Params: []ParamSpec{{Name: "url", Type: ParamString, Required: true}}},
		Handler: func(ctx context.Context, args map[string]any) (Envelope, error) {
			page, err := fetchAndExtractOne(ctx, p, StringArg(args, "url", ""))
			if err != nil {
				return Fail(err), nil
			}
			return Ok(map[string]any{"text": page.Text}), nil
		},
	}
}

func extractLinksTool(p *Pipeline) ToolDef {
	return ToolDef{
		Name:        "extract_links",
		Description: "Fetch a URL and extract outbound links.",
		Schema: Schema{Params: []ParamSpec{
			{Name: "url", Type: ParamString, Required: true},
			{Name: "filter_external", Type: ParamBool},
		}},
		Handler: func(ctx context.Context, args map[string]any) (Envelope, error) {
			rawURL := StringArg(args, "url", "")
			page, err := fetchAndExtractOne(ctx, p, rawURL)
			if err != nil {
				return Fail(err), nil
			}
			links := page.Links
			if BoolArg(args, "filter_external", false) {
				links = sameHostLinks(rawURL, links)
			}
			return Ok(map[string]any{"links": links}), nil
		},
	}
}

func extractMetadataTool(p *Pipeline) ToolDef {
	return ToolDef{
		Name:        "extract_metadata",
		Description: "Fetch a URL and extract its title and metadata tags.",
		Schema:      Schema{Params: []ParamSpec{{Name: "url", Type: ParamString, Required: true}}},
		Handler: func(ctx context.Context, args map[string]any) (Envelope, error) {
			page, err := fetchAndExtractOne(ctx, p, StringArg(args, "url", ""))
			if err != nil {
				return Fail(err), nil
			}
			return Ok(map[string]any{"title": page.Title, "metadata": page.Metadata}), nil
		},
	}
}

func extractContentTool(p *Pipeline) ToolDef {
	return ToolDef{
		Name:        "extract_content",
		Description: "Fetch a URL and extract cleaned article text plus metadata.",
		Schema:      Schema{Params: []ParamSpec{{Name: "url", Type: ParamString, Required: true}}},
		Handler: func(ctx context.Context, args map[string]any) (Envelope, error) {
			page, err := fetchAndExtractOne(ctx, p, StringArg(args, "url", ""))
			if err != nil {
				return Fail(err), nil
			}
			return Ok(map[string]any{
				"title":    page.Title,
				"text":     page.Text,
				"markdown": page.Markdown,
				"metadata": page.Metadata,
			}), nil
		},
	}
}

func fetchAndExtractOne(ctx context.Context, p *Pipeline, rawURL string) (*extract.Page, error) {
	resp, _, err := fetchWithCache(ctx, p, rawURL)
	if err != nil {
		return nil, err
	}
	return p.Extractor.Extract(resp.Body, resp.FinalURL)
}

func sameHostLinks(seedURL string, links []string) []string {
	seedCanon, err := model.Canonicalize(seedURL)
	if err != nil {
		return links
	}
	out := make([]string, 0, len(links))
	for _, l := range links {
		c, err := model.Canonicalize(l)
		if err == nil && c.Host != seedCanon.Host {
			continue
		}
		out = append(out, l)
	}
	return out
}

// scrapeStructuredTool extracts named CSS-selector values directly via
// goquery, the same DOM library the default ContentExtractor uses —
// spec.md's ContentExtractor boundary covers heuristic extraction, not a
// literal selector→value lookup, so this tool talks to goquery directly.
func scrapeStructuredTool(p *Pipeline) ToolDef {
	return ToolDef{
		Name:        "scrape_structured",
		Description: "Fetch a URL and extract values for named CSS selectors.",
		Schema: Schema{Params: []ParamSpec{
			{Name: "url", Type: ParamString, Required: true},
			{Name: "selectors", Type: ParamObject, Required: true},
		}},
		Handler: func(ctx context.Context, args map[string]any) (Envelope, error) {
			rawURL := StringArg(args, "url", "")
			resp, _, err := fetchWithCache(ctx, p, rawURL)
			if err != nil {
				return Fail(err), nil
			}
			doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
			if err != nil {
				return Fail(model.Wrap(model.KindInvalidArgument, err, "parse html")), nil
			}
			selectors := ObjectArg(args, "selectors")
			out := make(map[string]any, len(selectors))
			for name, sel := range selectors {
				selStr, ok := sel.(string)
				if !ok {
					continue
				}
				var values []string
				doc.Find(selStr).Each(func(_ int, s *goquery.Selection) {
					values = append(values, s.Text())
				})
				if len(values) == 1 {
					out[name] = values[0]
				} else {
					out[name] = values
				}
			}
			return Ok(out), nil
		},
	}
}

func crawlDeepTool(p *Pipeline) ToolDef {
	return ToolDef{
		Name:        "crawl_deep",
		Description: "Breadth-first crawl from a seed URL within depth/page budgets.",
		Timeout:     5 * time.Minute,
		Schema: Schema{Params: []ParamSpec{
			{Name: "url", Type: ParamString, Required: true},
			{Name: "max_depth", Type: ParamNumber, HasBound: true, Min: 1, Max: 10},
			{Name: "max_pages", Type: ParamNumber, HasBound: true, Min: 1, Max: 100000},
			{Name: "follow_external", Type: ParamBool},
			{Name: "respect_robots", Type: ParamBool},
		}},
		Handler: func(ctx context.Context, args map[string]any) (Envelope, error) {
			return runCrawl(ctx, p, args, false)
		},
	}
}

func mapSiteTool(p *Pipeline) ToolDef {
	return ToolDef{
		Name:        "map_site",
		Description: "Discover the set of URLs reachable from a seed URL.",
		Timeout:     5 * time.Minute,
		Schema: Schema{Params: []ParamSpec{
			{Name: "url", Type: ParamString, Required: true},
			{Name: "max_urls", Type: ParamNumber, HasBound: true, Min: 1, Max: 100000},
		}},
		Handler: func(ctx context.Context, args map[string]any) (Envelope, error) {
			return runCrawl(ctx, p, args, true)
		},
	}
}

func runCrawl(ctx context.Context, p *Pipeline, args map[string]any, urlsOnly bool) (Envelope, error) {
	rawURL := StringArg(args, "url", "")
	maxDepth := IntArg(args, "max_depth", 5)
	maxPages := IntArg(args, "max_pages", IntArg(args, "max_urls", 100))

	session := crawler.New(p.Fetcher, p.Guard, p.Robots, nil, p.Extractor, p.Logger, crawler.Options{
		MaxDepth:      maxDepth,
		MaxPages:      maxPages,
		RespectRobots: BoolArg(args, "respect_robots", true),
	})
	pages, errs, err := session.Run(ctx, rawURL)
	if err != nil {
		return Fail(err), nil
	}

	if urlsOnly {
		urls := make([]string, 0, len(pages))
		for _, pg := range pages {
			urls = append(urls, pg.URL)
		}
		return Ok(map[string]any{"urls": urls, "errors": len(errs)}), nil
	}

	results := make([]map[string]any, 0, len(pages))
	for _, pg := range pages {
		results = append(results, map[string]any{
			"url":   pg.URL,
			"depth": pg.Depth,
			"title": pg.Page.Title,
			"text":  pg.Page.Text,
		})
	}
	return Ok(map[string]any{"pages": results, "errors": len(errs)}), nil
}

func batchScrapeTool(p *Pipeline) ToolDef {
	return ToolDef{
		Name:        "batch_scrape",
		Description: "Fetch a list of URLs synchronously or as a background job.",
		Schema: Schema{Params: []ParamSpec{
			{Name: "urls", Type: ParamStringArray, Required: true},
			{Name: "mode", Type: ParamString, Enum: []string{"sync", "async"}},
		}},
		Handler: func(ctx context.Context, args map[string]any) (Envelope, error) {
			urls := StringArrayArg(args, "urls")
			mode := StringArg(args, "mode", "sync")

			if mode == "async" {
				job, jobCtx, err := p.Jobs.Create(ctx, "batch_scrape", joinURLs(urls))
				if err != nil {
					return Fail(err), nil
				}
				go runBatchJob(jobCtx, p, job.ID, urls)
				return Ok(map[string]any{"job_id": job.ID}), nil
			}

			results := make([]map[string]any, 0, len(urls))
			for _, u := range urls {
				resp, _, ferr := fetchWithCache(ctx, p, u)
				if ferr != nil {
					results = append(results, map[string]any{"url": u, "error": ferr.Error()})
					continue
				}
				results = append(results, map[string]any{"url": u, "status": resp.Status, "body": string(resp.Body)})
			}
			return Ok(map[string]any{"results": results}), nil
		},
	}
}

func joinURLs(urls []string) string {
	out := ""
	for i, u := range urls {
		if i > 0 {
			out += ","
		}
		out += u
	}
	return out
}

func runBatchJob(ctx context.Context, p *Pipeline, jobID string, urls []string) {
	_ = p.Jobs.MarkRunning(jobID)
	var ok, failed int
	for i, u := range urls {
		if ctx.Err() != nil {
			_ = p.Jobs.Fail(jobID, ctx.Err())
			return
		}
		if _, _, err := fetchWithCache(ctx, p, u); err != nil {
			failed++
		} else {
			ok++
		}
		_ = p.Jobs.UpdateProgress(jobID, i+1, len(urls))
	}
	_ = p.Jobs.Complete(jobID, joinURLs(urls))
	_ = ok
	_ = failed
}

func deepResearchTool(p *Pipeline) ToolDef {
	return ToolDef{
		Name:        "deep_research",
		Description: "Expand a topic into queries, gather and score sources, and synthesize findings.",
		Timeout:     10 * time.Minute,
		Schema: Schema{Params: []ParamSpec{
			{Name: "topic", Type: ParamString, Required: true},
			{Name: "maxDepth", Type: ParamNumber},
			{Name: "maxUrls", Type: ParamNumber},
			{Name: "timeLimit", Type: ParamNumber},
			{Name: "researchApproach", Type: ParamString, Enum: []string{"broad", "focused", "academic", "current_events", "comparative"}},
			{Name: "credibilityThreshold", Type: ParamNumber, HasBound: true, Min: 0, Max: 1},
		}},
		Handler: func(ctx context.Context, args map[string]any) (Envelope, error) {
			if p.Research == nil {
				return Fail(model.New(model.KindInvalidArgument, "research orchestrator not configured")), nil
			}
			opts := research.Options{
				Topic:                StringArg(args, "topic", ""),
				Approach:             research.Approach(StringArg(args, "researchApproach", "broad")),
				MaxDepth:             IntArg(args, "maxDepth", 0),
				MaxURLs:              IntArg(args, "maxUrls", 0),
				CredibilityThreshold: FloatArg(args, "credibilityThreshold", 0),
			}
			if ms := IntArg(args, "timeLimit", 0); ms > 0 {
				opts.TimeLimit = time.Duration(ms) * time.Millisecond
			}
			result, err := p.Research.Run(ctx, opts)
			if err != nil {
				return Fail(err), nil
			}
			if result.Truncated {
				return OkTruncated(result, map[string]any{
					"sources_found":   result.Metrics.SourcesFound,
					"sources_fetched": result.Metrics.SourcesFetched,
				}), nil
			}
			return Ok(result), nil
		},
	}
}

func trackChangesTool(p *Pipeline) ToolDef {
	return ToolDef{
		Name:        "track_changes",
		Description: "Create baselines, compare, and manage change-tracking monitors for a URL.",
		Schema: Schema{Params: []ParamSpec{
			{Name: "url", Type: ParamString, Required: true},
			{Name: "operation", Type: ParamString, Required: true, Enum: []string{
				"create_baseline", "compare", "monitor", "get_stats",
			}},
			{Name: "monitor_id", Type: ParamString},
			{Name: "schedule", Type: ParamString},
		}},
		Handler: func(ctx context.Context, args map[string]any) (Envelope, error) {
			if p.Changes == nil {
				return Fail(model.New(model.KindInvalidArgument, "change tracker not configured")), nil
			}
			op := StringArg(args, "operation", "")
			rawURL := StringArg(args, "url", "")
			monitorID := StringArg(args, "monitor_id", rawURL)

			switch op {
			case "create_baseline", "compare":
				report, err := p.Changes.Check(ctx, monitorID)
				if err != nil {
					return Fail(err), nil
				}
				if report == nil {
					return Ok(map[string]any{"baseline": true}), nil
				}
				return Ok(report), nil
			case "monitor":
				m := &changetrack.Monitor{ID: monitorID, URL: rawURL, Schedule: StringArg(args, "schedule", "@every 1h")}
				if err := p.Changes.AddMonitor(ctx, m); err != nil {
					return Fail(err), nil
				}
				return Ok(map[string]any{"monitor_id": monitorID}), nil
			case "get_stats":
				return Ok(map[string]any{"history": p.Changes.History(monitorID)}), nil
			default:
				return Fail(model.New(model.KindInvalidArgument, "unsupported track_changes operation %q", op)), nil
			}
		},
	}
}

func searchWebTool(p *Pipeline) ToolDef {
	return ToolDef{
		Name:        "search_web",
		Description: "Search via the configured provider and rank results by relevance to the query.",
		Schema: Schema{Params: []ParamSpec{
			{Name: "query", Type: ParamString, Required: true},
			{Name: "limit", Type: ParamNumber, HasBound: true, Min: 1, Max: 100},
		}},
		Handler: func(ctx context.Context, args map[string]any) (Envelope, error) {
			if p.Search == nil {
				return Fail(model.New(model.KindInvalidArgument, "no search provider configured")), nil
			}
			query := StringArg(args, "query", "")
			limit := IntArg(args, "limit", 10)

			hits, err := p.Search.Search(ctx, query, limit)
			if err != nil {
				return Fail(err), nil
			}

			docs := make([]rank.Document, len(hits))
			for i, h := range hits {
				docs[i] = rank.Document{ID: h.URL, Text: h.Title + " " + h.Snippet}
			}
			scored := rank.NewIndex(docs).Search(query, limit)

			byURL := make(map[string]research.SearchResult, len(hits))
			for _, h := range hits {
				byURL[h.URL] = h
			}
			ranked := make([]map[string]any, 0, len(scored))
			for _, s := range scored {
				h := byURL[s.ID]
				ranked = append(ranked, map[string]any{"url": h.URL, "title": h.Title, "snippet": h.Snippet, "score": s.Score})
			}
			return Ok(map[string]any{"results": ranked}), nil
		},
	}
}
