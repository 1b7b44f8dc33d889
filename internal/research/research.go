// Package research implements C14: the research orchestrator that expands
// a topic into queries, gathers and fetches candidate sources, scores
// their relevance, detects conflicting claims, and synthesizes findings.
// SemanticScorer and Synthesizer are the spec's explicit LLM-SDK boundary
// — both are optional capabilities the orchestrator degrades gracefully
// without, falling back to BM25-only scoring and excerpt synthesis.
package research

import (
	"context"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/quaero-labs/corequaero/internal/config"
	"github.com/quaero-labs/corequaero/internal/dedup"
	"github.com/quaero-labs/corequaero/internal/extract"
	"github.com/quaero-labs/corequaero/internal/fetch"
	"github.com/quaero-labs/corequaero/internal/urlguard"
	"github.com/quaero-labs/corequaero/internal/workerpool"
)

// Approach steers query expansion and source weighting.
type Approach string

const (
	ApproachBroad         Approach = "broad"
	ApproachFocused       Approach = "focused"
	ApproachAcademic      Approach = "academic"
	ApproachCurrentEvents Approach = "current_events"
	ApproachComparative   Approach = "comparative"
)

// SearchResult is one hit from a SearchProvider.
type SearchResult struct {
	URL     string
	Title   string
	Snippet string
}

// SearchProvider is the external search-engine capability research's
// source-gathering stage calls out to. Like ContentExtractor, this pipeline
// ships no concrete implementation — a general search index is an explicit
// spec non-goal — callers wire in whatever search backend they have.
type SearchProvider interface {
	Search(ctx context.Context, query string, limit int) ([]SearchResult, error)
}

// SemanticScorer optionally scores a document's relevance to a topic
// beyond BM25. Nil-able: Run falls back to BM25-only scoring without it.
type SemanticScorer interface {
	Score(ctx context.Context, topic, text string) (float64, error)
}

// Synthesizer optionally produces a narrative summary from scored
// findings. Nil-able: Run falls back to top-excerpt synthesis without it.
type Synthesizer interface {
	Synthesize(ctx context.Context, topic string, findings []Finding) (Summary, error)
}

// Options bounds and steers one research run.
type Options struct {
	Topic                string
	Approach             Approach
	MaxDepth             int
	MaxURLs              int
	TimeLimit            time.Duration
	CredibilityThreshold float64
	SourceTypes          []string
}

// Finding is one scored, fetched source contributing to the research result.
type Finding struct {
	URL            string
	Title          string
	Excerpt        string
	BM25Score      float64
	SemanticScore  float64
	CombinedScore  float64
	Credibility    float64
	FetchErr       string
}

// Conflict flags two findings whose claims appear to contradict.
type Conflict struct {
	URLA, URLB string
	ExcerptA   string
	ExcerptB   string
}

// Summary is the synthesized narrative over a research run's findings.
type Summary struct {
	Overview        string
	Themes          []string
	Gaps            []string
	Recommendations []string
}

// Metrics reports the effort spent on one Run.
type Metrics struct {
	QueriesExpanded int
	SourcesFound    int
	SourcesFetched  int
	SourcesScored   int
	Duration        time.Duration
}

// Result is the full payload returned from one research Run.
type Result struct {
	Findings  []Finding
	Consensus []string
	Conflicts []Conflict
	Summary   Summary
	Truncated bool
	Metrics   Metrics
}

// Orchestrator composes the fetch/extract/rank/dedup pipeline into the
// multi-stage research operation described in spec.md §4.14.
type Orchestrator struct {
	fetcher   *fetch.Client
	extractor extract.Extractor
	guard     *urlguard.Guard
	search    SearchProvider
	semantic  SemanticScorer
	synth     Synthesizer
	logger    arbor.ILogger
	cfg       config.ResearchConfig
}

// New builds an Orchestrator. semantic and synth may be nil.
func New(fetcher *fetch.Client, extractor extract.Extractor, guard *urlguard.Guard, search SearchProvider, semantic SemanticScorer, synth Synthesizer, cfg config.ResearchConfig, logger arbor.ILogger) *Orchestrator {
	return &Orchestrator{
		fetcher:   fetcher,
		extractor: extractor,
		guard:     guard,
		search:    search,
		semantic:  semantic,
		synth:     synth,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run executes the full research pipeline: expand, gather, fetch, score,
// detect conflicts, synthesize. It honors ctx cancellation and opts'
// TimeLimit, returning a partial Result with Truncated=true on budget
// exhaustion rather than an error.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*Result, error) {
	start := time.Now()
	opts = applyDefaults(opts, o.cfg)

	ctx, cancel := context.WithTimeout(ctx, opts.TimeLimit)
	defer cancel()

	queries := expandQueries(opts.Topic, opts.Approach)
	metrics := Metrics{QueriesExpanded: len(queries)}

	candidates, truncated := o.gatherSources(ctx, queries, opts.MaxURLs)
	metrics.SourcesFound = len(candidates)

	findings, fetchTruncated := o.fetchAndExtract(ctx, candidates)
	truncated = truncated || fetchTruncated
	metrics.SourcesFetched = len(findings)

	o.scoreFindings(ctx, opts.Topic, findings)
	findings = filterByCredibility(findings, opts.CredibilityThreshold)
	metrics.SourcesScored = len(findings)

	sortByScore(findings)

	conflicts := detectConflicts(findings)
	consensus := buildConsensus(findings)

	summary := o.synthesize(ctx, opts.Topic, findings)

	metrics.Duration = time.Since(start)
	if ctx.Err() != nil {
		truncated = true
	}

	return &Result{
		Findings:  findings,
		Consensus: consensus,
		Conflicts: conflicts,
		Summary:   summary,
		Truncated: truncated,
		Metrics:   metrics,
	}, nil
}

func applyDefaults(opts Options, cfg config.ResearchConfig) Options {
	if opts.MaxURLs <= 0 {
		opts.MaxURLs = cfg.MaxURLs
	}
	if opts.TimeLimit <= 0 {
		opts.TimeLimit = time.Duration(cfg.DefaultTimeLimitMS) * time.Millisecond
	}
	if opts.CredibilityThreshold <= 0 {
		opts.CredibilityThreshold = cfg.CredibilityThreshold
	}
	if opts.Approach == "" {
		opts.Approach = ApproachBroad
	}
	return opts
}

// gatherSources runs the query-expansion results through the
// SearchProvider, canonicalizes and validates every hit via the URL
// Guard, and deduplicates near-identical title+snippet pairs by SimHash.
func (o *Orchestrator) gatherSources(ctx context.Context, queries []string, maxURLs int) ([]SearchResult, bool) {
	if o.search == nil {
		return nil, false
	}

	clusterer := dedup.NewClusterer(3)
	seen := make(map[string]SearchResult)
	var order []string
	truncated := false

	for _, q := range queries {
		if ctx.Err() != nil {
			truncated = true
			break
		}
		hits, err := o.search.Search(ctx, q, maxURLs)
		if err != nil {
			o.logf("warn", "search query failed", q, err)
			continue
		}
		for _, h := range hits {
			canon, err := o.guard.CanonicalizeAndValidate(ctx, h.URL)
			if err != nil {
				continue
			}
			key := canon.String()
			if _, ok := seen[key]; ok {
				continue
			}
			sig := dedup.Compute(h.Title + " " + h.Snippet)
			clusterer.Add(dedup.Item{ID: key, Sig: sig})
			seen[key] = SearchResult{URL: key, Title: h.Title, Snippet: h.Snippet}
			order = append(order, key)
		}
	}

	reps := make(map[string]bool, len(clusterer.Representatives()))
	for _, r := range clusterer.Representatives() {
		reps[r] = true
	}

	results := make([]SearchResult, 0, len(order))
	for _, key := range order {
		if !reps[key] {
			continue
		}
		results = append(results, seen[key])
		if len(results) >= maxURLs {
			truncated = truncated || len(order) > len(results)
			break
		}
	}
	return results, truncated
}

func (o *Orchestrator) logf(level, msg, query string, err error) {
	if o.logger == nil {
		return
	}
	switch level {
	case "warn":
		o.logger.Warn().Str("query", query).Err(err).Msg(msg)
	default:
		o.logger.Info().Str("query", query).Msg(msg)
	}
}

// fetchAndExtract concurrently fetches and extracts every candidate,
// bounding concurrency via a workerpool.Pool the same way the crawler
// bounds fetch concurrency.
func (o *Orchestrator) fetchAndExtract(ctx context.Context, candidates []SearchResult) ([]Finding, bool) {
	findings := make([]Finding, len(candidates))
	pool := workerpool.New(ctx, 8, o.logger)
	truncated := false

	var mu sync.Mutex
	for i, c := range candidates {
		i, c := i, c
		err := pool.Submit(func(taskCtx context.Context) error {
			resp, ferr := o.fetcher.Fetch(taskCtx, fetch.Request{Method: "GET", URL: c.URL})
			f := Finding{URL: c.URL, Title: c.Title}
			if ferr != nil {
				f.FetchErr = ferr.Error()
				mu.Lock()
				findings[i] = f
				mu.Unlock()
				return nil
			}
			page, eerr := o.extractor.Extract(resp.Body, resp.FinalURL)
			if eerr != nil {
				f.FetchErr = eerr.Error()
				mu.Lock()
				findings[i] = f
				mu.Unlock()
				return nil
			}
			if page.Title != "" {
				f.Title = page.Title
			}
			f.Excerpt = excerpt(page.Text, 500)
			mu.Lock()
			findings[i] = f
			mu.Unlock()
			return nil
		})
		if err != nil {
			truncated = true
			break
		}
	}
	_ = pool.Wait()
	if ctx.Err() != nil {
		truncated = true
	}

	out := make([]Finding, 0, len(findings))
	for _, f := range findings {
		if f.URL == "" {
			continue
		}
		out = append(out, f)
	}
	return out, truncated
}

func excerpt(text string, n int) string {
	if len(text) <= n {
		return text
	}
	return text[:n]
}
