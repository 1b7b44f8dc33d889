// Package app wires the full component graph shared by both binaries
// (cmd/quaero-core-mcp's stdio tool server and cmd/quaero-core's daemon),
// following the teacher's single-entry-point storage.NewStorageManager
// pattern (cmd/quaero-mcp/main.go): one constructor, one Close.
package app

import (
	"fmt"
	"os"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/quaero-labs/corequaero/internal/cache"
	"github.com/quaero-labs/corequaero/internal/changetrack"
	"github.com/quaero-labs/corequaero/internal/config"
	"github.com/quaero-labs/corequaero/internal/extract"
	"github.com/quaero-labs/corequaero/internal/fetch"
	"github.com/quaero-labs/corequaero/internal/jobs"
	"github.com/quaero-labs/corequaero/internal/mcptools"
	"github.com/quaero-labs/corequaero/internal/ratelimit"
	"github.com/quaero-labs/corequaero/internal/research"
	"github.com/quaero-labs/corequaero/internal/robots"
	"github.com/quaero-labs/corequaero/internal/snapshot"
	"github.com/quaero-labs/corequaero/internal/urlguard"
	"github.com/quaero-labs/corequaero/internal/webhook"
)

// App bundles every core component against a loaded config, ready to be
// handed to either the MCP tool catalog or the daemon's cobra commands.
type App struct {
	Config *config.Config
	Logger arbor.ILogger

	store    *badgerhold.Store
	jobStore *badgerhold.Store
	snapIdx  *badgerhold.Store

	Guard     *urlguard.Guard
	Limiter   *ratelimit.Limiter
	Fetcher   *fetch.Client
	Cache     *cache.Cache
	Extractor extract.Extractor
	Robots    *robots.Cache
	Jobs      *jobs.Manager
	Snapshots *snapshot.Store
	Webhooks  *webhook.Dispatcher
	Changes   *changetrack.Tracker
	Research  *research.Orchestrator
}

// New opens the storage backends and constructs every component against
// cfg. search, semantic and synth are the pipeline's explicit external
// collaborators (spec.md non-goals) and may be nil.
func New(cfg *config.Config, logger arbor.ILogger, search research.SearchProvider, semantic research.SemanticScorer, synth research.Synthesizer) (*App, error) {
	cfg.ApplyDefaults()

	store, err := openStore(cfg.Storage.BadgerPath, cfg.Storage.ResetOnStartup)
	if err != nil {
		return nil, fmt.Errorf("open cache store: %w", err)
	}
	jobStore, err := openStore(cfg.Storage.JobRoot+"/badger", cfg.Storage.ResetOnStartup)
	if err != nil {
		return nil, fmt.Errorf("open job store: %w", err)
	}
	snapIdx, err := openStore(cfg.Storage.SnapshotRoot+"/badger", cfg.Storage.ResetOnStartup)
	if err != nil {
		return nil, fmt.Errorf("open snapshot index: %w", err)
	}

	guard := urlguard.New(cfg.SSRF, nil)
	limiter := ratelimit.New(cfg.RateLimit.RPS, cfg.RateLimit.Burst, cfg.RateLimit.GlobalInflight)
	fetcher := fetch.New(cfg, guard, limiter, logger)
	ttl := time.Duration(cfg.Cache.TTLMS) * time.Millisecond
	memCache := cache.New(cfg.Cache.L1Items, cfg.Cache.L1Bytes, ttl, store)
	extractor := extract.New()
	robotsCache := robots.New(fetcher, logger, time.Hour)
	jobsMgr := jobs.New(jobStore, time.Duration(cfg.Job.RetentionMS)*time.Millisecond)

	snapStore, err := snapshot.New(cfg.Storage.SnapshotRoot, snapIdx)
	if err != nil {
		return nil, fmt.Errorf("open snapshot store: %w", err)
	}

	webhooks := webhook.New(cfg.Webhook.QueueSize, time.Duration(cfg.Webhook.TimeoutMS)*time.Millisecond, cfg.Storage.WebhookRoot, logger)
	changes := changetrack.New(cfg.Change, fetcher, extractor, webhooks, logger)
	orchestrator := research.New(fetcher, extractor, guard, search, semantic, synth, cfg.Research, logger)

	return &App{
		Config:    cfg,
		Logger:    logger,
		store:     store,
		jobStore:  jobStore,
		snapIdx:   snapIdx,
		Guard:     guard,
		Limiter:   limiter,
		Fetcher:   fetcher,
		Cache:     memCache,
		Extractor: extractor,
		Robots:    robotsCache,
		Jobs:      jobsMgr,
		Snapshots: snapStore,
		Webhooks:  webhooks,
		Changes:   changes,
		Research:  orchestrator,
	}, nil
}

func openStore(dir string, reset bool) (*badgerhold.Store, error) {
	if reset {
		if err := os.RemoveAll(dir); err != nil {
			return nil, fmt.Errorf("reset store dir %s: %w", dir, err)
		}
	}
	options := badgerhold.DefaultOptions
	options.Dir = dir
	options.ValueDir = dir
	return badgerhold.Open(options)
}

// Pipeline adapts the App's components to mcptools.Pipeline for tool
// registration.
func (a *App) Pipeline(searchProvider research.SearchProvider) *mcptools.Pipeline {
	return &mcptools.Pipeline{
		Fetcher:   a.Fetcher,
		Cache:     a.Cache,
		Extractor: a.Extractor,
		Guard:     a.Guard,
		Robots:    a.Robots,
		Jobs:      a.Jobs,
		Research:  a.Research,
		Changes:   a.Changes,
		Search:    searchProvider,
		Logger:    a.Logger,
	}
}

// Close releases every storage handle. Safe to call once at shutdown.
func (a *App) Close() error {
	var firstErr error
	for _, c := range []*badgerhold.Store{a.store, a.jobStore, a.snapIdx} {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
