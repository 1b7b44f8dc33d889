package mcptools

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quaero-labs/corequaero/internal/config"
	"github.com/quaero-labs/corequaero/internal/extract"
	"github.com/quaero-labs/corequaero/internal/fetch"
	"github.com/quaero-labs/corequaero/internal/logging"
	"github.com/quaero-labs/corequaero/internal/ratelimit"
	"github.com/quaero-labs/corequaero/internal/research"
	"github.com/quaero-labs/corequaero/internal/urlguard"
)

func newTestPipeline(t *testing.T) (*Pipeline, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><head><title>Demo</title></head><body><a href="/next">Next</a><p>hello world</p></body></html>`))
	}))
	t.Cleanup(srv.Close)

	cfg := &config.Config{}
	cfg.ApplyDefaults()
	cfg.SSRF.BlockPrivate = false

	logger := logging.NewStdioLogger("error")
	guard := urlguard.New(cfg.SSRF, nil)
	limiter := ratelimit.New(1000, 1000, 1000)
	fetcher := fetch.New(cfg, guard, limiter, logger)

	return &Pipeline{
		Fetcher:   fetcher,
		Extractor: extract.New(),
		Guard:     guard,
		Logger:    logger,
	}, srv
}

func TestFetchURLToolReturnsBody(t *testing.T) {
	p, srv := newTestPipeline(t)
	tool := fetchURLTool(p)
	env, err := tool.Handler(context.Background(), map[string]any{"url": srv.URL + "/"})
	require.NoError(t, err)
	assert.True(t, env.Success)
	result := env.Result.(map[string]any)
	assert.Equal(t, "miss", result["cache"])
	assert.Contains(t, result["body"], "hello world")
}

func TestExtractLinksToolReturnsLinks(t *testing.T) {
	p, srv := newTestPipeline(t)
	tool := extractLinksTool(p)
	env, err := tool.Handler(context.Background(), map[string]any{"url": srv.URL + "/"})
	require.NoError(t, err)
	assert.True(t, env.Success)
	result := env.Result.(map[string]any)
	links := result["links"].([]string)
	assert.NotEmpty(t, links)
}

func TestExtractMetadataToolReturnsTitle(t *testing.T) {
	p, srv := newTestPipeline(t)
	tool := extractMetadataTool(p)
	env, err := tool.Handler(context.Background(), map[string]any{"url": srv.URL + "/"})
	require.NoError(t, err)
	result := env.Result.(map[string]any)
	assert.Equal(t, "Demo", result["title"])
}

func TestScrapeStructuredToolExtractsSelectors(t *testing.T) {
	p, srv := newTestPipeline(t)
	tool := scrapeStructuredTool(p)
	env, err := tool.Handler(context.Background(), map[string]any{
		"url":       srv.URL + "/",
		"selectors": map[string]any{"heading": "title", "body": "p"},
	})
	require.NoError(t, err)
	result := env.Result.(map[string]any)
	assert.Equal(t, "Demo", result["heading"])
	assert.Equal(t, "hello world", result["body"])
}

type stubSearchProvider struct {
	results []research.SearchResult
}

func (s *stubSearchProvider) Search(ctx context.Context, query string, limit int) ([]research.SearchResult, error) {
	return s.results, nil
}

func TestSearchWebToolRanksResults(t *testing.T) {
	p, _ := newTestPipeline(t)
	p.Search = &stubSearchProvider{results: []research.SearchResult{
		{URL: "https://a.example", Title: "Quantum computing basics", Snippet: "an introduction"},
		{URL: "https://b.example", Title: "Gardening tips", Snippet: "unrelated content"},
	}}
	tool := searchWebTool(p)
	env, err := tool.Handler(context.Background(), map[string]any{"query": "quantum computing", "limit": 10})
	require.NoError(t, err)
	result := env.Result.(map[string]any)
	ranked := result["results"].([]map[string]any)
	require.NotEmpty(t, ranked)
	assert.Equal(t, "https://a.example", ranked[0]["url"])
}

func TestTrackChangesToolRejectsUnconfiguredTracker(t *testing.T) {
	p, _ := newTestPipeline(t)
	tool := trackChangesTool(p)
	env, err := tool.Handler(context.Background(), map[string]any{"url": "https://example.com", "operation": "create_baseline"})
	require.NoError(t, err)
	assert.False(t, env.Success)
}

func TestRegisterCatalogRegistersAllTools(t *testing.T) {
	p, _ := newTestPipeline(t)
	d := newTestDispatcher(t)
	RegisterCatalog(d, p)
	assert.GreaterOrEqual(t, len(d.Names()), 10)
}
