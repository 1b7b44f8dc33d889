package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quaero-labs/corequaero/internal/config"
	"github.com/quaero-labs/corequaero/internal/logging"
)

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{}
	cfg.Storage.BadgerPath = dir + "/cache"
	cfg.Storage.JobRoot = dir + "/jobs"
	cfg.Storage.SnapshotRoot = dir + "/snapshots"
	cfg.ApplyDefaults()
	cfg.SSRF.BlockPrivate = false
	return cfg
}

func TestNewWiresEveryComponent(t *testing.T) {
	cfg := newTestConfig(t)
	a, err := New(cfg, logging.NewStdioLogger("error"), nil, nil, nil)
	require.NoError(t, err)
	defer a.Close()

	assert.NotNil(t, a.Guard)
	assert.NotNil(t, a.Limiter)
	assert.NotNil(t, a.Fetcher)
	assert.NotNil(t, a.Cache)
	assert.NotNil(t, a.Extractor)
	assert.NotNil(t, a.Robots)
	assert.NotNil(t, a.Jobs)
	assert.NotNil(t, a.Snapshots)
	assert.NotNil(t, a.Webhooks)
	assert.NotNil(t, a.Changes)
	assert.NotNil(t, a.Research)
}

func TestPipelineCarriesSameComponents(t *testing.T) {
	cfg := newTestConfig(t)
	a, err := New(cfg, logging.NewStdioLogger("error"), nil, nil, nil)
	require.NoError(t, err)
	defer a.Close()

	p := a.Pipeline(nil)
	assert.Same(t, a.Fetcher, p.Fetcher)
	assert.Same(t, a.Guard, p.Guard)
	assert.Same(t, a.Robots, p.Robots)
	assert.Same(t, a.Changes, p.Changes)
}

func TestCloseIsIdempotentSafe(t *testing.T) {
	cfg := newTestConfig(t)
	a, err := New(cfg, logging.NewStdioLogger("error"), nil, nil, nil)
	require.NoError(t, err)
	require.NoError(t, a.Close())
}
