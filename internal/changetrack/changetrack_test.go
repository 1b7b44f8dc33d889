package changetrack

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/quaero-labs/corequaero/internal/config"
	"github.com/quaero-labs/corequaero/internal/dedup"
)

func testChangeConfig() config.ChangeConfig {
	cfg := config.ChangeConfig{}
	full := &config.Config{Change: cfg}
	full.ApplyDefaults()
	return full.Change
}

func TestDiffNoChangeIsSignificanceNone(t *testing.T) {
	cfg := testChangeConfig()
	snap := Snapshot{URL: "https://example.com", Text: "same content", Title: "Title", SimHash: dedup.Compute("same content")}
	report := Diff(cfg, snap, snap)
	assert.Equal(t, SignificanceNone, report.Significance)
	assert.Zero(t, report.Score)
}

func TestDiffMajorRewriteIsSignificant(t *testing.T) {
	cfg := testChangeConfig()
	previous := Snapshot{
		URL:     "https://example.com",
		Text:    "quarterly earnings rose 5 percent on strong demand",
		Title:   "Q1 Earnings",
		SimHash: dedup.Compute("quarterly earnings rose 5 percent on strong demand"),
	}
	current := Snapshot{
		URL:     "https://example.com",
		Text:    "company announces emergency recall of all products nationwide due to safety concerns",
		Title:   "URGENT: Product Recall",
		SimHash: dedup.Compute("company announces emergency recall of all products nationwide due to safety concerns"),
	}
	report := Diff(cfg, previous, current)
	assert.NotEqual(t, SignificanceNone, report.Significance)
	assert.Greater(t, report.Score, 0.0)
}

func TestMetadataChangeScoreDetectsTitleChange(t *testing.T) {
	previous := Snapshot{Title: "Old Title"}
	current := Snapshot{Title: "New Title"}
	assert.Greater(t, metadataChangeScore(previous, current), 0.0)
}

func TestShouldNotifyRespectsMinIntervalAndThreshold(t *testing.T) {
	cfg := testChangeConfig()
	cfg.NotificationThreshold = "moderate"
	cfg.MinNotifyInterval = time.Hour
	tr := &Tracker{cfg: cfg}
	m := &Monitor{ID: "m1", URL: "https://example.com"}

	assert.False(t, tr.shouldNotify(m, ChangeReport{Significance: SignificanceMinor}))
	assert.True(t, tr.shouldNotify(m, ChangeReport{Significance: SignificanceMajor}))
	// A second qualifying (here critical) change within the interval is suppressed.
	assert.False(t, tr.shouldNotify(m, ChangeReport{Significance: SignificanceCritical}))
}
