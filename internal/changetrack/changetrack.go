// Package changetrack implements C12: scheduled page monitoring with
// weighted significance scoring between snapshots, dispatching webhook
// notifications when a change crosses the configured threshold. The
// scheduler follows the teacher's robfig/cron wiring
// (internal/services/scheduler/scheduler_service.go); significance
// weights come from config.ChangeConfig, per the spec's open question
// about the 0.4/0.2/0.2/0.2 weighting being configuration, not a constant.
package changetrack

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/quaero-labs/corequaero/internal/config"
	"github.com/quaero-labs/corequaero/internal/dedup"
	"github.com/quaero-labs/corequaero/internal/extract"
	"github.com/quaero-labs/corequaero/internal/fetch"
	"github.com/quaero-labs/corequaero/internal/webhook"
)

// Significance is the classified magnitude of a detected change.
type Significance string

const (
	SignificanceNone     Significance = "none"
	SignificanceMinor    Significance = "minor"
	SignificanceModerate Significance = "moderate"
	SignificanceMajor    Significance = "major"
	SignificanceCritical Significance = "critical"
)

// Snapshot is one observation of a monitored URL.
type Snapshot struct {
	URL       string
	FetchedAt time.Time
	Text      string
	Title     string
	SimHash   dedup.Signature
	Metadata  map[string]string
}

// ChangeReport is the result of diffing two snapshots.
type ChangeReport struct {
	URL          string
	Previous     Snapshot
	Current      Snapshot
	Score        float64
	Significance Significance
}

// Monitor watches one URL on a cron schedule, diffing each fetch against
// the prior snapshot and notifying subscribed webhooks when the change
// crosses the configured significance threshold.
type Monitor struct {
	ID        string
	URL       string
	Schedule  string
	Subscribe []webhook.Subscription

	mu            sync.Mutex
	lastSnapshot  *Snapshot
	lastNotified  time.Time
}

// Tracker runs a cron scheduler over a set of Monitors.
type Tracker struct {
	cfg       config.ChangeConfig
	fetcher   *fetch.Client
	extractor extract.Extractor
	dispatch  *webhook.Dispatcher
	logger    arbor.ILogger
	cron      *cron.Cron

	mu       sync.Mutex
	monitors map[string]*Monitor
	history  map[string][]ChangeReport
}

// New builds a Tracker. dispatch may be nil to run detection without
// webhook delivery (e.g. for a poll-only "has this page changed" tool).
func New(cfg config.ChangeConfig, fetcher *fetch.Client, extractor extract.Extractor, dispatch *webhook.Dispatcher, logger arbor.ILogger) *Tracker {
	return &Tracker{
		cfg:       cfg,
		fetcher:   fetcher,
		extractor: extractor,
		dispatch:  dispatch,
		logger:    logger,
		cron:      cron.New(),
		monitors:  make(map[string]*Monitor),
		history:   make(map[string][]ChangeReport),
	}
}

// AddMonitor registers a Monitor and schedules its cron entry.
func (t *Tracker) AddMonitor(ctx context.Context, m *Monitor) error {
	t.mu.Lock()
	t.monitors[m.ID] = m
	t.mu.Unlock()

	_, err := t.cron.AddFunc(m.Schedule, func() {
		if _, err := t.Check(ctx, m.ID); err != nil {
			t.logger.Warn().Err(err).Str("monitor_id", m.ID).Msg("change check failed")
		}
	})
	if err != nil {
		return fmt.Errorf("schedule monitor %s (%q): %w", m.ID, m.Schedule, err)
	}
	return nil
}

// RemoveMonitor stops tracking a monitor. The underlying cron entry stays
// scheduled: on each later tick its Check fails with "not registered" and
// the failure is logged as a warning.
func (t *Tracker) RemoveMonitor(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.monitors, id)
}

// Start begins the cron scheduler.
func (t *Tracker) Start() { t.cron.Start() }

// Stop gracefully drains running cron jobs.
func (t *Tracker) Stop() context.Context { return t.cron.Stop() }

// Check fetches the monitor's URL now, diffs it against the last
// snapshot, dispatches a webhook if warranted, and returns the report (nil
// if this was the monitor's first observation).
func (t *Tracker) Check(ctx context.Context, monitorID string) (*ChangeReport, error) {
	t.mu.Lock()
	m, ok := t.monitors[monitorID]
	t.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("monitor %s not registered", monitorID)
	}

	resp, err := t.fetcher.Fetch(ctx, fetch.Request{Method: "GET", URL: m.URL})
	if err != nil {
		return nil, err
	}
	page, err := t.extractor.Extract(resp.Body, m.URL)
	if err != nil {
		return nil, err
	}

	current := Snapshot{
		URL:       m.URL,
		FetchedAt: time.Now(),
		Text:      page.Text,
		Title:     page.Title,
		SimHash:   dedup.Compute(page.Text),
		Metadata:  page.Metadata,
	}

	m.mu.Lock()
	previous := m.lastSnapshot
	m.lastSnapshot = &current
	m.mu.Unlock()

	if previous == nil {
		return nil, nil // first observation establishes the baseline, nothing to report
	}

	report := Diff(t.cfg, *previous, current)

	t.mu.Lock()
	t.history[monitorID] = append(t.history[monitorID], report)
	t.mu.Unlock()

	if t.shouldNotify(m, report) {
		t.notify(m, report)
	}
	return &report, nil
}

// History returns every ChangeReport recorded for a monitor, oldest first.
func (t *Tracker) History(monitorID string) []ChangeReport {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]ChangeReport, len(t.history[monitorID]))
	copy(out, t.history[monitorID])
	return out
}

func (t *Tracker) shouldNotify(m *Monitor, report ChangeReport) bool {
	if report.Significance == SignificanceNone {
		return false
	}
	if !meetsThreshold(report.Significance, t.cfg.NotificationThreshold) {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if time.Since(m.lastNotified) < t.cfg.MinNotifyInterval {
		return false
	}
	m.lastNotified = time.Now()
	return true
}

func (t *Tracker) notify(m *Monitor, report ChangeReport) {
	if t.dispatch == nil {
		return
	}
	event := webhook.Event{
		ID:        uuid.New().String(),
		Type:      "content_changed",
		URL:       report.URL,
		Timestamp: time.Now(),
		Priority:  priorityFor(report.Significance),
		Data:      report,
	}
	for _, sub := range m.Subscribe {
		if err := t.dispatch.Enqueue(event, sub); err != nil {
			t.logger.Warn().Err(err).Str("monitor_id", m.ID).Msg("failed to enqueue change webhook")
		}
	}
}

// priorityFor maps a change's significance to the webhook queue's
// priority level: critical/major changes jump the queue ahead of minor
// ones under overflow pressure.
func priorityFor(sig Significance) webhook.Priority {
	switch sig {
	case SignificanceCritical, SignificanceMajor:
		return webhook.PriorityHigh
	case SignificanceModerate:
		return webhook.PriorityNormal
	default:
		return webhook.PriorityLow
	}
}

var significanceRank = map[Significance]int{
	SignificanceNone:     0,
	SignificanceMinor:    1,
	SignificanceModerate: 2,
	SignificanceMajor:    3,
	SignificanceCritical: 4,
}

func meetsThreshold(actual Significance, configured string) bool {
	threshold, ok := significanceRank[Significance(configured)]
	if !ok {
		threshold = significanceRank[SignificanceMinor]
	}
	return significanceRank[actual] >= threshold
}
