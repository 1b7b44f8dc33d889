// Package config loads and defaults the pipeline's configuration surface
// (spec.md §6.4), following the teacher's explicit-struct-plus-TOML
// pattern (internal/common/config.go) rather than a dynamic options-object
// merge — every recognized option gets a named field.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config is the root configuration object for both the MCP server and the
// batch/daemon binary.
type Config struct {
	Fetch      FetchConfig      `toml:"fetch"`
	RateLimit  RateLimitConfig  `toml:"rate_limit"`
	Cache      CacheConfig      `toml:"cache"`
	Crawl      CrawlConfig      `toml:"crawl"`
	SSRF       SSRFConfig       `toml:"ssrf"`
	Webhook    WebhookConfig    `toml:"webhook"`
	Job        JobConfig        `toml:"job"`
	Research   ResearchConfig   `toml:"research"`
	Change     ChangeConfig     `toml:"change"`
	Storage    StorageConfig    `toml:"storage"`
	Logging    LoggingConfig    `toml:"logging"`
	Credits    map[string]int   `toml:"credits"`
	CreditBalance int          `toml:"credit_balance"`
}

type FetchConfig struct {
	TimeoutMS     int    `toml:"timeout_ms"`
	MaxBytes      int64  `toml:"max_bytes"`
	MaxRedirects  int    `toml:"max_redirects"`
	UserAgent     string `toml:"user_agent"`
	MaxIdlePerHost int   `toml:"max_idle_per_host"`
	MaxIdleGlobal  int   `toml:"max_idle_global"`
}

type RateLimitConfig struct {
	RPS            float64 `toml:"rps"`
	Burst          int     `toml:"burst"`
	GlobalInflight int     `toml:"global_inflight"`
}

type CacheConfig struct {
	L1Items int    `toml:"l1_items"`
	L1Bytes int64  `toml:"l1_bytes"`
	TTLMS   int64  `toml:"ttl_ms"`
	L2Path  string `toml:"l2_path"`
}

type CrawlConfig struct {
	MaxDepth      int  `toml:"max_depth"`
	MaxPages      int  `toml:"max_pages"`
	RespectRobots bool `toml:"respect_robots"`
}

type SSRFConfig struct {
	BlockPrivate      bool     `toml:"block_private"`
	ExtraBlockedHosts []string `toml:"extra_blocked_hosts"`
	ExtraBlockedPorts []int    `toml:"extra_blocked_ports"`
}

type WebhookConfig struct {
	MaxAttempts   int    `toml:"max_attempts"`
	QueueSize     int    `toml:"queue_size"`
	SigningSecret string `toml:"signing_secret"`
	TimeoutMS     int    `toml:"timeout_ms"`
}

type JobConfig struct {
	RetentionMS int64 `toml:"retention_ms"`
}

type ResearchConfig struct {
	DefaultTimeLimitMS int64 `toml:"default_time_limit_ms"`
	MaxURLs            int   `toml:"max_urls"`
	CredibilityThreshold float64 `toml:"credibility_threshold"`
}

// ChangeConfig carries the change-tracker significance weights and
// thresholds as configuration, per spec.md §9's open question about the
// 0.4/0.2/0.2/0.2 weighting — never hard-coded.
type ChangeConfig struct {
	WeightContent    float64 `toml:"weight_content"`
	WeightStructural float64 `toml:"weight_structural"`
	WeightMetadata   float64 `toml:"weight_metadata"`
	WeightVisual     float64 `toml:"weight_visual"`

	ThresholdMinor    float64 `toml:"threshold_minor"`
	ThresholdModerate float64 `toml:"threshold_moderate"`
	ThresholdMajor    float64 `toml:"threshold_major"`
	ThresholdCritical float64 `toml:"threshold_critical"`

	NotificationThreshold string        `toml:"notification_threshold"` // significance label
	MinNotifyInterval     time.Duration `toml:"-"`
	MinNotifyIntervalMS   int64         `toml:"min_notify_interval_ms"`
}

type StorageConfig struct {
	BadgerPath     string `toml:"badger_path"`
	SnapshotRoot   string `toml:"snapshot_root"`
	JobRoot        string `toml:"job_root"`
	WebhookRoot    string `toml:"webhook_root"`
	ResetOnStartup bool   `toml:"reset_on_startup"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Load reads a TOML config file and applies defaults. A missing file is
// not an error — defaults alone are usable for the MCP stdio binary.
func Load(path string) (*Config, error) {
	// Options whose default is true are preset before decoding, so an
	// explicit false in the file still overrides them.
	cfg := &Config{
		Crawl: CrawlConfig{RespectRobots: true},
		SSRF:  SSRFConfig{BlockPrivate: true},
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				cfg.ApplyDefaults()
				return cfg, nil
			}
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// ApplyDefaults fills every zero-valued field with the spec.md §6.4
// defaults. Safe to call repeatedly.
func (c *Config) ApplyDefaults() {
	if c.Fetch.TimeoutMS == 0 {
		c.Fetch.TimeoutMS = 30_000
	}
	if c.Fetch.MaxBytes == 0 {
		c.Fetch.MaxBytes = 100 << 20
	}
	if c.Fetch.MaxRedirects == 0 {
		c.Fetch.MaxRedirects = 5
	}
	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = "quaero-core/1.0 (+https://github.com/quaero-labs/corequaero)"
	}
	if c.Fetch.MaxIdlePerHost == 0 {
		c.Fetch.MaxIdlePerHost = 10
	}
	if c.Fetch.MaxIdleGlobal == 0 {
		c.Fetch.MaxIdleGlobal = 100
	}

	if c.RateLimit.RPS == 0 {
		c.RateLimit.RPS = 10
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = 20
	}
	if c.RateLimit.GlobalInflight == 0 {
		c.RateLimit.GlobalInflight = 100
	}

	if c.Cache.L1Items == 0 {
		c.Cache.L1Items = 1000
	}
	if c.Cache.L1Bytes == 0 {
		c.Cache.L1Bytes = 64 << 20
	}
	if c.Cache.TTLMS == 0 {
		c.Cache.TTLMS = 3_600_000
	}
	if c.Cache.L2Path == "" {
		c.Cache.L2Path = "./data/cache"
	}

	if c.Crawl.MaxDepth == 0 {
		c.Crawl.MaxDepth = 5
	}
	if c.Crawl.MaxPages == 0 {
		c.Crawl.MaxPages = 100
	}
	// Crawl.RespectRobots and SSRF.BlockPrivate default to true, but a zero
	// value false is ambiguous with "explicitly disabled", so ApplyDefaults
	// leaves both as they are; Load presets them to true before decoding.

	if c.Webhook.MaxAttempts == 0 {
		c.Webhook.MaxAttempts = 3
	}
	if c.Webhook.QueueSize == 0 {
		c.Webhook.QueueSize = 10_000
	}
	if c.Webhook.TimeoutMS == 0 {
		c.Webhook.TimeoutMS = 10_000
	}

	if c.Job.RetentionMS == 0 {
		c.Job.RetentionMS = 86_400_000
	}

	if c.Research.DefaultTimeLimitMS == 0 {
		c.Research.DefaultTimeLimitMS = 180_000
	}
	if c.Research.MaxURLs == 0 {
		c.Research.MaxURLs = 1000
	}
	if c.Research.CredibilityThreshold == 0 {
		c.Research.CredibilityThreshold = 0.3
	}

	if c.Change.WeightContent == 0 {
		c.Change.WeightContent = 0.4
	}
	if c.Change.WeightStructural == 0 {
		c.Change.WeightStructural = 0.2
	}
	if c.Change.WeightMetadata == 0 {
		c.Change.WeightMetadata = 0.2
	}
	if c.Change.WeightVisual == 0 {
		c.Change.WeightVisual = 0.2
	}
	if c.Change.ThresholdMinor == 0 {
		c.Change.ThresholdMinor = 0.1
	}
	if c.Change.ThresholdModerate == 0 {
		c.Change.ThresholdModerate = 0.4
	}
	if c.Change.ThresholdMajor == 0 {
		c.Change.ThresholdMajor = 0.7
	}
	if c.Change.ThresholdCritical == 0 {
		c.Change.ThresholdCritical = 0.9
	}
	if c.Change.NotificationThreshold == "" {
		c.Change.NotificationThreshold = "minor"
	}
	if c.Change.MinNotifyIntervalMS == 0 {
		c.Change.MinNotifyIntervalMS = 60_000
	}
	c.Change.MinNotifyInterval = time.Duration(c.Change.MinNotifyIntervalMS) * time.Millisecond

	if c.Storage.BadgerPath == "" {
		c.Storage.BadgerPath = "./data/badger"
	}
	if c.Storage.SnapshotRoot == "" {
		c.Storage.SnapshotRoot = "./data/snapshots"
	}
	if c.Storage.JobRoot == "" {
		c.Storage.JobRoot = "./data/jobs"
	}
	if c.Storage.WebhookRoot == "" {
		c.Storage.WebhookRoot = "./data/webhooks"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "warn"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}

	if c.Credits == nil {
		c.Credits = defaultCredits()
	}
	if c.CreditBalance == 0 {
		c.CreditBalance = 1_000_000
	}
}

func defaultCredits() map[string]int {
	return map[string]int{
		"fetch_url":         1,
		"extract_text":       1,
		"extract_links":      1,
		"extract_metadata":   1,
		"scrape_structured":  2,
		"search_web":         2,
		"crawl_deep":         10,
		"map_site":           5,
		"extract_content":    2,
		"batch_scrape":       5,
		"scrape_with_actions": 5,
		"deep_research":      20,
		"track_changes":      3,
	}
}

// FetchTimeout returns the configured per-fetch timeout as a Duration.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutMS) * time.Millisecond
}

// CacheTTL returns the configured default cache TTL as a Duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLMS) * time.Millisecond
}

// WebhookTimeout returns the configured per-webhook-attempt timeout.
func (c *Config) WebhookTimeout() time.Duration {
	return time.Duration(c.Webhook.TimeoutMS) * time.Millisecond
}

// JobRetention returns the configured job retention window.
func (c *Config) JobRetention() time.Duration {
	return time.Duration(c.Job.RetentionMS) * time.Millisecond
}

// ResearchTimeLimit returns the configured default research time budget.
func (c *Config) ResearchTimeLimit() time.Duration {
	return time.Duration(c.Research.DefaultTimeLimitMS) * time.Millisecond
}
