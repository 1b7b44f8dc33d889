package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/quaero-labs/corequaero/internal/crawler"
	"github.com/quaero-labs/corequaero/internal/model"
	"github.com/quaero-labs/corequaero/internal/ratelimit"
)

var (
	crawlSeedURL     string
	crawlMaxDepth    int
	crawlMaxPages    int
	crawlConcurrency int
	crawlAllowHosts  []string
)

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Run a bounded BFS crawl from a seed URL and print the results as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		if crawlSeedURL == "" {
			return fmt.Errorf("--seed-url is required")
		}

		allow := make(map[string]bool, len(crawlAllowHosts))
		for _, h := range crawlAllowHosts {
			allow[h] = true
		}
		if len(allow) == 0 {
			if seed, err := model.Canonicalize(crawlSeedURL); err == nil {
				allow[ratelimit.HostOf(seed.String())] = true
			}
		}

		opts := crawler.Options{
			MaxDepth:      orDefault(crawlMaxDepth, cfg.Crawl.MaxDepth),
			MaxPages:      orDefault(crawlMaxPages, cfg.Crawl.MaxPages),
			RespectRobots: cfg.Crawl.RespectRobots,
			Concurrency:   orDefault(crawlConcurrency, 4),
			UserAgent:     cfg.Fetch.UserAgent,
			AllowHosts:    allow,
		}

		session := crawler.New(appInst.Fetcher, appInst.Guard, appInst.Robots, appInst.Limiter, appInst.Extractor, logger, opts)
		pages, errs, err := session.Run(cmd.Context(), crawlSeedURL)
		if err != nil {
			return fmt.Errorf("crawl failed: %w", err)
		}

		for _, e := range errs {
			logger.Warn().Err(e).Msg("crawl page error")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"seed_url":   crawlSeedURL,
			"pages":      pages,
			"page_count": len(pages),
			"error_count": len(errs),
		})
	},
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func init() {
	crawlCmd.Flags().StringVar(&crawlSeedURL, "seed-url", "", "starting URL for the crawl")
	crawlCmd.Flags().IntVar(&crawlMaxDepth, "max-depth", 0, "maximum link depth (0 uses config default)")
	crawlCmd.Flags().IntVar(&crawlMaxPages, "max-pages", 0, "maximum pages to fetch (0 uses config default)")
	crawlCmd.Flags().IntVar(&crawlConcurrency, "concurrency", 0, "concurrent fetch workers (0 uses default of 4)")
	crawlCmd.Flags().StringArrayVar(&crawlAllowHosts, "allow-host", nil, "restrict traversal to these hosts (repeatable, defaults to the seed host)")
}
