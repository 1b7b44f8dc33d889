package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/quaero-labs/corequaero/internal/metrics"
)

var serveMetricsAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the change-monitor scheduler and metrics endpoint until interrupted",
	Long: `serve starts the webhook delivery loop and the robfig/cron-backed
change-tracker scheduler, and exposes Prometheus metrics plus a health
check at --metrics-addr. Press Ctrl+C to stop.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		printBanner(serveMetricsAddr)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		go appInst.Webhooks.Run(ctx)
		appInst.Changes.Start()

		metricsSrv := metrics.Start(serveMetricsAddr)
		logger.Info().Str("addr", serveMetricsAddr).Msg("metrics endpoint listening")

		logger.Info().Msg("quaero-core serve ready - press Ctrl+C to stop")

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		logger.Info().Msg("interrupt received, shutting down")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		appInst.Changes.Stop()
		cancel()
		if err := metricsSrv.Stop(shutdownCtx); err != nil {
			return fmt.Errorf("metrics server shutdown: %w", err)
		}
		logger.Info().Msg("quaero-core serve stopped")
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveMetricsAddr, "metrics-addr", ":9090", "listen address for /metrics and /healthz")
}
