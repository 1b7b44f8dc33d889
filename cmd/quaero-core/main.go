// Command quaero-core is the headless batch/daemon binary: one-shot crawl
// and research runs plus a long-running "serve" mode that schedules change
// monitors and exposes Prometheus metrics, following the teacher's
// cmd/quaero/main.go + cobra-subcommand layout.
package main

import (
	"fmt"
	"os"

	"github.com/ternarybob/arbor"

	"github.com/quaero-labs/corequaero/internal/app"
	"github.com/quaero-labs/corequaero/internal/config"
	"github.com/quaero-labs/corequaero/internal/logging"
)

var (
	cfg     *config.Config
	logger  arbor.ILogger
	appInst *app.App
)

func main() {
	Execute()
}

// loadApp reads QUAERO_CONFIG (or --config-file), builds the daemon logger
// and the full component graph. Shared by every subcommand's PreRunE.
func loadApp(configFile string) error {
	path := configFile
	if path == "" {
		path = os.Getenv("QUAERO_CONFIG")
	}
	if path == "" {
		path = "quaero.toml"
	}

	var err error
	cfg, err = config.Load(path)
	if err != nil {
		return fmt.Errorf("load config %s: %w", path, err)
	}

	logPath := ""
	if cfg.Storage.JobRoot != "" {
		logPath = cfg.Storage.JobRoot + "/quaero-core.log"
	}
	logger = logging.NewDaemonLogger(cfg.Logging.Level, logPath)

	appInst, err = app.New(cfg, logger, nil, nil, nil)
	if err != nil {
		return fmt.Errorf("initialize pipeline: %w", err)
	}
	return nil
}
