// Command quaero-core-mcp exposes the extraction pipeline's tool catalog
// as an MCP stdio server, grounded on the teacher's cmd/quaero-mcp/main.go:
// load config from QUAERO_CONFIG, build a minimal console-only logger, wire
// the component graph once, register every tool, and block on stdio.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/quaero-labs/corequaero/internal/app"
	"github.com/quaero-labs/corequaero/internal/config"
	"github.com/quaero-labs/corequaero/internal/logging"
	"github.com/quaero-labs/corequaero/internal/mcptools"
	"github.com/quaero-labs/corequaero/internal/workerpool"
	"github.com/quaero-labs/corequaero/pkg/mcpserver"
)

const version = "1.0.0"

func main() {
	configPath := os.Getenv("QUAERO_CONFIG")
	if configPath == "" {
		configPath = "quaero.toml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Minimal logging to avoid cluttering MCP stdio, same rationale as the
	// teacher's quaero-mcp binary.
	logger := logging.NewStdioLogger("warn")

	a, err := app.New(cfg, logger, nil, nil, nil)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize pipeline")
	}
	defer a.Close()

	pool := workerpool.New(context.Background(), 16, logger)
	dispatcher := mcptools.NewDispatcher(pool, logger)
	mcptools.RegisterCatalog(dispatcher, a.Pipeline(nil))

	ledger := mcptools.NewLedger(cfg.CreditBalance, cfg.Credits)

	mcpServer := server.NewMCPServer("quaero-core", version, server.WithToolCapabilities(true))
	mcpserver.Register(mcpServer, dispatcher, ledger, logger)

	if err := server.ServeStdio(mcpServer); err != nil {
		logger.Fatal().Err(err).Msg("MCP server failed")
	}
}
