package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "quaero-core",
	Short: "Web-data extraction engine: crawl, research and monitor commands",
	Long: `quaero-core is the headless CLI for the web-data extraction pipeline.
It runs the same crawl/research/change-tracking components the MCP tool
server exposes, for scripted and scheduled use outside an MCP client.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}
		return loadApp(configFile)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if appInst != nil {
			appInst.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config-file", "", "path to quaero.toml (defaults to $QUAERO_CONFIG or ./quaero.toml)")
	rootCmd.AddCommand(crawlCmd, researchCmd, serveCmd, versionCmd)
}

// Execute runs the root command. Called once from main.main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
