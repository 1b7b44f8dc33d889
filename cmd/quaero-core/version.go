package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

const buildVersion = "1.0.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("quaero-core version %s\n", buildVersion)
	},
}
