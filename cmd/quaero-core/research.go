package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/quaero-labs/corequaero/internal/research"
)

var (
	researchTopic     string
	researchApproach  string
	researchMaxURLs   int
	researchTimeLimit time.Duration
)

var researchCmd = &cobra.Command{
	Use:   "research",
	Short: "Run the deep-research orchestrator over a topic and print findings as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		if researchTopic == "" {
			return fmt.Errorf("--topic is required")
		}

		opts := research.Options{
			Topic:     researchTopic,
			Approach:  research.Approach(researchApproach),
			MaxURLs:   researchMaxURLs,
			TimeLimit: researchTimeLimit,
		}

		result, err := appInst.Research.Run(cmd.Context(), opts)
		if err != nil {
			return fmt.Errorf("research run failed: %w", err)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	researchCmd.Flags().StringVar(&researchTopic, "topic", "", "research topic")
	researchCmd.Flags().StringVar(&researchApproach, "approach", string(research.ApproachBroad), "broad|focused|academic|current_events|comparative")
	researchCmd.Flags().IntVar(&researchMaxURLs, "max-urls", 0, "maximum sources to gather (0 uses config default)")
	researchCmd.Flags().DurationVar(&researchTimeLimit, "time-limit", 0, "wall-clock budget for the run (0 uses config default)")
}
