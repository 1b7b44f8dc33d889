package main

import (
	"fmt"

	"github.com/ternarybob/banner"
)

// printBanner prints the serve-mode startup banner, adapted from the
// teacher's internal/common/banner.go for the extraction daemon.
func printBanner(metricsAddr string) {
	b := banner.New().
		SetStyle(banner.StyleDouble).
		SetBorderColor(banner.ColorGreen).
		SetTextColor(banner.ColorWhite).
		SetBold(true).
		SetWidth(80)

	fmt.Printf("\n")
	b.PrintTopLine()
	b.PrintCenteredText("QUAERO-CORE")
	b.PrintCenteredText("Web-Data Extraction Engine")
	b.PrintSeparatorLine()
	b.PrintKeyValue("Version", buildVersion, 15)
	b.PrintKeyValue("Metrics", fmt.Sprintf("http://localhost%s/metrics", metricsAddr), 15)
	b.PrintBottomLine()
	fmt.Printf("\n")
}
