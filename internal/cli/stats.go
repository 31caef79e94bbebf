package cli

import (
	"encoding/json"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/me/testherd/pkg/model"
	"github.com/spf13/cobra"
)

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show the summary for the latest tracked revision",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.Get("/api/v1/stats")
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}

			var stats model.Statistics
			if err := json.Unmarshal(resp.Data, &stats); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}

			fmt.Printf("Latest commit:   %s\n", stats.LatestCommit)
			if stats.BeforeLatestCommit != "" {
				fmt.Printf("Previous commit: %s\n", stats.BeforeLatestCommit)
			}
			fmt.Printf("Tests scored:    %s\n", humanize.Comma(int64(stats.NumTests)))
			fmt.Printf("Error-free:      %s\n", humanize.Comma(int64(stats.NoErrors)))
			fmt.Printf("Fail-free:       %s\n", humanize.Comma(int64(stats.NoFails)))
			fmt.Printf("Skip-free:       %s\n", humanize.Comma(int64(stats.NoSkips)))
			fmt.Printf("Regressions:     %s\n", humanize.Comma(int64(stats.NumRegressions)))
			fmt.Printf("Fixes:           %s\n", humanize.Comma(int64(stats.NumFixes)))
			fmt.Printf("Averages:        %.2f errors, %.2f fails, %.2f skips (score %.0f)\n",
				stats.Averages.Errors, stats.Averages.Fails, stats.Averages.Skips, stats.Averages.Score)
			return nil
		},
	}
}
