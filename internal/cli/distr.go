package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

type distrBucket struct {
	Value int `json:"value"`
	Count int `json:"count"`
}

func newDistrCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "distr {fails|skips}",
		Short:     "Show the latest revision's fail or skip histogram",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"fails", "skips"},
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := args[0]
			if kind != "fails" && kind != "skips" {
				return fmt.Errorf("unknown distribution %q, want fails or skips", kind)
			}

			resp, err := client.Get("/api/v1/distr/" + kind)
			if err != nil {
				return fmt.Errorf("distribution: %w", err)
			}

			var buckets []distrBucket
			if err := json.Unmarshal(resp.Data, &buckets); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}
			if len(buckets) == 0 {
				fmt.Println("No data recorded yet.")
				return nil
			}

			max := 0
			for _, b := range buckets {
				if b.Count > max {
					max = b.Count
				}
			}
			fmt.Printf("%8s  %10s\n", strings.ToUpper(kind), "TESTS")
			for _, b := range buckets {
				bar := ""
				if max > 0 {
					bar = strings.Repeat("#", b.Count*40/max)
				}
				fmt.Printf("%8d  %10s  %s\n", b.Value, humanize.Comma(int64(b.Count)), bar)
			}
			return nil
		},
	}
}
