package cli

import (
	"encoding/json"
	"fmt"

	"github.com/me/testherd/pkg/model"
	"github.com/spf13/cobra"
)

func newRegressionsCmd() *cobra.Command {
	return newDiffCmd("regressions", "List tests that got worse between two revisions")
}

func newFixesCmd() *cobra.Command {
	return newDiffCmd("fixes", "List tests that improved between two revisions")
}

func newDiffCmd(kind, short string) *cobra.Command {
	var page, perPage int

	cmd := &cobra.Command{
		Use:   kind + " NEW_COMMIT OLD_COMMIT",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := fmt.Sprintf("/api/v1/%s/%s/%s?page=%d&per_page=%d",
				kind, args[0], args[1], page, perPage)
			resp, err := client.Get(path)
			if err != nil {
				return fmt.Errorf("%s: %w", kind, err)
			}

			var rows []model.DiffRow
			if err := json.Unmarshal(resp.Data, &rows); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}
			if len(rows) == 0 {
				fmt.Printf("No %s between %s and %s.\n", kind, args[0], args[1])
				return nil
			}

			fmt.Printf("%-50s  %-22s  %-22s\n", "TEST", "OLD (err/fail/skip)", "NEW (err/fail/skip)")
			for _, r := range rows {
				fmt.Printf("%-50s  %-22s  %-22s\n",
					r.Test.String(),
					fmt.Sprintf("%d/%d/%d", r.Old.Errors, r.Old.Fails, r.Old.Skips),
					fmt.Sprintf("%d/%d/%d", r.New.Errors, r.New.Fails, r.New.Skips))
			}
			if resp.Pagination != nil && resp.Pagination.HasMore {
				fmt.Printf("\n(page %d, %d of %d shown)\n", page, len(rows), resp.Pagination.Total)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().IntVar(&perPage, "per-page", 20, "Rows per page")
	return cmd
}
