package cli

import (
	"encoding/json"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/me/testherd/pkg/model"
	"github.com/spf13/cobra"
)

func newTopFailsCmd() *cobra.Command {
	var offset, limit int

	cmd := &cobra.Command{
		Use:   "topfails",
		Short: "List the worst-scoring tests across all tracked revisions",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.Get(fmt.Sprintf("/api/v1/topfails?offset=%d&limit=%d", offset, limit))
			if err != nil {
				return fmt.Errorf("top fails: %w", err)
			}

			var rows []model.TopFail
			if err := json.Unmarshal(resp.Data, &rows); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}
			if len(rows) == 0 {
				fmt.Println("No failing tests recorded.")
				return nil
			}

			fmt.Printf("%-50s  %-12s  %8s  %8s  %8s\n", "TEST", "COMMIT", "ERRORS", "FAILS", "SKIPS")
			for _, r := range rows {
				fmt.Printf("%-50s  %-12s  %8s  %8s  %8s\n",
					r.Test.String(), shortHash(r.Commit),
					humanize.Comma(int64(r.Errors)),
					humanize.Comma(int64(r.Fails)),
					humanize.Comma(int64(r.Skips)))
			}
			if resp.Pagination != nil && resp.Pagination.HasMore {
				fmt.Printf("\n(%d of %d shown)\n", len(rows), resp.Pagination.Total)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&offset, "offset", 0, "Table offset")
	cmd.Flags().IntVar(&limit, "limit", 20, "Rows per page")
	return cmd
}

func shortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
