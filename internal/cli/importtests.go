package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/me/testherd/pkg/model"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// catalogFile is the YAML test catalog format:
//
//	tests:
//	  - prefix: enwiki
//	    title: Main_Page
type catalogFile struct {
	Tests []model.TestID `yaml:"tests"`
}

func newImportTestsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import-tests FILE",
		Short: "Load a YAML test catalog into the service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read catalog: %w", err)
			}
			var catalog catalogFile
			if err := yaml.Unmarshal(raw, &catalog); err != nil {
				return fmt.Errorf("parse catalog: %w", err)
			}
			if len(catalog.Tests) == 0 {
				return fmt.Errorf("catalog %s contains no tests", args[0])
			}

			resp, err := client.Post("/api/v1/tests", map[string]any{"tests": catalog.Tests})
			if err != nil {
				return fmt.Errorf("import tests: %w", err)
			}

			var data struct {
				Imported int `json:"imported"`
			}
			if err := json.Unmarshal(resp.Data, &data); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}
			fmt.Printf("Imported %d tests.\n", data.Imported)
			return nil
		},
	}
}
