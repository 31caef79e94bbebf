package cli

import (
	"log/slog"
	"os"

	"github.com/me/testherd/internal/logging"
	"github.com/spf13/cobra"
)

var (
	flagServer    string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	logger *slog.Logger
	client *Client
)

// defaultServer returns the default server URL, checking TESTHERD_SERVER env var first.
func defaultServer() string {
	if s := os.Getenv("TESTHERD_SERVER"); s != "" {
		return s
	}
	return "http://localhost:8080"
}

// NewRootCmd creates the root cobra command for the testherd CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "testherd",
		Short: "testherd regression test dispatch service",
		Long:  "testherd schedules regression tests across revisions and reports score movement.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flagDebug {
				flagLogLevel = "debug"
			}
			logger = logging.NewLogger(logging.ParseLevel(flagLogLevel), flagLogFormat)
			client = NewClient(flagServer, logger)
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagServer, "server", defaultServer(), "testherd server URL (or TESTHERD_SERVER env)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newTopFailsCmd(),
		newStatsCmd(),
		newDistrCmd(),
		newRegressionsCmd(),
		newFixesCmd(),
		newImportTestsCmd(),
	)

	return root
}
