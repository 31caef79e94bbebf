package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/me/testherd/internal/logging"
	"github.com/me/testherd/internal/worker"
)

func main() {
	var cfg worker.Config

	flag.StringVar(&cfg.ServerURL, "server", "http://localhost:8080", "testherd server URL")
	flag.StringVar(&cfg.Commit, "commit", "", "Checked-out commit hash")
	commitUnix := flag.Int64("commit-time", 0, "Commit timestamp (unix seconds)")
	commitCmd := flag.String("commit-cmd", "", "Command printing '<hash> <unix-seconds>' (e.g. \"git log -1 --format=%H %ct\")")
	runCmd := flag.String("run-cmd", "", "Test command template; {prefix} and {title} are substituted, stdout is the report")
	flag.DurationVar(&cfg.Poll, "poll", 5*time.Second, "Poll interval")

	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", "text", "Log format (text, json)")
	debug := flag.Bool("debug", false, "Shorthand for --log-level=debug")
	flag.Parse()

	if *debug {
		*logLevel = "debug"
	}
	logger := logging.NewLogger(logging.ParseLevel(*logLevel), *logFormat)

	if *runCmd == "" {
		fmt.Fprintln(os.Stderr, "--run-cmd is required")
		os.Exit(1)
	}
	if *commitUnix != 0 {
		cfg.CommitTime = time.Unix(*commitUnix, 0).UTC()
	}
	if *commitCmd != "" {
		cfg.CommitCmd = strings.Fields(*commitCmd)
	}

	runner := &worker.CommandRunner{Template: strings.Fields(*runCmd)}
	w := worker.New(cfg, runner, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting worker", "server", cfg.ServerURL, "poll", cfg.Poll)

	if err := w.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "worker error: %v\n", err)
		os.Exit(1)
	}

	logger.Info("worker stopped")
}
