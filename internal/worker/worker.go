// Package worker implements the pull-based test runner: it polls the server
// for assignments against its checked-out commit, runs the test command, and
// submits the captured report.
package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/me/testherd/pkg/model"
)

// Runner executes one test and returns its raw report payload.
type Runner interface {
	Run(ctx context.Context, test model.TestID) (string, error)
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, test model.TestID) (string, error)

func (f RunnerFunc) Run(ctx context.Context, test model.TestID) (string, error) {
	return f(ctx, test)
}

// CommandRunner runs a configured command template per test. The
// placeholders {prefix} and {title} are substituted into each argument.
// Stdout is the report payload.
type CommandRunner struct {
	Template []string
}

func (r *CommandRunner) Run(ctx context.Context, test model.TestID) (string, error) {
	if len(r.Template) == 0 {
		return "", errors.New("empty command template")
	}
	args := make([]string, len(r.Template))
	for i, a := range r.Template {
		a = strings.ReplaceAll(a, "{prefix}", test.Prefix)
		a = strings.ReplaceAll(a, "{title}", test.Title)
		args[i] = a
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("run %s: %w", args[0], err)
	}
	return stdout.String(), nil
}

// Config holds worker configuration.
type Config struct {
	ServerURL string
	// Commit and CommitTime describe the revision this worker has checked
	// out. CommitCmd, when set, is run at startup and after a rebase
	// rejection to refresh them; it must print "<hash> <unix-seconds>".
	Commit     string
	CommitTime time.Time
	CommitCmd  []string
	Poll       time.Duration
}

// Worker is the poll/run/submit loop.
type Worker struct {
	client     *Client
	runner     Runner
	commit     string
	commitTime time.Time
	commitCmd  []string
	poll       time.Duration
	logger     *slog.Logger
}

// New creates a Worker from configuration.
func New(cfg Config, runner Runner, logger *slog.Logger) *Worker {
	if cfg.Poll == 0 {
		cfg.Poll = 5 * time.Second
	}
	return &Worker{
		client:     NewClient(cfg.ServerURL),
		runner:     runner,
		commit:     cfg.Commit,
		commitTime: cfg.CommitTime,
		commitCmd:  cfg.CommitCmd,
		poll:       cfg.Poll,
		logger:     logger.With("component", "worker"),
	}
}

// Run starts the main work loop. It polls until the context is cancelled.
// An empty queue is not an error; the next tick retries.
func (w *Worker) Run(ctx context.Context) error {
	if len(w.commitCmd) > 0 {
		if err := w.refreshCommit(ctx); err != nil {
			return fmt.Errorf("resolve commit: %w", err)
		}
	}
	if w.commit == "" {
		return errors.New("no commit configured")
	}

	w.logger.Info("worker started", "commit", w.commit, "poll", w.poll)

	ticker := time.NewTicker(w.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker stopping")
			return nil
		case <-ticker.C:
			if err := w.pollOnce(ctx); err != nil {
				w.logger.Error("poll error", "error", err)
			}
		}
	}
}

// pollOnce requests one assignment and, if there is one, runs and reports
// it. A run failure submits nothing: the lease expires on the server and
// the test is reissued there.
func (w *Worker) pollOnce(ctx context.Context) error {
	entry, err := w.client.NextTest(ctx, w.commit, w.commitTime)
	if errors.Is(err, model.ErrBadCommit) {
		w.logger.Warn("commit is behind the server, refreshing", "commit", w.commit)
		if len(w.commitCmd) > 0 {
			return w.refreshCommit(ctx)
		}
		return err
	}
	if err != nil {
		return err
	}
	if entry == nil {
		return nil
	}

	w.logger.Info("assignment received",
		"test", entry.Test, "score", entry.Score, "fail_count", entry.FailCount)

	payload, err := w.runner.Run(ctx, entry.Test)
	if err != nil {
		w.logger.Warn("test run failed, leaving lease to expire",
			"test", entry.Test, "error", err)
		return nil
	}

	if err := w.client.SubmitResult(ctx, entry.Test, w.commit, payload); err != nil {
		return fmt.Errorf("submit result for %s: %w", entry.Test, err)
	}
	return nil
}

// refreshCommit re-reads the checked-out revision via the configured
// command.
func (w *Worker) refreshCommit(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, w.commitCmd[0], w.commitCmd[1:]...)
	out, err := cmd.Output()
	if err != nil {
		return fmt.Errorf("run %s: %w", w.commitCmd[0], err)
	}
	hash, ts, err := parseCommitInfo(string(out))
	if err != nil {
		return err
	}
	w.commit = hash
	w.commitTime = ts
	w.logger.Info("commit refreshed", "commit", hash, "timestamp", ts)
	return nil
}

// parseCommitInfo parses "<hash> <unix-seconds>" as printed by
// `git log -1 --format='%H %ct'`.
func parseCommitInfo(out string) (string, time.Time, error) {
	fields := strings.Fields(out)
	if len(fields) != 2 {
		return "", time.Time{}, fmt.Errorf("unexpected commit info %q", strings.TrimSpace(out))
	}
	secs, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("parse commit timestamp: %w", err)
	}
	return fields[0], time.Unix(secs, 0).UTC(), nil
}
