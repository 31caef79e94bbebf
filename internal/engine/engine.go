// Package engine is the dispatch facade: it owns the in-memory scheduling
// state, serializes all mutations behind one mutex, and talks to the
// persistent store. Store writes triggered by request handling are
// fire-and-forget; the in-memory view may run ahead of the store for a
// short window, and a crash in that window loses the delta until the next
// bootstrap re-scan.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/me/testherd/internal/ledger"
	"github.com/me/testherd/internal/regress"
	"github.com/me/testherd/internal/scheduler"
	"github.com/me/testherd/internal/stats"
	"github.com/me/testherd/internal/store"
	"github.com/me/testherd/pkg/model"
)

// Lifecycle states. Requests are rejected until bootstrap completes; a
// failed bootstrap parks the service in Degraded rather than serving from
// half-built state.
const (
	StateBooting int32 = iota
	StateReady
	StateDegraded
)

// StateName returns the lifecycle state for health reporting.
func StateName(s int32) string {
	switch s {
	case StateBooting:
		return "booting"
	case StateReady:
		return "ready"
	case StateDegraded:
		return "degraded"
	default:
		return "unknown"
	}
}

// Engine coordinates the ledger, scheduler, aggregates and store.
type Engine struct {
	mu          sync.Mutex
	store       store.Store
	ledger      *ledger.Ledger
	sched       *scheduler.Scheduler
	agg         *stats.Aggregate
	offenders   *stats.Offenders
	analyzer    *regress.Analyzer
	catalog     map[string]bool // known test keys, loaded at bootstrap
	catalogList []model.TestID  // catalog in store order
	logger      *slog.Logger

	state atomic.Int32
	clock func() time.Time
	wg    sync.WaitGroup
}

// New creates an engine in the Booting state. Call Bootstrap before serving.
func New(st store.Store, cfg scheduler.Config, logger *slog.Logger) *Engine {
	return &Engine{
		store:     st,
		ledger:    ledger.New(),
		sched:     scheduler.New(cfg, logger),
		agg:       stats.New(logger),
		offenders: stats.NewOffenders(),
		analyzer:  regress.NewAnalyzer(st, logger),
		catalog:   make(map[string]bool),
		logger:    logger.With("component", "engine"),
		clock:     time.Now,
	}
}

// State returns the current lifecycle state.
func (e *Engine) State() int32 {
	return e.state.Load()
}

// Ready reports whether bootstrap completed successfully.
func (e *Engine) Ready() bool {
	return e.state.Load() == StateReady
}

// Flush waits for all in-flight background store writes. Used at shutdown
// and by tests that need to observe persisted state.
func (e *Engine) Flush() {
	e.wg.Wait()
}

// async runs a best-effort store write in the background. Failures are
// logged, never propagated: the in-memory state has already advanced.
func (e *Engine) async(op string, fn func(ctx context.Context) error) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if err := fn(context.Background()); err != nil {
			e.logger.Error("background store write failed", "op", op, "error", err)
		}
	}()
}

// RequestNextTest hands out the next unit of work for a worker that has
// commit (hash, ts) checked out. A commit newer than anything tracked is
// registered first; a commit older than the pre-update latest is rejected
// with ErrBadCommit. Expired leases are reclaimed before the queue is
// consulted.
func (e *Engine) RequestNextTest(ctx context.Context, hash string, ts time.Time) (model.PendingEntry, error) {
	if !e.Ready() {
		return model.PendingEntry{}, model.ErrNotReady
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock()
	latest, hasLatest := e.ledger.Latest()

	if !hasLatest || latest.Timestamp.Before(ts) {
		e.registerCommit(hash, ts, latest, hasLatest)
	} else if latest.Timestamp.After(ts) {
		// Compared against the pre-update latest, so a client reporting
		// its own new commit is never rejected against itself.
		return model.PendingEntry{}, model.ErrBadCommit
	}

	reissued, abandoned := e.sched.TryReclaimExpired(now)
	for _, a := range abandoned {
		entry := a
		e.async("PutAbandoned", func(ctx context.Context) error {
			return e.store.PutAbandoned(ctx, entry.Test, entry.Commit, entry.FailCount, now)
		})
	}
	if reissued != nil {
		return *reissued, nil
	}

	if entry, ok := e.sched.Next(now); ok {
		return entry, nil
	}
	return model.PendingEntry{}, model.ErrNoPendingWork
}

// registerCommit appends a new latest commit, seeds its histograms from the
// previous latest, and persists the commit row and an initial summary row in
// the background. Caller holds the mutex.
func (e *Engine) registerCommit(hash string, ts time.Time, prev model.Commit, hasPrev bool) {
	if !e.ledger.Append(hash, ts, false) {
		return
	}
	if hasPrev {
		e.agg.SeedFrom(hash, prev.Hash)
	} else {
		e.agg.EnsureCommit(hash)
	}
	e.logger.Info("new revision tracked", "commit", hash, "timestamp", ts)

	commit := model.Commit{Hash: hash, Timestamp: ts}
	e.async("AppendCommit", func(ctx context.Context) error {
		return e.store.AppendCommit(ctx, commit, commit.RevisionID())
	})

	skips, fails, _ := e.agg.Distribution(hash)
	e.async("PutRevisionSummary", func(ctx context.Context) error {
		summary := model.RevisionSummary{SkipStats: skips, FailStats: fails}
		if hasPrev {
			rows, err := e.store.ScoresByCommit(ctx, prev.Hash)
			if err != nil {
				return err
			}
			avg := stats.Summarize(rows).Averages()
			summary.ErrorsAvg = avg.Errors
			summary.FailsAvg = avg.Fails
			summary.SkipsAvg = avg.Skips
			summary.ScoreAvg = avg.Score
			summary.NumTests = avg.NumTests
		}
		return e.store.PutRevisionSummary(ctx, hash, summary)
	})
}

// SubmitResult ingests a worker's raw result payload for (test, commit).
// The lease is cleared regardless of outcome; score bookkeeping happens only
// when the score actually changed. Persistence is best effort.
func (e *Engine) SubmitResult(ctx context.Context, test model.TestID, commit string, payload string) error {
	if !e.Ready() {
		return model.ErrNotReady
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	e.sched.RemoveLease(test)

	revisionID := e.revisionIDFor(commit)
	e.async("PutResult", func(ctx context.Context) error {
		return e.store.PutResult(ctx, test, revisionID, payload)
	})

	// Occurrence counts by pattern, not full XML parsing. The open tags
	// match both self-closing and content forms.
	skips := strings.Count(payload, "<skipped")
	fails := strings.Count(payload, "<failure")
	errs := strings.Count(payload, "<error")
	newScore := model.EncodeScore(errs, fails, skips)

	if cached, ok := e.agg.CachedScore(test); !ok || cached != newScore {
		e.agg.RecordScore(commit, newScore)
		e.agg.SetCachedScore(test, newScore)

		skipStats, failStats, _ := e.agg.Distribution(commit)
		e.async("UpdateRevisionSummaryHistograms", func(ctx context.Context) error {
			return e.store.UpdateRevisionSummaryHistograms(ctx, commit, skipStats, failStats)
		})
		row := model.ScoreRow{Commit: commit, Test: test, Score: newScore, Delta: 0}
		e.async("PutScoreRow", func(ctx context.Context) error {
			return e.store.PutScoreRow(ctx, row)
		})
	}

	e.offenders.Promote(test, newScore, commit)
	return nil
}

// revisionIDFor resolves the revision identifier for a submitted commit
// hash. Unknown hashes fall back to the latest tracked commit, then to the
// current time. Caller holds the mutex.
func (e *Engine) revisionIDFor(commit string) string {
	if c, ok := e.ledger.Find(commit); ok {
		return c.RevisionID()
	}
	if latest, ok := e.ledger.Latest(); ok {
		return latest.RevisionID()
	}
	return model.RevisionID(e.clock())
}

// TopFails returns a page of the worst-offender table plus the table size.
func (e *Engine) TopFails(offset, limit int) ([]model.TopFail, int, error) {
	if !e.Ready() {
		return nil, 0, model.ErrNotReady
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.offenders.Len() == 0 {
		return nil, 0, model.ErrEmptyResultSet
	}
	return e.offenders.Page(offset, limit), e.offenders.Len(), nil
}

// FailsDistribution returns the fail histogram of the latest tracked commit.
func (e *Engine) FailsDistribution() (model.Histogram, error) {
	_, fails, err := e.latestDistribution()
	return fails, err
}

// SkipsDistribution returns the skip histogram of the latest tracked commit.
func (e *Engine) SkipsDistribution() (model.Histogram, error) {
	skips, _, err := e.latestDistribution()
	return skips, err
}

func (e *Engine) latestDistribution() (skips, fails model.Histogram, err error) {
	if !e.Ready() {
		return nil, nil, model.ErrNotReady
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	latest, ok := e.ledger.Latest()
	if !ok {
		return nil, nil, model.ErrEmptyResultSet
	}
	skips, fails, ok = e.agg.Distribution(latest.Hash)
	if !ok {
		return nil, nil, model.ErrEmptyResultSet
	}
	return skips, fails, nil
}

// Statistics builds the dashboard summary for the latest tracked revision.
// A latest commit without any score rows yields a zero-filled summary, not
// an error.
func (e *Engine) Statistics(ctx context.Context) (model.Statistics, error) {
	if !e.Ready() {
		return model.Statistics{}, model.ErrNotReady
	}
	e.mu.Lock()
	latest, hasLatest := e.ledger.Latest()
	second, hasSecond := e.ledger.SecondLatest()
	e.mu.Unlock()

	if !hasLatest {
		return model.Statistics{}, model.ErrEmptyResultSet
	}

	rows, err := e.store.ScoresByCommit(ctx, latest.Hash)
	if err != nil {
		return model.Statistics{}, &model.StoreUnavailableError{Op: "ScoresByCommit", Err: err}
	}
	totals := stats.Summarize(rows)

	out := model.Statistics{
		NumTests:     totals.NumTests,
		NoErrors:     totals.NoErrors,
		NoFails:      totals.NoFails,
		NoSkips:      totals.NoSkips,
		LatestCommit: latest.Hash,
		Averages:     totals.Averages(),
	}

	prevHash := ""
	if hasSecond {
		prevHash = second.Hash
		out.BeforeLatestCommit = second.Hash
	}
	counts, err := e.analyzer.Counts(ctx, latest.Hash, prevHash)
	if err != nil && !errors.Is(err, model.ErrEmptyResultSet) {
		return model.Statistics{}, err
	}
	out.NumRegressions = counts.Regressions
	out.NumFixes = counts.Fixes
	return out, nil
}

// RegressionsBetween returns one page of tests that got worse going from
// commitOld to commitNew.
func (e *Engine) RegressionsBetween(ctx context.Context, commitNew, commitOld string, page, perPage int) (model.DiffReport, error) {
	if !e.Ready() {
		return model.DiffReport{}, model.ErrNotReady
	}
	regressions, _, err := e.analyzer.Diff(ctx, commitNew, commitOld)
	if err != nil {
		return model.DiffReport{}, err
	}
	return regress.Page(regressions, page, perPage), nil
}

// FixesBetween returns one page of tests that improved going from commitOld
// to commitNew.
func (e *Engine) FixesBetween(ctx context.Context, commitNew, commitOld string, page, perPage int) (model.DiffReport, error) {
	if !e.Ready() {
		return model.DiffReport{}, model.ErrNotReady
	}
	_, fixes, err := e.analyzer.Diff(ctx, commitNew, commitOld)
	if err != nil {
		return model.DiffReport{}, err
	}
	return regress.Page(fixes, page, perPage), nil
}

// ImportTests adds test identifiers to the persistent catalog and enqueues
// the ones not already tracked for a first run. Used by the catalog import
// endpoint; this is a synchronous write path.
func (e *Engine) ImportTests(ctx context.Context, tests []model.TestID) error {
	if !e.Ready() {
		return model.ErrNotReady
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, t := range tests {
		if err := e.store.AddTest(ctx, t); err != nil {
			return &model.StoreUnavailableError{Op: "AddTest", Err: err}
		}
		if !e.catalog[t.Key()] {
			e.catalog[t.Key()] = true
			e.catalogList = append(e.catalogList, t)
			e.sched.Enqueue(model.PendingEntry{Test: t, Score: 0, Commit: ""})
		}
	}
	e.logger.Info("test catalog import", "count", len(tests))
	return nil
}

// QueueDepth returns pending and in-flight counts for health reporting.
func (e *Engine) QueueDepth() (pending, inFlight int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sched.PendingLen(), e.sched.InFlight()
}
