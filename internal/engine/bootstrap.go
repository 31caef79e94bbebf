package engine

import (
	"context"
	"fmt"

	"github.com/me/testherd/internal/ledger"
	"github.com/me/testherd/pkg/model"
)

// Bootstrap rebuilds all in-memory state from the store in five ordered
// stages: commits, latest-commit histograms, test catalog, pending queue,
// worst-offender table. Any store failure aborts the pipeline and parks the
// engine in Degraded; requests are rejected until a bootstrap succeeds.
//
// A store call that legitimately returns zero rows is not a failure: later
// stages proceed with empty inputs, and a brand-new deployment boots into
// Ready with nothing scheduled.
func (e *Engine) Bootstrap(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.state.Store(StateBooting)
	if err := e.bootstrap(ctx); err != nil {
		e.state.Store(StateDegraded)
		return err
	}
	e.state.Store(StateReady)
	e.logger.Info("bootstrap complete",
		"commits", e.ledger.Len(), "catalog", len(e.catalog),
		"pending", e.sched.PendingLen(), "offenders", e.offenders.Len())
	return nil
}

func (e *Engine) bootstrap(ctx context.Context) error {
	if err := e.loadCommits(ctx); err != nil {
		return fmt.Errorf("load commits: %w", err)
	}
	if err := e.seedLatestHistograms(ctx); err != nil {
		return fmt.Errorf("seed histograms: %w", err)
	}
	if err := e.loadCatalog(ctx); err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	if err := e.buildPendingQueue(ctx); err != nil {
		return fmt.Errorf("build pending queue: %w", err)
	}
	if err := e.buildOffenders(ctx); err != nil {
		return fmt.Errorf("build offender table: %w", err)
	}
	return nil
}

// Stage 1: read all commit rows and sort them newest-first into the ledger.
func (e *Engine) loadCommits(ctx context.Context) error {
	commits, err := e.store.ListCommits(ctx)
	if err != nil {
		return err
	}
	e.ledger = ledger.FromCommits(commits)
	return nil
}

// Stage 2: populate the latest commit's histograms. With a single tracked
// commit its own scores are bucketed directly. With history, the persisted
// summary row is preferred; when absent, the second-latest commit's scores
// serve as a carried-forward estimate that fresh results will correct.
func (e *Engine) seedLatestHistograms(ctx context.Context) error {
	latest, ok := e.ledger.Latest()
	if !ok {
		return nil
	}

	if _, hasSecond := e.ledger.SecondLatest(); !hasSecond {
		return e.bucketScores(ctx, latest.Hash, latest.Hash)
	}

	summary, err := e.store.GetRevisionSummary(ctx, latest.Hash)
	if err != nil {
		return err
	}
	if summary != nil {
		e.agg.SetDistribution(latest.Hash, summary.SkipStats, summary.FailStats)
		return nil
	}

	second, _ := e.ledger.SecondLatest()
	return e.bucketScores(ctx, second.Hash, latest.Hash)
}

// bucketScores builds the histograms for target from the score rows
// recorded against source.
func (e *Engine) bucketScores(ctx context.Context, source, target string) error {
	rows, err := e.store.ScoresByCommit(ctx, source)
	if err != nil {
		return err
	}
	skips, fails := model.Histogram{}, model.Histogram{}
	for _, row := range rows {
		_, f, s := row.Score.Counts()
		fails.Bump(f)
		skips.Bump(s)
	}
	e.agg.SetDistribution(target, skips, fails)
	return nil
}

// Stage 3: read the full set of known test identifiers.
func (e *Engine) loadCatalog(ctx context.Context) error {
	tests, err := e.store.ListTests(ctx)
	if err != nil {
		return err
	}
	e.catalog = make(map[string]bool, len(tests))
	e.catalogList = tests
	for _, t := range tests {
		e.catalog[t.Key()] = true
	}
	return nil
}

// Stage 4: rebuild the pending queue. Tests that already submitted a result
// for the latest revision are fresh and stay off the queue. For the rest,
// the walk back through history finds the most recent score each test
// reached, stopping at a keyframe commit, when every catalog test is
// accounted for, or when history runs out. Tests with no recorded score
// anywhere enqueue at score 0 under an empty commit marker, so they are
// served only after the backlog of known-bad tests.
//
// The walk also primes the last-known-score cache, which submit-result uses
// to detect score changes.
func (e *Engine) buildPendingQueue(ctx context.Context) error {
	if len(e.catalog) == 0 {
		return nil
	}

	fresh := make(map[string]bool)
	if latest, ok := e.ledger.Latest(); ok {
		results, err := e.store.ResultsByRevision(ctx, latest.RevisionID())
		if err != nil {
			return err
		}
		for _, t := range results {
			if e.catalog[t.Key()] {
				fresh[t.Key()] = true
			}
		}
	}

	found := make(map[string]model.PendingEntry)
	for _, commit := range e.ledger.All() {
		rows, err := e.store.ScoresByCommit(ctx, commit.Hash)
		if err != nil {
			return err
		}
		for _, row := range rows {
			key := row.Test.Key()
			if !e.catalog[key] {
				continue
			}
			if _, cached := e.agg.CachedScore(row.Test); !cached {
				e.agg.SetCachedScore(row.Test, row.Score)
			}
			if fresh[key] {
				continue
			}
			if _, ok := found[key]; !ok {
				found[key] = model.PendingEntry{Test: row.Test, Score: row.Score, Commit: commit.Hash}
			}
		}
		if commit.IsKeyframe || len(fresh)+len(found) >= len(e.catalog) {
			break
		}
	}

	for _, t := range e.catalogList {
		key := t.Key()
		if fresh[key] {
			continue
		}
		if entry, ok := found[key]; ok {
			e.sched.Enqueue(entry)
		} else {
			e.sched.Enqueue(model.PendingEntry{Test: t, Score: 0, Commit: ""})
		}
	}
	return nil
}

// Stage 5: rebuild the worst-offender table from full history, oldest
// tracked commit to newest, keeping the maximum score per test. The scan
// deliberately crosses keyframes.
func (e *Engine) buildOffenders(ctx context.Context) error {
	commits := e.ledger.All()
	for i := len(commits) - 1; i >= 0; i-- {
		rows, err := e.store.ScoresByCommit(ctx, commits[i].Hash)
		if err != nil {
			return err
		}
		for _, row := range rows {
			e.offenders.Observe(row.Test, row.Score, commits[i].Hash)
		}
	}
	e.offenders.Sort()
	return nil
}
