// Package stats owns the per-revision outcome histograms, the last-known
// score cache, and the worst-offender table.
package stats

import (
	"log/slog"

	"github.com/me/testherd/pkg/model"
)

// distribution is the pair of histograms tracked per commit.
type distribution struct {
	skips model.Histogram
	fails model.Histogram
}

// Aggregate accumulates outcome distributions per commit and caches the last
// known score per test. Not safe for concurrent use; the engine serializes
// access.
type Aggregate struct {
	byCommit map[string]*distribution
	scores   map[string]model.Score // test key -> last known score
	logger   *slog.Logger
}

// New creates an empty Aggregate.
func New(logger *slog.Logger) *Aggregate {
	return &Aggregate{
		byCommit: make(map[string]*distribution),
		scores:   make(map[string]model.Score),
		logger:   logger.With("component", "stats"),
	}
}

// EnsureCommit creates empty histograms for the commit if none exist yet.
func (a *Aggregate) EnsureCommit(commit string) {
	if _, ok := a.byCommit[commit]; !ok {
		a.byCommit[commit] = &distribution{skips: model.Histogram{}, fails: model.Histogram{}}
	}
}

// SetDistribution installs the given histograms for the commit, replacing
// whatever was there.
func (a *Aggregate) SetDistribution(commit string, skips, fails model.Histogram) {
	a.byCommit[commit] = &distribution{skips: skips.Clone(), fails: fails.Clone()}
}

// Distribution returns clones of the commit's histograms.
func (a *Aggregate) Distribution(commit string) (skips, fails model.Histogram, ok bool) {
	d, ok := a.byCommit[commit]
	if !ok {
		return nil, nil, false
	}
	return d.skips.Clone(), d.fails.Clone(), true
}

// SeedFrom copies the predecessor commit's histograms onto commit as an
// initial estimate, to be corrected as real results arrive. If the
// predecessor is unknown the commit starts empty.
func (a *Aggregate) SeedFrom(commit, predecessor string) {
	if d, ok := a.byCommit[predecessor]; ok {
		a.byCommit[commit] = &distribution{skips: d.skips.Clone(), fails: d.fails.Clone()}
		a.logger.Debug("histograms seeded", "commit", commit, "from", predecessor)
		return
	}
	a.EnsureCommit(commit)
}

// RecordScore buckets the decoded (fail, skip) pair of score into the
// commit's histograms. The bucket for the score the test held before is
// deliberately not decremented: the histograms count score-change events.
// Callers invoke this only when the score actually changed (or is the first
// for the test).
func (a *Aggregate) RecordScore(commit string, score model.Score) {
	a.EnsureCommit(commit)
	d := a.byCommit[commit]
	_, fails, skips := score.Counts()
	d.skips.Bump(skips)
	d.fails.Bump(fails)
}

// CachedScore returns the last known score for the test.
func (a *Aggregate) CachedScore(test model.TestID) (model.Score, bool) {
	s, ok := a.scores[test.Key()]
	return s, ok
}

// SetCachedScore records the last known score for the test.
func (a *Aggregate) SetCachedScore(test model.TestID, score model.Score) {
	a.scores[test.Key()] = score
}
