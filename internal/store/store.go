package store

import (
	"context"
	"time"

	"github.com/me/testherd/pkg/model"
)

// Store defines the persistence layer for the dispatch engine. It is the
// only resource shared across processes; every in-memory structure is
// rebuilt from it at bootstrap.
//
// List and query methods return empty slices with a nil error when no rows
// match: callers use the error alone to tell a failing store apart from a
// legitimately empty one.
type Store interface {
	// Commit ledger
	ListCommits(ctx context.Context) ([]model.Commit, error)
	AppendCommit(ctx context.Context, commit model.Commit, revisionID string) error

	// Test catalog
	ListTests(ctx context.Context) ([]model.TestID, error)
	AddTest(ctx context.Context, test model.TestID) error

	// Raw results, keyed by the revision identifier derived from a commit
	// timestamp.
	ResultsByRevision(ctx context.Context, revisionID string) ([]model.TestID, error)
	PutResult(ctx context.Context, test model.TestID, revisionID string, payload string) error

	// Per-commit score table
	ScoresByCommit(ctx context.Context, commit string) ([]model.ScoreRow, error)
	PutScoreRow(ctx context.Context, row model.ScoreRow) error

	// Revision summaries. GetRevisionSummary returns (nil, nil) when no
	// summary row exists for the commit.
	PutRevisionSummary(ctx context.Context, commit string, summary model.RevisionSummary) error
	GetRevisionSummary(ctx context.Context, commit string) (*model.RevisionSummary, error)
	UpdateRevisionSummaryHistograms(ctx context.Context, commit string, skips, fails model.Histogram) error

	// Terminal failures: tests dropped after exhausting their retry budget.
	PutAbandoned(ctx context.Context, test model.TestID, commit string, failCount int, at time.Time) error

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}
