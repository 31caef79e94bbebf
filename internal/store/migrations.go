package store

import (
	"context"
	"database/sql"
)

// schema contains the DDL for all dispatch-engine tables.
// Each statement uses IF NOT EXISTS for idempotency.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS commits (
		hash      TEXT PRIMARY KEY,
		rev_id    TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		keyframe  INTEGER NOT NULL DEFAULT 0
	)`,

	`CREATE TABLE IF NOT EXISTS tests (
		prefix TEXT NOT NULL,
		title  TEXT NOT NULL,
		PRIMARY KEY (prefix, title)
	)`,

	// Raw result payloads, keyed by test and the revision identifier derived
	// from the commit timestamp. Re-submitting replaces the previous payload.
	`CREATE TABLE IF NOT EXISTS results (
		prefix     TEXT NOT NULL,
		title      TEXT NOT NULL,
		rev_id     TEXT NOT NULL,
		payload    TEXT NOT NULL,
		created_at TEXT NOT NULL,
		PRIMARY KEY (prefix, title, rev_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_results_rev_id ON results(rev_id)`,

	`CREATE TABLE IF NOT EXISTS test_by_score (
		commit_hash TEXT NOT NULL,
		prefix      TEXT NOT NULL,
		title       TEXT NOT NULL,
		score       INTEGER NOT NULL,
		delta       INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (commit_hash, prefix, title)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_test_by_score_commit ON test_by_score(commit_hash)`,

	`CREATE TABLE IF NOT EXISTS revision_summary (
		revision   TEXT PRIMARY KEY,
		errors_avg REAL NOT NULL DEFAULT 0,
		fails_avg  REAL NOT NULL DEFAULT 0,
		skips_avg  REAL NOT NULL DEFAULT 0,
		score_avg  REAL NOT NULL DEFAULT 0,
		num_tests  INTEGER NOT NULL DEFAULT 0,
		skip_stats TEXT NOT NULL DEFAULT '{}',
		fail_stats TEXT NOT NULL DEFAULT '{}'
	)`,

	// Tests dropped from scheduling after exhausting their retry budget.
	`CREATE TABLE IF NOT EXISTS abandoned (
		prefix       TEXT NOT NULL,
		title        TEXT NOT NULL,
		commit_hash  TEXT NOT NULL,
		fail_count   INTEGER NOT NULL,
		abandoned_at TEXT NOT NULL,
		PRIMARY KEY (prefix, title, commit_hash)
	)`,
}

// migrate applies the schema. All statements are idempotent, so this is safe
// to run on every startup.
func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
