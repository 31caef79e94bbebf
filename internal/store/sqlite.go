package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/me/testherd/pkg/model"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and returns a Store.
// Use ":memory:" for an in-memory database (useful in tests).
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logger.With("component", "store"),
	}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate creates all required tables and indexes.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	s.logger.Debug("sql", "op", "migrate")
	return migrate(ctx, s.db)
}

// --- Commits ---

func (s *SQLiteStore) ListCommits(ctx context.Context) ([]model.Commit, error) {
	s.logger.Debug("sql", "op", "select", "table", "commits")

	rows, err := s.db.QueryContext(ctx, `SELECT hash, timestamp, keyframe FROM commits`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var commits []model.Commit
	for rows.Next() {
		var c model.Commit
		var ts string
		var keyframe int
		if err := rows.Scan(&c.Hash, &ts, &keyframe); err != nil {
			return nil, err
		}
		c.Timestamp, err = time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("parse commit timestamp %q: %w", ts, err)
		}
		c.IsKeyframe = keyframe != 0
		commits = append(commits, c)
	}
	return commits, rows.Err()
}

func (s *SQLiteStore) AppendCommit(ctx context.Context, commit model.Commit, revisionID string) error {
	s.logger.Debug("sql", "op", "insert", "table", "commits", "hash", commit.Hash)

	keyframe := 0
	if commit.IsKeyframe {
		keyframe = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO commits (hash, rev_id, timestamp, keyframe) VALUES (?, ?, ?, ?)
		 ON CONFLICT(hash) DO NOTHING`,
		commit.Hash, revisionID, commit.Timestamp.UTC().Format(time.RFC3339Nano), keyframe,
	)
	return err
}

// --- Test catalog ---

func (s *SQLiteStore) ListTests(ctx context.Context) ([]model.TestID, error) {
	s.logger.Debug("sql", "op", "select", "table", "tests")

	rows, err := s.db.QueryContext(ctx, `SELECT prefix, title FROM tests`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tests []model.TestID
	for rows.Next() {
		var t model.TestID
		if err := rows.Scan(&t.Prefix, &t.Title); err != nil {
			return nil, err
		}
		tests = append(tests, t)
	}
	return tests, rows.Err()
}

func (s *SQLiteStore) AddTest(ctx context.Context, test model.TestID) error {
	s.logger.Debug("sql", "op", "insert", "table", "tests", "test", test.Key())

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tests (prefix, title) VALUES (?, ?) ON CONFLICT(prefix, title) DO NOTHING`,
		test.Prefix, test.Title,
	)
	return err
}

// --- Raw results ---

func (s *SQLiteStore) ResultsByRevision(ctx context.Context, revisionID string) ([]model.TestID, error) {
	s.logger.Debug("sql", "op", "select", "table", "results", "rev_id", revisionID)

	rows, err := s.db.QueryContext(ctx,
		`SELECT prefix, title FROM results WHERE rev_id = ?`, revisionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tests []model.TestID
	for rows.Next() {
		var t model.TestID
		if err := rows.Scan(&t.Prefix, &t.Title); err != nil {
			return nil, err
		}
		tests = append(tests, t)
	}
	return tests, rows.Err()
}

func (s *SQLiteStore) PutResult(ctx context.Context, test model.TestID, revisionID string, payload string) error {
	s.logger.Debug("sql", "op", "upsert", "table", "results", "test", test.Key(), "rev_id", revisionID)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO results (prefix, title, rev_id, payload, created_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(prefix, title, rev_id) DO UPDATE SET payload = excluded.payload, created_at = excluded.created_at`,
		test.Prefix, test.Title, revisionID, payload, time.Now().UTC().Format(time.RFC3339Nano),
	)
	return err
}

// --- Score table ---

func (s *SQLiteStore) ScoresByCommit(ctx context.Context, commit string) ([]model.ScoreRow, error) {
	s.logger.Debug("sql", "op", "select", "table", "test_by_score", "commit", commit)

	rows, err := s.db.QueryContext(ctx,
		`SELECT commit_hash, prefix, title, score, delta FROM test_by_score WHERE commit_hash = ?`, commit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scores []model.ScoreRow
	for rows.Next() {
		var r model.ScoreRow
		if err := rows.Scan(&r.Commit, &r.Test.Prefix, &r.Test.Title, &r.Score, &r.Delta); err != nil {
			return nil, err
		}
		scores = append(scores, r)
	}
	return scores, rows.Err()
}

func (s *SQLiteStore) PutScoreRow(ctx context.Context, row model.ScoreRow) error {
	s.logger.Debug("sql", "op", "upsert", "table", "test_by_score", "test", row.Test.Key(), "score", int64(row.Score))

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO test_by_score (commit_hash, prefix, title, score, delta) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(commit_hash, prefix, title) DO UPDATE SET score = excluded.score, delta = excluded.delta`,
		row.Commit, row.Test.Prefix, row.Test.Title, int64(row.Score), row.Delta,
	)
	return err
}

// --- Revision summaries ---

func (s *SQLiteStore) PutRevisionSummary(ctx context.Context, commit string, summary model.RevisionSummary) error {
	s.logger.Debug("sql", "op", "upsert", "table", "revision_summary", "revision", commit)

	skipJSON, err := json.Marshal(summary.SkipStats)
	if err != nil {
		return fmt.Errorf("marshal skip stats: %w", err)
	}
	failJSON, err := json.Marshal(summary.FailStats)
	if err != nil {
		return fmt.Errorf("marshal fail stats: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO revision_summary (revision, errors_avg, fails_avg, skips_avg, score_avg, num_tests, skip_stats, fail_stats)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(revision) DO UPDATE SET
			errors_avg = excluded.errors_avg,
			fails_avg  = excluded.fails_avg,
			skips_avg  = excluded.skips_avg,
			score_avg  = excluded.score_avg,
			num_tests  = excluded.num_tests,
			skip_stats = excluded.skip_stats,
			fail_stats = excluded.fail_stats`,
		commit, summary.ErrorsAvg, summary.FailsAvg, summary.SkipsAvg, summary.ScoreAvg,
		summary.NumTests, string(skipJSON), string(failJSON),
	)
	return err
}

func (s *SQLiteStore) GetRevisionSummary(ctx context.Context, commit string) (*model.RevisionSummary, error) {
	s.logger.Debug("sql", "op", "select", "table", "revision_summary", "revision", commit)

	var sum model.RevisionSummary
	var skipJSON, failJSON string

	err := s.db.QueryRowContext(ctx,
		`SELECT errors_avg, fails_avg, skips_avg, score_avg, num_tests, skip_stats, fail_stats
		 FROM revision_summary WHERE revision = ?`, commit,
	).Scan(&sum.ErrorsAvg, &sum.FailsAvg, &sum.SkipsAvg, &sum.ScoreAvg, &sum.NumTests, &skipJSON, &failJSON)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(skipJSON), &sum.SkipStats); err != nil {
		return nil, fmt.Errorf("unmarshal skip stats: %w", err)
	}
	if err := json.Unmarshal([]byte(failJSON), &sum.FailStats); err != nil {
		return nil, fmt.Errorf("unmarshal fail stats: %w", err)
	}
	return &sum, nil
}

func (s *SQLiteStore) UpdateRevisionSummaryHistograms(ctx context.Context, commit string, skips, fails model.Histogram) error {
	s.logger.Debug("sql", "op", "upsert_histograms", "table", "revision_summary", "revision", commit)

	skipJSON, err := json.Marshal(skips)
	if err != nil {
		return fmt.Errorf("marshal skip stats: %w", err)
	}
	failJSON, err := json.Marshal(fails)
	if err != nil {
		return fmt.Errorf("marshal fail stats: %w", err)
	}

	// Upsert: the summary row may not exist yet when the first result for a
	// commit arrives before its seeded summary write lands.
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO revision_summary (revision, skip_stats, fail_stats) VALUES (?, ?, ?)
		 ON CONFLICT(revision) DO UPDATE SET skip_stats = excluded.skip_stats, fail_stats = excluded.fail_stats`,
		commit, string(skipJSON), string(failJSON),
	)
	return err
}

// --- Abandoned tests ---

func (s *SQLiteStore) PutAbandoned(ctx context.Context, test model.TestID, commit string, failCount int, at time.Time) error {
	s.logger.Debug("sql", "op", "upsert", "table", "abandoned", "test", test.Key())

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO abandoned (prefix, title, commit_hash, fail_count, abandoned_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(prefix, title, commit_hash) DO UPDATE SET fail_count = excluded.fail_count, abandoned_at = excluded.abandoned_at`,
		test.Prefix, test.Title, commit, failCount, at.UTC().Format(time.RFC3339Nano),
	)
	return err
}
