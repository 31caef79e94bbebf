package store

import (
	"context"
	"testing"
	"time"

	"github.com/me/testherd/internal/logging"
	"github.com/me/testherd/pkg/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := NewSQLiteStore(":memory:", logging.Discard())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return st
}

func TestCommits_RoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c := model.Commit{Hash: "abc123", Timestamp: ts, IsKeyframe: true}
	if err := st.AppendCommit(ctx, c, c.RevisionID()); err != nil {
		t.Fatalf("AppendCommit: %v", err)
	}

	commits, err := st.ListCommits(ctx)
	if err != nil {
		t.Fatalf("ListCommits: %v", err)
	}
	if len(commits) != 1 {
		t.Fatalf("len(commits) = %d, want 1", len(commits))
	}
	got := commits[0]
	if got.Hash != "abc123" || !got.Timestamp.Equal(ts) || !got.IsKeyframe {
		t.Errorf("commit = %+v, want %+v", got, c)
	}
}

func TestCommits_DuplicateHashIgnored(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	c := model.Commit{Hash: "abc123", Timestamp: time.Now().UTC()}
	if err := st.AppendCommit(ctx, c, c.RevisionID()); err != nil {
		t.Fatalf("first AppendCommit: %v", err)
	}
	if err := st.AppendCommit(ctx, c, c.RevisionID()); err != nil {
		t.Fatalf("second AppendCommit: %v", err)
	}

	commits, err := st.ListCommits(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(commits) != 1 {
		t.Errorf("len(commits) = %d, want 1", len(commits))
	}
}

func TestListCommits_Empty(t *testing.T) {
	st := newTestStore(t)
	commits, err := st.ListCommits(context.Background())
	if err != nil {
		t.Fatalf("ListCommits on empty store: %v", err)
	}
	if len(commits) != 0 {
		t.Errorf("len(commits) = %d, want 0", len(commits))
	}
}

func TestTests_RoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	tests := []model.TestID{
		{Prefix: "enwiki", Title: "Alpha"},
		{Prefix: "enwiki", Title: "Beta"},
		{Prefix: "frwiki", Title: "Alpha"},
	}
	for _, tc := range tests {
		if err := st.AddTest(ctx, tc); err != nil {
			t.Fatalf("AddTest(%v): %v", tc, err)
		}
	}
	// Duplicate insert is a no-op.
	if err := st.AddTest(ctx, tests[0]); err != nil {
		t.Fatalf("duplicate AddTest: %v", err)
	}

	got, err := st.ListTests(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Errorf("len(tests) = %d, want 3", len(got))
	}
}

func TestResults_RoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	test := model.TestID{Prefix: "enwiki", Title: "Alpha"}
	revID := model.RevisionID(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))

	if err := st.PutResult(ctx, test, revID, "<testsuite/>"); err != nil {
		t.Fatalf("PutResult: %v", err)
	}
	// Re-submitting replaces, not duplicates.
	if err := st.PutResult(ctx, test, revID, "<testsuite><failure/></testsuite>"); err != nil {
		t.Fatalf("PutResult (replace): %v", err)
	}

	got, err := st.ResultsByRevision(ctx, revID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != test {
		t.Errorf("ResultsByRevision = %v, want [%v]", got, test)
	}

	other, err := st.ResultsByRevision(ctx, model.RevisionID(time.Now()))
	if err != nil {
		t.Fatal(err)
	}
	if len(other) != 0 {
		t.Errorf("unexpected results for unrelated revision: %v", other)
	}
}

func TestScoreRows_RoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	row := model.ScoreRow{
		Commit: "abc123",
		Test:   model.TestID{Prefix: "enwiki", Title: "Alpha"},
		Score:  model.EncodeScore(1, 2, 3),
	}
	if err := st.PutScoreRow(ctx, row); err != nil {
		t.Fatalf("PutScoreRow: %v", err)
	}

	// Replacing the same (commit, test) pair updates in place.
	row.Score = model.EncodeScore(0, 0, 1)
	if err := st.PutScoreRow(ctx, row); err != nil {
		t.Fatalf("PutScoreRow (replace): %v", err)
	}

	rows, err := st.ScoresByCommit(ctx, "abc123")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("len(rows) = %d, want 1", len(rows))
	}
	if rows[0].Score != model.EncodeScore(0, 0, 1) {
		t.Errorf("score = %d, want %d", rows[0].Score, model.EncodeScore(0, 0, 1))
	}
	if rows[0].Delta != 0 {
		t.Errorf("delta = %d, want 0", rows[0].Delta)
	}
}

func TestRevisionSummary_RoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	sum := model.RevisionSummary{
		ErrorsAvg: 0.5,
		FailsAvg:  1.25,
		SkipsAvg:  3,
		ScoreAvg:  1250.75,
		NumTests:  4,
		SkipStats: model.Histogram{0: 2, 3: 2},
		FailStats: model.Histogram{1: 4},
	}
	if err := st.PutRevisionSummary(ctx, "abc123", sum); err != nil {
		t.Fatalf("PutRevisionSummary: %v", err)
	}

	got, err := st.GetRevisionSummary(ctx, "abc123")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("GetRevisionSummary returned nil for existing row")
	}
	if got.NumTests != 4 || got.FailsAvg != 1.25 {
		t.Errorf("summary = %+v", got)
	}
	if got.SkipStats[3] != 2 || got.FailStats[1] != 4 {
		t.Errorf("histograms = %v / %v", got.SkipStats, got.FailStats)
	}
}

func TestGetRevisionSummary_Absent(t *testing.T) {
	st := newTestStore(t)
	got, err := st.GetRevisionSummary(context.Background(), "nope")
	if err != nil {
		t.Fatalf("GetRevisionSummary: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for absent summary, got %+v", got)
	}
}

func TestUpdateRevisionSummaryHistograms_UpsertsRow(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	skips := model.Histogram{5: 1}
	fails := model.Histogram{2: 3}
	if err := st.UpdateRevisionSummaryHistograms(ctx, "fresh", skips, fails); err != nil {
		t.Fatalf("UpdateRevisionSummaryHistograms: %v", err)
	}

	got, err := st.GetRevisionSummary(ctx, "fresh")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("histogram update should create the summary row")
	}
	if got.SkipStats[5] != 1 || got.FailStats[2] != 3 {
		t.Errorf("histograms = %v / %v", got.SkipStats, got.FailStats)
	}
}

func TestPutAbandoned(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	test := model.TestID{Prefix: "enwiki", Title: "Flaky"}
	if err := st.PutAbandoned(ctx, test, "abc123", 3, time.Now()); err != nil {
		t.Fatalf("PutAbandoned: %v", err)
	}
	// Abandoning the same test again for the same commit just updates.
	if err := st.PutAbandoned(ctx, test, "abc123", 4, time.Now()); err != nil {
		t.Fatalf("PutAbandoned (update): %v", err)
	}
}
