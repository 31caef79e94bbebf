package worker

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/me/testherd/internal/config"
	"github.com/me/testherd/internal/engine"
	"github.com/me/testherd/internal/logging"
	"github.com/me/testherd/internal/scheduler"
	"github.com/me/testherd/internal/server"
	"github.com/me/testherd/internal/store"
	"github.com/me/testherd/pkg/model"
)

var commitTime = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func startTestServer(t *testing.T) (string, *engine.Engine) {
	t.Helper()
	st, err := store.NewSQLiteStore(":memory:", logging.Discard())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	eng := engine.New(st, scheduler.DefaultConfig(), logging.Discard())
	if err := eng.Bootstrap(context.Background()); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	srv := server.New(config.DefaultServerConfig(), eng, logging.Discard())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts.URL, eng
}

func TestClient_NextTest_Empty(t *testing.T) {
	url, _ := startTestServer(t)
	c := NewClient(url)

	entry, err := c.NextTest(context.Background(), "c1", commitTime)
	if err != nil {
		t.Fatalf("NextTest: %v", err)
	}
	if entry != nil {
		t.Errorf("entry = %+v, want nil for empty queue", entry)
	}
}

func TestClient_NextTest_BadCommit(t *testing.T) {
	url, eng := startTestServer(t)
	c := NewClient(url)

	if _, err := c.NextTest(context.Background(), "c2", commitTime.Add(time.Hour)); err != nil {
		t.Fatalf("NextTest: %v", err)
	}
	eng.Flush()

	_, err := c.NextTest(context.Background(), "c1", commitTime)
	if !errors.Is(err, model.ErrBadCommit) {
		t.Errorf("err = %v, want ErrBadCommit", err)
	}
}

func TestClient_RoundTrip(t *testing.T) {
	url, eng := startTestServer(t)
	c := NewClient(url)
	ctx := context.Background()

	test := model.TestID{Prefix: "enwiki", Title: "Foo"}
	if err := eng.ImportTests(ctx, []model.TestID{test}); err != nil {
		t.Fatalf("ImportTests: %v", err)
	}

	entry, err := c.NextTest(ctx, "c1", commitTime)
	if err != nil {
		t.Fatalf("NextTest: %v", err)
	}
	if entry == nil || entry.Test != test {
		t.Fatalf("entry = %+v, want %v", entry, test)
	}

	payload := "<testcase><skipped/></testcase>"
	if err := c.SubmitResult(ctx, entry.Test, "c1", payload); err != nil {
		t.Fatalf("SubmitResult: %v", err)
	}
	eng.Flush()

	_, inFlight := eng.QueueDepth()
	if inFlight != 0 {
		t.Errorf("inFlight = %d, want lease cleared", inFlight)
	}
}

func TestWorker_PollOnce(t *testing.T) {
	url, eng := startTestServer(t)
	ctx := context.Background()

	test := model.TestID{Prefix: "enwiki", Title: "Foo"}
	if err := eng.ImportTests(ctx, []model.TestID{test}); err != nil {
		t.Fatalf("ImportTests: %v", err)
	}

	var ran []model.TestID
	runner := RunnerFunc(func(ctx context.Context, test model.TestID) (string, error) {
		ran = append(ran, test)
		return "<testcase><failure/></testcase>", nil
	})
	w := New(Config{ServerURL: url, Commit: "c1", CommitTime: commitTime}, runner, logging.Discard())

	if err := w.pollOnce(ctx); err != nil {
		t.Fatalf("pollOnce: %v", err)
	}
	if len(ran) != 1 || ran[0] != test {
		t.Fatalf("ran = %+v, want [Foo]", ran)
	}
	eng.Flush()

	// Nothing left: the next poll is a quiet no-op.
	if err := w.pollOnce(ctx); err != nil {
		t.Fatalf("pollOnce on empty queue: %v", err)
	}
	if len(ran) != 1 {
		t.Errorf("ran = %d times, want 1", len(ran))
	}
}

func TestWorker_RunFailureLeavesLease(t *testing.T) {
	url, eng := startTestServer(t)
	ctx := context.Background()

	test := model.TestID{Prefix: "enwiki", Title: "Foo"}
	if err := eng.ImportTests(ctx, []model.TestID{test}); err != nil {
		t.Fatalf("ImportTests: %v", err)
	}

	runner := RunnerFunc(func(ctx context.Context, test model.TestID) (string, error) {
		return "", errors.New("browser crashed")
	})
	w := New(Config{ServerURL: url, Commit: "c1", CommitTime: commitTime}, runner, logging.Discard())

	if err := w.pollOnce(ctx); err != nil {
		t.Fatalf("pollOnce: %v", err)
	}
	eng.Flush()

	// No result was submitted; the lease stays until it expires.
	_, inFlight := eng.QueueDepth()
	if inFlight != 1 {
		t.Errorf("inFlight = %d, want 1", inFlight)
	}
}

func TestParseCommitInfo(t *testing.T) {
	hash, ts, err := parseCommitInfo("abc123 1714557600\n")
	if err != nil {
		t.Fatalf("parseCommitInfo: %v", err)
	}
	if hash != "abc123" {
		t.Errorf("hash = %q", hash)
	}
	if got := ts.Unix(); got != 1714557600 {
		t.Errorf("ts = %d", got)
	}

	if _, _, err := parseCommitInfo("garbage"); err == nil {
		t.Error("expected error for malformed output")
	}
	if _, _, err := parseCommitInfo("abc not-a-number"); err == nil {
		t.Error("expected error for bad timestamp")
	}
}

func TestCommandRunner_Substitution(t *testing.T) {
	r := &CommandRunner{Template: []string{"echo", "{prefix}:{title}"}}
	out, err := r.Run(context.Background(), model.TestID{Prefix: "enwiki", Title: "Foo"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out != "enwiki:Foo\n" {
		t.Errorf("out = %q", out)
	}
}
