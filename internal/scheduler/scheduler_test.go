package scheduler

import (
	"testing"
	"time"

	"github.com/me/testherd/internal/logging"
	"github.com/me/testherd/pkg/model"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func entry(title string, score model.Score) model.PendingEntry {
	return model.PendingEntry{
		Test:   model.TestID{Prefix: "enwiki", Title: title},
		Score:  score,
		Commit: "abc123",
	}
}

func TestNext_PriorityOrder(t *testing.T) {
	s := New(DefaultConfig(), logging.Discard())
	s.Enqueue(entry("fifty", 50))
	s.Enqueue(entry("zero", 0))
	s.Enqueue(entry("threek", 3000))

	want := []model.Score{3000, 50, 0}
	for i, score := range want {
		got, ok := s.Next(now)
		if !ok {
			t.Fatalf("Next #%d: queue empty", i)
		}
		if got.Score != score {
			t.Errorf("Next #%d score = %d, want %d", i, got.Score, score)
		}
	}
	if _, ok := s.Next(now); ok {
		t.Error("queue should be drained")
	}
}

func TestNext_TiesDequeueInInsertionOrder(t *testing.T) {
	s := New(DefaultConfig(), logging.Discard())
	s.Enqueue(entry("first", 0))
	s.Enqueue(entry("second", 0))
	s.Enqueue(entry("third", 0))

	for _, title := range []string{"first", "second", "third"} {
		got, _ := s.Next(now)
		if got.Test.Title != title {
			t.Errorf("dequeued %q, want %q", got.Test.Title, title)
		}
	}
}

func TestNext_CreatesLease(t *testing.T) {
	s := New(DefaultConfig(), logging.Discard())
	s.Enqueue(entry("a", 10))

	if _, ok := s.Next(now); !ok {
		t.Fatal("Next returned empty")
	}
	if s.InFlight() != 1 {
		t.Errorf("InFlight() = %d, want 1", s.InFlight())
	}
	if s.PendingLen() != 0 {
		t.Errorf("PendingLen() = %d, want 0", s.PendingLen())
	}
}

func TestTryReclaimExpired_ReissuesWithBumpedFailCount(t *testing.T) {
	cfg := Config{LeaseTimeout: 10 * time.Minute, MaxFailures: 2}
	s := New(cfg, logging.Discard())
	s.Enqueue(entry("stuck", 500))
	s.Next(now)

	// Not yet expired: nothing to reclaim.
	if got, _ := s.TryReclaimExpired(now.Add(5 * time.Minute)); got != nil {
		t.Fatalf("reclaim before timeout returned %+v", got)
	}

	got, abandoned := s.TryReclaimExpired(now.Add(11 * time.Minute))
	if got == nil {
		t.Fatal("expected reclaimed entry")
	}
	if got.FailCount != 1 {
		t.Errorf("FailCount = %d, want 1", got.FailCount)
	}
	if len(abandoned) != 0 {
		t.Errorf("abandoned = %v, want none", abandoned)
	}
	// The reissued entry is leased again.
	if s.InFlight() != 1 {
		t.Errorf("InFlight() = %d, want 1", s.InFlight())
	}
}

func TestTryReclaimExpired_AbandonsPastMaxFailures(t *testing.T) {
	cfg := Config{LeaseTimeout: 10 * time.Minute, MaxFailures: 2}
	s := New(cfg, logging.Discard())

	e := entry("flaky", 500)
	e.FailCount = 2
	s.Enqueue(e)
	s.Next(now)

	got, abandoned := s.TryReclaimExpired(now.Add(11 * time.Minute))
	if got != nil {
		t.Errorf("abandoned entry was reissued: %+v", got)
	}
	if len(abandoned) != 1 || abandoned[0].Test.Title != "flaky" {
		t.Fatalf("abandoned = %v, want the flaky entry", abandoned)
	}
	// Dropped from the running set and never re-queued.
	if s.InFlight() != 0 || s.PendingLen() != 0 {
		t.Errorf("InFlight() = %d, PendingLen() = %d; want 0, 0", s.InFlight(), s.PendingLen())
	}
}

func TestTryReclaimExpired_StopsAtFirstLiveLease(t *testing.T) {
	cfg := Config{LeaseTimeout: 10 * time.Minute, MaxFailures: 3}
	s := New(cfg, logging.Discard())

	s.Enqueue(entry("old", 100))
	s.Next(now) // leased at t0
	s.Enqueue(entry("new", 100))
	s.Next(now.Add(8 * time.Minute)) // leased later

	// At t0+11m only the older lease has expired; the scan must stop after
	// reissuing it and leave the newer lease alone.
	got, _ := s.TryReclaimExpired(now.Add(11 * time.Minute))
	if got == nil || got.Test.Title != "old" {
		t.Fatalf("reclaimed %+v, want the old lease", got)
	}
	if s.InFlight() != 2 {
		t.Errorf("InFlight() = %d, want 2 (reissued old + live new)", s.InFlight())
	}
}

func TestTryReclaimExpired_SkipsAbandonedThenReissues(t *testing.T) {
	cfg := Config{LeaseTimeout: 10 * time.Minute, MaxFailures: 1}
	s := New(cfg, logging.Discard())

	dead := entry("dead", 900)
	dead.FailCount = 1
	s.Enqueue(dead)
	s.Next(now)

	s.Enqueue(entry("alive", 800))
	s.Next(now.Add(time.Minute))

	// Both leases are expired. The oldest is past its retry budget and gets
	// dropped; the next one is reissued.
	got, abandoned := s.TryReclaimExpired(now.Add(30 * time.Minute))
	if len(abandoned) != 1 || abandoned[0].Test.Title != "dead" {
		t.Errorf("abandoned = %v, want [dead]", abandoned)
	}
	if got == nil || got.Test.Title != "alive" {
		t.Fatalf("reclaimed %+v, want the alive entry", got)
	}
	if got.FailCount != 1 {
		t.Errorf("FailCount = %d, want 1", got.FailCount)
	}
}

func TestRemoveLease(t *testing.T) {
	s := New(DefaultConfig(), logging.Discard())
	s.Enqueue(entry("a", 10))
	s.Enqueue(entry("b", 20))
	s.Next(now)
	s.Next(now)

	if !s.RemoveLease(model.TestID{Prefix: "enwiki", Title: "a"}) {
		t.Error("RemoveLease(a) = false, want true")
	}
	if s.RemoveLease(model.TestID{Prefix: "enwiki", Title: "a"}) {
		t.Error("second RemoveLease(a) should report false")
	}
	if s.InFlight() != 1 {
		t.Errorf("InFlight() = %d, want 1", s.InFlight())
	}
}
