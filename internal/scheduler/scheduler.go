// Package scheduler owns the lifecycles of pending entries and leases: a
// priority queue of not-yet-verified tests and the list of assignments
// currently out with workers.
package scheduler

import (
	"container/heap"
	"log/slog"
	"time"

	"github.com/me/testherd/pkg/model"
)

// Config holds scheduler configuration.
type Config struct {
	// LeaseTimeout is how long an assignment may stay out before it is
	// considered lost and eligible for reclaim.
	LeaseTimeout time.Duration
	// MaxFailures bounds how often a reclaimed test is reissued before it is
	// abandoned.
	MaxFailures int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{LeaseTimeout: 10 * time.Minute, MaxFailures: 3}
}

// Scheduler is the in-memory scheduling engine. Entries with a worse
// (higher) score are issued before entries with no known problems:
// confirming whether a bad test still fails is worth more than a fresh check
// of a clean one. Never-scored entries sit at score 0 and are served only
// once the backlog of known-bad tests is drained.
//
// Not safe for concurrent use; the engine serializes access.
type Scheduler struct {
	cfg    Config
	queue  pendingQueue
	seq    uint64
	leases []model.Lease // newest assignment first; reclaim scans from the back
	logger *slog.Logger
}

// New creates a Scheduler.
func New(cfg Config, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cfg:    cfg,
		logger: logger.With("component", "scheduler"),
	}
}

// Enqueue adds a pending entry to the priority queue.
func (s *Scheduler) Enqueue(e model.PendingEntry) {
	s.seq++
	heap.Push(&s.queue, &queuedEntry{entry: e, seq: s.seq})
}

// Next dequeues the highest-scored pending entry, leases it, and returns it.
func (s *Scheduler) Next(now time.Time) (model.PendingEntry, bool) {
	if s.queue.Len() == 0 {
		return model.PendingEntry{}, false
	}
	item := heap.Pop(&s.queue).(*queuedEntry)
	s.lease(item.entry, now)
	return item.entry, true
}

// TryReclaimExpired scans leases from the oldest assignment. Because leases
// are ordered by assignment time, the scan stops at the first lease that has
// not expired. An expired lease whose entry still has retries left gets its
// fail count bumped, is re-leased, and is returned for reassignment. Expired
// leases past the retry bound are dropped from scheduling entirely and
// collected in abandoned so the caller can persist a terminal-failure
// marker.
//
// Reclaim is lazy: it runs only when the engine asks for the next test.
func (s *Scheduler) TryReclaimExpired(now time.Time) (reissued *model.PendingEntry, abandoned []model.PendingEntry) {
	for len(s.leases) > 0 {
		oldest := s.leases[len(s.leases)-1]
		if now.Sub(oldest.StartedAt) <= s.cfg.LeaseTimeout {
			break
		}
		s.leases = s.leases[:len(s.leases)-1]

		if oldest.Entry.FailCount < s.cfg.MaxFailures {
			entry := oldest.Entry
			entry.FailCount++
			s.lease(entry, now)
			s.logger.Info("lease reclaimed",
				"test", entry.Test, "fail_count", entry.FailCount, "max_failures", s.cfg.MaxFailures)
			return &entry, abandoned
		}

		s.logger.Warn("test abandoned after max failures",
			"test", oldest.Entry.Test, "fail_count", oldest.Entry.FailCount)
		abandoned = append(abandoned, oldest.Entry)
	}
	return nil, abandoned
}

// RemoveLease drops the lease for the given test, if any. First match wins.
// Reports whether a lease was removed.
func (s *Scheduler) RemoveLease(test model.TestID) bool {
	for i, l := range s.leases {
		if l.Entry.Test == test {
			s.leases = append(s.leases[:i], s.leases[i+1:]...)
			return true
		}
	}
	return false
}

// PendingLen returns the number of queued entries.
func (s *Scheduler) PendingLen() int {
	return s.queue.Len()
}

// InFlight returns the number of active leases.
func (s *Scheduler) InFlight() int {
	return len(s.leases)
}

func (s *Scheduler) lease(e model.PendingEntry, now time.Time) {
	s.leases = append([]model.Lease{{Entry: e, StartedAt: now}}, s.leases...)
}

// queuedEntry pairs a pending entry with its insertion sequence so that
// equal scores dequeue in insertion order.
type queuedEntry struct {
	entry model.PendingEntry
	seq   uint64
}

// pendingQueue implements heap.Interface ordered by score descending.
type pendingQueue []*queuedEntry

func (q pendingQueue) Len() int { return len(q) }

func (q pendingQueue) Less(i, j int) bool {
	if q[i].entry.Score != q[j].entry.Score {
		return q[i].entry.Score > q[j].entry.Score
	}
	return q[i].seq < q[j].seq
}

func (q pendingQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *pendingQueue) Push(x any) {
	*q = append(*q, x.(*queuedEntry))
}

func (q *pendingQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return item
}
