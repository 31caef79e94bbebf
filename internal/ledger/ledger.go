// Package ledger keeps the ordered in-memory history of tracked revisions.
// The ledger is the single source of truth for "latest known revision";
// other components read it but never mutate it except through Append.
package ledger

import (
	"sort"
	"time"

	"github.com/me/testherd/pkg/model"
)

// Ledger holds commits sorted newest-first. Index 0 is the latest known
// revision. Not safe for concurrent use; the engine serializes access.
type Ledger struct {
	commits []model.Commit
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{}
}

// FromCommits builds a ledger from unordered store rows. Commits are sorted
// strictly by timestamp descending; rows with equal timestamps keep their
// store order.
func FromCommits(commits []model.Commit) *Ledger {
	l := &Ledger{commits: append([]model.Commit(nil), commits...)}
	sort.SliceStable(l.commits, func(i, j int) bool {
		return l.commits[i].Timestamp.After(l.commits[j].Timestamp)
	})
	return l
}

// Append inserts a new latest commit. The insert happens only if ts is
// strictly newer than the current latest; older or duplicate commits are the
// caller's problem and leave the ledger untouched. Reports whether the
// commit was inserted.
func (l *Ledger) Append(hash string, ts time.Time, isKeyframe bool) bool {
	if latest, ok := l.Latest(); ok && !latest.Timestamp.Before(ts) {
		return false
	}
	l.commits = append([]model.Commit{{Hash: hash, Timestamp: ts, IsKeyframe: isKeyframe}}, l.commits...)
	return true
}

// Latest returns the newest tracked commit.
func (l *Ledger) Latest() (model.Commit, bool) {
	if len(l.commits) == 0 {
		return model.Commit{}, false
	}
	return l.commits[0], true
}

// SecondLatest returns the commit before the latest one.
func (l *Ledger) SecondLatest() (model.Commit, bool) {
	if len(l.commits) < 2 {
		return model.Commit{}, false
	}
	return l.commits[1], true
}

// Find returns the tracked commit with the given hash.
func (l *Ledger) Find(hash string) (model.Commit, bool) {
	for _, c := range l.commits {
		if c.Hash == hash {
			return c, true
		}
	}
	return model.Commit{}, false
}

// All returns the commits newest-first. The slice is a copy.
func (l *Ledger) All() []model.Commit {
	return append([]model.Commit(nil), l.commits...)
}

// Len returns the number of tracked commits.
func (l *Ledger) Len() int {
	return len(l.commits)
}
