package model

import (
	"fmt"
	"time"
)

// TestID identifies one test case in the catalog: a collection prefix
// (e.g. a wiki) plus the item title within it.
type TestID struct {
	Prefix string `json:"prefix"`
	Title  string `json:"title"`
}

// Key returns the map key used for test identity everywhere in memory.
func (t TestID) Key() string {
	return t.Prefix + ":" + t.Title
}

// String implements fmt.Stringer for logging.
func (t TestID) String() string {
	return fmt.Sprintf("%s:%s", t.Prefix, t.Title)
}

// PendingEntry is a unit of scheduling work: a test whose score for its
// originating commit may be stale and that the scheduler can (re)issue to a
// worker. Never-scored catalog entries carry score 0 and an empty commit.
type PendingEntry struct {
	Test      TestID `json:"test"`
	Score     Score  `json:"score"`
	Commit    string `json:"commit"`
	FailCount int    `json:"fail_count"`
}

// Lease is an in-flight assignment of a PendingEntry to a worker. It exists
// only while the worker is presumed to be executing the test.
type Lease struct {
	Entry     PendingEntry
	StartedAt time.Time
}
