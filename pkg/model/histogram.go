package model

import "sort"

// Histogram maps an integer outcome count (e.g. "3 fails") to the number of
// times that count was recorded. Buckets are created on first use.
//
// Histograms here are cumulative counters of score-change events, not a live
// distribution: recording a new score for a test bumps the bucket for the new
// value without decrementing the bucket the test occupied before. Callers
// rely on that append-only behavior.
type Histogram map[int]int

// Bump increments the bucket for v.
func (h Histogram) Bump(v int) {
	h[v]++
}

// Clone returns an independent copy. Cloning a nil histogram returns an
// empty, usable one.
func (h Histogram) Clone() Histogram {
	c := make(Histogram, len(h))
	for k, v := range h {
		c[k] = v
	}
	return c
}

// Buckets returns the bucket indices in ascending numeric order.
func (h Histogram) Buckets() []int {
	keys := make([]int, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// Total returns the sum of all bucket counts.
func (h Histogram) Total() int {
	n := 0
	for _, v := range h {
		n += v
	}
	return n
}
