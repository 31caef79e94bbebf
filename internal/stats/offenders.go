package stats

import (
	"sort"

	"github.com/me/testherd/pkg/model"
)

// Offenders is the worst-offender table: for each test, the maximum score
// ever observed across all tracked commits, sorted descending by score for
// paginated reporting.
//
// New tests enter the table only through Observe during the bootstrap scan
// of full history. Result ingestion goes through Promote, which updates
// already-tracked tests but never adds fresh ones.
type Offenders struct {
	rows []model.Offender
}

// NewOffenders creates an empty table.
func NewOffenders() *Offenders {
	return &Offenders{}
}

// Observe records a (test, score, commit) observation during bootstrap.
// Unknown tests are added; known tests are replaced when the new score is at
// least the stored one. Callers sort once after the scan.
func (o *Offenders) Observe(test model.TestID, score model.Score, commit string) {
	if i := o.find(test); i >= 0 {
		if o.rows[i].Score <= score {
			o.rows[i] = model.Offender{Test: test, Score: score, Commit: commit}
		}
		return
	}
	o.rows = append(o.rows, model.Offender{Test: test, Score: score, Commit: commit})
}

// Promote updates an already-tracked test after a result submission and
// keeps the table sorted. Tests not in the table are ignored. Reports
// whether an entry changed.
func (o *Offenders) Promote(test model.TestID, score model.Score, commit string) bool {
	i := o.find(test)
	if i < 0 || o.rows[i].Score > score {
		return false
	}
	o.rows[i] = model.Offender{Test: test, Score: score, Commit: commit}
	o.Sort()
	return true
}

// Sort orders the table descending by score. Stable so equal scores keep
// their observation order.
func (o *Offenders) Sort() {
	sort.SliceStable(o.rows, func(i, j int) bool {
		return o.rows[i].Score > o.rows[j].Score
	})
}

// Page returns rows[offset : offset+limit] decoded for reporting.
func (o *Offenders) Page(offset, limit int) []model.TopFail {
	var out []model.TopFail
	for i := offset; i < offset+limit && i < len(o.rows); i++ {
		if i < 0 {
			continue
		}
		out = append(out, o.rows[i].Decoded())
	}
	return out
}

// Len returns the number of tracked tests.
func (o *Offenders) Len() int {
	return len(o.rows)
}

func (o *Offenders) find(test model.TestID) int {
	for i, r := range o.rows {
		if r.Test == test {
			return i
		}
	}
	return -1
}
