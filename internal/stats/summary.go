package stats

import "github.com/me/testherd/pkg/model"

// ScoreTotals is the walk over one commit's score rows used for the
// dashboard summary and for persisted revision summaries.
type ScoreTotals struct {
	NoErrors   int
	NoFails    int
	NoSkips    int
	Errors     int
	Fails      int
	Skips      int
	TotalScore int64
	NumTests   int
}

// Summarize tallies score rows into totals. The zero-count walk only
// considers scores below the error band: a clean score counts for all three,
// a score in the fail band counts as error-free, and a skip-only score
// counts as error-free and fail-free.
func Summarize(rows []model.ScoreRow) ScoreTotals {
	t := ScoreTotals{NumTests: len(rows)}
	for _, row := range rows {
		if row.Score < 1_000_000 {
			switch {
			case row.Score == 0:
				t.NoErrors++
				t.NoFails++
				t.NoSkips++
			case row.Score > 1_000:
				t.NoErrors++
			case row.Score > 0:
				t.NoErrors++
				t.NoFails++
			}
		}
		e, f, s := row.Score.Counts()
		t.Errors += e
		t.Fails += f
		t.Skips += s
		t.TotalScore += int64(row.Score)
	}
	return t
}

// Averages converts the totals to per-test averages. Zero rows yield zero
// averages.
func (t ScoreTotals) Averages() model.Averages {
	if t.NumTests == 0 {
		return model.Averages{}
	}
	n := float64(t.NumTests)
	return model.Averages{
		Errors:   float64(t.Errors) / n,
		Fails:    float64(t.Fails) / n,
		Skips:    float64(t.Skips) / n,
		Score:    float64(t.TotalScore) / n,
		NumTests: t.NumTests,
	}
}
