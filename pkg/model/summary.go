package model

// ScoreRow is one row of the per-commit score table: the score a test
// reached under a commit, plus the score delta recorded at ingestion time.
//
// Delta is carried for forward compatibility: result ingestion currently
// always writes 0, so consumers counting positive/negative deltas see zeros
// until ingestion starts populating it.
type ScoreRow struct {
	Commit string `json:"commit"`
	Test   TestID `json:"test"`
	Score  Score  `json:"score"`
	Delta  int64  `json:"delta"`
}

// RevisionSummary is the persisted per-commit aggregate: running averages
// across all tests scored against the commit plus the skip/fail histograms.
type RevisionSummary struct {
	ErrorsAvg float64   `json:"errors_avg"`
	FailsAvg  float64   `json:"fails_avg"`
	SkipsAvg  float64   `json:"skips_avg"`
	ScoreAvg  float64   `json:"score_avg"`
	NumTests  int       `json:"num_tests"`
	SkipStats Histogram `json:"skip_stats"`
	FailStats Histogram `json:"fail_stats"`
}

// Offender is one row of the worst-offender table: the maximum score ever
// observed for a test across all tracked commits, with the commit that
// produced it.
type Offender struct {
	Test   TestID `json:"test"`
	Score  Score  `json:"score"`
	Commit string `json:"commit"`
}

// TopFail is an Offender decoded for reporting.
type TopFail struct {
	Test   TestID `json:"test"`
	Commit string `json:"commit"`
	Errors int    `json:"errors"`
	Fails  int    `json:"fails"`
	Skips  int    `json:"skips"`
}

// Decoded returns the reporting view of the offender row.
func (o Offender) Decoded() TopFail {
	e, f, s := o.Score.Counts()
	return TopFail{Test: o.Test, Commit: o.Commit, Errors: e, Fails: f, Skips: s}
}

// Averages holds the per-test averages over one commit's score rows.
type Averages struct {
	Errors   float64 `json:"errors"`
	Fails    float64 `json:"fails"`
	Skips    float64 `json:"skips"`
	Score    float64 `json:"score"`
	NumTests int     `json:"num_tests"`
}

// Statistics is the dashboard summary for the latest tracked revision.
type Statistics struct {
	NumTests           int      `json:"num_tests"`
	NoErrors           int      `json:"no_errors"`
	NoFails            int      `json:"no_fails"`
	NoSkips            int      `json:"no_skips"`
	LatestCommit       string   `json:"latest_commit"`
	BeforeLatestCommit string   `json:"before_latest_commit,omitempty"`
	NumRegressions     int      `json:"num_regressions"`
	NumFixes           int      `json:"num_fixes"`
	Averages           Averages `json:"averages"`
}
