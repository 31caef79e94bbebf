package model

// Counts is a decoded score for display.
type Counts struct {
	Errors int `json:"errors"`
	Fails  int `json:"fails"`
	Skips  int `json:"skips"`
}

// DiffRow is one test whose score changed between two revisions. Both sides
// are carried decoded so report pages can render them without re-deriving
// the score arithmetic.
type DiffRow struct {
	Test      TestID `json:"test"`
	NewCommit string `json:"new_commit"`
	OldCommit string `json:"old_commit"`
	ScoreNew  Score  `json:"score_new"`
	ScoreOld  Score  `json:"score_old"`
	New       Counts `json:"new"`
	Old       Counts `json:"old"`
}

// Magnitude returns how much worse the new revision is; negative for fixes.
func (r DiffRow) Magnitude() int64 {
	return int64(r.ScoreNew) - int64(r.ScoreOld)
}

// DiffCounts summarizes a diff without its rows.
type DiffCounts struct {
	Regressions int `json:"regressions"`
	Fixes       int `json:"fixes"`
}

// DiffReport is one page of a regression or fix listing.
type DiffReport struct {
	Rows  []DiffRow `json:"rows"`
	Page  int       `json:"page"`
	Total int       `json:"total"`
}
