package model

// Score packs the error/failure/skip counts of one test run into a single
// ordinal. The three counts are treated as digits in a base-1000 number
// (errors most significant), so a plain integer comparison orders results
// from best (0) to worst. Higher is always worse.
//
// The packing assumes fails < 1000 and skips < 1000; counts beyond that
// overflow into the next digit and corrupt the encoding. That limitation is
// inherent to the format and is not checked here.
type Score int64

const (
	errorUnit = 1_000_000
	failUnit  = 1_000
)

// EncodeScore packs the three counts into a Score.
func EncodeScore(errors, fails, skips int) Score {
	return Score(errors)*errorUnit + Score(fails)*failUnit + Score(skips)
}

// Counts unpacks a Score back into its (errors, fails, skips) digits.
// Every component that decomposes a score must go through this method; the
// arithmetic is not to be re-derived elsewhere.
func (s Score) Counts() (errors, fails, skips int) {
	skips = int(s % failUnit)
	fails = int((s % errorUnit) / failUnit)
	errors = int(s / errorUnit)
	return errors, fails, skips
}

// Errors returns the error digit of the score.
func (s Score) Errors() int { e, _, _ := s.Counts(); return e }

// Fails returns the failure digit of the score.
func (s Score) Fails() int { _, f, _ := s.Counts(); return f }

// Skips returns the skip digit of the score.
func (s Score) Skips() int { _, _, sk := s.Counts(); return sk }
