// Package regress compares the score tables of two revisions and reports
// which tests regressed and which were fixed between them.
package regress

import (
	"context"
	"log/slog"
	"sort"

	"github.com/me/testherd/internal/store"
	"github.com/me/testherd/pkg/model"
)

// Analyzer joins per-commit score tables from the store.
type Analyzer struct {
	store  store.Store
	logger *slog.Logger
}

// NewAnalyzer creates an analyzer backed by the given store.
func NewAnalyzer(st store.Store, logger *slog.Logger) *Analyzer {
	return &Analyzer{store: st, logger: logger}
}

// Diff joins the score rows of two commits by test. A test present in only
// one of the two tables does not appear in the result. Regressions are
// sorted by how much the score worsened, fixes by how much it improved,
// both largest first. Returns ErrEmptyResultSet when either commit has no
// score rows.
func (a *Analyzer) Diff(ctx context.Context, commitNew, commitOld string) (regressions, fixes []model.DiffRow, err error) {
	newRows, err := a.store.ScoresByCommit(ctx, commitNew)
	if err != nil {
		return nil, nil, &model.StoreUnavailableError{Op: "ScoresByCommit", Err: err}
	}
	oldRows, err := a.store.ScoresByCommit(ctx, commitOld)
	if err != nil {
		return nil, nil, &model.StoreUnavailableError{Op: "ScoresByCommit", Err: err}
	}
	if len(newRows) == 0 || len(oldRows) == 0 {
		return nil, nil, model.ErrEmptyResultSet
	}

	oldByTest := make(map[string]model.ScoreRow, len(oldRows))
	for _, row := range oldRows {
		oldByTest[row.Test.Key()] = row
	}

	for _, row := range newRows {
		old, ok := oldByTest[row.Test.Key()]
		if !ok || row.Score == old.Score {
			continue
		}
		ne, nf, ns := row.Score.Counts()
		oe, of, os := old.Score.Counts()
		diff := model.DiffRow{
			Test:      row.Test,
			NewCommit: commitNew,
			OldCommit: commitOld,
			ScoreNew:  row.Score,
			ScoreOld:  old.Score,
			New:       model.Counts{Errors: ne, Fails: nf, Skips: ns},
			Old:       model.Counts{Errors: oe, Fails: of, Skips: os},
		}
		if row.Score > old.Score {
			regressions = append(regressions, diff)
		} else {
			fixes = append(fixes, diff)
		}
	}

	sort.SliceStable(regressions, func(i, j int) bool {
		return regressions[i].Magnitude() > regressions[j].Magnitude()
	})
	sort.SliceStable(fixes, func(i, j int) bool {
		return fixes[i].Magnitude() < fixes[j].Magnitude()
	})

	a.logger.Debug("diffed revisions",
		"new", commitNew, "old", commitOld,
		"regressions", len(regressions), "fixes", len(fixes))
	return regressions, fixes, nil
}

// Counts returns the regression and fix counts between two commits. When
// commitOld is empty, the counts fall back to the recorded score deltas of
// commitNew alone.
func (a *Analyzer) Counts(ctx context.Context, commitNew, commitOld string) (model.DiffCounts, error) {
	if commitOld == "" {
		rows, err := a.store.ScoresByCommit(ctx, commitNew)
		if err != nil {
			return model.DiffCounts{}, &model.StoreUnavailableError{Op: "ScoresByCommit", Err: err}
		}
		var c model.DiffCounts
		for _, row := range rows {
			switch {
			case row.Delta > 0:
				c.Regressions++
			case row.Delta < 0:
				c.Fixes++
			}
		}
		return c, nil
	}

	regressions, fixes, err := a.Diff(ctx, commitNew, commitOld)
	if err != nil {
		return model.DiffCounts{}, err
	}
	return model.DiffCounts{Regressions: len(regressions), Fixes: len(fixes)}, nil
}

// Page slices a diff listing into a one-based page of the given size.
func Page(rows []model.DiffRow, page, perPage int) model.DiffReport {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	start := (page - 1) * perPage
	if start > len(rows) {
		start = len(rows)
	}
	end := start + perPage
	if end > len(rows) {
		end = len(rows)
	}
	return model.DiffReport{Rows: rows[start:end], Page: page, Total: len(rows)}
}
