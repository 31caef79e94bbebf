package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/me/testherd/pkg/model"
)

func listOptions(r *http.Request) model.ListOptions {
	opts := model.DefaultListOptions()
	if v := r.URL.Query().Get("limit"); v != "" {
		opts.Limit, _ = strconv.Atoi(v)
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		opts.Offset, _ = strconv.Atoi(v)
	}
	opts.Clamp()
	return opts
}

// handleTopFails returns a page of the worst-offender table.
// GET /api/v1/topfails
func (s *Server) handleTopFails(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	opts := listOptions(r)

	fails, total, err := s.engine.TopFails(opts.Offset, opts.Limit)
	if err != nil {
		respondEngineError(w, reqID, err)
		return
	}
	respondList(w, reqID, fails, &model.Pagination{
		Total:   total,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
		HasMore: opts.Offset+len(fails) < total,
	})
}

// handleStats returns the dashboard summary for the latest revision.
// GET /api/v1/stats
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	stats, err := s.engine.Statistics(r.Context())
	if err != nil {
		respondEngineError(w, reqID, err)
		return
	}
	respondOK(w, reqID, stats)
}

// distrBucket is one histogram bucket on the wire, ordered by value.
type distrBucket struct {
	Value int `json:"value"`
	Count int `json:"count"`
}

func distrBuckets(h model.Histogram) []distrBucket {
	out := make([]distrBucket, 0, len(h))
	for _, v := range h.Buckets() {
		out = append(out, distrBucket{Value: v, Count: h[v]})
	}
	return out
}

// handleFailsDistr returns the latest commit's fail histogram.
// GET /api/v1/distr/fails
func (s *Server) handleFailsDistr(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	h, err := s.engine.FailsDistribution()
	if err != nil {
		respondEngineError(w, reqID, err)
		return
	}
	respondOK(w, reqID, distrBuckets(h))
}

// handleSkipsDistr returns the latest commit's skip histogram.
// GET /api/v1/distr/skips
func (s *Server) handleSkipsDistr(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	h, err := s.engine.SkipsDistribution()
	if err != nil {
		respondEngineError(w, reqID, err)
		return
	}
	respondOK(w, reqID, distrBuckets(h))
}

func diffParams(r *http.Request) (commitNew, commitOld string, page, perPage int) {
	commitNew = chi.URLParam(r, "new")
	commitOld = chi.URLParam(r, "old")
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	perPage, _ = strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	return commitNew, commitOld, page, perPage
}

// handleRegressions lists tests that got worse between two revisions.
// GET /api/v1/regressions/{new}/{old}
func (s *Server) handleRegressions(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	commitNew, commitOld, page, perPage := diffParams(r)

	report, err := s.engine.RegressionsBetween(r.Context(), commitNew, commitOld, page, perPage)
	if err != nil {
		respondEngineError(w, reqID, err)
		return
	}
	respondDiff(w, reqID, report, perPage)
}

// handleFixes lists tests that improved between two revisions.
// GET /api/v1/fixes/{new}/{old}
func (s *Server) handleFixes(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	commitNew, commitOld, page, perPage := diffParams(r)

	report, err := s.engine.FixesBetween(r.Context(), commitNew, commitOld, page, perPage)
	if err != nil {
		respondEngineError(w, reqID, err)
		return
	}
	respondDiff(w, reqID, report, perPage)
}

func respondDiff(w http.ResponseWriter, reqID string, report model.DiffReport, perPage int) {
	offset := (report.Page - 1) * perPage
	respondList(w, reqID, report.Rows, &model.Pagination{
		Total:   report.Total,
		Limit:   perPage,
		Offset:  offset,
		HasMore: offset+len(report.Rows) < report.Total,
	})
}
