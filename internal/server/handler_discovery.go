package server

import "net/http"

type endpointInfo struct {
	Method string `json:"method"`
	Path   string `json:"path"`
	Desc   string `json:"desc"`
}

// handleDiscovery lists the available API endpoints.
// GET /api/v1/
func (s *Server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	respondOK(w, reqID, map[string]any{
		"name": "testherd API",
		"endpoints": []endpointInfo{
			{Method: "POST", Path: "/api/v1/tests/next", Desc: "request the next test to run"},
			{Method: "POST", Path: "/api/v1/results", Desc: "submit a raw test result"},
			{Method: "POST", Path: "/api/v1/tests", Desc: "import test catalog entries"},
			{Method: "GET", Path: "/api/v1/topfails", Desc: "worst-offender table"},
			{Method: "GET", Path: "/api/v1/stats", Desc: "latest revision summary"},
			{Method: "GET", Path: "/api/v1/distr/fails", Desc: "fail count histogram"},
			{Method: "GET", Path: "/api/v1/distr/skips", Desc: "skip count histogram"},
			{Method: "GET", Path: "/api/v1/regressions/{new}/{old}", Desc: "tests that got worse"},
			{Method: "GET", Path: "/api/v1/fixes/{new}/{old}", Desc: "tests that improved"},
			{Method: "GET", Path: "/healthz", Desc: "lifecycle state"},
		},
	})
}
