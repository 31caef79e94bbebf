package server

import (
	"net/http"
	"runtime"
	"time"

	"github.com/me/testherd/internal/engine"
)

type healthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
	Pending   int    `json:"pending"`
	InFlight  int    `json:"in_flight"`
}

// handleHealth reports lifecycle state. Returns 503 until bootstrap
// completes so load balancers hold traffic back.
// GET /healthz
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	state := engine.StateName(s.engine.State())
	pending, inFlight := s.engine.QueueDepth()
	resp := healthResponse{
		Status:    state,
		Version:   "0.1.0",
		GoVersion: runtime.Version(),
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
		Pending:   pending,
		InFlight:  inFlight,
	}

	status := http.StatusOK
	if !s.engine.Ready() {
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, reqID, resp, nil, nil)
}
