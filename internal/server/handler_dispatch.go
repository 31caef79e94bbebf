package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/me/testherd/pkg/model"
)

// handleNextTest hands out the next unit of work.
// POST /api/v1/tests/next
func (s *Server) handleNextTest(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var req struct {
		Commit    string    `json:"commit"`
		Timestamp time.Time `json:"timestamp"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, reqID, http.StatusBadRequest, &model.APIError{
			Code:    model.ErrCodeValidation,
			Message: "invalid JSON body: " + err.Error(),
		})
		return
	}
	if req.Commit == "" || req.Timestamp.IsZero() {
		respondError(w, reqID, http.StatusBadRequest, &model.APIError{
			Code:    model.ErrCodeValidation,
			Message: "commit and timestamp are required",
		})
		return
	}

	entry, err := s.engine.RequestNextTest(r.Context(), req.Commit, req.Timestamp)
	if err != nil {
		respondEngineError(w, reqID, err)
		return
	}
	respondOK(w, reqID, entry)
}

// handleSubmitResult ingests a worker's raw result payload.
// POST /api/v1/results
func (s *Server) handleSubmitResult(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var req struct {
		Test    model.TestID `json:"test"`
		Commit  string       `json:"commit"`
		Payload string       `json:"payload"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, reqID, http.StatusBadRequest, &model.APIError{
			Code:    model.ErrCodeValidation,
			Message: "invalid JSON body: " + err.Error(),
		})
		return
	}
	if req.Test.Prefix == "" || req.Test.Title == "" || req.Commit == "" {
		respondError(w, reqID, http.StatusBadRequest, &model.APIError{
			Code:    model.ErrCodeValidation,
			Message: "test.prefix, test.title and commit are required",
		})
		return
	}

	if err := s.engine.SubmitResult(r.Context(), req.Test, req.Commit, req.Payload); err != nil {
		respondEngineError(w, reqID, err)
		return
	}
	respondOK(w, reqID, map[string]any{"accepted": true})
}

// handleImportTests adds test identifiers to the catalog.
// POST /api/v1/tests
func (s *Server) handleImportTests(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var req struct {
		Tests []model.TestID `json:"tests"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, reqID, http.StatusBadRequest, &model.APIError{
			Code:    model.ErrCodeValidation,
			Message: "invalid JSON body: " + err.Error(),
		})
		return
	}
	if len(req.Tests) == 0 {
		respondError(w, reqID, http.StatusBadRequest, &model.APIError{
			Code:    model.ErrCodeValidation,
			Message: "tests list is empty",
		})
		return
	}
	for _, t := range req.Tests {
		if t.Prefix == "" || t.Title == "" {
			respondError(w, reqID, http.StatusBadRequest, &model.APIError{
				Code:    model.ErrCodeValidation,
				Message: "every test needs prefix and title",
			})
			return
		}
	}

	if err := s.engine.ImportTests(r.Context(), req.Tests); err != nil {
		respondEngineError(w, reqID, err)
		return
	}
	respondOK(w, reqID, map[string]any{"imported": len(req.Tests)})
}
