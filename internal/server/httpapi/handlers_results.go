package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/dmitrijs2005/receiptpipe/internal/server/models"
)

type saveJobAndResultsRequest struct {
	Job     *models.Job        `json:"job"`
	Results []*models.AIResult `json:"results"`
}

func (s *Server) handleSaveJobAndResults(w http.ResponseWriter, r *http.Request) {
	var req saveJobAndResultsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Job == nil || req.Results == nil {
		s.writeError(w, http.StatusBadRequest, "missing job or results data", nil)
		return
	}

	if err := s.results.SaveJobWithResults(r.Context(), req.Job, req.Results); err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Job and results saved",
	})
}

type jobWithResultsResponse struct {
	Job     *models.Job        `json:"job"`
	Results []*models.AIResult `json:"results"`
}

func (s *Server) handleGetJobAndResults(w http.ResponseWriter, r *http.Request) {
	job, results, err := s.results.GetJobWithResults(r.Context(), r.PathValue("jobId"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if results == nil {
		results = []*models.AIResult{}
	}

	writeJSON(w, http.StatusOK, jobWithResultsResponse{Job: job, Results: results})
}
