package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/receiptpipe/internal/server/models"
)

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobs.Get(r.Context(), r.PathValue("jobId"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

type updateJobResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Job     *models.Job `json:"job"`
}

func (s *Server) handleUpdateJob(w http.ResponseWriter, r *http.Request) {
	var fields map[string]any
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	job, err := s.jobs.Update(r.Context(), r.PathValue("jobId"), fields)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, updateJobResponse{
		Success: true,
		Message: "job updated successfully",
		Job:     job,
	})
}

type listJobsResponse struct {
	Jobs  []*models.Job `json:"jobs"`
	Count int           `json:"count"`
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a non-negative integer", err)
			return
		}
		limit = n
	}

	jobs, err := s.jobs.ListRecent(r.Context(), limit)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if jobs == nil {
		jobs = []*models.Job{}
	}

	writeJSON(w, http.StatusOK, listJobsResponse{Jobs: jobs, Count: len(jobs)})
}
