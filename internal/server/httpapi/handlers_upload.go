package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/receiptpipe/internal/server/models"
	"github.com/dmitrijs2005/receiptpipe/internal/server/services"
)

type generateUploadURLsRequest struct {
	BatchID string                  `json:"batchId"`
	Files   []models.FileDescriptor `json:"files"`
}

type generateUploadURLsResponse struct {
	Success    bool                          `json:"success"`
	BatchID    string                        `json:"batchId"`
	UploadURLs []*models.UploadAuthorization `json:"uploadUrls"`
	ExpiresIn  int                           `json:"expiresIn"`
	TotalFiles int                           `json:"totalFiles"`
	Message    string                        `json:"message"`
}

func (s *Server) handleGenerateUploadURLs(w http.ResponseWriter, r *http.Request) {
	var req generateUploadURLsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	batch, err := s.uploads.IssueUploadURLs(r.Context(), req.BatchID, req.Files)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, generateUploadURLsResponse{
		Success:    true,
		BatchID:    batch.BatchID,
		UploadURLs: batch.Authorizations,
		ExpiresIn:  int(s.config.UploadURLTTL.Seconds()),
		TotalFiles: len(batch.Authorizations),
		Message:    "Upload URLs generated successfully",
	})
}

type confirmUploadsRequest struct {
	BatchID       string                 `json:"batchId"`
	UploadedFiles []models.UploadOutcome `json:"uploadedFiles"`
	Metadata      map[string]any         `json:"metadata"`
}

type confirmUploadsResponse struct {
	Success        bool   `json:"success"`
	JobID          string `json:"jobId"`
	BatchID        string `json:"batchId"`
	ProcessedFiles int    `json:"processedFiles"`
	FailedFiles    int    `json:"failedFiles"`
	Message        string `json:"message"`
}

func (s *Server) handleConfirmUploads(w http.ResponseWriter, r *http.Request) {
	var req confirmUploadsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	result, err := s.admission.ConfirmUploads(r.Context(), req.BatchID, req.UploadedFiles, req.Metadata)
	if err != nil {
		if errors.Is(err, services.ErrNoSuccessfulUploads) {
			var failed []models.UploadOutcome
			for _, f := range req.UploadedFiles {
				if !f.Success {
					failed = append(failed, f)
				}
			}
			writeJSON(w, http.StatusBadRequest, errorBody{
				Error:       "no successful uploads to process",
				FailedFiles: failed,
			})
			return
		}
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, confirmUploadsResponse{
		Success:        true,
		JobID:          result.JobID,
		BatchID:        result.BatchID,
		ProcessedFiles: result.ProcessedFiles,
		FailedFiles:    result.FailedFiles,
		Message:        "Upload batch queued for processing",
	})
}
