package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/receiptpipe/internal/common"
	"github.com/dmitrijs2005/receiptpipe/internal/server/models"
)

// errorBody is the stable error envelope: the error string is always
// present, details only in development mode, failedFiles only on fully
// failed batch confirmations.
type errorBody struct {
	Error       string                 `json:"error"`
	Details     string                 `json:"details,omitempty"`
	FailedFiles []models.UploadOutcome `json:"failedFiles,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string, err error) {
	body := errorBody{Error: msg}
	if s.config.DevMode && err != nil {
		body.Details = err.Error()
	}
	writeJSON(w, status, body)
}

// presentable strips the sentinel prefix from a validation error so the
// client sees "file type text/plain not allowed" rather than the internal
// wrapping.
func presentable(err error) string {
	return strings.TrimPrefix(err.Error(), common.ErrorValidation.Error()+": ")
}

// writeServiceError maps service errors onto the HTTP status taxonomy.
// Validation detail is safe to show; everything unexpected is suppressed
// outside development mode.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, common.ErrorValidation):
		s.writeError(w, http.StatusBadRequest, presentable(err), nil)
	case errors.Is(err, common.ErrorNotFound):
		s.writeError(w, http.StatusNotFound, "not found", nil)
	case errors.Is(err, common.ErrInvalidToken):
		s.writeError(w, http.StatusUnauthorized, "unauthorized", nil)
	case errors.Is(err, common.ErrVersionConflict):
		s.writeError(w, http.StatusConflict, "conflicting concurrent update", nil)
	default:
		s.writeError(w, http.StatusInternalServerError, "internal server error", err)
	}
}
