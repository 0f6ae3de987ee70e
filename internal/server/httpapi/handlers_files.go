package httpapi

import (
	"net/http"
)

func (s *Server) handleFileURL(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		s.writeError(w, http.StatusBadRequest, "key query parameter is required", nil)
		return
	}

	url, err := s.presigner.PresignedGetURL(r.Context(), key)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"url":       url,
		"expiresIn": int(s.config.DownloadURLTTL.Seconds()),
	})
}
