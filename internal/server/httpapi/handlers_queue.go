package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"
)

// maxPullWaitSeconds caps long-poll pulls so a worker cannot hold a
// connection open indefinitely.
const maxPullWaitSeconds = 30

// rawEntry decodes a stored queue payload for the response, falling back
// to the raw text when the payload is not valid JSON.
func rawEntry(payload []byte) any {
	if payload == nil {
		return nil
	}
	var decoded any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return map[string]any{"raw": string(payload)}
	}
	return decoded
}

func (s *Server) handleListQueue(w http.ResponseWriter, r *http.Request) {
	entries, err := s.queue.List(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if entries == nil {
		entries = []any{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"queue":   s.config.QueueName,
		"entries": entries,
		"count":   len(entries),
	})
}

func (s *Server) handlePeekQueue(w http.ResponseWriter, r *http.Request) {
	payload, err := s.queue.Peek(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entry": rawEntry(payload)})
}

func (s *Server) handleQueueLength(w http.ResponseWriter, r *http.Request) {
	length, err := s.queue.Length(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"queue":  s.config.QueueName,
		"length": length,
	})
}

// handlePullQueue drains one entry. With ?wait=<seconds> it long-polls,
// blocking up to the given time for an entry to appear; the entry field is
// null when the wait expires with the queue still empty.
func (s *Server) handlePullQueue(w http.ResponseWriter, r *http.Request) {
	var payload []byte
	var err error

	if raw := r.URL.Query().Get("wait"); raw != "" {
		seconds, convErr := strconv.Atoi(raw)
		if convErr != nil || seconds < 0 {
			s.writeError(w, http.StatusBadRequest, "wait must be a non-negative integer", convErr)
			return
		}
		if seconds > maxPullWaitSeconds {
			seconds = maxPullWaitSeconds
		}
		payload, err = s.queue.Dequeue(r.Context(), time.Duration(seconds)*time.Second)
	} else {
		payload, err = s.queue.Pull(r.Context())
	}
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entry": rawEntry(payload)})
}

func (s *Server) handleClearQueue(w http.ResponseWriter, r *http.Request) {
	cleared, err := s.queue.Clear(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"queue":   s.config.QueueName,
		"cleared": cleared,
	})
}
