package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/receiptpipe/internal/server/auth"
	"github.com/google/uuid"
)

// statusRecorder captures the response status for the access log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// withRequestLog tags every request with a generated id and writes one
// access-log line when it completes.
func (s *Server) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		log := s.logger.With("request_id", requestID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		log.Info(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start).String(),
		)
	})
}

// requireOperator guards destructive queue operations: the request must
// carry a bearer token signed with the server's secret and the operator
// role. Read-only queue introspection stays open for the dashboard.
func (s *Server) requireOperator(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			s.writeError(w, http.StatusUnauthorized, "unauthorized", nil)
			return
		}
		if err := auth.VerifyOperatorToken(token, []byte(s.config.SecretKey)); err != nil {
			s.writeError(w, http.StatusUnauthorized, "unauthorized", nil)
			return
		}
		next(w, r)
	}
}
