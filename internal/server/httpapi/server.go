// Package httpapi exposes the admission pipeline over HTTP: upload-URL
// issuance, batch confirmation, job reads and merge-updates, queue
// introspection, and AI result storage.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/receiptpipe/internal/logging"
	"github.com/dmitrijs2005/receiptpipe/internal/server/config"
	"github.com/dmitrijs2005/receiptpipe/internal/server/services"
)

// shutdownTimeout bounds how long in-flight requests may run after the
// server is asked to stop.
const shutdownTimeout = 5 * time.Second

// Server wires the application services to their routes.
type Server struct {
	config    *config.Config
	logger    logging.Logger
	uploads   *services.UploadService
	admission *services.AdmissionService
	jobs      *services.JobService
	queue     *services.QueueService
	results   *services.ResultsService
	presigner *services.Presigner
}

// NewServer constructs the HTTP server front-end.
func NewServer(
	c *config.Config,
	l logging.Logger,
	uploads *services.UploadService,
	admission *services.AdmissionService,
	jobs *services.JobService,
	queue *services.QueueService,
	results *services.ResultsService,
	presigner *services.Presigner,
) *Server {
	return &Server{
		config:    c,
		logger:    l.With("module", "http_server"),
		uploads:   uploads,
		admission: admission,
		jobs:      jobs,
		queue:     queue,
		results:   results,
		presigner: presigner,
	}
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleHealth)

	mux.HandleFunc("POST /upload/urls", s.handleGenerateUploadURLs)
	mux.HandleFunc("POST /upload/confirm", s.handleConfirmUploads)

	mux.HandleFunc("GET /jobs", s.handleListJobs)
	mux.HandleFunc("GET /jobs/{jobId}", s.handleGetJob)
	mux.HandleFunc("PUT /jobs/{jobId}", s.handleUpdateJob)

	mux.HandleFunc("GET /queue", s.handleListQueue)
	mux.HandleFunc("GET /queue/peek", s.handlePeekQueue)
	mux.HandleFunc("GET /queue/length", s.handleQueueLength)
	mux.HandleFunc("POST /queue/pull", s.requireOperator(s.handlePullQueue))
	mux.HandleFunc("DELETE /queue", s.requireOperator(s.handleClearQueue))

	mux.HandleFunc("GET /files/url", s.handleFileURL)

	mux.HandleFunc("POST /ai/save", s.handleSaveJobAndResults)
	mux.HandleFunc("GET /ai/{jobId}", s.handleGetJobAndResults)

	return s.withRequestLog(mux)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {

	srv := &http.Server{
		Addr:              s.config.EndpointAddrHTTP,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "shutdown error", "error", err.Error())
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.config.EndpointAddrHTTP)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("Backend is ready."))
}
