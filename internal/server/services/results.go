package services

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/receiptpipe/internal/common"
	"github.com/dmitrijs2005/receiptpipe/internal/dbx"
	"github.com/dmitrijs2005/receiptpipe/internal/logging"
	"github.com/dmitrijs2005/receiptpipe/internal/server/models"
	"github.com/dmitrijs2005/receiptpipe/internal/server/repositories/repomanager"
)

// ResultsService stores structured extraction output reported by the AI
// worker and serves it back to the dashboard alongside the job record.
type ResultsService struct {
	manager repomanager.RepositoryManager
	logger  logging.Logger
}

// NewResultsService constructs the results service.
func NewResultsService(manager repomanager.RepositoryManager, logger logging.Logger) *ResultsService {
	return &ResultsService{
		manager: manager,
		logger:  logger.With("module", "results_service"),
	}
}

// SaveJobWithResults upserts the job document and appends its extraction
// results in one transaction, so a partially recorded report can never be
// observed.
func (s *ResultsService) SaveJobWithResults(ctx context.Context, job *models.Job, rs []*models.AIResult) error {
	if job == nil || job.JobID == "" {
		return fmt.Errorf("%w: missing job or jobId", common.ErrorValidation)
	}

	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	if job.Status == "" {
		job.Status = models.JobStatusPending
	}
	if job.Metadata == nil {
		job.Metadata = map[string]any{}
	}

	err := dbx.WithTx(ctx, s.manager.Conn(), nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.manager.Jobs(tx).CreateOrUpdate(ctx, job); err != nil {
			return err
		}
		resultRepo := s.manager.Results(tx)
		for _, r := range rs {
			r.JobID = job.JobID
			if err := resultRepo.Insert(ctx, r); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("saving job %s with results: %w", job.JobID, err)
	}

	s.logger.Info(ctx, "saved job with results", "job_id", job.JobID, "results", len(rs))
	return nil
}

// GetJobWithResults returns the stored job together with all its results.
func (s *ResultsService) GetJobWithResults(ctx context.Context, jobID string) (*models.Job, []*models.AIResult, error) {
	if jobID == "" {
		return nil, nil, fmt.Errorf("%w: missing jobId", common.ErrorValidation)
	}

	stored, err := s.manager.Jobs(s.manager.Conn()).Get(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}

	rs, err := s.manager.Results(s.manager.Conn()).SelectByJobID(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}

	return stored.Job, rs, nil
}
