package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/receiptpipe/internal/common"
	"github.com/dmitrijs2005/receiptpipe/internal/logging"
	"github.com/dmitrijs2005/receiptpipe/internal/server/models"
	"github.com/dmitrijs2005/receiptpipe/internal/server/repositories/repomanager"
)

// merge-update retries under concurrent writers before giving up
const maxUpdateAttempts = 3

// defaultListLimit caps GET /jobs when no explicit limit is supplied.
const defaultListLimit = 100

const maxListLimit = 500

// JobService exposes read and merge-update access to job records. Status
// transitions arriving through Update are validated against the forward-only
// lifecycle before anything is written.
type JobService struct {
	manager repomanager.RepositoryManager
	logger  logging.Logger
}

// NewJobService constructs the job record service.
func NewJobService(manager repomanager.RepositoryManager, logger logging.Logger) *JobService {
	return &JobService{
		manager: manager,
		logger:  logger.With("module", "job_service"),
	}
}

// Get resolves a job by its id.
func (s *JobService) Get(ctx context.Context, jobID string) (*models.Job, error) {
	if jobID == "" {
		return nil, fmt.Errorf("%w: missing jobId", common.ErrorValidation)
	}

	stored, err := s.manager.Jobs(s.manager.Conn()).Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return stored.Job, nil
}

// ListRecent returns the most recently created jobs, newest first.
func (s *JobService) ListRecent(ctx context.Context, limit int) ([]*models.Job, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return s.manager.Jobs(s.manager.Conn()).ListRecent(ctx, limit)
}

// Update applies a shallow merge of fields over the stored job document:
// top-level keys in fields win, jobId stays the original value regardless of
// what the caller supplies, and updatedAt is stamped. The write is guarded
// by an optimistic compare-and-swap on the row's updated_at so concurrent
// worker updates cannot be lost; on conflict the read-merge-write cycle is
// retried.
//
// Returns common.ErrorNotFound when the job does not exist. It is never
// fabricated from an update.
func (s *JobService) Update(ctx context.Context, jobID string, fields map[string]any) (*models.Job, error) {
	if jobID == "" {
		return nil, fmt.Errorf("%w: missing jobId", common.ErrorValidation)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: no update data provided", common.ErrorValidation)
	}

	repo := s.manager.Jobs(s.manager.Conn())

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		stored, err := repo.Get(ctx, jobID)
		if err != nil {
			return nil, err
		}

		if raw, ok := fields["status"]; ok {
			str, ok := raw.(string)
			if !ok {
				return nil, fmt.Errorf("%w: status must be a string", common.ErrorValidation)
			}
			next := models.JobStatus(str)
			if !next.Valid() {
				return nil, fmt.Errorf("%w: unknown status %q", common.ErrorValidation, str)
			}
			if !models.CanTransition(stored.Job.Status, next) {
				return nil, fmt.Errorf("%w: cannot move job from %s to %s", common.ErrorValidation, stored.Job.Status, next)
			}
		}

		var merged map[string]any
		if err := json.Unmarshal(stored.Data, &merged); err != nil {
			return nil, fmt.Errorf("unmarshal stored job %s: %w", jobID, err)
		}

		for k, v := range fields {
			merged[k] = v
		}

		now := time.Now().UTC()
		merged["jobId"] = stored.Job.JobID
		merged["updatedAt"] = now.Format(time.RFC3339Nano)

		doc, err := json.Marshal(merged)
		if err != nil {
			return nil, fmt.Errorf("marshal merged job %s: %w", jobID, err)
		}

		// The merged document must still be a well-formed Job before it is
		// written: the column stores raw JSON, so a bad merge would persist
		// and poison every later read.
		var job models.Job
		if err := json.Unmarshal(doc, &job); err != nil {
			return nil, fmt.Errorf("%w: merged document is not a valid job", common.ErrorValidation)
		}
		if len(job.Files) == 0 {
			return nil, fmt.Errorf("%w: job must keep at least one file", common.ErrorValidation)
		}

		err = repo.Replace(ctx, jobID, doc, stored.UpdatedAt, now)
		if errors.Is(err, common.ErrVersionConflict) {
			s.logger.Warn(ctx, "concurrent job update, retrying", "job_id", jobID, "attempt", attempt+1)
			continue
		}
		if err != nil {
			return nil, err
		}

		return &job, nil
	}

	return nil, common.ErrVersionConflict
}
