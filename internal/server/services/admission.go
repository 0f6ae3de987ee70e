package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/receiptpipe/internal/common"
	"github.com/dmitrijs2005/receiptpipe/internal/dbx"
	"github.com/dmitrijs2005/receiptpipe/internal/logging"
	sc "github.com/dmitrijs2005/receiptpipe/internal/server/config"
	"github.com/dmitrijs2005/receiptpipe/internal/server/models"
	"github.com/dmitrijs2005/receiptpipe/internal/server/repositories/repomanager"
)

// ErrNoSuccessfulUploads is returned by ConfirmUploads when every outcome in
// the batch reports failure. No job is created and nothing is enqueued.
var ErrNoSuccessfulUploads = fmt.Errorf("%w: no successful uploads to process", common.ErrorValidation)

// AdmissionService is the batch confirmation gate: it turns a set of
// successful direct-to-storage uploads into a persisted job plus a work
// queue entry. Both writes happen in a single database transaction, so a
// crash can never enqueue work without a job record or vice versa.
type AdmissionService struct {
	manager   repomanager.RepositoryManager
	presigner *Presigner
	config    *sc.Config
	logger    logging.Logger
}

// NewAdmissionService constructs the confirmation gate.
func NewAdmissionService(manager repomanager.RepositoryManager, presigner *Presigner, config *sc.Config, logger logging.Logger) *AdmissionService {
	return &AdmissionService{
		manager:   manager,
		presigner: presigner,
		config:    config,
		logger:    logger.With("module", "admission_service"),
	}
}

// AdmissionResult summarizes one admitted batch.
type AdmissionResult struct {
	JobID          string
	BatchID        string
	ProcessedFiles int
	FailedFiles    int
}

// ConfirmUploads validates the reported outcomes, partitions them into
// successes and failures, and admits the batch when at least one file
// succeeded. JobFiles preserve manifest order filtered to successes.
//
// The client's success flags are trusted here; the worker verifies object
// existence when it fetches the files.
func (s *AdmissionService) ConfirmUploads(ctx context.Context, batchID string, outcomes []models.UploadOutcome, metadata map[string]any) (*AdmissionResult, error) {

	if batchID == "" {
		return nil, fmt.Errorf("%w: batchId is required", common.ErrorValidation)
	}
	if len(outcomes) == 0 {
		return nil, fmt.Errorf("%w: uploadedFiles array required", common.ErrorValidation)
	}
	for i, o := range outcomes {
		if o.StorageKey == "" {
			return nil, fmt.Errorf("%w: uploadedFiles[%d] is missing s3Key", common.ErrorValidation, i)
		}
	}

	var successes []models.UploadOutcome
	for _, o := range outcomes {
		if o.Success {
			successes = append(successes, o)
		}
	}

	if len(successes) == 0 {
		return nil, ErrNoSuccessfulUploads
	}

	jobID, err := common.MakeRandHexString(16)
	if err != nil {
		return nil, fmt.Errorf("generating job id: %w", err)
	}

	if metadata == nil {
		metadata = map[string]any{}
	}

	files := make([]models.JobFile, 0, len(successes))
	for _, o := range successes {
		originalName := o.OriginalName
		if originalName == "" {
			originalName = "unknown"
		}
		files = append(files, models.JobFile{
			StorageKey:   o.StorageKey,
			StorageURL:   s.presigner.ObjectURL(o.StorageKey),
			OriginalName: originalName,
		})
	}

	now := time.Now().UTC()
	job := &models.Job{
		JobID:     jobID,
		BatchID:   batchID,
		Type:      models.JobTypeImageProcessing,
		Files:     files,
		Metadata:  metadata,
		Status:    models.JobStatusProcessing,
		CreatedAt: now,
		UpdatedAt: now,
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("marshal job: %w", err)
	}

	// One transaction for both the durable record and the queue entry.
	err = dbx.WithTx(ctx, s.manager.Conn(), nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.manager.Jobs(tx).CreateOrUpdate(ctx, job); err != nil {
			return err
		}
		return s.manager.Queue(tx).Enqueue(ctx, s.config.QueueName, payload)
	})
	if err != nil {
		return nil, fmt.Errorf("admitting batch %s: %w", batchID, err)
	}

	s.logger.Info(ctx, "queued job for processing",
		"job_id", jobID, "batch_id", batchID, "files", len(successes))

	return &AdmissionResult{
		JobID:          jobID,
		BatchID:        batchID,
		ProcessedFiles: len(successes),
		FailedFiles:    len(outcomes) - len(successes),
	}, nil
}
