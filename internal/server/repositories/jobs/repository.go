package jobs

import (
	"context"
	"time"

	"github.com/dmitrijs2005/receiptpipe/internal/server/models"
)

// StoredJob is a job row as read from the database: the decoded document,
// the raw JSONB payload, and the row timestamps. UpdatedAt is the
// optimistic-concurrency token for Replace.
type StoredJob struct {
	Job       *models.Job
	Data      []byte
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Repository defines persistence operations for job records.
type Repository interface {
	// CreateOrUpdate upserts a job document keyed by JobID. Re-admitting the
	// same jobId replaces the stored document instead of duplicating it.
	CreateOrUpdate(ctx context.Context, job *models.Job) error

	// Get resolves a job by its canonical job_id key. Returns
	// common.ErrorNotFound if no row exists.
	Get(ctx context.Context, jobID string) (*StoredJob, error)

	// Replace writes a new document for jobID only if the row's updated_at
	// still equals expectedUpdatedAt, stamping newUpdatedAt on success.
	// Returns common.ErrVersionConflict when the guard fails.
	Replace(ctx context.Context, jobID string, doc []byte, expectedUpdatedAt, newUpdatedAt time.Time) error

	// ListRecent returns up to limit jobs ordered by creation time descending.
	ListRecent(ctx context.Context, limit int) ([]*models.Job, error)
}
