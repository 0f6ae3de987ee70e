package results

import (
	"context"

	"github.com/dmitrijs2005/receiptpipe/internal/server/models"
)

// Repository defines persistence operations for structured AI extraction
// results, denormalized by job_id for dashboard queries.
type Repository interface {
	// Insert appends one extraction result for a job.
	Insert(ctx context.Context, result *models.AIResult) error

	// SelectByJobID returns all results recorded for a job, oldest first.
	SelectByJobID(ctx context.Context, jobID string) ([]*models.AIResult, error)
}
