// Package jobs provides the PostgreSQL-backed repository for durable job
// records. The full job document is stored as a JSONB blob keyed by job_id,
// which allows the schema to evolve without migrations.
package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/receiptpipe/internal/common"
	"github.com/dmitrijs2005/receiptpipe/internal/dbx"
	"github.com/dmitrijs2005/receiptpipe/internal/server/models"
)

// PostgresRepository implements job storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// CreateOrUpdate upserts a job document by job_id. The conflicting row's
// document and timestamps are replaced by the incoming job, which makes
// batch-confirmation retries safe.
func (r *PostgresRepository) CreateOrUpdate(ctx context.Context, job *models.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	query := `
		INSERT INTO jobs (job_id, job_data, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (job_id)
		DO UPDATE SET
			job_data = EXCLUDED.job_data,
			created_at = EXCLUDED.created_at,
			updated_at = EXCLUDED.updated_at;
	`
	res, err := r.db.ExecContext(ctx, query, job.JobID, data, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
	return nil
}

// Get resolves a job by job_id. Returns common.ErrorNotFound for missing rows.
func (r *PostgresRepository) Get(ctx context.Context, jobID string) (*StoredJob, error) {
	query := `SELECT job_data, created_at, updated_at FROM jobs WHERE job_id = $1`

	var data []byte
	var createdAt, updatedAt time.Time
	err := r.db.QueryRowContext(ctx, query, jobID).Scan(&data, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	var job models.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("unmarshal job %s: %w", jobID, err)
	}

	return &StoredJob{Job: &job, Data: data, CreatedAt: createdAt, UpdatedAt: updatedAt}, nil
}

// Replace performs the guarded write of a merge-update: the document is
// replaced only when updated_at still matches the value the caller read.
func (r *PostgresRepository) Replace(ctx context.Context, jobID string, doc []byte, expectedUpdatedAt, newUpdatedAt time.Time) error {
	query := `
		UPDATE jobs
		SET job_data = $1, updated_at = $2
		WHERE job_id = $3 AND updated_at = $4;
	`
	res, err := r.db.ExecContext(ctx, query, doc, newUpdatedAt, jobID, expectedUpdatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrVersionConflict
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}

// ListRecent returns the most recently created jobs, newest first, for
// dashboard consumption.
func (r *PostgresRepository) ListRecent(ctx context.Context, limit int) ([]*models.Job, error) {
	query := `SELECT job_data FROM jobs ORDER BY created_at DESC LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select jobs: %w", err)
	}
	defer rows.Close()

	var result []*models.Job
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var job models.Job
		if err := json.Unmarshal(data, &job); err != nil {
			return nil, fmt.Errorf("unmarshal job: %w", err)
		}
		result = append(result, &job)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
