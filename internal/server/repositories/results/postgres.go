// Package results provides the PostgreSQL-backed repository for structured
// extraction output written by the AI worker.
package results

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/receiptpipe/internal/dbx"
	"github.com/dmitrijs2005/receiptpipe/internal/server/models"
)

// PostgresRepository implements result storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Insert appends one extraction result row linked to a job.
func (r *PostgresRepository) Insert(ctx context.Context, result *models.AIResult) error {
	createdAt := result.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := `
		INSERT INTO ai_results (job_id, company_name, price, receipt_date, uploader_name, raw_ocr, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7);
	`
	_, err := r.db.ExecContext(ctx, query,
		result.JobID, result.CompanyName, result.Price, result.ReceiptDate, result.UploaderName, result.RawOCR, createdAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// SelectByJobID returns all results for a job, oldest first.
func (r *PostgresRepository) SelectByJobID(ctx context.Context, jobID string) ([]*models.AIResult, error) {
	query := `
		SELECT id, job_id, company_name, price, receipt_date, uploader_name, raw_ocr, created_at
		FROM ai_results
		WHERE job_id = $1
		ORDER BY id;
	`
	rows, err := r.db.QueryContext(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to select results: %w", err)
	}
	defer rows.Close()

	var result []*models.AIResult
	for rows.Next() {
		var item models.AIResult
		if err := rows.Scan(
			&item.ID, &item.JobID, &item.CompanyName, &item.Price,
			&item.ReceiptDate, &item.UploaderName, &item.RawOCR, &item.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
