// Package queue provides the PostgreSQL-backed work queue shared by batch
// admission (producer) and the AI worker (consumer). Keeping the queue in
// the same database as the job records lets admission write both in one
// transaction.
package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/receiptpipe/internal/dbx"
)

// PostgresRepository implements the work queue over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Enqueue appends a payload to the named queue.
func (r *PostgresRepository) Enqueue(ctx context.Context, queueName string, payload []byte) error {
	query := `INSERT INTO job_queue (queue_name, payload) VALUES ($1, $2)`
	if _, err := r.db.ExecContext(ctx, query, queueName, payload); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// PopOldest removes and returns the oldest entry. SKIP LOCKED keeps
// concurrent consumers from blocking on (or double-claiming) the same row.
func (r *PostgresRepository) PopOldest(ctx context.Context, queueName string) ([]byte, error) {
	query := `
		DELETE FROM job_queue
		WHERE id = (
			SELECT id FROM job_queue
			WHERE queue_name = $1
			ORDER BY id
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING payload;
	`
	var payload []byte
	err := r.db.QueryRowContext(ctx, query, queueName).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return payload, nil
}

// PeekNewest returns the most recently enqueued entry without consuming it.
func (r *PostgresRepository) PeekNewest(ctx context.Context, queueName string) ([]byte, error) {
	query := `SELECT payload FROM job_queue WHERE queue_name = $1 ORDER BY id DESC LIMIT 1`

	var payload []byte
	err := r.db.QueryRowContext(ctx, query, queueName).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return payload, nil
}

// List returns every pending entry, newest first, without consuming any.
func (r *PostgresRepository) List(ctx context.Context, queueName string) ([][]byte, error) {
	query := `SELECT payload FROM job_queue WHERE queue_name = $1 ORDER BY id DESC`

	rows, err := r.db.QueryContext(ctx, query, queueName)
	if err != nil {
		return nil, fmt.Errorf("failed to select queue entries: %w", err)
	}
	defer rows.Close()

	var result [][]byte
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		result = append(result, payload)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Length returns the number of pending entries in the named queue.
func (r *PostgresRepository) Length(ctx context.Context, queueName string) (int64, error) {
	query := `SELECT COUNT(*) FROM job_queue WHERE queue_name = $1`

	var n int64
	if err := r.db.QueryRowContext(ctx, query, queueName).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

// Clear drops every pending entry and reports how many were removed.
func (r *PostgresRepository) Clear(ctx context.Context, queueName string) (int64, error) {
	query := `DELETE FROM job_queue WHERE queue_name = $1`

	res, err := r.db.ExecContext(ctx, query, queueName)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}
