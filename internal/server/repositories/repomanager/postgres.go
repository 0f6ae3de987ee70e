// Package repomanager provides a concrete RepositoryManager for PostgreSQL,
// wiring together repository constructors and database migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/receiptpipe/internal/dbx"
	"github.com/dmitrijs2005/receiptpipe/internal/server/migrations"
	"github.com/dmitrijs2005/receiptpipe/internal/server/repositories/jobs"
	"github.com/dmitrijs2005/receiptpipe/internal/server/repositories/queue"
	"github.com/dmitrijs2005/receiptpipe/internal/server/repositories/results"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PostgresRepositoryManager owns the database handle and vends
// PostgreSQL-backed repository implementations.
type PostgresRepositoryManager struct {
	db *sql.DB
}

// Conn exposes the underlying database handle for transaction management.
func (m *PostgresRepositoryManager) Conn() *sql.DB {
	return m.db
}

// Close releases the database handle.
func (m *PostgresRepositoryManager) Close() error {
	return m.db.Close()
}

// Jobs returns a jobs.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Jobs(db dbx.DBTX) jobs.Repository {
	return jobs.NewPostgresRepository(db)
}

// Queue returns a queue.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Queue(db dbx.DBTX) queue.Repository {
	return queue.NewPostgresRepository(db)
}

// Results returns a results.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Results(db dbx.DBTX) results.Repository {
	return results.NewPostgresRepository(db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the managed database connection.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, m.db, "."); err != nil {
		return err
	}
	return nil
}

// NewPostgresRepositoryManager opens the database and constructs a
// PostgreSQL-backed RepositoryManager.
func NewPostgresRepositoryManager(dsn string) (*PostgresRepositoryManager, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	return &PostgresRepositoryManager{db: db}, nil
}
