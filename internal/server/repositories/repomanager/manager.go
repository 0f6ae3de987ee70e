package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/receiptpipe/internal/dbx"
	"github.com/dmitrijs2005/receiptpipe/internal/server/repositories/jobs"
	"github.com/dmitrijs2005/receiptpipe/internal/server/repositories/queue"
	"github.com/dmitrijs2005/receiptpipe/internal/server/repositories/results"
)

// RepositoryManager vends repositories bound to an arbitrary DBTX, so
// services can run several repositories inside one transaction.
type RepositoryManager interface {
	Conn() *sql.DB
	Close() error
	RunMigrations(ctx context.Context) error
	Jobs(db dbx.DBTX) jobs.Repository
	Queue(db dbx.DBTX) queue.Repository
	Results(db dbx.DBTX) results.Repository
}
