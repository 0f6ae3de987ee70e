package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/dmitrijs2005/receiptpipe/internal/common"
	"github.com/dmitrijs2005/receiptpipe/internal/dbx"
	"github.com/dmitrijs2005/receiptpipe/internal/logging"
	"github.com/dmitrijs2005/receiptpipe/internal/server/models"
	"github.com/dmitrijs2005/receiptpipe/internal/server/repositories/jobs"
	"github.com/dmitrijs2005/receiptpipe/internal/server/repositories/queue"
	"github.com/dmitrijs2005/receiptpipe/internal/server/repositories/results"
)

func discardLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// fakeJobsRepo is an in-memory jobs.Repository with optional injected
// conflicts and errors.
type fakeJobsRepo struct {
	mu               sync.Mutex
	stored           map[string]*jobs.StoredJob
	replaceConflicts int
	createErr        error
	created          []*models.Job
}

func newFakeJobsRepo() *fakeJobsRepo {
	return &fakeJobsRepo{stored: map[string]*jobs.StoredJob{}}
}

func (f *fakeJobsRepo) put(job *models.Job) {
	data, _ := json.Marshal(job)
	f.stored[job.JobID] = &jobs.StoredJob{
		Job:       job,
		Data:      data,
		CreatedAt: job.CreatedAt,
		UpdatedAt: job.UpdatedAt,
	}
}

func (f *fakeJobsRepo) CreateOrUpdate(ctx context.Context, job *models.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, job)
	f.put(job)
	return nil
}

// Get decodes the stored document on read, exactly as the real repository
// does: a row whose payload no longer parses as a Job surfaces the error
// here, not at write time.
func (f *fakeJobsRepo) Get(ctx context.Context, jobID string) (*jobs.StoredJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.stored[jobID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	var job models.Job
	if err := json.Unmarshal(s.Data, &job); err != nil {
		return nil, fmt.Errorf("unmarshal job %s: %w", jobID, err)
	}
	return &jobs.StoredJob{Job: &job, Data: s.Data, CreatedAt: s.CreatedAt, UpdatedAt: s.UpdatedAt}, nil
}

// Replace writes the document blindly, mirroring the real repository's
// UPDATE of the raw column: any JSON is accepted.
func (f *fakeJobsRepo) Replace(ctx context.Context, jobID string, doc []byte, expectedUpdatedAt, newUpdatedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.replaceConflicts > 0 {
		f.replaceConflicts--
		return common.ErrVersionConflict
	}
	s, ok := f.stored[jobID]
	if !ok || !s.UpdatedAt.Equal(expectedUpdatedAt) {
		return common.ErrVersionConflict
	}
	f.stored[jobID] = &jobs.StoredJob{
		Data:      doc,
		CreatedAt: s.CreatedAt,
		UpdatedAt: newUpdatedAt,
	}
	return nil
}

func (f *fakeJobsRepo) ListRecent(ctx context.Context, limit int) ([]*models.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.Job, 0, len(f.stored))
	for _, s := range f.stored {
		var job models.Job
		if err := json.Unmarshal(s.Data, &job); err != nil {
			return nil, fmt.Errorf("unmarshal job: %w", err)
		}
		out = append(out, &job)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// fakeQueueRepo is an in-memory queue.Repository.
type fakeQueueRepo struct {
	mu         sync.Mutex
	entries    map[string][][]byte
	enqueueErr error
}

func newFakeQueueRepo() *fakeQueueRepo {
	return &fakeQueueRepo{entries: map[string][][]byte{}}
}

func (f *fakeQueueRepo) Enqueue(ctx context.Context, queueName string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.enqueueErr != nil {
		return f.enqueueErr
	}
	f.entries[queueName] = append(f.entries[queueName], payload)
	return nil
}

func (f *fakeQueueRepo) PopOldest(ctx context.Context, queueName string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q := f.entries[queueName]
	if len(q) == 0 {
		return nil, nil
	}
	head := q[0]
	f.entries[queueName] = q[1:]
	return head, nil
}

func (f *fakeQueueRepo) PeekNewest(ctx context.Context, queueName string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q := f.entries[queueName]
	if len(q) == 0 {
		return nil, nil
	}
	return q[len(q)-1], nil
}

func (f *fakeQueueRepo) List(ctx context.Context, queueName string) ([][]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q := f.entries[queueName]
	out := make([][]byte, 0, len(q))
	for i := len(q) - 1; i >= 0; i-- {
		out = append(out, q[i])
	}
	return out, nil
}

func (f *fakeQueueRepo) Length(ctx context.Context, queueName string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.entries[queueName])), nil
}

func (f *fakeQueueRepo) Clear(ctx context.Context, queueName string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := int64(len(f.entries[queueName]))
	f.entries[queueName] = nil
	return n, nil
}

// fakeResultsRepo is an in-memory results.Repository.
type fakeResultsRepo struct {
	mu        sync.Mutex
	inserted  []*models.AIResult
	insertErr error
}

func (f *fakeResultsRepo) Insert(ctx context.Context, result *models.AIResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, result)
	return nil
}

func (f *fakeResultsRepo) SelectByJobID(ctx context.Context, jobID string) ([]*models.AIResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.AIResult
	for _, r := range f.inserted {
		if r.JobID == jobID {
			out = append(out, r)
		}
	}
	return out, nil
}

// fakeManager vends the in-memory repositories regardless of the DBTX it is
// handed, so transactional services can run against a sqlmock connection.
type fakeManager struct {
	db      *sql.DB
	jobs    *fakeJobsRepo
	queue   *fakeQueueRepo
	results *fakeResultsRepo
}

func newFakeManager(db *sql.DB) *fakeManager {
	return &fakeManager{
		db:      db,
		jobs:    newFakeJobsRepo(),
		queue:   newFakeQueueRepo(),
		results: &fakeResultsRepo{},
	}
}

func (m *fakeManager) Conn() *sql.DB                           { return m.db }
func (m *fakeManager) Close() error                            { return nil }
func (m *fakeManager) RunMigrations(ctx context.Context) error { return nil }
func (m *fakeManager) Jobs(db dbx.DBTX) jobs.Repository        { return m.jobs }
func (m *fakeManager) Queue(db dbx.DBTX) queue.Repository      { return m.queue }
func (m *fakeManager) Results(db dbx.DBTX) results.Repository  { return m.results }
