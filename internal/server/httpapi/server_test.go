package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/receiptpipe/internal/common"
	"github.com/dmitrijs2005/receiptpipe/internal/dbx"
	"github.com/dmitrijs2005/receiptpipe/internal/logging"
	"github.com/dmitrijs2005/receiptpipe/internal/server/auth"
	"github.com/dmitrijs2005/receiptpipe/internal/server/config"
	"github.com/dmitrijs2005/receiptpipe/internal/server/models"
	"github.com/dmitrijs2005/receiptpipe/internal/server/repositories/jobs"
	"github.com/dmitrijs2005/receiptpipe/internal/server/repositories/queue"
	"github.com/dmitrijs2005/receiptpipe/internal/server/repositories/results"
	"github.com/dmitrijs2005/receiptpipe/internal/server/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memManager backs the HTTP tests with in-memory repositories over a
// sqlmock connection for the transactional paths.
type memManager struct {
	db    *sql.DB
	jobs  *memJobs
	queue *memQueue
	res   *memResults
}

func (m *memManager) Conn() *sql.DB                           { return m.db }
func (m *memManager) Close() error                            { return nil }
func (m *memManager) RunMigrations(ctx context.Context) error { return nil }
func (m *memManager) Jobs(db dbx.DBTX) jobs.Repository        { return m.jobs }
func (m *memManager) Queue(db dbx.DBTX) queue.Repository      { return m.queue }
func (m *memManager) Results(db dbx.DBTX) results.Repository  { return m.res }

type memJobs struct {
	stored map[string]*jobs.StoredJob
}

func (f *memJobs) put(job *models.Job) {
	data, _ := json.Marshal(job)
	f.stored[job.JobID] = &jobs.StoredJob{Job: job, Data: data, CreatedAt: job.CreatedAt, UpdatedAt: job.UpdatedAt}
}

func (f *memJobs) CreateOrUpdate(ctx context.Context, job *models.Job) error {
	f.put(job)
	return nil
}

func (f *memJobs) Get(ctx context.Context, jobID string) (*jobs.StoredJob, error) {
	s, ok := f.stored[jobID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	var job models.Job
	if err := json.Unmarshal(s.Data, &job); err != nil {
		return nil, err
	}
	return &jobs.StoredJob{Job: &job, Data: s.Data, CreatedAt: s.CreatedAt, UpdatedAt: s.UpdatedAt}, nil
}

// Replace stores the document without decoding it, like the real
// repository's raw-column UPDATE.
func (f *memJobs) Replace(ctx context.Context, jobID string, doc []byte, expectedUpdatedAt, newUpdatedAt time.Time) error {
	s, ok := f.stored[jobID]
	if !ok || !s.UpdatedAt.Equal(expectedUpdatedAt) {
		return common.ErrVersionConflict
	}
	f.stored[jobID] = &jobs.StoredJob{Data: doc, CreatedAt: s.CreatedAt, UpdatedAt: newUpdatedAt}
	return nil
}

func (f *memJobs) ListRecent(ctx context.Context, limit int) ([]*models.Job, error) {
	out := make([]*models.Job, 0, len(f.stored))
	for _, s := range f.stored {
		var job models.Job
		if err := json.Unmarshal(s.Data, &job); err != nil {
			return nil, err
		}
		out = append(out, &job)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memQueue struct {
	entries [][]byte
}

func (f *memQueue) Enqueue(ctx context.Context, queueName string, payload []byte) error {
	f.entries = append(f.entries, payload)
	return nil
}

func (f *memQueue) PopOldest(ctx context.Context, queueName string) ([]byte, error) {
	if len(f.entries) == 0 {
		return nil, nil
	}
	head := f.entries[0]
	f.entries = f.entries[1:]
	return head, nil
}

func (f *memQueue) PeekNewest(ctx context.Context, queueName string) ([]byte, error) {
	if len(f.entries) == 0 {
		return nil, nil
	}
	return f.entries[len(f.entries)-1], nil
}

func (f *memQueue) List(ctx context.Context, queueName string) ([][]byte, error) {
	out := make([][]byte, 0, len(f.entries))
	for i := len(f.entries) - 1; i >= 0; i-- {
		out = append(out, f.entries[i])
	}
	return out, nil
}

func (f *memQueue) Length(ctx context.Context, queueName string) (int64, error) {
	return int64(len(f.entries)), nil
}

func (f *memQueue) Clear(ctx context.Context, queueName string) (int64, error) {
	n := int64(len(f.entries))
	f.entries = nil
	return n, nil
}

type memResults struct {
	inserted []*models.AIResult
}

func (f *memResults) Insert(ctx context.Context, result *models.AIResult) error {
	f.inserted = append(f.inserted, result)
	return nil
}

func (f *memResults) SelectByJobID(ctx context.Context, jobID string) ([]*models.AIResult, error) {
	var out []*models.AIResult
	for _, r := range f.inserted {
		if r.JobID == jobID {
			out = append(out, r)
		}
	}
	return out, nil
}

func newTestServer(t *testing.T) (*Server, *memManager, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.SecretKey = "test-secret"
	cfg.S3BaseEndpoint = "http://127.0.0.1:9000"

	manager := &memManager{
		db:    db,
		jobs:  &memJobs{stored: map[string]*jobs.StoredJob{}},
		queue: &memQueue{},
		res:   &memResults{},
	}

	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	presigner := services.NewPresigner(cfg)
	srv := NewServer(cfg, logger,
		services.NewUploadService(presigner, cfg, logger),
		services.NewAdmissionService(manager, presigner, cfg, logger),
		services.NewJobService(manager, logger),
		services.NewQueueService(manager, cfg.QueueName, logger),
		services.NewResultsService(manager, logger),
		presigner,
	)
	return srv, manager, mock
}

func do(t *testing.T, h http.Handler, method, target, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rdr)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := do(t, srv.routes(), http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Backend is ready.", rec.Body.String())
}

func TestGenerateUploadURLs_BadRequests(t *testing.T) {
	srv, _, _ := newTestServer(t)
	h := srv.routes()

	rec := do(t, h, http.MethodPost, "/upload/urls", "{not json", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/upload/urls", `{"files":[]}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "no files specified", body["error"])

	rec = do(t, h, http.MethodPost, "/upload/urls",
		`{"files":[{"name":"a.pdf","type":"application/pdf","size":10}]}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body["error"], "not allowed")
}

func TestConfirmUploads_EndToEnd(t *testing.T) {
	srv, manager, mock := newTestServer(t)
	h := srv.routes()

	mock.ExpectBegin()
	mock.ExpectCommit()

	body := `{
		"batchId": "batch-1",
		"uploadedFiles": [
			{"s3Key": "uploads/batch-1/x.jpg", "success": true, "originalName": "x.jpg"},
			{"s3Key": "uploads/batch-1/y.jpg", "success": false, "error": "timeout"}
		],
		"metadata": {"uploaderName": "alice"}
	}`

	rec := do(t, h, http.MethodPost, "/upload/confirm", body, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp confirmUploadsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "batch-1", resp.BatchID)
	assert.Equal(t, 1, resp.ProcessedFiles)
	assert.Equal(t, 1, resp.FailedFiles)
	assert.Len(t, resp.JobID, 32)

	assert.Len(t, manager.queue.entries, 1)
	require.NoError(t, mock.ExpectationsWereMet())

	// job record readable through the API afterwards
	rec = do(t, h, http.MethodGet, "/jobs/"+resp.JobID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var job models.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.Equal(t, models.JobStatusProcessing, job.Status)
	assert.Len(t, job.Files, 1)
}

func TestConfirmUploads_AllFailedShape(t *testing.T) {
	srv, _, _ := newTestServer(t)

	body := `{
		"batchId": "batch-1",
		"uploadedFiles": [
			{"s3Key": "uploads/batch-1/x.jpg", "success": false, "error": "network"},
			{"s3Key": "uploads/batch-1/y.jpg", "success": false, "error": "timeout"}
		]
	}`

	rec := do(t, srv.routes(), http.MethodPost, "/upload/confirm", body, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp struct {
		Error       string                 `json:"error"`
		FailedFiles []models.UploadOutcome `json:"failedFiles"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "no successful uploads to process", resp.Error)
	assert.Len(t, resp.FailedFiles, 2)
}

func TestGetJob_NotFound(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := do(t, srv.routes(), http.MethodGet, "/jobs/ghost", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateJob(t *testing.T) {
	srv, manager, _ := newTestServer(t)
	h := srv.routes()

	now := time.Now().UTC()
	manager.jobs.put(&models.Job{
		JobID: "job-1", BatchID: "b", Type: models.JobTypeImageProcessing,
		Files:  []models.JobFile{{StorageKey: "uploads/b/x.jpg", OriginalName: "x.jpg"}},
		Status: models.JobStatusProcessing, CreatedAt: now, UpdatedAt: now,
		Metadata: map[string]any{},
	})

	rec := do(t, h, http.MethodPut, "/jobs/job-1", `{"status":"completed"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp updateJobResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, models.JobStatusCompleted, resp.Job.Status)

	// terminal state rejects further transitions
	rec = do(t, h, http.MethodPut, "/jobs/job-1", `{"status":"processing"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateJob_RejectsInvalidDocument(t *testing.T) {
	srv, manager, _ := newTestServer(t)
	h := srv.routes()

	now := time.Now().UTC()
	manager.jobs.put(&models.Job{
		JobID: "job-1", BatchID: "b", Type: models.JobTypeImageProcessing,
		Files:  []models.JobFile{{StorageKey: "uploads/b/x.jpg", OriginalName: "x.jpg"}},
		Status: models.JobStatusProcessing, CreatedAt: now, UpdatedAt: now,
		Metadata: map[string]any{},
	})

	rec := do(t, h, http.MethodPut, "/jobs/job-1", `{"files":[]}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodPut, "/jobs/job-1", `{"files":42}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	// the record survives both rejected updates intact
	rec = do(t, h, http.MethodGet, "/jobs/job-1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var job models.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.Len(t, job.Files, 1)
	assert.Equal(t, models.JobStatusProcessing, job.Status)
}

func TestListJobs(t *testing.T) {
	srv, manager, _ := newTestServer(t)
	h := srv.routes()

	rec := do(t, h, http.MethodGet, "/jobs", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp listJobsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Count)
	assert.NotNil(t, resp.Jobs)

	now := time.Now().UTC()
	manager.jobs.put(&models.Job{JobID: "job-1", CreatedAt: now, UpdatedAt: now, Metadata: map[string]any{}})

	rec = do(t, h, http.MethodGet, "/jobs?limit=10", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)

	rec = do(t, h, http.MethodGet, "/jobs?limit=abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQueueIntrospection(t *testing.T) {
	srv, manager, _ := newTestServer(t)
	h := srv.routes()

	manager.queue.entries = [][]byte{[]byte(`{"jobId":"1"}`), []byte(`{"jobId":"2"}`)}

	rec := do(t, h, http.MethodGet, "/queue/length", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var lengthResp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &lengthResp))
	assert.Equal(t, float64(2), lengthResp["length"])

	rec = do(t, h, http.MethodGet, "/queue", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listResp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listResp))
	assert.Equal(t, float64(2), listResp["count"])

	rec = do(t, h, http.MethodGet, "/queue/peek", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var peekResp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &peekResp))
	entry, ok := peekResp["entry"].(map[string]any)
	require.True(t, ok, "peek entry missing")
	assert.Equal(t, "2", entry["jobId"])

	// peek does not consume
	assert.Len(t, manager.queue.entries, 2)
}

func TestQueueDestructiveOpsRequireOperator(t *testing.T) {
	srv, manager, _ := newTestServer(t)
	h := srv.routes()

	manager.queue.entries = [][]byte{[]byte(`{"jobId":"1"}`)}

	// unauthenticated and garbage tokens are rejected
	rec := do(t, h, http.MethodPost, "/queue/pull", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodDelete, "/queue", "", map[string]string{"Authorization": "Bearer junk"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Len(t, manager.queue.entries, 1)

	token, err := auth.GenerateOperatorToken([]byte("test-secret"), time.Minute)
	require.NoError(t, err)
	authHeader := map[string]string{"Authorization": "Bearer " + token}

	rec = do(t, h, http.MethodPost, "/queue/pull", "", authHeader)
	require.Equal(t, http.StatusOK, rec.Code)
	var pullResp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pullResp))
	entry, ok := pullResp["entry"].(map[string]any)
	require.True(t, ok, "pull entry missing")
	assert.Equal(t, "1", entry["jobId"])

	rec = do(t, h, http.MethodDelete, "/queue", "", authHeader)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, manager.queue.entries)
}

func TestPullQueue_LongPoll(t *testing.T) {
	srv, manager, _ := newTestServer(t)
	h := srv.routes()

	token, err := auth.GenerateOperatorToken([]byte("test-secret"), time.Minute)
	require.NoError(t, err)
	authHeader := map[string]string{"Authorization": "Bearer " + token}

	manager.queue.entries = [][]byte{[]byte(`{"jobId":"1"}`)}

	rec := do(t, h, http.MethodPost, "/queue/pull?wait=1", "", authHeader)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	entry, ok := resp["entry"].(map[string]any)
	require.True(t, ok, "entry missing")
	assert.Equal(t, "1", entry["jobId"])

	// empty queue with zero wait resolves immediately to a null entry
	rec = do(t, h, http.MethodPost, "/queue/pull?wait=0", "", authHeader)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Nil(t, resp["entry"])

	rec = do(t, h, http.MethodPost, "/queue/pull?wait=abc", "", authHeader)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFileURL_MissingKey(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := do(t, srv.routes(), http.MethodGet, "/files/url", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSaveAndGetJobWithResults(t *testing.T) {
	srv, _, mock := newTestServer(t)
	h := srv.routes()

	mock.ExpectBegin()
	mock.ExpectCommit()

	body := `{
		"job": {"jobId": "job-1", "batchId": "b", "status": "completed"},
		"results": [
			{"companyName": "ACME", "price": 12.5, "receiptDate": "2026-08-01", "uploaderName": "alice"}
		]
	}`

	rec := do(t, h, http.MethodPost, "/ai/save", body, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, mock.ExpectationsWereMet())

	rec = do(t, h, http.MethodGet, "/ai/job-1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp jobWithResultsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "job-1", resp.Job.JobID)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "ACME", resp.Results[0].CompanyName)

	rec = do(t, h, http.MethodPost, "/ai/save", `{"job": null, "results": null}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
