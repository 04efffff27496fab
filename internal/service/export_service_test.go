package service

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/fsm-visit-api/internal/dto"
	"github.com/noah-isme/fsm-visit-api/internal/models"
	"github.com/noah-isme/fsm-visit-api/internal/repository"
	appErrors "github.com/noah-isme/fsm-visit-api/pkg/errors"
	"github.com/noah-isme/fsm-visit-api/pkg/jobs"
	"github.com/noah-isme/fsm-visit-api/pkg/storage"
)

type exportGridStub struct {
	matrix     *dto.AnnualMatrixResponse
	compliance []dto.BranchCompliance
}

func (s exportGridStub) AnnualMatrix(ctx context.Context, query dto.AnnualMatrixQuery) (*dto.AnnualMatrixResponse, error) {
	return s.matrix, nil
}

func (s exportGridStub) Compliance(ctx context.Context, year int, branchIDs []string) ([]dto.BranchCompliance, error) {
	return s.compliance, nil
}

type storageStub struct {
	saved map[string][]byte
}

func newStorageStub() *storageStub {
	return &storageStub{saved: make(map[string][]byte)}
}

func (s *storageStub) Save(filename string, data []byte) (string, error) {
	rel := "exports/" + filename
	s.saved[rel] = data
	return rel, nil
}

func (s *storageStub) Open(filename string) (*os.File, error) {
	return nil, os.ErrNotExist
}

func (s *storageStub) Delete(filename string) error {
	delete(s.saved, filename)
	return nil
}

func (s *storageStub) CleanupOlderThan(ttl time.Duration) ([]string, error) {
	return nil, nil
}

func exportFixture(t *testing.T) (*ExportService, *storageStub) {
	t.Helper()
	week1Start, week1End := weekBounds(2030, 1, dto.WeekStartSaturday)
	week2Start, week2End := weekBounds(2030, 2, dto.WeekStartSaturday)
	matrix := &dto.AnnualMatrixResponse{
		Year: 2030,
		Weeks: []dto.WeekData{
			{WeekNumber: 1, WeekStart: week1Start, WeekEnd: week1End, Branches: []dto.BranchWeekCell{
				{BranchID: "branch-1", Status: models.CellStatusPlanned},
				{BranchID: "branch-2", Status: models.CellStatusNone},
			}},
			{WeekNumber: 2, WeekStart: week2Start, WeekEnd: week2End, Branches: []dto.BranchWeekCell{
				{BranchID: "branch-1", Status: models.CellStatusEmergency},
				{BranchID: "branch-2", Status: models.CellStatusDone},
			}},
		},
	}
	grid := exportGridStub{
		matrix: matrix,
		compliance: []dto.BranchCompliance{
			{BranchID: "branch-1", Year: 2030, RequiredRegular: 4, Planned: 3, Completed: 2, CompletionRate: 0.5},
		},
	}
	branches := branchSourceStub{branches: []models.Branch{
		{ID: "branch-1", Name: "Main Street Depot"},
		{ID: "branch-2", Name: "Harbour Site"},
	}}
	store := newStorageStub()
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)
	svc := NewExportService(grid, branches, store, signer, ExportConfig{APIPrefix: "/api/v1"}, zap.NewNop(), nil, nil)
	return svc, store
}

func TestExportServiceGeneratesAnnualGridCSV(t *testing.T) {
	svc, store := exportFixture(t)

	job := &models.ExportJob{
		ID:     "job-1",
		Type:   models.ExportTypeAnnualGrid,
		Params: models.ExportJobParams{Year: 2030, Format: models.ExportFormatCSV},
	}
	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, models.ExportFormatCSV, result.Format)
	assert.True(t, strings.HasPrefix(result.URL, "/api/v1/exports/download/"))
	assert.False(t, result.ExpiresAt.IsZero())

	payload, ok := store.saved[result.RelativePath]
	require.True(t, ok)
	lines := strings.Split(strings.TrimSpace(string(payload)), "\n")
	require.GreaterOrEqual(t, len(lines), 3)
	assert.True(t, strings.HasPrefix(lines[0], "Branch,W01,W02"))
	assert.True(t, strings.HasPrefix(lines[1], "Main Street Depot,P,E"))
	assert.True(t, strings.HasPrefix(lines[2], "Harbour Site,,D"))

	jobID, relPath, _, err := svc.ParseToken(result.Token, false)
	require.NoError(t, err)
	assert.Equal(t, "job-1", jobID)
	assert.Equal(t, result.RelativePath, relPath)
}

func TestExportServiceGeneratesComplianceCSV(t *testing.T) {
	svc, store := exportFixture(t)

	job := &models.ExportJob{
		ID:     "job-2",
		Type:   models.ExportTypeCompliance,
		Params: models.ExportJobParams{Year: 2030, Format: models.ExportFormatCSV},
	}
	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)

	payload := string(store.saved[result.RelativePath])
	assert.Contains(t, payload, "Completion (%)")
	assert.Contains(t, payload, "Main Street Depot")
	assert.Contains(t, payload, "50.0")
}

func TestExportServiceRejectsUnknownTypeAndFormat(t *testing.T) {
	svc, _ := exportFixture(t)

	_, err := svc.Generate(context.Background(), &models.ExportJob{
		ID:     "job-3",
		Type:   "weekly_digest",
		Params: models.ExportJobParams{Year: 2030, Format: models.ExportFormatCSV},
	})
	require.Error(t, err)

	_, err = svc.Generate(context.Background(), &models.ExportJob{
		ID:     "job-4",
		Type:   models.ExportTypeAnnualGrid,
		Params: models.ExportJobParams{Year: 2030, Format: "xlsx"},
	})
	require.Error(t, err)
}

// --- Job orchestration ---

type exportJobStoreStub struct {
	jobs    map[string]*models.ExportJob
	updates []repository.UpdateExportJobParams
}

func newExportJobStoreStub(jobList ...models.ExportJob) *exportJobStoreStub {
	store := &exportJobStoreStub{jobs: make(map[string]*models.ExportJob)}
	for i := range jobList {
		j := jobList[i]
		store.jobs[j.ID] = &j
	}
	return store
}

func (s *exportJobStoreStub) Create(ctx context.Context, job *models.ExportJob) error {
	if job.ID == "" {
		job.ID = "job-1"
	}
	copied := *job
	s.jobs[job.ID] = &copied
	return nil
}

func (s *exportJobStoreStub) GetByID(ctx context.Context, id string) (*models.ExportJob, error) {
	job, ok := s.jobs[id]
	if !ok {
		return nil, errors.New("not found")
	}
	copied := *job
	return &copied, nil
}

func (s *exportJobStoreStub) Update(ctx context.Context, id string, params repository.UpdateExportJobParams) error {
	s.updates = append(s.updates, params)
	job, ok := s.jobs[id]
	if !ok {
		return errors.New("not found")
	}
	if params.Status != nil {
		job.Status = *params.Status
	}
	if params.Progress != nil {
		job.Progress = *params.Progress
	}
	if params.ResultURL != nil {
		job.ResultURL = params.ResultURL
	}
	if params.ErrorMessage != nil {
		job.ErrorMessage = params.ErrorMessage
	}
	return nil
}

func (s *exportJobStoreStub) ListQueued(ctx context.Context, limit int) ([]models.ExportJob, error) {
	var queued []models.ExportJob
	for _, job := range s.jobs {
		if job.Status == models.ExportStatusQueued {
			queued = append(queued, *job)
		}
	}
	return queued, nil
}

func (s *exportJobStoreStub) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ExportJob, error) {
	return nil, nil
}

type dispatcherStub struct {
	enqueued []jobs.Job
	err      error
}

func (d *dispatcherStub) Enqueue(job jobs.Job) error {
	if d.err != nil {
		return d.err
	}
	d.enqueued = append(d.enqueued, job)
	return nil
}

func TestExportJobServiceCreateJobQueues(t *testing.T) {
	store := newExportJobStoreStub()
	queue := &dispatcherStub{}
	svc := NewExportJobService(store, queue, nil, zap.NewNop(), ExportJobConfig{})

	resp, err := svc.CreateJob(context.Background(), dto.ExportRequest{
		Type:   models.ExportTypeAnnualGrid,
		Year:   2030,
		Format: models.ExportFormatCSV,
	})
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusQueued, resp.Status)
	assert.Zero(t, resp.Progress)
	require.Len(t, queue.enqueued, 1)
	assert.Equal(t, resp.ID, queue.enqueued[0].ID)
}

func TestExportJobServiceCreateJobMarksFailedWhenQueueRejects(t *testing.T) {
	store := newExportJobStoreStub()
	queue := &dispatcherStub{err: errors.New("queue full")}
	svc := NewExportJobService(store, queue, nil, zap.NewNop(), ExportJobConfig{})

	_, err := svc.CreateJob(context.Background(), dto.ExportRequest{
		Type:   models.ExportTypeAnnualGrid,
		Year:   2030,
		Format: models.ExportFormatCSV,
	})
	require.Error(t, err)
	job, getErr := store.GetByID(context.Background(), "job-1")
	require.NoError(t, getErr)
	assert.Equal(t, models.ExportStatusFailed, job.Status)
}

func TestExportJobServiceGetStatus(t *testing.T) {
	url := "/api/v1/exports/download/tok"
	store := newExportJobStoreStub(models.ExportJob{
		ID:        "job-1",
		Status:    models.ExportStatusFinished,
		Progress:  100,
		ResultURL: &url,
	})
	svc := NewExportJobService(store, &dispatcherStub{}, nil, zap.NewNop(), ExportJobConfig{})

	status, err := svc.GetStatus(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusFinished, status.Status)
	require.NotNil(t, status.ResultURL)
	assert.Equal(t, url, *status.ResultURL)

	_, err = svc.GetStatus(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestExportJobServiceResolveDownloadGuards(t *testing.T) {
	exporter, _ := exportFixture(t)
	token, _, err := storage.NewSignedURLSigner("test-secret", time.Hour).Generate("job-1", "exports/file.csv")
	require.NoError(t, err)

	url := "/api/v1/exports/download/" + token
	store := newExportJobStoreStub(models.ExportJob{
		ID:        "job-1",
		Status:    models.ExportStatusProcessing,
		Params:    models.ExportJobParams{Format: models.ExportFormatCSV},
		ResultURL: &url,
	})
	svc := NewExportJobService(store, &dispatcherStub{}, exporter, zap.NewNop(), ExportJobConfig{})

	_, err = svc.ResolveDownload(context.Background(), "garbage-token")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.ResolveDownload(context.Background(), token)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Equal(t, "export not ready", appErrors.FromError(err).Message)
}

func TestExportJobServiceRecoverPendingJobs(t *testing.T) {
	store := newExportJobStoreStub(
		models.ExportJob{ID: "job-1", Status: models.ExportStatusQueued},
		models.ExportJob{ID: "job-2", Status: models.ExportStatusFinished},
	)
	queue := &dispatcherStub{}
	svc := NewExportJobService(store, queue, nil, zap.NewNop(), ExportJobConfig{})

	svc.RecoverPendingJobs(context.Background())
	require.Len(t, queue.enqueued, 1)
	assert.Equal(t, "job-1", queue.enqueued[0].ID)
}

// --- Worker ---

type generatorStub struct {
	result *ExportResult
	err    error
}

func (g generatorStub) Generate(ctx context.Context, job *models.ExportJob) (*ExportResult, error) {
	return g.result, g.err
}

func TestExportWorkerMarksJobFinished(t *testing.T) {
	store := newExportJobStoreStub(models.ExportJob{ID: "job-1", Status: models.ExportStatusQueued})
	worker := NewExportWorker(store, generatorStub{result: &ExportResult{URL: "/api/v1/exports/download/tok"}}, 3, zap.NewNop())

	require.NoError(t, worker.Handle(context.Background(), jobs.Job{ID: "job-1", Attempt: 1}))
	job, err := store.GetByID(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusFinished, job.Status)
	assert.Equal(t, 100, job.Progress)
	require.NotNil(t, job.ResultURL)
	assert.Equal(t, "/api/v1/exports/download/tok", *job.ResultURL)
}

func TestExportWorkerRequeuesBeforeExhaustingRetries(t *testing.T) {
	store := newExportJobStoreStub(models.ExportJob{ID: "job-1", Status: models.ExportStatusQueued})
	worker := NewExportWorker(store, generatorStub{err: errors.New("render failed")}, 3, zap.NewNop())

	err := worker.Handle(context.Background(), jobs.Job{ID: "job-1", Attempt: 1})
	require.Error(t, err)
	job, getErr := store.GetByID(context.Background(), "job-1")
	require.NoError(t, getErr)
	assert.Equal(t, models.ExportStatusQueued, job.Status)
	assert.Zero(t, job.Progress)

	err = worker.Handle(context.Background(), jobs.Job{ID: "job-1", Attempt: 3})
	require.Error(t, err)
	job, getErr = store.GetByID(context.Background(), "job-1")
	require.NoError(t, getErr)
	assert.Equal(t, models.ExportStatusFailed, job.Status)
	require.NotNil(t, job.ErrorMessage)
	assert.Equal(t, "render failed", *job.ErrorMessage)
}
