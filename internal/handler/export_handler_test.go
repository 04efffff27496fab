package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/fsm-visit-api/internal/dto"
	"github.com/noah-isme/fsm-visit-api/internal/models"
	"github.com/noah-isme/fsm-visit-api/internal/service"
	appErrors "github.com/noah-isme/fsm-visit-api/pkg/errors"
)

type exportOrchestratorMock struct {
	captured  dto.ExportRequest
	statusErr error
}

func (m *exportOrchestratorMock) CreateJob(ctx context.Context, req dto.ExportRequest) (*dto.ExportJobResponse, error) {
	m.captured = req
	return &dto.ExportJobResponse{ID: "job-1", Status: models.ExportStatusQueued}, nil
}

func (m *exportOrchestratorMock) GetStatus(ctx context.Context, id string) (*dto.ExportStatusResponse, error) {
	if m.statusErr != nil {
		return nil, m.statusErr
	}
	return &dto.ExportStatusResponse{ID: id, Status: models.ExportStatusFinished, Progress: 100}, nil
}

func (m *exportOrchestratorMock) ResolveDownload(ctx context.Context, token string) (*service.ExportDownload, error) {
	return nil, appErrors.Clone(appErrors.ErrValidation, "invalid or expired download token")
}

func TestExportHandlerCreateAccepted(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &exportOrchestratorMock{}
	handler := &ExportHandler{service: mockSvc}
	payload := []byte(`{"type":"annual_grid","year":2030,"format":"csv"}`)
	req, _ := http.NewRequest(http.MethodPost, "/exports", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req

	handler.Create(c)

	require.Equal(t, http.StatusAccepted, w.Code)
	require.Equal(t, models.ExportTypeAnnualGrid, mockSvc.captured.Type)
	require.Equal(t, models.ExportFormatCSV, mockSvc.captured.Format)
}

func TestExportHandlerStatusNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := &ExportHandler{service: &exportOrchestratorMock{statusErr: appErrors.Clone(appErrors.ErrNotFound, "export job not found")}}
	req, _ := http.NewRequest(http.MethodGet, "/exports/missing", nil)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "missing"}}

	handler.Status(c)

	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestExportHandlerDownloadInvalidToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := &ExportHandler{service: &exportOrchestratorMock{}}
	req, _ := http.NewRequest(http.MethodGet, "/exports/download/garbage", nil)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	c.Params = gin.Params{{Key: "token", Value: "garbage"}}

	handler.Download(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExportHandlerNotConfigured(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewExportHandler(nil)
	req, _ := http.NewRequest(http.MethodPost, "/exports", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req

	handler.Create(c)

	require.Equal(t, http.StatusInternalServerError, w.Code)
}
