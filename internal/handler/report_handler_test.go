package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-earnings-api/internal/dto"
	"github.com/noah-isme/sma-earnings-api/internal/middleware"
	"github.com/noah-isme/sma-earnings-api/internal/models"
	"github.com/noah-isme/sma-earnings-api/internal/service"
	appErrors "github.com/noah-isme/sma-earnings-api/pkg/errors"
)

type reportServiceMock struct {
	createResp  *dto.ReportJobResponse
	createErr   error
	statusResp  *dto.ReportStatusResponse
	statusErr   error
	listResp    []dto.ReportStatusResponse
	download    *service.ReportDownload
	downloadErr error

	lastRequest dto.EarningsExportRequest
	lastActor   string
	lastLimit   int
}

func (m *reportServiceMock) CreateJob(ctx context.Context, req dto.EarningsExportRequest, actorID string) (*dto.ReportJobResponse, error) {
	m.lastRequest = req
	m.lastActor = actorID
	return m.createResp, m.createErr
}

func (m *reportServiceMock) GetStatus(ctx context.Context, id string) (*dto.ReportStatusResponse, error) {
	return m.statusResp, m.statusErr
}

func (m *reportServiceMock) ListJobs(ctx context.Context, actorID string, limit int) ([]dto.ReportStatusResponse, error) {
	m.lastActor = actorID
	m.lastLimit = limit
	return m.listResp, nil
}

func (m *reportServiceMock) ResolveDownload(ctx context.Context, token string) (*service.ReportDownload, error) {
	return m.download, m.downloadErr
}

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func TestReportHandlerGenerateReport(t *testing.T) {
	mockSvc := &reportServiceMock{
		createResp: &dto.ReportJobResponse{ID: "job-1", Status: models.ReportStatusQueued, Progress: 0},
	}
	handler := NewReportHandler(mockSvc, nil)

	payload, _ := json.Marshal(map[string]string{"month": "2024-05", "schoolId": "s1", "format": "PDF"})
	c, w := newGinContext(http.MethodPost, "/earnings/exports", payload)
	c.Set(middleware.ContextRequesterKey, "finance-1")

	handler.GenerateReport(c)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "finance-1", mockSvc.lastActor)
	assert.Equal(t, models.ReportFormatPDF, mockSvc.lastRequest.Format)
	assert.Equal(t, "s1", mockSvc.lastRequest.SchoolID)
}

func TestReportHandlerGenerateReportErrors(t *testing.T) {
	handler := NewReportHandler(&reportServiceMock{}, nil)
	c, w := newGinContext(http.MethodPost, "/earnings/exports", []byte("{not json"))
	handler.GenerateReport(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	handler = NewReportHandler(&reportServiceMock{createErr: appErrors.Clone(appErrors.ErrServiceUnavailable, "queue full")}, nil)
	c, w = newGinContext(http.MethodPost, "/earnings/exports", []byte(`{"month":"2024-05","format":"csv"}`))
	handler.GenerateReport(c)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "anonymous", handler.service.(*reportServiceMock).lastActor)
}

func TestReportHandlerReportStatus(t *testing.T) {
	mockSvc := &reportServiceMock{
		statusResp: &dto.ReportStatusResponse{ID: "job-1", Status: models.ReportStatusFinished, Progress: 100},
	}
	handler := NewReportHandler(mockSvc, nil)

	c, w := newGinContext(http.MethodGet, "/earnings/exports/job-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "job-1"}}

	handler.ReportStatus(c)
	require.Equal(t, http.StatusOK, w.Code)

	mockSvc.statusErr = appErrors.Clone(appErrors.ErrNotFound, "export job missing not found")
	c, w = newGinContext(http.MethodGet, "/earnings/exports/missing", nil)
	c.Params = gin.Params{{Key: "id", Value: "missing"}}
	handler.ReportStatus(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReportHandlerListJobs(t *testing.T) {
	mockSvc := &reportServiceMock{listResp: []dto.ReportStatusResponse{{ID: "job-1"}, {ID: "job-2"}}}
	handler := NewReportHandler(mockSvc, nil)

	c, w := newGinContext(http.MethodGet, "/earnings/exports?limit=5", nil)
	c.Set(middleware.ContextRequesterKey, "finance-1")
	handler.ListJobs(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, mockSvc.lastLimit)
	assert.Equal(t, "finance-1", mockSvc.lastActor)
	assert.EqualValues(t, 2, decodeEnvelope(t, w).Meta["count"])

	c, w = newGinContext(http.MethodGet, "/earnings/exports?limit=500", nil)
	handler.ListJobs(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReportHandlerDownloadReport(t *testing.T) {
	file, err := os.CreateTemp("", "earnings*.csv")
	require.NoError(t, err)
	defer os.Remove(file.Name())
	_, _ = file.WriteString("Controller ID,Total\nCTL1,40.00\n")
	_, _ = file.Seek(0, 0)

	mockSvc := &reportServiceMock{
		download: &service.ReportDownload{
			File:      file,
			Filename:  "earnings_2024-05.csv",
			Format:    models.ReportFormatCSV,
			ExpiresAt: time.Now().Add(time.Hour),
		},
	}
	handler := NewReportHandler(mockSvc, nil)

	c, w := newGinContext(http.MethodGet, "/export/token", nil)
	c.Params = gin.Params{{Key: "token", Value: "token"}}

	handler.DownloadReport(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), `filename="earnings_2024-05.csv"`)
	assert.Contains(t, w.Body.String(), "CTL1,40.00")
}

func TestReportHandlerDownloadForbidden(t *testing.T) {
	handler := NewReportHandler(&reportServiceMock{downloadErr: appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")}, nil)
	c, w := newGinContext(http.MethodGet, "/export/bad", nil)
	c.Params = gin.Params{{Key: "token", Value: "bad"}}

	handler.DownloadReport(c)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
