package service

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-earnings-api/internal/models"
)

func TestMetricsServiceSnapshot(t *testing.T) {
	metrics := NewMetricsService()
	metrics.now = func() time.Time { return time.Date(2024, 5, 1, 0, 0, 0, 0, time.FixedZone("WIB", 7*3600)) }

	metrics.ObserveHTTPRequest(http.MethodGet, "/api/v1/earnings", http.StatusOK, 20*time.Millisecond)
	metrics.ObserveHTTPRequest(http.MethodGet, "/api/v1/earnings", http.StatusOK, 40*time.Millisecond)
	metrics.RecordCacheOperation(true, time.Millisecond)
	metrics.RecordCacheOperation(true, time.Millisecond)
	metrics.RecordCacheOperation(false, time.Millisecond)
	metrics.ObserveDBQuery("earnings_aggregates", 10*time.Millisecond)
	metrics.ObserveCalculation(time.Second, 3, nil)
	metrics.ObserveCalculation(time.Second, 0, errors.New("boom"))
	metrics.RecordHistoryFailure(historyKindPreviousMonth)

	snapshot := metrics.Snapshot()
	assert.EqualValues(t, 2, snapshot.RequestsTotal)
	assert.InDelta(t, 30, snapshot.AverageRequestDurationMs, 0.001)
	assert.EqualValues(t, 2, snapshot.CacheHits)
	assert.EqualValues(t, 1, snapshot.CacheMisses)
	assert.InDelta(t, 2.0/3.0, snapshot.CacheHitRatio, 0.0001)
	assert.EqualValues(t, 1, snapshot.DBQueryCount)
	assert.InDelta(t, 10, snapshot.AverageDBQueryDurationMs, 0.001)
	assert.EqualValues(t, 2, snapshot.Calculations)
	assert.EqualValues(t, 1, snapshot.HistoryFailures)
	assert.Equal(t, time.Date(2024, 4, 30, 17, 0, 0, 0, time.UTC), snapshot.GeneratedAt)

	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.controllersComputed))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.historyFailures.WithLabelValues(historyKindPreviousMonth)))
}

func TestMetricsServiceExportJobsAndHandler(t *testing.T) {
	metrics := NewMetricsService()
	metrics.RecordExportJob(models.ReportFormatCSV, models.ReportStatusFinished)
	metrics.RecordExportJob(models.ReportFormatCSV, models.ReportStatusFinished)
	metrics.RecordExportJob(models.ReportFormatPDF, models.ReportStatusFailed)

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.exportJobs.WithLabelValues("csv", "FINISHED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.exportJobs.WithLabelValues("pdf", "FAILED")))

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "earnings_export_jobs_total")
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestMetricsServiceNilSafe(t *testing.T) {
	var metrics *MetricsService
	assert.NotPanics(t, func() {
		metrics.ObserveHTTPRequest(http.MethodGet, "/", http.StatusOK, time.Millisecond)
		metrics.RecordCacheOperation(true, time.Millisecond)
		metrics.ObserveCacheWrite(time.Millisecond)
		metrics.ObserveDBQuery("q", time.Millisecond)
		metrics.ObserveCalculation(time.Millisecond, 1, nil)
		metrics.RecordHistoryFailure(historyKindYearToDate)
		metrics.RecordExportJob(models.ReportFormatCSV, models.ReportStatusFinished)
	})
	assert.Equal(t, models.SystemMetrics{}, metrics.Snapshot())
}
