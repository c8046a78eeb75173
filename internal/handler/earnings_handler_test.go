package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-earnings-api/internal/models"
	appErrors "github.com/noah-isme/sma-earnings-api/pkg/errors"
)

type responseEnvelope struct {
	Data  json.RawMessage        `json:"data"`
	Error *appErrors.Error       `json:"error"`
	Meta  map[string]interface{} `json:"meta"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) responseEnvelope {
	t.Helper()
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope
}

type fakeEarningsSrv struct {
	rows        []models.ControllerEarnings
	row         *models.ControllerEarnings
	hit         bool
	err         error
	cfg         models.EarningsConfig
	removed     int
	lastParams  models.EarningsParams
	lastRefresh bool
	lastSchool  string
	lastMonth   string
}

func (f *fakeEarningsSrv) List(_ context.Context, params models.EarningsParams, refresh bool) ([]models.ControllerEarnings, bool, error) {
	f.lastParams = params
	f.lastRefresh = refresh
	return f.rows, f.hit, f.err
}

func (f *fakeEarningsSrv) Controller(_ context.Context, params models.EarningsParams, refresh bool) (*models.ControllerEarnings, bool, error) {
	f.lastParams = params
	f.lastRefresh = refresh
	return f.row, f.hit, f.err
}

func (f *fakeEarningsSrv) ActiveConfig(_ context.Context, schoolID string) models.EarningsConfig {
	f.lastSchool = schoolID
	return f.cfg
}

func (f *fakeEarningsSrv) Invalidate(_ context.Context, schoolID, yearMonth string) (int, error) {
	f.lastSchool = schoolID
	f.lastMonth = yearMonth
	return f.removed, f.err
}

func newEarningsRequest(method, target string) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(method, target, nil)
	return c, rec
}

func sampleRow(id string) models.ControllerEarnings {
	row := models.ControllerEarnings{
		ControllerID:   id,
		ControllerName: "Controller " + id,
		TeamID:         models.DefaultTeamID,
		TeamName:       models.DefaultTeamName,
		YearMonth:      "2024-05",
	}
	row.TotalEarnings = decimal.NewFromInt(40)
	return row
}

func TestEarningsHandlerList(t *testing.T) {
	srv := &fakeEarningsSrv{rows: []models.ControllerEarnings{sampleRow("CTL1"), sampleRow("CTL2")}, hit: true}
	handler := NewEarningsHandler(srv, nil)

	c, rec := newEarningsRequest(http.MethodGet, "/earnings/controllers?month=2024-05&schoolId=s1&teamId=2&refresh=true")
	handler.List(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "2024-05", srv.lastParams.YearMonth)
	assert.Equal(t, "s1", srv.lastParams.SchoolID)
	require.NotNil(t, srv.lastParams.TeamID)
	assert.Equal(t, 2, *srv.lastParams.TeamID)
	assert.True(t, srv.lastRefresh)

	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, true, envelope.Meta["cache_hit"])
	assert.EqualValues(t, 2, envelope.Meta["count"])
	assert.Equal(t, "2024-05", envelope.Meta["month"])

	var rows []map[string]interface{}
	require.NoError(t, json.Unmarshal(envelope.Data, &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "CTL1", rows[0]["controllerId"])
	assert.Equal(t, "Default Team", rows[0]["teamName"])
	assert.Equal(t, "40", rows[0]["totalEarnings"])
}

func TestEarningsHandlerListEmptyIsArray(t *testing.T) {
	handler := NewEarningsHandler(&fakeEarningsSrv{}, nil)
	c, rec := newEarningsRequest(http.MethodGet, "/earnings/controllers?month=2024-05")
	handler.List(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", string(decodeEnvelope(t, rec).Data))
}

func TestEarningsHandlerListValidation(t *testing.T) {
	cases := []string{
		"/earnings/controllers?month=2024-13",
		"/earnings/controllers?month=may",
		"/earnings/controllers?teamId=0",
		"/earnings/controllers?teamId=abc",
	}
	for _, target := range cases {
		t.Run(target, func(t *testing.T) {
			srv := &fakeEarningsSrv{}
			handler := NewEarningsHandler(srv, nil)
			c, rec := newEarningsRequest(http.MethodGet, target)
			handler.List(c)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			envelope := decodeEnvelope(t, rec)
			require.NotNil(t, envelope.Error)
			assert.Equal(t, appErrors.ErrValidation.Code, envelope.Error.Code)
		})
	}
}

func TestEarningsHandlerListCalculationFailure(t *testing.T) {
	srv := &fakeEarningsSrv{err: appErrors.Clone(appErrors.ErrEarningsCalculation, "")}
	handler := NewEarningsHandler(srv, nil)
	c, rec := newEarningsRequest(http.MethodGet, "/earnings/controllers")
	handler.List(c)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "EARNINGS_CALCULATION_FAILED", decodeEnvelope(t, rec).Error.Code)
}

func TestEarningsHandlerController(t *testing.T) {
	row := sampleRow("CTL1")
	srv := &fakeEarningsSrv{row: &row}
	handler := NewEarningsHandler(srv, nil)

	c, rec := newEarningsRequest(http.MethodGet, "/earnings/controllers/CTL1?month=2024-05&controllerId=ignored")
	c.Params = gin.Params{{Key: "controllerId", Value: "CTL1"}}
	handler.Controller(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "CTL1", srv.lastParams.ControllerID)
	assert.Equal(t, false, decodeEnvelope(t, rec).Meta["cache_hit"])

	srv.err = appErrors.Clone(appErrors.ErrNotFound, "no earnings for controller CTL9")
	c, rec = newEarningsRequest(http.MethodGet, "/earnings/controllers/CTL9")
	c.Params = gin.Params{{Key: "controllerId", Value: "CTL9"}}
	handler.Controller(c)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEarningsHandlerConfig(t *testing.T) {
	srv := &fakeEarningsSrv{cfg: models.EarningsConfig{MainBaseRate: decimal.NewFromInt(40), LeaveThreshold: 5, Source: models.ConfigSourceDefault}}
	handler := NewEarningsHandler(srv, nil)

	c, rec := newEarningsRequest(http.MethodGet, "/earnings/config?schoolId=%20s1%20")
	handler.Config(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "s1", srv.lastSchool)
	var cfg map[string]interface{}
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &cfg))
	assert.Equal(t, "40", cfg["mainBaseRate"])
	assert.Equal(t, "default", cfg["source"])
}

func TestEarningsHandlerInvalidateCache(t *testing.T) {
	srv := &fakeEarningsSrv{removed: 3}
	handler := NewEarningsHandler(srv, nil)

	c, rec := newEarningsRequest(http.MethodDelete, "/earnings/cache?schoolId=s1&month=2024-05")
	handler.InvalidateCache(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "s1", srv.lastSchool)
	assert.Equal(t, "2024-05", srv.lastMonth)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &body))
	assert.EqualValues(t, 3, body["removed"])
}
