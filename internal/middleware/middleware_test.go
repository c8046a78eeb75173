package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-earnings-api/internal/service"
)

func TestRequesterMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Requester())
	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, RequesterFromContext(c))
	})

	cases := map[string]string{
		"":                       AnonymousRequester,
		"  finance-1 ":           "finance-1",
		strings.Repeat("a", 100): strings.Repeat("a", 64),
	}
	for header, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set(RequesterHeader, header)
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Body.String())
	}

	assert.Equal(t, AnonymousRequester, RequesterFromContext(nil))
}

func TestMetricsMiddlewareRecordsRoutePattern(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	router := gin.New()
	router.Use(Metrics(metrics))
	router.GET("/earnings/controllers/:controllerId", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/earnings/controllers/CTL1", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.EqualValues(t, 1, metrics.Snapshot().RequestsTotal)

	scrape := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(scrape, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, scrape.Body.String(), `path="/earnings/controllers/:controllerId"`)
	assert.NotContains(t, scrape.Body.String(), "CTL1")
}

func TestResponseMetaMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(WithResponseMeta())
	router.GET("/", func(c *gin.Context) {
		SetCacheHit(c, true)
		SetResult(c, "2024-05", 3)
		c.JSON(http.StatusOK, Meta(c))
	})
	router.GET("/empty", func(c *gin.Context) {
		SetResult(c, "", 0)
		c.JSON(http.StatusOK, Meta(c))
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	var meta map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &meta))
	assert.Equal(t, true, meta[cacheHitKey])
	assert.Equal(t, "2024-05", meta[resultMonthKey])
	assert.EqualValues(t, 3, meta[resultCountKey])
	assert.Contains(t, meta, processingKey)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/empty", nil))
	meta = map[string]interface{}{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &meta))
	assert.NotContains(t, meta, resultMonthKey)
	assert.NotContains(t, meta, cacheHitKey)
	assert.EqualValues(t, 0, meta[resultCountKey])
	assert.Nil(t, ExtractMeta(nil))
}

func TestResponseMetaWithoutMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	SetCacheHit(c, false)
	meta := Meta(c)
	assert.Equal(t, false, meta[cacheHitKey])
	assert.EqualValues(t, 0, meta[processingKey])
}

func TestMetricsMiddlewareSkipsAndBucketsUnmatched(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	router := gin.New()
	router.Use(Metrics(metrics, "/metrics"))
	router.GET("/metrics", func(c *gin.Context) { c.Status(http.StatusOK) })

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Zero(t, metrics.Snapshot().RequestsTotal)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/no/such/route", nil))
	assert.EqualValues(t, 1, metrics.Snapshot().RequestsTotal)

	scrape := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(scrape, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, scrape.Body.String(), `path="unmatched"`)
}
