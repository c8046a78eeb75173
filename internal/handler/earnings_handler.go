package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/sma-earnings-api/internal/dto"
	"github.com/noah-isme/sma-earnings-api/internal/middleware"
	"github.com/noah-isme/sma-earnings-api/internal/models"
	appErrors "github.com/noah-isme/sma-earnings-api/pkg/errors"
	"github.com/noah-isme/sma-earnings-api/pkg/response"
)

type earningsService interface {
	List(ctx context.Context, params models.EarningsParams, refresh bool) ([]models.ControllerEarnings, bool, error)
	Controller(ctx context.Context, params models.EarningsParams, refresh bool) (*models.ControllerEarnings, bool, error)
	ActiveConfig(ctx context.Context, schoolID string) models.EarningsConfig
	Invalidate(ctx context.Context, schoolID, yearMonth string) (int, error)
}

// EarningsHandler exposes controller earnings endpoints.
type EarningsHandler struct {
	service   earningsService
	validator *validator.Validate
}

// NewEarningsHandler constructs the handler.
func NewEarningsHandler(service earningsService, validate *validator.Validate) *EarningsHandler {
	if validate == nil {
		validate = dto.NewValidator()
	}
	return &EarningsHandler{service: service, validator: validate}
}

// List godoc
// @Summary Controller earnings for a month
// @Tags Earnings
// @Produce json
// @Param month query string false "Month (YYYY-MM). Defaults to the current month"
// @Param schoolId query string false "School ID"
// @Param controllerId query string false "Controller code"
// @Param teamId query int false "Team ID (accepted, not applied)"
// @Param refresh query bool false "Bypass the cache"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 500 {object} response.Envelope
// @Router /earnings/controllers [get]
func (h *EarningsHandler) List(c *gin.Context) {
	query, ok := h.bindQuery(c)
	if !ok {
		return
	}
	rows, cacheHit, err := h.service.List(c.Request.Context(), query.Params(), query.Refresh)
	if err != nil {
		response.Error(c, err)
		return
	}
	if rows == nil {
		rows = []models.ControllerEarnings{}
	}
	middleware.SetCacheHit(c, cacheHit)
	month := ""
	if len(rows) > 0 {
		month = rows[0].YearMonth
	}
	middleware.SetResult(c, month, len(rows))
	response.JSON(c, http.StatusOK, rows, middleware.Meta(c))
}

// Controller godoc
// @Summary Earnings of one controller
// @Tags Earnings
// @Produce json
// @Param controllerId path string true "Controller code"
// @Param month query string false "Month (YYYY-MM)"
// @Param schoolId query string false "School ID"
// @Param refresh query bool false "Bypass the cache"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /earnings/controllers/{controllerId} [get]
func (h *EarningsHandler) Controller(c *gin.Context) {
	query, ok := h.bindQuery(c)
	if !ok {
		return
	}
	params := query.Params()
	params.ControllerID = strings.TrimSpace(c.Param("controllerId"))
	if params.ControllerID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "controllerId is required"))
		return
	}
	row, cacheHit, err := h.service.Controller(c.Request.Context(), params, query.Refresh)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	middleware.SetResult(c, row.YearMonth, 1)
	response.JSON(c, http.StatusOK, row, middleware.Meta(c))
}

// Config godoc
// @Summary Active earnings rate policy
// @Tags Earnings
// @Produce json
// @Param schoolId query string false "School ID"
// @Success 200 {object} response.Envelope
// @Router /earnings/config [get]
func (h *EarningsHandler) Config(c *gin.Context) {
	cfg := h.service.ActiveConfig(c.Request.Context(), strings.TrimSpace(c.Query("schoolId")))
	response.JSON(c, http.StatusOK, cfg)
}

// InvalidateCache godoc
// @Summary Drop cached earnings
// @Tags Earnings
// @Produce json
// @Param schoolId query string false "School ID. Empty drops every school"
// @Param month query string false "Month (YYYY-MM). Empty drops every month"
// @Success 200 {object} response.Envelope
// @Router /earnings/cache [delete]
func (h *EarningsHandler) InvalidateCache(c *gin.Context) {
	schoolID := strings.TrimSpace(c.Query("schoolId"))
	month := strings.TrimSpace(c.Query("month"))
	removed, err := h.service.Invalidate(c.Request.Context(), schoolID, month)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.CacheInvalidation{SchoolID: schoolID, Month: month, Removed: removed})
}

func (h *EarningsHandler) bindQuery(c *gin.Context) (dto.EarningsQuery, bool) {
	var query dto.EarningsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid earnings query"))
		return query, false
	}
	if err := h.validator.Struct(query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid earnings query"))
		return query, false
	}
	return query, true
}
