package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-earnings-api/internal/dto"
	"github.com/noah-isme/sma-earnings-api/internal/middleware"
	"github.com/noah-isme/sma-earnings-api/internal/models"
	"github.com/noah-isme/sma-earnings-api/internal/service"
	appErrors "github.com/noah-isme/sma-earnings-api/pkg/errors"
	"github.com/noah-isme/sma-earnings-api/pkg/response"
)

type reportService interface {
	CreateJob(ctx context.Context, req dto.EarningsExportRequest, actorID string) (*dto.ReportJobResponse, error)
	GetStatus(ctx context.Context, id string) (*dto.ReportStatusResponse, error)
	ListJobs(ctx context.Context, actorID string, limit int) ([]dto.ReportStatusResponse, error)
	ResolveDownload(ctx context.Context, token string) (*service.ReportDownload, error)
}

// ReportHandler exposes earnings export endpoints.
type ReportHandler struct {
	service reportService
	logger  *zap.Logger
}

// NewReportHandler constructs handler.
func NewReportHandler(service reportService, logger *zap.Logger) *ReportHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportHandler{service: service, logger: logger}
}

// GenerateReport godoc
// @Summary Queue an earnings export
// @Tags Exports
// @Accept json
// @Produce json
// @Param payload body dto.EarningsExportRequest true "Export scope"
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /earnings/exports [post]
func (h *ReportHandler) GenerateReport(c *gin.Context) {
	var req dto.EarningsExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid export payload"))
		return
	}
	req.Format = models.ReportFormat(strings.ToLower(string(req.Format)))
	job, err := h.service.CreateJob(c.Request.Context(), req, middleware.RequesterFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, job)
}

// ListJobs godoc
// @Summary Recent exports of the requester
// @Tags Exports
// @Produce json
// @Param limit query int false "Maximum jobs (default 20)"
// @Success 200 {object} response.Envelope
// @Router /earnings/exports [get]
func (h *ReportHandler) ListJobs(c *gin.Context) {
	limit := 0
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 100 {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "limit must be between 1 and 100"))
			return
		}
		limit = parsed
	}
	jobs, err := h.service.ListJobs(c.Request.Context(), middleware.RequesterFromContext(c), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, jobs, map[string]interface{}{"count": len(jobs)})
}

// ReportStatus godoc
// @Summary Export job status
// @Tags Exports
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /earnings/exports/{id} [get]
func (h *ReportHandler) ReportStatus(c *gin.Context) {
	status, err := h.service.GetStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status)
}

// DownloadReport godoc
// @Summary Download a finished export
// @Tags Exports
// @Produce octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Router /export/{token} [get]
func (h *ReportHandler) DownloadReport(c *gin.Context) {
	download, err := h.service.ResolveDownload(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer func() {
		if cerr := download.File.Close(); cerr != nil {
			h.logger.Warn("close export file", zap.Error(cerr))
		}
	}()
	info, err := download.File.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read export"))
		return
	}
	headers := map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", download.Filename),
		"Cache-Control":       "no-store",
	}
	c.DataFromReader(http.StatusOK, info.Size(), download.Format.ContentType(), download.File, headers)
}
