package dto

import (
	"time"

	"github.com/noah-isme/sma-earnings-api/internal/models"
)

// EarningsExportRequest captures POST /earnings/exports.
type EarningsExportRequest struct {
	Month        string              `json:"month" validate:"required,yearmonth"`
	SchoolID     string              `json:"schoolId,omitempty" validate:"omitempty,max=64"`
	ControllerID string              `json:"controllerId,omitempty" validate:"omitempty,max=64"`
	Format       models.ReportFormat `json:"format" validate:"required,oneof=csv pdf"`
}

// ReportJobResponse is returned after enqueueing an export.
type ReportJobResponse struct {
	ID       string              `json:"id"`
	Status   models.ReportStatus `json:"status"`
	Progress int                 `json:"progress"`
}

// ReportStatusResponse exposes export job progress.
type ReportStatusResponse struct {
	ID         string                 `json:"id"`
	Status     models.ReportStatus    `json:"status"`
	Progress   int                    `json:"progress"`
	Params     models.ReportJobParams `json:"params"`
	CreatedAt  time.Time              `json:"createdAt"`
	FinishedAt *time.Time             `json:"finishedAt,omitempty"`
	ResultURL  *string                `json:"resultUrl,omitempty"`
	Error      *string                `json:"error,omitempty"`
}
