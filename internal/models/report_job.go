package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ReportType names the dataset an export job renders.
type ReportType string

const ReportTypeControllerEarnings ReportType = "controller_earnings"

// ReportFormat is the file format of an export.
type ReportFormat string

const (
	ReportFormatCSV ReportFormat = "csv"
	ReportFormatPDF ReportFormat = "pdf"
)

// ContentType is the media type the download endpoint serves the format as.
func (f ReportFormat) ContentType() string {
	switch f {
	case ReportFormatCSV:
		return "text/csv; charset=utf-8"
	case ReportFormatPDF:
		return "application/pdf"
	}
	return "application/octet-stream"
}

// ReportStatus is the lifecycle state of an export job.
type ReportStatus string

const (
	ReportStatusQueued     ReportStatus = "QUEUED"
	ReportStatusProcessing ReportStatus = "PROCESSING"
	ReportStatusFinished   ReportStatus = "FINISHED"
	ReportStatusFailed     ReportStatus = "FAILED"
)

// Terminal reports whether no worker will touch the job again.
func (s ReportStatus) Terminal() bool {
	return s == ReportStatusFinished || s == ReportStatusFailed
}

// ReportJob is one row of earnings_export_jobs.
type ReportJob struct {
	ID           string          `db:"id" json:"id"`
	Type         ReportType      `db:"type" json:"type"`
	Params       ReportJobParams `db:"params" json:"params"`
	Status       ReportStatus    `db:"status" json:"status"`
	Progress     int             `db:"progress" json:"progress"`
	ResultURL    *string         `db:"result_url" json:"resultUrl,omitempty"`
	CreatedBy    string          `db:"created_by" json:"createdBy"`
	CreatedAt    time.Time       `db:"created_at" json:"createdAt"`
	FinishedAt   *time.Time      `db:"finished_at" json:"finishedAt,omitempty"`
	ErrorMessage *string         `db:"error_message" json:"error,omitempty"`
}

// ReportJobParams is the earnings scope of an export, stored in a JSONB column.
type ReportJobParams struct {
	YearMonth    string       `json:"yearMonth"`
	SchoolID     string       `json:"schoolId,omitempty"`
	ControllerID string       `json:"controllerId,omitempty"`
	Format       ReportFormat `json:"format"`
}

func (p ReportJobParams) EarningsParams() EarningsParams {
	return EarningsParams{
		YearMonth:    p.YearMonth,
		SchoolID:     p.SchoolID,
		ControllerID: p.ControllerID,
	}
}

func (p ReportJobParams) Value() (driver.Value, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode export params: %w", err)
	}
	return raw, nil
}

func (p *ReportJobParams) Scan(src interface{}) error {
	*p = ReportJobParams{}
	var raw []byte
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("export params: cannot scan %T", src)
	}
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, p); err != nil {
		return fmt.Errorf("decode export params: %w", err)
	}
	return nil
}
