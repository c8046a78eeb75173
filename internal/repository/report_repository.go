package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-earnings-api/internal/models"
)

const (
	exportJobSelect = `SELECT id, type, params, status, progress, result_url, created_by, created_at, finished_at, error_message
FROM earnings_export_jobs`

	defaultExportJobPage = 20
)

// ReportRepository stores export jobs in earnings_export_jobs.
type ReportRepository struct {
	db *sqlx.DB
}

func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// Create fills in ID, type, status and creation time when unset, then inserts the row.
func (r *ReportRepository) Create(ctx context.Context, job *models.ReportJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Type == "" {
		job.Type = models.ReportTypeControllerEarnings
	}
	if job.Status == "" {
		job.Status = models.ReportStatusQueued
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}

	const query = `INSERT INTO earnings_export_jobs (id, type, params, status, progress, result_url, created_by, created_at, finished_at, error_message)
VALUES (:id, :type, :params, :status, :progress, :result_url, :created_by, :created_at, :finished_at, :error_message)`
	if _, err := r.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("insert export job %s: %w", job.ID, err)
	}
	return nil
}

// GetByID returns sql.ErrNoRows (wrapped) when the job does not exist.
func (r *ReportRepository) GetByID(ctx context.Context, id string) (*models.ReportJob, error) {
	var job models.ReportJob
	if err := r.db.GetContext(ctx, &job, exportJobSelect+" WHERE id = $1", id); err != nil {
		return nil, fmt.Errorf("get export job %s: %w", id, err)
	}
	return &job, nil
}

// UpdateReportJobParams lists the columns a worker may change; nil fields are left untouched.
type UpdateReportJobParams struct {
	Status       *models.ReportStatus
	Progress     *int
	ResultURL    *string
	ErrorMessage *string
	FinishedAt   *time.Time
}

func (p UpdateReportJobParams) assignments() ([]string, []interface{}) {
	var (
		columns []string
		values  []interface{}
	)
	add := func(column string, value interface{}) {
		columns = append(columns, column)
		values = append(values, value)
	}
	if p.Status != nil {
		add("status", *p.Status)
	}
	if p.Progress != nil {
		add("progress", *p.Progress)
	}
	if p.ResultURL != nil {
		add("result_url", *p.ResultURL)
	}
	if p.ErrorMessage != nil {
		add("error_message", *p.ErrorMessage)
	}
	if p.FinishedAt != nil {
		add("finished_at", *p.FinishedAt)
	}
	return columns, values
}

func (r *ReportRepository) Update(ctx context.Context, id string, params UpdateReportJobParams) error {
	columns, args := params.assignments()
	if len(columns) == 0 {
		return nil
	}
	set := make([]string, len(columns))
	for i, column := range columns {
		set[i] = fmt.Sprintf("%s = $%d", column, i+1)
	}
	args = append(args, id)
	query := fmt.Sprintf("UPDATE earnings_export_jobs SET %s WHERE id = $%d", strings.Join(set, ", "), len(args))

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update export job %s: %w", id, err)
	}
	return nil
}

// ListByCreator returns a requester's jobs, newest first.
func (r *ReportRepository) ListByCreator(ctx context.Context, createdBy string, limit int) ([]models.ReportJob, error) {
	return r.list(ctx, "list export jobs by creator",
		exportJobSelect+" WHERE created_by = $1 ORDER BY created_at DESC LIMIT $2",
		createdBy, pageSize(limit, defaultExportJobPage))
}

// ListQueued returns jobs still waiting for a worker, oldest first.
func (r *ReportRepository) ListQueued(ctx context.Context, limit int) ([]models.ReportJob, error) {
	return r.list(ctx, "list queued export jobs",
		exportJobSelect+" WHERE status = $1 ORDER BY created_at ASC LIMIT $2",
		models.ReportStatusQueued, pageSize(limit, defaultExportJobPage))
}

// ListFinishedBefore returns finished jobs whose files are due for removal.
func (r *ReportRepository) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ReportJob, error) {
	return r.list(ctx, "list expired export jobs",
		exportJobSelect+" WHERE status = $1 AND finished_at IS NOT NULL AND finished_at < $2 ORDER BY finished_at ASC LIMIT $3",
		models.ReportStatusFinished, cutoff, pageSize(limit, 50))
}

func (r *ReportRepository) list(ctx context.Context, op, query string, args ...interface{}) ([]models.ReportJob, error) {
	var jobs []models.ReportJob
	if err := r.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return jobs, nil
}

func pageSize(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	return limit
}
