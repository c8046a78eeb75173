package service

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-earnings-api/internal/models"
	"github.com/noah-isme/sma-earnings-api/pkg/export"
	"github.com/noah-isme/sma-earnings-api/pkg/storage"
)

type earningsLister interface {
	List(ctx context.Context, params models.EarningsParams, refresh bool) ([]models.ControllerEarnings, bool, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ReportFormat
	Rows         int
	ExpiresAt    time.Time
}

// ExportService renders controller earnings into files and signs their download links.
type ExportService struct {
	earnings earningsLister
	storage  fileStorage
	csv      csvRenderer
	pdf      pdfRenderer
	signer   *storage.SignedURLSigner
	logger   *zap.Logger
	cfg      ExportConfig
	now      func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(earnings earningsLister, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdfExporter := export.NewPDFExporter()
		pdfExporter.Footer = "Controller earnings"
		pdf = pdfExporter
	}
	return &ExportService{
		earnings: earnings,
		storage:  store,
		csv:      csv,
		pdf:      pdf,
		signer:   signer,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Generate computes the job's earnings, renders them and stores the file.
func (s *ExportService) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("export job is nil")
	}
	rows, _, err := s.earnings.List(ctx, job.Params.EarningsParams(), true)
	if err != nil {
		return nil, fmt.Errorf("calculate earnings for export: %w", err)
	}

	var payload []byte
	switch job.Params.Format {
	case models.ReportFormatCSV:
		payload, err = s.csv.Render(BuildEarningsDataset(job.Params, rows, true))
	case models.ReportFormatPDF:
		payload, err = s.pdf.Render(BuildEarningsDataset(job.Params, rows, false))
	default:
		err = fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	if err != nil {
		return nil, err
	}

	relPath, err := s.storage.Save(s.buildFilename(job), payload)
	if err != nil {
		return nil, err
	}
	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	s.logger.Info("earnings export generated",
		zap.String("job_id", job.ID),
		zap.String("path", relPath),
		zap.Int("rows", len(rows)),
	)
	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/export/%s", prefix, token),
		Format:       job.Params.Format,
		Rows:         len(rows),
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (storage.DownloadClaims, error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl, or the configured ResultTTL when ttl <= 0.
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(job *models.ReportJob) string {
	scope := []string{"earnings", job.Params.YearMonth}
	if job.Params.SchoolID != "" {
		scope = append(scope, sanitizeFilename(job.Params.SchoolID))
	}
	if job.Params.ControllerID != "" {
		scope = append(scope, sanitizeFilename(job.Params.ControllerID))
	}
	scope = append(scope, s.now().UTC().Format("20060102_150405"))
	return fmt.Sprintf("%s/%s.%s", job.Params.YearMonth, strings.Join(scope, "_"), job.Params.Format)
}

func sanitizeFilename(raw string) string {
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", "-", ".", "-")
	result := replacer.Replace(strings.TrimSpace(raw))
	if len(result) > 64 {
		result = result[:64]
	}
	if result == "" {
		return "na"
	}
	return result
}

type earningsColumn struct {
	column  export.Column
	compact bool
	value   func(models.ControllerEarnings) string
	total   func([]models.ControllerEarnings) string
}

func countColumn(header string, compact bool, get func(models.ControllerEarnings) int) earningsColumn {
	return earningsColumn{
		column:  export.Column{Header: header, Numeric: true},
		compact: compact,
		value:   func(row models.ControllerEarnings) string { return strconv.Itoa(get(row)) },
		total: func(rows []models.ControllerEarnings) string {
			sum := 0
			for _, row := range rows {
				sum += get(row)
			}
			return strconv.Itoa(sum)
		},
	}
}

func moneyColumn(header string, compact bool, get func(models.ControllerEarnings) decimal.Decimal) earningsColumn {
	return earningsColumn{
		column:  export.Column{Header: header, Numeric: true, Weight: 1.3},
		compact: compact,
		value:   func(row models.ControllerEarnings) string { return get(row).StringFixed(2) },
		total: func(rows []models.ControllerEarnings) string {
			sum := decimal.Zero
			for _, row := range rows {
				sum = sum.Add(get(row))
			}
			return sum.StringFixed(2)
		},
	}
}

func percentColumn(header string, compact bool, get func(models.ControllerEarnings) decimal.Decimal) earningsColumn {
	return earningsColumn{
		column:  export.Column{Header: header, Numeric: true},
		compact: compact,
		value:   func(row models.ControllerEarnings) string { return get(row).StringFixed(2) },
		total:   func([]models.ControllerEarnings) string { return "" },
	}
}

func textColumn(header string, compact bool, weight float64, get func(models.ControllerEarnings) string) earningsColumn {
	return earningsColumn{
		column:  export.Column{Header: header, Weight: weight},
		compact: compact,
		value:   get,
		total:   func([]models.ControllerEarnings) string { return "" },
	}
}

var earningsColumns = []earningsColumn{
	textColumn("Controller ID", false, 1.2, func(r models.ControllerEarnings) string { return r.ControllerID }),
	textColumn("Controller", true, 2, func(r models.ControllerEarnings) string { return r.ControllerName }),
	textColumn("Team", false, 1.2, func(r models.ControllerEarnings) string { return r.TeamName }),
	countColumn("Active", true, func(r models.ControllerEarnings) int { return r.ActiveStudents }),
	countColumn("Active Paying", true, func(r models.ControllerEarnings) int { return r.ActivePayingStudents }),
	countColumn("Not Yet", false, func(r models.ControllerEarnings) int { return r.NotYetStudents }),
	countColumn("Leave", true, func(r models.ControllerEarnings) int { return r.LeaveStudentsThisMonth }),
	countColumn("Ramadan Leave", false, func(r models.ControllerEarnings) int { return r.RamadanLeaveStudents }),
	countColumn("Paid", false, func(r models.ControllerEarnings) int { return r.PaidThisMonth }),
	countColumn("Unpaid", true, func(r models.ControllerEarnings) int { return r.UnpaidActiveThisMonth }),
	countColumn("Referenced", true, func(r models.ControllerEarnings) int { return r.ReferencedActiveStudents }),
	countColumn("Linked", false, func(r models.ControllerEarnings) int { return r.LinkedStudents }),
	moneyColumn("Base", true, func(r models.ControllerEarnings) decimal.Decimal { return r.BaseEarnings }),
	moneyColumn("Leave Penalty", true, func(r models.ControllerEarnings) decimal.Decimal { return r.LeavePenalty }),
	moneyColumn("Unpaid Penalty", true, func(r models.ControllerEarnings) decimal.Decimal { return r.UnpaidPenalty }),
	moneyColumn("Referral Bonus", true, func(r models.ControllerEarnings) decimal.Decimal { return r.ReferencedBonus }),
	moneyColumn("Total", true, func(r models.ControllerEarnings) decimal.Decimal { return r.TotalEarnings }),
	moneyColumn("Target", false, func(r models.ControllerEarnings) decimal.Decimal { return r.TargetEarnings }),
	percentColumn("Achievement %", true, func(r models.ControllerEarnings) decimal.Decimal { return r.AchievementPercentage }),
	percentColumn("Growth %", true, func(r models.ControllerEarnings) decimal.Decimal { return r.GrowthRate }),
	moneyColumn("Previous Month", false, func(r models.ControllerEarnings) decimal.Decimal { return r.PreviousMonthEarnings }),
	moneyColumn("Year To Date", false, func(r models.ControllerEarnings) decimal.Decimal { return r.YearToDateEarnings }),
}

// BuildEarningsDataset lays out earnings rows for export. Values are rounded to two
// decimals here and nowhere else. The compact layout (full=false) fits a PDF page.
func BuildEarningsDataset(params models.ReportJobParams, rows []models.ControllerEarnings, full bool) export.Dataset {
	selected := make([]earningsColumn, 0, len(earningsColumns))
	for _, col := range earningsColumns {
		if full || col.compact {
			selected = append(selected, col)
		}
	}

	dataset := export.Dataset{
		Title:   earningsExportTitle(params),
		Columns: make([]export.Column, len(selected)),
		Rows:    make([][]string, 0, len(rows)),
		Totals:  make([]string, len(selected)),
	}
	for i, col := range selected {
		dataset.Columns[i] = col.column
		dataset.Totals[i] = col.total(rows)
	}
	dataset.Totals[0] = "Total"
	for _, row := range rows {
		cells := make([]string, len(selected))
		for i, col := range selected {
			cells[i] = col.value(row)
		}
		dataset.Rows = append(dataset.Rows, cells)
	}
	return dataset
}

func earningsExportTitle(params models.ReportJobParams) string {
	title := "Controller Earnings " + params.YearMonth
	if params.SchoolID != "" {
		title += " - School " + params.SchoolID
	}
	if params.ControllerID != "" {
		title += " - Controller " + params.ControllerID
	}
	return title
}
