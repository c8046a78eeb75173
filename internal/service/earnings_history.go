package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/sma-earnings-api/internal/models"
)

type earningsHistoryReader interface {
	ListControllerStudents(ctx context.Context, controllerID, schoolID string) ([]models.StudentRecord, error)
	ListControllerPayments(ctx context.Context, controllerID, schoolID, monthPattern string) ([]models.PaymentMonthRecord, error)
}

// HistoricalComparator recomputes base-minus-penalty earnings for past windows of a
// single controller. It works on the controller's current roster and the ledger rows
// of the requested months.
type HistoricalComparator struct {
	repo     earningsHistoryReader
	schoolID string
	config   models.EarningsConfig
	now      func() time.Time
}

// NewHistoricalComparator binds the comparator to one school and rate snapshot.
func NewHistoricalComparator(repo earningsHistoryReader, schoolID string, cfg models.EarningsConfig, now func() time.Time) *HistoricalComparator {
	if now == nil {
		now = time.Now
	}
	return &HistoricalComparator{repo: repo, schoolID: schoolID, config: cfg, now: now}
}

// PreviousMonthEarnings returns the figure for the month before current.
func (h *HistoricalComparator) PreviousMonthEarnings(ctx context.Context, controllerID string, current models.MonthWindow) (decimal.Decimal, error) {
	window, err := MonthWindowFor(PreviousYearMonth(current), current.Start.Location())
	if err != nil {
		return decimal.Zero, err
	}
	students, err := h.repo.ListControllerStudents(ctx, controllerID, h.schoolID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("previous month roster: %w", err)
	}
	payments, err := h.repo.ListControllerPayments(ctx, controllerID, h.schoolID, window.YearMonth)
	if err != nil {
		return decimal.Zero, fmt.Errorf("previous month payments: %w", err)
	}
	paid := QualifyingStudents(payments)[window.YearMonth]
	counts := CountStudents(controllerID, students, paid, window)
	return HistoricalEarnings(counts, h.config), nil
}

// YearToDateEarnings sums the monthly figures from January of the current year up
// to and including the current month.
func (h *HistoricalComparator) YearToDateEarnings(ctx context.Context, controllerID string, loc *time.Location) (decimal.Decimal, error) {
	if loc == nil {
		loc = time.UTC
	}
	now := h.now().In(loc)
	students, err := h.repo.ListControllerStudents(ctx, controllerID, h.schoolID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("year to date roster: %w", err)
	}
	payments, err := h.repo.ListControllerPayments(ctx, controllerID, h.schoolID, fmt.Sprintf("%04d-%%", now.Year()))
	if err != nil {
		return decimal.Zero, fmt.Errorf("year to date payments: %w", err)
	}
	paidByMonth := QualifyingStudents(payments)

	total := decimal.Zero
	for month := time.January; month <= now.Month(); month++ {
		start := time.Date(now.Year(), month, 1, 0, 0, 0, 0, loc)
		window := models.MonthWindow{
			YearMonth: start.Format(models.YearMonthLayout),
			Start:     start,
			End:       start.AddDate(0, 1, 0),
		}
		counts := CountStudents(controllerID, students, paidByMonth[window.YearMonth], window)
		total = total.Add(HistoricalEarnings(counts, h.config))
	}
	return total, nil
}
