package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/sma-earnings-api/internal/models"
	appErrors "github.com/noah-isme/sma-earnings-api/pkg/errors"
)

// Counting rules shared by the historical comparator and the tests. The grouped
// aggregate query in the repository expresses the same predicates in SQL.

// MonthWindowFor parses a YYYY-MM key into its [first day, first day of next month) window.
func MonthWindowFor(yearMonth string, loc *time.Location) (models.MonthWindow, error) {
	if loc == nil {
		loc = time.UTC
	}
	start, err := time.ParseInLocation(models.YearMonthLayout, strings.TrimSpace(yearMonth), loc)
	if err != nil {
		return models.MonthWindow{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status,
			fmt.Sprintf("yearMonth must use YYYY-MM format, got %q", yearMonth))
	}
	return models.MonthWindow{
		YearMonth: start.Format(models.YearMonthLayout),
		Start:     start,
		End:       start.AddDate(0, 1, 0),
	}, nil
}

// PreviousYearMonth returns the YYYY-MM key of the month before the window.
func PreviousYearMonth(window models.MonthWindow) string {
	return window.Start.AddDate(0, -1, 0).Format(models.YearMonthLayout)
}

// InWindow reports whether t falls inside the window. Both the first and the last
// calendar day count.
func InWindow(t *time.Time, window models.MonthWindow) bool {
	if t == nil {
		return false
	}
	return !t.Before(window.Start) && t.Before(window.End)
}

// IsActive reports whether the student has the exact Active status.
func IsActive(s models.StudentRecord) bool {
	return s.Status == models.StudentStatusActive
}

// IsFreePackage reports whether the package is one of the free variants.
func IsFreePackage(pkg string) bool {
	for _, free := range models.FreePackages {
		if pkg == free {
			return true
		}
	}
	return false
}

// IsPaying reports whether an active student is on a non-free package. A missing
// package counts as paying.
func IsPaying(s models.StudentRecord) bool {
	if !IsActive(s) {
		return false
	}
	return !s.Package.Valid || !IsFreePackage(s.Package.String)
}

// IsQualifyingPayment reports whether a ledger row counts as paid for its month.
func IsQualifyingPayment(p models.PaymentMonthRecord) bool {
	if p.IsFreeMonth.Valid && p.IsFreeMonth.Bool {
		return true
	}
	if !p.PaymentStatus.Valid {
		return false
	}
	switch strings.ToLower(p.PaymentStatus.String) {
	case "paid", "complete", "success":
		return true
	}
	return false
}

// IsLeaveInWindow reports whether a Leave student exited inside the window.
func IsLeaveInWindow(s models.StudentRecord, window models.MonthWindow) bool {
	return s.Status == models.StudentStatusLeave && InWindow(s.ExitDate, window)
}

// IsLinked reports whether an Active or Not Yet student has a non-blank chat handle.
func IsLinked(s models.StudentRecord) bool {
	if s.Status != models.StudentStatusActive && s.Status != models.StudentStatusNotYet {
		return false
	}
	return s.ChatID.Valid && strings.TrimSpace(s.ChatID.String) != ""
}

// IsReferenced reports whether the student was referred by the controller, is paying,
// registered inside the window and has a qualifying payment for it.
func IsReferenced(s models.StudentRecord, controllerCode string, window models.MonthWindow, paid bool) bool {
	if !s.Refer.Valid || s.Refer.String != controllerCode {
		return false
	}
	return IsPaying(s) && paid && InWindow(s.RegistrationDate, window)
}

// QualifyingStudents indexes the students with at least one qualifying payment per month.
func QualifyingStudents(payments []models.PaymentMonthRecord) map[string]map[int64]struct{} {
	byMonth := make(map[string]map[int64]struct{})
	for _, p := range payments {
		if !IsQualifyingPayment(p) {
			continue
		}
		set, ok := byMonth[p.Month]
		if !ok {
			set = make(map[int64]struct{})
			byMonth[p.Month] = set
		}
		set[p.StudentID] = struct{}{}
	}
	return byMonth
}

// CountStudents buckets a controller's students for one month using the Go rules.
// paid holds the ids of students with a qualifying payment for the window's month.
func CountStudents(controllerCode string, students []models.StudentRecord, paid map[int64]struct{}, window models.MonthWindow) models.ControllerCounts {
	var counts models.ControllerCounts
	for _, s := range students {
		_, hasPaid := paid[s.ID]
		if IsActive(s) {
			counts.ActiveStudents++
		}
		if IsPaying(s) {
			counts.ActivePayingStudents++
			if hasPaid {
				counts.PaidThisMonth++
			} else {
				counts.UnpaidActiveThisMonth++
			}
		}
		switch s.Status {
		case models.StudentStatusNotYet:
			counts.NotYetStudents++
		case models.StudentStatusRamadanLeave:
			counts.RamadanLeaveStudents++
		}
		if IsLeaveInWindow(s, window) {
			counts.LeaveStudentsThisMonth++
		}
		if IsLinked(s) {
			counts.LinkedStudents++
		}
		if IsReferenced(s, controllerCode, window, hasPaid) {
			counts.ReferencedActiveStudents++
		}
	}
	return counts
}

// AggregateRow validates a raw grouped row. Any NULL count is rejected.
func AggregateRow(raw models.RawAggregateRow) (models.ControllerCounts, error) {
	var counts models.ControllerCounts
	fields := []struct {
		name  string
		value *int64
		dest  *int
	}{
		{"active_students", raw.ActiveStudents, &counts.ActiveStudents},
		{"active_paying_students", raw.ActivePayingStudents, &counts.ActivePayingStudents},
		{"not_yet_students", raw.NotYetStudents, &counts.NotYetStudents},
		{"leave_students_this_month", raw.LeaveStudentsThisMonth, &counts.LeaveStudentsThisMonth},
		{"ramadan_leave_students", raw.RamadanLeaveStudents, &counts.RamadanLeaveStudents},
		{"paid_this_month", raw.PaidThisMonth, &counts.PaidThisMonth},
		{"unpaid_active_this_month", raw.UnpaidActiveThisMonth, &counts.UnpaidActiveThisMonth},
		{"referenced_active_students", raw.ReferencedActiveStudents, &counts.ReferencedActiveStudents},
		{"linked_students", raw.LinkedStudents, &counts.LinkedStudents},
	}
	for _, field := range fields {
		if field.value == nil {
			return models.ControllerCounts{}, appErrors.Clone(appErrors.ErrInvalidAggregateRow,
				fmt.Sprintf("controller %s has NULL %s", raw.ControllerCode, field.name))
		}
		if *field.value < 0 {
			return models.ControllerCounts{}, appErrors.Clone(appErrors.ErrInvalidAggregateRow,
				fmt.Sprintf("controller %s has negative %s", raw.ControllerCode, field.name))
		}
		*field.dest = int(*field.value)
	}
	return counts, nil
}
