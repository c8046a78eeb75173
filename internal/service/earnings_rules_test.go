package service

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-earnings-api/internal/models"
	appErrors "github.com/noah-isme/sma-earnings-api/pkg/errors"
)

func mustWindow(t *testing.T, yearMonth string) models.MonthWindow {
	t.Helper()
	window, err := MonthWindowFor(yearMonth, time.UTC)
	require.NoError(t, err)
	return window
}

func day(year int, month time.Month, d int) *time.Time {
	value := time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
	return &value
}

func nullString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: true}
}

func activeStudent(id int64, pkg string) models.StudentRecord {
	s := models.StudentRecord{ID: id, Status: models.StudentStatusActive, ControllerCode: "CTL1"}
	if pkg != "" {
		s.Package = nullString(pkg)
	}
	return s
}

func TestMonthWindowFor(t *testing.T) {
	window := mustWindow(t, "2024-02")
	assert.Equal(t, "2024-02", window.YearMonth)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), window.Start)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), window.End)
	assert.Equal(t, "2024-01", PreviousYearMonth(window))
	assert.Equal(t, "2023-12", PreviousYearMonth(mustWindow(t, "2024-01")))

	for _, raw := range []string{"", "2024-13", "2024/05", "May 2024"} {
		_, err := MonthWindowFor(raw, time.UTC)
		require.Error(t, err, raw)
		assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	}
}

func TestFreePackageExclusion(t *testing.T) {
	window := mustWindow(t, "2024-05")
	students := []models.StudentRecord{
		activeStudent(1, models.PackageZeroFee),
		activeStudent(2, models.PackageZeroFee6Days),
		activeStudent(3, models.PackageZeroFee3Days),
		activeStudent(4, "Standard"),
		activeStudent(5, ""),
	}

	counts := CountStudents("CTL1", students, map[int64]struct{}{}, window)

	assert.Equal(t, 5, counts.ActiveStudents)
	assert.Equal(t, 2, counts.ActivePayingStudents)
	assert.Equal(t, 2, counts.UnpaidActiveThisMonth)
	assert.Equal(t, 0, counts.PaidThisMonth)
	for _, s := range students[:3] {
		assert.False(t, IsPaying(s), s.Package.String)
	}
	assert.True(t, IsPaying(students[4]), "missing package counts as paying")
	assert.False(t, IsFreePackage("0 fee"), "package names are case sensitive")
}

func TestIsQualifyingPayment(t *testing.T) {
	cases := []struct {
		name   string
		record models.PaymentMonthRecord
		want   bool
	}{
		{"paid", models.PaymentMonthRecord{PaymentStatus: nullString("paid")}, true},
		{"complete upper", models.PaymentMonthRecord{PaymentStatus: nullString("COMPLETE")}, true},
		{"success mixed", models.PaymentMonthRecord{PaymentStatus: nullString("Success")}, true},
		{"pending", models.PaymentMonthRecord{PaymentStatus: nullString("pending")}, false},
		{"null status", models.PaymentMonthRecord{}, false},
		{"free month", models.PaymentMonthRecord{PaymentStatus: nullString("pending"), IsFreeMonth: sql.NullBool{Bool: true, Valid: true}}, true},
		{"not free month", models.PaymentMonthRecord{IsFreeMonth: sql.NullBool{Bool: false, Valid: true}}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsQualifyingPayment(tc.record))
		})
	}
}

func TestCountStudentsBuckets(t *testing.T) {
	window := mustWindow(t, "2024-05")
	students := []models.StudentRecord{
		activeStudent(1, "Standard"),
		activeStudent(2, "Standard"),
		{ID: 3, Status: models.StudentStatusNotYet, ChatID: nullString("chat-3")},
		{ID: 4, Status: models.StudentStatusLeave, ExitDate: day(2024, 5, 20)},
		{ID: 5, Status: models.StudentStatusLeave, ExitDate: day(2024, 4, 30)},
		{ID: 6, Status: models.StudentStatusLeave},
		{ID: 7, Status: models.StudentStatusRamadanLeave, ChatID: nullString("chat-7")},
		{ID: 8, Status: "active"},
	}
	students[0].ChatID = nullString("chat-1")
	students[1].ChatID = nullString("   ")

	paid := QualifyingStudents([]models.PaymentMonthRecord{
		{StudentID: 1, Month: "2024-05", PaymentStatus: nullString("paid")},
		{StudentID: 2, Month: "2024-05", PaymentStatus: nullString("failed")},
		{StudentID: 2, Month: "2024-04", PaymentStatus: nullString("paid")},
	})["2024-05"]

	counts := CountStudents("CTL1", students, paid, window)

	assert.Equal(t, models.ControllerCounts{
		ActiveStudents:         2,
		ActivePayingStudents:   2,
		NotYetStudents:         1,
		LeaveStudentsThisMonth: 1,
		RamadanLeaveStudents:   1,
		PaidThisMonth:          1,
		UnpaidActiveThisMonth:  1,
		LinkedStudents:         2,
	}, counts)
}

func TestReferralWindowBoundary(t *testing.T) {
	window := mustWindow(t, "2024-05")
	referred := func(registered *time.Time) models.StudentRecord {
		s := activeStudent(9, "Standard")
		s.Refer = nullString("CTL1")
		s.RegistrationDate = registered
		return s
	}

	assert.True(t, IsReferenced(referred(day(2024, 5, 1)), "CTL1", window, true), "first day")
	assert.True(t, IsReferenced(referred(day(2024, 5, 31)), "CTL1", window, true), "last day")
	lastInstant := time.Date(2024, 5, 31, 23, 59, 59, 0, time.UTC)
	assert.True(t, IsReferenced(referred(&lastInstant), "CTL1", window, true), "last day evening")

	assert.False(t, IsReferenced(referred(day(2024, 4, 30)), "CTL1", window, true), "day before")
	assert.False(t, IsReferenced(referred(day(2024, 6, 1)), "CTL1", window, true), "day after")
	assert.False(t, IsReferenced(referred(nil), "CTL1", window, true), "no registration date")
	assert.False(t, IsReferenced(referred(day(2024, 5, 10)), "CTL1", window, false), "no qualifying payment")
	assert.False(t, IsReferenced(referred(day(2024, 5, 10)), "CTL2", window, true), "other controller")

	free := referred(day(2024, 5, 10))
	free.Package = nullString(models.PackageZeroFee)
	assert.False(t, IsReferenced(free, "CTL1", window, true), "free package")
}

func TestAggregateRowRejectsNulls(t *testing.T) {
	n := func(v int64) *int64 { return &v }
	raw := models.RawAggregateRow{
		ControllerCode:           "CTL1",
		ActiveStudents:           n(10),
		ActivePayingStudents:     n(8),
		NotYetStudents:           n(1),
		LeaveStudentsThisMonth:   n(2),
		RamadanLeaveStudents:     n(0),
		PaidThisMonth:            n(6),
		UnpaidActiveThisMonth:    n(2),
		ReferencedActiveStudents: n(1),
		LinkedStudents:           n(4),
	}

	counts, err := AggregateRow(raw)
	require.NoError(t, err)
	assert.Equal(t, 10, counts.ActiveStudents)
	assert.Equal(t, 4, counts.LinkedStudents)

	broken := raw
	broken.PaidThisMonth = nil
	_, err = AggregateRow(broken)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidAggregateRow.Code, appErrors.FromError(err).Code)
	assert.Contains(t, err.Error(), "paid_this_month")

	negative := raw
	negative.LinkedStudents = n(-1)
	_, err = AggregateRow(negative)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "negative linked_students")
}
