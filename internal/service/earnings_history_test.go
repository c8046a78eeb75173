package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-earnings-api/internal/models"
)

func TestHistoricalComparatorPreviousMonthAcrossYear(t *testing.T) {
	repo := newEarningsRepoStub()
	referred := activeStudent(1, "Standard")
	referred.Refer = nullString("CTL1")
	referred.RegistrationDate = day(2023, 12, 3)
	repo.students["CTL1"] = []models.StudentRecord{
		referred,
		activeStudent(2, "Standard"),
		activeStudent(3, models.PackageZeroFee),
	}
	for id := int64(10); id < 17; id++ {
		repo.students["CTL1"] = append(repo.students["CTL1"], models.StudentRecord{
			ID: id, Status: models.StudentStatusLeave, ExitDate: day(2023, 12, 28),
		})
	}
	repo.payments["CTL1"] = []models.PaymentMonthRecord{
		{StudentID: 1, Month: "2023-12", PaymentStatus: nullString("success")},
		{StudentID: 2, Month: "2024-01", PaymentStatus: nullString("paid")},
	}
	comparator := NewHistoricalComparator(repo, "", BuiltinEarningsConfig(), fixedClock())

	value, err := comparator.PreviousMonthEarnings(context.Background(), "CTL1", mustWindow(t, "2024-01"))
	require.NoError(t, err)
	// 3 active (120), 7 leave over a threshold of 5 (240), student 2 unpaid (80). The referral is not added.
	assertDecimal(t, "-200", value)
}

func TestHistoricalComparatorYearToDate(t *testing.T) {
	repo := newEarningsRepoStub()
	seedPayingRoster(repo, "CTL1", 2, "2024-01", "2024-02", "2024-03", "2024-04", "2024-05", "2023-12")
	comparator := NewHistoricalComparator(repo, "", BuiltinEarningsConfig(), fixedClock())

	value, err := comparator.YearToDateEarnings(context.Background(), "CTL1", time.UTC)
	require.NoError(t, err)
	assertDecimal(t, "400", value)
}

func TestHistoricalComparatorPropagatesErrors(t *testing.T) {
	repo := newEarningsRepoStub()
	repo.paymentErrors["CTL1|2024-%"] = errors.New("boom")
	comparator := NewHistoricalComparator(repo, "", BuiltinEarningsConfig(), fixedClock())

	_, err := comparator.YearToDateEarnings(context.Background(), "CTL1", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "year to date payments")
}
