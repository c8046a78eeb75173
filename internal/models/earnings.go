package models

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

// Student status vocabulary of the external roster. Matching is case-sensitive.
const (
	StudentStatusActive       = "Active"
	StudentStatusNotYet       = "Not Yet"
	StudentStatusLeave        = "Leave"
	StudentStatusRamadanLeave = "Ramadan Leave"
)

// Free package variants excluded from the paying subset.
const (
	PackageZeroFee      = "0 Fee"
	PackageZeroFee6Days = "0 Fee 6 days"
	PackageZeroFee3Days = "0 Fee 3 days"
)

const (
	DefaultTeamID   = 1
	DefaultTeamName = "Default Team"

	// YearMonthLayout parses the YYYY-MM keys used by months_table.
	YearMonthLayout = "2006-01"

	ConfigSourceDatabase = "database"
	ConfigSourceDefault  = "default"
)

// FreePackages lists the package names that never count as paying.
var FreePackages = []string{PackageZeroFee, PackageZeroFee6Days, PackageZeroFee3Days}

// EarningsConfig is the rate policy applied to one calculation.
type EarningsConfig struct {
	ID                      *int64          `db:"id" json:"id,omitempty"`
	SchoolID                *string         `db:"school_id" json:"schoolId,omitempty"`
	MainBaseRate            decimal.Decimal `db:"main_base_rate" json:"mainBaseRate"`
	ReferralBaseRate        decimal.Decimal `db:"referral_base_rate" json:"referralBaseRate"`
	LeavePenaltyMultiplier  decimal.Decimal `db:"leave_penalty_multiplier" json:"leavePenaltyMultiplier"`
	LeaveThreshold          int             `db:"leave_threshold" json:"leaveThreshold"`
	UnpaidPenaltyMultiplier decimal.Decimal `db:"unpaid_penalty_multiplier" json:"unpaidPenaltyMultiplier"`
	ReferralBonusMultiplier decimal.Decimal `db:"referral_bonus_multiplier" json:"referralBonusMultiplier"`
	TargetEarnings          decimal.Decimal `db:"target_earnings" json:"targetEarnings"`
	EffectiveFrom           *time.Time      `db:"effective_from" json:"effectiveFrom,omitempty"`
	IsActive                bool            `db:"is_active" json:"isActive"`
	Source                  string          `db:"-" json:"source"`
}

// StudentRecord is the subset of roster columns consumed by the earnings rules.
type StudentRecord struct {
	ID               int64          `db:"id" json:"id"`
	Status           string         `db:"status" json:"status"`
	Package          sql.NullString `db:"package" json:"-"`
	ExitDate         *time.Time     `db:"exitdate" json:"exitDate,omitempty"`
	RegistrationDate *time.Time     `db:"registrationdate" json:"registrationDate,omitempty"`
	Refer            sql.NullString `db:"refer" json:"-"`
	ChatID           sql.NullString `db:"chat_id" json:"-"`
	ControllerCode   string         `db:"u_control" json:"controllerCode"`
}

// PaymentMonthRecord is one ledger row of months_table.
type PaymentMonthRecord struct {
	StudentID     int64          `db:"studentid" json:"studentId"`
	Month         string         `db:"month" json:"month"`
	PaymentStatus sql.NullString `db:"payment_status" json:"-"`
	IsFreeMonth   sql.NullBool   `db:"is_free_month" json:"-"`
}

// RawAggregateRow is one grouped row of the monthly aggregate query. Counts are
// pointers so that NULLs can be rejected instead of coerced.
type RawAggregateRow struct {
	ControllerCode           string  `db:"controller_code"`
	ControllerName           *string `db:"controller_name"`
	ActiveStudents           *int64  `db:"active_students"`
	ActivePayingStudents     *int64  `db:"active_paying_students"`
	NotYetStudents           *int64  `db:"not_yet_students"`
	LeaveStudentsThisMonth   *int64  `db:"leave_students_this_month"`
	RamadanLeaveStudents     *int64  `db:"ramadan_leave_students"`
	PaidThisMonth            *int64  `db:"paid_this_month"`
	UnpaidActiveThisMonth    *int64  `db:"unpaid_active_this_month"`
	ReferencedActiveStudents *int64  `db:"referenced_active_students"`
	LinkedStudents           *int64  `db:"linked_students"`
}

// ControllerCounts holds the nine semantic buckets for one controller and month.
type ControllerCounts struct {
	ActiveStudents           int `json:"activeStudents"`
	ActivePayingStudents     int `json:"activePayingStudents"`
	NotYetStudents           int `json:"notYetStudents"`
	LeaveStudentsThisMonth   int `json:"leaveStudentsThisMonth"`
	RamadanLeaveStudents     int `json:"ramadanLeaveStudents"`
	PaidThisMonth            int `json:"paidThisMonth"`
	UnpaidActiveThisMonth    int `json:"unpaidActiveThisMonth"`
	ReferencedActiveStudents int `json:"referencedActiveStudents"`
	LinkedStudents           int `json:"linkedStudents"`
}

// EarningsBreakdown is the output of the formula engine.
type EarningsBreakdown struct {
	BaseEarnings          decimal.Decimal `json:"baseEarnings"`
	LeavePenalty          decimal.Decimal `json:"leavePenalty"`
	UnpaidPenalty         decimal.Decimal `json:"unpaidPenalty"`
	ReferencedBonus       decimal.Decimal `json:"referencedBonus"`
	TotalEarnings         decimal.Decimal `json:"totalEarnings"`
	TargetEarnings        decimal.Decimal `json:"targetEarnings"`
	AchievementPercentage decimal.Decimal `json:"achievementPercentage"`
}

// ControllerEarnings is the computed report row for one controller and month.
type ControllerEarnings struct {
	ControllerID   string `json:"controllerId"`
	ControllerName string `json:"controllerName"`
	TeamID         int    `json:"teamId"`
	TeamName       string `json:"teamName"`
	YearMonth      string `json:"yearMonth"`

	ControllerCounts
	EarningsBreakdown

	GrowthRate            decimal.Decimal `json:"growthRate"`
	PreviousMonthEarnings decimal.Decimal `json:"previousMonthEarnings"`
	YearToDateEarnings    decimal.Decimal `json:"yearToDateEarnings"`
}

// EarningsParams scopes one calculation request.
type EarningsParams struct {
	YearMonth    string
	SchoolID     string
	ControllerID string
	// TeamID is accepted but not applied; all controllers report under DefaultTeamName.
	TeamID *int
}

// MonthWindow is the calendar window of a year-month: [Start, End).
type MonthWindow struct {
	YearMonth string
	Start     time.Time
	End       time.Time
}
