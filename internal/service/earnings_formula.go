package service

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/sma-earnings-api/internal/models"
)

// divisionPrecision bounds the decimal places kept by percentage divisions.
const divisionPrecision int32 = 16

var hundred = decimal.NewFromInt(100)

// ComputeEarnings applies the rate policy to one controller's counts. Totals are
// neither clamped nor rounded.
func ComputeEarnings(counts models.ControllerCounts, cfg models.EarningsConfig) models.EarningsBreakdown {
	base := decimal.NewFromInt(int64(counts.ActiveStudents)).Mul(cfg.MainBaseRate)
	leave := LeavePenalty(counts.LeaveStudentsThisMonth, cfg)
	unpaid := UnpaidPenalty(counts.UnpaidActiveThisMonth, cfg)
	bonus := decimal.NewFromInt(int64(counts.ReferencedActiveStudents)).
		Mul(cfg.ReferralBonusMultiplier).
		Mul(cfg.ReferralBaseRate)
	total := base.Sub(leave).Sub(unpaid).Add(bonus)

	return models.EarningsBreakdown{
		BaseEarnings:          base,
		LeavePenalty:          leave,
		UnpaidPenalty:         unpaid,
		ReferencedBonus:       bonus,
		TotalEarnings:         total,
		TargetEarnings:        cfg.TargetEarnings,
		AchievementPercentage: AchievementPercentage(total, cfg.TargetEarnings),
	}
}

// LeavePenalty charges only the leave students above the threshold.
func LeavePenalty(leaveStudents int, cfg models.EarningsConfig) decimal.Decimal {
	excess := leaveStudents - cfg.LeaveThreshold
	if excess <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(excess)).Mul(cfg.LeavePenaltyMultiplier).Mul(cfg.MainBaseRate)
}

// UnpaidPenalty charges every unpaid active paying student.
func UnpaidPenalty(unpaidStudents int, cfg models.EarningsConfig) decimal.Decimal {
	return decimal.NewFromInt(int64(unpaidStudents)).Mul(cfg.UnpaidPenaltyMultiplier).Mul(cfg.MainBaseRate)
}

// HistoricalEarnings is base minus penalties. Referral bonuses are not part of
// previous-month and year-to-date figures.
func HistoricalEarnings(counts models.ControllerCounts, cfg models.EarningsConfig) decimal.Decimal {
	base := decimal.NewFromInt(int64(counts.ActiveStudents)).Mul(cfg.MainBaseRate)
	return base.
		Sub(LeavePenalty(counts.LeaveStudentsThisMonth, cfg)).
		Sub(UnpaidPenalty(counts.UnpaidActiveThisMonth, cfg))
}

// AchievementPercentage is total/target*100, or zero without a positive target.
func AchievementPercentage(total, target decimal.Decimal) decimal.Decimal {
	if !target.IsPositive() {
		return decimal.Zero
	}
	return total.Mul(hundred).DivRound(target, divisionPrecision)
}

// GrowthRate compares the current total against the previous month. Without a
// positive baseline any positive total reports 100.
func GrowthRate(total, previous decimal.Decimal) decimal.Decimal {
	if previous.IsPositive() {
		return total.Sub(previous).Mul(hundred).DivRound(previous, divisionPrecision)
	}
	if total.IsPositive() {
		return hundred
	}
	return decimal.Zero
}
