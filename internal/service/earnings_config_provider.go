package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-earnings-api/internal/models"
	"github.com/noah-isme/sma-earnings-api/pkg/config"
)

type earningsConfigReader interface {
	FindActive(ctx context.Context, schoolID string) (*models.EarningsConfig, error)
}

// DefaultEarningsConfig converts the configured fallback policy into a rate config.
func DefaultEarningsConfig(defaults config.EarningsDefaults) models.EarningsConfig {
	return models.EarningsConfig{
		MainBaseRate:            decimal.NewFromFloat(defaults.MainBaseRate),
		ReferralBaseRate:        decimal.NewFromFloat(defaults.ReferralBaseRate),
		LeavePenaltyMultiplier:  decimal.NewFromFloat(defaults.LeavePenaltyMultiplier),
		LeaveThreshold:          defaults.LeaveThreshold,
		UnpaidPenaltyMultiplier: decimal.NewFromFloat(defaults.UnpaidPenaltyMultiplier),
		ReferralBonusMultiplier: decimal.NewFromFloat(defaults.ReferralBonusMultiplier),
		TargetEarnings:          decimal.NewFromFloat(defaults.TargetEarnings),
		IsActive:                true,
		Source:                  models.ConfigSourceDefault,
	}
}

// BuiltinEarningsConfig is the policy used when nothing else is configured.
func BuiltinEarningsConfig() models.EarningsConfig {
	return DefaultEarningsConfig(config.EarningsDefaults{
		MainBaseRate:            40,
		ReferralBaseRate:        40,
		LeavePenaltyMultiplier:  3,
		LeaveThreshold:          5,
		UnpaidPenaltyMultiplier: 2,
		ReferralBonusMultiplier: 4,
		TargetEarnings:          3000,
	})
}

// EarningsConfigProvider resolves the active rate policy for a school. It never fails:
// a missing or unreadable row resolves to the fallback policy.
type EarningsConfigProvider struct {
	repo     earningsConfigReader
	defaults models.EarningsConfig
	logger   *zap.Logger
}

// NewEarningsConfigProvider constructs the provider.
func NewEarningsConfigProvider(repo earningsConfigReader, defaults models.EarningsConfig, logger *zap.Logger) *EarningsConfigProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaults.MainBaseRate.IsZero() && defaults.TargetEarnings.IsZero() {
		defaults = BuiltinEarningsConfig()
	}
	defaults.Source = models.ConfigSourceDefault
	return &EarningsConfigProvider{repo: repo, defaults: defaults, logger: logger}
}

// Resolve returns the most recent active configuration or the fallback policy.
func (p *EarningsConfigProvider) Resolve(ctx context.Context, schoolID string) models.EarningsConfig {
	if p.repo == nil {
		return p.defaults
	}
	cfg, err := p.repo.FindActive(ctx, schoolID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			p.logger.Warn("earnings config lookup failed, using defaults", zap.String("school_id", schoolID), zap.Error(err))
		}
		return p.defaults
	}
	if cfg == nil {
		return p.defaults
	}
	return *cfg
}
