package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-earnings-api/internal/models"
)

// EarningsConfigRepository reads the versioned earnings rate policy.
type EarningsConfigRepository struct {
	db *sqlx.DB
}

// NewEarningsConfigRepository constructs the repository.
func NewEarningsConfigRepository(db *sqlx.DB) *EarningsConfigRepository {
	return &EarningsConfigRepository{db: db}
}

// FindActive returns the most recent active configuration, optionally scoped to a school.
// sql.ErrNoRows is returned (wrapped) when no row qualifies.
func (r *EarningsConfigRepository) FindActive(ctx context.Context, schoolID string) (*models.EarningsConfig, error) {
	var builder strings.Builder
	builder.WriteString(`SELECT id, school_id, main_base_rate, referral_base_rate, leave_penalty_multiplier, leave_threshold,
        unpaid_penalty_multiplier, referral_bonus_multiplier, target_earnings, effective_from, is_active
        FROM controller_earnings_config WHERE is_active = true`)
	var args []interface{}
	if schoolID != "" {
		args = append(args, schoolID)
		builder.WriteString(fmt.Sprintf(" AND school_id = $%d", len(args)))
	}
	builder.WriteString(" ORDER BY effective_from DESC, id DESC LIMIT 1")

	var cfg models.EarningsConfig
	if err := r.db.GetContext(ctx, &cfg, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("find active earnings config: %w", err)
	}
	cfg.Source = models.ConfigSourceDatabase
	return &cfg, nil
}
