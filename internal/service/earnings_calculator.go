package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/sma-earnings-api/internal/models"
	appErrors "github.com/noah-isme/sma-earnings-api/pkg/errors"
	"github.com/noah-isme/sma-earnings-api/pkg/middleware/requestid"
)

const (
	historyKindPreviousMonth = "previous_month"
	historyKindYearToDate    = "year_to_date"

	defaultHistoryConcurrency = 8
)

type earningsReader interface {
	earningsHistoryReader
	LoadAggregates(ctx context.Context, window models.MonthWindow, schoolID, controllerID string) ([]models.RawAggregateRow, error)
}

type earningsConfigResolver interface {
	Resolve(ctx context.Context, schoolID string) models.EarningsConfig
}

// EarningsCalculatorOptions tunes a calculator. SchoolID scopes every calculation and
// the rate policy; empty means all schools.
type EarningsCalculatorOptions struct {
	SchoolID           string
	HistoryConcurrency int
	QueryTimeout       time.Duration
	Location           *time.Location
	Now                func() time.Time
}

// EarningsCalculator produces one ControllerEarnings row per controller for a month
// of one school scope. The rate policy is resolved on first use and kept for the
// calculator's lifetime, so a calculator should serve a single request.
type EarningsCalculator struct {
	repo    earningsReader
	configs earningsConfigResolver
	metrics *MetricsService
	logger  *zap.Logger
	opts    EarningsCalculatorOptions

	configOnce sync.Once
	config     models.EarningsConfig
}

// NewEarningsCalculator constructs a calculator.
func NewEarningsCalculator(repo earningsReader, configs earningsConfigResolver, metrics *MetricsService, logger *zap.Logger, opts EarningsCalculatorOptions) *EarningsCalculator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.HistoryConcurrency <= 0 {
		opts.HistoryConcurrency = defaultHistoryConcurrency
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	opts.SchoolID = strings.TrimSpace(opts.SchoolID)
	return &EarningsCalculator{repo: repo, configs: configs, metrics: metrics, logger: logger, opts: opts}
}

// SchoolID returns the school scope the calculator was built for.
func (c *EarningsCalculator) SchoolID() string {
	return c.opts.SchoolID
}

// Config returns the memoized rate policy of the calculator's school, resolving it
// on the first call.
func (c *EarningsCalculator) Config(ctx context.Context) models.EarningsConfig {
	c.configOnce.Do(func() {
		if c.configs == nil {
			c.config = BuiltinEarningsConfig()
			return
		}
		c.config = c.configs.Resolve(ctx, c.opts.SchoolID)
	})
	return c.config
}

// Calculate runs the aggregate pass, applies the formula and enriches every row with
// historical figures. A failed aggregate pass fails the whole batch; historical
// lookups degrade to zero per controller. params.SchoolID must be empty or match
// the calculator's school.
func (c *EarningsCalculator) Calculate(ctx context.Context, params models.EarningsParams) ([]models.ControllerEarnings, error) {
	start := time.Now()
	result, err := c.calculate(ctx, params)
	c.metrics.ObserveCalculation(time.Since(start), len(result), err)
	return result, err
}

func (c *EarningsCalculator) calculate(ctx context.Context, params models.EarningsParams) ([]models.ControllerEarnings, error) {
	yearMonth := strings.TrimSpace(params.YearMonth)
	if yearMonth == "" {
		yearMonth = c.opts.Now().In(c.opts.Location).Format(models.YearMonthLayout)
	}
	window, err := MonthWindowFor(yearMonth, c.opts.Location)
	if err != nil {
		return nil, err
	}
	if school := strings.TrimSpace(params.SchoolID); school != "" && school != c.opts.SchoolID {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("calculator is scoped to school %q, not %q", c.opts.SchoolID, school))
	}
	params.SchoolID = c.opts.SchoolID
	controllerID := strings.TrimSpace(params.ControllerID)
	cfg := c.Config(ctx)

	rows, err := c.loadAggregates(ctx, window, params.SchoolID, controllerID)
	if err != nil {
		return nil, c.fail(ctx, params, err)
	}

	result := make([]models.ControllerEarnings, 0, len(rows))
	for _, raw := range rows {
		counts, err := AggregateRow(raw)
		if err != nil {
			return nil, c.fail(ctx, params, err)
		}
		name := raw.ControllerCode
		if raw.ControllerName != nil && strings.TrimSpace(*raw.ControllerName) != "" {
			name = *raw.ControllerName
		}
		result = append(result, models.ControllerEarnings{
			ControllerID:      raw.ControllerCode,
			ControllerName:    name,
			TeamID:            models.DefaultTeamID,
			TeamName:          models.DefaultTeamName,
			YearMonth:         window.YearMonth,
			ControllerCounts:  counts,
			EarningsBreakdown: ComputeEarnings(counts, cfg),
		})
	}

	c.enrichHistory(ctx, result, window, params.SchoolID, cfg)
	return result, nil
}

func (c *EarningsCalculator) loadAggregates(ctx context.Context, window models.MonthWindow, schoolID, controllerID string) ([]models.RawAggregateRow, error) {
	if c.opts.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.QueryTimeout)
		defer cancel()
	}
	start := time.Now()
	rows, err := c.repo.LoadAggregates(ctx, window, schoolID, controllerID)
	c.metrics.ObserveDBQuery("earnings_aggregates", time.Since(start))
	return rows, err
}

func (c *EarningsCalculator) enrichHistory(ctx context.Context, rows []models.ControllerEarnings, window models.MonthWindow, schoolID string, cfg models.EarningsConfig) {
	if len(rows) == 0 {
		return
	}
	comparator := NewHistoricalComparator(c.repo, schoolID, cfg, c.opts.Now)
	previous := make([]decimal.Decimal, len(rows))
	ytd := make([]decimal.Decimal, len(rows))

	var group errgroup.Group
	group.SetLimit(c.opts.HistoryConcurrency)
	for i := range rows {
		i := i
		controllerID := rows[i].ControllerID
		group.Go(func() error {
			value, err := comparator.PreviousMonthEarnings(ctx, controllerID, window)
			previous[i] = c.degrade(ctx, historyKindPreviousMonth, controllerID, value, err)
			return nil
		})
		group.Go(func() error {
			value, err := comparator.YearToDateEarnings(ctx, controllerID, c.opts.Location)
			ytd[i] = c.degrade(ctx, historyKindYearToDate, controllerID, value, err)
			return nil
		})
	}
	_ = group.Wait()

	for i := range rows {
		rows[i].PreviousMonthEarnings = previous[i]
		rows[i].YearToDateEarnings = ytd[i]
		rows[i].GrowthRate = GrowthRate(rows[i].TotalEarnings, previous[i])
	}
}

func (c *EarningsCalculator) degrade(ctx context.Context, kind, controllerID string, value decimal.Decimal, err error) decimal.Decimal {
	if err == nil {
		return value
	}
	c.logger.Warn("historical earnings unavailable",
		zap.String("request_id", requestid.FromContext(ctx)),
		zap.String("kind", kind),
		zap.String("controller_id", controllerID),
		zap.Error(err),
	)
	c.metrics.RecordHistoryFailure(kind)
	return decimal.Zero
}

func (c *EarningsCalculator) fail(ctx context.Context, params models.EarningsParams, err error) error {
	c.logger.Error("controller earnings calculation failed",
		zap.String("request_id", requestid.FromContext(ctx)),
		zap.String("year_month", params.YearMonth),
		zap.String("school_id", params.SchoolID),
		zap.String("controller_id", params.ControllerID),
		zap.Error(err),
	)
	return appErrors.Wrap(err, appErrors.ErrEarningsCalculation.Code, appErrors.ErrEarningsCalculation.Status, appErrors.ErrEarningsCalculation.Message)
}
