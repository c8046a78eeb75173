package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-earnings-api/internal/models"
	appErrors "github.com/noah-isme/sma-earnings-api/pkg/errors"
)

const (
	cacheKeyWildcard     = "*"
	cacheKeyWildcardPart = "all"
)

// EarningsServiceConfig tunes the earnings facade.
type EarningsServiceConfig struct {
	CacheTTL           time.Duration
	HistoryConcurrency int
	QueryTimeout       time.Duration
	Location           *time.Location
}

// EarningsService validates requests, caches results and builds a fresh calculator
// for every uncached calculation.
type EarningsService struct {
	repo    earningsReader
	configs earningsConfigResolver
	cache   *CacheService
	metrics *MetricsService
	logger  *zap.Logger
	cfg     EarningsServiceConfig
	now     func() time.Time
}

// NewEarningsService constructs the facade.
func NewEarningsService(repo earningsReader, configs earningsConfigResolver, cache *CacheService, metrics *MetricsService, logger *zap.Logger, cfg EarningsServiceConfig) *EarningsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &EarningsService{repo: repo, configs: configs, cache: cache, metrics: metrics, logger: logger, cfg: cfg, now: time.Now}
}

// Normalize trims the params, defaults the month to the current one and validates them.
func (s *EarningsService) Normalize(params models.EarningsParams) (models.EarningsParams, error) {
	params.SchoolID = strings.TrimSpace(params.SchoolID)
	params.ControllerID = strings.TrimSpace(params.ControllerID)
	params.YearMonth = strings.TrimSpace(params.YearMonth)
	if params.YearMonth == "" {
		params.YearMonth = s.now().In(s.cfg.Location).Format(models.YearMonthLayout)
	}
	window, err := MonthWindowFor(params.YearMonth, s.cfg.Location)
	if err != nil {
		return params, err
	}
	params.YearMonth = window.YearMonth
	if params.TeamID != nil && *params.TeamID <= 0 {
		return params, appErrors.Clone(appErrors.ErrValidation, "teamId must be a positive integer")
	}
	return params, nil
}

// NewCalculator returns a calculator for the school holding its own configuration snapshot.
func (s *EarningsService) NewCalculator(schoolID string) *EarningsCalculator {
	return NewEarningsCalculator(s.repo, s.configs, s.metrics, s.logger, EarningsCalculatorOptions{
		SchoolID:           schoolID,
		HistoryConcurrency: s.cfg.HistoryConcurrency,
		QueryTimeout:       s.cfg.QueryTimeout,
		Location:           s.cfg.Location,
		Now:                s.now,
	})
}

// List returns the earnings of every controller matching params. The boolean reports a cache hit.
func (s *EarningsService) List(ctx context.Context, params models.EarningsParams, refresh bool) ([]models.ControllerEarnings, bool, error) {
	params, err := s.Normalize(params)
	if err != nil {
		return nil, false, err
	}

	cacheKey := makeEarningsCacheKey(params.SchoolID, params.YearMonth, strings.ToLower(params.ControllerID))
	if !refresh && s.cache != nil {
		var cached []models.ControllerEarnings
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
			return cached, true, nil
		}
	}

	rows, err := s.NewCalculator(params.SchoolID).Calculate(ctx, params)
	if err != nil {
		return nil, false, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, rows, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("cache controller earnings", zap.String("key", cacheKey), zap.Error(err))
		}
	}
	return rows, false, nil
}

// Controller returns the earnings row of a single controller.
func (s *EarningsService) Controller(ctx context.Context, params models.EarningsParams, refresh bool) (*models.ControllerEarnings, bool, error) {
	if strings.TrimSpace(params.ControllerID) == "" {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "controllerId is required")
	}
	rows, hit, err := s.List(ctx, params, refresh)
	if err != nil {
		return nil, false, err
	}
	want := strings.TrimSpace(params.ControllerID)
	for i := range rows {
		if strings.EqualFold(strings.TrimSpace(rows[i].ControllerID), want) {
			return &rows[i], hit, nil
		}
	}
	return nil, hit, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("no earnings for controller %s", want))
}

// ActiveConfig returns the rate policy a calculation for the school would use.
func (s *EarningsService) ActiveConfig(ctx context.Context, schoolID string) models.EarningsConfig {
	return s.NewCalculator(strings.TrimSpace(schoolID)).Config(ctx)
}

// Invalidate drops cached results for a school, or for every school when schoolID is
// empty, optionally limited to one month.
func (s *EarningsService) Invalidate(ctx context.Context, schoolID, yearMonth string) (int, error) {
	month := cacheKeyWildcard
	if strings.TrimSpace(yearMonth) != "" {
		window, err := MonthWindowFor(yearMonth, s.cfg.Location)
		if err != nil {
			return 0, err
		}
		month = window.YearMonth
	}
	school := cacheKeyWildcard
	if trimmed := strings.TrimSpace(schoolID); trimmed != "" {
		school = escapeCachePattern(cacheKeyPart(trimmed))
	}
	pattern := school + ":" + month + ":" + cacheKeyWildcard
	removed, err := s.cache.Invalidate(ctx, pattern)
	if err != nil {
		return removed, fmt.Errorf("invalidate earnings cache: %w", err)
	}
	return removed, nil
}

func makeEarningsCacheKey(schoolID, yearMonth, controllerID string) string {
	parts := []string{schoolID, yearMonth, controllerID}
	for i, part := range parts {
		if part == "" {
			part = cacheKeyWildcardPart
		}
		parts[i] = cacheKeyPart(part)
	}
	return strings.Join(parts, ":")
}

func cacheKeyPart(part string) string {
	return strings.ReplaceAll(part, ":", "|")
}

var cachePatternEscaper = strings.NewReplacer(`\`, `\\`, "*", `\*`, "?", `\?`, "[", `\[`, "]", `\]`)

// escapeCachePattern makes a key segment match itself literally in a SCAN pattern.
func escapeCachePattern(part string) string {
	return cachePatternEscaper.Replace(part)
}
