package dto

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/sma-earnings-api/internal/models"
)

// EarningsQuery holds the query string of the earnings endpoints.
type EarningsQuery struct {
	Month        string `form:"month" validate:"omitempty,yearmonth"`
	SchoolID     string `form:"schoolId" validate:"omitempty,max=64"`
	ControllerID string `form:"controllerId" validate:"omitempty,max=64"`
	TeamID       *int   `form:"teamId" validate:"omitempty,gt=0"`
	Refresh      bool   `form:"refresh"`
}

// Params converts the query into calculator input.
func (q EarningsQuery) Params() models.EarningsParams {
	return models.EarningsParams{
		YearMonth:    strings.TrimSpace(q.Month),
		SchoolID:     strings.TrimSpace(q.SchoolID),
		ControllerID: strings.TrimSpace(q.ControllerID),
		TeamID:       q.TeamID,
	}
}

// CacheInvalidation reports how many cached results were dropped.
type CacheInvalidation struct {
	SchoolID string `json:"schoolId,omitempty"`
	Month    string `json:"month,omitempty"`
	Removed  int    `json:"removed"`
}

// NewValidator returns a validator with the earnings tags registered.
func NewValidator() *validator.Validate {
	validate := validator.New()
	_ = validate.RegisterValidation("yearmonth", func(fl validator.FieldLevel) bool {
		_, err := time.Parse(models.YearMonthLayout, strings.TrimSpace(fl.Field().String()))
		return err == nil
	})
	return validate
}
