package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/sma-earnings-api/internal/models"
)

type monthReport struct {
	Month          string
	GoRows         int
	LegacyRows     int
	GoDuration     time.Duration
	LegacyDuration time.Duration
	Diffs          []string
	Err            error
}

func compareMonth(client *http.Client, goBase, legacyBase, month, schoolID string, tol decimal.Decimal) monthReport {
	report := monthReport{Month: month}

	goRows, goDur, err := fetchEarnings(client, goBase, month, schoolID)
	report.GoDuration = goDur
	if err != nil {
		report.Err = fmt.Errorf("go request failed: %w", err)
		return report
	}
	legacyRows, legacyDur, err := fetchEarnings(client, legacyBase, month, schoolID)
	report.LegacyDuration = legacyDur
	if err != nil {
		report.Err = fmt.Errorf("legacy request failed: %w", err)
		return report
	}

	report.GoRows = len(goRows)
	report.LegacyRows = len(legacyRows)
	report.Diffs = diffRows(goRows, legacyRows, tol)
	return report
}

func fetchEarnings(client *http.Client, base, month, schoolID string) ([]models.ControllerEarnings, time.Duration, error) {
	query := url.Values{}
	query.Set("month", month)
	query.Set("refresh", "true")
	if schoolID != "" {
		query.Set("schoolId", schoolID)
	}
	endpoint := strings.TrimRight(base, "/") + "/earnings/controllers?" + query.Encode()

	start := time.Now()
	resp, err := client.Get(endpoint)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	elapsed := time.Since(start)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, elapsed, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, elapsed, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	rows, err := decodeRows(body)
	return rows, elapsed, err
}

// decodeRows accepts both an enveloped {"data": [...]} body and a bare array.
func decodeRows(body []byte) ([]models.ControllerEarnings, error) {
	var envelope struct {
		Data []models.ControllerEarnings `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Data != nil {
		return envelope.Data, nil
	}
	var rows []models.ControllerEarnings
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode earnings: %w", err)
	}
	return rows, nil
}

func diffRows(goRows, legacyRows []models.ControllerEarnings, tol decimal.Decimal) []string {
	legacyByID := make(map[string]models.ControllerEarnings, len(legacyRows))
	for _, row := range legacyRows {
		legacyByID[row.ControllerID] = row
	}

	var diffs []string
	seen := make(map[string]struct{}, len(goRows))
	for _, row := range goRows {
		seen[row.ControllerID] = struct{}{}
		legacy, ok := legacyByID[row.ControllerID]
		if !ok {
			diffs = append(diffs, fmt.Sprintf("%s: only in go", row.ControllerID))
			continue
		}
		diffs = append(diffs, diffController(row, legacy, tol)...)
	}
	for id := range legacyByID {
		if _, ok := seen[id]; !ok {
			diffs = append(diffs, fmt.Sprintf("%s: only in legacy", id))
		}
	}
	sort.Strings(diffs)
	return diffs
}

func diffController(got, want models.ControllerEarnings, tol decimal.Decimal) []string {
	var diffs []string
	counts := []struct {
		name      string
		got, want int
	}{
		{"activeStudents", got.ActiveStudents, want.ActiveStudents},
		{"leaveStudentsThisMonth", got.LeaveStudentsThisMonth, want.LeaveStudentsThisMonth},
		{"paidThisMonth", got.PaidThisMonth, want.PaidThisMonth},
		{"unpaidActiveThisMonth", got.UnpaidActiveThisMonth, want.UnpaidActiveThisMonth},
		{"referencedActiveStudents", got.ReferencedActiveStudents, want.ReferencedActiveStudents},
	}
	for _, c := range counts {
		if c.got != c.want {
			diffs = append(diffs, fmt.Sprintf("%s: %s go=%d legacy=%d", got.ControllerID, c.name, c.got, c.want))
		}
	}

	money := []struct {
		name      string
		got, want decimal.Decimal
	}{
		{"baseEarnings", got.BaseEarnings, want.BaseEarnings},
		{"leavePenalty", got.LeavePenalty, want.LeavePenalty},
		{"unpaidPenalty", got.UnpaidPenalty, want.UnpaidPenalty},
		{"referencedBonus", got.ReferencedBonus, want.ReferencedBonus},
		{"totalEarnings", got.TotalEarnings, want.TotalEarnings},
		{"previousMonthEarnings", got.PreviousMonthEarnings, want.PreviousMonthEarnings},
		{"yearToDateEarnings", got.YearToDateEarnings, want.YearToDateEarnings},
	}
	for _, m := range money {
		if m.got.Sub(m.want).Abs().GreaterThan(tol) {
			diffs = append(diffs, fmt.Sprintf("%s: %s go=%s legacy=%s", got.ControllerID, m.name, m.got.StringFixed(2), m.want.StringFixed(2)))
		}
	}
	return diffs
}
