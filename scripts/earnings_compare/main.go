package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

func main() {
	var (
		goBase     string
		legacyBase string
		months     string
		schoolID   string
		tolerance  string
		timeout    time.Duration
	)

	flag.StringVar(&goBase, "go-base", "http://localhost:8080/api/v1", "Go API base URL")
	flag.StringVar(&legacyBase, "legacy-base", "http://localhost:3000/api/v1", "Legacy API base URL")
	flag.StringVar(&months, "months", time.Now().UTC().Format("2006-01"), "Comma separated YYYY-MM list")
	flag.StringVar(&schoolID, "school", "", "Optional school scope")
	flag.StringVar(&tolerance, "tolerance", "0.01", "Allowed absolute difference on money fields")
	flag.DurationVar(&timeout, "timeout", 30*time.Second, "HTTP client timeout")
	flag.Parse()

	tol, err := decimal.NewFromString(tolerance)
	if err != nil {
		log.Fatalf("invalid tolerance: %v", err)
	}

	client := &http.Client{Timeout: timeout}
	breaking := 0
	for _, month := range strings.Split(months, ",") {
		month = strings.TrimSpace(month)
		if month == "" {
			continue
		}
		report := compareMonth(client, goBase, legacyBase, month, schoolID, tol)
		printReport(report)
		if report.Err != nil || len(report.Diffs) > 0 {
			breaking++
		}
	}

	fmt.Printf("Months with differences: %d\n", breaking)
	if breaking > 0 {
		os.Exit(1)
	}
}

func printReport(r monthReport) {
	status := "OK"
	switch {
	case r.Err != nil:
		status = "ERROR"
	case len(r.Diffs) > 0:
		status = "DIFF"
	}
	fmt.Printf("[%s] %s  go=%d rows (%s)  legacy=%d rows (%s)\n",
		status, r.Month, r.GoRows, r.GoDuration, r.LegacyRows, r.LegacyDuration)
	if r.Err != nil {
		fmt.Printf("  error: %v\n", r.Err)
	}
	for _, d := range r.Diffs {
		fmt.Printf("  %s\n", d)
	}
}
