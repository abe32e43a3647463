// Command report runs the brightness trend analysis over an existing sample
// database and prints the result. With -save the assembled report is also
// persisted to the reports table.
//
// Usage:
//
//	go run ./cmd/report \
//	  -db skyglow.db \
//	  -region Lahore \
//	  -bounds 73.5,31.0,75.0,32.0 \
//	  -months 12 -save
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/nocturna/skyglow-etl/internal/analysis"
	"github.com/nocturna/skyglow-etl/internal/domain"
	"github.com/nocturna/skyglow-etl/internal/storage"
)

func main() {
	dbPath := flag.String("db", "skyglow.db", "path to the sample database")
	regionName := flag.String("region", "", "region name for the report title")
	boundsArg := flag.String("bounds", "", "west,south,east,north analysis bounds")
	months := flag.Int("months", 12, "number of trailing complete months to analyze")
	save := flag.Bool("save", false, "persist the report to the database")
	sampleRate := flag.Int("sample-rate", 1, "keep every n-th sample in the rendered point layer")
	flag.Parse()

	if *regionName == "" || *boundsArg == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*dbPath, *regionName, *boundsArg, *months, *sampleRate, *save); code != 0 {
		os.Exit(code)
	}
}

func run(dbPath, regionName, boundsArg string, months, sampleRate int, save bool) int {
	bounds, err := parseBounds(boundsArg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}
	region := domain.Region{Name: regionName, Bounds: bounds}

	store, err := storage.Open(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: open database: %v\n", err)
		return 1
	}
	defer store.Close()

	ctx := context.Background()
	now := time.Now().UTC()
	windowEnd := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	windowStart := windowEnd.AddDate(0, -months, 0)
	mid := windowStart.AddDate(0, months/2, 0)

	series, err := store.MonthlyAggregates(ctx, bounds, windowStart, windowEnd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load monthly aggregates: %v\n", err)
		return 1
	}
	baseline, err := store.SamplesInWindow(ctx, bounds, windowStart, mid)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load baseline samples: %v\n", err)
		return 1
	}
	current, err := store.SamplesInWindow(ctx, bounds, mid, windowEnd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load current samples: %v\n", err)
		return 1
	}

	assembler := analysis.NewAssembler(analysis.DefaultTrendConfig(), analysis.DefaultChangeConfig(), sampleRate)
	report := assembler.Assemble(region, series, baseline, current)

	printReport(report, windowStart, windowEnd, len(baseline), len(current))

	if save {
		if err := store.SaveReport(ctx, report); err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: save report: %v\n", err)
			return 1
		}
		fmt.Printf("\nsaved report %s\n", report.ID)
	}
	return 0
}

func printReport(report domain.AnalysisReport, windowStart, windowEnd time.Time, baselineCount, currentCount int) {
	fmt.Printf("=== %s ===\n\n", report.Title)
	fmt.Printf("window:     %s to %s\n", windowStart.Format("2006-01"), windowEnd.AddDate(0, -1, 0).Format("2006-01"))
	fmt.Printf("series:     %d months\n", len(report.TimeSeries))
	fmt.Printf("samples:    %d baseline, %d current\n\n", baselineCount, currentCount)

	s := report.Summary
	fmt.Printf("method:     %s\n", s.Method)
	fmt.Printf("direction:  %s\n", s.Direction)
	fmt.Printf("slope:      %+.4f mag/month (%+.4f mag/year)\n", s.Slope, s.AnnualChangeRate)
	fmt.Printf("confidence: %.1f%%\n", s.ConfidenceScore)

	if len(report.ChangeCells) == 0 {
		fmt.Println("\nno material change cells")
		return
	}

	fmt.Printf("\n%d change cells (strongest first):\n", len(report.ChangeCells))
	limit := len(report.ChangeCells)
	if limit > 10 {
		limit = 10
	}
	for _, c := range report.ChangeCells[:limit] {
		fmt.Printf("  %-9s  %+.2f mag at (%.4f, %.4f)\n", c.Category, c.Delta, c.Latitude, c.Longitude)
	}
	if len(report.ChangeCells) > limit {
		fmt.Printf("  ... and %d more\n", len(report.ChangeCells)-limit)
	}
}

func parseBounds(s string) (domain.BoundingBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return domain.BoundingBox{}, fmt.Errorf("bounds must be west,south,east,north, got %q", s)
	}
	vals := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return domain.BoundingBox{}, fmt.Errorf("parsing bounds component %q: %w", p, err)
		}
		vals[i] = v
	}
	return domain.BoundingBox{West: vals[0], South: vals[1], East: vals[2], North: vals[3]}, nil
}
