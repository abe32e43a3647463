package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/nocturna/skyglow-etl/internal/analysis"
	"github.com/nocturna/skyglow-etl/internal/domain"
	"github.com/nocturna/skyglow-etl/internal/observability"
)

// ReportStore reads the aggregates a report needs and persists the result.
type ReportStore interface {
	MonthlyAggregates(ctx context.Context, bounds domain.BoundingBox, start, end time.Time) ([]domain.MonthlyAggregate, error)
	SamplesInWindow(ctx context.Context, bounds domain.BoundingBox, start, end time.Time) ([]domain.BrightnessSample, error)
	SaveReport(ctx context.Context, report domain.AnalysisReport) error
}

// Reporter generates one trend report per region from persisted samples.
// Change detection compares the first half of the analysis window against
// the second half.
type Reporter struct {
	store        ReportStore
	assembler    *analysis.Assembler
	logger       *slog.Logger
	metrics      *observability.Metrics
	windowMonths int
}

// NewReporter creates a report generator over the given store.
func NewReporter(store ReportStore, assembler *analysis.Assembler, logger *slog.Logger, metrics *observability.Metrics, windowMonths int) *Reporter {
	return &Reporter{
		store:        store,
		assembler:    assembler,
		logger:       logger,
		metrics:      metrics,
		windowMonths: windowMonths,
	}
}

// GenerateReports builds and persists a report for each region. Regions are
// independent: a failure is logged and the remaining regions still run. The
// successfully written reports are returned.
func (r *Reporter) GenerateReports(ctx context.Context, regions []domain.Region) ([]domain.AnalysisReport, error) {
	now := clock.Now().UTC()
	windowStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -r.windowMonths, 0)
	windowEnd := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	mid := windowStart.AddDate(0, r.windowMonths/2, 0)

	reports := make([]domain.AnalysisReport, 0, len(regions))
	for _, region := range regions {
		if err := ctx.Err(); err != nil {
			return reports, err
		}

		report, err := r.generate(ctx, region, windowStart, mid, windowEnd)
		if err != nil {
			r.logger.Warn("report generation failed", "region", region.Name, "error", err)
			continue
		}
		reports = append(reports, report)
	}
	return reports, nil
}

func (r *Reporter) generate(ctx context.Context, region domain.Region, windowStart, mid, windowEnd time.Time) (domain.AnalysisReport, error) {
	series, err := r.store.MonthlyAggregates(ctx, region.Bounds, windowStart, windowEnd)
	if err != nil {
		return domain.AnalysisReport{}, err
	}
	baseline, err := r.store.SamplesInWindow(ctx, region.Bounds, windowStart, mid)
	if err != nil {
		return domain.AnalysisReport{}, err
	}
	current, err := r.store.SamplesInWindow(ctx, region.Bounds, mid, windowEnd)
	if err != nil {
		return domain.AnalysisReport{}, err
	}

	report := r.assembler.Assemble(region, series, baseline, current)
	if err := r.store.SaveReport(ctx, report); err != nil {
		return domain.AnalysisReport{}, err
	}

	r.metrics.ReportsWritten.Inc()
	r.logger.Info("report written",
		"region", region.Name,
		"report_id", report.ID,
		"direction", report.Summary.Direction,
		"confidence", report.Summary.ConfidenceScore,
		"change_cells", len(report.ChangeCells))
	return report, nil
}
