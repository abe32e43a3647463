package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nocturna/skyglow-etl/internal/domain"
	"github.com/nocturna/skyglow-etl/internal/observability"
)

// SampleStore persists samples and answers coverage queries.
type SampleStore interface {
	UpsertSamples(ctx context.Context, samples []domain.BrightnessSample) error
	HasCoverage(ctx context.Context, bounds domain.BoundingBox, start, end time.Time) (bool, error)
	MonthlyAggregates(ctx context.Context, bounds domain.BoundingBox, start, end time.Time) ([]domain.MonthlyAggregate, error)
}

// SamplePublisher forwards ingested samples to downstream consumers.
type SamplePublisher interface {
	PublishSamples(ctx context.Context, samples []domain.BrightnessSample) error
}

// OrchestratorConfig tunes one backfill pass.
type OrchestratorConfig struct {
	WindowMonths        int
	SearchPadDays       int
	CloudCeilingPercent float64
	SyntheticFallback   bool
}

// Orchestrator walks each region's trailing months, fills coverage gaps from
// the granule catalog, and persists the processed samples. Months are
// independent: one month's failure never aborts the pass.
type Orchestrator struct {
	catalog   domain.GranuleCatalog
	reader    domain.RasterReader
	processor *Processor
	store     SampleStore
	publisher SamplePublisher // nil disables publishing
	logger    *slog.Logger
	metrics   *observability.Metrics
	cfg       OrchestratorConfig
	ready     atomic.Bool
}

// NewOrchestrator creates a backfill orchestrator. Publisher may be nil.
func NewOrchestrator(catalog domain.GranuleCatalog, reader domain.RasterReader, processor *Processor, store SampleStore, publisher SamplePublisher, logger *slog.Logger, metrics *observability.Metrics, cfg OrchestratorConfig) *Orchestrator {
	return &Orchestrator{
		catalog:   catalog,
		reader:    reader,
		processor: processor,
		store:     store,
		publisher: publisher,
		logger:    logger,
		metrics:   metrics,
		cfg:       cfg,
	}
}

// CheckReadiness returns nil once at least one backfill pass has completed.
func (o *Orchestrator) CheckReadiness(_ context.Context) error {
	if !o.ready.Load() {
		return errors.New("no backfill pass has completed yet")
	}
	return nil
}

// Summary reports the outcome of one backfill pass. Entries are
// "<region> <YYYY-MM>" labels.
type Summary struct {
	RunID           string
	Done            []string
	Skipped         []string
	Failed          []string
	SamplesUpserted int
}

// Run executes one backfill pass over all regions. It returns the pass
// summary and the context error if the pass was cut short; per-month
// failures are recorded in the summary, not returned.
func (o *Orchestrator) Run(ctx context.Context, regions []domain.Region) (Summary, error) {
	summary := Summary{RunID: uuid.NewString()}

	o.logger.Info("backfill pass started",
		"run_id", summary.RunID,
		"regions", len(regions),
		"window_months", o.cfg.WindowMonths)
	o.metrics.BackfillRunning.Set(1)
	defer o.metrics.BackfillRunning.Set(0)

	for _, region := range regions {
		for _, monthStart := range o.trailingMonths() {
			if err := ctx.Err(); err != nil {
				o.logger.Info("backfill pass interrupted", "run_id", summary.RunID, "reason", err)
				return summary, err
			}
			o.processMonth(ctx, region, monthStart, &summary)
		}
	}

	o.ready.Store(true)
	o.logger.Info("backfill pass complete",
		"run_id", summary.RunID,
		"done", len(summary.Done),
		"skipped", len(summary.Skipped),
		"failed", len(summary.Failed),
		"samples", summary.SamplesUpserted)
	return summary, nil
}

// trailingMonths returns the first-of-month instants of the last complete
// WindowMonths months, oldest first. The current partial month is excluded.
func (o *Orchestrator) trailingMonths() []time.Time {
	now := clock.Now().UTC()
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	months := make([]time.Time, 0, o.cfg.WindowMonths)
	for i := o.cfg.WindowMonths; i >= 1; i-- {
		months = append(months, first.AddDate(0, -i, 0))
	}
	return months
}

func (o *Orchestrator) processMonth(ctx context.Context, region domain.Region, monthStart time.Time, summary *Summary) {
	label := fmt.Sprintf("%s %s", region.Name, monthStart.Format("2006-01"))
	monthEnd := monthStart.AddDate(0, 1, 0)
	started := clock.Now()

	covered, err := o.store.HasCoverage(ctx, region.Bounds, monthStart, monthEnd)
	if err != nil {
		o.failMonth(summary, label, "coverage check failed", err)
		return
	}
	if covered {
		o.logger.Debug("month already covered", "month", label)
		o.metrics.MonthsSkipped.Inc()
		summary.Skipped = append(summary.Skipped, label)
		return
	}

	samples, ok := o.ingestMonth(ctx, region, monthStart, monthEnd, label)
	if !ok {
		samples, ok = o.synthesizeMonth(ctx, region, monthStart, label)
		if !ok {
			o.failMonth(summary, label, "no usable granule and no history to estimate from", nil)
			return
		}
	}

	if err := o.store.UpsertSamples(ctx, samples); err != nil {
		o.failMonth(summary, label, "persist failed", err)
		return
	}
	o.metrics.SamplesUpserted.Add(float64(len(samples)))
	summary.SamplesUpserted += len(samples)

	o.publish(ctx, samples, label)

	o.metrics.MonthsDone.Inc()
	o.metrics.MonthProcessingDuration.Observe(clock.Since(started).Seconds())
	summary.Done = append(summary.Done, label)
	o.logger.Info("month ingested", "month", label, "samples", len(samples))
}

// ingestMonth searches the catalog around the month midpoint, picks the
// clearest acceptable granule, and processes it. Returns false when the
// month yielded no samples.
func (o *Orchestrator) ingestMonth(ctx context.Context, region domain.Region, monthStart, monthEnd time.Time, label string) ([]domain.BrightnessSample, bool) {
	mid := monthStart.AddDate(0, 0, 14)
	searchStart := mid.AddDate(0, 0, -o.cfg.SearchPadDays)
	searchEnd := mid.AddDate(0, 0, o.cfg.SearchPadDays)
	if searchStart.Before(monthStart) {
		searchStart = monthStart
	}
	if searchEnd.After(monthEnd) {
		searchEnd = monthEnd
	}

	granules, err := o.catalog.Search(ctx, region.Bounds, searchStart, searchEnd)
	if err != nil {
		o.logger.Warn("granule search failed", "month", label, "error", err)
		return nil, false
	}

	best, ok := domain.SelectBestGranule(granules, o.cfg.CloudCeilingPercent)
	if !ok {
		o.logger.Info("no granule under cloud ceiling",
			"month", label,
			"candidates", len(granules),
			"ceiling_percent", o.cfg.CloudCeilingPercent)
		return nil, false
	}

	raster, err := o.reader.Read(ctx, best.DownloadReference)
	if err != nil {
		o.logger.Warn("granule read failed", "month", label, "granule_id", best.ID, "error", err)
		return nil, false
	}

	samples, _ := o.processor.Process(raster, best, region.Bounds)
	if len(samples) == 0 {
		o.logger.Info("granule yielded no valid pixels", "month", label, "granule_id", best.ID)
		return nil, false
	}
	return samples, true
}

// synthesizeMonth estimates the month from up to a year of prior aggregates
// when fallback is enabled.
func (o *Orchestrator) synthesizeMonth(ctx context.Context, region domain.Region, monthStart time.Time, label string) ([]domain.BrightnessSample, bool) {
	if !o.cfg.SyntheticFallback {
		return nil, false
	}

	history, err := o.store.MonthlyAggregates(ctx, region.Bounds, monthStart.AddDate(-1, 0, 0), monthStart)
	if err != nil {
		o.logger.Warn("history query for synthetic estimate failed", "month", label, "error", err)
		return nil, false
	}

	sample, ok := o.processor.Synthesize(region, monthStart, history)
	if !ok {
		return nil, false
	}
	o.metrics.SyntheticFallbacks.Inc()
	return []domain.BrightnessSample{sample}, true
}

// publish forwards samples downstream. Publish failures are logged and
// counted but never fail the month; the store is the source of truth.
func (o *Orchestrator) publish(ctx context.Context, samples []domain.BrightnessSample, label string) {
	if o.publisher == nil {
		return
	}
	if err := o.publisher.PublishSamples(ctx, samples); err != nil {
		o.logger.Warn("publish failed", "month", label, "samples", len(samples), "error", err)
		return
	}
	o.metrics.SamplesPublished.Add(float64(len(samples)))
}

func (o *Orchestrator) failMonth(summary *Summary, label, reason string, err error) {
	o.logger.Warn("month failed", "month", label, "reason", reason, "error", err)
	o.metrics.MonthsFailed.Inc()
	summary.Failed = append(summary.Failed, label)
}
