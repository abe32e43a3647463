package analysis

import (
	"fmt"

	"github.com/nocturna/skyglow-etl/internal/domain"
)

// Assembler packages trend statistics, the time series, and the change layer
// into one AnalysisReport. It is pure composition; the atomic write belongs
// to the storage layer.
type Assembler struct {
	trendCfg   TrendConfig
	changeCfg  ChangeConfig
	sampleRate int
}

// NewAssembler creates an Assembler carrying the configurations whose values
// are recorded in each report's parameters_used. sampleRate thins the
// rendered sample layer (1 keeps every point).
func NewAssembler(trendCfg TrendConfig, changeCfg ChangeConfig, sampleRate int) *Assembler {
	if sampleRate < 1 {
		sampleRate = 1
	}
	return &Assembler{trendCfg: trendCfg, changeCfg: changeCfg, sampleRate: sampleRate}
}

// Assemble runs the estimator over the series, differences the two periods,
// and bundles everything into a report for the given region.
func (a *Assembler) Assemble(region domain.Region, series []domain.MonthlyAggregate, baseline, current []domain.BrightnessSample) domain.AnalysisReport {
	trend := EstimateTrend(series, a.trendCfg)
	cells := DetectChanges(baseline, current, a.changeCfg)

	params := map[string]any{
		"region":                region.Name,
		"bounds":                region.Bounds.String(),
		"stable_slope_epsilon":  a.trendCfg.StableSlopeEpsilon,
		"cell_size_deg":         a.changeCfg.CellSizeDeg,
		"materiality_threshold": a.changeCfg.MaterialityThreshold,
		"hotspot_threshold":     a.changeCfg.HotspotThreshold,
		"geojson_sample_rate":   a.sampleRate,
		"series_points":         len(series),
	}

	title := fmt.Sprintf("Sky brightness trend: %s", region.Name)
	report := domain.NewAnalysisReport(title, params, trend, series, cells, false)
	report.SamplePoints = domain.SamplesToGeoJSON(current, a.sampleRate)
	return report
}
