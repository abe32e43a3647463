// Package pipeline orchestrates granule ingestion: month-by-month backfill,
// granule selection, raster processing, and persistence.
package pipeline

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/montanaflynn/stats"

	"github.com/nocturna/skyglow-etl/internal/domain"
)

// Processor converts one decoded granule raster into brightness samples for
// a region. It chains radiance correction, quality screening, and brightness
// conversion over the per-pixel arrays.
type Processor struct {
	correction     domain.CorrectionConfig
	brightness     domain.BrightnessConfig
	band           domain.RadianceBand
	cloudThreshold uint16
	logger         *slog.Logger
}

// NewProcessor creates a processor with the given correction and conversion
// settings.
func NewProcessor(correction domain.CorrectionConfig, brightness domain.BrightnessConfig, band domain.RadianceBand, cloudThreshold uint16, logger *slog.Logger) *Processor {
	return &Processor{
		correction:     correction,
		brightness:     brightness,
		band:           band,
		cloudThreshold: cloudThreshold,
		logger:         logger,
	}
}

// Process turns a raster into samples for pixels inside bounds. Pixels that
// fail quality screening, fall outside the plausibility band, or lie outside
// the region are dropped. The returned method reports whether the full
// correction chain ran or raw radiance was passed through.
func (p *Processor) Process(raster *domain.Raster, granule domain.Granule, bounds domain.BoundingBox) ([]domain.BrightnessSample, domain.ProcessingMethod) {
	corrected, method := domain.CorrectRadiance(raster.Radiance, raster.MoonIllumination, raster.LunarZenith, p.correction)
	if method == domain.MethodUncorrected {
		p.logger.Warn("correction inputs misshapen, using raw radiance",
			"granule_id", raster.GranuleID,
			"pixels", len(raster.Radiance))
	}

	mask := domain.DecodeQualityFlags(raster.QualityFlags, p.cloudThreshold)
	screened := domain.FilterRadiance(corrected, mask, p.band)

	samples := make([]domain.BrightnessSample, 0, len(screened))
	for i, radiance := range screened {
		if radiance != radiance { // NaN, discarded by screening
			continue
		}
		lon, lat := raster.LonLatAt(i)
		if !bounds.Contains(lat, lon) {
			continue
		}
		mag := p.brightness.Convert(radiance)
		samples = append(samples, domain.NewBrightnessSample(granule, raster.Source, lat, lon, radiance, mag, method))
	}

	p.logger.Debug("raster processed",
		"granule_id", raster.GranuleID,
		"pixels", len(raster.Radiance),
		"samples", len(samples),
		"method", method)
	return samples, method
}

// Synthesize estimates a single centroid sample for a month with no usable
// granule, from the mean brightness of recent monthly aggregates. The
// external ID is deterministic per region and month, so re-runs upsert the
// same row. Returns false when no history exists to estimate from.
func (p *Processor) Synthesize(region domain.Region, monthStart time.Time, history []domain.MonthlyAggregate) (domain.BrightnessSample, bool) {
	if len(history) == 0 {
		return domain.BrightnessSample{}, false
	}

	means := make([]float64, len(history))
	for i, h := range history {
		means[i] = h.MeanBrightness
	}
	mag, err := stats.Mean(means)
	if err != nil {
		return domain.BrightnessSample{}, false
	}

	// Invert the conversion so the stored radiance stays consistent with the
	// estimated magnitude.
	radiance := math.Pow(10, (p.brightness.Base-mag)/p.brightness.Coefficient)

	lat := (region.Bounds.South + region.Bounds.North) / 2
	lon := (region.Bounds.West + region.Bounds.East) / 2
	granule := domain.Granule{
		ID:                fmt.Sprintf("synthetic-%s-%s", region.Name, monthStart.Format("2006-01")),
		CloudCoverPercent: 100,
		AcquisitionTime:   monthStart.AddDate(0, 0, 14),
	}

	sample := domain.NewBrightnessSample(granule, domain.ProductShortName, lat, lon, radiance, mag, domain.MethodSynthetic)
	p.logger.Info("synthesized monthly estimate",
		"region", region.Name,
		"month", monthStart.Format("2006-01"),
		"brightness", mag,
		"history_months", len(history))
	return sample, true
}
