package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ProcessingMethod records how a sample or result was produced, so downstream
// consumers can distinguish authoritative output from degraded fallbacks.
type ProcessingMethod string

const (
	// MethodCorrected marks output of the full correction chain.
	MethodCorrected ProcessingMethod = "corrected"
	// MethodUncorrected marks raw radiance passed through after a correction
	// failure (documented precision loss, not a hard error).
	MethodUncorrected ProcessingMethod = "uncorrected_fallback"
	// MethodSynthetic marks estimated values substituted when no source data
	// could be obtained at all.
	MethodSynthetic ProcessingMethod = "synthetic_estimate"
)

// BoundingBox is a WGS-84 lon/lat rectangle. Edges follow the CMR convention:
// west, south, east, north.
type BoundingBox struct {
	West  float64 `json:"west" koanf:"west"`
	South float64 `json:"south" koanf:"south"`
	East  float64 `json:"east" koanf:"east"`
	North float64 `json:"north" koanf:"north"`
}

// Contains reports whether the coordinate falls inside the box (edges inclusive).
func (b BoundingBox) Contains(lat, lon float64) bool {
	return lat >= b.South && lat <= b.North && lon >= b.West && lon <= b.East
}

// String renders the box in CMR query order "west,south,east,north".
func (b BoundingBox) String() string {
	return fmt.Sprintf("%g,%g,%g,%g", b.West, b.South, b.East, b.North)
}

// Region is a named analysis target, e.g. a city and its bounding box.
type Region struct {
	Name   string      `json:"name" koanf:"name"`
	Bounds BoundingBox `json:"bounds" koanf:"bounds"`
}

// Granule describes one available satellite acquisition as reported by the
// catalog collaborator.
type Granule struct {
	ID                string    `json:"id"`
	CloudCoverPercent float64   `json:"cloud_cover_percent"`
	AcquisitionTime   time.Time `json:"acquisition_time"`
	DownloadReference string    `json:"download_reference"`
}

// BrightnessSample is the persisted unit of ingestion: one pixel's calibrated
// sky brightness on a given night. ExternalID is deterministic so re-running
// ingestion upserts instead of duplicating.
type BrightnessSample struct {
	ExternalID           string           `json:"external_id"`
	Latitude             float64          `json:"latitude"`
	Longitude            float64          `json:"longitude"`
	Radiance             float64          `json:"radiance"`
	SkyBrightnessMag     float64          `json:"sky_brightness_mag"`
	VisibilityClass      int              `json:"visibility_class"`
	AcquisitionDate      time.Time        `json:"acquisition_date"`
	SatelliteSource      string           `json:"satellite_source"`
	CloudCoveragePercent float64          `json:"cloud_coverage_percent"`
	ProcessingMethod     ProcessingMethod `json:"processing_method"`
	ProcessedAt          time.Time        `json:"processed_at"`
}

// MonthlyAggregate is one point of a region's brightness time series. It is a
// query result (a view over samples), never stored durably.
type MonthlyAggregate struct {
	Month          string  `json:"month"` // "YYYY-MM"
	MeanBrightness float64 `json:"mean_brightness"`
	SampleCount    int     `json:"sample_count"`
}

// TrendDirection classifies the sign of a fitted slope.
type TrendDirection string

const (
	TrendIncreasing TrendDirection = "increasing"
	TrendDecreasing TrendDirection = "decreasing"
	TrendStable     TrendDirection = "stable"
)

// TrendStatistics is the immutable result of one robust-trend run over a
// monthly aggregate series.
type TrendStatistics struct {
	Slope            float64        `json:"slope"`
	Intercept        float64        `json:"intercept"`
	ConfidenceScore  float64        `json:"confidence_score"` // 0–100
	AnnualChangeRate float64        `json:"annual_change_rate"`
	Direction        TrendDirection `json:"direction"`
	Method           string         `json:"method"` // "theil_sen" or "insufficient_data"
	SampleCount      int            `json:"sample_count"`
}

// ChangeCategory labels a detected spatial change cell.
type ChangeCategory string

const (
	ChangeHotspot   ChangeCategory = "hotspot"
	ChangeReduction ChangeCategory = "reduction"
)

// ChangeCell is one grid cell whose mean brightness shifted materially
// between two periods. Delta is current minus baseline.
type ChangeCell struct {
	Latitude     float64        `json:"latitude"`
	Longitude    float64        `json:"longitude"`
	Delta        float64        `json:"delta"`
	Category     ChangeCategory `json:"category"`
	BaselineMean float64        `json:"baseline_mean"`
	CurrentMean  float64        `json:"current_mean"`
}

// AnalysisReport bundles one analysis run's statistics, time series, and
// change layer. Written once inside a single transaction, read-only after.
type AnalysisReport struct {
	ID          string             `json:"id"`
	Title       string             `json:"title"`
	ReportType  string             `json:"report_type"`
	Parameters  map[string]any     `json:"parameters_used"`
	Summary     TrendStatistics    `json:"summary_statistics"`
	TimeSeries  []MonthlyAggregate `json:"time_series"`
	ChangeCells []ChangeCell       `json:"change_cells"`

	// SamplePoints is the thinned current-period sample layer for map
	// rendering. Populated by the assembler, not by NewAnalysisReport.
	SamplePoints FeatureCollection `json:"sample_points"`

	IsPublic  bool      `json:"is_public"`
	CreatedAt time.Time `json:"created_at"`
}

// ReportTypeTrendAnalysis is the only report type this service emits.
const ReportTypeTrendAnalysis = "trend_analysis"

// NewAnalysisReport composes a report artifact from one analysis run. The
// result is complete and immutable; persistence is the caller's concern.
func NewAnalysisReport(title string, params map[string]any, summary TrendStatistics, series []MonthlyAggregate, cells []ChangeCell, isPublic bool) AnalysisReport {
	return AnalysisReport{
		ID:          uuid.NewString(),
		Title:       title,
		ReportType:  ReportTypeTrendAnalysis,
		Parameters:  params,
		Summary:     summary,
		TimeSeries:  series,
		ChangeCells: cells,
		IsPublic:    isPublic,
		CreatedAt:   clock.Now(),
	}
}

// NewBrightnessSample assembles one persisted sample from a processed pixel,
// deriving its deterministic external ID, Bortle class, and ProcessedAt stamp.
func NewBrightnessSample(granule Granule, source string, lat, lon, radiance, brightness float64, method ProcessingMethod) BrightnessSample {
	return BrightnessSample{
		ExternalID:           SampleID(source, granule.ID, lat, lon),
		Latitude:             lat,
		Longitude:            lon,
		Radiance:             radiance,
		SkyBrightnessMag:     brightness,
		VisibilityClass:      BrightnessToVisibilityClass(brightness),
		AcquisitionDate:      granule.AcquisitionTime,
		SatelliteSource:      source,
		CloudCoveragePercent: granule.CloudCoverPercent,
		ProcessingMethod:     method,
		ProcessedAt:          clock.Now(),
	}
}

// SampleID produces a deterministic external ID for one pixel of one granule.
// Reprocessing the same granule yields the same IDs, which makes persistence
// idempotent (upsert on conflict) without distributed coordination.
func SampleID(source, granuleID string, lat, lon float64) string {
	input := fmt.Sprintf("%s|%s|%.6f|%.6f", source, granuleID, lat, lon)
	hash := sha256.Sum256([]byte(input))
	short := hex.EncodeToString(hash[:8])
	if source == "" {
		return short
	}
	return source + "-" + short
}
