// Package analysis implements the statistical engine over persisted
// brightness samples: robust trend estimation (Theil–Sen slope with a
// Mann–Kendall significance test), spatial grid differencing, and report
// assembly.
package analysis

import (
	"math"

	"github.com/montanaflynn/stats"

	"github.com/nocturna/skyglow-etl/internal/domain"
)

// TrendConfig holds the estimator's domain constants. They are defaults to
// be validated empirically, not physical exactness.
type TrendConfig struct {
	// StableSlopeEpsilon: fitted slopes with |slope| below this report a
	// "stable" direction.
	StableSlopeEpsilon float64 `koanf:"stable_slope_epsilon"`
}

// DefaultTrendConfig returns the production estimator defaults.
func DefaultTrendConfig() TrendConfig {
	return TrendConfig{StableSlopeEpsilon: 0.01}
}

const (
	methodTheilSen         = "theil_sen"
	methodInsufficientData = "insufficient_data"
)

// monthsPerYear converts a per-month slope into an annual change rate.
const monthsPerYear = 12

// EstimateTrend fits a robust linear trend to an ordered, evenly spaced
// monthly series. Slopes are index-based, not calendar-based.
//
// The Theil–Sen slope (median of all pairwise slopes) tolerates a bounded
// fraction of outlier months, unlike ordinary least squares. Significance
// comes from the Mann–Kendall S statistic, mapped onto a 0–100 confidence
// score; an all-equal series lands exactly on 50 (the z = 0 branch).
//
// Fewer than two points yields a degenerate, clearly flagged
// insufficient-data result rather than an error.
func EstimateTrend(series []domain.MonthlyAggregate, cfg TrendConfig) domain.TrendStatistics {
	n := len(series)
	if n < 2 {
		return domain.TrendStatistics{
			Direction:   domain.TrendStable,
			Method:      methodInsufficientData,
			SampleCount: n,
		}
	}

	values := make([]float64, n)
	for i, point := range series {
		values[i] = point.MeanBrightness
	}

	slope := theilSenSlope(values)
	intercept := theilSenIntercept(values, slope)
	confidence := mannKendallConfidence(values)

	return domain.TrendStatistics{
		Slope:            slope,
		Intercept:        intercept,
		ConfidenceScore:  confidence,
		AnnualChangeRate: slope * monthsPerYear,
		Direction:        classifyDirection(slope, cfg.StableSlopeEpsilon),
		Method:           methodTheilSen,
		SampleCount:      n,
	}
}

// theilSenSlope returns the median of all C(n,2) pairwise slopes
// (y_j − y_i)/(j − i) for i < j.
func theilSenSlope(values []float64) float64 {
	n := len(values)
	slopes := make([]float64, 0, n*(n-1)/2)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			slopes = append(slopes, (values[j]-values[i])/float64(j-i))
		}
	}

	median, err := stats.Median(slopes)
	if err != nil {
		return 0
	}
	return median
}

// theilSenIntercept returns the median of (y_i − slope·i) over all points.
func theilSenIntercept(values []float64, slope float64) float64 {
	residuals := make([]float64, len(values))
	for i, y := range values {
		residuals[i] = y - slope*float64(i)
	}

	median, err := stats.Median(residuals)
	if err != nil {
		return 0
	}
	return median
}

// mannKendallConfidence computes the Mann–Kendall z statistic and maps it to
// a confidence score in [0, 100].
func mannKendallConfidence(values []float64) float64 {
	n := len(values)

	s := 0.0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			switch {
			case values[j] > values[i]:
				s++
			case values[j] < values[i]:
				s--
			}
		}
	}

	variance := float64(n*(n-1)*(2*n+5)) / 18

	var z float64
	switch {
	case s > 0:
		z = (s - 1) / math.Sqrt(variance)
	case s < 0:
		z = (s + 1) / math.Sqrt(variance)
	}

	return (1 - 0.5*math.Exp(-0.5*z*z)) * 100
}

func classifyDirection(slope, epsilon float64) domain.TrendDirection {
	switch {
	case math.Abs(slope) < epsilon:
		return domain.TrendStable
	case slope > 0:
		return domain.TrendIncreasing
	default:
		return domain.TrendDecreasing
	}
}
