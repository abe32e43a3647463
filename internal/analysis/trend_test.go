package analysis

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nocturna/skyglow-etl/internal/domain"
)

// series builds an evenly spaced monthly series from raw values.
func series(values ...float64) []domain.MonthlyAggregate {
	points := make([]domain.MonthlyAggregate, len(values))
	for i, v := range values {
		points[i] = domain.MonthlyAggregate{
			Month:          fmt.Sprintf("2022-%02d", i%12+1),
			MeanBrightness: v,
			SampleCount:    100,
		}
	}
	return points
}

// olsSlope is an ordinary least-squares fit over index positions, used as the
// non-robust comparison baseline.
func olsSlope(values []float64) float64 {
	n := float64(len(values))
	var sumX, sumY, sumXY, sumXX float64
	for i, y := range values {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	return (n*sumXY - sumX*sumY) / (n*sumXX - sumX*sumX)
}

func TestEstimateTrend_InsufficientData(t *testing.T) {
	for _, points := range [][]domain.MonthlyAggregate{nil, series(18.0)} {
		result := EstimateTrend(points, DefaultTrendConfig())

		assert.Equal(t, "insufficient_data", result.Method)
		assert.Zero(t, result.Slope)
		assert.Equal(t, domain.TrendStable, result.Direction)
	}
}

func TestEstimateTrend_MonotonicIncreasing(t *testing.T) {
	result := EstimateTrend(series(18.0, 18.3, 18.6, 18.9, 19.2), DefaultTrendConfig())

	assert.Equal(t, "theil_sen", result.Method)
	assert.Equal(t, domain.TrendIncreasing, result.Direction)
	assert.InDelta(t, 0.3, result.Slope, 1e-9)
	assert.InDelta(t, 18.0, result.Intercept, 1e-9)
	assert.Greater(t, result.ConfidenceScore, 50.0)
	assert.InDelta(t, result.Slope*12, result.AnnualChangeRate, 1e-9)
}

func TestEstimateTrend_ConstantSeries(t *testing.T) {
	result := EstimateTrend(series(18.5, 18.5, 18.5, 18.5), DefaultTrendConfig())

	// All-equal values: S = 0 takes the z = 0 branch, e^0 = 1, exactly 50.
	assert.Zero(t, result.Slope)
	assert.Equal(t, 50.0, result.ConfidenceScore)
	assert.Equal(t, domain.TrendStable, result.Direction)
}

func TestEstimateTrend_Decreasing(t *testing.T) {
	result := EstimateTrend(series(20.0, 19.5, 19.0, 18.5), DefaultTrendConfig())

	assert.Equal(t, domain.TrendDecreasing, result.Direction)
	assert.InDelta(t, -0.5, result.Slope, 1e-9)
	assert.Negative(t, result.AnnualChangeRate)
}

func TestEstimateTrend_StableEpsilonConfigurable(t *testing.T) {
	points := series(18.0, 18.05, 18.1, 18.15)

	strict := EstimateTrend(points, TrendConfig{StableSlopeEpsilon: 0.001})
	assert.Equal(t, domain.TrendIncreasing, strict.Direction)

	loose := EstimateTrend(points, TrendConfig{StableSlopeEpsilon: 0.1})
	assert.Equal(t, domain.TrendStable, loose.Direction)
}

func TestEstimateTrend_OutlierRobustness(t *testing.T) {
	flat := []float64{5, 5, 5, 5, 5, 5, 5, 5, 5, 5}
	withOutlier := append([]float64(nil), flat...)
	withOutlier[9] = 100

	tsFlat := EstimateTrend(series(flat...), DefaultTrendConfig()).Slope
	tsOutlier := EstimateTrend(series(withOutlier...), DefaultTrendConfig()).Slope
	tsChange := tsOutlier - tsFlat

	olsChange := olsSlope(withOutlier) - olsSlope(flat)

	require.NotZero(t, olsChange)
	assert.Less(t, absFloat(tsChange), 0.1*absFloat(olsChange),
		"Theil-Sen must move less than a tenth of the OLS shift under one outlier")
}

func TestEstimateTrend_CombinedYearOverYear(t *testing.T) {
	// Baseline months followed by a brighter year: the combined series must
	// report an increasing trend with a positive annual rate.
	points := series(18.0, 18.2, 18.5, 20.0, 20.3, 20.6)

	result := EstimateTrend(points, DefaultTrendConfig())

	assert.Equal(t, domain.TrendIncreasing, result.Direction)
	assert.Positive(t, result.AnnualChangeRate)
	assert.InDelta(t, result.Slope*12, result.AnnualChangeRate, 1e-9)
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
