package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nocturna/skyglow-etl/internal/domain"
)

var testBounds = domain.BoundingBox{West: 73.5, South: 31.0, East: 75.0, North: 32.0}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "skyglow.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleAt(externalID string, lat, lon, mag float64, acquired time.Time) domain.BrightnessSample {
	return domain.BrightnessSample{
		ExternalID:       externalID,
		Latitude:         lat,
		Longitude:        lon,
		Radiance:         6.5,
		SkyBrightnessMag: mag,
		VisibilityClass:  domain.BrightnessToVisibilityClass(mag),
		AcquisitionDate:  acquired,
		SatelliteSource:  domain.ProductShortName,
		ProcessingMethod: domain.MethodCorrected,
		ProcessedAt:      acquired.Add(6 * time.Hour),
	}
}

func TestUpsertSamples_Idempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	acquired := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	first := sampleAt("VNP46A2-aaaa", 31.5, 74.3, 18.0, acquired)
	require.NoError(t, store.UpsertSamples(ctx, []domain.BrightnessSample{first}))

	// Same external ID, different value: exactly one row, holding the latest.
	second := first
	second.SkyBrightnessMag = 19.5
	require.NoError(t, store.UpsertSamples(ctx, []domain.BrightnessSample{second}))

	samples, err := store.SamplesInWindow(ctx, testBounds, acquired.AddDate(0, 0, -1), acquired.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, 19.5, samples[0].SkyBrightnessMag)
	assert.Equal(t, "VNP46A2-aaaa", samples[0].ExternalID)
}

func TestUpsertSamples_EmptyBatch(t *testing.T) {
	store := newTestStore(t)
	assert.NoError(t, store.UpsertSamples(context.Background(), nil))
}

func TestHasCoverage(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	acquired := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	covered, err := store.HasCoverage(ctx, testBounds, acquired, acquired.AddDate(0, 1, 0))
	require.NoError(t, err)
	assert.False(t, covered)

	require.NoError(t, store.UpsertSamples(ctx, []domain.BrightnessSample{
		sampleAt("VNP46A2-bbbb", 31.5, 74.3, 18.0, acquired),
	}))

	covered, err = store.HasCoverage(ctx, testBounds, acquired.AddDate(0, 0, -14), acquired.AddDate(0, 0, 14))
	require.NoError(t, err)
	assert.True(t, covered)

	t.Run("outside the region", func(t *testing.T) {
		tokyo := domain.BoundingBox{West: 139.3, South: 35.5, East: 140.0, North: 35.9}
		covered, err := store.HasCoverage(ctx, tokyo, acquired.AddDate(0, 0, -14), acquired.AddDate(0, 0, 14))
		require.NoError(t, err)
		assert.False(t, covered)
	})

	t.Run("outside the window", func(t *testing.T) {
		covered, err := store.HasCoverage(ctx, testBounds, acquired.AddDate(0, 2, 0), acquired.AddDate(0, 3, 0))
		require.NoError(t, err)
		assert.False(t, covered)
	})
}

func TestMonthlyAggregates(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	jan := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.UpsertSamples(ctx, []domain.BrightnessSample{
		sampleAt("s1", 31.5, 74.3, 18.0, jan),
		sampleAt("s2", 31.6, 74.4, 20.0, jan),
		sampleAt("s3", 31.5, 74.3, 21.0, feb),
	}))

	aggs, err := store.MonthlyAggregates(ctx, testBounds,
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	require.Len(t, aggs, 2)
	assert.Equal(t, "2024-01", aggs[0].Month)
	assert.InDelta(t, 19.0, aggs[0].MeanBrightness, 1e-9)
	assert.Equal(t, 2, aggs[0].SampleCount)
	assert.Equal(t, "2024-02", aggs[1].Month)
	assert.InDelta(t, 21.0, aggs[1].MeanBrightness, 1e-9)
}

func TestSamplesInWindow_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	acquired := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	in := sampleAt("VNP46A2-cccc", 31.52, 74.35, 18.2, acquired)
	in.CloudCoveragePercent = 12.5
	in.ProcessingMethod = domain.MethodUncorrected
	require.NoError(t, store.UpsertSamples(ctx, []domain.BrightnessSample{in}))

	out, err := store.SamplesInWindow(ctx, testBounds, acquired.AddDate(0, 0, -1), acquired.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, out, 1)

	assert.Equal(t, in.ExternalID, out[0].ExternalID)
	assert.Equal(t, in.Latitude, out[0].Latitude)
	assert.Equal(t, in.Longitude, out[0].Longitude)
	assert.Equal(t, in.Radiance, out[0].Radiance)
	assert.Equal(t, in.SkyBrightnessMag, out[0].SkyBrightnessMag)
	assert.Equal(t, in.VisibilityClass, out[0].VisibilityClass)
	assert.True(t, in.AcquisitionDate.Equal(out[0].AcquisitionDate))
	assert.Equal(t, in.SatelliteSource, out[0].SatelliteSource)
	assert.Equal(t, 12.5, out[0].CloudCoveragePercent)
	assert.Equal(t, domain.MethodUncorrected, out[0].ProcessingMethod)
}

func TestSaveReport(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	report := domain.NewAnalysisReport(
		"Sky brightness trend: Lahore",
		map[string]any{"region": "Lahore"},
		domain.TrendStatistics{Slope: 0.2, Direction: domain.TrendIncreasing, ConfidenceScore: 92, Method: "theil_sen"},
		[]domain.MonthlyAggregate{{Month: "2024-01", MeanBrightness: 18.5, SampleCount: 10}},
		[]domain.ChangeCell{{Latitude: 31.5, Longitude: 74.3, Delta: 3.4, Category: domain.ChangeHotspot}},
		false,
	)

	require.NoError(t, store.SaveReport(ctx, report))

	count, err := store.CountReports(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	t.Run("report write is all-or-nothing", func(t *testing.T) {
		// A second write with the same primary key must fail and leave the
		// store unchanged.
		require.Error(t, store.SaveReport(ctx, report))

		count, err := store.CountReports(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})
}

func TestListReports(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, title := range []string{"Sky brightness trend: Lahore", "Sky brightness trend: Tokyo"} {
		report := domain.NewAnalysisReport(
			title,
			map[string]any{"region": title},
			domain.TrendStatistics{Method: "theil_sen"},
			nil, nil, false,
		)
		require.NoError(t, store.SaveReport(ctx, report))
	}

	reports, err := store.ListReports(ctx, 10)
	require.NoError(t, err)
	require.Len(t, reports, 2)

	titles := []string{reports[0].Title, reports[1].Title}
	assert.ElementsMatch(t, []string{"Sky brightness trend: Lahore", "Sky brightness trend: Tokyo"}, titles)
	for _, r := range reports {
		assert.JSONEq(t, `{"region":"`+r.Title+`"}`, string(r.Parameters))
	}

	t.Run("limit applies", func(t *testing.T) {
		reports, err := store.ListReports(ctx, 1)
		require.NoError(t, err)
		assert.Len(t, reports, 1)
	})
}

func TestGetReport(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	report := domain.NewAnalysisReport(
		"Sky brightness trend: London",
		map[string]any{"region": "London"},
		domain.TrendStatistics{Slope: -0.05, Direction: domain.TrendDecreasing, Method: "theil_sen"},
		[]domain.MonthlyAggregate{{Month: "2024-03", MeanBrightness: 19.1, SampleCount: 7}},
		nil,
		true,
	)
	require.NoError(t, store.SaveReport(ctx, report))

	got, err := store.GetReport(ctx, report.ID)
	require.NoError(t, err)
	assert.Equal(t, report.ID, got.ID)
	assert.Equal(t, "Sky brightness trend: London", got.Title)
	assert.True(t, got.IsPublic)
	assert.Contains(t, string(got.Summary), `"direction":"decreasing"`)
	assert.Contains(t, string(got.Visualizations), `"time_series"`)
	assert.True(t, report.CreatedAt.UTC().Truncate(time.Second).Equal(got.CreatedAt))

	_, err = store.GetReport(ctx, "missing-id")
	assert.ErrorIs(t, err, ErrNotFound)
}
