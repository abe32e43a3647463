package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nocturna/skyglow-etl/internal/analysis"
	"github.com/nocturna/skyglow-etl/internal/domain"
	"github.com/nocturna/skyglow-etl/internal/observability"
)

type reportStubStore struct {
	aggregates    []domain.MonthlyAggregate
	aggregatesErr error
	samples       []domain.BrightnessSample
	saved         []domain.AnalysisReport
	saveErr       error
	windows       []time.Time
}

func (s *reportStubStore) MonthlyAggregates(_ context.Context, _ domain.BoundingBox, start, end time.Time) ([]domain.MonthlyAggregate, error) {
	s.windows = append(s.windows, start, end)
	return s.aggregates, s.aggregatesErr
}

func (s *reportStubStore) SamplesInWindow(_ context.Context, _ domain.BoundingBox, _, _ time.Time) ([]domain.BrightnessSample, error) {
	return s.samples, nil
}

func (s *reportStubStore) SaveReport(_ context.Context, report domain.AnalysisReport) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved = append(s.saved, report)
	return nil
}

func testReporter(store *reportStubStore) *Reporter {
	assembler := analysis.NewAssembler(analysis.DefaultTrendConfig(), analysis.DefaultChangeConfig(), 1)
	return NewReporter(store, assembler, testLogger(), observability.NewMetricsForTesting(), 12)
}

func TestReporter_GenerateReports(t *testing.T) {
	freezeClocks(t, time.Date(2024, 7, 10, 12, 0, 0, 0, time.UTC))

	store := &reportStubStore{
		aggregates: []domain.MonthlyAggregate{
			{Month: "2024-01", MeanBrightness: 19.0, SampleCount: 10},
			{Month: "2024-02", MeanBrightness: 18.8, SampleCount: 12},
			{Month: "2024-03", MeanBrightness: 18.6, SampleCount: 9},
		},
	}

	reports, err := testReporter(store).GenerateReports(context.Background(), []domain.Region{testRegion()})
	require.NoError(t, err)
	require.Len(t, reports, 1)
	require.Len(t, store.saved, 1)

	report := reports[0]
	assert.Equal(t, "Sky brightness trend: Lahore", report.Title)
	assert.Equal(t, domain.TrendDecreasing, report.Summary.Direction)
	assert.Equal(t, "Lahore", report.Parameters["region"])
	assert.Len(t, report.TimeSeries, 3)

	// Analysis window: the 12 complete months before July 2024.
	require.Len(t, store.windows, 2)
	assert.Equal(t, time.Date(2023, 7, 1, 0, 0, 0, 0, time.UTC), store.windows[0])
	assert.Equal(t, time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC), store.windows[1])
}

func TestReporter_GenerateReports_RegionFailureContinues(t *testing.T) {
	freezeClocks(t, time.Date(2024, 7, 10, 12, 0, 0, 0, time.UTC))

	store := &reportStubStore{saveErr: errors.New("disk full")}

	reports, err := testReporter(store).GenerateReports(context.Background(), []domain.Region{
		testRegion(),
		{Name: "Tokyo", Bounds: domain.BoundingBox{West: 139.3, South: 35.5, East: 140.0, North: 35.9}},
	})
	require.NoError(t, err)
	assert.Empty(t, reports)
	assert.Empty(t, store.saved)
}

func TestReporter_GenerateReports_StopsOnCancelledContext(t *testing.T) {
	freezeClocks(t, time.Date(2024, 7, 10, 12, 0, 0, 0, time.UTC))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := &reportStubStore{}
	reports, err := testReporter(store).GenerateReports(ctx, []domain.Region{testRegion()})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, reports)
}

func TestReporter_GenerateReports_EmptySeriesStillWritesReport(t *testing.T) {
	freezeClocks(t, time.Date(2024, 7, 10, 12, 0, 0, 0, time.UTC))

	store := &reportStubStore{}
	reports, err := testReporter(store).GenerateReports(context.Background(), []domain.Region{testRegion()})
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, "insufficient_data", reports[0].Summary.Method)
}
