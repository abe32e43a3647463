package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nocturna/skyglow-etl/internal/domain"
	"github.com/nocturna/skyglow-etl/internal/observability"
)

// --- stubs ---

type stubCatalog struct {
	granules []domain.Granule
	err      error
	calls    int
}

func (s *stubCatalog) Search(_ context.Context, _ domain.BoundingBox, _, _ time.Time) ([]domain.Granule, error) {
	s.calls++
	return s.granules, s.err
}

type stubReader struct {
	raster *domain.Raster
	err    error
}

func (s *stubReader) Read(_ context.Context, _ string) (*domain.Raster, error) {
	return s.raster, s.err
}

type stubStore struct {
	covered     bool
	coverageErr error
	upserts     [][]domain.BrightnessSample
	upsertErr   error
	history     []domain.MonthlyAggregate
	historyErr  error
}

func (s *stubStore) UpsertSamples(_ context.Context, samples []domain.BrightnessSample) error {
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.upserts = append(s.upserts, samples)
	return nil
}

func (s *stubStore) HasCoverage(_ context.Context, _ domain.BoundingBox, _, _ time.Time) (bool, error) {
	return s.covered, s.coverageErr
}

func (s *stubStore) MonthlyAggregates(_ context.Context, _ domain.BoundingBox, _, _ time.Time) ([]domain.MonthlyAggregate, error) {
	return s.history, s.historyErr
}

type stubPublisher struct {
	published [][]domain.BrightnessSample
	err       error
}

func (s *stubPublisher) PublishSamples(_ context.Context, samples []domain.BrightnessSample) error {
	if s.err != nil {
		return s.err
	}
	s.published = append(s.published, samples)
	return nil
}

// --- helpers ---

func freezeClocks(t *testing.T, at time.Time) {
	t.Helper()
	fake := clockwork.NewFakeClockAt(at)
	SetClock(fake)
	domain.SetClock(fake)
	t.Cleanup(func() {
		SetClock(nil)
		domain.SetClock(nil)
	})
}

func testOrchestrator(catalog *stubCatalog, reader *stubReader, store *stubStore, publisher SamplePublisher, cfg OrchestratorConfig) *Orchestrator {
	return NewOrchestrator(
		catalog, reader, testProcessor(), store, publisher,
		testLogger(), observability.NewMetricsForTesting(), cfg,
	)
}

func defaultCfg() OrchestratorConfig {
	return OrchestratorConfig{
		WindowMonths:        3,
		SearchPadDays:       7,
		CloudCeilingPercent: 40,
		SyntheticFallback:   true,
	}
}

// --- tests ---

func TestOrchestrator_TrailingMonths(t *testing.T) {
	freezeClocks(t, time.Date(2024, 7, 10, 12, 0, 0, 0, time.UTC))

	o := testOrchestrator(&stubCatalog{}, &stubReader{}, &stubStore{}, nil, defaultCfg())
	months := o.trailingMonths()

	require.Len(t, months, 3)
	assert.Equal(t, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), months[0])
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), months[1])
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), months[2])
}

func TestOrchestrator_Run_IngestsMissingMonths(t *testing.T) {
	freezeClocks(t, time.Date(2024, 7, 10, 12, 0, 0, 0, time.UTC))

	catalog := &stubCatalog{granules: []domain.Granule{testGranule()}}
	reader := &stubReader{raster: testRaster()}
	store := &stubStore{}
	publisher := &stubPublisher{}
	o := testOrchestrator(catalog, reader, store, publisher, defaultCfg())

	summary, err := o.Run(context.Background(), []domain.Region{testRegion()})
	require.NoError(t, err)

	assert.Len(t, summary.Done, 3)
	assert.Empty(t, summary.Skipped)
	assert.Empty(t, summary.Failed)
	assert.Equal(t, 12, summary.SamplesUpserted) // 4 pixels x 3 months
	assert.NotEmpty(t, summary.RunID)

	assert.Len(t, store.upserts, 3)
	assert.Len(t, publisher.published, 3)
	assert.Equal(t, 3, catalog.calls)

	assert.NoError(t, o.CheckReadiness(context.Background()))
}

func TestOrchestrator_Run_SkipsCoveredMonths(t *testing.T) {
	freezeClocks(t, time.Date(2024, 7, 10, 12, 0, 0, 0, time.UTC))

	catalog := &stubCatalog{}
	store := &stubStore{covered: true}
	o := testOrchestrator(catalog, &stubReader{}, store, nil, defaultCfg())

	summary, err := o.Run(context.Background(), []domain.Region{testRegion()})
	require.NoError(t, err)

	assert.Len(t, summary.Skipped, 3)
	assert.Empty(t, summary.Done)
	assert.Zero(t, catalog.calls, "covered months should not hit the catalog")
}

func TestOrchestrator_Run_SyntheticFallbackOnSearchFailure(t *testing.T) {
	freezeClocks(t, time.Date(2024, 7, 10, 12, 0, 0, 0, time.UTC))

	catalog := &stubCatalog{err: errors.New("CMR unavailable")}
	store := &stubStore{history: []domain.MonthlyAggregate{
		{Month: "2024-01", MeanBrightness: 18.0, SampleCount: 50},
	}}
	o := testOrchestrator(catalog, &stubReader{}, store, nil, defaultCfg())

	summary, err := o.Run(context.Background(), []domain.Region{testRegion()})
	require.NoError(t, err)

	assert.Len(t, summary.Done, 3)
	assert.Equal(t, 3, summary.SamplesUpserted) // one synthetic sample per month
	require.Len(t, store.upserts, 3)
	assert.Equal(t, domain.MethodSynthetic, store.upserts[0][0].ProcessingMethod)
}

func TestOrchestrator_Run_SyntheticFallbackWhenAllGranulesCloudy(t *testing.T) {
	freezeClocks(t, time.Date(2024, 7, 10, 12, 0, 0, 0, time.UTC))

	overcast := testGranule()
	overcast.CloudCoverPercent = 95
	catalog := &stubCatalog{granules: []domain.Granule{overcast}}
	store := &stubStore{history: []domain.MonthlyAggregate{
		{Month: "2024-01", MeanBrightness: 18.0, SampleCount: 50},
	}}
	o := testOrchestrator(catalog, &stubReader{}, store, nil, defaultCfg())

	summary, err := o.Run(context.Background(), []domain.Region{testRegion()})
	require.NoError(t, err)
	assert.Len(t, summary.Done, 3)
	assert.Equal(t, domain.MethodSynthetic, store.upserts[0][0].ProcessingMethod)
}

func TestOrchestrator_Run_FailsMonthWithoutHistory(t *testing.T) {
	freezeClocks(t, time.Date(2024, 7, 10, 12, 0, 0, 0, time.UTC))

	catalog := &stubCatalog{err: errors.New("CMR unavailable")}
	o := testOrchestrator(catalog, &stubReader{}, &stubStore{}, nil, defaultCfg())

	summary, err := o.Run(context.Background(), []domain.Region{testRegion()})
	require.NoError(t, err)

	assert.Len(t, summary.Failed, 3)
	assert.Empty(t, summary.Done)
}

func TestOrchestrator_Run_FailsMonthWhenFallbackDisabled(t *testing.T) {
	freezeClocks(t, time.Date(2024, 7, 10, 12, 0, 0, 0, time.UTC))

	cfg := defaultCfg()
	cfg.SyntheticFallback = false
	catalog := &stubCatalog{err: errors.New("CMR unavailable")}
	store := &stubStore{history: []domain.MonthlyAggregate{
		{Month: "2024-01", MeanBrightness: 18.0, SampleCount: 50},
	}}
	o := testOrchestrator(catalog, &stubReader{}, store, nil, cfg)

	summary, err := o.Run(context.Background(), []domain.Region{testRegion()})
	require.NoError(t, err)
	assert.Len(t, summary.Failed, 3)
}

func TestOrchestrator_Run_ReadFailureFallsBack(t *testing.T) {
	freezeClocks(t, time.Date(2024, 7, 10, 12, 0, 0, 0, time.UTC))

	catalog := &stubCatalog{granules: []domain.Granule{testGranule()}}
	reader := &stubReader{err: errors.New("corrupt file")}
	store := &stubStore{history: []domain.MonthlyAggregate{
		{Month: "2024-01", MeanBrightness: 18.0, SampleCount: 50},
	}}
	o := testOrchestrator(catalog, reader, store, nil, defaultCfg())

	summary, err := o.Run(context.Background(), []domain.Region{testRegion()})
	require.NoError(t, err)
	assert.Len(t, summary.Done, 3)
	assert.Equal(t, domain.MethodSynthetic, store.upserts[0][0].ProcessingMethod)
}

func TestOrchestrator_Run_PersistFailureFailsMonth(t *testing.T) {
	freezeClocks(t, time.Date(2024, 7, 10, 12, 0, 0, 0, time.UTC))

	catalog := &stubCatalog{granules: []domain.Granule{testGranule()}}
	reader := &stubReader{raster: testRaster()}
	store := &stubStore{upsertErr: errors.New("disk full")}
	o := testOrchestrator(catalog, reader, store, nil, defaultCfg())

	summary, err := o.Run(context.Background(), []domain.Region{testRegion()})
	require.NoError(t, err)
	assert.Len(t, summary.Failed, 3)
	assert.Zero(t, summary.SamplesUpserted)
}

func TestOrchestrator_Run_PublishFailureDoesNotFailMonth(t *testing.T) {
	freezeClocks(t, time.Date(2024, 7, 10, 12, 0, 0, 0, time.UTC))

	catalog := &stubCatalog{granules: []domain.Granule{testGranule()}}
	reader := &stubReader{raster: testRaster()}
	store := &stubStore{}
	publisher := &stubPublisher{err: errors.New("broker down")}
	o := testOrchestrator(catalog, reader, store, publisher, defaultCfg())

	summary, err := o.Run(context.Background(), []domain.Region{testRegion()})
	require.NoError(t, err)
	assert.Len(t, summary.Done, 3)
	assert.Empty(t, publisher.published)
}

func TestOrchestrator_Run_StopsOnCancelledContext(t *testing.T) {
	freezeClocks(t, time.Date(2024, 7, 10, 12, 0, 0, 0, time.UTC))

	catalog := &stubCatalog{granules: []domain.Granule{testGranule()}}
	o := testOrchestrator(catalog, &stubReader{raster: testRaster()}, &stubStore{}, nil, defaultCfg())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := o.Run(ctx, []domain.Region{testRegion()})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, summary.Done)
	assert.Zero(t, catalog.calls)
}

func TestOrchestrator_Run_MultipleRegions(t *testing.T) {
	freezeClocks(t, time.Date(2024, 7, 10, 12, 0, 0, 0, time.UTC))

	catalog := &stubCatalog{granules: []domain.Granule{testGranule()}}
	reader := &stubReader{raster: testRaster()}
	store := &stubStore{}
	o := testOrchestrator(catalog, reader, store, nil, defaultCfg())

	second := domain.Region{
		Name:   "Faisalabad",
		Bounds: domain.BoundingBox{West: 73.0, South: 31.3, East: 73.2, North: 31.5},
	}

	summary, err := o.Run(context.Background(), []domain.Region{testRegion(), second})
	require.NoError(t, err)

	// The second region's bounds exclude every raster pixel, so its months
	// fall back to synthesis and fail for lack of history.
	assert.Len(t, summary.Done, 3)
	assert.Len(t, summary.Failed, 3)
	assert.Contains(t, summary.Done[0], "Lahore")
	assert.Contains(t, summary.Failed[0], "Faisalabad")
}

func TestOrchestrator_CheckReadiness(t *testing.T) {
	o := testOrchestrator(&stubCatalog{}, &stubReader{}, &stubStore{}, nil, defaultCfg())
	require.Error(t, o.CheckReadiness(context.Background()))
}
