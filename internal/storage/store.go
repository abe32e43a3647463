// Package storage persists brightness samples and analysis reports in
// SQLite. Sample writes are idempotent upserts keyed by external_id; report
// writes are all-or-nothing within one transaction.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/nocturna/skyglow-etl/internal/domain"
)

// Store wraps the SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and initializes the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", path))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// UpsertSamples writes a batch of samples in one transaction. Conflicting
// external IDs are updated in place, so re-running ingestion for an
// already-covered month never duplicates rows. The transaction boundary makes
// each batch atomic: a mid-batch failure rolls the whole batch back.
func (s *Store) UpsertSamples(ctx context.Context, samples []domain.BrightnessSample) (err error) {
	if len(samples) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, upsertSampleSQL)
	if err != nil {
		return fmt.Errorf("preparing upsert: %w", err)
	}
	defer stmt.Close()

	for _, smp := range samples {
		if _, err = stmt.ExecContext(ctx,
			smp.ExternalID,
			smp.Latitude,
			smp.Longitude,
			smp.Radiance,
			smp.SkyBrightnessMag,
			smp.VisibilityClass,
			smp.AcquisitionDate.UTC().Format(time.RFC3339),
			smp.SatelliteSource,
			smp.CloudCoveragePercent,
			string(smp.ProcessingMethod),
			smp.ProcessedAt.UTC().Format(time.RFC3339),
		); err != nil {
			return fmt.Errorf("upserting sample %s: %w", smp.ExternalID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing samples: %w", err)
	}
	return nil
}

// HasCoverage reports whether any samples exist for the region within
// [start, end).
func (s *Store) HasCoverage(ctx context.Context, bounds domain.BoundingBox, start, end time.Time) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, countSamplesInWindowSQL,
		bounds.South, bounds.North, bounds.West, bounds.East,
		start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339),
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("counting coverage: %w", err)
	}
	return count > 0, nil
}

// MonthlyAggregates computes the region's mean-brightness time series grouped
// by calendar month. It is a view over samples, recomputed on demand.
func (s *Store) MonthlyAggregates(ctx context.Context, bounds domain.BoundingBox, start, end time.Time) ([]domain.MonthlyAggregate, error) {
	rows, err := s.db.QueryContext(ctx, monthlyAggregatesSQL,
		bounds.South, bounds.North, bounds.West, bounds.East,
		start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("querying aggregates: %w", err)
	}
	defer rows.Close()

	var out []domain.MonthlyAggregate
	for rows.Next() {
		var agg domain.MonthlyAggregate
		if err := rows.Scan(&agg.Month, &agg.MeanBrightness, &agg.SampleCount); err != nil {
			return nil, fmt.Errorf("scanning aggregate: %w", err)
		}
		out = append(out, agg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating aggregates: %w", err)
	}
	return out, nil
}

// SamplesInWindow returns the region's samples within [start, end), ordered
// by acquisition date.
func (s *Store) SamplesInWindow(ctx context.Context, bounds domain.BoundingBox, start, end time.Time) ([]domain.BrightnessSample, error) {
	rows, err := s.db.QueryContext(ctx, selectSamplesInWindowSQL,
		bounds.South, bounds.North, bounds.West, bounds.East,
		start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("querying samples: %w", err)
	}
	defer rows.Close()

	var out []domain.BrightnessSample
	for rows.Next() {
		var (
			smp              domain.BrightnessSample
			acquired, stored string
			method           string
		)
		if err := rows.Scan(
			&smp.ExternalID,
			&smp.Latitude,
			&smp.Longitude,
			&smp.Radiance,
			&smp.SkyBrightnessMag,
			&smp.VisibilityClass,
			&acquired,
			&smp.SatelliteSource,
			&smp.CloudCoveragePercent,
			&method,
			&stored,
		); err != nil {
			return nil, fmt.Errorf("scanning sample: %w", err)
		}

		if smp.AcquisitionDate, err = time.Parse(time.RFC3339, acquired); err != nil {
			return nil, fmt.Errorf("parsing acquisition date %q: %w", acquired, err)
		}
		if smp.ProcessedAt, err = time.Parse(time.RFC3339, stored); err != nil {
			return nil, fmt.Errorf("parsing processed_at %q: %w", stored, err)
		}
		smp.ProcessingMethod = domain.ProcessingMethod(method)
		out = append(out, smp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating samples: %w", err)
	}
	return out, nil
}

// visualizationPayload is the persisted data_visualizations JSON shape.
type visualizationPayload struct {
	TimeSeries   []domain.MonthlyAggregate `json:"time_series"`
	ChangeMap    domain.FeatureCollection  `json:"change_map"`
	SamplePoints domain.FeatureCollection  `json:"sample_points"`
}

// SaveReport persists an analysis report inside a single transaction. The
// write is all-or-nothing: a failure leaves no partial report behind, while
// previously persisted samples stay valid on their own.
func (s *Store) SaveReport(ctx context.Context, report domain.AnalysisReport) (err error) {
	params, err := json.Marshal(report.Parameters)
	if err != nil {
		return fmt.Errorf("marshaling parameters: %w", err)
	}
	summary, err := json.Marshal(report.Summary)
	if err != nil {
		return fmt.Errorf("marshaling summary: %w", err)
	}
	visualizations, err := json.Marshal(visualizationPayload{
		TimeSeries:   report.TimeSeries,
		ChangeMap:    domain.ChangeCellsToGeoJSON(report.ChangeCells),
		SamplePoints: report.SamplePoints,
	})
	if err != nil {
		return fmt.Errorf("marshaling visualizations: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, insertReportSQL,
		report.ID,
		report.Title,
		report.ReportType,
		string(params),
		string(summary),
		string(visualizations),
		report.IsPublic,
		report.CreatedAt.UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("inserting report: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing report: %w", err)
	}
	return nil
}

// CountReports returns the number of persisted reports.
func (s *Store) CountReports(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reports`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting reports: %w", err)
	}
	return count, nil
}

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// StoredReport is a report as persisted: the JSON columns are kept raw so
// read paths serve them without a decode-encode round trip.
type StoredReport struct {
	ID             string          `json:"id"`
	Title          string          `json:"title"`
	ReportType     string          `json:"report_type"`
	Parameters     json.RawMessage `json:"parameters_used"`
	Summary        json.RawMessage `json:"summary_statistics"`
	Visualizations json.RawMessage `json:"data_visualizations"`
	IsPublic       bool            `json:"is_public"`
	CreatedAt      time.Time       `json:"created_at"`
}

// ListReports returns the most recent reports, newest first.
func (s *Store) ListReports(ctx context.Context, limit int) ([]StoredReport, error) {
	rows, err := s.db.QueryContext(ctx, listReportsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("querying reports: %w", err)
	}
	defer rows.Close()

	out := make([]StoredReport, 0, limit)
	for rows.Next() {
		r, err := scanReport(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating reports: %w", err)
	}
	return out, nil
}

// GetReport returns one report by ID, or ErrNotFound.
func (s *Store) GetReport(ctx context.Context, id string) (StoredReport, error) {
	r, err := scanReport(s.db.QueryRowContext(ctx, getReportSQL, id).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return StoredReport{}, ErrNotFound
	}
	return r, err
}

func scanReport(scan func(dest ...any) error) (StoredReport, error) {
	var (
		r                             StoredReport
		params, summary, vis, created string
	)
	if err := scan(&r.ID, &r.Title, &r.ReportType, &params, &summary, &vis, &r.IsPublic, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return StoredReport{}, err
		}
		return StoredReport{}, fmt.Errorf("scanning report: %w", err)
	}

	var err error
	if r.CreatedAt, err = time.Parse(time.RFC3339, created); err != nil {
		return StoredReport{}, fmt.Errorf("parsing created_at %q: %w", created, err)
	}
	r.Parameters = json.RawMessage(params)
	r.Summary = json.RawMessage(summary)
	r.Visualizations = json.RawMessage(vis)
	return r, nil
}
