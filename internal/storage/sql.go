package storage

import (
	_ "embed"
)

const (
	upsertSampleSQL = `
INSERT INTO samples (external_id,
                     latitude,
                     longitude,
                     radiance,
                     sky_brightness_mag,
                     visibility_class,
                     acquisition_date,
                     satellite_source,
                     cloud_coverage_percent,
                     processing_method,
                     processed_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (external_id) DO UPDATE SET
    latitude               = excluded.latitude,
    longitude              = excluded.longitude,
    radiance               = excluded.radiance,
    sky_brightness_mag     = excluded.sky_brightness_mag,
    visibility_class       = excluded.visibility_class,
    acquisition_date       = excluded.acquisition_date,
    satellite_source       = excluded.satellite_source,
    cloud_coverage_percent = excluded.cloud_coverage_percent,
    processing_method      = excluded.processing_method,
    processed_at           = excluded.processed_at`

	countSamplesInWindowSQL = `
SELECT COUNT(*)
FROM samples
WHERE latitude >= ? AND latitude <= ?
  AND longitude >= ? AND longitude <= ?
  AND acquisition_date >= ? AND acquisition_date < ?`

	monthlyAggregatesSQL = `
SELECT strftime('%Y-%m', acquisition_date) AS month,
       AVG(sky_brightness_mag),
       COUNT(*)
FROM samples
WHERE latitude >= ? AND latitude <= ?
  AND longitude >= ? AND longitude <= ?
  AND acquisition_date >= ? AND acquisition_date < ?
GROUP BY month
ORDER BY month`

	selectSamplesInWindowSQL = `
SELECT external_id,
       latitude,
       longitude,
       radiance,
       sky_brightness_mag,
       visibility_class,
       acquisition_date,
       satellite_source,
       cloud_coverage_percent,
       processing_method,
       processed_at
FROM samples
WHERE latitude >= ? AND latitude <= ?
  AND longitude >= ? AND longitude <= ?
  AND acquisition_date >= ? AND acquisition_date < ?
ORDER BY acquisition_date, external_id`

	insertReportSQL = `
INSERT INTO reports (id,
                     title,
                     report_type,
                     parameters_used,
                     summary_statistics,
                     data_visualizations,
                     is_public,
                     created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	selectReportColumns = `
SELECT id,
       title,
       report_type,
       parameters_used,
       summary_statistics,
       data_visualizations,
       is_public,
       created_at
FROM reports`

	listReportsSQL = selectReportColumns + `
ORDER BY created_at DESC, id
LIMIT ?`

	getReportSQL = selectReportColumns + `
WHERE id = ?`
)

//go:embed schema.sql
var schemaSQL string
