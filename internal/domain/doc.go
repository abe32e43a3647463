// Package domain models VIIRS Day/Night Band (DNB) nighttime-radiance data
// and its conversion to calibrated sky-brightness estimates.
//
// # Data Source
//
// Radiance rasters come from the NASA Black Marble VNP46A2 product (daily
// moonlight- and atmosphere-corrected nighttime lights). Granules are located
// through the NASA CMR catalog and downloaded by an external collaborator;
// this service receives decoded per-pixel arrays through the RasterReader
// interface. The gap-filled DNB layer ("Gap_Filled_DNB_BRDF-Corrected_NTL")
// is exposed under the logical dataset name "radiance".
//
// Radiance is measured in nW/cm²/sr. Zero is a legitimate dark-sky reading;
// negative and non-finite values are sensor artifacts and are marked invalid
// rather than zeroed, so they never masquerade as pristine sky.
//
// # Quality Flags
//
// Each pixel carries a bit-encoded quality word (QF_Cloud_Mask convention):
//
//	bits 0-1: cloud detection confidence (0 = confident clear .. 3 = confident cloudy)
//	bits 2-3: overall pixel quality      (0 = good, non-zero = degraded)
//
// The bit offsets and widths are named constants in quality.go so the decoder
// cannot drift from the encoding. A pixel is treated as cloudy when its cloud
// confidence reaches the configured threshold (default 3, "confident cloudy").
//
// # Sky Brightness
//
// Corrected radiance maps to sky brightness in mag/arcsec² via a logarithmic
// relation: brightness = base − coefficient·log10(radiance + ε). Higher
// magnitude means a darker sky, so the conversion is monotonically
// non-increasing in radiance. Two calibration variants exist and are not
// interchangeable:
//
//	visual:     wide [15, 25] clamp, coarse constants for map display
//	calibrated: narrow [16, 22] clamp, fitted against SQM ground stations
//
// Brightness maps onto the 9-step Bortle scale (1 = pristine dark sky,
// 9 = inner-city sky) through an ordered boundary table; exact boundary
// values belong to the darker (lower-numbered) class.
//
// # ID Generation
//
// Sample IDs are deterministic SHA-256 hashes of source|granule|lat|lon.
// This enables idempotent upserts (ON CONFLICT DO UPDATE) and replay safety:
// reprocessing the same granule produces the same IDs. See [SampleID].
package domain
