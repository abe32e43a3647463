// Package granulefile reads pre-extracted granule rasters from local JSON
// files. Upstream tooling converts VNP46A2 HDF5 granules into this layout;
// the service itself never links an HDF5 decoder.
package granulefile

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/nocturna/skyglow-etl/internal/domain"
)

// Reader implements domain.RasterReader over local JSON granule files. The
// download reference is a filesystem path, optionally prefixed "file://".
type Reader struct {
	logger *slog.Logger
}

// NewReader creates a file-backed raster reader.
func NewReader(logger *slog.Logger) *Reader {
	return &Reader{logger: logger}
}

// Read decodes the granule file at the given reference.
func (r *Reader) Read(ctx context.Context, downloadReference string) (*domain.Raster, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := strings.TrimPrefix(downloadReference, "file://")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read granule file: %w", err)
	}

	var f granuleFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode granule file %s: %w", path, err)
	}

	raster := &domain.Raster{
		GranuleID:        f.GranuleID,
		Source:           f.Source,
		Width:            f.Width,
		Height:           f.Height,
		Transform:        f.GeoTransform,
		Radiance:         f.Datasets.Radiance,
		QualityFlags:     f.Datasets.QualityFlags,
		MoonIllumination: f.Datasets.MoonIllumination,
		LunarZenith:      f.Datasets.LunarZenith,
		SolarZenith:      f.Datasets.SolarZenith,
	}
	if raster.Source == "" {
		raster.Source = domain.ProductShortName
	}

	if err := validate(raster); err != nil {
		return nil, fmt.Errorf("granule file %s: %w", path, err)
	}

	r.logger.Debug("granule raster loaded",
		"granule_id", raster.GranuleID,
		"width", raster.Width,
		"height", raster.Height)
	return raster, nil
}

func validate(raster *domain.Raster) error {
	if raster.Width <= 0 || raster.Height <= 0 {
		return fmt.Errorf("invalid dimensions %dx%d", raster.Width, raster.Height)
	}
	n := raster.PixelCount()
	if len(raster.Radiance) != n {
		return fmt.Errorf("radiance has %d values, expected %d", len(raster.Radiance), n)
	}
	if raster.QualityFlags != nil && len(raster.QualityFlags) != n {
		return fmt.Errorf("quality_flags has %d values, expected %d", len(raster.QualityFlags), n)
	}
	for name, arr := range map[string][]float64{
		domain.DatasetMoonIllumination: raster.MoonIllumination,
		domain.DatasetLunarZenith:      raster.LunarZenith,
		domain.DatasetSolarZenith:      raster.SolarZenith,
	} {
		if arr != nil && len(arr) != n {
			return fmt.Errorf("%s has %d values, expected %d", name, len(arr), n)
		}
	}
	return nil
}

// Write serializes a raster to the on-disk layout at path. It is the inverse
// of Read and is used by fixture tooling.
func Write(path string, raster *domain.Raster) error {
	if err := validate(raster); err != nil {
		return fmt.Errorf("granule file %s: %w", path, err)
	}

	f := granuleFile{
		GranuleID:    raster.GranuleID,
		Source:       raster.Source,
		Width:        raster.Width,
		Height:       raster.Height,
		GeoTransform: raster.Transform,
		Datasets: datasets{
			Radiance:         raster.Radiance,
			QualityFlags:     raster.QualityFlags,
			MoonIllumination: raster.MoonIllumination,
			LunarZenith:      raster.LunarZenith,
			SolarZenith:      raster.SolarZenith,
		},
	}

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("encode granule file: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// granuleFile is the on-disk JSON layout.
type granuleFile struct {
	GranuleID    string              `json:"granule_id"`
	Source       string              `json:"source"`
	Width        int                 `json:"width"`
	Height       int                 `json:"height"`
	GeoTransform domain.GeoTransform `json:"geo_transform"`
	Datasets     datasets            `json:"datasets"`
}

type datasets struct {
	Radiance         []float64 `json:"radiance"`
	QualityFlags     []uint16  `json:"quality_flags"`
	MoonIllumination []float64 `json:"moon_illumination,omitempty"`
	LunarZenith      []float64 `json:"lunar_zenith,omitempty"`
	SolarZenith      []float64 `json:"solar_zenith,omitempty"`
}
