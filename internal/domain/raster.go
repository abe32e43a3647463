package domain

import "context"

// VNP46A2 product identity. The radiance logical dataset is backed by the
// gap-filled DNB layer of the HDF5 granule.
const (
	ProductShortName  = "VNP46A2"
	RadianceLayerName = "Gap_Filled_DNB_BRDF-Corrected_NTL"
)

// Logical dataset names exposed by raster readers. Readers must tolerate any
// subset being absent (nil field on Raster).
const (
	DatasetRadiance         = "radiance"
	DatasetQualityFlags     = "quality_flags"
	DatasetMoonIllumination = "moon_illumination"
	DatasetLunarZenith      = "lunar_zenith"
	DatasetSolarZenith      = "solar_zenith"
)

// GeoTransform is a GDAL-style affine transform mapping pixel indices to
// WGS-84 coordinates:
//
//	lon = t[0] + x*t[1] + y*t[2]
//	lat = t[3] + x*t[4] + y*t[5]
type GeoTransform [6]float64

// LonLat returns the geographic coordinate of pixel (x, y).
func (t GeoTransform) LonLat(x, y int) (lon, lat float64) {
	fx, fy := float64(x), float64(y)
	lon = t[0] + fx*t[1] + fy*t[2]
	lat = t[3] + fx*t[4] + fy*t[5]
	return lon, lat
}

// Raster holds the decoded per-pixel arrays of one granule. All arrays are
// row-major Width×Height; a nil array means the dataset was absent from the
// source file.
type Raster struct {
	GranuleID string
	Source    string
	Width     int
	Height    int
	Transform GeoTransform

	Radiance         []float64
	QualityFlags     []uint16
	MoonIllumination []float64
	LunarZenith      []float64
	SolarZenith      []float64
}

// PixelCount returns the expected array length.
func (r *Raster) PixelCount() int {
	return r.Width * r.Height
}

// LonLatAt returns the coordinate of the i-th pixel in row-major order.
func (r *Raster) LonLatAt(i int) (lon, lat float64) {
	if r.Width <= 0 {
		return r.Transform.LonLat(0, 0)
	}
	return r.Transform.LonLat(i%r.Width, i/r.Width)
}

// RasterReader decodes a downloaded granule file into per-pixel arrays.
// The file-format collaborator (HDF5/NetCDF decoding) lives behind this
// interface.
type RasterReader interface {
	Read(ctx context.Context, downloadReference string) (*Raster, error)
}
