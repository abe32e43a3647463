package domain

import "math"

// BrightnessConfig parameterizes the radiance → sky-brightness conversion:
// brightness = Base − Coefficient·log10(radiance + Epsilon), clamped to
// [ClampMin, ClampMax]. The two production variants are VisualBrightness and
// CalibratedBrightness; they are calibrated against different reference
// datasets and are not interchangeable.
type BrightnessConfig struct {
	Base        float64 `koanf:"base"`
	Coefficient float64 `koanf:"coefficient"`
	Epsilon     float64 `koanf:"epsilon"`
	ClampMin    float64 `koanf:"clamp_min"`
	ClampMax    float64 `koanf:"clamp_max"`
}

// VisualBrightness is the coarse visual-estimate variant with wide clamp
// bounds, suitable for map display.
func VisualBrightness() BrightnessConfig {
	return BrightnessConfig{
		Base:        20.0,
		Coefficient: 2.5, // Pogson ratio: 2.5 magnitudes per decade of flux
		Epsilon:     0.01,
		ClampMin:    15.0,
		ClampMax:    25.0,
	}
}

// CalibratedBrightness is the ground-truth variant fitted against SQM
// station readings, with narrower clamp bounds.
func CalibratedBrightness() BrightnessConfig {
	return BrightnessConfig{
		Base:        19.93,
		Coefficient: 2.17,
		Epsilon:     0.01,
		ClampMin:    16.0,
		ClampMax:    22.0,
	}
}

// Convert maps one corrected radiance value to sky brightness in mag/arcsec².
// The mapping is monotonically non-increasing: brighter ground light yields a
// lower (brighter-sky) magnitude. NaN input propagates to NaN output.
func (c BrightnessConfig) Convert(radiance float64) float64 {
	if math.IsNaN(radiance) {
		return math.NaN()
	}
	if radiance < 0 {
		radiance = 0
	}
	mag := c.Base - c.Coefficient*math.Log10(radiance+c.Epsilon)
	return math.Min(c.ClampMax, math.Max(c.ClampMin, mag))
}

// RadianceToBrightnessVisual converts radiance with the visual-estimate
// calibration. Kept as a distinct named function from the calibrated variant;
// see BrightnessConfig.
func RadianceToBrightnessVisual(radiance float64) float64 {
	return VisualBrightness().Convert(radiance)
}

// RadianceToBrightnessCalibrated converts radiance with the SQM-calibrated
// variant.
func RadianceToBrightnessCalibrated(radiance float64) float64 {
	return CalibratedBrightness().Convert(radiance)
}

// bortleBoundary pairs a lower brightness bound (inclusive) with the Bortle
// class it begins. Evaluated top-down, darkest first, so exact boundary
// values land in the darker (lower-numbered) class.
type bortleBoundary struct {
	lowerBound float64
	class      int
}

// bortleScale follows the standard Bortle mag/arcsec² boundaries. The final
// entry is the catch-all inner-city class.
var bortleScale = []bortleBoundary{
	{21.99, 1},
	{21.89, 2},
	{21.69, 3},
	{20.49, 4},
	{19.50, 5},
	{18.94, 6},
	{18.38, 7},
	{17.80, 8},
	{math.Inf(-1), 9},
}

// BrightnessToVisibilityClass maps sky brightness onto the 9-step Bortle
// scale (1 = pristine dark sky, 9 = inner-city sky). NaN maps to the
// brightest class since an unmeasurable pixel carries no evidence of darkness.
func BrightnessToVisibilityClass(brightness float64) int {
	if math.IsNaN(brightness) {
		return 9
	}
	for _, b := range bortleScale {
		if brightness >= b.lowerBound {
			return b.class
		}
	}
	return 9
}
