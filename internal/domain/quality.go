package domain

import "math"

// QF_Cloud_Mask bit layout. The decoder derives its masks from these
// constants so encoder and decoder cannot silently drift apart.
const (
	cloudConfidenceShift = 0
	cloudConfidenceWidth = 2

	pixelQualityShift = cloudConfidenceWidth
	pixelQualityWidth = 2
)

// DefaultCloudConfidenceThreshold marks a pixel cloudy only at "confident
// cloudy" (QF value 3). Lower it to 2 to also reject "probably cloudy".
const DefaultCloudConfidenceThreshold = 3

// PixelQuality is the decoded verdict for one pixel's quality word.
type PixelQuality struct {
	Cloudy     bool
	LowQuality bool
}

// Valid reports whether the pixel passed both cloud and quality screening.
func (q PixelQuality) Valid() bool {
	return !q.Cloudy && !q.LowQuality
}

// CloudConfidence extracts the 2-bit cloud detection confidence (0-3).
func CloudConfidence(flag uint16) uint16 {
	return (flag >> cloudConfidenceShift) & (1<<cloudConfidenceWidth - 1)
}

// PixelQualityBits extracts the 2-bit overall quality field (0 = good).
func PixelQualityBits(flag uint16) uint16 {
	return (flag >> pixelQualityShift) & (1<<pixelQualityWidth - 1)
}

// DecodeQualityFlags derives a per-pixel validity mask from bit-encoded
// quality words. The output is parallel to the input: one verdict per pixel,
// positions preserved.
func DecodeQualityFlags(flags []uint16, cloudThreshold uint16) []PixelQuality {
	mask := make([]PixelQuality, len(flags))
	for i, flag := range flags {
		mask[i] = PixelQuality{
			Cloudy:     CloudConfidence(flag) >= cloudThreshold,
			LowQuality: PixelQualityBits(flag) > 0,
		}
	}
	return mask
}

// RadianceBand bounds the physically plausible radiance range for screening.
type RadianceBand struct {
	Min float64
	Max float64
}

// DefaultRadianceBand covers dark rural sky up to the brightest urban cores
// observed in DNB imagery, in nW/cm²/sr.
var DefaultRadianceBand = RadianceBand{Min: 0, Max: 10000}

// FilterRadiance applies the validity mask and plausibility band to a
// radiance array. Discarded pixels become NaN in place rather than being
// dropped, so positional alignment with geographic coordinates survives.
// A nil or short mask leaves the unmasked tail subject only to the band check.
func FilterRadiance(radiance []float64, mask []PixelQuality, band RadianceBand) []float64 {
	out := make([]float64, len(radiance))
	for i, v := range radiance {
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 || v < band.Min || v > band.Max {
			out[i] = math.NaN()
			continue
		}
		if i < len(mask) && !mask[i].Valid() {
			out[i] = math.NaN()
			continue
		}
		out[i] = v
	}
	return out
}
