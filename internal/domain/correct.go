package domain

import "math"

// CorrectionConfig holds the tunable constants of the radiance correction
// chain. The airmass exponent and lunar floor are empirical defaults, not
// derived values; both are expected to be revisited against ground truth.
type CorrectionConfig struct {
	// CalibrationFactor and CalibrationOffset map sensor counts onto the
	// calibrated radiance scale: v' = v*factor + offset.
	CalibrationFactor float64 `koanf:"calibration_factor"`
	CalibrationOffset float64 `koanf:"calibration_offset"`

	// AirmassExponent is the empirical atmospheric-extinction exponent
	// applied to 1/cos(zenith).
	AirmassExponent float64 `koanf:"airmass_exponent"`

	// LunarIlluminationFloor caps the lunar division near new moon, when the
	// illumination fraction approaches zero.
	LunarIlluminationFloor float64 `koanf:"lunar_illumination_floor"`
}

// DefaultCorrectionConfig returns the correction defaults used in production.
func DefaultCorrectionConfig() CorrectionConfig {
	return CorrectionConfig{
		CalibrationFactor:      1.0,
		CalibrationOffset:      0.0,
		AirmassExponent:        0.7,
		LunarIlluminationFloor: 0.1,
	}
}

// CorrectRadiance applies lunar-illumination compensation, airmass extinction,
// and sensor calibration to a raw radiance array. The moonIllum and
// lunarZenith arrays are optional (nil to skip that correction).
//
// Invalid inputs (non-finite or <= 0) become NaN at their position, never
// zero, since zero is a valid dark-sky reading. Output length and order match
// the input so downstream indexing by pixel position stays valid.
//
// Correction is best-effort: if the optional arrays do not align with the
// radiance array the raw values are returned unchanged with
// MethodUncorrected, rather than aborting the pipeline.
func CorrectRadiance(raw, moonIllum, lunarZenith []float64, cfg CorrectionConfig) ([]float64, ProcessingMethod) {
	if (moonIllum != nil && len(moonIllum) != len(raw)) ||
		(lunarZenith != nil && len(lunarZenith) != len(raw)) {
		out := make([]float64, len(raw))
		copy(out, raw)
		return out, MethodUncorrected
	}

	out := make([]float64, len(raw))
	for i, v := range raw {
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			out[i] = math.NaN()
			continue
		}

		if moonIllum != nil && moonIllum[i] > 0 {
			v /= math.Max(cfg.LunarIlluminationFloor, moonIllum[i])
		}

		if lunarZenith != nil && lunarZenith[i] > 0 {
			zenith := lunarZenith[i] * math.Pi / 180
			if cos := math.Cos(zenith); cos > 0 {
				airmass := 1 / cos
				v *= math.Pow(airmass, cfg.AirmassExponent)
			}
		}

		out[i] = v*cfg.CalibrationFactor + cfg.CalibrationOffset
	}
	return out, MethodCorrected
}
