package domain

import (
	"math"
	"time"
)

// GeoJSON document types for the rendering collaborators. Only the subset
// this service emits: FeatureCollections of Point features.

type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

type Feature struct {
	Type       string         `json:"type"`
	Geometry   PointGeometry  `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

type PointGeometry struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"` // [lon, lat]
}

// SamplesToGeoJSON exports brightness samples as a Point FeatureCollection.
// sampleRate thins the output: every n-th sample is kept (1 keeps all).
// Thinning is a rendering payload concern, not a pipeline invariant.
func SamplesToGeoJSON(samples []BrightnessSample, sampleRate int) FeatureCollection {
	if sampleRate < 1 {
		sampleRate = 1
	}

	features := make([]Feature, 0, len(samples)/sampleRate+1)
	for i, s := range samples {
		if i%sampleRate != 0 {
			continue
		}
		if math.IsNaN(s.SkyBrightnessMag) {
			continue
		}
		features = append(features, Feature{
			Type: "Feature",
			Geometry: PointGeometry{
				Type:        "Point",
				Coordinates: [2]float64{s.Longitude, s.Latitude},
			},
			Properties: map[string]any{
				"radiance":           s.Radiance,
				"sky_brightness_mag": s.SkyBrightnessMag,
				"visibility_class":   s.VisibilityClass,
				"source":             s.SatelliteSource,
				"timestamp":          s.AcquisitionDate.UTC().Format(time.RFC3339),
			},
		})
	}

	return FeatureCollection{Type: "FeatureCollection", Features: features}
}

// ChangeCellsToGeoJSON exports a change layer as Point features centered on
// each affected grid cell.
func ChangeCellsToGeoJSON(cells []ChangeCell) FeatureCollection {
	features := make([]Feature, 0, len(cells))
	for _, c := range cells {
		features = append(features, Feature{
			Type: "Feature",
			Geometry: PointGeometry{
				Type:        "Point",
				Coordinates: [2]float64{c.Longitude, c.Latitude},
			},
			Properties: map[string]any{
				"delta":         c.Delta,
				"category":      string(c.Category),
				"baseline_mean": c.BaselineMean,
				"current_mean":  c.CurrentMean,
			},
		})
	}
	return FeatureCollection{Type: "FeatureCollection", Features: features}
}
